package typecodec

import (
	"strconv"
	"strings"
)

var jsonPointerEscaper = strings.NewReplacer("~", "~0", "/", "~1")

// JoinPath appends a JSON Pointer token to base ("" is the document root).
func JoinPath(base, token string) string {
	return base + "/" + jsonPointerEscaper.Replace(token)
}

// IndexPath appends an array index to base.
func IndexPath(base string, i int) string {
	return base + "/" + strconv.Itoa(i)
}

// DisplayPath renders the root pointer as "/".
func DisplayPath(p string) string {
	if p == "" {
		return "/"
	}
	return p
}
