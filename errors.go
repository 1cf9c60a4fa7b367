package typecodec

import (
	"errors"
	"fmt"
	"strings"

	"github.com/reoring/typecodec/i18n"
)

// Issue codes. Each code maps to one sentinel error below so callers can use
// errors.Is regardless of the message.
const (
	CodeUnknownFormat              = "unknown_format"
	CodeUnsupportedType            = "unsupported_type"
	CodeInvalidType                = "invalid_type"
	CodeCircularReference          = "circular_reference"
	CodeAmbiguousUnion             = "ambiguous_union"
	CodeInvalidHook                = "invalid_hook"
	CodeInvalidResource            = "invalid_resource"
	CodeUnexpectedValue            = "unexpected_value"
	CodeInvalidConstructorArgument = "invalid_constructor_argument"
	CodeUnexpectedType             = "unexpected_type"
)

// Sentinel errors, one per issue code.
var (
	// Generation phase.
	ErrUnknownFormat     = errors.New("unknown format")
	ErrUnsupportedType   = errors.New("unsupported type")
	ErrInvalidType       = errors.New("invalid type")
	ErrCircularReference = errors.New("circular reference")
	ErrAmbiguousUnion    = errors.New("ambiguous union")
	ErrInvalidHook       = errors.New("invalid hook")

	// Decode phase.
	ErrInvalidResource            = errors.New("invalid resource")
	ErrUnexpectedValue            = errors.New("unexpected value")
	ErrInvalidConstructorArgument = errors.New("invalid constructor argument")
	ErrUnexpectedType             = errors.New("unexpected type")
)

var sentinels = map[string]error{
	CodeUnknownFormat:              ErrUnknownFormat,
	CodeUnsupportedType:            ErrUnsupportedType,
	CodeInvalidType:                ErrInvalidType,
	CodeCircularReference:          ErrCircularReference,
	CodeAmbiguousUnion:             ErrAmbiguousUnion,
	CodeInvalidHook:                ErrInvalidHook,
	CodeInvalidResource:            ErrInvalidResource,
	CodeUnexpectedValue:            ErrUnexpectedValue,
	CodeInvalidConstructorArgument: ErrInvalidConstructorArgument,
	CodeUnexpectedType:             ErrUnexpectedType,
}

// Issue represents a single generation or decode failure.
type Issue struct {
	Path    string // JSON Pointer of the offending value ("" for generation issues).
	Code    string // One of the codes listed above.
	Message string
	Hint    string // Optional: type signature, class name, offending key.
	Cause   error  // Optional: underlying error.
	Offset  int64  // Byte offset in the resource (-1 when unknown).
}

func (it Issue) Error() string {
	b := &strings.Builder{}
	b.WriteString(it.Code)
	if it.Path != "" {
		fmt.Fprintf(b, " at %s", it.Path)
	}
	if it.Message != "" {
		b.WriteString(": ")
		b.WriteString(it.Message)
	}
	if it.Hint != "" {
		fmt.Fprintf(b, " (%s)", it.Hint)
	}
	if it.Cause != nil {
		fmt.Fprintf(b, ": %v", it.Cause)
	}
	return b.String()
}

// Is reports whether target is the sentinel for the issue code.
func (it Issue) Is(target error) bool {
	s, ok := sentinels[it.Code]
	return ok && s == target
}

func (it Issue) Unwrap() error { return it.Cause }

// Issues is a collection of issues that implements error.
type Issues []Issue

// Error summarizes the first few issues.
func (iss Issues) Error() string {
	if len(iss) == 0 {
		return ""
	}
	const maxShown = 3
	b := &strings.Builder{}
	n := len(iss)
	lim := n
	if lim > maxShown {
		lim = maxShown
	}
	for i := 0; i < lim; i++ {
		if i > 0 {
			b.WriteString("; ")
		}
		it := iss[i]
		// e.g. unexpected_value at /items/2
		path := it.Path
		if path == "" {
			path = "/"
		}
		fmt.Fprintf(b, "%s at %s", it.Code, path)
	}
	if n > lim {
		fmt.Fprintf(b, "; ... (total %d)", n)
	}
	return b.String()
}

// Is matches when any contained issue matches.
func (iss Issues) Is(target error) bool {
	for _, it := range iss {
		if it.Is(target) {
			return true
		}
	}
	return false
}

// AppendIssues appends issues to the destination, initializing the slice when
// needed.
func AppendIssues(dst Issues, more ...Issue) Issues {
	if dst == nil {
		dst = Issues{}
	}
	dst = append(dst, more...)
	return dst
}

// AsIssue extracts the first Issue carried by err.
func AsIssue(err error) (Issue, bool) {
	if err == nil {
		return Issue{}, false
	}
	var it Issue
	if errors.As(err, &it) {
		return it, true
	}
	var iss Issues
	if errors.As(err, &iss) && len(iss) > 0 {
		return iss[0], true
	}
	return Issue{}, false
}

// AsIssues extracts Issues from an error using errors.As internally. A single
// Issue is returned as a one-element collection.
func AsIssues(err error) (Issues, bool) {
	if err == nil {
		return nil, false
	}
	var iss Issues
	if errors.As(err, &iss) {
		return iss, true
	}
	var it Issue
	if errors.As(err, &it) {
		return Issues{it}, true
	}
	return nil, false
}

// NewIssue builds an Issue with the translated message for code.
func NewIssue(code, path, hint string) Issue {
	return Issue{Path: path, Code: code, Message: i18n.T(code, nil), Hint: hint, Offset: -1}
}

// Errorf builds an Issue with a formatted message. Use it for generation-time
// errors that carry details beyond the code's default message.
func Errorf(code, format string, args ...any) Issue {
	return Issue{Code: code, Message: fmt.Sprintf(format, args...), Offset: -1}
}

// WithCause returns a copy of the issue carrying cause.
func (it Issue) WithCause(err error) Issue {
	it.Cause = err
	return it
}
