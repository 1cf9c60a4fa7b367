package stream

import (
	"bytes"
	"errors"
	"io"
	"math"

	json "github.com/goccy/go-json"

	typecodec "github.com/reoring/typecodec"
)

// Child is one top-level element of a list or dict. Boundaries are absolute
// offsets into the resource.
type Child struct {
	Key    string // decoded key; empty for list elements
	RawKey string // key token as it appears on the wire, quotes included
	Boundary
}

// Container is the result of splitting a list or dict.
type Container struct {
	Dict     bool
	Children []Child
}

// Split returns the top-level children of the list or dict at b. A value
// that starts with the null literal yields (nil, nil).
func Split(r io.ReaderAt, b Boundary) (*Container, error) {
	lx := NewLexer(r, b)
	first, err := lx.Next()
	if err != nil {
		return nil, eofAsInvalid(err, b.Offset)
	}
	var closing TokenKind
	switch first.Kind() {
	case TokNull:
		return nil, nil
	case TokBeginArray:
		closing = TokEndArray
	case TokBeginObject:
		closing = TokEndObject
	default:
		it := typecodec.NewIssue(typecodec.CodeUnexpectedValue, "", "expected array or object")
		it.Offset = first.Offset
		return nil, it
	}
	c := &Container{Dict: closing == TokEndObject}
	depth := 1
	start, end := int64(-1), int64(-1)
	var rawKey string
	afterColon := !c.Dict
	prev := first
	for {
		tok, err := lx.Next()
		if err != nil {
			return nil, eofAsInvalid(err, lx.Offset())
		}
		k := tok.Kind()
		if depth == 1 {
			switch {
			case k == TokComma || k == closing:
				if start < 0 {
					// "[]" and "{}" are the only places a child may be empty.
					if k == closing && prev.Kind() == first.Kind() {
						return c, nil
					}
					return nil, malformed(tok)
				}
				child := Child{RawKey: rawKey, Boundary: Boundary{Offset: start, Length: end - start}}
				if c.Dict {
					if child.Key, err = DecodeKey(rawKey); err != nil {
						return nil, err
					}
				}
				c.Children = append(c.Children, child)
				if k == closing {
					return c, nil
				}
				start, end, rawKey = -1, -1, ""
				afterColon = !c.Dict
				prev = tok
				continue
			case c.Dict && !afterColon:
				if k == TokColon {
					if rawKey == "" {
						return nil, malformed(tok)
					}
					afterColon = true
				} else if k == TokString && rawKey == "" {
					rawKey = tok.Text
				} else {
					return nil, malformed(tok)
				}
				prev = tok
				continue
			}
		}
		switch k {
		case TokBeginArray, TokBeginObject:
			depth++
		case TokEndArray, TokEndObject:
			depth--
			if depth < 1 {
				return nil, malformed(tok)
			}
		}
		if start < 0 {
			start = tok.Offset
		}
		end = tok.End()
		prev = tok
	}
}

func malformed(tok Token) error {
	it := typecodec.NewIssue(typecodec.CodeInvalidResource, "", "unexpected "+tok.Text)
	it.Offset = tok.Offset
	return it
}

func eofAsInvalid(err error, off int64) error {
	if errors.Is(err, io.EOF) {
		it := typecodec.NewIssue(typecodec.CodeInvalidResource, "", "unexpected end of input")
		it.Offset = off
		return it
	}
	return err
}

// DecodeKey decodes a raw string token.
func DecodeKey(raw string) (string, error) {
	var s string
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return "", typecodec.NewIssue(typecodec.CodeInvalidResource, "", raw).WithCause(err)
	}
	return s, nil
}

// First returns the first token of b.
func First(r io.ReaderAt, b Boundary) (Token, error) {
	tok, err := NewLexer(r, b).Next()
	if err != nil {
		return Token{}, eofAsInvalid(err, b.Offset)
	}
	return tok, nil
}

// IsNull reports whether the value at b is the null literal.
func IsNull(r io.ReaderAt, b Boundary) (bool, error) {
	tok, err := First(r, b)
	if err != nil {
		return false, err
	}
	return tok.Kind() == TokNull, nil
}

// Read returns the raw bytes of b with surrounding whitespace trimmed.
func Read(r io.ReaderAt, b Boundary) ([]byte, error) {
	n := b.Length
	if n < 0 {
		n = math.MaxInt64 - b.Offset
	}
	data, err := io.ReadAll(io.NewSectionReader(r, b.Offset, n))
	if err != nil {
		it := typecodec.NewIssue(typecodec.CodeInvalidResource, "", "read failed").WithCause(err)
		it.Offset = b.Offset
		return nil, it
	}
	return bytes.TrimSpace(data), nil
}
