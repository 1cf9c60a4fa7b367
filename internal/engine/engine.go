// Package engine parses whole resources into ordered native values for the
// eager strategy and implements the lenient scalar casts shared by every
// decode path.
package engine

import (
	"errors"
	"io"
	"strconv"
	"strings"

	typecodec "github.com/reoring/typecodec"
	"github.com/reoring/typecodec/value"
)

// Kind represents token kinds from a generic source.
type Kind int

const (
	KindBeginObject Kind = iota
	KindEndObject
	KindBeginArray
	KindEndArray
	KindKey
	KindString
	KindNumber
	KindBool
	KindNull
)

// Token represents a streaming token with approximate input offset.
type Token struct {
	Kind   Kind
	String string
	Number string
	Bool   bool
	Offset int64
}

// TokenSource is a minimal interface required by the engine.
type TokenSource interface {
	NextToken() (Token, error)
	Location() int64
}

// DecodeNative builds a native value from the token source: objects become
// *value.Dict in wire order, arrays []any, integral numbers int64 and other
// numbers float64.
func DecodeNative(src TokenSource) (any, error) {
	tok, err := src.NextToken()
	if err != nil {
		return nil, unexpectedEOF(err)
	}
	return decodeValue(src, tok)
}

func decodeValue(src TokenSource, tok Token) (any, error) {
	switch tok.Kind {
	case KindBeginObject:
		return decodeObject(src)
	case KindBeginArray:
		return decodeArray(src)
	case KindString:
		return tok.String, nil
	case KindNumber:
		return ParseNumber(tok.Number)
	case KindBool:
		return tok.Bool, nil
	case KindNull:
		return nil, nil
	default:
		return nil, invalid("unexpected token", nil)
	}
}

func decodeObject(src TokenSource) (any, error) {
	d := value.NewDict(0)
	for {
		tok, err := src.NextToken()
		if err != nil {
			return nil, unexpectedEOF(err)
		}
		if tok.Kind == KindEndObject {
			return d, nil
		}
		if tok.Kind != KindKey {
			return nil, invalid("expected object key", nil)
		}
		vt, err := src.NextToken()
		if err != nil {
			return nil, unexpectedEOF(err)
		}
		v, err := decodeValue(src, vt)
		if err != nil {
			return nil, err
		}
		d.Set(tok.String, v)
	}
}

func decodeArray(src TokenSource) (any, error) {
	arr := []any{}
	for {
		tok, err := src.NextToken()
		if err != nil {
			return nil, unexpectedEOF(err)
		}
		if tok.Kind == KindEndArray {
			return arr, nil
		}
		v, err := decodeValue(src, tok)
		if err != nil {
			return nil, err
		}
		arr = append(arr, v)
	}
}

// ParseNumber converts a JSON number literal: int64 when the literal is
// integral and fits, float64 otherwise.
func ParseNumber(s string) (any, error) {
	if !strings.ContainsAny(s, ".eE") {
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n, nil
		}
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, invalid("invalid number "+s, err)
	}
	return f, nil
}

func unexpectedEOF(err error) error {
	if errors.Is(err, io.EOF) {
		return invalid("unexpected end of input", io.ErrUnexpectedEOF)
	}
	if _, ok := typecodec.AsIssue(err); ok {
		return err
	}
	return invalid("malformed input", err)
}

func invalid(hint string, cause error) error {
	return typecodec.NewIssue(typecodec.CodeInvalidResource, "", hint).WithCause(cause)
}
