package engine

import (
	"bytes"
	"errors"
	"io"
	"strconv"

	json "github.com/goccy/go-json"

	typecodec "github.com/reoring/typecodec"
)

type frameKind int

const (
	frameObject frameKind = iota
	frameArray
)

type frame struct {
	kind         frameKind
	expectingKey bool
}

// gojsonSource adapts a go-json Decoder to TokenSource.
type gojsonSource struct {
	dec   *json.Decoder
	stack []frame
}

// NewJSONSource wraps r into a TokenSource backed by goccy/go-json.
func NewJSONSource(r io.Reader) TokenSource {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	return &gojsonSource{dec: dec}
}

// valueDone marks the pending object value as consumed.
func (s *gojsonSource) valueDone() {
	if n := len(s.stack); n > 0 {
		top := &s.stack[n-1]
		if top.kind == frameObject && !top.expectingKey {
			top.expectingKey = true
		}
	}
}

func (s *gojsonSource) NextToken() (Token, error) {
	tok, err := s.dec.Token()
	if err != nil {
		return Token{}, err
	}
	switch v := tok.(type) {
	case json.Delim:
		switch v {
		case '{':
			s.stack = append(s.stack, frame{kind: frameObject, expectingKey: true})
			return Token{Kind: KindBeginObject, Offset: -1}, nil
		case '[':
			s.stack = append(s.stack, frame{kind: frameArray})
			return Token{Kind: KindBeginArray, Offset: -1}, nil
		case '}', ']':
			if n := len(s.stack); n > 0 {
				s.stack = s.stack[:n-1]
			}
			s.valueDone()
			if v == '}' {
				return Token{Kind: KindEndObject, Offset: -1}, nil
			}
			return Token{Kind: KindEndArray, Offset: -1}, nil
		}
	case string:
		if n := len(s.stack); n > 0 {
			top := &s.stack[n-1]
			if top.kind == frameObject && top.expectingKey {
				top.expectingKey = false
				return Token{Kind: KindKey, String: v, Offset: -1}, nil
			}
		}
		s.valueDone()
		return Token{Kind: KindString, String: v, Offset: -1}, nil
	case bool:
		s.valueDone()
		return Token{Kind: KindBool, Bool: v, Offset: -1}, nil
	case json.Number:
		s.valueDone()
		return Token{Kind: KindNumber, Number: string(v), Offset: -1}, nil
	case float64:
		s.valueDone()
		return Token{Kind: KindNumber, Number: strconv.FormatFloat(v, 'g', -1, 64), Offset: -1}, nil
	}
	s.valueDone()
	return Token{Kind: KindNull, Offset: -1}, nil
}

func (s *gojsonSource) Location() int64 { return -1 }

// DecodeJSON parses the whole resource into a native value. maxDepth > 0
// limits nesting. Bytes after the first value other than whitespace are an
// error.
func DecodeJSON(r io.ReaderAt, maxDepth int) (any, error) {
	sr := io.NewSectionReader(r, 0, 1<<62)
	var src TokenSource = NewJSONSource(sr)
	if maxDepth > 0 {
		src = WithMaxDepth(src, maxDepth)
	}
	v, err := DecodeNative(src)
	if err != nil {
		return nil, err
	}
	if _, err := src.NextToken(); !errors.Is(err, io.EOF) {
		return nil, typecodec.NewIssue(typecodec.CodeInvalidResource, "", "trailing data after value").WithCause(err)
	}
	return v, nil
}

// DecodeJSONBytes is DecodeJSON over an in-memory value.
func DecodeJSONBytes(b []byte, maxDepth int) (any, error) {
	return DecodeJSON(bytes.NewReader(b), maxDepth)
}
