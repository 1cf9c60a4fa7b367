package engine

import (
	"strconv"

	typecodec "github.com/reoring/typecodec"
)

// WithMaxDepth returns a TokenSource that fails once containers nest deeper
// than max. The error carries the JSON Pointer of the offending container.
func WithMaxDepth(inner TokenSource, max int) TokenSource {
	return &depthSource{inner: inner, max: max}
}

type pathFrame struct {
	kind       frameKind
	path       string
	nextIndex  int
	pendingKey string
}

type depthSource struct {
	inner TokenSource
	max   int
	stack []pathFrame
}

func (e *depthSource) NextToken() (Token, error) {
	tok, err := e.inner.NextToken()
	if err != nil {
		return Token{}, err
	}
	path := e.pathFor(tok)
	switch tok.Kind {
	case KindBeginObject, KindBeginArray:
		kind := frameObject
		if tok.Kind == KindBeginArray {
			kind = frameArray
		}
		e.stack = append(e.stack, pathFrame{kind: kind, path: path})
		if len(e.stack) > e.max {
			it := typecodec.NewIssue(typecodec.CodeInvalidResource, path, "max depth exceeded")
			return Token{}, it
		}
	case KindEndObject, KindEndArray:
		if n := len(e.stack); n > 0 {
			e.stack = e.stack[:n-1]
		}
	}
	return tok, nil
}

// pathFor returns the JSON Pointer of the value tok starts.
func (e *depthSource) pathFor(tok Token) string {
	if len(e.stack) == 0 {
		return ""
	}
	top := &e.stack[len(e.stack)-1]
	switch tok.Kind {
	case KindKey:
		top.pendingKey = tok.String
		return typecodec.JoinPath(top.path, tok.String)
	case KindEndObject, KindEndArray:
		return top.path
	}
	if top.kind == frameArray {
		p := typecodec.JoinPath(top.path, strconv.Itoa(top.nextIndex))
		top.nextIndex++
		return p
	}
	return typecodec.JoinPath(top.path, top.pendingKey)
}

func (e *depthSource) Location() int64 { return e.inner.Location() }
