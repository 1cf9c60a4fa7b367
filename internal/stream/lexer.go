// Package stream locates JSON value boundaries in a resource without
// decoding it. The lexer reads bounded chunks through io.ReaderAt so lazy
// decoders can revisit any offset.
package stream

import (
	"errors"
	"io"

	typecodec "github.com/reoring/typecodec"
)

// ChunkSize bounds a single read from the resource.
const ChunkSize = 8 << 10

// Boundary is the byte span of one value. Length -1 reads to the end of the
// resource.
type Boundary struct {
	Offset int64
	Length int64
}

// Whole is the boundary of an entire resource.
var Whole = Boundary{Offset: 0, Length: -1}

// End returns the exclusive end offset, or -1 when unbounded.
func (b Boundary) End() int64 {
	if b.Length < 0 {
		return -1
	}
	return b.Offset + b.Length
}

// TokenKind classifies a token by its first byte.
type TokenKind int

const (
	TokInvalid TokenKind = iota
	TokBeginObject
	TokEndObject
	TokBeginArray
	TokEndArray
	TokComma
	TokColon
	TokString
	TokNumber
	TokTrue
	TokFalse
	TokNull
)

// Token is a structural character, a whole string literal (quotes and
// escapes included) or a run of other non-whitespace bytes.
type Token struct {
	Text   string
	Offset int64
}

// End returns the offset just past the token.
func (t Token) End() int64 { return t.Offset + int64(len(t.Text)) }

// Kind classifies the token.
func (t Token) Kind() TokenKind {
	if t.Text == "" {
		return TokInvalid
	}
	switch c := t.Text[0]; {
	case c == '{':
		return TokBeginObject
	case c == '}':
		return TokEndObject
	case c == '[':
		return TokBeginArray
	case c == ']':
		return TokEndArray
	case c == ',':
		return TokComma
	case c == ':':
		return TokColon
	case c == '"':
		return TokString
	case c == '-' || (c >= '0' && c <= '9'):
		return TokNumber
	case t.Text == "true":
		return TokTrue
	case t.Text == "false":
		return TokFalse
	case t.Text == "null":
		return TokNull
	}
	return TokInvalid
}

type lexState int

const (
	stateNormal lexState = iota
	stateInString
	stateEscaping
)

// Lexer tokenizes the bytes of one boundary.
type Lexer struct {
	r      io.ReaderAt
	limit  int64 // exclusive end, -1 for unbounded
	buf    []byte
	bufOff int64 // absolute offset of buf[0]
	n, i   int
	err    error
}

// NewLexer returns a lexer over boundary b of r.
func NewLexer(r io.ReaderAt, b Boundary) *Lexer {
	return &Lexer{r: r, limit: b.End(), buf: make([]byte, ChunkSize), bufOff: b.Offset}
}

// Offset is the absolute offset of the next unread byte.
func (l *Lexer) Offset() int64 { return l.bufOff + int64(l.i) }

func (l *Lexer) fill() {
	l.bufOff += int64(l.n)
	l.i, l.n = 0, 0
	size := len(l.buf)
	if l.limit >= 0 {
		remain := l.limit - l.bufOff
		if remain <= 0 {
			l.err = io.EOF
			return
		}
		if remain < int64(size) {
			size = int(remain)
		}
	}
	n, err := l.r.ReadAt(l.buf[:size], l.bufOff)
	l.n = n
	switch {
	case err == nil && n == 0:
		l.err = io.EOF
	case errors.Is(err, io.EOF):
		l.err = io.EOF
	case err != nil:
		it := typecodec.NewIssue(typecodec.CodeInvalidResource, "", "read failed").WithCause(err)
		it.Offset = l.bufOff
		l.err = it
	}
}

func (l *Lexer) peek() (byte, error) {
	for l.i >= l.n {
		if l.err != nil {
			return 0, l.err
		}
		l.fill()
	}
	return l.buf[l.i], nil
}

func isSpace(c byte) bool { return c == ' ' || c == '\t' || c == '\n' || c == '\r' }

func isStructural(c byte) bool {
	switch c {
	case '{', '}', '[', ']', ',', ':':
		return true
	}
	return false
}

// Next returns the next token or io.EOF.
func (l *Lexer) Next() (Token, error) {
	var c byte
	var err error
	for {
		if c, err = l.peek(); err != nil {
			return Token{}, err
		}
		if !isSpace(c) {
			break
		}
		l.i++
	}
	start := l.Offset()
	if isStructural(c) {
		l.i++
		return Token{Text: string(c), Offset: start}, nil
	}
	var text []byte
	state := stateNormal
	for {
		c, err = l.peek()
		if errors.Is(err, io.EOF) {
			if state != stateNormal {
				it := typecodec.NewIssue(typecodec.CodeInvalidResource, "", "unterminated string")
				it.Offset = start
				return Token{}, it
			}
			break
		}
		if err != nil {
			return Token{}, err
		}
		switch state {
		case stateNormal:
			if isSpace(c) || isStructural(c) {
				return Token{Text: string(text), Offset: start}, nil
			}
			if c == '"' {
				if len(text) > 0 {
					return Token{Text: string(text), Offset: start}, nil
				}
				state = stateInString
			}
		case stateInString:
			switch c {
			case '\\':
				state = stateEscaping
			case '"':
				l.i++
				text = append(text, c)
				return Token{Text: string(text), Offset: start}, nil
			}
		case stateEscaping:
			state = stateInString
		}
		text = append(text, c)
		l.i++
	}
	return Token{Text: string(text), Offset: start}, nil
}
