package emit

import (
	"bufio"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/goccy/go-json"

	typecodec "github.com/reoring/typecodec"
)

// JSON streams a JSON document.
type JSON struct {
	w     *bufio.Writer
	opts  typecodec.JSONOptions
	st    stack
	count int // root values written
}

// NewJSON returns a JSON emitter.
func NewJSON(w Writer, opts typecodec.JSONOptions) *JSON {
	return &JSON{w: bufio.NewWriter(w), opts: opts}
}

func (e *JSON) BeginList() error { return e.open('[', false) }
func (e *JSON) BeginDict() error { return e.open('{', true) }

func (e *JSON) open(c byte, dict bool) error {
	if err := e.before(); err != nil {
		return err
	}
	e.st.push(dict)
	return e.w.WriteByte(c)
}

func (e *JSON) End() error {
	f, err := e.st.pop()
	if err != nil {
		return err
	}
	if f.n > 0 {
		e.newline()
	}
	if f.dict {
		return e.w.WriteByte('}')
	}
	return e.w.WriteByte(']')
}

func (e *JSON) Key(k string) error {
	if err := e.st.key(k); err != nil {
		return err
	}
	if e.st.top().n > 0 {
		e.w.WriteByte(',')
	}
	e.newline()
	if err := e.str(k); err != nil {
		return err
	}
	e.w.WriteByte(':')
	if e.opts.Indent != "" {
		e.w.WriteByte(' ')
	}
	return nil
}

// before writes the separator preceding a value.
func (e *JSON) before() error {
	f := e.st.top()
	if f == nil {
		if e.count > 0 {
			return fmt.Errorf("emit: second root value")
		}
		e.count++
		return nil
	}
	if !f.dict {
		if f.n > 0 {
			e.w.WriteByte(',')
		}
		e.newline()
	}
	return e.st.value()
}

func (e *JSON) newline() {
	if e.opts.Indent == "" {
		return
	}
	e.w.WriteByte('\n')
	e.w.WriteString(strings.Repeat(e.opts.Indent, len(e.st)))
}

func (e *JSON) Scalar(v any) error {
	if err := e.before(); err != nil {
		return err
	}
	switch x := v.(type) {
	case nil:
		_, err := e.w.WriteString("null")
		return err
	case bool:
		_, err := e.w.WriteString(strconv.FormatBool(x))
		return err
	case int64:
		_, err := e.w.WriteString(strconv.FormatInt(x, 10))
		return err
	case float64:
		return e.float(x)
	case string:
		return e.str(x)
	}
	return fmt.Errorf("emit: unsupported scalar %T", v)
}

func (e *JSON) float(f float64) error {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return typecodec.Errorf(typecodec.CodeUnexpectedValue, "%v cannot be encoded as JSON", f)
	}
	b, err := json.Marshal(f)
	if err != nil {
		return err
	}
	if e.opts.PreserveZeroFraction && !strings.ContainsAny(string(b), ".eE") {
		b = append(b, '.', '0')
	}
	_, err = e.w.Write(b)
	return err
}

func (e *JSON) str(s string) error {
	var (
		b   []byte
		err error
	)
	if e.opts.EscapeHTML {
		b, err = json.Marshal(s)
	} else {
		b, err = json.MarshalNoEscape(s)
	}
	if err != nil {
		return err
	}
	_, err = e.w.Write(b)
	return err
}

func (e *JSON) Flush() error {
	if len(e.st) > 0 {
		return fmt.Errorf("emit: %d containers left open", len(e.st))
	}
	return e.w.Flush()
}
