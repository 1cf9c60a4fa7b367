// Package emit writes the event stream produced by encode providers. Each
// format has its own Emitter; the tree emitter builds native values.
package emit

import (
	"fmt"

	typecodec "github.com/reoring/typecodec"
)

// Emitter receives a depth-first walk of one value. Scalars are nil, int64,
// float64, string or bool. Inside a dict every value is preceded by Key.
type Emitter interface {
	BeginList() error
	BeginDict() error
	Key(k string) error
	End() error
	Scalar(v any) error
	// Flush completes the output once the root value has been written.
	Flush() error
}

// New returns the emitter for format f writing to w.
func New(f typecodec.Format, w Writer, cfg typecodec.Config) (Emitter, error) {
	switch f {
	case typecodec.FormatJSON:
		return NewJSON(w, cfg.JSON), nil
	case typecodec.FormatCSV:
		return NewCSV(w, cfg.CSV), nil
	}
	it := typecodec.NewIssue(typecodec.CodeUnknownFormat, "", string(f))
	return nil, it
}

// Writer is the sink of the byte emitters.
type Writer interface {
	Write(p []byte) (int, error)
}

// frame tracks one open container.
type frame struct {
	dict   bool
	n      int  // values written
	keyed  bool // dict: key written, value pending
	keyBuf string
}

type stack []frame

func (s *stack) push(dict bool) { *s = append(*s, frame{dict: dict}) }

func (s *stack) top() *frame {
	if len(*s) == 0 {
		return nil
	}
	return &(*s)[len(*s)-1]
}

func (s *stack) pop() (frame, error) {
	f := s.top()
	if f == nil {
		return frame{}, fmt.Errorf("emit: End without an open container")
	}
	if f.keyed {
		return frame{}, fmt.Errorf("emit: key %q has no value", f.keyBuf)
	}
	out := *f
	*s = (*s)[:len(*s)-1]
	return out, nil
}

// value checks that a value may be written at the current position and
// records it.
func (s *stack) value() error {
	f := s.top()
	if f == nil {
		return nil
	}
	if f.dict {
		if !f.keyed {
			return fmt.Errorf("emit: dict value without a key")
		}
		f.keyed = false
	}
	f.n++
	return nil
}

func (s *stack) key(k string) error {
	f := s.top()
	if f == nil || !f.dict {
		return fmt.Errorf("emit: key %q outside a dict", k)
	}
	if f.keyed {
		return fmt.Errorf("emit: key %q follows key %q", k, f.keyBuf)
	}
	f.keyed, f.keyBuf = true, k
	return nil
}
