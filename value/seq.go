package value

import (
	"iter"
	"strconv"
)

// Seq is a lazily decoded collection. Elements are produced on first access
// and cached; keys are int64 positions for lists and strings for dicts.
type Seq struct {
	keys []any
	at   func(i int) (any, error)
	vals []any
	done []bool
	err  error
}

// NewSeq returns a sequence of len(keys) elements produced by at.
func NewSeq(keys []any, at func(i int) (any, error)) *Seq {
	return &Seq{keys: keys, at: at, vals: make([]any, len(keys)), done: make([]bool, len(keys))}
}

// ListKeys returns the positional keys 0..n-1.
func ListKeys(n int) []any {
	out := make([]any, n)
	for i := range out {
		out[i] = int64(i)
	}
	return out
}

// Len returns the number of elements; it never decodes.
func (s *Seq) Len() int { return len(s.keys) }

// Key returns the key of element i.
func (s *Seq) Key(i int) any { return s.keys[i] }

// At decodes element i.
func (s *Seq) At(i int) (any, error) {
	if s.done[i] {
		return s.vals[i], nil
	}
	v, err := s.at(i)
	if err != nil {
		return nil, err
	}
	s.vals[i], s.done[i] = v, true
	return v, nil
}

// All iterates over (key, value) pairs. Iteration stops at the first decode
// error, which Err then reports.
func (s *Seq) All() iter.Seq2[any, any] {
	return func(yield func(any, any) bool) {
		s.err = nil
		for i := range s.keys {
			v, err := s.At(i)
			if err != nil {
				s.err = err
				return
			}
			if !yield(s.keys[i], v) {
				return
			}
		}
	}
}

// Err returns the error that stopped the last All iteration.
func (s *Seq) Err() error { return s.err }

// Collect decodes every element into []any when all keys are positional and
// into *Dict otherwise.
func (s *Seq) Collect() (any, error) {
	positional := true
	for i, k := range s.keys {
		if n, ok := k.(int64); !ok || n != int64(i) {
			positional = false
			break
		}
	}
	if positional {
		out := make([]any, 0, len(s.keys))
		for i := range s.keys {
			v, err := s.At(i)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	}
	d := NewDict(len(s.keys))
	for i, k := range s.keys {
		v, err := s.At(i)
		if err != nil {
			return nil, err
		}
		d.Set(KeyString(k), v)
	}
	return d, nil
}

// KeyString renders a collection key as a wire key.
func KeyString(k any) string {
	switch kk := k.(type) {
	case string:
		return kk
	case int64:
		return strconv.FormatInt(kk, 10)
	}
	return ""
}
