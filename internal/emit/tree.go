package emit

import (
	"fmt"

	"github.com/reoring/typecodec/value"
)

// Tree builds native values ([]any, *value.Dict, scalars) instead of bytes.
// Hook encoders and the CSV emitter use it to materialize subtrees.
type Tree struct {
	st    stack
	nodes []any // open containers, parallel to st
	root  any
	done  bool
}

// NewTree returns an empty tree emitter.
func NewTree() *Tree { return &Tree{} }

func (t *Tree) BeginList() error { return t.open([]any{}, false) }
func (t *Tree) BeginDict() error { return t.open(value.NewDict(0), true) }

func (t *Tree) open(c any, dict bool) error {
	if err := t.before(); err != nil {
		return err
	}
	t.st.push(dict)
	t.nodes = append(t.nodes, c)
	return nil
}

func (t *Tree) before() error {
	if len(t.st) == 0 && t.done {
		return fmt.Errorf("emit: second root value")
	}
	return t.st.value()
}

func (t *Tree) Key(k string) error { return t.st.key(k) }

func (t *Tree) Scalar(v any) error {
	if err := t.before(); err != nil {
		return err
	}
	t.place(v)
	return nil
}

func (t *Tree) End() error {
	if _, err := t.st.pop(); err != nil {
		return err
	}
	c := t.nodes[len(t.nodes)-1]
	t.nodes = t.nodes[:len(t.nodes)-1]
	t.place(c)
	return nil
}

// place attaches a completed value to its parent.
func (t *Tree) place(v any) {
	if len(t.st) == 0 {
		t.root, t.done = v, true
		return
	}
	parent := &t.nodes[len(t.nodes)-1]
	switch p := (*parent).(type) {
	case []any:
		*parent = append(p, v)
	case *value.Dict:
		p.Set(t.st.top().keyBuf, v)
	}
}

func (t *Tree) Flush() error {
	if len(t.st) > 0 {
		return fmt.Errorf("emit: %d containers left open", len(t.st))
	}
	return nil
}

// Value returns the root value.
func (t *Tree) Value() any { return t.root }
