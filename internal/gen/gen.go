// Package gen turns an ir.Graph into provider closures. There is one provider
// per node; providers reach each other through slots indexed by node ref, so
// shared and ghost nodes are generated once.
package gen

import (
	"fmt"

	typecodec "github.com/reoring/typecodec"
	"github.com/reoring/typecodec/i18n"
	"github.com/reoring/typecodec/internal/instantiate"
	"github.com/reoring/typecodec/internal/ir"
	"github.com/reoring/typecodec/model"
)

// state is the per-call context threaded through providers.
type state struct {
	inst *instantiate.Instantiator
}

func newState(reg *model.Registry, col *typecodec.Collector) *state {
	return &state{inst: &instantiate.Instantiator{Registry: reg, Collector: col}}
}

// strict returns a copy that reports every failure; union trials use it so
// a rejected branch leaves no collected issues behind.
func (s *state) strict() *state {
	if s.inst.Collector == nil {
		return s
	}
	return &state{inst: &instantiate.Instantiator{Registry: s.inst.Registry}}
}

func unexpectedValue(path string, n *ir.Node, format string, args ...any) error {
	it := typecodec.NewIssue(typecodec.CodeUnexpectedValue, path, n.Type.String())
	if format != "" {
		it.Message = fmt.Sprintf(format, args...)
	}
	return it
}

func unexpectedType(path string, n *ir.Node, v any) error {
	it := typecodec.NewIssue(typecodec.CodeUnexpectedType, path, n.Type.String())
	it.Message = fmt.Sprintf("%T does not match %s", v, n.Type)
	return it
}

func enumError(path string, n *ir.Node, raw any) error {
	it := typecodec.NewIssue(typecodec.CodeUnexpectedValue, path, n.Type.String())
	it.Message = fmt.Sprintf("%s: %v", i18n.T("enum_value", nil), raw)
	return it
}

// hookError keeps issues raised by hooks and wraps anything else.
func hookError(path string, n *ir.Node, err error) error {
	if it, ok := typecodec.AsIssue(err); ok {
		if it.Path == "" {
			it.Path = path
		}
		return it
	}
	it := typecodec.NewIssue(typecodec.CodeUnexpectedValue, path, n.HookKey).WithCause(err)
	return it
}
