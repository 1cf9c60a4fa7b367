package gen

import (
	"io"

	typecodec "github.com/reoring/typecodec"
	"github.com/reoring/typecodec/i18n"
	"github.com/reoring/typecodec/internal/engine"
	"github.com/reoring/typecodec/internal/instantiate"
	"github.com/reoring/typecodec/internal/ir"
	"github.com/reoring/typecodec/internal/stream"
	"github.com/reoring/typecodec/model"
	"github.com/reoring/typecodec/types"
	"github.com/reoring/typecodec/value"
)

type eagerFunc func(s *state, raw any, path string) (any, error)

type lazyFunc func(s *state, r io.ReaderAt, b stream.Boundary, path string) (any, error)

// Decoder holds the decode providers of one deserialize graph.
type Decoder struct {
	g     *ir.Graph
	reg   *model.Registry
	cfg   typecodec.Config
	eager []eagerFunc
	lazy  []lazyFunc
}

// NewDecoder generates the providers of g. Lazy graphs get lazy providers on
// top of the eager ones, which they use for leaves.
func NewDecoder(g *ir.Graph, reg *model.Registry, cfg typecodec.Config) (*Decoder, error) {
	if g.Direction != typecodec.Deserialize {
		return nil, typecodec.Errorf(typecodec.CodeInvalidType, "decoder needs a deserialize graph, got %s", g.Direction)
	}
	switch g.Format {
	case typecodec.FormatJSON:
	case typecodec.FormatCSV:
		if g.Strategy == typecodec.Lazy {
			it := typecodec.NewIssue(typecodec.CodeUnknownFormat, "", "lazy csv")
			it.Message = "csv is decoded eagerly only"
			return nil, it
		}
	default:
		return nil, typecodec.NewIssue(typecodec.CodeUnknownFormat, "", string(g.Format))
	}
	d := &Decoder{g: g, reg: reg, cfg: cfg, eager: make([]eagerFunc, len(g.Nodes))}
	for i := range g.Nodes {
		d.eager[i] = d.eagerProvider(g.Node(ir.Ref(i)))
	}
	if g.Strategy == typecodec.Lazy {
		d.lazy = make([]lazyFunc, len(g.Nodes))
		for i := range g.Nodes {
			d.lazy[i] = d.lazyProvider(ir.Ref(i))
		}
	}
	return d, nil
}

// Decode reads the whole resource. With a non-nil collector, failures below
// an object are recorded and decoding continues.
func (d *Decoder) Decode(r io.ReaderAt, col *typecodec.Collector) (any, error) {
	s := newState(d.reg, col)
	if d.lazy != nil {
		return d.lazy[d.g.Root](s, r, stream.Whole, "")
	}
	var (
		raw any
		err error
	)
	if d.g.Format == typecodec.FormatCSV {
		raw, err = engine.DecodeCSV(r, d.cfg.CSV)
	} else {
		raw, err = engine.DecodeJSON(r, d.cfg.JSON.MaxDepth)
	}
	if err != nil {
		return nil, err
	}
	return d.eager[d.g.Root](s, raw, "")
}

// DecodeValue decodes an already parsed native value.
func (d *Decoder) DecodeValue(raw any, col *typecodec.Collector) (any, error) {
	return d.eager[d.g.Root](newState(d.reg, col), raw, "")
}

func (d *Decoder) csv() bool { return d.g.Format == typecodec.FormatCSV }

func (d *Decoder) eagerProvider(n *ir.Node) eagerFunc {
	switch n.Kind {
	case ir.NodeScalar:
		sc := n.Type.Scalar()
		return func(_ *state, raw any, path string) (any, error) {
			if raw == nil && sc != types.Null && sc != types.Mixed {
				return nil, unexpectedValue(path, n, "null is not %s", sc)
			}
			v, ok := engine.Cast(sc, raw)
			if !ok {
				return nil, unexpectedValue(path, n, "cannot cast %v to %s", raw, sc)
			}
			return v, nil
		}
	case ir.NodeEnum:
		e := n.Enum
		return func(_ *state, raw any, path string) (any, error) {
			wire := raw
			if e.Backing != "" {
				cast, ok := engine.Cast(e.Backing, raw)
				if !ok {
					return nil, enumError(path, n, raw)
				}
				wire = cast
			}
			v, ok := e.From(wire)
			if !ok {
				return nil, enumError(path, n, raw)
			}
			return v, nil
		}
	case ir.NodeNullable:
		inner := n.Inner
		return func(s *state, raw any, path string) (any, error) {
			if raw == nil || (d.csv() && raw == "") {
				return nil, nil
			}
			return d.eager[inner](s, raw, path)
		}
	case ir.NodeCollection:
		return d.eagerCollection(n)
	case ir.NodeUnion:
		return d.eagerUnion(n)
	case ir.NodeObject:
		return d.eagerObject(n)
	case ir.NodeHooked:
		decode := n.Override.Decode
		return func(_ *state, raw any, path string) (any, error) {
			v, err := decode(raw)
			if err != nil {
				return nil, hookError(path, n, err)
			}
			return v, nil
		}
	}
	return func(_ *state, _ any, path string) (any, error) {
		return nil, unexpectedValue(path, n, "no provider for %s node", n.Kind)
	}
}

func (d *Decoder) eagerCollection(n *ir.Node) eagerFunc {
	item := n.Item
	iterable := n.Type.Destination() == types.DestIterable
	list, dict := n.Type.IsList(), n.Type.IsDict()
	return func(s *state, raw any, path string) (any, error) {
		var (
			keys []any
			vals []any
		)
		switch c := raw.(type) {
		case []any:
			if dict && len(c) > 0 {
				return nil, unexpectedValue(path, n, "expected a dict, got a list")
			}
			keys, vals = value.ListKeys(len(c)), c
		case *value.Dict:
			if list {
				return nil, unexpectedValue(path, n, "expected a list, got a dict")
			}
			c.Range(func(k string, v any) bool {
				keys = append(keys, k)
				vals = append(vals, v)
				return true
			})
		default:
			return nil, unexpectedValue(path, n, "expected a collection, got %T", raw)
		}
		at := func(i int) (any, error) {
			return d.eager[item](s, vals[i], childPath(path, keys[i]))
		}
		if iterable {
			return value.NewSeq(keys, at), nil
		}
		return materialize(keys, dict || isDictRaw(raw), at)
	}
}

func isDictRaw(raw any) bool {
	_, ok := raw.(*value.Dict)
	return ok
}

func materialize(keys []any, dict bool, at func(int) (any, error)) (any, error) {
	if dict {
		out := value.NewDict(len(keys))
		for i, k := range keys {
			v, err := at(i)
			if err != nil {
				return nil, err
			}
			out.Set(value.KeyString(k), v)
		}
		return out, nil
	}
	out := make([]any, 0, len(keys))
	for i := range keys {
		v, err := at(i)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func childPath(path string, key any) string {
	if n, ok := key.(int64); ok {
		return typecodec.IndexPath(path, int(n))
	}
	return typecodec.JoinPath(path, value.KeyString(key))
}

func (d *Decoder) eagerUnion(n *ir.Node) eagerFunc {
	if n.Selected != ir.None {
		sel := n.Selected
		return func(s *state, raw any, path string) (any, error) { return d.eager[sel](s, raw, path) }
	}
	members := n.Members
	return func(s *state, raw any, path string) (any, error) {
		var (
			out  any
			hits int
		)
		trial := s.strict()
		for _, m := range members {
			v, err := d.eager[m](trial, raw, path)
			if err != nil {
				continue
			}
			out = v
			hits++
		}
		if hits != 1 {
			it := typecodec.NewIssue(typecodec.CodeUnexpectedValue, path, n.Type.String())
			it.Message = i18n.T("union_no_selector", nil)
			return nil, it
		}
		return out, nil
	}
}

func (d *Decoder) eagerObject(n *ir.Node) eagerFunc {
	return func(s *state, raw any, path string) (any, error) {
		obj, ok := raw.(*value.Dict)
		if !ok {
			return nil, unexpectedValue(path, n, "expected an object, got %T", raw)
		}
		props := make(map[string]instantiate.Provider, len(n.Props)+len(n.Params))
		bind := func(key string, ref ir.Ref, transform func(any) (any, error)) {
			v, ok := obj.Get(key)
			if !ok {
				return
			}
			at := typecodec.JoinPath(path, key)
			props[key] = func() (any, error) {
				out, err := d.eager[ref](s, v, at)
				if err != nil || transform == nil {
					return out, err
				}
				if out, err = transform(out); err != nil {
					return nil, hookError(at, n, err)
				}
				return out, nil
			}
		}
		for _, p := range n.Params {
			bind(p.Key, p.Value, nil)
		}
		for _, p := range n.Props {
			bind(p.Target, p.Value, p.Transform)
		}
		return s.inst.Instantiate(n, path, props)
	}
}
