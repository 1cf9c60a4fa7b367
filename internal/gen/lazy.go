package gen

import (
	"io"

	typecodec "github.com/reoring/typecodec"
	"github.com/reoring/typecodec/internal/engine"
	"github.com/reoring/typecodec/internal/instantiate"
	"github.com/reoring/typecodec/internal/ir"
	"github.com/reoring/typecodec/internal/stream"
	"github.com/reoring/typecodec/types"
	"github.com/reoring/typecodec/value"
)

// lazyProvider decodes straight from the resource. Containers are split once
// and children are decoded on demand; leaves are parsed and handed to the
// eager provider of the same node.
func (d *Decoder) lazyProvider(ref ir.Ref) lazyFunc {
	n := d.g.Node(ref)
	switch n.Kind {
	case ir.NodeNullable:
		inner := n.Inner
		return func(s *state, r io.ReaderAt, b stream.Boundary, path string) (any, error) {
			null, err := stream.IsNull(r, b)
			if err != nil {
				return nil, at(err, path)
			}
			if null {
				return nil, nil
			}
			return d.lazy[inner](s, r, b, path)
		}
	case ir.NodeCollection:
		return d.lazyCollection(n)
	case ir.NodeObject:
		return d.lazyObject(n)
	case ir.NodeUnion:
		if n.Selected != ir.None {
			sel := n.Selected
			return func(s *state, r io.ReaderAt, b stream.Boundary, path string) (any, error) {
				return d.lazy[sel](s, r, b, path)
			}
		}
	}
	return d.leaf(ref)
}

func (d *Decoder) leaf(ref ir.Ref) lazyFunc {
	return func(s *state, r io.ReaderAt, b stream.Boundary, path string) (any, error) {
		data, err := stream.Read(r, b)
		if err != nil {
			return nil, at(err, path)
		}
		raw, err := engine.DecodeJSONBytes(data, d.cfg.JSON.MaxDepth)
		if err != nil {
			return nil, at(err, path)
		}
		return d.eager[ref](s, raw, path)
	}
}

func (d *Decoder) lazyCollection(n *ir.Node) lazyFunc {
	item := n.Item
	iterable := n.Type.Destination() == types.DestIterable
	list, dict := n.Type.IsList(), n.Type.IsDict()
	return func(s *state, r io.ReaderAt, b stream.Boundary, path string) (any, error) {
		c, err := stream.Split(r, b)
		if err != nil {
			return nil, at(err, path)
		}
		switch {
		case c == nil:
			return nil, unexpectedValue(path, n, "null is not a collection")
		case c.Dict && list:
			return nil, unexpectedValue(path, n, "expected a list, got a dict")
		case !c.Dict && dict && len(c.Children) > 0:
			return nil, unexpectedValue(path, n, "expected a dict, got a list")
		}
		keys := make([]any, len(c.Children))
		for i, ch := range c.Children {
			if !c.Dict {
				keys[i] = int64(i)
				continue
			}
			k, err := stream.DecodeKey(ch.RawKey)
			if err != nil {
				return nil, at(err, path)
			}
			keys[i] = k
		}
		get := func(i int) (any, error) {
			return d.lazy[item](s, r, c.Children[i].Boundary, childPath(path, keys[i]))
		}
		if iterable {
			return value.NewSeq(keys, get), nil
		}
		return materialize(keys, dict || c.Dict, get)
	}
}

func (d *Decoder) lazyObject(n *ir.Node) lazyFunc {
	return func(s *state, r io.ReaderAt, b stream.Boundary, path string) (any, error) {
		c, err := stream.Split(r, b)
		if err != nil {
			return nil, at(err, path)
		}
		if c == nil || !c.Dict {
			return nil, unexpectedValue(path, n, "expected an object")
		}
		children := make(map[string]stream.Boundary, len(c.Children))
		for _, ch := range c.Children {
			k, err := stream.DecodeKey(ch.RawKey)
			if err != nil {
				return nil, at(err, path)
			}
			children[k] = ch.Boundary
		}
		props := make(map[string]instantiate.Provider, len(n.Props)+len(n.Params))
		bind := func(key string, ref ir.Ref, transform func(any) (any, error)) {
			cb, ok := children[key]
			if !ok {
				return
			}
			p := typecodec.JoinPath(path, key)
			props[key] = func() (any, error) {
				out, err := d.lazy[ref](s, r, cb, p)
				if err != nil || transform == nil {
					return out, err
				}
				if out, err = transform(out); err != nil {
					return nil, hookError(p, n, err)
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

// at fills in the path of resource issues raised below a provider.
func at(err error, path string) error {
	it, ok := err.(typecodec.Issue)
	if !ok || it.Path != "" {
		return err
	}
	it.Path = path
	return it
}
