package gen

import (
	"fmt"
	"math"
	"reflect"
	"sort"

	typecodec "github.com/reoring/typecodec"
	"github.com/reoring/typecodec/internal/emit"
	"github.com/reoring/typecodec/internal/ir"
	"github.com/reoring/typecodec/model"
	"github.com/reoring/typecodec/types"
	"github.com/reoring/typecodec/value"
)

type encodeFunc func(e emit.Emitter, v any, path string) error

// Encoder holds the encode providers of one serialize graph.
type Encoder struct {
	g     *ir.Graph
	reg   *model.Registry
	slots []encodeFunc
}

// NewEncoder generates the providers of g.
func NewEncoder(g *ir.Graph, reg *model.Registry) (*Encoder, error) {
	if g.Direction != typecodec.Serialize {
		return nil, typecodec.Errorf(typecodec.CodeInvalidType, "encoder needs a serialize graph, got %s", g.Direction)
	}
	enc := &Encoder{g: g, reg: reg, slots: make([]encodeFunc, len(g.Nodes))}
	for i := range g.Nodes {
		enc.slots[i] = enc.provider(g.Node(ir.Ref(i)))
	}
	return enc, nil
}

// Encode writes v to e and flushes it.
func (enc *Encoder) Encode(e emit.Emitter, v any) error {
	if err := enc.slots[enc.g.Root](e, v, ""); err != nil {
		return err
	}
	return e.Flush()
}

func (enc *Encoder) provider(n *ir.Node) encodeFunc {
	switch n.Kind {
	case ir.NodeScalar:
		return enc.scalar(n)
	case ir.NodeEnum:
		en := n.Enum
		return func(e emit.Emitter, v any, path string) error {
			w, ok := en.WireOf(v)
			if !ok {
				return enumError(path, n, v)
			}
			return e.Scalar(w)
		}
	case ir.NodeNullable:
		inner := n.Inner
		return func(e emit.Emitter, v any, path string) error {
			if isNil(v) {
				return e.Scalar(nil)
			}
			return enc.slots[inner](e, v, path)
		}
	case ir.NodeCollection:
		return enc.collection(n)
	case ir.NodeUnion:
		members := n.Members
		return func(e emit.Emitter, v any, path string) error {
			for _, m := range members {
				if enc.reg.Accepts(enc.g.Node(m).Type, v) {
					return enc.slots[m](e, v, path)
				}
			}
			return unexpectedType(path, n, v)
		}
	case ir.NodeObject:
		return enc.object(n)
	case ir.NodeHooked:
		encode := n.Override.Encode
		return func(e emit.Emitter, v any, path string) error {
			out, err := encode(v)
			if err != nil {
				return hookError(path, n, err)
			}
			return enc.native(e, out, path)
		}
	}
	return func(_ emit.Emitter, _ any, path string) error {
		return unexpectedType(path, n, nil)
	}
}

func (enc *Encoder) scalar(n *ir.Node) encodeFunc {
	sc := n.Type.Scalar()
	return func(e emit.Emitter, v any, path string) error {
		if sc == types.Mixed {
			return enc.native(e, v, path)
		}
		if sc == types.Null {
			if !isNil(v) {
				return unexpectedType(path, n, v)
			}
			return e.Scalar(nil)
		}
		out, ok := goScalar(sc, v)
		if !ok || enc.isEnum(v) {
			return unexpectedType(path, n, v)
		}
		return e.Scalar(out)
	}
}

func (enc *Encoder) isEnum(v any) bool {
	_, ok := enc.reg.EnumOf(v)
	return ok
}

// goScalar converts a Go scalar of any width to its native form.
func goScalar(sc types.Scalar, v any) (any, bool) {
	if v == nil {
		return nil, false
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil, false
		}
		rv = rv.Elem()
	}
	switch k := rv.Kind(); {
	case k >= reflect.Int && k <= reflect.Int64:
		switch sc {
		case types.Int:
			return rv.Int(), true
		case types.Float:
			return float64(rv.Int()), true
		}
	case k >= reflect.Uint && k <= reflect.Uint64:
		switch sc {
		case types.Int:
			if rv.Uint() > math.MaxInt64 {
				return nil, false
			}
			return int64(rv.Uint()), true
		case types.Float:
			return float64(rv.Uint()), true
		}
	case k == reflect.Float32 || k == reflect.Float64:
		if sc == types.Float {
			return rv.Float(), true
		}
	case k == reflect.String:
		if sc == types.String {
			return rv.String(), true
		}
	case k == reflect.Bool:
		if sc == types.Bool {
			return rv.Bool(), true
		}
	}
	return nil, false
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice:
		return rv.IsNil()
	}
	return false
}

// entries lists the (key, value) pairs of a collection value. dict reports
// whether the keys are wire keys rather than positions.
func entries(v any) (keys []string, vals []any, dict bool, err error) {
	switch c := v.(type) {
	case []any:
		return nil, c, false, nil
	case *value.Dict:
		c.Range(func(k string, item any) bool {
			keys = append(keys, k)
			vals = append(vals, item)
			return true
		})
		return keys, vals, true, nil
	case *value.Seq:
		collected, err := c.Collect()
		if err != nil {
			return nil, nil, false, err
		}
		return entries(collected)
	}
	if v == nil {
		return nil, nil, false, fmt.Errorf("nil collection")
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		vals = make([]any, rv.Len())
		for i := range vals {
			vals[i] = rv.Index(i).Interface()
		}
		return nil, vals, false, nil
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil, nil, false, fmt.Errorf("map keys must be strings, got %s", rv.Type().Key())
		}
		for _, k := range rv.MapKeys() {
			keys = append(keys, k.String())
		}
		sort.Strings(keys)
		vals = make([]any, len(keys))
		for i, k := range keys {
			vals[i] = rv.MapIndex(reflect.ValueOf(k).Convert(rv.Type().Key())).Interface()
		}
		return keys, vals, true, nil
	}
	return nil, nil, false, fmt.Errorf("%T is not a collection", v)
}

func (enc *Encoder) collection(n *ir.Node) encodeFunc {
	item := n.Item
	list, dict := n.Type.IsList(), n.Type.IsDict()
	return func(e emit.Emitter, v any, path string) error {
		keys, vals, isDict, err := entries(v)
		if err != nil {
			it := typecodec.NewIssue(typecodec.CodeUnexpectedType, path, n.Type.String())
			it.Message = err.Error()
			return it
		}
		if (list && isDict) || (dict && !isDict && len(vals) > 0) {
			return unexpectedType(path, n, v)
		}
		if dict || isDict {
			if err := e.BeginDict(); err != nil {
				return err
			}
			for i, k := range keys {
				if err := e.Key(k); err != nil {
					return err
				}
				if err := enc.slots[item](e, vals[i], typecodec.JoinPath(path, k)); err != nil {
					return err
				}
			}
			return e.End()
		}
		if err := e.BeginList(); err != nil {
			return err
		}
		for i, el := range vals {
			if err := enc.slots[item](e, el, typecodec.IndexPath(path, i)); err != nil {
				return err
			}
		}
		return e.End()
	}
}

func (enc *Encoder) object(n *ir.Node) encodeFunc {
	class := n.Class
	return func(e emit.Emitter, v any, path string) error {
		obj, rv, ok := enc.instance(class, v)
		if !ok {
			return unexpectedType(path, n, v)
		}
		if err := e.BeginDict(); err != nil {
			return err
		}
		for _, p := range n.Props {
			at := typecodec.JoinPath(path, p.Target)
			var (
				pv  any
				err error
			)
			if p.Get != nil {
				pv, err = p.Get(obj)
			} else {
				pv = rv.FieldByIndex(p.Index).Interface()
			}
			if err == nil && p.Transform != nil {
				pv, err = p.Transform(pv)
			}
			if err != nil {
				return hookError(at, n, err)
			}
			if err := e.Key(p.Target); err != nil {
				return err
			}
			if err := enc.slots[p.Value](e, pv, at); err != nil {
				return err
			}
		}
		return e.End()
	}
}

// instance returns v as a pointer to the class struct and the struct value.
// Subclass instances are narrowed to the embedded class struct.
func (enc *Encoder) instance(class *model.Class, v any) (any, reflect.Value, bool) {
	if isNil(v) {
		return nil, reflect.Value{}, false
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Pointer {
		p := reflect.New(rv.Type())
		p.Elem().Set(rv)
		rv = p
	}
	if sv, ok := embedded(rv.Elem(), class.GoType); ok {
		return sv.Addr().Interface(), sv, true
	}
	return nil, reflect.Value{}, false
}

func embedded(sv reflect.Value, want reflect.Type) (reflect.Value, bool) {
	if sv.Type() == want {
		return sv, true
	}
	if sv.Kind() != reflect.Struct {
		return reflect.Value{}, false
	}
	for i := 0; i < sv.NumField(); i++ {
		f := sv.Type().Field(i)
		if f.Anonymous && f.Type.Kind() == reflect.Struct {
			if out, ok := embedded(sv.Field(i), want); ok {
				return out, true
			}
		}
	}
	return reflect.Value{}, false
}

// native writes a value that has no graph node: mixed values and hook
// results. Registered objects and enums inside it keep their wire form.
func (enc *Encoder) native(e emit.Emitter, v any, path string) error {
	switch x := v.(type) {
	case nil, bool, int64, float64, string:
		return e.Scalar(x)
	case []any, *value.Dict, *value.Seq:
		return enc.nativeCollection(e, v, path)
	}
	if isNil(v) {
		return e.Scalar(nil)
	}
	if en, ok := enc.reg.EnumOf(v); ok {
		w, _ := en.WireOf(v)
		return e.Scalar(w)
	}
	if name, ok := enc.reg.ClassOf(v); ok {
		class, _ := enc.reg.Class(name)
		_, rv, _ := enc.instance(class, v)
		if err := e.BeginDict(); err != nil {
			return err
		}
		for _, p := range class.Props {
			if !p.Public {
				continue
			}
			if err := e.Key(p.Name); err != nil {
				return err
			}
			if err := enc.native(e, rv.FieldByIndex(p.Index).Interface(), typecodec.JoinPath(path, p.Name)); err != nil {
				return err
			}
		}
		return e.End()
	}
	for _, sc := range []types.Scalar{types.Int, types.Float, types.String, types.Bool} {
		if out, ok := goScalar(sc, v); ok {
			return e.Scalar(out)
		}
	}
	return enc.nativeCollection(e, v, path)
}

func (enc *Encoder) nativeCollection(e emit.Emitter, v any, path string) error {
	keys, vals, dict, err := entries(v)
	if err != nil {
		it := typecodec.NewIssue(typecodec.CodeUnexpectedType, path, "mixed")
		it.Message = err.Error()
		return it
	}
	if dict {
		if err := e.BeginDict(); err != nil {
			return err
		}
		for i, k := range keys {
			if err := e.Key(k); err != nil {
				return err
			}
			if err := enc.native(e, vals[i], typecodec.JoinPath(path, k)); err != nil {
				return err
			}
		}
		return e.End()
	}
	if err := e.BeginList(); err != nil {
		return err
	}
	for i, item := range vals {
		if err := enc.native(e, item, typecodec.IndexPath(path, i)); err != nil {
			return err
		}
	}
	return e.End()
}
