package model

import (
	"fmt"
	"math"
	"reflect"

	"github.com/reoring/typecodec/types"
	"github.com/reoring/typecodec/value"
)

// Convert turns a native decoded value into a value assignable to a Go
// destination of type to.
func (r *Registry) Convert(v any, to reflect.Type) (reflect.Value, error) {
	if v == nil {
		switch to.Kind() {
		case reflect.Pointer, reflect.Interface, reflect.Slice, reflect.Map:
			return reflect.Zero(to), nil
		}
		return reflect.Value{}, fmt.Errorf("cannot assign null to %s", to)
	}
	rv := reflect.ValueOf(v)
	if rv.Type().AssignableTo(to) {
		return rv, nil
	}
	if seq, ok := v.(*value.Seq); ok && to.Kind() != reflect.Interface {
		all, err := seq.Collect()
		if err != nil {
			return reflect.Value{}, err
		}
		return r.Convert(all, to)
	}
	switch to.Kind() {
	case reflect.Pointer:
		if rv.Kind() == reflect.Pointer {
			break
		}
		inner, err := r.Convert(v, to.Elem())
		if err != nil {
			return reflect.Value{}, err
		}
		p := reflect.New(to.Elem())
		p.Elem().Set(inner)
		return p, nil
	case reflect.Struct:
		if rv.Kind() == reflect.Pointer && rv.Type().Elem() == to && !rv.IsNil() {
			return rv.Elem(), nil
		}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if r.isEnumType(to) {
			break
		}
		if n, ok := v.(int64); ok {
			out := reflect.New(to).Elem()
			if out.OverflowInt(n) {
				return reflect.Value{}, fmt.Errorf("%d overflows %s", n, to)
			}
			out.SetInt(n)
			return out, nil
		}
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		if r.isEnumType(to) {
			break
		}
		if n, ok := v.(int64); ok {
			out := reflect.New(to).Elem()
			if n < 0 || out.OverflowUint(uint64(n)) {
				return reflect.Value{}, fmt.Errorf("%d overflows %s", n, to)
			}
			out.SetUint(uint64(n))
			return out, nil
		}
	case reflect.Float32, reflect.Float64:
		out := reflect.New(to).Elem()
		switch n := v.(type) {
		case float64:
			if to.Kind() == reflect.Float32 && math.Abs(n) > math.MaxFloat32 && !math.IsInf(n, 0) {
				return reflect.Value{}, fmt.Errorf("%v overflows %s", n, to)
			}
			out.SetFloat(n)
			return out, nil
		case int64:
			out.SetFloat(float64(n))
			return out, nil
		}
	case reflect.String:
		if s, ok := v.(string); ok && !r.isEnumType(to) {
			return reflect.ValueOf(s).Convert(to), nil
		}
	case reflect.Bool:
		if b, ok := v.(bool); ok {
			return reflect.ValueOf(b).Convert(to), nil
		}
	case reflect.Slice:
		if list, ok := v.([]any); ok {
			out := reflect.MakeSlice(to, len(list), len(list))
			for i, item := range list {
				ev, err := r.Convert(item, to.Elem())
				if err != nil {
					return reflect.Value{}, fmt.Errorf("[%d]: %w", i, err)
				}
				out.Index(i).Set(ev)
			}
			return out, nil
		}
	case reflect.Map:
		d, ok := v.(*value.Dict)
		if !ok || to.Key().Kind() != reflect.String {
			break
		}
		out := reflect.MakeMapWithSize(to, d.Len())
		var err error
		d.Range(func(k string, item any) bool {
			var ev reflect.Value
			if ev, err = r.Convert(item, to.Elem()); err != nil {
				err = fmt.Errorf("[%s]: %w", k, err)
				return false
			}
			out.SetMapIndex(reflect.ValueOf(k).Convert(to.Key()), ev)
			return true
		})
		if err != nil {
			return reflect.Value{}, err
		}
		return out, nil
	}
	return reflect.Value{}, fmt.Errorf("cannot assign %T to %s", v, to)
}

func (r *Registry) isEnumType(rt reflect.Type) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.enumByGo[rt]
	return ok
}

// Accepts reports whether v is a valid native value of t. Collections are
// checked element by element except lazy sequences, which are checked on
// consumption.
func (r *Registry) Accepts(t types.Type, v any) bool {
	switch t.Kind() {
	case types.KindScalar:
		if _, isEnum := r.EnumOf(v); isEnum && !t.IsMixed() {
			return false
		}
		return acceptsScalar(t.Scalar(), v)
	case types.KindEnum:
		e, ok := r.Enum(t.Class())
		return ok && v != nil && reflect.TypeOf(v) == e.GoType
	case types.KindObject:
		name, ok := r.ClassOf(v)
		if !ok {
			// Unregistered Go types are only produced by type hooks.
			return v != nil && derefName(v) == t.Class()
		}
		return name == t.Class() || r.IsSubclassOf(name, t.Class())
	case types.KindCollection:
		return r.acceptsCollection(t, v)
	case types.KindUnion:
		for _, m := range t.Members() {
			if r.Accepts(m, v) {
				return true
			}
		}
	}
	return false
}

func derefName(v any) string {
	rt := reflect.TypeOf(v)
	for rt.Kind() == reflect.Pointer {
		rt = rt.Elem()
	}
	return rt.PkgPath() + "." + rt.Name()
}

func acceptsScalar(s types.Scalar, v any) bool {
	switch s {
	case types.Mixed:
		return true
	case types.Null:
		return v == nil
	}
	if v == nil {
		return false
	}
	k := reflect.TypeOf(v).Kind()
	switch s {
	case types.Int:
		return k >= reflect.Int && k <= reflect.Uint64
	case types.Float:
		return k == reflect.Float32 || k == reflect.Float64 || (k >= reflect.Int && k <= reflect.Uint64)
	case types.String:
		return k == reflect.String
	case types.Bool:
		return k == reflect.Bool
	}
	return false
}

func (r *Registry) acceptsCollection(t types.Type, v any) bool {
	item := t.ValueType()
	switch c := v.(type) {
	case *value.Seq:
		return true
	case []any:
		if t.IsDict() && len(c) > 0 {
			return false
		}
		for _, e := range c {
			if !r.Accepts(item, e) {
				return false
			}
		}
		return true
	case *value.Dict:
		if t.IsList() {
			return false
		}
		ok := true
		c.Range(func(_ string, e any) bool {
			ok = r.Accepts(item, e)
			return ok
		})
		return ok
	}
	if v == nil {
		return false
	}
	switch reflect.TypeOf(v).Kind() {
	case reflect.Slice, reflect.Array:
		return !t.IsDict()
	case reflect.Map:
		return !t.IsList()
	}
	return false
}
