// Package hook lets callers override how properties, objects and whole types
// are encoded or decoded. Each hook kind is a distinct function type, so the
// contract is checked by the compiler; Table.Set checks the key shape.
package hook

import (
	"sort"
	"strings"

	typecodec "github.com/reoring/typecodec"
	"github.com/reoring/typecodec/types"
)

// Generic keys.
const (
	KeyProperty = "property"
	KeyObject   = "object"
	KeyType     = "type"
)

// Context is handed to every hook.
type Context struct {
	Format    typecodec.Format
	Direction typecodec.Direction
	Config    typecodec.Config
}

// Property describes the property a property hook is asked about.
type Property struct {
	Class  string
	Name   string // declared (Go-derived or tagged) property name
	Key    string // wire key
	Type   types.Type
	Public bool
}

// PropertyOverride replaces parts of a property. Zero fields keep the
// defaults; the zero value declines.
type PropertyOverride struct {
	Name string // wire name
	Type string // type expression
	// Get reads the property from an instance. Serialize only.
	Get func(obj any) (any, error)
	// Set writes the decoded value into an instance. Deserialize only.
	Set func(obj any, v any) error
	// Transform rewrites the value: before encoding when serializing, after
	// decoding when deserializing.
	Transform func(v any) (any, error)
	Skip      bool
}

// IsZero reports whether the override changes nothing.
func (o PropertyOverride) IsZero() bool {
	return o.Name == "" && o.Type == "" && o.Get == nil && o.Set == nil && o.Transform == nil && !o.Skip
}

// Override replaces the codec of an object or a type. Serialize hooks set
// Encode, deserialize hooks set Decode; the zero value declines.
type Override struct {
	// Encode returns the native value (scalar, []any, *value.Dict, nil)
	// written in place of v.
	Encode func(v any) (any, error)
	// Decode turns the raw native value into the result.
	Decode func(raw any) (any, error)
}

// IsZero reports whether the override declines.
func (o Override) IsZero() bool { return o.Encode == nil && o.Decode == nil }

// PropertyFunc is a property hook (keys `Class::$prop`, `Class[key]`,
// `property`).
type PropertyFunc func(p Property, ctx Context) (PropertyOverride, error)

// ObjectFunc is an object hook (keys: exact class name, `object`).
type ObjectFunc func(class string, ctx Context) (Override, error)

// TypeFunc is a type hook (keys: exact type string, `?base`, `base`,
// `type`).
type TypeFunc func(t types.Type, ctx Context) (Override, error)

// Table holds the hooks of one direction.
type Table struct {
	property map[string]PropertyFunc
	object   map[string]ObjectFunc
	typ      map[string]TypeFunc
}

// Set registers fn under key. fn must be a PropertyFunc, ObjectFunc or
// TypeFunc (or a func literal with one of those signatures) matching the
// key shape.
func (t *Table) Set(key string, fn any) error {
	if key == "" {
		return invalid(key, "empty hook key")
	}
	switch f := fn.(type) {
	case func(Property, Context) (PropertyOverride, error):
		return t.Set(key, PropertyFunc(f))
	case func(string, Context) (Override, error):
		return t.Set(key, ObjectFunc(f))
	case func(types.Type, Context) (Override, error):
		return t.Set(key, TypeFunc(f))
	case PropertyFunc:
		if !isPropertyKey(key) {
			return invalid(key, "property hooks take `Class::$prop`, `Class[key]` or `property`")
		}
		if t.property == nil {
			t.property = map[string]PropertyFunc{}
		}
		t.property[key] = f
	case ObjectFunc:
		if isPropertyKey(key) || key == KeyType || strings.ContainsAny(key, "<>?|") {
			return invalid(key, "object hooks take a class name or `object`")
		}
		if t.object == nil {
			t.object = map[string]ObjectFunc{}
		}
		t.object[key] = f
	case TypeFunc:
		if isPropertyKey(key) || key == KeyObject {
			return invalid(key, "type hooks take a type string, `?base`, `base` or `type`")
		}
		if t.typ == nil {
			t.typ = map[string]TypeFunc{}
		}
		t.typ[key] = f
	case nil:
		return invalid(key, "nil hook")
	default:
		return invalid(key, "unsupported hook signature %T", fn)
	}
	return nil
}

func isPropertyKey(key string) bool {
	if key == KeyProperty {
		return true
	}
	if i := strings.Index(key, "::$"); i > 0 && i+3 < len(key) {
		return true
	}
	if i := strings.IndexByte(key, '['); i > 0 && strings.HasSuffix(key, "]") && i+1 < len(key)-1 {
		return true
	}
	return false
}

func invalid(key, format string, args ...any) error {
	it := typecodec.Errorf(typecodec.CodeInvalidHook, format, args...)
	it.Hint = key
	return it
}

// Len reports the number of registered hooks.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.property) + len(t.object) + len(t.typ)
}

// Keys lists registered keys, sorted; used to fingerprint configurations.
func (t *Table) Keys() []string {
	if t == nil {
		return nil
	}
	var out []string
	for k := range t.property {
		out = append(out, "property:"+k)
	}
	for k := range t.object {
		out = append(out, "object:"+k)
	}
	for k := range t.typ {
		out = append(out, "type:"+k)
	}
	sort.Strings(out)
	return out
}

// Property resolves a property hook. Keyed lookups (`Class[key]`) apply to
// the deserialize direction and are tried first when wireKey is non-empty;
// then `Class::$prop`, then `property`.
func (t *Table) Property(class, prop, wireKey string) (PropertyFunc, string, bool) {
	if t == nil || len(t.property) == 0 {
		return nil, "", false
	}
	var keys []string
	if wireKey != "" {
		keys = append(keys, class+"["+wireKey+"]")
	}
	keys = append(keys, class+"::$"+prop, KeyProperty)
	for _, k := range keys {
		if f, ok := t.property[k]; ok {
			return f, k, true
		}
	}
	return nil, "", false
}

// Object resolves an object hook: exact class name, then `object`.
func (t *Table) Object(class string) (ObjectFunc, string, bool) {
	if t == nil || len(t.object) == 0 {
		return nil, "", false
	}
	for _, k := range []string{class, KeyObject} {
		if f, ok := t.object[k]; ok {
			return f, k, true
		}
	}
	return nil, "", false
}

// Type resolves a type hook: exact type string, `?base` when typ is
// nullable, `base`, then `type`.
func (t *Table) Type(typ types.Type) (TypeFunc, string, bool) {
	if t == nil || len(t.typ) == 0 {
		return nil, "", false
	}
	keys := []string{typ.String()}
	base := typ.NonNull().Base()
	if typ.IsNullable() && !typ.IsNull() {
		keys = append(keys, "?"+base)
	}
	keys = append(keys, base, KeyType)
	for _, k := range keys {
		if f, ok := t.typ[k]; ok {
			return f, k, true
		}
	}
	return nil, "", false
}

// Hooks bundles both directions.
type Hooks struct {
	Serialize   Table
	Deserialize Table
}

// Table returns the table for direction d.
func (h *Hooks) Table(d typecodec.Direction) *Table {
	if h == nil {
		return nil
	}
	if d == typecodec.Serialize {
		return &h.Serialize
	}
	return &h.Deserialize
}

// CheckOverride validates an object or type override against the direction
// it was returned for.
func CheckOverride(o Override, d typecodec.Direction, key string) error {
	switch {
	case d == typecodec.Serialize && o.Decode != nil:
		return invalid(key, "serialize hook returned a decode function")
	case d == typecodec.Deserialize && o.Encode != nil:
		return invalid(key, "deserialize hook returned an encode function")
	}
	return nil
}

// CheckPropertyOverride validates a property override against the direction
// it was returned for.
func CheckPropertyOverride(o PropertyOverride, d typecodec.Direction, key string) error {
	switch {
	case d == typecodec.Serialize && o.Set != nil:
		return invalid(key, "serialize property hook returned a setter")
	case d == typecodec.Deserialize && o.Get != nil:
		return invalid(key, "deserialize property hook returned a getter")
	}
	return nil
}

// PropertyByKey returns the property hook registered under exactly key.
func (t *Table) PropertyByKey(key string) (PropertyFunc, bool) {
	if t == nil {
		return nil, false
	}
	f, ok := t.property[key]
	return f, ok
}

// ObjectByKey returns the object hook registered under exactly key.
func (t *Table) ObjectByKey(key string) (ObjectFunc, bool) {
	if t == nil {
		return nil, false
	}
	f, ok := t.object[key]
	return f, ok
}

// TypeByKey returns the type hook registered under exactly key.
func (t *Table) TypeByKey(key string) (TypeFunc, bool) {
	if t == nil {
		return nil, false
	}
	f, ok := t.typ[key]
	return f, ok
}
