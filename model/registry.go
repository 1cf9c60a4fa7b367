// Package model maps class and enum names used in type expressions to Go
// types. A Registry is explicitly constructed and owned by its caller.
package model

import (
	"reflect"
	"sort"
	"sync"

	"github.com/zoobzio/sentinel"

	typecodec "github.com/reoring/typecodec"
	"github.com/reoring/typecodec/types"
	"github.com/reoring/typecodec/value"
)

func init() {
	sentinel.Tag(tagName)
}

const tagName = "codec"

// Registry holds class and enum metadata. Registration is expected to happen
// before codecs are compiled; lookups are safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	classes   map[string]*Class
	classByGo map[reflect.Type]string
	enums     map[string]*Enum
	enumByGo  map[reflect.Type]string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		classes:   map[string]*Class{},
		classByGo: map[reflect.Type]string{},
		enums:     map[string]*Enum{},
		enumByGo:  map[reflect.Type]string{},
	}
}

// Class returns the class registered under name.
func (r *Registry) Class(name string) (*Class, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.classes[name]
	return c, ok
}

// Enum returns the enum registered under name.
func (r *Registry) Enum(name string) (*Enum, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.enums[name]
	return e, ok
}

// ClassOf returns the class name registered for the dynamic type of v
// (pointers are dereferenced).
func (r *Registry) ClassOf(v any) (string, bool) {
	rt := reflect.TypeOf(v)
	for rt != nil && rt.Kind() == reflect.Pointer {
		rt = rt.Elem()
	}
	if rt == nil {
		return "", false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	name, ok := r.classByGo[rt]
	return name, ok
}

// EnumOf returns the enum registered for the dynamic type of v.
func (r *Registry) EnumOf(v any) (*Enum, bool) {
	if v == nil {
		return nil, false
	}
	r.mu.RLock()
	name, ok := r.enumByGo[reflect.TypeOf(v)]
	r.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return r.Enum(name)
}

// LookupEnum implements types.Resolver.
func (r *Registry) LookupEnum(name string) (types.Scalar, bool) {
	e, ok := r.Enum(name)
	if !ok {
		return "", false
	}
	return e.Backing, true
}

// Depth implements types.Hierarchy.
func (r *Registry) Depth(class string) int {
	d := 0
	for c, ok := r.Class(class); ok && c.Parent != ""; c, ok = r.Class(c.Parent) {
		d++
	}
	return d
}

// IsSubclassOf implements types.Hierarchy.
func (r *Registry) IsSubclassOf(class, ancestor string) bool {
	for c, ok := r.Class(class); ok && c.Parent != ""; c, ok = r.Class(c.Parent) {
		if c.Parent == ancestor {
			return true
		}
	}
	return false
}

// Parse parses a type expression with this registry as enum resolver.
func (r *Registry) Parse(expr string) (types.Type, error) {
	return types.Parse(expr, r)
}

// Names lists registered class and enum names, sorted. It feeds the
// fingerprint of cached artifacts.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.classes)+len(r.enums))
	for n := range r.classes {
		out = append(out, n)
	}
	for n := range r.enums {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

func (r *Registry) addClass(c *Class) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.classes[c.Name]; dup {
		return typecodec.Errorf(typecodec.CodeInvalidType, "class %q already registered", c.Name)
	}
	if _, dup := r.enums[c.Name]; dup {
		return typecodec.Errorf(typecodec.CodeInvalidType, "%q already registered as enum", c.Name)
	}
	r.classes[c.Name] = c
	r.classByGo[c.GoType] = c.Name
	return nil
}

func (r *Registry) addEnum(e *Enum) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.enums[e.Name]; dup {
		return typecodec.Errorf(typecodec.CodeInvalidType, "enum %q already registered", e.Name)
	}
	if _, dup := r.classes[e.Name]; dup {
		return typecodec.Errorf(typecodec.CodeInvalidType, "%q already registered as class", e.Name)
	}
	r.enums[e.Name] = e
	r.enumByGo[e.GoType] = e.Name
	return nil
}

var (
	anyType  = reflect.TypeOf((*any)(nil)).Elem()
	dictType = reflect.TypeOf((*value.Dict)(nil))
	seqType  = reflect.TypeOf((*value.Seq)(nil))
)

// TypeOfGo maps a Go type to a type expression:
// registered structs to their class, registered enums to their enum,
// *T to ?T, []T to array<int,T>, map[string]T to array<string,T>,
// *value.Dict to array<string,mixed>, *value.Seq to iterable and any to
// mixed. Unregistered named structs map to an object type of their Go name
// so a type hook can take them over.
func (r *Registry) TypeOfGo(rt reflect.Type) (types.Type, error) {
	switch rt {
	case anyType:
		return types.ScalarOf(types.Mixed), nil
	case dictType:
		return types.DictOf(types.ScalarOf(types.Mixed)), nil
	case seqType:
		return types.CollectionOf(types.MixedKey(), types.ScalarOf(types.Mixed), types.DestIterable), nil
	}
	r.mu.RLock()
	enumName, isEnum := r.enumByGo[rt]
	className, isClass := r.classByGo[rt]
	r.mu.RUnlock()
	if isEnum {
		e, _ := r.Enum(enumName)
		return types.EnumOf(e.Name, e.Backing), nil
	}
	if isClass {
		return types.ObjectOf(className), nil
	}
	switch rt.Kind() {
	case reflect.Pointer:
		inner, err := r.TypeOfGo(rt.Elem())
		if err != nil {
			return types.Type{}, err
		}
		return types.NullableOf(inner), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return types.ScalarOf(types.Int), nil
	case reflect.Float32, reflect.Float64:
		return types.ScalarOf(types.Float), nil
	case reflect.String:
		return types.ScalarOf(types.String), nil
	case reflect.Bool:
		return types.ScalarOf(types.Bool), nil
	case reflect.Slice, reflect.Array:
		inner, err := r.TypeOfGo(rt.Elem())
		if err != nil {
			return types.Type{}, err
		}
		return types.ListOf(inner), nil
	case reflect.Map:
		if rt.Key().Kind() != reflect.String {
			break
		}
		inner, err := r.TypeOfGo(rt.Elem())
		if err != nil {
			return types.Type{}, err
		}
		return types.DictOf(inner), nil
	case reflect.Struct:
		return types.ObjectOf(rt.PkgPath() + "." + rt.Name()), nil
	}
	return types.Type{}, typecodec.Errorf(typecodec.CodeUnsupportedType, "go type %s has no type expression", rt)
}
