package model

import (
	"fmt"
	"reflect"
	"sort"

	typecodec "github.com/reoring/typecodec"
	"github.com/reoring/typecodec/types"
)

// Backed constrains Go types usable as backed enums.
type Backed interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 | ~uint8 | ~uint16 | ~uint32 | ~string
}

// Enum describes a registered enum. Backed enums encode as their backing
// scalar, pure enums as their case name.
type Enum struct {
	Name    string
	GoType  reflect.Type
	Backing types.Scalar // types.Int, types.String or "" for pure enums
	Cases   []EnumCase
}

// EnumCase is one enum value.
type EnumCase struct {
	Name  string
	Wire  any // int64 or string
	Value any
}

// From returns the case whose wire value equals raw (int64 or string).
func (e *Enum) From(raw any) (any, bool) {
	for _, c := range e.Cases {
		if c.Wire == raw {
			return c.Value, true
		}
	}
	return nil, false
}

// WireOf returns the wire value of v.
func (e *Enum) WireOf(v any) (any, bool) {
	for _, c := range e.Cases {
		if c.Value == v {
			return c.Wire, true
		}
	}
	return nil, false
}

// RegisterEnum adds backed enum E with the listed cases. The backing scalar
// follows E's underlying kind.
func RegisterEnum[E Backed](r *Registry, name string, cases ...E) (*Enum, error) {
	rt := reflect.TypeOf((*E)(nil)).Elem()
	if name == "" {
		name = rt.Name()
	}
	if len(cases) == 0 {
		return nil, typecodec.Errorf(typecodec.CodeInvalidType, "enum %s declares no cases", name)
	}
	e := &Enum{Name: name, GoType: rt, Backing: types.Int}
	if rt.Kind() == reflect.String {
		e.Backing = types.String
	}
	for _, c := range cases {
		rv := reflect.ValueOf(c)
		var wire any
		switch rv.Kind() {
		case reflect.String:
			wire = rv.String()
		case reflect.Uint8, reflect.Uint16, reflect.Uint32:
			wire = int64(rv.Uint())
		default:
			wire = rv.Int()
		}
		if _, dup := e.From(wire); dup {
			return nil, typecodec.Errorf(typecodec.CodeInvalidType, "enum %s: duplicate backing value %v", name, wire)
		}
		e.Cases = append(e.Cases, EnumCase{Name: caseName(c), Wire: wire, Value: c})
	}
	if err := r.addEnum(e); err != nil {
		return nil, err
	}
	return e, nil
}

// RegisterPureEnum adds an enum without backing values; cases encode by name.
func RegisterPureEnum[E comparable](r *Registry, name string, cases map[string]E) (*Enum, error) {
	rt := reflect.TypeOf((*E)(nil)).Elem()
	if name == "" {
		name = rt.Name()
	}
	if len(cases) == 0 {
		return nil, typecodec.Errorf(typecodec.CodeInvalidType, "enum %s declares no cases", name)
	}
	names := make([]string, 0, len(cases))
	for n := range cases {
		names = append(names, n)
	}
	sort.Strings(names)
	e := &Enum{Name: name, GoType: rt}
	for _, n := range names {
		e.Cases = append(e.Cases, EnumCase{Name: n, Wire: n, Value: cases[n]})
	}
	if err := r.addEnum(e); err != nil {
		return nil, err
	}
	return e, nil
}

func caseName(v any) string {
	if s, ok := v.(fmt.Stringer); ok {
		return s.String()
	}
	return fmt.Sprint(v)
}
