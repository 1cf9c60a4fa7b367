package model

import (
	"reflect"
	"strings"

	"github.com/zoobzio/sentinel"

	typecodec "github.com/reoring/typecodec"
	"github.com/reoring/typecodec/types"
)

// Class describes a registered struct type.
type Class struct {
	Name      string
	GoType    reflect.Type // struct type; instances are *GoType
	Parent    string       // first embedded registered class
	Templates []string
	Props     []Property // declaration order, parent properties first
	Ctor      *Constructor
}

// Property is one field of a class.
type Property struct {
	Name   string // wire name
	Field  string // Go field name
	Index  []int
	GoType reflect.Type
	Expr   string // explicit type expression from the tag
	Public bool
	Owner  string // declaring class
}

// Property returns the property with wire name n.
func (c *Class) Property(n string) (Property, bool) {
	for _, p := range c.Props {
		if p.Name == n {
			return p, true
		}
	}
	return Property{}, false
}

// IsTemplate reports whether name is a template parameter of c.
func (c *Class) IsTemplate(name string) bool {
	for _, t := range c.Templates {
		if t == name {
			return true
		}
	}
	return false
}

// Option configures a class at registration.
type Option func(*Class) error

// WithTemplates declares template parameter names, bound positionally by
// generic arguments (Box<int> binds the first template to int).
func WithTemplates(names ...string) Option {
	return func(c *Class) error {
		c.Templates = append(c.Templates, names...)
		return nil
	}
}

// WithConstructor declares the function used to build instances. fn must
// take one argument per parameter and return *T, T, (*T, error) or
// (T, error).
func WithConstructor(fn any, params ...Parameter) Option {
	return func(c *Class) error {
		ctor, err := newConstructor(c, fn, params)
		if err != nil {
			return err
		}
		c.Ctor = ctor
		return nil
	}
}

// Register adds struct type T under name ("" uses the Go type name).
//
// Fields are read in declaration order. The `codec` tag sets the wire name
// and an optional explicit type: `codec:"name,type=array<int,string>"`.
// `codec:"-"` skips a field. Unexported fields become non-public properties.
// The first embedded struct that is already registered becomes the parent
// and its properties are promoted ahead of the class's own.
func Register[T any](r *Registry, name string, opts ...Option) (*Class, error) {
	rt := reflect.TypeOf((*T)(nil)).Elem()
	if rt.Kind() != reflect.Struct {
		return nil, typecodec.Errorf(typecodec.CodeInvalidType, "class %s: %s is not a struct", name, rt)
	}
	meta := sentinel.Scan[T]()
	if name == "" {
		name = meta.TypeName
	}
	tags := make(map[string]string, len(meta.Fields))
	for _, f := range meta.Fields {
		if v, ok := f.Tags[tagName]; ok {
			tags[f.Name] = v
		}
	}
	c := &Class{Name: name, GoType: rt}
	if err := r.collect(c, rt, nil, tags); err != nil {
		return nil, err
	}
	for _, o := range opts {
		if err := o(c); err != nil {
			return nil, err
		}
	}
	if err := r.addClass(c); err != nil {
		return nil, err
	}
	return c, nil
}

// MustRegister is Register that panics on error.
func MustRegister[T any](r *Registry, name string, opts ...Option) *Class {
	c, err := Register[T](r, name, opts...)
	if err != nil {
		panic(err)
	}
	return c
}

func (r *Registry) collect(c *Class, rt reflect.Type, prefix []int, tags map[string]string) error {
	var own []Property
	for i := 0; i < rt.NumField(); i++ {
		sf := rt.Field(i)
		tag, ok := tags[sf.Name]
		if !ok || prefix != nil {
			tag = sf.Tag.Get(tagName)
		}
		if tag == "-" {
			continue
		}
		index := append(append([]int{}, prefix...), sf.Index...)
		if sf.Anonymous {
			if sf.Type.Kind() == reflect.Pointer {
				return typecodec.Errorf(typecodec.CodeUnsupportedType, "class %s: embedded pointer %s is not supported", c.Name, sf.Type)
			}
			if sf.Type.Kind() == reflect.Struct {
				if parent, ok := r.classByGoType(sf.Type); ok && c.Parent == "" {
					c.Parent = parent.Name
					for _, p := range parent.Props {
						p.Index = append(append([]int{}, index...), p.Index...)
						c.Props = appendProp(c.Props, p)
					}
					continue
				}
				if err := r.collect(c, sf.Type, index, nil); err != nil {
					return err
				}
				continue
			}
		}
		wire, expr := parseTag(tag)
		if wire == "" {
			wire = lowerFirst(sf.Name)
		}
		own = append(own, Property{
			Name:   wire,
			Field:  sf.Name,
			Index:  index,
			GoType: sf.Type,
			Expr:   expr,
			Public: sf.IsExported(),
			Owner:  c.Name,
		})
	}
	for _, p := range own {
		c.Props = appendProp(c.Props, p)
	}
	return nil
}

func (r *Registry) classByGoType(rt reflect.Type) (*Class, bool) {
	r.mu.RLock()
	name, ok := r.classByGo[rt]
	r.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return r.Class(name)
}

// appendProp adds p, replacing a promoted property with the same wire name in
// place.
func appendProp(props []Property, p Property) []Property {
	for i := range props {
		if props[i].Name == p.Name {
			props[i] = p
			return props
		}
	}
	return append(props, p)
}

// parseTag splits `name,opt,type=expr`. The type option must come last
// because type expressions contain commas.
func parseTag(tag string) (name, expr string) {
	name, rest, _ := strings.Cut(tag, ",")
	for rest != "" {
		if strings.HasPrefix(rest, "type=") {
			return name, strings.TrimSpace(rest[len("type="):])
		}
		_, rest, _ = strings.Cut(rest, ",")
	}
	return name, ""
}

// lowerFirst lowercases the leading run of capitals: Name -> name,
// ID -> id, URLPath -> urlPath.
func lowerFirst(s string) string {
	b := []byte(s)
	for i := 0; i < len(b) && b[i] >= 'A' && b[i] <= 'Z'; i++ {
		if i > 0 && i+1 < len(b) && b[i+1] >= 'a' && b[i+1] <= 'z' {
			break
		}
		b[i] += 'a' - 'A'
	}
	return string(b)
}

// PropertyType resolves the declared type of p: the tag expression when
// present, the Go field type otherwise.
func (r *Registry) PropertyType(p Property) (types.Type, error) {
	if p.Expr != "" {
		t, err := types.Parse(p.Expr, r)
		if err != nil {
			if it, ok := typecodec.AsIssue(err); ok {
				it.Hint = p.Owner + "::$" + p.Name
				return types.Type{}, it
			}
			return types.Type{}, err
		}
		return t, nil
	}
	return r.TypeOfGo(p.GoType)
}

// Bindings maps the templates of c to the generic arguments of t. Templates
// without an argument bind to mixed.
func (c *Class) Bindings(t types.Type) (map[string]types.Type, error) {
	args := t.Args()
	if len(args) > len(c.Templates) {
		return nil, typecodec.Errorf(typecodec.CodeInvalidType, "%s declares %d template parameters, got %d", c.Name, len(c.Templates), len(args))
	}
	if len(c.Templates) == 0 {
		return nil, nil
	}
	b := make(map[string]types.Type, len(c.Templates))
	for i, name := range c.Templates {
		if i < len(args) {
			b[name] = args[i]
			continue
		}
		b[name] = types.ScalarOf(types.Mixed)
	}
	return b, nil
}
