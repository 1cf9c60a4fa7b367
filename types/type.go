// Package types describes the shapes a codec is compiled for: scalars,
// objects (optionally generic), enums, collections and unions. A Type is an
// immutable value identified by its canonical string form.
package types

import (
	"strings"
)

// Kind identifies the variant of a Type.
type Kind int

const (
	KindScalar Kind = iota
	KindObject
	KindEnum
	KindCollection
	KindUnion
)

func (k Kind) String() string {
	switch k {
	case KindScalar:
		return "scalar"
	case KindObject:
		return "object"
	case KindEnum:
		return "enum"
	case KindCollection:
		return "collection"
	case KindUnion:
		return "union"
	}
	return "unknown"
}

// Scalar names a builtin scalar type.
type Scalar string

const (
	Int    Scalar = "int"
	Float  Scalar = "float"
	String Scalar = "string"
	Bool   Scalar = "bool"
	Null   Scalar = "null"
	Mixed  Scalar = "mixed"
)

// Destination is how a decoded collection materializes.
type Destination int

const (
	// DestArray materializes eagerly into []any or *value.Dict.
	DestArray Destination = iota
	// DestIterable stays a lazy *value.Seq.
	DestIterable
)

// Type is an immutable type description. The zero value is not a valid type;
// use the constructors or Parse.
type Type struct {
	kind    Kind
	scalar  Scalar
	class   string
	args    []Type
	backing Scalar // enums only; "" for pure enums
	key     *Type
	value   *Type
	dest    Destination
	members []Type
}

// ScalarOf returns the scalar type s.
func ScalarOf(s Scalar) Type { return Type{kind: KindScalar, scalar: s} }

// ObjectOf returns a class type with optional generic arguments.
func ObjectOf(class string, args ...Type) Type {
	return Type{kind: KindObject, class: class, args: append([]Type(nil), args...)}
}

// EnumOf returns an enum type. backing is Int or String for backed enums and
// "" for pure enums.
func EnumOf(class string, backing Scalar) Type {
	return Type{kind: KindEnum, class: class, backing: backing}
}

// CollectionOf returns a collection with the given key and value types.
func CollectionOf(key, value Type, dest Destination) Type {
	k, v := key, value
	return Type{kind: KindCollection, key: &k, value: &v, dest: dest}
}

// ListOf returns array<int,V>.
func ListOf(value Type) Type { return CollectionOf(ScalarOf(Int), value, DestArray) }

// DictOf returns array<string,V>.
func DictOf(value Type) Type { return CollectionOf(ScalarOf(String), value, DestArray) }

// MixedKey is the default collection key type, int|string.
func MixedKey() Type { return UnionOf(ScalarOf(Int), ScalarOf(String)) }

// NullableOf returns the canonical nullable form of t (t|null).
func NullableOf(t Type) Type { return UnionOf(t, ScalarOf(Null)) }

// UnionOf builds a union. Nested unions are flattened and duplicates removed
// keeping the first occurrence. A union containing mixed is mixed, a union of
// one member is that member and the null-only union is Scalar(null).
func UnionOf(members ...Type) Type {
	var flat []Type
	seen := map[string]struct{}{}
	var add func(t Type)
	add = func(t Type) {
		if t.kind == KindUnion {
			for _, m := range t.members {
				add(m)
			}
			return
		}
		key := t.String()
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		flat = append(flat, t)
	}
	for _, m := range members {
		add(m)
	}
	for _, m := range flat {
		if m.IsMixed() {
			return ScalarOf(Mixed)
		}
	}
	switch len(flat) {
	case 0:
		return ScalarOf(Null)
	case 1:
		return flat[0]
	}
	return Type{kind: KindUnion, members: flat}
}

// Kind returns the variant of t.
func (t Type) Kind() Kind { return t.kind }

// Scalar returns the scalar name ("" when t is not a scalar).
func (t Type) Scalar() Scalar {
	if t.kind != KindScalar {
		return ""
	}
	return t.scalar
}

// Class returns the class or enum name.
func (t Type) Class() string { return t.class }

// Args returns the generic arguments of an object type.
func (t Type) Args() []Type { return append([]Type(nil), t.args...) }

// Backing returns the enum backing scalar ("" for pure enums).
func (t Type) Backing() Scalar { return t.backing }

// Members returns the union members in declaration order.
func (t Type) Members() []Type { return append([]Type(nil), t.members...) }

// Destination returns the collection destination.
func (t Type) Destination() Destination { return t.dest }

// KeyType returns the collection key type, int|string when t is not a
// collection.
func (t Type) KeyType() Type {
	if t.kind != KindCollection || t.key == nil {
		return MixedKey()
	}
	return *t.key
}

// ValueType returns the collection value type, mixed when t is not a
// collection.
func (t Type) ValueType() Type {
	if t.kind != KindCollection || t.value == nil {
		return ScalarOf(Mixed)
	}
	return *t.value
}

// IsScalar reports whether t is a scalar, including null and mixed.
func (t Type) IsScalar() bool { return t.kind == KindScalar }

// IsNull reports whether t is the null type.
func (t Type) IsNull() bool { return t.kind == KindScalar && t.scalar == Null }

// IsMixed reports whether t is mixed.
func (t Type) IsMixed() bool { return t.kind == KindScalar && t.scalar == Mixed }

// IsObject reports whether t is a class type.
func (t Type) IsObject() bool { return t.kind == KindObject }

// IsEnum reports whether t is an enum.
func (t Type) IsEnum() bool { return t.kind == KindEnum }

// IsBackedEnum reports whether t is an enum with a backing scalar.
func (t Type) IsBackedEnum() bool { return t.kind == KindEnum && t.backing != "" }

// IsCollection reports whether t is a collection.
func (t Type) IsCollection() bool { return t.kind == KindCollection }

// IsList reports whether t is a collection keyed by int.
func (t Type) IsList() bool {
	return t.kind == KindCollection && t.KeyType().Scalar() == Int
}

// IsDict reports whether t is a collection keyed by string.
func (t Type) IsDict() bool {
	return t.kind == KindCollection && t.KeyType().Scalar() == String
}

// IsMixedKey reports whether t is a collection keyed by int|string.
func (t Type) IsMixedKey() bool { return t.kind == KindCollection && !t.IsList() && !t.IsDict() }

// IsUnion reports whether t is a union (including the nullable form).
func (t Type) IsUnion() bool { return t.kind == KindUnion }

// IsNullable reports whether null is a valid value of t.
func (t Type) IsNullable() bool {
	switch t.kind {
	case KindScalar:
		return t.scalar == Null || t.scalar == Mixed
	case KindUnion:
		for _, m := range t.members {
			if m.IsNull() {
				return true
			}
		}
	}
	return false
}

// IsNullableForm reports whether t is exactly {T, null}.
func (t Type) IsNullableForm() bool {
	return t.kind == KindUnion && len(t.members) == 2 && t.IsNullable()
}

// NonNull returns t without its null member.
func (t Type) NonNull() Type {
	if t.kind != KindUnion {
		return t
	}
	var out []Type
	for _, m := range t.members {
		if !m.IsNull() {
			out = append(out, m)
		}
	}
	if len(out) == len(t.members) {
		return t
	}
	return UnionOf(out...)
}

// Base returns the name used for type-hook lookup: the class for objects and
// enums, the scalar name, "array"/"iterable" for collections and the canonical
// string for unions.
func (t Type) Base() string {
	switch t.kind {
	case KindObject, KindEnum:
		return t.class
	case KindScalar:
		return string(t.scalar)
	case KindCollection:
		if t.dest == DestIterable {
			return "iterable"
		}
		return "array"
	}
	if t.IsNullableForm() {
		return t.NonNull().Base()
	}
	return t.String()
}

// Equal compares canonical forms.
func (t Type) Equal(o Type) bool { return t.String() == o.String() }

// String renders the canonical form, which Parse accepts.
func (t Type) String() string {
	b := &strings.Builder{}
	t.write(b)
	return b.String()
}

func (t Type) write(b *strings.Builder) {
	switch t.kind {
	case KindScalar:
		b.WriteString(string(t.scalar))
	case KindEnum:
		b.WriteString(t.class)
	case KindObject:
		b.WriteString(t.class)
		if len(t.args) > 0 {
			b.WriteByte('<')
			for i, a := range t.args {
				if i > 0 {
					b.WriteByte(',')
				}
				a.write(b)
			}
			b.WriteByte('>')
		}
	case KindCollection:
		if t.dest == DestIterable {
			b.WriteString("iterable<")
		} else {
			b.WriteString("array<")
		}
		t.KeyType().write(b)
		b.WriteByte(',')
		t.ValueType().write(b)
		b.WriteByte('>')
	case KindUnion:
		if t.IsNullableForm() {
			b.WriteByte('?')
			t.NonNull().write(b)
			return
		}
		for i, m := range t.members {
			if i > 0 {
				b.WriteByte('|')
			}
			m.write(b)
		}
	}
}

// Substitute replaces template parameters by their bindings. A parameter is
// an object type without arguments whose class is a key of bindings.
func Substitute(t Type, bindings map[string]Type) Type {
	if len(bindings) == 0 {
		return t
	}
	switch t.kind {
	case KindObject:
		if len(t.args) == 0 {
			if b, ok := bindings[t.class]; ok {
				return b
			}
			return t
		}
		args := make([]Type, len(t.args))
		for i, a := range t.args {
			args[i] = Substitute(a, bindings)
		}
		return ObjectOf(t.class, args...)
	case KindCollection:
		return CollectionOf(Substitute(t.KeyType(), bindings), Substitute(t.ValueType(), bindings), t.dest)
	case KindUnion:
		ms := make([]Type, len(t.members))
		for i, m := range t.members {
			ms[i] = Substitute(m, bindings)
		}
		return UnionOf(ms...)
	}
	return t
}
