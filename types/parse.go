package types

import (
	"strings"

	typecodec "github.com/reoring/typecodec"
)

// Resolver tells the parser which class names are enums.
type Resolver interface {
	// LookupEnum reports whether name is a registered enum and its backing
	// scalar ("" for pure enums).
	LookupEnum(name string) (Scalar, bool)
}

var unsupportedNames = map[string]struct{}{
	"void": {}, "never": {}, "callable": {}, "resource": {}, "object": {},
	"self": {}, "static": {}, "parent": {},
}

var scalarAliases = map[string]Scalar{
	"int": Int, "integer": Int,
	"float": Float, "double": Float,
	"string": String,
	"bool": Bool, "boolean": Bool,
	"null":  Null,
	"mixed": Mixed,
}

// Parse reads a type expression. A nil resolver treats every class name as an
// object type.
func Parse(expr string, r Resolver) (Type, error) {
	p := &parser{src: expr, r: r}
	t, err := p.union()
	if err != nil {
		return Type{}, err
	}
	p.space()
	if !p.eof() {
		return Type{}, p.fail(typecodec.CodeInvalidType, "unexpected %q", string(p.src[p.pos]))
	}
	return t, nil
}

// MustParse is Parse that panics on error. Intended for tests and constant
// expressions.
func MustParse(expr string, r Resolver) Type {
	t, err := Parse(expr, r)
	if err != nil {
		panic(err)
	}
	return t
}

type parser struct {
	src string
	pos int
	r   Resolver
}

func (p *parser) eof() bool { return p.pos >= len(p.src) }

func (p *parser) peek() byte {
	if p.eof() {
		return 0
	}
	return p.src[p.pos]
}

func (p *parser) space() {
	for !p.eof() {
		switch p.src[p.pos] {
		case ' ', '\t', '\n', '\r':
			p.pos++
		default:
			return
		}
	}
}

func (p *parser) fail(code, format string, args ...any) error {
	it := typecodec.Errorf(code, format, args...)
	it.Hint = p.src
	return it
}

func (p *parser) union() (Type, error) {
	var members []Type
	for {
		t, err := p.atom()
		if err != nil {
			return Type{}, err
		}
		members = append(members, t)
		p.space()
		switch p.peek() {
		case '|':
			p.pos++
			continue
		case '&':
			return Type{}, p.fail(typecodec.CodeUnsupportedType, "intersection types are not supported")
		}
		break
	}
	if len(members) == 1 {
		return members[0], nil
	}
	return UnionOf(members...), nil
}

func (p *parser) atom() (Type, error) {
	p.space()
	switch c := p.peek(); {
	case c == '?':
		p.pos++
		t, err := p.atom()
		if err != nil {
			return Type{}, err
		}
		return NullableOf(t), nil
	case c == '(':
		return Type{}, p.fail(typecodec.CodeUnsupportedType, "DNF types are not supported")
	case c == 0:
		return Type{}, p.fail(typecodec.CodeInvalidType, "unexpected end of type expression")
	}
	name := p.ident()
	if name == "" {
		return Type{}, p.fail(typecodec.CodeInvalidType, "unexpected %q", string(p.peek()))
	}
	var args []Type
	p.space()
	if p.peek() == '<' {
		p.pos++
		var err error
		if args, err = p.args(); err != nil {
			return Type{}, err
		}
	}
	lower := strings.ToLower(name)
	if _, bad := unsupportedNames[lower]; bad {
		return Type{}, p.fail(typecodec.CodeUnsupportedType, "type %q is not supported", name)
	}
	if s, ok := scalarAliases[lower]; ok {
		if len(args) > 0 {
			return Type{}, p.fail(typecodec.CodeInvalidType, "scalar %q takes no parameters", name)
		}
		return ScalarOf(s), nil
	}
	switch lower {
	case "array", "iterable":
		dest := DestArray
		if lower == "iterable" {
			dest = DestIterable
		}
		switch len(args) {
		case 0:
			return CollectionOf(MixedKey(), ScalarOf(Mixed), dest), nil
		case 1:
			return CollectionOf(MixedKey(), args[0], dest), nil
		case 2:
			if err := p.checkKey(args[0]); err != nil {
				return Type{}, err
			}
			return CollectionOf(normalizeKey(args[0]), args[1], dest), nil
		}
		return Type{}, p.fail(typecodec.CodeInvalidType, "%s takes at most two parameters", lower)
	case "list":
		switch len(args) {
		case 0:
			return ListOf(ScalarOf(Mixed)), nil
		case 1:
			return ListOf(args[0]), nil
		}
		return Type{}, p.fail(typecodec.CodeInvalidType, "list takes one parameter")
	}
	if p.r != nil {
		if backing, ok := p.r.LookupEnum(name); ok {
			if len(args) > 0 {
				return Type{}, p.fail(typecodec.CodeInvalidType, "enum %q takes no parameters", name)
			}
			return EnumOf(name, backing), nil
		}
	}
	return ObjectOf(name, args...), nil
}

func (p *parser) args() ([]Type, error) {
	var out []Type
	for {
		t, err := p.union()
		if err != nil {
			return nil, err
		}
		out = append(out, t)
		p.space()
		switch p.peek() {
		case ',':
			p.pos++
		case '>':
			p.pos++
			return out, nil
		default:
			return nil, p.fail(typecodec.CodeInvalidType, "unterminated type parameters")
		}
	}
}

func (p *parser) ident() string {
	start := p.pos
	for !p.eof() {
		c := p.src[p.pos]
		if c == '_' || c == '\\' || c == '.' || c == '/' ||
			(c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') ||
			(p.pos > start && c >= '0' && c <= '9') {
			p.pos++
			continue
		}
		break
	}
	return p.src[start:p.pos]
}

func (p *parser) checkKey(k Type) error {
	switch {
	case k.Scalar() == Int, k.Scalar() == String, k.IsMixed():
		return nil
	case k.IsUnion() && k.Equal(MixedKey()), k.IsUnion() && k.Equal(UnionOf(ScalarOf(String), ScalarOf(Int))):
		return nil
	}
	return p.fail(typecodec.CodeInvalidType, "collection key must be int, string or int|string, got %s", k)
}

// normalizeKey maps mixed and string|int to the canonical int|string key.
func normalizeKey(k Type) Type {
	if k.IsMixed() || k.IsUnion() {
		return MixedKey()
	}
	return k
}
