package model

import (
	"reflect"

	typecodec "github.com/reoring/typecodec"
	"github.com/reoring/typecodec/types"
)

// Parameter is a constructor parameter.
type Parameter struct {
	Name     string
	Expr     string // type expression; "" derives it from the Go parameter type
	Default  any
	HasDef   bool
	Optional bool
	GoType   reflect.Type
}

// Param declares a constructor parameter bound to the wire key name.
func Param(name, expr string) Parameter { return Parameter{Name: name, Expr: expr} }

// WithDefault sets the value used when the parameter is absent or invalid.
func (p Parameter) WithDefault(v any) Parameter {
	p.Default, p.HasDef = v, true
	return p
}

// AsOptional lets the parameter fall back to the Go zero value.
func (p Parameter) AsOptional() Parameter {
	p.Optional = true
	return p
}

// Required reports whether the parameter has neither default nor zero-value
// fallback.
func (p Parameter) Required() bool { return !p.HasDef && !p.Optional }

// Constructor is a validated constructor function.
type Constructor struct {
	Params   []Parameter
	fn       reflect.Value
	pointer  bool // fn returns *T
	hasError bool
}

var errorType = reflect.TypeOf((*error)(nil)).Elem()

func newConstructor(c *Class, fn any, params []Parameter) (*Constructor, error) {
	fv := reflect.ValueOf(fn)
	if fv.Kind() != reflect.Func {
		return nil, typecodec.Errorf(typecodec.CodeInvalidType, "%s constructor must be a func, got %T", c.Name, fn)
	}
	ft := fv.Type()
	if ft.IsVariadic() || ft.NumIn() != len(params) {
		return nil, typecodec.Errorf(typecodec.CodeInvalidType, "%s constructor takes %d arguments, %d parameters declared", c.Name, ft.NumIn(), len(params))
	}
	ctor := &Constructor{fn: fv}
	switch ft.NumOut() {
	case 2:
		if ft.Out(1) != errorType {
			return nil, typecodec.Errorf(typecodec.CodeInvalidType, "%s constructor second result must be error", c.Name)
		}
		ctor.hasError = true
		fallthrough
	case 1:
		switch out := ft.Out(0); {
		case out == c.GoType:
		case out.Kind() == reflect.Pointer && out.Elem() == c.GoType:
			ctor.pointer = true
		default:
			return nil, typecodec.Errorf(typecodec.CodeInvalidType, "%s constructor returns %s", c.Name, out)
		}
	default:
		return nil, typecodec.Errorf(typecodec.CodeInvalidType, "%s constructor must return the instance", c.Name)
	}
	seen := map[string]struct{}{}
	for i, p := range params {
		if _, dup := seen[p.Name]; dup || p.Name == "" {
			return nil, typecodec.Errorf(typecodec.CodeInvalidType, "%s constructor parameter %d has an empty or duplicate name", c.Name, i)
		}
		seen[p.Name] = struct{}{}
		p.GoType = ft.In(i)
		ctor.Params = append(ctor.Params, p)
	}
	return ctor, nil
}

// ParamType resolves the declared type of parameter p.
func (r *Registry) ParamType(p Parameter) (types.Type, error) {
	if p.Expr != "" {
		return types.Parse(p.Expr, r)
	}
	return r.TypeOfGo(p.GoType)
}

// Call invokes the constructor and returns a *T.
func (ctor *Constructor) Call(args []reflect.Value) (any, error) {
	out := ctor.fn.Call(args)
	if ctor.hasError && !out[1].IsNil() {
		return nil, out[1].Interface().(error)
	}
	inst := out[0]
	if ctor.pointer {
		return inst.Interface(), nil
	}
	p := reflect.New(inst.Type())
	p.Elem().Set(inst)
	return p.Interface(), nil
}
