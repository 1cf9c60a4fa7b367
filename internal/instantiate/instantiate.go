// Package instantiate builds object instances from deferred property
// providers, through the class constructor when one is declared.
package instantiate

import (
	"fmt"
	"reflect"

	typecodec "github.com/reoring/typecodec"
	"github.com/reoring/typecodec/internal/ir"
	"github.com/reoring/typecodec/model"
)

// Provider yields one decoded property value on demand.
type Provider func() (any, error)

// Instantiator assigns decoded values. With a nil Collector every failure
// is returned; otherwise failures are recorded and the value is left out.
type Instantiator struct {
	Registry  *model.Registry
	Collector *typecodec.Collector
}

func (in *Instantiator) collect() bool { return in.Collector != nil }

// Instantiate builds the object described by n. props is keyed by wire key;
// absent keys keep their defaults. The result is a pointer to the struct.
func (in *Instantiator) Instantiate(n *ir.Node, path string, props map[string]Provider) (any, error) {
	var (
		obj any
		err error
	)
	if len(n.Params) > 0 {
		obj, err = in.construct(n, path, props)
		if err != nil {
			return nil, err
		}
	} else {
		obj = reflect.New(n.Class.GoType).Interface()
	}
	elem := reflect.ValueOf(obj).Elem()
	for _, p := range n.Props {
		provide, ok := props[p.Target]
		if !ok {
			continue
		}
		at := typecodec.JoinPath(path, p.Target)
		v, err := provide()
		if err != nil {
			if err := in.fail(err, at); err != nil {
				return nil, err
			}
			continue
		}
		if err := in.assign(obj, elem, p, v, at); err != nil {
			if err := in.fail(err, at); err != nil {
				return nil, err
			}
		}
	}
	return obj, nil
}

func (in *Instantiator) construct(n *ir.Node, path string, props map[string]Provider) (any, error) {
	args := make([]reflect.Value, len(n.Params))
	for i, p := range n.Params {
		at := typecodec.JoinPath(path, p.Key)
		arg, ok, argErr := in.argument(p, at, props[p.Key])
		if argErr != nil && !in.collect() {
			return nil, argErr
		}
		if !ok {
			arg, ok = in.fallback(p)
		}
		if !ok {
			// Construction cannot proceed without the argument, so this is
			// returned even when collecting.
			if argErr != nil {
				return nil, argErr
			}
			it := typecodec.NewIssue(typecodec.CodeInvalidConstructorArgument, at, n.Class.Name)
			it.Message = fmt.Sprintf("missing required constructor argument %q", p.Param.Name)
			return nil, it
		}
		if argErr != nil {
			if err := in.fail(argErr, at); err != nil {
				return nil, err
			}
		}
		args[i] = arg
	}
	obj, err := n.Class.Ctor.Call(args)
	if err != nil {
		it := typecodec.NewIssue(typecodec.CodeInvalidConstructorArgument, path, n.Class.Name).WithCause(err)
		return nil, it
	}
	return obj, nil
}

// argument decodes and converts one parameter. ok is false when the value is
// absent or unusable.
func (in *Instantiator) argument(p ir.Param, at string, provide Provider) (reflect.Value, bool, error) {
	if provide == nil {
		return reflect.Value{}, false, nil
	}
	v, err := provide()
	if err != nil {
		return reflect.Value{}, false, err
	}
	if !in.Registry.Accepts(p.Type, v) {
		it := typecodec.NewIssue(typecodec.CodeInvalidConstructorArgument, at, p.Type.String())
		it.Message = fmt.Sprintf("argument %q does not accept %T", p.Param.Name, v)
		return reflect.Value{}, false, it
	}
	rv, err := in.Registry.Convert(v, p.Param.GoType)
	if err != nil {
		it := typecodec.NewIssue(typecodec.CodeInvalidConstructorArgument, at, p.Type.String()).WithCause(err)
		return reflect.Value{}, false, it
	}
	return rv, true, nil
}

func (in *Instantiator) fallback(p ir.Param) (reflect.Value, bool) {
	switch {
	case p.Param.HasDef:
		if rv, err := in.Registry.Convert(p.Param.Default, p.Param.GoType); err == nil {
			return rv, true
		}
		if p.Param.Default != nil && reflect.TypeOf(p.Param.Default).AssignableTo(p.Param.GoType) {
			return reflect.ValueOf(p.Param.Default), true
		}
	case p.Param.Optional:
		return reflect.Zero(p.Param.GoType), true
	}
	return reflect.Value{}, false
}

func (in *Instantiator) assign(obj any, elem reflect.Value, p ir.Prop, v any, at string) error {
	if p.Set != nil {
		if err := p.Set(obj, v); err != nil {
			return typecodec.NewIssue(typecodec.CodeUnexpectedType, at, p.Name).WithCause(err)
		}
		return nil
	}
	field := elem.FieldByIndex(p.Index)
	rv, err := in.Registry.Convert(v, p.GoType)
	if err != nil {
		it := typecodec.NewIssue(typecodec.CodeUnexpectedType, at, p.GoType.String()).WithCause(err)
		return it
	}
	field.Set(rv)
	return nil
}

// fail returns err in throw mode and records it in collect mode.
func (in *Instantiator) fail(err error, at string) error {
	if !in.collect() {
		return err
	}
	if iss, ok := typecodec.AsIssues(err); ok {
		for _, it := range iss {
			in.Collector.Add(it)
		}
		return nil
	}
	in.Collector.Add(typecodec.NewIssue(typecodec.CodeUnexpectedValue, at, "").WithCause(err))
	return nil
}
