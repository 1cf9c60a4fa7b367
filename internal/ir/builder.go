package ir

import (
	"strings"

	typecodec "github.com/reoring/typecodec"
	"github.com/reoring/typecodec/hook"
	"github.com/reoring/typecodec/i18n"
	"github.com/reoring/typecodec/model"
	"github.com/reoring/typecodec/types"
)

// Build expands t into a graph for ctx.Direction. Hooks are consulted while
// expanding; a nil table means no hooks.
func Build(t types.Type, reg *model.Registry, hooks *hook.Table, ctx hook.Context, strategy typecodec.Strategy) (*Graph, error) {
	b := &builder{
		reg:   reg,
		hooks: hooks,
		ctx:   ctx,
		g: &Graph{
			Direction: ctx.Direction,
			Strategy:  strategy,
			Format:    ctx.Format,
		},
		memo:   map[string]Ref{},
		active: map[string]bool{},
	}
	root, _, err := b.build(t)
	if err != nil {
		return nil, err
	}
	b.g.Root = root
	return b.g, nil
}

type builder struct {
	reg   *model.Registry
	hooks *hook.Table
	ctx   hook.Context
	g     *Graph

	memo   map[string]Ref
	active map[string]bool
	stack  []string // classes being expanded, outermost first
}

func (b *builder) deserialize() bool { return b.ctx.Direction == typecodec.Deserialize }

// build returns the node for t and whether it was already complete.
func (b *builder) build(t types.Type) (Ref, bool, error) {
	if r, ok := b.memo[t.String()]; ok {
		return r, true, nil
	}
	if fn, key, ok := b.hooks.Type(t); ok {
		id := t.String() + "@" + key
		if r, ok := b.memo[id]; ok {
			return r, true, nil
		}
		o, err := fn(t, b.ctx)
		if err != nil {
			return None, false, hookFailed(key, err)
		}
		if !o.IsZero() {
			if err := hook.CheckOverride(o, b.ctx.Direction, key); err != nil {
				return None, false, err
			}
			r := b.done(t, Node{Kind: NodeHooked, HookKey: key, Override: o})
			b.g.Nodes[r].ID = id
			b.memo[id] = r
			return r, false, nil
		}
	}

	switch {
	case t.IsScalar():
		return b.done(t, Node{Kind: NodeScalar}), false, nil
	case t.IsEnum():
		e, ok := b.reg.Enum(t.Class())
		if !ok {
			return None, false, invalidType(t, "enum %s is not registered", t.Class())
		}
		return b.done(t, Node{Kind: NodeEnum, Enum: e}), false, nil
	case t.IsCollection():
		item, _, err := b.build(t.ValueType())
		if err != nil {
			return None, false, err
		}
		return b.done(t, Node{Kind: NodeCollection, Item: item}), false, nil
	case t.IsUnion() && t.IsNullable():
		inner, _, err := b.build(t.NonNull())
		if err != nil {
			return None, false, err
		}
		return b.done(t, Node{Kind: NodeNullable, Inner: inner}), false, nil
	case t.IsUnion():
		return b.union(t)
	case t.IsObject():
		return b.object(t)
	}
	return None, false, typecodec.Errorf(typecodec.CodeUnsupportedType, "cannot expand %s", t)
}

func (b *builder) done(t types.Type, n Node) Ref {
	n.ID, n.Type = t.String(), t
	if n.Kind != NodeCollection {
		n.Item = None
	}
	if n.Kind != NodeNullable {
		n.Inner = None
	}
	n.Selected = None
	r := b.g.add(n)
	b.memo[n.ID] = r
	return r
}

func (b *builder) union(t types.Type) (Ref, bool, error) {
	members := t.Members()
	if !b.deserialize() {
		ordered, err := types.OrderMembers(t, b.reg)
		if err != nil {
			if it, ok := typecodec.AsIssue(err); ok {
				it.Hint = t.String()
				return None, false, it
			}
			return None, false, err
		}
		members = ordered
	}
	refs := make([]Ref, 0, len(members))
	for _, m := range members {
		r, _, err := b.build(m)
		if err != nil {
			return None, false, err
		}
		refs = append(refs, r)
	}
	selected := None
	if b.deserialize() {
		if sel, ok := b.ctx.Config.UnionSelector[t.String()]; ok {
			st, err := b.reg.Parse(sel)
			if err != nil {
				return None, false, err
			}
			for i, m := range members {
				if m.Equal(st) {
					selected = refs[i]
				}
			}
			if selected == None {
				return None, false, invalidType(t, "union selector %q is not a member", sel)
			}
		}
	}
	r := b.done(t, Node{Kind: NodeUnion, Members: refs})
	b.g.Nodes[r].Selected = selected
	return r, false, nil
}

func (b *builder) object(t types.Type) (Ref, bool, error) {
	name := t.Class()
	class, ok := b.reg.Class(name)
	if !ok {
		return None, false, invalidType(t, "class %s is not registered", name)
	}
	id := t.String()
	if b.active[id] {
		return None, false, circular(append(b.stack, name))
	}
	if fn, key, ok := b.hooks.Object(name); ok {
		o, err := fn(name, b.ctx)
		if err != nil {
			return None, false, hookFailed(key, err)
		}
		if !o.IsZero() {
			if err := hook.CheckOverride(o, b.ctx.Direction, key); err != nil {
				return None, false, err
			}
			r := b.done(t, Node{Kind: NodeHooked, Class: class, HookKey: key, Override: o})
			return r, false, nil
		}
	}
	bindings, err := class.Bindings(t)
	if err != nil {
		return None, false, err
	}

	b.active[id] = true
	b.stack = append(b.stack, name)
	defer func() {
		delete(b.active, id)
		b.stack = b.stack[:len(b.stack)-1]
	}()

	n := Node{Kind: NodeObject, Class: class}
	var ctorNames map[string]bool
	if b.deserialize() && class.Ctor != nil {
		ctorNames = make(map[string]bool, len(class.Ctor.Params))
		for _, p := range class.Ctor.Params {
			ctorNames[p.Name] = true
		}
	}
	for _, p := range class.Props {
		prop, skip, err := b.property(class, p, bindings, ctorNames[p.Name])
		if err != nil {
			return None, false, err
		}
		if !skip {
			n.Props = append(n.Props, prop)
			if prop.Ghost {
				b.g.Ghosts++
			}
		}
	}
	if ctorNames != nil {
		for _, p := range class.Ctor.Params {
			param, err := b.param(p, bindings, n.Props)
			if err != nil {
				return None, false, err
			}
			n.Params = append(n.Params, param)
		}
		// Constructor-bound properties are set through the constructor.
		kept := n.Props[:0]
		for _, p := range n.Props {
			if !ctorNames[p.Name] {
				kept = append(kept, p)
			}
		}
		n.Props = kept
	}
	return b.done(t, n), false, nil
}

func (b *builder) property(class *model.Class, p model.Property, bindings map[string]types.Type, viaCtor bool) (Prop, bool, error) {
	ref := class.Name + "::$" + p.Name
	pt, err := b.reg.PropertyType(p)
	if err != nil {
		return Prop{}, false, err
	}
	pt = types.Substitute(pt, bindings)
	prop := Prop{
		Name:   p.Name,
		Target: p.Name,
		Public: p.Public,
		Field:  p.Field,
		Index:  p.Index,
		GoType: p.GoType,
		Decl:   pt,
	}
	wireKey := ""
	if b.deserialize() {
		wireKey = p.Name
	}
	if fn, key, ok := b.hooks.Property(class.Name, p.Name, wireKey); ok {
		o, err := fn(hook.Property{Class: class.Name, Name: p.Name, Key: p.Name, Type: pt, Public: p.Public}, b.ctx)
		if err != nil {
			return Prop{}, false, hookFailed(key, err)
		}
		if err := hook.CheckPropertyOverride(o, b.ctx.Direction, key); err != nil {
			return Prop{}, false, err
		}
		if o.Skip {
			return Prop{}, true, nil
		}
		if !o.IsZero() {
			prop.HookKey = key
		}
		if o.Name != "" {
			prop.Target = o.Name
		}
		if o.Type != "" {
			ot, err := b.reg.Parse(o.Type)
			if err != nil {
				return Prop{}, false, hookFailed(key, err)
			}
			pt = types.Substitute(ot, bindings)
		}
		prop.Get, prop.Set, prop.Transform = o.Get, o.Set, o.Transform
	}
	if !p.Public && !viaCtor {
		if (b.deserialize() && prop.Set == nil) || (!b.deserialize() && prop.Get == nil) {
			it := typecodec.NewIssue(typecodec.CodeInvalidType, "", ref)
			it.Message = i18n.T("must_be_public", nil)
			return Prop{}, false, it
		}
	}
	r, hit, err := b.build(pt)
	if err != nil {
		return Prop{}, false, err
	}
	prop.Value = r
	prop.Ghost = hit && b.g.Nodes[r].Kind == NodeObject
	return prop, false, nil
}

func (b *builder) param(p model.Parameter, bindings map[string]types.Type, props []Prop) (Param, error) {
	pt, err := b.reg.ParamType(p)
	if err != nil {
		return Param{}, err
	}
	pt = types.Substitute(pt, bindings)
	param := Param{Param: p, Type: pt, Key: p.Name}
	for _, prop := range props {
		if prop.Name == p.Name {
			param.Key = prop.Target
			if prop.Value != None && b.g.Nodes[prop.Value].Type.Equal(pt) {
				param.Value = prop.Value
				return param, nil
			}
		}
	}
	r, _, err := b.build(pt)
	if err != nil {
		return Param{}, err
	}
	param.Value = r
	return param, nil
}

func invalidType(t types.Type, format string, args ...any) error {
	it := typecodec.Errorf(typecodec.CodeInvalidType, format, args...)
	it.Hint = t.String()
	return it
}

func circular(path []string) error {
	it := typecodec.NewIssue(typecodec.CodeCircularReference, "", strings.Join(path, " -> "))
	return it
}

func hookFailed(key string, err error) error {
	if _, ok := typecodec.AsIssue(err); ok {
		return err
	}
	it := typecodec.Errorf(typecodec.CodeInvalidHook, "hook %s failed", key).WithCause(err)
	it.Hint = key
	return it
}
