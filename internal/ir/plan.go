package ir

import (
	"errors"
	"fmt"
	"reflect"
	"slices"

	typecodec "github.com/reoring/typecodec"
	"github.com/reoring/typecodec/hook"
	"github.com/reoring/typecodec/model"
	"github.com/reoring/typecodec/types"
)

// PlanVersion is bumped whenever the plan layout changes.
const PlanVersion = 2

// ErrStale reports a plan that no longer matches the registry or hooks.
var ErrStale = errors.New("stale plan")

// Plan is the serializable form of a Graph. Functions (hooks, accessors) are
// stored by hook key and re-resolved on Load.
type Plan struct {
	Version   int        `msgpack:"version"`
	Type      string     `msgpack:"type"`
	Direction string     `msgpack:"direction"`
	Strategy  string     `msgpack:"strategy"`
	Format    string     `msgpack:"format"`
	Root      int        `msgpack:"root"`
	Nodes     []PlanNode `msgpack:"nodes"`
}

// PlanNode mirrors Node.
type PlanNode struct {
	ID       string      `msgpack:"id"`
	Kind     int         `msgpack:"kind"`
	Type     string      `msgpack:"type"`
	Name     string      `msgpack:"name,omitempty"` // class or enum
	Item     int         `msgpack:"item"`
	Inner    int         `msgpack:"inner"`
	Members  []int       `msgpack:"members,omitempty"`
	Selected int         `msgpack:"selected"`
	HookKey  string      `msgpack:"hook,omitempty"`
	Fields   []string    `msgpack:"fields,omitempty"` // every class property at build time
	Props    []PlanProp  `msgpack:"props,omitempty"`
	Params   []PlanParam `msgpack:"params,omitempty"`
}

// PlanProp mirrors Prop.
type PlanProp struct {
	Name    string `msgpack:"name"`
	Target  string `msgpack:"target"`
	Value   int    `msgpack:"value"`
	Ghost   bool   `msgpack:"ghost,omitempty"`
	Field   string `msgpack:"field"`
	Index   []int  `msgpack:"index"`
	Type    string `msgpack:"type"`    // declared property type
	GoType  string `msgpack:"go_type"` // Go field type
	HookKey string `msgpack:"hook,omitempty"`
}

// PlanParam mirrors Param.
type PlanParam struct {
	Name  string `msgpack:"name"`
	Key   string `msgpack:"key"`
	Type  string `msgpack:"type"`
	Value int    `msgpack:"value"`
}

// Plan returns the serializable form of g.
func (g *Graph) Plan() *Plan {
	p := &Plan{
		Version:   PlanVersion,
		Type:      g.Nodes[g.Root].Type.String(),
		Direction: string(g.Direction),
		Strategy:  string(g.Strategy),
		Format:    string(g.Format),
		Root:      int(g.Root),
		Nodes:     make([]PlanNode, len(g.Nodes)),
	}
	for i, n := range g.Nodes {
		pn := PlanNode{
			ID:       n.ID,
			Kind:     int(n.Kind),
			Type:     n.Type.String(),
			Item:     int(n.Item),
			Inner:    int(n.Inner),
			Selected: int(n.Selected),
			HookKey:  n.HookKey,
		}
		for _, m := range n.Members {
			pn.Members = append(pn.Members, int(m))
		}
		switch {
		case n.Enum != nil:
			pn.Name = n.Enum.Name
		case n.Class != nil:
			pn.Name = n.Class.Name
			if n.Kind == NodeObject {
				for _, cp := range n.Class.Props {
					pn.Fields = append(pn.Fields, cp.Name)
				}
			}
		}
		for _, pr := range n.Props {
			pn.Props = append(pn.Props, PlanProp{
				Name:    pr.Name,
				Target:  pr.Target,
				Value:   int(pr.Value),
				Ghost:   pr.Ghost,
				Field:   pr.Field,
				Index:   pr.Index,
				Type:    pr.Decl.String(),
				GoType:  goTypeName(pr.GoType),
				HookKey: pr.HookKey,
			})
		}
		for _, pa := range n.Params {
			pn.Params = append(pn.Params, PlanParam{
				Name:  pa.Param.Name,
				Key:   pa.Key,
				Type:  pa.Type.String(),
				Value: int(pa.Value),
			})
		}
		p.Nodes[i] = pn
	}
	return p
}

// Load rehydrates a plan against the current registry and hooks. Any
// mismatch (unknown class, changed fields, missing hook) wraps ErrStale.
func Load(p *Plan, reg *model.Registry, hooks *hook.Table, ctx hook.Context) (*Graph, error) {
	if p.Version != PlanVersion {
		return nil, stale("plan version %d", p.Version)
	}
	if p.Direction != string(ctx.Direction) || p.Format != string(ctx.Format) {
		return nil, stale("plan for %s/%s used as %s/%s", p.Direction, p.Format, ctx.Direction, ctx.Format)
	}
	g := &Graph{
		Root:      Ref(p.Root),
		Nodes:     make([]Node, len(p.Nodes)),
		Direction: ctx.Direction,
		Strategy:  typecodec.Strategy(p.Strategy),
		Format:    ctx.Format,
	}
	inRange := func(r int) bool { return r == int(None) || (r >= 0 && r < len(p.Nodes)) }
	if !inRange(p.Root) || p.Root < 0 {
		return nil, stale("root %d out of range", p.Root)
	}
	for i, pn := range p.Nodes {
		t, err := reg.Parse(pn.Type)
		if err != nil {
			return nil, stale("node %s: %v", pn.ID, err)
		}
		n := Node{
			ID:       pn.ID,
			Kind:     NodeKind(pn.Kind),
			Type:     t,
			Item:     Ref(pn.Item),
			Inner:    Ref(pn.Inner),
			Selected: Ref(pn.Selected),
			HookKey:  pn.HookKey,
		}
		if !inRange(pn.Item) || !inRange(pn.Inner) || !inRange(pn.Selected) {
			return nil, stale("node %s: reference out of range", pn.ID)
		}
		for _, m := range pn.Members {
			if !inRange(m) || m < 0 {
				return nil, stale("node %s: member out of range", pn.ID)
			}
			n.Members = append(n.Members, Ref(m))
		}
		switch n.Kind {
		case NodeScalar, NodeCollection, NodeNullable, NodeUnion:
		case NodeEnum:
			e, ok := reg.Enum(pn.Name)
			if !ok {
				return nil, stale("enum %s is not registered", pn.Name)
			}
			n.Enum = e
		case NodeObject:
			if err := loadObject(&n, pn, reg, hooks, ctx); err != nil {
				return nil, err
			}
		case NodeHooked:
			if err := loadHooked(&n, pn, reg, hooks, ctx); err != nil {
				return nil, err
			}
		default:
			return nil, stale("node %s: unknown kind %d", pn.ID, pn.Kind)
		}
		g.Nodes[i] = n
	}
	for _, n := range g.Nodes {
		for _, pr := range n.Props {
			if pr.Ghost {
				g.Ghosts++
			}
			if !inRange(int(pr.Value)) || pr.Value == None {
				return nil, stale("node %s: property %s out of range", n.ID, pr.Name)
			}
		}
		for _, pa := range n.Params {
			if !inRange(int(pa.Value)) || pa.Value == None {
				return nil, stale("node %s: parameter %s out of range", n.ID, pa.Param.Name)
			}
		}
	}
	return g, nil
}

func loadObject(n *Node, pn PlanNode, reg *model.Registry, hooks *hook.Table, ctx hook.Context) error {
	class, ok := reg.Class(pn.Name)
	if !ok {
		return stale("class %s is not registered", pn.Name)
	}
	n.Class = class
	names := make([]string, 0, len(class.Props))
	for _, cp := range class.Props {
		names = append(names, cp.Name)
	}
	if !slices.Equal(names, pn.Fields) {
		return stale("class %s properties changed", class.Name)
	}
	bindings, err := class.Bindings(n.Type)
	if err != nil {
		return stale("class %s: %v", class.Name, err)
	}
	for _, pp := range pn.Props {
		cp, ok := class.Property(pp.Name)
		if !ok || cp.Field != pp.Field || !slices.Equal(cp.Index, pp.Index) || goTypeName(cp.GoType) != pp.GoType {
			return stale("property %s::$%s changed", class.Name, pp.Name)
		}
		pt, err := reg.PropertyType(cp)
		if err != nil {
			return stale("property %s::$%s: %v", class.Name, pp.Name, err)
		}
		pt = types.Substitute(pt, bindings)
		if pt.String() != pp.Type {
			return stale("property %s::$%s is %s, plan has %s", class.Name, pp.Name, pt, pp.Type)
		}
		prop := Prop{
			Name:    pp.Name,
			Target:  pp.Target,
			Value:   Ref(pp.Value),
			Ghost:   pp.Ghost,
			Public:  cp.Public,
			Field:   cp.Field,
			Index:   cp.Index,
			GoType:  cp.GoType,
			Decl:    pt,
			HookKey: pp.HookKey,
		}
		if pp.HookKey != "" {
			fn, ok := hooks.PropertyByKey(pp.HookKey)
			if !ok {
				return stale("property hook %s is gone", pp.HookKey)
			}
			o, err := fn(hook.Property{Class: class.Name, Name: cp.Name, Key: cp.Name, Type: pt, Public: cp.Public}, ctx)
			if err != nil {
				return hookFailed(pp.HookKey, err)
			}
			prop.Get, prop.Set, prop.Transform = o.Get, o.Set, o.Transform
		}
		n.Props = append(n.Props, prop)
	}
	if len(pn.Params) == 0 {
		return nil
	}
	if class.Ctor == nil || len(class.Ctor.Params) != len(pn.Params) {
		return stale("class %s constructor changed", class.Name)
	}
	for i, pp := range pn.Params {
		mp := class.Ctor.Params[i]
		if mp.Name != pp.Name {
			return stale("class %s constructor changed", class.Name)
		}
		t, err := reg.ParamType(mp)
		if err != nil {
			return stale("class %s parameter %s: %v", class.Name, pp.Name, err)
		}
		if t = types.Substitute(t, bindings); t.String() != pp.Type {
			return stale("class %s parameter %s is %s, plan has %s", class.Name, pp.Name, t, pp.Type)
		}
		n.Params = append(n.Params, Param{Param: mp, Type: t, Key: pp.Key, Value: Ref(pp.Value)})
	}
	return nil
}

func loadHooked(n *Node, pn PlanNode, reg *model.Registry, hooks *hook.Table, ctx hook.Context) error {
	var (
		o   hook.Override
		err error
	)
	if pn.Name != "" {
		class, ok := reg.Class(pn.Name)
		if !ok {
			return stale("class %s is not registered", pn.Name)
		}
		n.Class = class
		fn, ok := hooks.ObjectByKey(pn.HookKey)
		if !ok {
			return stale("object hook %s is gone", pn.HookKey)
		}
		o, err = fn(class.Name, ctx)
	} else {
		fn, ok := hooks.TypeByKey(pn.HookKey)
		if !ok {
			return stale("type hook %s is gone", pn.HookKey)
		}
		o, err = fn(n.Type, ctx)
	}
	if err != nil {
		return hookFailed(pn.HookKey, err)
	}
	if o.IsZero() {
		return stale("hook %s declined", pn.HookKey)
	}
	n.Override = o
	return hook.CheckOverride(o, ctx.Direction, pn.HookKey)
}

func goTypeName(rt reflect.Type) string {
	if rt == nil {
		return ""
	}
	return rt.String()
}

func stale(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrStale, fmt.Sprintf(format, args...))
}

