package ir_test

import (
	"errors"
	"testing"

	"github.com/vmihailenco/msgpack/v5"

	typecodec "github.com/reoring/typecodec"
	"github.com/reoring/typecodec/hook"
	"github.com/reoring/typecodec/internal/ir"
	"github.com/reoring/typecodec/model"
	"github.com/reoring/typecodec/types"
)

type SelfRef struct {
	Next *SelfRef `codec:"next"`
}

type Left struct {
	Right *Right `codec:"right"`
}

type Right struct {
	Left []Left `codec:"left"`
}

type Point struct {
	X int `codec:"x"`
	Y int `codec:"y"`
}

type Pair struct {
	A Point `codec:"a"`
	B Point `codec:"b"`
}

type Animal struct {
	Name string `codec:"name"`
}

type Cat struct{ Animal }

type Dog struct{ Animal }

type Secret struct {
	Public string `codec:"public"`
	hidden string
}

type Money struct {
	Amount   int    `codec:"amount"`
	Currency string `codec:"currency"`
	Note     string `codec:"note"`
}

func registry(t *testing.T) *model.Registry {
	t.Helper()
	r := model.NewRegistry()
	model.MustRegister[SelfRef](r, "SelfRef")
	model.MustRegister[Left](r, "Left")
	model.MustRegister[Right](r, "Right")
	model.MustRegister[Point](r, "Point")
	model.MustRegister[Pair](r, "Pair")
	model.MustRegister[Animal](r, "Animal")
	model.MustRegister[Cat](r, "Cat")
	model.MustRegister[Dog](r, "Dog")
	model.MustRegister[Secret](r, "Secret")
	model.MustRegister[Money](r, "Money", model.WithConstructor(
		func(amount int, currency string) *Money { return &Money{Amount: amount, Currency: currency} },
		model.Param("amount", ""),
		model.Param("currency", "").WithDefault("EUR"),
	))
	return r
}

func ctxFor(d typecodec.Direction) hook.Context {
	return hook.Context{Format: typecodec.FormatJSON, Direction: d}
}

func build(t *testing.T, r *model.Registry, expr string, hooks *hook.Table, ctx hook.Context) (*ir.Graph, error) {
	t.Helper()
	return ir.Build(types.MustParse(expr, r), r, hooks, ctx, typecodec.Eager)
}

func TestBuild_CircularReference(t *testing.T) {
	r := registry(t)
	for _, expr := range []string{"SelfRef", "Left", "array<int,?Right>"} {
		for _, d := range []typecodec.Direction{typecodec.Serialize, typecodec.Deserialize} {
			_, err := build(t, r, expr, nil, ctxFor(d))
			if !errors.Is(err, typecodec.ErrCircularReference) {
				t.Fatalf("%s/%s: want circular reference, got %v", expr, d, err)
			}
		}
	}
	_, err := build(t, r, "Left", nil, ctxFor(typecodec.Deserialize))
	if it, _ := typecodec.AsIssue(err); it.Hint != "Left -> Right -> Left" {
		t.Fatalf("cycle path = %q", it.Hint)
	}
}

func TestBuild_GhostReferences(t *testing.T) {
	r := registry(t)
	g, err := build(t, r, "Pair", nil, ctxFor(typecodec.Serialize))
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	root := g.Node(g.Root)
	if root.Kind != ir.NodeObject || len(root.Props) != 2 {
		t.Fatalf("root = %+v", root)
	}
	a, b := root.Props[0], root.Props[1]
	if a.Value != b.Value || a.Ghost || !b.Ghost || g.Ghosts != 1 {
		t.Fatalf("want b to be a ghost of a: a=%+v b=%+v ghosts=%d", a, b, g.Ghosts)
	}
	seen := map[string]bool{}
	for _, n := range g.Nodes {
		if seen[n.ID] {
			t.Fatalf("duplicate node %s", n.ID)
		}
		seen[n.ID] = true
	}
}

func TestBuild_MustBePublic(t *testing.T) {
	r := registry(t)
	_, err := build(t, r, "Secret", nil, ctxFor(typecodec.Serialize))
	if !errors.Is(err, typecodec.ErrInvalidType) {
		t.Fatalf("want invalid type, got %v", err)
	}
	if it, _ := typecodec.AsIssue(err); it.Hint != "Secret::$hidden" {
		t.Fatalf("hint = %q", it.Hint)
	}

	var hooks hook.Table
	err = hooks.Set("Secret::$hidden", func(p hook.Property, _ hook.Context) (hook.PropertyOverride, error) {
		return hook.PropertyOverride{Get: func(obj any) (any, error) { return obj.(*Secret).hidden, nil }}, nil
	})
	if err != nil {
		t.Fatalf("Set: %v", err)
	}
	g, err := build(t, r, "Secret", &hooks, ctxFor(typecodec.Serialize))
	if err != nil {
		t.Fatalf("accessor hook must satisfy visibility: %v", err)
	}
	if p := g.Node(g.Root).Props[1]; p.Get == nil || p.HookKey != "Secret::$hidden" {
		t.Fatalf("hidden prop = %+v", p)
	}
}

func TestBuild_PropertyHooks(t *testing.T) {
	r := registry(t)
	var hooks hook.Table
	_ = hooks.Set("Point::$x", func(hook.Property, hook.Context) (hook.PropertyOverride, error) {
		return hook.PropertyOverride{Name: "left", Type: "?string"}, nil
	})
	_ = hooks.Set("Point[y]", func(hook.Property, hook.Context) (hook.PropertyOverride, error) {
		return hook.PropertyOverride{Skip: true}, nil
	})
	g, err := build(t, r, "Point", &hooks, ctxFor(typecodec.Deserialize))
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	props := g.Node(g.Root).Props
	if len(props) != 1 || props[0].Target != "left" || g.Node(props[0].Value).Type.String() != "?string" {
		t.Fatalf("props = %+v", props)
	}

	// Keyed hooks only apply when deserializing.
	g, err = build(t, r, "Point", &hooks, ctxFor(typecodec.Serialize))
	if err != nil || len(g.Node(g.Root).Props) != 2 {
		t.Fatalf("serialize props = %v, %v", g, err)
	}
}

func TestBuild_TypeAndObjectHooks(t *testing.T) {
	r := registry(t)
	var hooks hook.Table
	_ = hooks.Set("int", func(types.Type, hook.Context) (hook.Override, error) {
		return hook.Override{Encode: func(v any) (any, error) { return v, nil }}, nil
	})
	_ = hooks.Set("Cat", func(string, hook.Context) (hook.Override, error) {
		return hook.Override{Encode: func(v any) (any, error) { return "cat", nil }}, nil
	})
	g, err := build(t, r, "array<string,?int>", &hooks, ctxFor(typecodec.Serialize))
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	item := g.Node(g.Node(g.Root).Item)
	if item.Kind != ir.NodeHooked || item.HookKey != "int" || item.ID != "?int@int" {
		t.Fatalf("nullable int must hit the base hook: %+v", item)
	}
	g, err = build(t, r, "Cat", &hooks, ctxFor(typecodec.Serialize))
	if err != nil || g.Node(g.Root).Kind != ir.NodeHooked {
		t.Fatalf("object hook: %v", err)
	}
	if _, err := build(t, r, "Cat", &hooks, ctxFor(typecodec.Deserialize)); !errors.Is(err, typecodec.ErrInvalidHook) {
		t.Fatalf("encode override while deserializing: %v", err)
	}

	var bad hook.Table
	_ = bad.Set("type", func(types.Type, hook.Context) (hook.Override, error) {
		return hook.Override{Decode: func(raw any) (any, error) { return raw, nil }}, nil
	})
	if _, err := build(t, r, "int", &bad, ctxFor(typecodec.Serialize)); !errors.Is(err, typecodec.ErrInvalidHook) {
		t.Fatalf("decode override in serialize: %v", err)
	}
}

func TestBuild_Unions(t *testing.T) {
	r := registry(t)
	if _, err := build(t, r, "Cat|Dog", nil, ctxFor(typecodec.Serialize)); !errors.Is(err, typecodec.ErrAmbiguousUnion) {
		t.Fatalf("want ambiguous union, got %v", err)
	}
	g, err := build(t, r, "Animal|Cat|int", nil, ctxFor(typecodec.Serialize))
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	var order []string
	for _, m := range g.Node(g.Root).Members {
		order = append(order, g.Node(m).ID)
	}
	if len(order) != 3 || order[0] != "int" || order[1] != "Cat" || order[2] != "Animal" {
		t.Fatalf("serialize order = %v", order)
	}

	ctx := ctxFor(typecodec.Deserialize)
	ctx.Config.UnionSelector = map[string]string{"int|string": "int"}
	g, err = build(t, r, "array<int,int|string|null>", nil, ctx)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	nullable := g.Node(g.Node(g.Root).Item)
	union := g.Node(nullable.Inner)
	if nullable.Kind != ir.NodeNullable || union.Kind != ir.NodeUnion || g.Node(union.Selected).ID != "int" {
		t.Fatalf("selector not applied: %+v %+v", nullable, union)
	}
	ctx.Config.UnionSelector = map[string]string{"int|string": "bool"}
	if _, err := build(t, r, "int|string", nil, ctx); !errors.Is(err, typecodec.ErrInvalidType) {
		t.Fatalf("unknown selector: %v", err)
	}
}

func TestBuild_ConstructorParams(t *testing.T) {
	r := registry(t)
	g, err := build(t, r, "Money", nil, ctxFor(typecodec.Deserialize))
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	n := g.Node(g.Root)
	if len(n.Params) != 2 || n.Params[0].Key != "amount" || n.Params[1].Type.String() != "string" {
		t.Fatalf("params = %+v", n.Params)
	}
	if len(n.Props) != 1 || n.Props[0].Name != "note" {
		t.Fatalf("constructor-bound props must be dropped: %+v", n.Props)
	}
}

func TestPlan_RoundTrip(t *testing.T) {
	r := registry(t)
	var hooks hook.Table
	_ = hooks.Set("Point::$x", func(hook.Property, hook.Context) (hook.PropertyOverride, error) {
		return hook.PropertyOverride{Name: "left"}, nil
	})
	ctx := ctxFor(typecodec.Deserialize)
	g, err := build(t, r, "array<int,Pair>", &hooks, ctx)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	data, err := msgpack.Marshal(g.Plan())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	again, err := msgpack.Marshal(g.Plan())
	if err != nil || string(again) != string(data) {
		t.Fatalf("plan encoding must be deterministic")
	}
	var p ir.Plan
	if err := msgpack.Unmarshal(data, &p); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	loaded, err := ir.Load(&p, r, &hooks, ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(loaded.Nodes) != len(g.Nodes) || loaded.Ghosts != g.Ghosts {
		t.Fatalf("loaded %d nodes / %d ghosts, want %d / %d", len(loaded.Nodes), loaded.Ghosts, len(g.Nodes), g.Ghosts)
	}
	for i := range g.Nodes {
		if loaded.Nodes[i].ID != g.Nodes[i].ID {
			t.Fatalf("node %d: %s != %s", i, loaded.Nodes[i].ID, g.Nodes[i].ID)
		}
	}

	if _, err := ir.Load(&p, model.NewRegistry(), &hooks, ctx); !errors.Is(err, ir.ErrStale) {
		t.Fatalf("empty registry: want stale, got %v", err)
	}
	if _, err := ir.Load(&p, r, nil, ctx); !errors.Is(err, ir.ErrStale) {
		t.Fatalf("missing hook: want stale, got %v", err)
	}
	if _, err := ir.Load(&p, r, &hooks, ctxFor(typecodec.Serialize)); !errors.Is(err, ir.ErrStale) {
		t.Fatalf("direction mismatch: want stale, got %v", err)
	}
}

type PointText struct {
	X string `codec:"x"`
	Y int    `codec:"y"`
}

type PointNarrow struct {
	X int32 `codec:"x"`
	Y int   `codec:"y"`
}

func TestPlan_StalePropertyType(t *testing.T) {
	ctx := ctxFor(typecodec.Deserialize)
	g, err := build(t, registry(t), "Point", nil, ctx)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	p := g.Plan()

	text := model.NewRegistry()
	model.MustRegister[PointText](text, "Point")
	narrow := model.NewRegistry()
	model.MustRegister[PointNarrow](narrow, "Point")
	for name, r := range map[string]*model.Registry{"declared type": text, "go type": narrow} {
		if _, err := ir.Load(p, r, nil, ctx); !errors.Is(err, ir.ErrStale) {
			t.Fatalf("%s changed: want stale, got %v", name, err)
		}
	}
	if _, err := ir.Load(p, registry(t), nil, ctx); err != nil {
		t.Fatalf("unchanged registry: %v", err)
	}
}
