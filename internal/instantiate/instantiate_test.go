package instantiate_test

import (
	"errors"
	"strings"
	"testing"

	typecodec "github.com/reoring/typecodec"
	"github.com/reoring/typecodec/hook"
	"github.com/reoring/typecodec/internal/instantiate"
	"github.com/reoring/typecodec/internal/ir"
	"github.com/reoring/typecodec/model"
	"github.com/reoring/typecodec/types"
)

type Money struct {
	Amount   int    `codec:"amount"`
	Currency string `codec:"currency"`
	Note     string `codec:"note"`
}

type Tagged struct {
	Name  string `codec:"name"`
	Count int    `codec:"count"`
	label string
}

func node(t *testing.T, r *model.Registry, hooks *hook.Table, expr string) *ir.Node {
	t.Helper()
	ctx := hook.Context{Format: typecodec.FormatJSON, Direction: typecodec.Deserialize}
	g, err := ir.Build(types.MustParse(expr, r), r, hooks, ctx, typecodec.Eager)
	if err != nil {
		t.Fatalf("Build(%s): %v", expr, err)
	}
	return g.Node(g.Root)
}

func constant(v any) instantiate.Provider { return func() (any, error) { return v, nil } }

func failing(code string) instantiate.Provider {
	return func() (any, error) { return nil, typecodec.NewIssue(code, "/x", "") }
}

func TestInstantiate_Constructor(t *testing.T) {
	r := model.NewRegistry()
	model.MustRegister[Money](r, "Money", model.WithConstructor(
		func(amount int, currency string) (*Money, error) {
			if amount < 0 {
				return nil, errors.New("negative amount")
			}
			return &Money{Amount: amount, Currency: currency}, nil
		},
		model.Param("amount", ""),
		model.Param("currency", "").WithDefault("EUR"),
	))
	n := node(t, r, nil, "Money")
	in := &instantiate.Instantiator{Registry: r}

	got, err := in.Instantiate(n, "", map[string]instantiate.Provider{
		"amount":   constant(int64(5)),
		"currency": constant("USD"),
		"note":     constant("hi"),
	})
	if err != nil {
		t.Fatalf("Instantiate: %v", err)
	}
	if m := got.(*Money); m.Amount != 5 || m.Currency != "USD" || m.Note != "hi" {
		t.Fatalf("money = %+v", m)
	}

	got, err = in.Instantiate(n, "", map[string]instantiate.Provider{"amount": constant(int64(1))})
	if err != nil || got.(*Money).Currency != "EUR" {
		t.Fatalf("default not applied: %+v %v", got, err)
	}

	_, err = in.Instantiate(n, "", map[string]instantiate.Provider{"amount": constant(int64(1)), "currency": constant(int64(3))})
	if !errors.Is(err, typecodec.ErrInvalidConstructorArgument) {
		t.Fatalf("mismatched argument: %v", err)
	}

	var col typecodec.Collector
	in.Collector = &col
	got, err = in.Instantiate(n, "/0", map[string]instantiate.Provider{"amount": constant(int64(1)), "currency": constant(int64(3))})
	if err != nil || got.(*Money).Currency != "EUR" || col.Len() != 1 {
		t.Fatalf("collect mode: %+v %v issues=%v", got, err, col.Issues())
	}
	if it := col.Issues()[0]; it.Path != "/0/currency" || it.Code != typecodec.CodeInvalidConstructorArgument {
		t.Fatalf("issue = %+v", it)
	}

	_, err = in.Instantiate(n, "", map[string]instantiate.Provider{"currency": constant("USD")})
	if !errors.Is(err, typecodec.ErrInvalidConstructorArgument) {
		t.Fatalf("missing required argument must escalate in collect mode: %v", err)
	}
	col.Reset()
	_, err = in.Instantiate(n, "/1", map[string]instantiate.Provider{"amount": constant("ten")})
	it, ok := typecodec.AsIssue(err)
	if !ok || it.Path != "/1/amount" || strings.Contains(it.Message, "missing") {
		t.Fatalf("invalid required argument must escalate as itself: %v", err)
	}
	if col.Len() != 0 {
		t.Fatalf("escalated argument must not also be collected: %v", col.Issues())
	}
	_, err = in.Instantiate(n, "", map[string]instantiate.Provider{"amount": constant(int64(-1))})
	if !errors.Is(err, typecodec.ErrInvalidConstructorArgument) {
		t.Fatalf("constructor error: %v", err)
	}
}

func TestInstantiate_Properties(t *testing.T) {
	r := model.NewRegistry()
	model.MustRegister[Tagged](r, "Tagged")
	var hooks hook.Table
	_ = hooks.Set("Tagged::$label", func(hook.Property, hook.Context) (hook.PropertyOverride, error) {
		return hook.PropertyOverride{Set: func(obj, v any) error {
			s, ok := v.(string)
			if !ok {
				return errors.New("label must be a string")
			}
			obj.(*Tagged).label = s
			return nil
		}}, nil
	})
	n := node(t, r, &hooks, "Tagged")
	in := &instantiate.Instantiator{Registry: r}

	got, err := in.Instantiate(n, "", map[string]instantiate.Provider{
		"name":  constant("a"),
		"count": constant(int64(2)),
		"label": constant("l"),
	})
	if err != nil {
		t.Fatalf("Instantiate: %v", err)
	}
	if tg := got.(*Tagged); tg.Name != "a" || tg.Count != 2 || tg.label != "l" {
		t.Fatalf("tagged = %+v", tg)
	}

	_, err = in.Instantiate(n, "", map[string]instantiate.Provider{"count": constant("two")})
	if !errors.Is(err, typecodec.ErrUnexpectedType) {
		t.Fatalf("field mismatch: %v", err)
	}
	_, err = in.Instantiate(n, "", map[string]instantiate.Provider{"name": failing(typecodec.CodeUnexpectedValue)})
	if !errors.Is(err, typecodec.ErrUnexpectedValue) {
		t.Fatalf("provider error must propagate: %v", err)
	}

	var col typecodec.Collector
	in.Collector = &col
	got, err = in.Instantiate(n, "", map[string]instantiate.Provider{
		"name":  constant("kept"),
		"count": failing(typecodec.CodeUnexpectedValue),
		"label": constant(int64(1)),
	})
	if err != nil {
		t.Fatalf("collect mode: %v", err)
	}
	if tg := got.(*Tagged); tg.Name != "kept" || tg.Count != 0 || col.Len() != 2 {
		t.Fatalf("tagged = %+v issues = %v", tg, col.Issues())
	}
}
