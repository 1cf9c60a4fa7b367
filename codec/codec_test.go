package codec_test

import (
	"context"
	"errors"
	"testing"
	"time"

	typecodec "github.com/reoring/typecodec"
	"github.com/reoring/typecodec/codec"
	"github.com/reoring/typecodec/compiler"
	"github.com/reoring/typecodec/hook"
	"github.com/reoring/typecodec/model"
	"github.com/reoring/typecodec/value"
)

type Event struct {
	At    time.Time  `codec:"at"`
	Until *time.Time `codec:"until"`
	Meta  any        `codec:"meta,type=Blob"`
}

func newCompiler(t *testing.T) *compiler.Compiler {
	t.Helper()
	reg := model.NewRegistry()
	model.MustRegister[Event](reg, "Event")
	h := &hook.Hooks{}
	if err := codec.TimeRFC3339(h); err != nil {
		t.Fatalf("TimeRFC3339: %v", err)
	}
	if err := codec.Identity(h, "Blob"); err != nil {
		t.Fatalf("Identity: %v", err)
	}
	c, err := compiler.New(reg, compiler.WithHooks(h))
	if err != nil {
		t.Fatalf("compiler.New: %v", err)
	}
	return c
}

func TestTimeRFC3339_RoundTrip(t *testing.T) {
	c := newCompiler(t)
	ctx := context.Background()
	dec, err := c.Decoder(ctx, "Event", typecodec.FormatJSON)
	if err != nil {
		t.Fatalf("decoder: %v", err)
	}
	in := `{"at":"2025-01-01T09:00:00+09:00","until":null,"meta":{"k":[1,"x"]}}`
	v, err := dec.DecodeBytes(ctx, []byte(in))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	ev := v.(*Event)
	if !ev.At.Equal(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected time: %v", ev.At)
	}
	if ev.Until != nil {
		t.Fatalf("until = %v, want nil", ev.Until)
	}
	if _, ok := ev.Meta.(*value.Dict); !ok {
		t.Fatalf("meta kept as raw dict, got %T", ev.Meta)
	}

	until := ev.At.Add(90 * time.Minute)
	ev.Until = &until
	enc, err := c.Encoder(ctx, "Event", typecodec.FormatJSON)
	if err != nil {
		t.Fatalf("encoder: %v", err)
	}
	out, err := enc.EncodeBytes(ctx, ev)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	want := `{"at":"2025-01-01T00:00:00Z","until":"2025-01-01T01:30:00Z","meta":{"k":[1,"x"]}}`
	if string(out) != want {
		t.Fatalf("roundtrip mismatch: %s != %s", out, want)
	}
}

func TestTimeRFC3339_Invalid(t *testing.T) {
	c := newCompiler(t)
	ctx := context.Background()
	dec, err := c.Decoder(ctx, "Event", typecodec.FormatJSON)
	if err != nil {
		t.Fatalf("decoder: %v", err)
	}
	for _, in := range []string{`{"at":"yesterday"}`, `{"at":42}`} {
		_, err := dec.DecodeBytes(ctx, []byte(in))
		if !errors.Is(err, typecodec.ErrUnexpectedValue) {
			t.Fatalf("%s: want unexpected value, got %v", in, err)
		}
		if it, _ := typecodec.AsIssue(err); it.Path != "/at" {
			t.Fatalf("%s: path %q", in, it.Path)
		}
	}
}

func TestTimeRFC3339_NanoTrimmed(t *testing.T) {
	c := newCompiler(t)
	ctx := context.Background()
	enc, err := c.Encoder(ctx, "list<time.Time>", typecodec.FormatJSON)
	if err != nil {
		t.Fatalf("encoder: %v", err)
	}
	ts := []time.Time{time.Date(2025, 1, 1, 0, 0, 0, 500000000, time.UTC)}
	out, err := enc.EncodeBytes(ctx, ts)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if string(out) != `["2025-01-01T00:00:00.5Z"]` {
		t.Fatalf("unexpected output: %s", out)
	}
}
