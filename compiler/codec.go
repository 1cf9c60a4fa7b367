package compiler

import (
	"bytes"
	"context"
	"io"
	"time"

	typecodec "github.com/reoring/typecodec"
	"github.com/reoring/typecodec/internal/emit"
	"github.com/reoring/typecodec/internal/gen"
	"github.com/reoring/typecodec/internal/ir"
	"github.com/reoring/typecodec/types"
)

// Codec is a compiled codec for one type, format, direction and strategy.
type Codec struct {
	Type      types.Type
	Format    typecodec.Format
	Direction typecodec.Direction
	Strategy  typecodec.Strategy
	BuildID   string
	Artifact  string // artifact name, also set when no store is configured
	Cached    bool   // graph was loaded from a published artifact

	c     *Compiler
	graph *ir.Graph
	dec   *gen.Decoder
	enc   *gen.Encoder
}

// Nodes reports the number of nodes in the codec graph.
func (cd *Codec) Nodes() int { return len(cd.graph.Nodes) }

// DecodeOption configures a single Decode call.
type DecodeOption func(*decodeOptions)

type decodeOptions struct {
	col *typecodec.Collector
}

// WithCollector switches the call to collect mode: failures below an object
// are appended to col and decoding continues.
func WithCollector(col *typecodec.Collector) DecodeOption {
	return func(o *decodeOptions) { o.col = col }
}

// Decode reads a value from r. With collect_errors configured and no
// collector passed, collected issues are returned as typecodec.Issues next
// to the partially decoded value.
func (cd *Codec) Decode(ctx context.Context, r io.ReaderAt, opts ...DecodeOption) (any, error) {
	if cd.dec == nil {
		return nil, typecodec.Errorf(typecodec.CodeInvalidType, "%s codec of %s cannot decode", cd.Direction, cd.Type)
	}
	var o decodeOptions
	for _, opt := range opts {
		opt(&o)
	}
	own := false
	if o.col == nil && cd.c.cfg.CollectErrors {
		o.col, own = &typecodec.Collector{}, true
	}
	start := time.Now()
	v, err := cd.dec.Decode(r, o.col)
	collected := 0
	if o.col != nil {
		collected = o.col.Len()
	}
	if err == nil && own && collected > 0 {
		err = o.col.Issues()
	}
	emitDecodeComplete(ctx, cd, time.Since(start), collected, err)
	return v, err
}

// DecodeBytes is Decode over an in-memory resource.
func (cd *Codec) DecodeBytes(ctx context.Context, data []byte, opts ...DecodeOption) (any, error) {
	return cd.Decode(ctx, bytes.NewReader(data), opts...)
}

// Encode writes v to w.
func (cd *Codec) Encode(ctx context.Context, w io.Writer, v any) error {
	if cd.enc == nil {
		return typecodec.Errorf(typecodec.CodeInvalidType, "%s codec of %s cannot encode", cd.Direction, cd.Type)
	}
	start := time.Now()
	e, err := emit.New(cd.Format, w, cd.c.cfg)
	if err == nil {
		err = cd.enc.Encode(e, v)
	}
	emitEncodeComplete(ctx, cd, time.Since(start), err)
	return err
}

// EncodeBytes is Encode into a new buffer.
func (cd *Codec) EncodeBytes(ctx context.Context, v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := cd.Encode(ctx, &buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Native encodes v into native values ([]any, *value.Dict, scalars) instead
// of bytes.
func (cd *Codec) Native(v any) (any, error) {
	if cd.enc == nil {
		return nil, typecodec.Errorf(typecodec.CodeInvalidType, "%s codec of %s cannot encode", cd.Direction, cd.Type)
	}
	t := emit.NewTree()
	if err := cd.enc.Encode(t, v); err != nil {
		return nil, err
	}
	return t.Value(), nil
}
