package typecodec

// Package typecodec provides:
//
// - Type-directed decoding and encoding of JSON and CSV driven by type expressions
//   such as `array<string,?int>`, `list<Money>` or `int|string`
// - A stable error model via Issue/Issues (JSON Pointer, code, message) with
//   sentinel errors for errors.Is
// - Eager decoding from a fully parsed document and lazy decoding that splits the
//   resource and decodes children on demand
// - Hooks that rename, retype, skip or transform properties and replace the codec
//   of whole classes or types
// - Content-addressed plan artifacts reused across processes
//
// Design policy:
// - Keep the error model and configuration in the root package; put the type
//   model, class metadata and hooks in their own packages and the generator under
//   internal/.
// - The compiler package is the entry point; the CLI lives under cmd/typecodec.
// - Prefer black-box testing against public APIs.
//
// Typical usage:
//
//  reg := model.NewRegistry()
//  model.MustRegister[Dummy](reg, "ClassicDummy")
//  c, err := compiler.New(reg, compiler.WithConfig(cfg))
//  dec, err := c.Decoder(ctx, "array<int,ClassicDummy>", typecodec.FormatJSON)
//  v, err := dec.DecodeBytes(ctx, data)
//
//  enc, err := c.Encoder(ctx, "array<int,ClassicDummy>", typecodec.FormatJSON)
//  out, err := enc.EncodeBytes(ctx, v)
//
