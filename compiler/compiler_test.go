package compiler_test

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	typecodec "github.com/reoring/typecodec"
	"github.com/reoring/typecodec/cache"
	"github.com/reoring/typecodec/compiler"
	"github.com/reoring/typecodec/hook"
	"github.com/reoring/typecodec/model"
	"github.com/reoring/typecodec/types"
	"github.com/reoring/typecodec/value"
)

type Status int

const (
	Active   Status = 1
	Disabled Status = 2
)

type Dummy struct {
	ID   int    `codec:"id"`
	Name string `codec:"name"`
}

type Account struct {
	Owner  Dummy           `codec:"owner"`
	Status Status          `codec:"status"`
	Tags   []string        `codec:"tags"`
	Limits map[string]*int `codec:"limits"`
	Extra  *value.Dict     `codec:"extra"`
	Prev   *Dummy          `codec:"prev"`
	Values []any           `codec:"values,type=list<int|string>"`
}

type Node struct {
	Next *Node `codec:"next"`
}

type Left struct {
	Right []Right `codec:"right"`
}

type Right struct {
	Left *Left `codec:"left"`
}

func registry(t *testing.T) *model.Registry {
	t.Helper()
	reg := model.NewRegistry()
	_, err := model.RegisterEnum(reg, "Status", Active, Disabled)
	require.NoError(t, err)
	model.MustRegister[Dummy](reg, "ClassicDummy")
	model.MustRegister[Account](reg, "Account")
	model.MustRegister[Node](reg, "Node")
	model.MustRegister[Left](reg, "Left")
	model.MustRegister[Right](reg, "Right")
	return reg
}

func newCompiler(t *testing.T, reg *model.Registry, opts ...compiler.Option) *compiler.Compiler {
	t.Helper()
	c, err := compiler.New(reg, append([]compiler.Option{compiler.WithLogger(zap.NewNop())}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func roundTrip(t *testing.T, c *compiler.Compiler, expr, doc string) any {
	t.Helper()
	ctx := context.Background()
	dec, err := c.Decoder(ctx, expr, typecodec.FormatJSON)
	require.NoError(t, err)
	v, err := dec.DecodeBytes(ctx, []byte(doc))
	require.NoError(t, err, "decode %s", expr)
	enc, err := c.Encoder(ctx, expr, typecodec.FormatJSON)
	require.NoError(t, err)
	out, err := enc.EncodeBytes(ctx, v)
	require.NoError(t, err, "encode %s", expr)
	assert.Equal(t, doc, string(out), expr)
	return v
}

func TestRoundTrip(t *testing.T) {
	for _, lazy := range []bool{false, true} {
		cfg := typecodec.Config{Lazy: lazy, UnionSelector: map[string]string{"int|string": "int"}}
		c := newCompiler(t, registry(t), compiler.WithConfig(cfg))

		assert.Equal(t, int64(42), roundTrip(t, c, "int", `42`))
		assert.Equal(t, "x\"y", roundTrip(t, c, "string", `"x\"y"`))
		assert.Equal(t, true, roundTrip(t, c, "bool", `true`))
		assert.Equal(t, 1.5, roundTrip(t, c, "float", `1.5`))
		assert.Nil(t, roundTrip(t, c, "?ClassicDummy", `null`))
		assert.Equal(t, Disabled, roundTrip(t, c, "Status", `2`))
		assert.Equal(t, []any{"a", "b"}, roundTrip(t, c, "list<string>", `["a","b"]`))
		assert.Equal(t, value.DictOf("a", int64(1), "b", nil), roundTrip(t, c, "array<string,?int>", `{"a":1,"b":null}`))
		assert.Equal(t, []any{int64(1), int64(2), int64(3)}, roundTrip(t, c, "array<int,int|string>", `[1,2,3]`))
		assert.Equal(t, []any{&Dummy{ID: 100, Name: "Dummy"}}, roundTrip(t, c, "array<int,ClassicDummy>", `[{"id":100,"name":"Dummy"}]`))

		doc := `{"owner":{"id":1,"name":"o"},"status":1,"tags":["x"],"limits":{"a":1,"b":null},"extra":{"k":[true]},"prev":null,"values":[7,8]}`
		acc := roundTrip(t, c, "Account", doc).(*Account)
		assert.Equal(t, Active, acc.Status)
		assert.Equal(t, []string{"x"}, acc.Tags)
		require.NotNil(t, acc.Limits["a"])
		assert.Equal(t, 1, *acc.Limits["a"])
		assert.Nil(t, acc.Limits["b"])
		assert.Equal(t, []any{int64(7), int64(8)}, acc.Values)
	}
}

func TestUnionSelector(t *testing.T) {
	ctx := context.Background()
	doc := []byte(`[1,"2","3"]`)

	c := newCompiler(t, registry(t))
	dec, err := c.Decoder(ctx, "array<int,int|string>", typecodec.FormatJSON)
	require.NoError(t, err)
	_, err = dec.DecodeBytes(ctx, doc)
	assert.ErrorIs(t, err, typecodec.ErrUnexpectedValue)

	c = newCompiler(t, registry(t), compiler.WithConfig(typecodec.Config{
		UnionSelector: map[string]string{"int|string": "int"},
	}))
	dec, err = c.Decoder(ctx, "array<int,int|string>", typecodec.FormatJSON)
	require.NoError(t, err)
	v, err := dec.DecodeBytes(ctx, doc)
	require.NoError(t, err)
	assert.Equal(t, []any{int64(1), int64(2), int64(3)}, v)
}

func TestCircularReference(t *testing.T) {
	c := newCompiler(t, registry(t))
	for _, expr := range []string{"Node", "Left", "list<Right>"} {
		for _, d := range []typecodec.Direction{typecodec.Serialize, typecodec.Deserialize} {
			_, err := c.Compile(context.Background(), expr, typecodec.FormatJSON, d)
			assert.ErrorIs(t, err, typecodec.ErrCircularReference, "%s %s", expr, d)
		}
	}
}

func TestCollectMode(t *testing.T) {
	ctx := context.Background()
	doc := []byte(`[{"id":1,"name":"a"},{"id":"x","name":"b"},{"id":3,"name":"c"}]`)

	c := newCompiler(t, registry(t))
	dec, err := c.Decoder(ctx, "list<ClassicDummy>", typecodec.FormatJSON)
	require.NoError(t, err)
	_, err = dec.DecodeBytes(ctx, doc)
	assert.ErrorIs(t, err, typecodec.ErrUnexpectedValue)

	var col typecodec.Collector
	v, err := dec.DecodeBytes(ctx, doc, compiler.WithCollector(&col))
	require.NoError(t, err)
	require.Equal(t, 1, col.Len())
	assert.Equal(t, "/1/id", col.Issues()[0].Path)
	assert.Len(t, v, 3)

	c = newCompiler(t, registry(t), compiler.WithConfig(typecodec.Config{CollectErrors: true, Lazy: true}))
	dec, err = c.Decoder(ctx, "list<ClassicDummy>", typecodec.FormatJSON)
	require.NoError(t, err)
	v, err = dec.DecodeBytes(ctx, doc)
	iss, ok := typecodec.AsIssues(err)
	require.True(t, ok, "collected issues are returned: %v", err)
	assert.Len(t, iss, 1)
	list := v.([]any)
	require.Len(t, list, 3)
	assert.Equal(t, &Dummy{ID: 3, Name: "c"}, list[2])
	assert.Equal(t, "b", list[1].(*Dummy).Name)
}

func TestMemo(t *testing.T) {
	ctx := context.Background()
	c := newCompiler(t, registry(t))

	var wg sync.WaitGroup
	got := make([]*compiler.Codec, 8)
	for i := range got {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			cd, err := c.Decoder(ctx, "array<int, ClassicDummy>", typecodec.FormatJSON)
			assert.NoError(t, err)
			got[i] = cd
		}(i)
	}
	wg.Wait()
	for _, cd := range got {
		assert.Same(t, got[0], cd)
	}

	enc, err := c.Encoder(ctx, "list<ClassicDummy>", typecodec.FormatJSON)
	require.NoError(t, err)
	assert.NotSame(t, got[0], enc)
	assert.NotEqual(t, got[0].BuildID, enc.BuildID)
	assert.Equal(t, typecodec.Eager, enc.Strategy)
}

func TestTargetType(t *testing.T) {
	ctx := context.Background()
	c := newCompiler(t, registry(t), compiler.WithConfig(typecodec.Config{TargetType: "list<int>"}))
	dec, err := c.Decoder(ctx, "string", typecodec.FormatJSON)
	require.NoError(t, err)
	assert.Equal(t, types.ListOf(types.ScalarOf(types.Int)).String(), dec.Type.String())
	v, err := dec.DecodeBytes(ctx, []byte(`[1]`))
	require.NoError(t, err)
	assert.Equal(t, []any{int64(1)}, v)
}

func TestFormats(t *testing.T) {
	ctx := context.Background()
	c := newCompiler(t, registry(t), compiler.WithConfig(typecodec.Config{Lazy: true}))
	_, err := c.Decoder(ctx, "list<ClassicDummy>", typecodec.FormatCSV)
	assert.ErrorIs(t, err, typecodec.ErrUnknownFormat)
	_, err = c.Decoder(ctx, "int", typecodec.Format("xml"))
	assert.ErrorIs(t, err, typecodec.ErrUnknownFormat)

	c = newCompiler(t, registry(t))
	enc, err := c.Encoder(ctx, "list<ClassicDummy>", typecodec.FormatCSV)
	require.NoError(t, err)
	out, err := enc.EncodeBytes(ctx, []Dummy{{ID: 1, Name: "a,b"}, {ID: 2}})
	require.NoError(t, err)
	assert.Equal(t, "id,name\n1,\"a,b\"\n2,\n", string(out))

	dec, err := c.Decoder(ctx, "list<ClassicDummy>", typecodec.FormatCSV)
	require.NoError(t, err)
	v, err := dec.DecodeBytes(ctx, out)
	require.NoError(t, err)
	assert.Equal(t, []any{&Dummy{ID: 1, Name: "a,b"}, &Dummy{ID: 2}}, v)

	_, err = enc.DecodeBytes(ctx, out)
	assert.ErrorIs(t, err, typecodec.ErrInvalidType)

	native, err := enc.Native([]Dummy{{ID: 1}})
	require.NoError(t, err)
	assert.Equal(t, []any{value.DictOf("id", int64(1), "name", "")}, native)
}

func TestArtifacts(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	cfg := typecodec.Config{CacheDir: dir}
	doc := []byte(`[{"id":100,"name":"Dummy"}]`)

	first := newCompiler(t, registry(t), compiler.WithConfig(cfg))
	cd, err := first.Decoder(ctx, "array<int,ClassicDummy>", typecodec.FormatJSON)
	require.NoError(t, err)
	assert.False(t, cd.Cached)
	path := filepath.Join(dir, cd.Artifact)
	published, err := os.ReadFile(path)
	require.NoError(t, err)
	info, err := os.Stat(path)
	require.NoError(t, err)

	second := newCompiler(t, registry(t), compiler.WithConfig(cfg))
	again, err := second.Decoder(ctx, "array<int,ClassicDummy>", typecodec.FormatJSON)
	require.NoError(t, err)
	assert.True(t, again.Cached, "an existing artifact skips generation")
	assert.Equal(t, cd.Artifact, again.Artifact)
	v, err := again.DecodeBytes(ctx, doc)
	require.NoError(t, err)
	assert.Equal(t, []any{&Dummy{ID: 100, Name: "Dummy"}}, v)
	after, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, info.ModTime(), after.ModTime(), "artifact must not be rewritten")

	other := t.TempDir()
	third := newCompiler(t, registry(t), compiler.WithConfig(typecodec.Config{CacheDir: other}))
	cd3, err := third.Decoder(ctx, "array<int,ClassicDummy>", typecodec.FormatJSON)
	require.NoError(t, err)
	rebuilt, err := os.ReadFile(filepath.Join(other, cd3.Artifact))
	require.NoError(t, err)
	assert.Equal(t, published, rebuilt, "same hash, same bytes")

	lazy := newCompiler(t, registry(t), compiler.WithConfig(typecodec.Config{CacheDir: dir, Lazy: true}))
	cdl, err := lazy.Decoder(ctx, "array<int,ClassicDummy>", typecodec.FormatJSON)
	require.NoError(t, err)
	assert.NotEqual(t, cd.Artifact, cdl.Artifact)
}

type DummyV2 struct {
	ID    int    `codec:"id"`
	Label string `codec:"label"`
}

func TestArtifacts_Stale(t *testing.T) {
	ctx := context.Background()
	store, err := cache.NewFileStore(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	c1 := newCompiler(t, registry(t), compiler.WithStore(store))
	cd, err := c1.Decoder(ctx, "ClassicDummy", typecodec.FormatJSON)
	require.NoError(t, err)
	old, ok, err := store.Get(cd.Artifact)
	require.NoError(t, err)
	require.True(t, ok)

	reg := model.NewRegistry()
	model.MustRegister[DummyV2](reg, "ClassicDummy")
	c2 := newCompiler(t, reg, compiler.WithStore(store))
	cd2, err := c2.Decoder(ctx, "ClassicDummy", typecodec.FormatJSON)
	require.NoError(t, err)
	assert.False(t, cd2.Cached, "stale artifacts are rebuilt")
	v, err := cd2.DecodeBytes(ctx, []byte(`{"id":1,"label":"l"}`))
	require.NoError(t, err)
	assert.Equal(t, &DummyV2{ID: 1, Label: "l"}, v)

	fresh, ok, err := store.Get(cd2.Artifact)
	require.NoError(t, err)
	require.True(t, ok)
	assert.NotEqual(t, old, fresh, "stale artifacts are republished")
}

type Item struct {
	X int `codec:"x"`
}

type ItemV2 struct {
	X string `codec:"x"`
}

func TestArtifacts_StalePropertyType(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	open := func() cache.Store {
		store, err := cache.NewFileStore(dir)
		require.NoError(t, err)
		t.Cleanup(func() { store.Close() })
		return store
	}

	reg := model.NewRegistry()
	model.MustRegister[Item](reg, "Item")
	c1 := newCompiler(t, reg, compiler.WithStore(open()))
	cd, err := c1.Decoder(ctx, "Item", typecodec.FormatJSON)
	require.NoError(t, err)

	reg2 := model.NewRegistry()
	model.MustRegister[ItemV2](reg2, "Item")
	c2 := newCompiler(t, reg2, compiler.WithStore(open()))
	cd2, err := c2.Decoder(ctx, "Item", typecodec.FormatJSON)
	require.NoError(t, err)
	assert.Equal(t, cd.Artifact, cd2.Artifact)
	assert.False(t, cd2.Cached, "a plan with a changed property type is rebuilt")
	v, err := cd2.DecodeBytes(ctx, []byte(`{"x":"abc"}`))
	require.NoError(t, err)
	assert.Equal(t, &ItemV2{X: "abc"}, v)
}

func TestArtifacts_Variant(t *testing.T) {
	ctx := context.Background()
	store, err := cache.OpenBadger("", cache.InMemory())
	require.NoError(t, err)
	defer store.Close()

	plain := newCompiler(t, registry(t), compiler.WithStore(store))
	a, err := plain.Encoder(ctx, "ClassicDummy", typecodec.FormatJSON)
	require.NoError(t, err)

	hooks := &hook.Hooks{}
	require.NoError(t, hooks.Serialize.Set("ClassicDummy::$name", func(hook.Property, hook.Context) (hook.PropertyOverride, error) {
		return hook.PropertyOverride{Name: "label"}, nil
	}))
	hooked := newCompiler(t, registry(t), compiler.WithStore(store), compiler.WithHooks(hooks))
	b, err := hooked.Encoder(ctx, "ClassicDummy", typecodec.FormatJSON)
	require.NoError(t, err)
	assert.NotEqual(t, a.Artifact, b.Artifact)
	assert.False(t, b.Cached)

	out, err := b.EncodeBytes(ctx, Dummy{ID: 1, Name: "n"})
	require.NoError(t, err)
	assert.Equal(t, `{"id":1,"label":"n"}`, string(out))

	reused := newCompiler(t, registry(t), compiler.WithStore(store), compiler.WithHooks(hooks))
	c, err := reused.Encoder(ctx, "ClassicDummy", typecodec.FormatJSON)
	require.NoError(t, err)
	assert.True(t, c.Cached)
	out, err = c.EncodeBytes(ctx, Dummy{ID: 2, Name: "m"})
	require.NoError(t, err)
	assert.Equal(t, `{"id":2,"label":"m"}`, string(out))
}

func TestNew(t *testing.T) {
	_, err := compiler.New(nil)
	assert.Error(t, err)
	_, err = compiler.New(registry(t), compiler.WithConfig(typecodec.Config{CacheBackend: "redis", CacheDir: t.TempDir()}))
	assert.ErrorIs(t, err, typecodec.ErrInvalidType)
	_, err = compiler.New(registry(t), compiler.WithLogger(nil))
	assert.Error(t, err)

	c := newCompiler(t, registry(t), compiler.WithConfig(typecodec.Config{CacheDir: t.TempDir(), CacheBackend: typecodec.CacheBackendBadger}))
	cd, err := c.Decoder(context.Background(), "int", typecodec.FormatJSON)
	require.NoError(t, err)
	assert.Equal(t, 1, cd.Nodes())
}
