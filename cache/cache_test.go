package cache_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	typecodec "github.com/reoring/typecodec"
	"github.com/reoring/typecodec/cache"
	"github.com/reoring/typecodec/hook"
	"github.com/reoring/typecodec/internal/ir"
	"github.com/reoring/typecodec/model"
	"github.com/reoring/typecodec/types"
)

type Dummy struct {
	ID   int    `codec:"id"`
	Name string `codec:"name"`
}

func plan(t *testing.T) *ir.Plan {
	t.Helper()
	reg := model.NewRegistry()
	model.MustRegister[Dummy](reg, "ClassicDummy")
	ctx := hook.Context{Format: typecodec.FormatJSON, Direction: typecodec.Deserialize}
	g, err := ir.Build(types.MustParse("array<int,ClassicDummy>", reg), reg, nil, ctx, typecodec.Eager)
	require.NoError(t, err)
	return g.Plan()
}

func TestName(t *testing.T) {
	k := cache.Key{
		Type:      "array<int,ClassicDummy>",
		Direction: typecodec.Deserialize,
		Strategy:  typecodec.Lazy,
		Format:    typecodec.FormatJSON,
	}
	name := cache.Name(k)
	assert.Equal(t, cache.Hash("array<int,ClassicDummy>")+".deserialize.lazy.json.plan", name)
	assert.Len(t, cache.Hash("x"), 64)

	k.Variant = cache.VariantHash("select:int|string=int")
	assert.NotEqual(t, name, cache.Name(k))
	assert.True(t, strings.HasPrefix(cache.Name(k), cache.Hash("array<int,ClassicDummy>."+k.Variant)))

	assert.Empty(t, cache.VariantHash("", ""))
	assert.Equal(t, cache.VariantHash("a", "", "b"), cache.VariantHash("a", "b"))
	assert.NotEqual(t, cache.VariantHash("ab"), cache.VariantHash("a", "b"))
}

func TestEncodePlan_Deterministic(t *testing.T) {
	a, err := cache.EncodePlan(plan(t))
	require.NoError(t, err)
	b, err := cache.EncodePlan(plan(t))
	require.NoError(t, err)
	assert.Equal(t, a, b)

	p, err := cache.DecodePlan(a)
	require.NoError(t, err)
	assert.Equal(t, plan(t), p)

	_, err = cache.DecodePlan([]byte{0xc1})
	assert.ErrorIs(t, err, ir.ErrStale)
}

func stores(t *testing.T) map[string]cache.Store {
	t.Helper()
	fs, err := cache.NewFileStore(filepath.Join(t.TempDir(), "plans"))
	require.NoError(t, err)
	bs, err := cache.OpenBadger("", cache.InMemory())
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = fs.Close()
		_ = bs.Close()
	})
	return map[string]cache.Store{"file": fs, "badger": bs}
}

func TestStore(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			_, ok, err := s.Get("missing.plan")
			require.NoError(t, err)
			assert.False(t, ok)

			stored, err := s.Put("a.plan", []byte("first"))
			require.NoError(t, err)
			assert.True(t, stored)

			stored, err = s.Put("a.plan", []byte("second"))
			require.NoError(t, err)
			assert.False(t, stored, "an existing artifact must not be rewritten")

			data, ok, err := s.Get("a.plan")
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, []byte("first"), data)

			require.NoError(t, s.Delete("a.plan"))
			require.NoError(t, s.Delete("a.plan"))
			_, ok, err = s.Get("a.plan")
			require.NoError(t, err)
			assert.False(t, ok)

			stored, err = s.Put("a.plan", []byte("second"))
			require.NoError(t, err)
			assert.True(t, stored)
		})
	}
}

func TestFileStore_Layout(t *testing.T) {
	dir := t.TempDir()
	s, err := cache.NewFileStore(dir)
	require.NoError(t, err)
	defer s.Close()

	data, err := cache.EncodePlan(plan(t))
	require.NoError(t, err)
	_, err = s.Put("x.plan", data)
	require.NoError(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "temp files must be renamed or removed")
	assert.Equal(t, "x.plan", entries[0].Name())

	onDisk, err := os.ReadFile(filepath.Join(dir, "x.plan"))
	require.NoError(t, err)
	assert.NotEqual(t, data, onDisk, "artifacts are compressed")

	other, err := cache.NewFileStore(t.TempDir())
	require.NoError(t, err)
	defer other.Close()
	_, err = other.Put("x.plan", data)
	require.NoError(t, err)
	again, err := os.ReadFile(filepath.Join(other.Dir(), "x.plan"))
	require.NoError(t, err)
	assert.Equal(t, onDisk, again, "same plan, same bytes")

	_, err = s.Put("../escape.plan", data)
	assert.Error(t, err)
}

func TestOpen(t *testing.T) {
	s, err := cache.Open("", t.TempDir())
	require.NoError(t, err)
	assert.IsType(t, &cache.FileStore{}, s)
	require.NoError(t, s.Close())

	s, err = cache.Open(typecodec.CacheBackendBadger, t.TempDir())
	require.NoError(t, err)
	assert.IsType(t, &cache.BadgerStore{}, s)
	require.NoError(t, s.Close())

	_, err = cache.Open("redis", t.TempDir())
	assert.ErrorIs(t, err, typecodec.ErrInvalidType)
}
