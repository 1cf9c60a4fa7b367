// Package compiler is the entry point of typecodec. A Compiler owns the class
// registry, the hooks and the configuration for the lifetime of the process
// and hands out memoized codecs, one per (type, format, direction, strategy).
package compiler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	typecodec "github.com/reoring/typecodec"
	"github.com/reoring/typecodec/cache"
	"github.com/reoring/typecodec/hook"
	"github.com/reoring/typecodec/internal/gen"
	"github.com/reoring/typecodec/internal/ir"
	"github.com/reoring/typecodec/model"
)

// Compiler builds and memoizes codecs. It is safe for concurrent use.
type Compiler struct {
	reg   *model.Registry
	hooks *hook.Hooks
	cfg   typecodec.Config
	log   *zap.Logger
	store cache.Store
	owned bool // store was opened from cfg and is closed by Close

	mu     sync.RWMutex
	codecs map[string]*Codec
}

// Option configures a Compiler.
type Option func(*Compiler) error

// WithConfig sets the codec options. The config is validated by New.
func WithConfig(cfg typecodec.Config) Option {
	return func(c *Compiler) error {
		c.cfg = cfg
		return nil
	}
}

// WithHooks installs the hook tables of both directions.
func WithHooks(h *hook.Hooks) Option {
	return func(c *Compiler) error {
		c.hooks = h
		return nil
	}
}

// WithLogger sets the logger; the default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(c *Compiler) error {
		if l == nil {
			return errors.New("compiler: nil logger")
		}
		c.log = l
		return nil
	}
}

// WithStore publishes and reuses plan artifacts through s. Without it an
// artifact store is opened from cache_dir and cache_backend when cache_dir
// is set.
func WithStore(s cache.Store) Option {
	return func(c *Compiler) error {
		c.store = s
		return nil
	}
}

// New returns a Compiler over reg.
func New(reg *model.Registry, opts ...Option) (*Compiler, error) {
	if reg == nil {
		return nil, errors.New("compiler: nil registry")
	}
	c := &Compiler{
		reg:    reg,
		hooks:  &hook.Hooks{},
		log:    zap.NewNop(),
		codecs: map[string]*Codec{},
	}
	for _, o := range opts {
		if err := o(c); err != nil {
			return nil, err
		}
	}
	if err := c.cfg.Validate(); err != nil {
		return nil, err
	}
	if c.store == nil && c.cfg.CacheDir != "" {
		s, err := cache.Open(c.cfg.CacheBackend, c.cfg.CacheDir)
		if err != nil {
			return nil, err
		}
		c.store, c.owned = s, true
	}
	return c, nil
}

// Config returns the compiler's configuration.
func (c *Compiler) Config() typecodec.Config { return c.cfg }

// Registry returns the class registry.
func (c *Compiler) Registry() *model.Registry { return c.reg }

// Close releases the artifact store opened from the configuration.
func (c *Compiler) Close() error {
	if c.owned && c.store != nil {
		return c.store.Close()
	}
	return nil
}

// Compile returns the codec of expr for format and direction. target_type,
// when configured, replaces expr. Serialize codecs are always eager.
func (c *Compiler) Compile(ctx context.Context, expr string, format typecodec.Format, d typecodec.Direction) (*Codec, error) {
	if c.cfg.TargetType != "" {
		expr = c.cfg.TargetType
	}
	t, err := c.reg.Parse(expr)
	if err != nil {
		return nil, err
	}
	strategy := typecodec.Eager
	if d == typecodec.Deserialize {
		strategy = c.cfg.Strategy()
	}
	memo := strings.Join([]string{t.String(), string(format), string(d), string(strategy)}, "|")

	c.mu.RLock()
	cd, ok := c.codecs[memo]
	c.mu.RUnlock()
	if ok {
		return cd, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if cd, ok := c.codecs[memo]; ok {
		return cd, nil
	}
	cd = &Codec{
		Type:      t,
		Format:    format,
		Direction: d,
		Strategy:  strategy,
		BuildID:   uuid.NewString(),
		c:         c,
	}
	if err := c.prepare(ctx, cd); err != nil {
		return nil, err
	}
	c.codecs[memo] = cd
	return cd, nil
}

// Decoder is Compile for the deserialize direction.
func (c *Compiler) Decoder(ctx context.Context, expr string, format typecodec.Format) (*Codec, error) {
	return c.Compile(ctx, expr, format, typecodec.Deserialize)
}

// Encoder is Compile for the serialize direction.
func (c *Compiler) Encoder(ctx context.Context, expr string, format typecodec.Format) (*Codec, error) {
	return c.Compile(ctx, expr, format, typecodec.Serialize)
}

func (c *Compiler) prepare(ctx context.Context, cd *Codec) error {
	if cd.Format != typecodec.FormatJSON && cd.Format != typecodec.FormatCSV {
		return typecodec.NewIssue(typecodec.CodeUnknownFormat, "", string(cd.Format))
	}
	if cd.Format == typecodec.FormatCSV && cd.Strategy == typecodec.Lazy {
		it := typecodec.NewIssue(typecodec.CodeUnknownFormat, "", "lazy csv")
		it.Message = "csv is decoded eagerly only"
		return it
	}
	hctx := hook.Context{Format: cd.Format, Direction: cd.Direction, Config: c.cfg}
	table := c.hooks.Table(cd.Direction)
	cd.Artifact = cache.Name(cache.Key{
		Type:      cd.Type.String(),
		Variant:   cache.VariantHash(c.cfg.Variant(), strings.Join(table.Keys(), ",")),
		Direction: cd.Direction,
		Strategy:  cd.Strategy,
		Format:    cd.Format,
	})
	log := c.log.With(
		zap.String("type", cd.Type.String()),
		zap.String("direction", string(cd.Direction)),
		zap.String("artifact", cd.Artifact),
		zap.String("build_id", cd.BuildID),
	)

	g, err := c.load(ctx, cd, table, hctx, log)
	if err != nil {
		return err
	}
	if g == nil {
		emitBuildStart(ctx, cd)
		log.Debug("build start")
		start := time.Now()
		g, err = ir.Build(cd.Type, c.reg, table, hctx, cd.Strategy)
		emitBuildComplete(ctx, cd, time.Since(start), err)
		if err != nil {
			log.Debug("build failed", zap.Error(err))
			return err
		}
		log.Debug("build complete", zap.Int("nodes", len(g.Nodes)), zap.Int("ghosts", g.Ghosts), zap.Duration("duration", time.Since(start)))
		if err := c.publish(ctx, cd, g, log); err != nil {
			return err
		}
	}
	return cd.generate(g)
}

// load reuses a published plan. A stale plan is dropped and (nil, nil)
// returned so the caller rebuilds and republishes it.
func (c *Compiler) load(ctx context.Context, cd *Codec, table *hook.Table, hctx hook.Context, log *zap.Logger) (*ir.Graph, error) {
	if c.store == nil {
		return nil, nil
	}
	data, ok, err := c.store.Get(cd.Artifact)
	if err != nil {
		return nil, err
	}
	if !ok {
		log.Debug("cache miss")
		return nil, nil
	}
	p, err := cache.DecodePlan(data)
	var g *ir.Graph
	if err == nil {
		g, err = ir.Load(p, c.reg, table, hctx)
	}
	if errors.Is(err, ir.ErrStale) {
		log.Warn("stale artifact, rebuilding", zap.Error(err))
		if err := c.store.Delete(cd.Artifact); err != nil {
			return nil, err
		}
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	cd.Cached = true
	emitCacheHit(ctx, cd)
	log.Debug("cache hit")
	return g, nil
}

func (c *Compiler) publish(ctx context.Context, cd *Codec, g *ir.Graph, log *zap.Logger) error {
	if c.store == nil {
		return nil
	}
	data, err := cache.EncodePlan(g.Plan())
	if err != nil {
		return err
	}
	stored, err := c.store.Put(cd.Artifact, data)
	if err != nil {
		return fmt.Errorf("publish %s: %w", cd.Artifact, err)
	}
	if stored {
		emitArtifactStored(ctx, cd)
		log.Debug("artifact stored", zap.Int("bytes", len(data)))
	}
	return nil
}

func (cd *Codec) generate(g *ir.Graph) error {
	var err error
	if cd.Direction == typecodec.Deserialize {
		cd.dec, err = gen.NewDecoder(g, cd.c.reg, cd.c.cfg)
	} else {
		cd.enc, err = gen.NewEncoder(g, cd.c.reg)
	}
	if err != nil {
		return err
	}
	cd.graph = g
	return nil
}
