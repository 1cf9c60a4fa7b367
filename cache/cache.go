// Package cache names, encodes and stores compiled plan artifacts.
//
// Artifacts are content addressed: the name is derived from the canonical
// type string, a variant hash of the options that shape the graph, the
// direction, the decode strategy and the format. Two builds with the same
// name produce byte-identical artifacts, so an existing artifact is never
// rewritten unless it turned out to be stale.
package cache

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/vmihailenco/msgpack/v5"
	"golang.org/x/crypto/blake2b"

	typecodec "github.com/reoring/typecodec"
	"github.com/reoring/typecodec/internal/ir"
)

// Ext is the artifact file extension.
const Ext = ".plan"

// Key identifies one artifact.
type Key struct {
	Type      string // canonical type string
	Variant   string // VariantHash of the graph-shaping options, or ""
	Direction typecodec.Direction
	Strategy  typecodec.Strategy
	Format    typecodec.Format
}

// Hash returns the lowercase hex BLAKE2b-256 digest of s.
func Hash(s string) string {
	sum := blake2b.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// VariantHash hashes the non-empty parts in order. It returns "" when every
// part is empty so plain builds keep the short name.
func VariantHash(parts ...string) string {
	var kept []string
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	if len(kept) == 0 {
		return ""
	}
	return Hash(strings.Join(kept, "\x00"))
}

// Name renders the artifact name:
// {hash(type[.variant])}.{direction}.{strategy}.{format}.plan
func Name(k Key) string {
	src := k.Type
	if k.Variant != "" {
		src += "." + k.Variant
	}
	return fmt.Sprintf("%s.%s.%s.%s%s", Hash(src), k.Direction, k.Strategy, k.Format, Ext)
}

// EncodePlan serializes p. Output depends on p only.
func EncodePlan(p *ir.Plan) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetSortMapKeys(true)
	if err := enc.Encode(p); err != nil {
		return nil, fmt.Errorf("encode plan: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodePlan parses an artifact produced by EncodePlan.
func DecodePlan(data []byte) (*ir.Plan, error) {
	var p ir.Plan
	if err := msgpack.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("%w: decode plan: %v", ir.ErrStale, err)
	}
	return &p, nil
}

// Store persists artifacts by name.
type Store interface {
	// Get returns the artifact or ok=false when it does not exist.
	Get(name string) (data []byte, ok bool, err error)
	// Put publishes data unless an artifact with the same name exists.
	// stored reports whether this call wrote it.
	Put(name string, data []byte) (stored bool, err error)
	// Delete removes an artifact; missing artifacts are not an error.
	Delete(name string) error
	Close() error
}

// Open returns the store selected by backend ("" means file).
func Open(backend, dir string) (Store, error) {
	switch backend {
	case "", typecodec.CacheBackendFile:
		return NewFileStore(dir)
	case typecodec.CacheBackendBadger:
		return OpenBadger(dir)
	}
	return nil, typecodec.Errorf(typecodec.CodeInvalidType, "unknown cache backend %q", backend)
}
