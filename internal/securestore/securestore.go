// Package securestore provides a get/set/delete key-value surface over a
// platform secure-storage primitive that caps individual item size. Values
// larger than the cap are split into fixed-size chunks transparently; a
// caller sees the same contract as an unconstrained store and never gets
// silently truncated data.
package securestore

import (
	"context"
	"fmt"
	"strconv"

	"github.com/tandemapp/tandem/internal/logging"
)

// Backend is the opaque secure primitive (enclave, keychain, encrypted
// file). Get reports ok=false for a missing key rather than an error.
type Backend interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// DefaultChunkSize mirrors the per-item byte ceiling of mobile secure
// enclaves, which sits well below typical session-token sizes.
const DefaultChunkSize = 2048

const (
	countSuffix = "__chunks"
	chunkInfix  = "__chunk_"
)

// Adapter wraps a Backend with transparent chunking and a key namespace
// prefix, so multiple consumers can share one secure-storage service
// identifier without collisions.
type Adapter struct {
	backend   Backend
	chunkSize int
	prefix    string
	log       logging.Logger
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithChunkSize overrides the chunk threshold (mostly for tests).
func WithChunkSize(n int) Option {
	return func(a *Adapter) {
		if n > 0 {
			a.chunkSize = n
		}
	}
}

// WithPrefix namespaces every key under the given prefix.
func WithPrefix(prefix string) Option {
	return func(a *Adapter) { a.prefix = prefix }
}

func NewAdapter(backend Backend, log logging.Logger, opts ...Option) *Adapter {
	if log == nil {
		log = logging.Nop()
	}
	a := &Adapter{backend: backend, chunkSize: DefaultChunkSize, log: log}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// SetItem stores value under key, splitting it into chunks when it exceeds
// the threshold. Any previously stored chunk set for the key is cleared
// first, so a shorter value never leaves orphaned chunks behind.
//
// SetItem never returns an error: this is a best-effort durable cache, and
// a write failure must not break the surrounding session; the value is
// still usable in memory for the current run. Failures are logged.
func (a *Adapter) SetItem(ctx context.Context, key, value string) {
	full := a.prefix + key

	// Idempotent overwrite: drop whatever shape the previous value had.
	if err := a.remove(ctx, full); err != nil {
		a.log.Warn(ctx, "secure store clear before write failed", "key", key, "error", err)
	}

	if len(value) <= a.chunkSize {
		if err := a.backend.Set(ctx, full, value); err != nil {
			a.log.Warn(ctx, "secure store write failed", "key", key, "error", err)
		}
		return
	}

	count := (len(value) + a.chunkSize - 1) / a.chunkSize
	if err := a.backend.Set(ctx, full+countSuffix, strconv.Itoa(count)); err != nil {
		a.log.Warn(ctx, "secure store marker write failed", "key", key, "error", err)
		return
	}
	for i := 0; i < count; i++ {
		start := i * a.chunkSize
		end := min(start+a.chunkSize, len(value))
		if err := a.backend.Set(ctx, chunkKey(full, i), value[start:end]); err != nil {
			a.log.Warn(ctx, "secure store chunk write failed", "key", key, "chunk", i, "error", err)
			return
		}
	}
}

// GetItem returns the stored value. A chunk-count marker routes through
// reassembly: exactly that many chunks are read in order, and a missing
// chunk makes the whole value absent (ok=false) rather than truncated.
// Without a marker the single-item path is read directly.
func (a *Adapter) GetItem(ctx context.Context, key string) (string, bool, error) {
	full := a.prefix + key

	marker, ok, err := a.backend.Get(ctx, full+countSuffix)
	if err != nil {
		return "", false, fmt.Errorf("secure store read %q: %w", key, err)
	}

	if !ok {
		value, ok, err := a.backend.Get(ctx, full)
		if err != nil {
			return "", false, fmt.Errorf("secure store read %q: %w", key, err)
		}
		return value, ok, nil
	}

	count, err := strconv.Atoi(marker)
	if err != nil || count <= 0 {
		// A corrupt marker means the chunk set is unusable.
		return "", false, nil
	}

	var value []byte
	for i := 0; i < count; i++ {
		chunk, ok, err := a.backend.Get(ctx, chunkKey(full, i))
		if err != nil {
			return "", false, fmt.Errorf("secure store read %q chunk %d: %w", key, i, err)
		}
		if !ok {
			return "", false, nil
		}
		value = append(value, chunk...)
	}
	return string(value), true, nil
}

// RemoveItem clears any chunk set for key, then the direct key itself.
func (a *Adapter) RemoveItem(ctx context.Context, key string) error {
	return a.remove(ctx, a.prefix+key)
}

func (a *Adapter) remove(ctx context.Context, full string) error {
	marker, ok, err := a.backend.Get(ctx, full+countSuffix)
	if err != nil {
		return err
	}
	if ok {
		if count, convErr := strconv.Atoi(marker); convErr == nil {
			for i := 0; i < count; i++ {
				if err := a.backend.Delete(ctx, chunkKey(full, i)); err != nil {
					return err
				}
			}
		}
		if err := a.backend.Delete(ctx, full+countSuffix); err != nil {
			return err
		}
	}
	return a.backend.Delete(ctx, full)
}

func chunkKey(full string, i int) string {
	return full + chunkInfix + strconv.Itoa(i)
}
