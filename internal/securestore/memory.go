package securestore

import (
	"context"
	"fmt"
	"sync"

	"github.com/tandemapp/tandem/internal/common"
)

// MemoryBackend is an in-memory Backend used in tests and as the in-memory
// degradation target when a durable backend is unavailable. MaxItemSize, if
// positive, simulates the per-item cap of a real enclave.
type MemoryBackend struct {
	MaxItemSize int

	mu    sync.RWMutex
	items map[string]string
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{items: make(map[string]string)}
}

func (m *MemoryBackend) Get(ctx context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.items[key]
	return v, ok, nil
}

func (m *MemoryBackend) Set(ctx context.Context, key, value string) error {
	if m.MaxItemSize > 0 && len(value) > m.MaxItemSize {
		return fmt.Errorf("%w: %d bytes", common.ErrItemTooLarge, len(value))
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[key] = value
	return nil
}

func (m *MemoryBackend) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, key)
	return nil
}

// Keys returns the stored keys; test helper for asserting no stray chunks.
func (m *MemoryBackend) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.items))
	for k := range m.items {
		keys = append(keys, k)
	}
	return keys
}
