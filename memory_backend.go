package swrcache

import (
	"context"
	"sync"
	"time"
)

// memoryEntry is a single stored record in a MemoryBackend.
type memoryEntry struct {
	value     []byte
	expiresAt time.Time // zero means no expiration
}

// MemoryBackend is an in-process, map-based Backend implementation. It
// exists for tests and for small deployments that don't need a durable
// store; it is not a replacement for BadgerBackend in production.
type MemoryBackend struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	closed  bool
}

var _ Backend = (*MemoryBackend)(nil)

// NewMemoryBackend constructs an empty MemoryBackend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{entries: make(map[string]memoryEntry)}
}

func (m *MemoryBackend) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.entries[key]
	if !ok {
		return nil, ErrMiss
	}
	if !e.expiresAt.IsZero() && time.Now().After(e.expiresAt) {
		return nil, ErrMiss
	}

	out := make([]byte, len(e.value))
	copy(out, e.value)
	return out, nil
}

func (m *MemoryBackend) Set(ctx context.Context, key string, value []byte, opts EntryOptions) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var expiresAt time.Time
	if rel := effectiveRelativeTTL(&opts, time.Now()); rel > 0 {
		expiresAt = time.Now().Add(rel)
	}

	stored := make([]byte, len(value))
	copy(stored, value)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = memoryEntry{value: stored, expiresAt: expiresAt}
	return nil
}

func (m *MemoryBackend) Remove(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}

func (m *MemoryBackend) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Size reports the number of live (non-expired) entries. Intended for tests.
func (m *MemoryBackend) Size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	now := time.Now()
	for _, e := range m.entries {
		if e.expiresAt.IsZero() || now.Before(e.expiresAt) {
			n++
		}
	}
	return n
}
