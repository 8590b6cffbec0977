package store

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/coder/quartz"
)

type entry struct {
	Value     []byte     `json:"value"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

func (e entry) expired(now time.Time) bool {
	return e.ExpiresAt != nil && !now.Before(*e.ExpiresAt)
}

// MemoryStore keeps entries in process memory
type MemoryStore struct {
	mu      sync.Mutex
	clock   quartz.Clock
	entries map[string]entry
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore(clock quartz.Clock) *MemoryStore {
	if clock == nil {
		clock = quartz.NewReal()
	}
	return &MemoryStore{
		clock:   clock,
		entries: make(map[string]entry),
	}
}

func (m *MemoryStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok {
		return nil, ErrNotFound
	}
	return slices.Clone(e.Value), nil
}

func (m *MemoryStore) Set(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = entry{Value: slices.Clone(value)}
	return nil
}

func (m *MemoryStore) SetWithExpiry(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	expires := m.clock.Now().Add(ttl)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = entry{Value: slices.Clone(value), ExpiresAt: &expires}
	return nil
}

func (m *MemoryStore) GetWithExpiry(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok {
		return nil, ErrNotFound
	}
	if e.expired(m.clock.Now()) {
		delete(m.entries, key)
		return nil, ErrExpired
	}
	return slices.Clone(e.Value), nil
}

func (m *MemoryStore) Remove(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}

func (m *MemoryStore) Close() error { return nil }
