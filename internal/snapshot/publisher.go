// Package snapshot holds the most recent game snapshot and notifies
// subscribers whenever it is replaced.
package snapshot

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/lox/acehigh/internal/game"
	"github.com/lox/acehigh/internal/pubsub"
	"github.com/lox/acehigh/internal/store"
)

// Key is the store key the snapshot is persisted under
const Key = "snapshot"

// Publisher is the single source of the visible game state. Subscribers
// receive a snapshot they share with each other and must not modify. A nil
// snapshot means there is no game.
type Publisher struct {
	store  store.Store
	logger *log.Logger

	mu      sync.RWMutex
	current *game.GameSnapshot
	topic   pubsub.Topic[*game.GameSnapshot]
}

// New creates a publisher backed by st
func New(st store.Store, logger *log.Logger) *Publisher {
	return &Publisher{store: st, logger: logger.WithPrefix("snapshot")}
}

// Get returns a copy of the current snapshot, or nil
func (p *Publisher) Get() *game.GameSnapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.current.Clone()
}

// Set replaces the snapshot, persists it and notifies subscribers. Subscribers
// are notified even when the value is unchanged or persisting fails.
func (p *Publisher) Set(ctx context.Context, snap game.GameSnapshot) error {
	next := snap.Clone()
	p.mu.Lock()
	p.current = next
	p.mu.Unlock()

	err := store.SetJSON(ctx, p.store, Key, next)
	if err != nil {
		p.logger.Warn("failed to persist snapshot", "error", err)
		err = fmt.Errorf("persist snapshot: %w", err)
	}
	p.topic.Publish(next)
	return err
}

// Subscribe registers fn for every future publish
func (p *Publisher) Subscribe(fn func(*game.GameSnapshot)) (unsubscribe func()) {
	return p.topic.Subscribe(fn)
}

// Restore loads the persisted snapshot and publishes it. It returns nil
// when nothing was persisted.
func (p *Publisher) Restore(ctx context.Context) (*game.GameSnapshot, error) {
	snap, err := store.GetJSON[game.GameSnapshot](ctx, p.store, Key)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("restore snapshot: %w", err)
	}
	if err := snap.Validate(); err != nil {
		p.logger.Warn("discarding persisted snapshot", "error", err)
		return nil, p.Clear(ctx)
	}

	p.mu.Lock()
	p.current = &snap
	p.mu.Unlock()
	p.topic.Publish(&snap)
	return snap.Clone(), nil
}

// Clear forgets the snapshot and publishes nil
func (p *Publisher) Clear(ctx context.Context) error {
	p.mu.Lock()
	p.current = nil
	p.mu.Unlock()

	err := p.store.Remove(ctx, Key)
	p.topic.Publish(nil)
	if err != nil {
		return fmt.Errorf("clear snapshot: %w", err)
	}
	return nil
}
