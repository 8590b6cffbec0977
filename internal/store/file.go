package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/coder/quartz"
)

// FileStore keeps every entry in a single JSON document on disk. The whole
// document is rewritten atomically on each mutation, so a crash leaves
// either the previous or the new contents.
type FileStore struct {
	mu      sync.Mutex
	path    string
	clock   quartz.Clock
	entries map[string]entry
}

// OpenFile loads the store at path, creating parent directories as needed.
// A missing file is treated as an empty store.
func OpenFile(path string, clock quartz.Clock) (*FileStore, error) {
	if path == "" {
		return nil, fmt.Errorf("store path is required")
	}
	if clock == nil {
		clock = quartz.NewReal()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}

	fs := &FileStore{
		path:    path,
		clock:   clock,
		entries: make(map[string]entry),
	}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return fs, nil
	case err != nil:
		return nil, fmt.Errorf("read store: %w", err)
	}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &fs.entries); err != nil {
			return nil, fmt.Errorf("decode store %s: %w", path, err)
		}
	}
	return fs, nil
}

func (f *FileStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.entries[key]
	if !ok {
		return nil, ErrNotFound
	}
	return slices.Clone(e.Value), nil
}

func (f *FileStore) Set(ctx context.Context, key string, value []byte) error {
	return f.put(ctx, key, entry{Value: slices.Clone(value)})
}

func (f *FileStore) SetWithExpiry(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	expires := f.clock.Now().Add(ttl).UTC()
	return f.put(ctx, key, entry{Value: slices.Clone(value), ExpiresAt: &expires})
}

func (f *FileStore) GetWithExpiry(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.entries[key]
	if !ok {
		return nil, ErrNotFound
	}
	if e.expired(f.clock.Now()) {
		delete(f.entries, key)
		if err := f.flushLocked(); err != nil {
			return nil, err
		}
		return nil, ErrExpired
	}
	return slices.Clone(e.Value), nil
}

func (f *FileStore) Remove(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.entries[key]; !ok {
		return nil
	}
	delete(f.entries, key)
	return f.flushLocked()
}

func (f *FileStore) Close() error { return nil }

func (f *FileStore) put(ctx context.Context, key string, e entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	prev, had := f.entries[key]
	f.entries[key] = e
	if err := f.flushLocked(); err != nil {
		if had {
			f.entries[key] = prev
		} else {
			delete(f.entries, key)
		}
		return err
	}
	return nil
}

func (f *FileStore) flushLocked() error {
	data, err := json.MarshalIndent(f.entries, "", "  ")
	if err != nil {
		return fmt.Errorf("encode store: %w", err)
	}
	return writeAtomic(f.path, data, 0o600)
}

// writeAtomic writes to a temp file in the target directory and renames it
// over path. Readers see the old document or the new one, never a partial write.
func writeAtomic(path string, data []byte, perm os.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp.*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, perm); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}
	committed = true
	return nil
}
