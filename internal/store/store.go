// Package store is the client's durable key-value storage. Every backend
// supports plain entries and entries that expire after a TTL.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound is returned when a key has no value
	ErrNotFound = errors.New("store: key not found")

	// ErrExpired is returned by GetWithExpiry when the entry outlived its TTL.
	// The entry is removed before the error is returned.
	ErrExpired = errors.New("store: entry expired")
)

// Store is a durable key-value store
type Store interface {
	// Get returns the value for key regardless of any expiry
	Get(ctx context.Context, key string) ([]byte, error)
	// Set stores value with no expiry
	Set(ctx context.Context, key string, value []byte) error
	// SetWithExpiry stores value until ttl has elapsed
	SetWithExpiry(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// GetWithExpiry returns the value for key, or ErrExpired once its TTL has elapsed
	GetWithExpiry(ctx context.Context, key string) ([]byte, error)
	// Remove deletes key. Removing a missing key is not an error.
	Remove(ctx context.Context, key string) error
	Close() error
}

// GetJSON decodes the value stored under key into a T
func GetJSON[T any](ctx context.Context, s Store, key string) (T, error) {
	var v T
	data, err := s.Get(ctx, key)
	if err != nil {
		return v, err
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return v, fmt.Errorf("decode %s: %w", key, err)
	}
	return v, nil
}

// GetJSONOr is GetJSON with a fallback for missing keys
func GetJSONOr[T any](ctx context.Context, s Store, key string, fallback T) (T, error) {
	v, err := GetJSON[T](ctx, s, key)
	if errors.Is(err, ErrNotFound) {
		return fallback, nil
	}
	return v, err
}

// GetJSONWithExpiry decodes an expiring value stored under key
func GetJSONWithExpiry[T any](ctx context.Context, s Store, key string) (T, error) {
	var v T
	data, err := s.GetWithExpiry(ctx, key)
	if err != nil {
		return v, err
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return v, fmt.Errorf("decode %s: %w", key, err)
	}
	return v, nil
}

// SetJSON encodes v and stores it under key
func SetJSON(ctx context.Context, s Store, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return s.Set(ctx, key, data)
}

// SetJSONWithExpiry encodes v and stores it under key until ttl has elapsed
func SetJSONWithExpiry(ctx context.Context, s Store, key string, v any, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return s.SetWithExpiry(ctx, key, data, ttl)
}
