package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/coder/quartz"
	"github.com/redis/go-redis/v9"
)

// expiredGrace keeps an expired entry in Redis long enough for
// GetWithExpiry to report ErrExpired instead of ErrNotFound.
const expiredGrace = time.Hour

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// RedisStore keeps entries in Redis. Expiring entries also carry a Redis
// TTL so abandoned sessions are reclaimed by the server.
type RedisStore struct {
	client *redis.Client
	clock  quartz.Clock
	prefix string
}

// OpenRedis connects to Redis and verifies the connection
func OpenRedis(ctx context.Context, cfg RedisConfig, clock quartz.Clock) (*RedisStore, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("redis address is required")
	}
	if clock == nil {
		clock = quartz.NewReal()
	}
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis at %s: %w", cfg.Addr, err)
	}

	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "acehigh:"
	}
	return &RedisStore{client: client, clock: clock, prefix: prefix}, nil
}

func (r *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	e, err := r.load(ctx, key)
	if err != nil {
		return nil, err
	}
	return e.Value, nil
}

func (r *RedisStore) Set(ctx context.Context, key string, value []byte) error {
	return r.save(ctx, key, entry{Value: value}, 0)
}

func (r *RedisStore) SetWithExpiry(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	expires := r.clock.Now().Add(ttl).UTC()
	return r.save(ctx, key, entry{Value: value, ExpiresAt: &expires}, ttl+expiredGrace)
}

func (r *RedisStore) GetWithExpiry(ctx context.Context, key string) ([]byte, error) {
	e, err := r.load(ctx, key)
	if err != nil {
		return nil, err
	}
	if e.expired(r.clock.Now()) {
		if err := r.Remove(ctx, key); err != nil {
			return nil, err
		}
		return nil, ErrExpired
	}
	return e.Value, nil
}

func (r *RedisStore) Remove(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.prefix+key).Err(); err != nil {
		return fmt.Errorf("remove %s: %w", key, err)
	}
	return nil
}

// Close closes the Redis connection pool
func (r *RedisStore) Close() error {
	return r.client.Close()
}

func (r *RedisStore) load(ctx context.Context, key string) (entry, error) {
	var e entry
	data, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return e, ErrNotFound
	}
	if err != nil {
		return e, fmt.Errorf("get %s: %w", key, err)
	}
	if err := json.Unmarshal(data, &e); err != nil {
		return e, fmt.Errorf("decode %s: %w", key, err)
	}
	return e, nil
}

func (r *RedisStore) save(ctx context.Context, key string, e entry, ttl time.Duration) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := r.client.Set(ctx, r.prefix+key, data, ttl).Err(); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}
