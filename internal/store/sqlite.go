package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/coder/quartz"
	_ "modernc.org/sqlite"
)

const createKVTable = `
CREATE TABLE IF NOT EXISTS kv (
	key        TEXT PRIMARY KEY,
	value      BLOB NOT NULL,
	expires_at INTEGER
);
`

// SQLiteStore keeps entries in a SQLite database
type SQLiteStore struct {
	sqlDB *sql.DB
	clock quartz.Clock
}

// OpenSQLite opens (and if needed creates) the database at path
func OpenSQLite(path string, clock quartz.Clock) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	if clock == nil {
		clock = quartz.NewReal()
	}
	cleanPath := filepath.Clean(path)
	if err := os.MkdirAll(filepath.Dir(cleanPath), 0o755); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}
	dsn := cleanPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := sqlDB.Exec(createKVTable); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("create kv table: %w", err)
	}
	return &SQLiteStore{sqlDB: sqlDB, clock: clock}, nil
}

func (s *SQLiteStore) Get(ctx context.Context, key string) ([]byte, error) {
	value, _, err := s.lookup(ctx, key)
	return value, err
}

func (s *SQLiteStore) Set(ctx context.Context, key string, value []byte) error {
	return s.upsert(ctx, key, value, sql.NullInt64{})
}

func (s *SQLiteStore) SetWithExpiry(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	expires := s.clock.Now().Add(ttl).UTC().UnixMilli()
	return s.upsert(ctx, key, value, sql.NullInt64{Int64: expires, Valid: true})
}

func (s *SQLiteStore) GetWithExpiry(ctx context.Context, key string) ([]byte, error) {
	value, expiresAt, err := s.lookup(ctx, key)
	if err != nil {
		return nil, err
	}
	if expiresAt.Valid && s.clock.Now().UTC().UnixMilli() >= expiresAt.Int64 {
		if err := s.Remove(ctx, key); err != nil {
			return nil, err
		}
		return nil, ErrExpired
	}
	return value, nil
}

func (s *SQLiteStore) Remove(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := s.sqlDB.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key); err != nil {
		return fmt.Errorf("remove %s: %w", key, err)
	}
	return nil
}

// Close releases the SQLite connection
func (s *SQLiteStore) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func (s *SQLiteStore) lookup(ctx context.Context, key string) ([]byte, sql.NullInt64, error) {
	var (
		value     []byte
		expiresAt sql.NullInt64
	)
	if err := ctx.Err(); err != nil {
		return nil, expiresAt, err
	}
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT value, expires_at FROM kv WHERE key = ?`, key,
	).Scan(&value, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, expiresAt, ErrNotFound
	}
	if err != nil {
		return nil, expiresAt, fmt.Errorf("get %s: %w", key, err)
	}
	return value, expiresAt, nil
}

func (s *SQLiteStore) upsert(ctx context.Context, key string, value []byte, expiresAt sql.NullInt64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if value == nil {
		value = []byte{}
	}
	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO kv (key, value, expires_at) VALUES (?, ?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at
`, key, value, expiresAt)
	if err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}
