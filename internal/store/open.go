package store

import (
	"context"
	"fmt"

	"github.com/coder/quartz"
)

// Drivers understood by Open
const (
	DriverMemory = "memory"
	DriverFile   = "file"
	DriverSQLite = "sqlite"
	DriverRedis  = "redis"
)

// Config selects and configures a backend
type Config struct {
	Driver string
	Path   string
	Redis  RedisConfig
}

// Open creates the backend named by cfg.Driver
func Open(ctx context.Context, cfg Config, clock quartz.Clock) (Store, error) {
	switch cfg.Driver {
	case DriverMemory:
		return NewMemoryStore(clock), nil
	case DriverFile, "":
		return OpenFile(cfg.Path, clock)
	case DriverSQLite:
		return OpenSQLite(cfg.Path, clock)
	case DriverRedis:
		return OpenRedis(ctx, cfg.Redis, clock)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}
