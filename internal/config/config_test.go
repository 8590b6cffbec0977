package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/lox/acehigh/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.hcl"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	require.NoError(t, cfg.Validate())
}

func TestLoadFile(t *testing.T) {
	path := writeFile(t, "config.hcl", `
service {
  url             = "https://poker.example.com"
  request_timeout = 5
}

player {
  name = "Lachlan"
  bots = ["LooseLauren", "CalmCarl"]
}

storage {
  driver = "sqlite"
  path   = "/tmp/acehigh.db"
}

ui {
  coach = false
}
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "https://poker.example.com", cfg.Service.URL)
	assert.Equal(t, 5*time.Second, cfg.Service.Timeout())
	assert.Equal(t, "Lachlan", cfg.Player.Name)
	assert.Equal(t, []string{"LooseLauren", "CalmCarl"}, cfg.Player.Bots)
	assert.Equal(t, store.DriverSQLite, cfg.Storage.Driver)
	assert.False(t, cfg.UI.CoachEnabled())

	// blocks left out keep their defaults
	assert.Equal(t, Default().Feed, cfg.Feed)
	assert.Equal(t, "info", cfg.UI.LogLevel)
}

func TestInvalidHCL(t *testing.T) {
	_, err := Load(writeFile(t, "bad.hcl", `service {`))
	assert.Error(t, err)

	_, err = Load(writeFile(t, "unknown.hcl", `table { seats = 9 }`))
	assert.Error(t, err)
}

func TestEnvironmentOverridesFile(t *testing.T) {
	path := writeFile(t, "config.hcl", `service { url = "http://from-file:8000" }`)
	t.Setenv("ACEHIGH_SERVICE_URL", "http://from-env:9000")
	t.Setenv("ACEHIGH_PLAYER_BOTS", "AggroAmy,TightTimmy")
	t.Setenv("ACEHIGH_STORAGE_DRIVER", "redis")
	t.Setenv("ACEHIGH_STORAGE_REDIS_DB", "3")
	t.Setenv("ACEHIGH_FEED_ENABLED", "true")
	t.Setenv("ACEHIGH_UI_COACH", "false")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "http://from-env:9000", cfg.Service.URL)
	assert.Equal(t, []string{"AggroAmy", "TightTimmy"}, cfg.Player.Bots)
	assert.Equal(t, store.DriverRedis, cfg.Storage.Driver)
	assert.Equal(t, 3, cfg.Storage.Store().Redis.DB)
	assert.True(t, cfg.Feed.Enabled)
	assert.False(t, cfg.UI.CoachEnabled())
}

func TestBadEnvironmentValue(t *testing.T) {
	t.Setenv("ACEHIGH_SERVICE_REQUEST_TIMEOUT", "soon")
	_, err := Load("")
	assert.Error(t, err)
}

func TestLoadDotEnv(t *testing.T) {
	require.NoError(t, LoadDotEnv(filepath.Join(t.TempDir(), ".env")), "missing file is fine")

	path := writeFile(t, ".env", "ACEHIGH_TEST_DOTENV=hello\n")
	t.Setenv("ACEHIGH_TEST_DOTENV", "")
	require.NoError(t, os.Unsetenv("ACEHIGH_TEST_DOTENV"))
	require.NoError(t, LoadDotEnv(path))
	assert.Equal(t, "hello", os.Getenv("ACEHIGH_TEST_DOTENV"))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"bad url", func(c *Config) { c.Service.URL = "localhost:8000" }},
		{"no timeout", func(c *Config) { c.Service.RequestTimeout = 0 }},
		{"no bots", func(c *Config) { c.Player.Bots = nil }},
		{"too many bots", func(c *Config) { c.Player.Bots = []string{"AggroAmy", "AggroAmy", "AggroAmy", "AggroAmy", "AggroAmy", "AggroAmy"} }},
		{"unknown bot", func(c *Config) { c.Player.Bots = []string{"Phil"} }},
		{"unknown driver", func(c *Config) { c.Storage.Driver = "etcd" }},
		{"sqlite without path", func(c *Config) { c.Storage.Driver = store.DriverSQLite; c.Storage.Path = "" }},
		{"feed without addr", func(c *Config) { c.Feed.Enabled = true; c.Feed.Addr = "" }},
		{"bad log level", func(c *Config) { c.UI.LogLevel = "loud" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
