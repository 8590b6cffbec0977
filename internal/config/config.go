// Package config loads acehigh settings from an HCL file, then the
// environment, with defaults for anything left unset.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/joho/godotenv"
	"github.com/lox/acehigh/internal/game"
	"github.com/lox/acehigh/internal/store"
)

// EnvPrefix prefixes every environment override
const EnvPrefix = "ACEHIGH_"

// Config is the complete client configuration
type Config struct {
	Service ServiceConfig `envPrefix:"SERVICE_"`
	Player  PlayerConfig  `envPrefix:"PLAYER_"`
	Storage StorageConfig `envPrefix:"STORAGE_"`
	Feed    FeedConfig    `envPrefix:"FEED_"`
	UI      UIConfig      `envPrefix:"UI_"`
}

// ServiceConfig locates the game service
type ServiceConfig struct {
	URL            string `hcl:"url,optional" env:"URL"`
	Token          string `hcl:"token,optional" env:"TOKEN"`
	RequestTimeout int    `hcl:"request_timeout,optional" env:"REQUEST_TIMEOUT"`
}

// Timeout returns the request timeout
func (s ServiceConfig) Timeout() time.Duration {
	return time.Duration(s.RequestTimeout) * time.Second
}

// PlayerConfig sets up new games
type PlayerConfig struct {
	Name string   `hcl:"name,optional" env:"NAME"`
	Bots []string `hcl:"bots,optional" env:"BOTS"`
}

// StorageConfig selects where the session handle and analytics live
type StorageConfig struct {
	Driver        string `hcl:"driver,optional" env:"DRIVER"`
	Path          string `hcl:"path,optional" env:"PATH"`
	RedisAddr     string `hcl:"redis_addr,optional" env:"REDIS_ADDR"`
	RedisPassword string `hcl:"redis_password,optional" env:"REDIS_PASSWORD"`
	RedisDB       int    `hcl:"redis_db,optional" env:"REDIS_DB"`
	RedisPrefix   string `hcl:"redis_prefix,optional" env:"REDIS_PREFIX"`
}

// Store returns the store configuration
func (s StorageConfig) Store() store.Config {
	return store.Config{
		Driver: s.Driver,
		Path:   s.Path,
		Redis: store.RedisConfig{
			Addr:     s.RedisAddr,
			Password: s.RedisPassword,
			DB:       s.RedisDB,
			Prefix:   s.RedisPrefix,
		},
	}
}

// FeedConfig controls the websocket feed
type FeedConfig struct {
	Enabled bool     `hcl:"enabled,optional" env:"ENABLED"`
	Addr    string   `hcl:"addr,optional" env:"ADDR"`
	Origins []string `hcl:"origins,optional" env:"ORIGINS"`
}

// UIConfig contains user interface settings
type UIConfig struct {
	LogLevel string `hcl:"log_level,optional" env:"LOG_LEVEL"`
	LogFile  string `hcl:"log_file,optional" env:"LOG_FILE"`
	NoColor  bool   `hcl:"no_color,optional" env:"NO_COLOR"`
	Coach    *bool  `hcl:"coach,optional" env:"COACH"`
}

// CoachEnabled reports whether recommendations are fetched automatically
func (u UIConfig) CoachEnabled() bool {
	return u.Coach == nil || *u.Coach
}

// file mirrors Config with every block optional
type file struct {
	Service *ServiceConfig `hcl:"service,block"`
	Player  *PlayerConfig  `hcl:"player,block"`
	Storage *StorageConfig `hcl:"storage,block"`
	Feed    *FeedConfig    `hcl:"feed,block"`
	UI      *UIConfig      `hcl:"ui,block"`
}

// Default returns the default configuration
func Default() *Config {
	return &Config{
		Service: ServiceConfig{
			URL:            "http://localhost:8000",
			RequestTimeout: 30,
		},
		Player: PlayerConfig{
			Name: game.HumanName,
			Bots: []string{"TightTimmy", "AggroAmy", "CalmCarl"},
		},
		Storage: StorageConfig{
			Driver:      store.DriverFile,
			Path:        defaultDataPath("acehigh.json"),
			RedisAddr:   "localhost:6379",
			RedisPrefix: "acehigh:",
		},
		Feed: FeedConfig{
			Addr: "127.0.0.1:8765",
		},
		UI: UIConfig{
			LogLevel: "info",
			LogFile:  defaultDataPath("acehigh.log"),
		},
	}
}

func defaultDataPath(name string) string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return name
	}
	return filepath.Join(dir, "acehigh", name)
}

// DefaultPath is where Load looks when no file is named
func DefaultPath() string {
	return defaultDataPath("config.hcl")
}

// LoadDotEnv loads KEY=value pairs from path into the environment without
// overriding variables already set. A missing file is not an error.
func LoadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// Load reads filename over the defaults, then applies ACEHIGH_* variables.
// A missing file leaves the defaults in place.
func Load(filename string) (*Config, error) {
	cfg := Default()
	if err := cfg.loadFile(filename); err != nil {
		return nil, err
	}
	if err := cfg.loadEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(filename string) error {
	if filename == "" {
		return nil
	}
	if _, err := os.Stat(filename); errors.Is(err, fs.ErrNotExist) {
		return nil
	}

	parser := hclparse.NewParser()
	f, diags := parser.ParseHCLFile(filename)
	if diags.HasErrors() {
		return fmt.Errorf("failed to parse HCL file: %s", diags.Error())
	}
	var parsed file
	if diags := gohcl.DecodeBody(f.Body, nil, &parsed); diags.HasErrors() {
		return fmt.Errorf("failed to decode HCL: %s", diags.Error())
	}
	c.merge(parsed)
	return nil
}

// merge overlays every value set in f
func (c *Config) merge(f file) {
	if s := f.Service; s != nil {
		setString(&c.Service.URL, s.URL)
		setString(&c.Service.Token, s.Token)
		setInt(&c.Service.RequestTimeout, s.RequestTimeout)
	}
	if p := f.Player; p != nil {
		setString(&c.Player.Name, p.Name)
		if len(p.Bots) > 0 {
			c.Player.Bots = p.Bots
		}
	}
	if s := f.Storage; s != nil {
		setString(&c.Storage.Driver, s.Driver)
		setString(&c.Storage.Path, s.Path)
		setString(&c.Storage.RedisAddr, s.RedisAddr)
		setString(&c.Storage.RedisPassword, s.RedisPassword)
		setInt(&c.Storage.RedisDB, s.RedisDB)
		setString(&c.Storage.RedisPrefix, s.RedisPrefix)
	}
	if fd := f.Feed; fd != nil {
		c.Feed.Enabled = fd.Enabled
		setString(&c.Feed.Addr, fd.Addr)
		if len(fd.Origins) > 0 {
			c.Feed.Origins = fd.Origins
		}
	}
	if u := f.UI; u != nil {
		setString(&c.UI.LogLevel, u.LogLevel)
		setString(&c.UI.LogFile, u.LogFile)
		c.UI.NoColor = u.NoColor
		if u.Coach != nil {
			c.UI.Coach = u.Coach
		}
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

func (c *Config) loadEnv() error {
	if err := env.ParseWithOptions(c, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	u, err := url.Parse(c.Service.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("service url must be an http(s) URL: %q", c.Service.URL)
	}
	if c.Service.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be positive")
	}

	if len(c.Player.Bots) < game.MinBots || len(c.Player.Bots) > game.MaxBots {
		return fmt.Errorf("choose between %d and %d bots, got %d", game.MinBots, game.MaxBots, len(c.Player.Bots))
	}
	for _, b := range c.Player.Bots {
		if _, ok := game.LookupBot(b); !ok {
			return fmt.Errorf("unknown bot: %s", b)
		}
	}

	switch c.Storage.Driver {
	case store.DriverMemory:
	case store.DriverFile, store.DriverSQLite:
		if c.Storage.Path == "" {
			return fmt.Errorf("storage path is required for the %s driver", c.Storage.Driver)
		}
	case store.DriverRedis:
		if c.Storage.RedisAddr == "" {
			return fmt.Errorf("redis address is required")
		}
	default:
		return fmt.Errorf("invalid storage driver: %s", c.Storage.Driver)
	}

	if c.Feed.Enabled && c.Feed.Addr == "" {
		return fmt.Errorf("feed address is required when the feed is enabled")
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[strings.ToLower(c.UI.LogLevel)] {
		return fmt.Errorf("invalid log level: %s", c.UI.LogLevel)
	}
	return nil
}
