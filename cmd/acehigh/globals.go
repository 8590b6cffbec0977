package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/lox/acehigh/internal/config"
	"github.com/lox/acehigh/internal/gameapi"
	"github.com/lox/acehigh/internal/store"
)

// Globals are flags shared by every command
type Globals struct {
	Config   string `short:"c" help:"Path to HCL configuration file (defaults to the user config dir)"`
	EnvFile  string `name:"env-file" default:".env" help:"Dotenv file loaded before ACEHIGH_* variables are read"`
	Server   string `short:"s" help:"Game service URL (overrides config)"`
	LogLevel string `short:"l" name:"log-level" help:"Log level (overrides config)"`
	LogFile  string `name:"log-file" help:"Log file path (overrides config)"`
}

// load reads the configuration and applies command line overrides
func (g *Globals) load() (*config.Config, error) {
	if err := config.LoadDotEnv(g.EnvFile); err != nil {
		return nil, err
	}
	path := g.Config
	if path == "" {
		path = config.DefaultPath()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	if g.Server != "" {
		cfg.Service.URL = strings.TrimSpace(g.Server)
	}
	if g.LogLevel != "" {
		cfg.UI.LogLevel = g.LogLevel
	}
	if g.LogFile != "" {
		cfg.UI.LogFile = g.LogFile
	}
	return cfg, nil
}

// openLog opens the log file. The TUI owns the terminal, so nothing is
// written to stderr while it runs.
func openLog(ui config.UIConfig) (*log.Logger, io.Closer, error) {
	if err := os.MkdirAll(filepath.Dir(ui.LogFile), 0o755); err != nil {
		return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	logFile, err := os.OpenFile(ui.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}

	logger := log.NewWithOptions(logFile, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05",
	})
	level, err := log.ParseLevel(ui.LogLevel)
	if err != nil {
		level = log.InfoLevel
	}
	logger.SetLevel(level)
	return logger, logFile, nil
}

// stderrLogger is used by commands that do not take over the terminal
func stderrLogger(ui config.UIConfig) *log.Logger {
	logger := log.NewWithOptions(os.Stderr, log.Options{ReportTimestamp: true})
	if level, err := log.ParseLevel(ui.LogLevel); err == nil {
		logger.SetLevel(level)
	}
	return logger
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	st, err := store.Open(ctx, cfg.Storage.Store(), quartz.NewReal())
	if err != nil {
		return nil, fmt.Errorf("opening %s store: %w", cfg.Storage.Driver, err)
	}
	return st, nil
}

func newClient(cfg *config.Config, logger *log.Logger) (*gameapi.Client, error) {
	opts := []gameapi.Option{
		gameapi.WithTimeout(cfg.Service.Timeout()),
		gameapi.WithLogger(logger),
	}
	if cfg.Service.Token != "" {
		opts = append(opts, gameapi.WithToken(cfg.Service.Token))
	}
	return gameapi.New(cfg.Service.URL, opts...)
}
