package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/lox/acehigh/internal/gameapi/gameapitest"
	"golang.org/x/sync/errgroup"
)

// SandboxCmd serves the game API from in-process tables so the client can be
// played without the real service
type SandboxCmd struct {
	Addr    string   `kong:"default='127.0.0.1:8000',help='Listen address'"`
	Seed    *uint64  `kong:"help='Deterministic dealing seed (optional)'"`
	Token   string   `kong:"help='Require this bearer token'"`
	Origins []string `kong:"help='Browser origins allowed by CORS (all when empty)'"`
}

func (c *SandboxCmd) Run(g *Globals) error {
	cfg, err := g.load()
	if err != nil {
		return err
	}
	logger := stderrLogger(cfg.UI)

	seed := uint64(time.Now().UnixNano())
	if c.Seed != nil {
		seed = *c.Seed
		logger.Info("Using deterministic seed", "seed", seed)
	}

	srv := gameapitest.New(
		gameapitest.WithSandbox(seed),
		gameapitest.WithToken(c.Token),
		gameapitest.WithCORS(c.Origins...),
		gameapitest.WithLogger(logger),
	)
	httpSrv := &http.Server{
		Addr:              c.Addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signalContext()
	defer stop()

	group, gctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		logger.Info("Sandbox service listening", "addr", c.Addr, "url", "http://"+c.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("sandbox: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		logger.Info("Shutting down sandbox")
		return httpSrv.Shutdown(shutdownCtx)
	})
	return group.Wait()
}
