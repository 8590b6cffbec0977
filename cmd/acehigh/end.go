package main

import (
	"errors"
	"fmt"

	"github.com/lox/acehigh/internal/game"
	"github.com/lox/acehigh/internal/session"
	"github.com/lox/acehigh/internal/snapshot"
	"github.com/lox/acehigh/internal/stats"
	"github.com/lox/acehigh/internal/store"
)

// EndCmd deletes the saved game on the service and forgets it locally
type EndCmd struct{}

func (c *EndCmd) Run(g *Globals) error {
	cfg, err := g.load()
	if err != nil {
		return err
	}
	logger := stderrLogger(cfg.UI)

	ctx, stop := signalContext()
	defer stop()

	st, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	client, err := newClient(cfg, logger)
	if err != nil {
		return err
	}

	handle, err := store.GetJSONWithExpiry[game.SessionHandle](ctx, st, session.KeyHandle)
	switch {
	case errors.Is(err, store.ErrNotFound):
		fmt.Println("No saved game")
		return nil
	case errors.Is(err, store.ErrExpired):
		fmt.Println("Saved game had already expired")
	case err != nil:
		return fmt.Errorf("loading saved game: %w", err)
	default:
		if err := client.EndGame(ctx, handle.GameID); err != nil {
			logger.Warn("service did not delete the game", "game", handle.GameID, "error", err)
		} else {
			fmt.Printf("Ended game %s\n", handle.GameID)
		}
	}

	// EndSession without a loaded handle only clears local state
	orch := session.New(client, st, snapshot.New(st, logger), stats.New(st, logger), session.WithLogger(logger))
	defer func() { _ = orch.Close() }()
	return orch.EndSession(ctx)
}
