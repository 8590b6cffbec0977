package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/lox/acehigh/internal/coach"
	"github.com/lox/acehigh/internal/config"
	"github.com/lox/acehigh/internal/feed"
	"github.com/lox/acehigh/internal/session"
	"github.com/lox/acehigh/internal/snapshot"
	"github.com/lox/acehigh/internal/stats"
	"github.com/lox/acehigh/internal/tui"
	"golang.org/x/sync/errgroup"
)

// PlayCmd runs the interactive table
type PlayCmd struct {
	Name    string   `short:"p" help:"Player name (overrides config)"`
	Bots    []string `short:"b" help:"Bots to play against, e.g. --bots=AggroAmy,CalmCarl (overrides config)"`
	Feed    bool     `help:"Serve the websocket spectator feed"`
	NoCoach bool     `name:"no-coach" help:"Do not fetch recommendations automatically"`
	Fresh   bool     `help:"Start a new game instead of resuming the saved one"`
}

func (c *PlayCmd) apply(cfg *config.Config) {
	if name := strings.TrimSpace(c.Name); name != "" {
		cfg.Player.Name = name
	}
	if len(c.Bots) > 0 {
		cfg.Player.Bots = c.Bots
	}
	if c.Feed {
		cfg.Feed.Enabled = true
	}
	if c.NoCoach {
		off := false
		cfg.UI.Coach = &off
	}
}

func (c *PlayCmd) Run(g *Globals) error {
	cfg, err := g.load()
	if err != nil {
		return err
	}
	c.apply(cfg)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger, logFile, err := openLog(cfg.UI)
	if err != nil {
		return err
	}
	defer func() { _ = logFile.Close() }()

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

	logger.Info("Starting acehigh",
		"service", cfg.Service.URL,
		"player", cfg.Player.Name,
		"bots", cfg.Player.Bots,
		"storage", cfg.Storage.Driver)

	publisher := snapshot.New(st, logger)
	aggregator := stats.New(st, logger)
	orch := session.New(client, st, publisher, aggregator, session.WithLogger(logger))
	defer func() { _ = orch.Close() }()

	var (
		advisor *coach.Advisor
		asker   tui.Coach
		advice  tui.AdviceSource
	)
	if cfg.UI.CoachEnabled() {
		advisor = coach.New(client, orch, logger)
		defer func() { _ = advisor.Close() }()
		defer publisher.Subscribe(advisor.Observe)()
		asker, advice = advisor, advisor
	}

	model := tui.NewTUIModel(orch, asker, logger, tui.Options{
		HumanName: cfg.Player.Name,
		Bots:      cfg.Player.Bots,
		Ctx:       ctx,
	})
	model.AddLogEntry("=== acehigh ===")
	model.AddLogEntry("Service: " + cfg.Service.URL)
	model.AddLogEntry("Player: " + cfg.Player.Name)
	model.AddLogEntry("Type help for commands")
	model.AddLogEntry("")

	program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	bridge := tui.NewBridge(program, publisher, orch, advice)
	defer bridge.Close()

	group, gctx := errgroup.WithContext(ctx)

	if cfg.Feed.Enabled {
		hub := feed.NewHub(publisher, logger, cfg.Feed.Origins...)
		if advisor != nil {
			hub.Attach(orch, advisor)
		} else {
			hub.Attach(orch, nil)
		}
		group.Go(func() error {
			return hub.Serve(gctx, cfg.Feed.Addr)
		})
		model.AddLogEntry("Spectator feed: ws://" + cfg.Feed.Addr + "/ws")
	}

	group.Go(func() error {
		c.begin(gctx, orch, cfg, logger)
		return nil
	})

	_, runErr := program.Run()
	stop()
	_ = orch.Close()
	if err := group.Wait(); err != nil {
		logger.Error("background task failed", "error", err)
		if runErr == nil {
			runErr = err
		}
	}
	if runErr != nil && !errors.Is(runErr, tea.ErrProgramKilled) {
		return fmt.Errorf("running TUI: %w", runErr)
	}
	return nil
}

// begin resumes the saved game or creates one, then deals
func (c *PlayCmd) begin(ctx context.Context, orch *session.Orchestrator, cfg *config.Config, logger *log.Logger) {
	if c.Fresh {
		if err := orch.EndSession(ctx); err != nil {
			logger.Warn("failed to end saved game", "error", err)
		}
	} else {
		resumed, err := orch.Resume(ctx)
		switch {
		case err != nil && !errors.Is(err, session.ErrStaleSession):
			logger.Warn("failed to resume game", "error", err)
			return
		case resumed:
			return
		}
	}

	if err := orch.CreateGame(ctx, cfg.Player.Name, cfg.Player.Bots); err != nil {
		logger.Warn("failed to create game", "error", err)
		return
	}
	if err := orch.StartHand(ctx); err != nil {
		logger.Warn("failed to deal", "error", err)
	}
}
