package session_test

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/lox/acehigh/internal/game"
	"github.com/lox/acehigh/internal/gameapi"
	"github.com/lox/acehigh/internal/gameapi/gameapitest"
	"github.com/lox/acehigh/internal/session"
	"github.com/lox/acehigh/internal/snapshot"
	"github.com/lox/acehigh/internal/stats"
	"github.com/lox/acehigh/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlayHandAgainstSandbox(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger := log.NewWithOptions(io.Discard, log.Options{Level: log.ErrorLevel})
	srv := gameapitest.New(gameapitest.WithSandbox(42))
	client, err := gameapi.New(srv.Start(t), gameapi.WithLogger(logger))
	require.NoError(t, err)

	st := store.NewMemoryStore(nil)
	agg := stats.New(st, logger)
	pub := snapshot.New(st, logger)
	orch := session.New(client, st, pub, agg,
		session.WithLogger(logger),
		session.WithTimings(session.Timings{
			NarrationDwell: time.Millisecond,
			NextHandPause:  time.Hour,
		}),
	)
	defer orch.Close()

	require.NoError(t, orch.CreateGame(ctx, "", []string{"TightTimmy", "CalmCarl"}))
	require.NoError(t, orch.StartHand(ctx))

	for i := 0; i < 50 && orch.Phase() == session.PhaseInProgress; i++ {
		view := pub.Get()
		require.NotNil(t, view)
		require.True(t, view.IsHumanTurn(), "control returns to the human mid-hand")

		action := game.ActionCall
		if view.CurrentPlayer().CanAct(game.ActionCheck) {
			action = game.ActionCheck
		}
		require.NoError(t, orch.SubmitPlayerAction(ctx, action, 0))
	}

	assert.NotEqual(t, session.PhaseInProgress, orch.Phase())
	r, err := agg.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, r.HandsPlayed)
	assert.Equal(t, 1, r.SessionsPlayed)
	assert.Equal(t, 1, orch.GameStats().HandsPlayed)
	assert.Positive(t, srv.Count(gameapi.RouteBotAction))
}
