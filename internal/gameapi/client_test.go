package gameapi_test

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lox/acehigh/internal/game"
	"github.com/lox/acehigh/internal/gameapi"
	"github.com/lox/acehigh/internal/gameapi/gameapitest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClient(t *testing.T, srv *gameapitest.Server, opts ...gameapi.Option) *gameapi.Client {
	t.Helper()
	c, err := gameapi.New(srv.Start(t), opts...)
	require.NoError(t, err)
	return c
}

func threeHanded() game.GameSnapshot {
	return game.GameSnapshot{
		GameStage:        game.StagePreflop,
		CurrentPlayerIdx: 0,
		CurrentBet:       20,
		TotalPot:         30,
		BigBlind:         20,
		Players: []game.Player{
			{Name: "HumanUser", Chips: 1000, Status: game.StatusActive, AvailableActions: []game.Action{game.ActionFold, game.ActionCall, game.ActionRaise}, CallAmount: 20},
			{Name: "LooseLauren", IsBot: true, Chips: 990, Status: game.StatusActive, CurrentStreetContribution: 10},
			{Name: "TightTimmy", IsBot: true, Chips: 980, Status: game.StatusActive, CurrentStreetContribution: 20},
		},
	}
}

func TestCreateSessionSendsSeating(t *testing.T) {
	srv := gameapitest.New()
	srv.Enqueue(gameapi.RouteCreate, http.StatusOK, gameapitest.CreateReply{GameID: "g-1", State: threeHanded()})
	client := newClient(t, srv, gameapi.WithToken("s3cret"))

	names, ids, err := game.Seating("", []string{"LooseLauren", "TightTimmy"})
	require.NoError(t, err)

	id, snap, err := client.CreateSession(context.Background(), names, ids)
	require.NoError(t, err)
	assert.Equal(t, "g-1", id)
	assert.Len(t, snap.Players, 3)

	reqs := srv.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "Bearer s3cret", reqs[0].Header.Get("Authorization"))
	_, err = uuid.Parse(reqs[0].Header.Get("X-Request-ID"))
	assert.NoError(t, err, "request id should be a uuid")

	var body struct {
		PlayerNames []string  `json:"player_names"`
		BotIDs      []*string `json:"bot_ids"`
	}
	require.NoError(t, reqs[0].Decode(&body))
	assert.Equal(t, []string{"HumanUser", "LooseLauren", "TightTimmy"}, body.PlayerNames)
	require.Len(t, body.BotIDs, 3)
	assert.Nil(t, body.BotIDs[0])
	assert.Equal(t, "looselauren", *body.BotIDs[1])
}

func TestAdvanceBotTurnMapsNarrationAndWinner(t *testing.T) {
	snap := threeHanded()
	idx := 2
	srv := gameapitest.New()
	srv.Enqueue(gameapi.RouteBotAction, http.StatusOK, gameapitest.TurnReply{
		GameState:    snap,
		Status:       game.TurnInProgress,
		TableComment: "Raise it up!",
		CommentIndex: &idx,
	})
	delta := -20
	srv.Enqueue(gameapi.RouteBotAction, http.StatusOK, gameapitest.TurnReply{
		GameState: snap,
		Status:    game.TurnHandComplete,
		Winner:    "TightTimmy",
		ChipDelta: &delta,
	})
	srv.Enqueue(gameapi.RouteBotAction, http.StatusOK, gameapitest.TurnReply{
		GameState: snap,
		Status:    game.TurnHandComplete,
		Winner:    1,
	})
	client := newClient(t, srv)
	ctx := context.Background()

	res, err := client.AdvanceBotTurn(ctx, "g-1")
	require.NoError(t, err)
	assert.False(t, res.HandComplete())
	require.NotNil(t, res.Narration)
	assert.Equal(t, "Raise it up!", res.Narration.Text)
	assert.Equal(t, 2, res.Narration.ActorIndex)
	assert.Equal(t, "TightTimmy", res.Narration.ActorName)
	assert.Nil(t, res.Winner)

	res, err = client.AdvanceBotTurn(ctx, "g-1")
	require.NoError(t, err)
	assert.True(t, res.HandComplete())
	assert.Nil(t, res.Narration)
	require.NotNil(t, res.Winner)
	assert.Equal(t, game.PlayerRef{Index: 2, Name: "TightTimmy"}, *res.Winner)
	require.NotNil(t, res.ChipDelta)
	assert.Equal(t, -20, *res.ChipDelta)

	res, err = client.AdvanceBotTurn(ctx, "g-1")
	require.NoError(t, err)
	require.NotNil(t, res.Winner)
	assert.Equal(t, 1, res.Winner.Index)
	assert.Nil(t, res.ChipDelta)
}

func TestSubmitPlayerActionBody(t *testing.T) {
	srv := gameapitest.New()
	srv.Enqueue(gameapi.RoutePlayerAction, http.StatusOK, gameapitest.TurnReply{GameState: threeHanded()})
	client := newClient(t, srv)

	res, err := client.SubmitPlayerAction(context.Background(), "g-1", game.ActionRaise, 60)
	require.NoError(t, err)
	assert.Equal(t, game.TurnInProgress, res.Status, "missing status means the hand goes on")

	var body map[string]any
	require.NoError(t, srv.Requests()[0].Decode(&body))
	assert.Equal(t, "g-1", body["game_id"])
	assert.Equal(t, "raise", body["action"])
	assert.EqualValues(t, 60, body["amount"])
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		wantStale bool
	}{
		{"not found", http.StatusNotFound, true},
		{"server error", http.StatusInternalServerError, false},
		{"bad request", http.StatusBadRequest, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := gameapitest.New()
			srv.Enqueue(gameapi.RouteStartHand, tt.status, map[string]string{"detail": "Game not found"})
			client := newClient(t, srv)

			_, err := client.StartHand(context.Background(), "gone")
			require.Error(t, err)
			assert.ErrorIs(t, err, gameapi.ErrServiceUnavailable)
			assert.Equal(t, tt.wantStale, errors.Is(err, gameapi.ErrStaleSession))

			var statusErr *gameapi.StatusError
			require.ErrorAs(t, err, &statusErr)
			assert.Equal(t, tt.status, statusErr.StatusCode)
			assert.Equal(t, "Game not found", statusErr.Detail)
		})
	}
}

func TestTransportFailureIsUnavailable(t *testing.T) {
	client, err := gameapi.New("http://127.0.0.1:1", gameapi.WithTimeout(time.Second))
	require.NoError(t, err)

	_, err = client.StartHand(context.Background(), "g-1")
	assert.ErrorIs(t, err, gameapi.ErrServiceUnavailable)
	assert.False(t, errors.Is(err, gameapi.ErrStaleSession))
}

func TestCancelledRequestReturnsContextError(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	srv := gameapitest.New()
	srv.EnqueueReply(gameapi.RouteBotAction, gameapitest.Reply{Body: gameapitest.TurnReply{}, Wait: release})
	client := newClient(t, srv)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := client.AdvanceBotTurn(ctx, "g-1")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestCoachRoutes(t *testing.T) {
	srv := gameapitest.New()
	srv.Enqueue(gameapi.RouteCoachQuestion, http.StatusOK, map[string]string{"advice": "Fold more."})
	srv.Enqueue(gameapi.RouteRecommendation, http.StatusOK, map[string]any{
		"advice": map[string]string{"coach_tip": "Call is cheap.", "action": "call"},
	})
	srv.Enqueue(gameapi.RouteDelete, http.StatusOK, map[string]string{"status": "success"})
	client := newClient(t, srv)
	ctx := context.Background()

	advice, err := client.AskCoach(ctx, "g-1", "what now?")
	require.NoError(t, err)
	assert.Equal(t, "Fold more.", advice)

	rec, err := client.GetRecommendation(ctx, "g-1")
	require.NoError(t, err)
	assert.Equal(t, game.Recommendation{CoachTip: "Call is cheap.", Action: "call"}, rec)

	require.NoError(t, client.EndGame(ctx, "g-1"))
	assert.Equal(t, 1, srv.Count(gameapi.RouteDelete))
}

func TestNewRejectsBadURL(t *testing.T) {
	_, err := gameapi.New("ftp://example.com")
	assert.Error(t, err)
}

func TestSandboxPlaysAHandToCompletion(t *testing.T) {
	srv := gameapitest.New(gameapitest.WithSandbox(7))
	client := newClient(t, srv)
	ctx := context.Background()

	names, ids, err := game.Seating("", []string{"AggroAmy", "CalmCarl"})
	require.NoError(t, err)
	id, snap, err := client.CreateSession(ctx, names, ids)
	require.NoError(t, err)
	require.NoError(t, snap.Validate())
	assert.Equal(t, game.StageIdle, snap.GameStage)

	snap, err = client.StartHand(ctx, id)
	require.NoError(t, err)
	require.NoError(t, snap.Validate())
	assert.Equal(t, game.StagePreflop, snap.GameStage)
	assert.Len(t, snap.Human().PocketCards, 2)

	for range 200 {
		var res game.TurnResult
		if snap.IsHumanTurn() {
			action := game.ActionCall
			if snap.CurrentPlayer().CanAct(game.ActionCheck) {
				action = game.ActionCheck
			}
			res, err = client.SubmitPlayerAction(ctx, id, action, 0)
		} else {
			res, err = client.AdvanceBotTurn(ctx, id)
		}
		require.NoError(t, err)
		snap = res.Snapshot
		require.NoError(t, snap.Validate())
		if res.HandComplete() {
			require.NotNil(t, res.Winner)
			require.NotNil(t, res.ChipDelta)
			total := 0
			for _, p := range snap.Players {
				total += p.Chips
			}
			assert.Equal(t, 3*gameapitest.StartingChips, total, "chips are conserved")
			return
		}
	}
	t.Fatal("hand did not complete")
}
