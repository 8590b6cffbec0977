package stats

import (
	"context"
	"io"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/lox/acehigh/internal/game"
	"github.com/lox/acehigh/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAggregator(t *testing.T) (*Aggregator, store.Store) {
	t.Helper()
	st := store.NewMemoryStore(nil)
	return New(st, log.NewWithOptions(io.Discard, log.Options{Level: log.ErrorLevel})), st
}

func preflop(prior, currentBet int, position string) *game.GameSnapshot {
	return &game.GameSnapshot{
		GameStage:  game.StagePreflop,
		CurrentBet: currentBet,
		BigBlind:   2,
		Players: []game.Player{
			{Name: "HumanUser", Chips: 100, Position: position, CurrentStreetContribution: prior,
				AvailableActions: []game.Action{game.ActionFold, game.ActionCall, game.ActionRaise}},
			{Name: "AggroAmy", IsBot: true, Chips: 100},
		},
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		snap     *game.GameSnapshot
		action   game.Action
		wantVPIP bool
		wantPFR  bool
	}{
		{"call from utg", preflop(0, 2, game.PositionUTG), game.ActionCall, true, false},
		{"raise from utg", preflop(0, 2, game.PositionUTG), game.ActionRaise, true, true},
		{"small blind completes", preflop(1, 2, game.PositionSmallBlind), game.ActionCall, true, false},
		{"fold never counts", preflop(0, 2, game.PositionUTG), game.ActionFold, false, false},
		{"check never counts", preflop(2, 2, game.PositionBigBlind), game.ActionCheck, false, false},
		{"big blind calls a raise", preflop(2, 6, game.PositionBigBlind), game.ActionCall, true, false},
		{"big blind raises the option", preflop(2, 2, game.PositionBigBlind), game.ActionRaise, false, true},
		{"big blind reraises", preflop(2, 6, game.PositionBigBlind), game.ActionRaise, true, true},
		{"already in for the bet elsewhere", preflop(2, 6, game.PositionButton), game.ActionCall, false, false},
		{"postflop call", func() *game.GameSnapshot {
			s := preflop(0, 2, game.PositionUTG)
			s.GameStage = game.StageFlop
			return s
		}(), game.ActionCall, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vpip, pfr := classify(tt.snap, tt.action)
			assert.Equal(t, tt.wantVPIP, vpip, "vpip")
			assert.Equal(t, tt.wantPFR, pfr, "pfr")
		})
	}
}

func TestVPIPAndPFRCreditedOncePerHand(t *testing.T) {
	ctx := context.Background()
	agg, _ := newAggregator(t)
	require.NoError(t, agg.BeginSession(ctx, 3, []string{"aggroamy", "calmcarl"}))

	agg.BeginHand()
	agg.ObserveAction(preflop(0, 2, game.PositionUTG), game.ActionRaise)
	agg.ObserveAction(preflop(6, 12, game.PositionUTG), game.ActionRaise)
	agg.ObserveAction(preflop(12, 24, game.PositionUTG), game.ActionCall)
	require.NoError(t, agg.RecordHand(ctx, HandOutcome{HumanWon: true, ChipDelta: 30}))

	r, err := agg.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, r.VPIP)
	assert.Equal(t, 1, r.PFR)
	assert.Equal(t, []int{1}, r.Sessions.VPIP)
	assert.Equal(t, []int{1}, r.Sessions.PFR)

	// flags are consumed on credit
	require.NoError(t, agg.RecordHand(ctx, HandOutcome{ChipDelta: -4}))
	r, err = agg.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, r.VPIP)
	assert.Equal(t, 2, r.HandsPlayed)
}

func TestBeginHandClearsUncreditedFlags(t *testing.T) {
	ctx := context.Background()
	agg, _ := newAggregator(t)

	agg.ObserveAction(preflop(0, 2, game.PositionUTG), game.ActionCall)
	agg.BeginHand()
	require.NoError(t, agg.RecordHand(ctx, HandOutcome{}))

	r, err := agg.Load(ctx)
	require.NoError(t, err)
	assert.Zero(t, r.VPIP)
}

func TestRecordHandUpdatesLifetimeAndCurrentSession(t *testing.T) {
	ctx := context.Background()
	agg, _ := newAggregator(t)

	require.NoError(t, agg.BeginSession(ctx, 2, []string{"tighttimmy"}))
	require.NoError(t, agg.RecordHand(ctx, HandOutcome{HumanWon: true, ChipDelta: 40}))
	require.NoError(t, agg.BeginSession(ctx, 4, []string{"tighttimmy", "aggroamy", "calmcarl"}))
	require.NoError(t, agg.RecordHand(ctx, HandOutcome{ChipDelta: -15}))
	require.NoError(t, agg.RecordHand(ctx, HandOutcome{ChipDelta: -5}))

	r, err := agg.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, r.HandsPlayed)
	assert.Equal(t, 1, r.HandsWon)
	assert.Equal(t, 20, r.MoneyWon)
	assert.Equal(t, 2, r.SessionsPlayed)
	assert.Equal(t, []int{2, 1}, r.Sessions.HandsPlayed)
	assert.Equal(t, []int{0, 1}, r.Sessions.HandsWon)
	assert.Equal(t, []int{-20, 40}, r.Sessions.MoneyWon)
	assert.Equal(t, [5]int{1, 0, 1, 0, 0}, r.GameSizeHistogram)
	assert.Equal(t, map[string]int{"tighttimmy": 2, "aggroamy": 1, "calmcarl": 1}, r.BotSelectionFrequency)
}

func TestRecordHandWithoutSessionOpensOne(t *testing.T) {
	ctx := context.Background()
	agg, _ := newAggregator(t)
	require.NoError(t, agg.RecordHand(ctx, HandOutcome{ChipDelta: 7}))

	r, err := agg.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int{1}, r.Sessions.HandsPlayed)
	assert.Equal(t, []int{7}, r.Sessions.MoneyWon)
}

func TestSessionHistoryEvictsOldest(t *testing.T) {
	ctx := context.Background()
	agg, _ := newAggregator(t)

	for i := 1; i <= Capacity; i++ {
		require.NoError(t, agg.BeginSession(ctx, 3, nil))
		for range i {
			require.NoError(t, agg.RecordHand(ctx, HandOutcome{ChipDelta: 1}))
		}
	}
	r, err := agg.Load(ctx)
	require.NoError(t, err)
	require.Len(t, r.Sessions.HandsPlayed, Capacity)
	assert.Equal(t, 10, r.Sessions.HandsPlayed[0])
	assert.Equal(t, 1, r.Sessions.HandsPlayed[9])

	require.NoError(t, agg.BeginSession(ctx, 3, nil))
	r, err = agg.Load(ctx)
	require.NoError(t, err)
	for _, s := range [][]int{r.Sessions.HandsPlayed, r.Sessions.HandsWon, r.Sessions.MoneyWon, r.Sessions.VPIP, r.Sessions.PFR} {
		require.Len(t, s, Capacity)
		assert.Zero(t, s[0])
	}
	assert.Equal(t, 10, r.Sessions.HandsPlayed[1])
	assert.Equal(t, 2, r.Sessions.HandsPlayed[9], "the oldest session is evicted")
	assert.Equal(t, 11, r.SessionsPlayed)
}

func TestHistoryNeverExceedsCapacity(t *testing.T) {
	ctx := context.Background()
	agg, _ := newAggregator(t)
	for range 3 * Capacity {
		require.NoError(t, agg.BeginSession(ctx, 2, nil))
		require.NoError(t, agg.RecordHand(ctx, HandOutcome{}))
		r, err := agg.Load(ctx)
		require.NoError(t, err)
		assert.LessOrEqual(t, r.Sessions.Len(), Capacity)
	}
}

func TestLoadRepairsMisalignedSeries(t *testing.T) {
	ctx := context.Background()
	agg, st := newAggregator(t)
	require.NoError(t, store.SetJSON(ctx, st, KeySessionHandsPlayed, []int{3, 2, 1, 4, 4, 4, 4, 4, 4, 4, 4, 4}))
	require.NoError(t, store.SetJSON(ctx, st, KeySessionHandsWon, []int{1}))

	r, err := agg.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, r.Sessions.HandsPlayed, Capacity)
	assert.Equal(t, []int{1, 0, 0, 0, 0, 0, 0, 0, 0, 0}, r.Sessions.HandsWon)
	assert.Len(t, r.Sessions.PFR, Capacity)
}

func TestReset(t *testing.T) {
	ctx := context.Background()
	agg, st := newAggregator(t)
	require.NoError(t, agg.BeginSession(ctx, 2, []string{"calmcarl"}))
	require.NoError(t, agg.RecordHand(ctx, HandOutcome{HumanWon: true}))
	require.NoError(t, st.Set(ctx, "sessionHandle", []byte(`{}`)))

	require.NoError(t, agg.Reset(ctx))
	r, err := agg.Load(ctx)
	require.NoError(t, err)
	assert.Zero(t, r.HandsPlayed)
	assert.Zero(t, r.Sessions.Len())
	assert.Empty(t, r.BotSelectionFrequency)

	_, err = st.Get(ctx, "sessionHandle")
	assert.NoError(t, err, "reset only touches analytics keys")
}

func TestSummary(t *testing.T) {
	r := RunningAnalytics{
		HandsPlayed:    20,
		HandsWon:       5,
		MoneyWon:       -90,
		VPIP:           8,
		PFR:            3,
		SessionsPlayed: 3,
		Sessions: SessionHistory{
			HandsPlayed: []int{10, 0, 10},
			HandsWon:    []int{3, 0, 2},
			MoneyWon:    []int{50, 0, -140},
			VPIP:        []int{5, 0, 3},
			PFR:         []int{2, 0, 1},
		},
		GameSizeHistogram:     [5]int{1, 2, 0, 0, 0},
		BotSelectionFrequency: map[string]int{"calmcarl": 2, "aggroamy": 2, "tighttimmy": 1},
	}
	s := r.Summary()
	assert.InDelta(t, 25.0, s.WinRate, 0.001)
	assert.InDelta(t, 40.0, s.VPIPRate, 0.001)
	assert.InDelta(t, 15.0, s.PFRRate, 0.001)
	assert.InDelta(t, -30.0, s.AvgMoneyPerSession, 0.001)
	require.NotNil(t, s.FavoriteBot)
	assert.Equal(t, Count{Name: "aggroamy", Count: 2}, *s.FavoriteBot, "ties break by name")
	require.NotNil(t, s.MostPlayedSize)
	assert.Equal(t, Count{Name: "3 players", Count: 2}, *s.MostPlayedSize)

	require.Len(t, s.Sessions, 3)
	assert.Equal(t, "Game 1", s.Sessions[0].Label)
	assert.Equal(t, -140, s.Sessions[0].MoneyWon)
	assert.InDelta(t, 30.0, s.Sessions[0].VPIP, 0.001)
	assert.Zero(t, s.Sessions[1].VPIP, "empty session has no rate")
	assert.Equal(t, "Game 3", s.Sessions[2].Label)
	assert.InDelta(t, 20.0, s.Sessions[2].PFR, 0.001)
}

func TestSummaryOfNothing(t *testing.T) {
	s := RunningAnalytics{}.Summary()
	assert.Zero(t, s.WinRate)
	assert.Zero(t, s.AvgMoneyPerSession)
	assert.Nil(t, s.FavoriteBot)
	assert.Nil(t, s.MostPlayedSize)
	assert.Empty(t, s.Sessions)
}
