package stats

import (
	"context"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/lox/acehigh/internal/game"
	"github.com/lox/acehigh/internal/store"
)

// Store keys owned by the aggregator
const (
	KeyHandsPlayed    = "lifetime.handsPlayed"
	KeyHandsWon       = "lifetime.handsWon"
	KeyMoneyWon       = "lifetime.moneyWon"
	KeyVPIP           = "lifetime.vpip"
	KeyPFR            = "lifetime.pfr"
	KeySessionsPlayed = "lifetime.sessionsPlayed"

	KeySessionHandsPlayed = "session.handsPlayed"
	KeySessionHandsWon    = "session.handsWon"
	KeySessionMoneyWon    = "session.moneyWon"
	KeySessionVPIP        = "session.vpip"
	KeySessionPFR         = "session.pfr"

	KeyGameSizeHistogram     = "gameSizeHistogram"
	KeyBotSelectionFrequency = "botSelectionFrequency"
)

// Keys lists every key the aggregator writes
var Keys = []string{
	KeyHandsPlayed, KeyHandsWon, KeyMoneyWon, KeyVPIP, KeyPFR, KeySessionsPlayed,
	KeySessionHandsPlayed, KeySessionHandsWon, KeySessionMoneyWon, KeySessionVPIP, KeySessionPFR,
	KeyGameSizeHistogram, KeyBotSelectionFrequency,
}

// HandOutcome describes a completed hand from the human's point of view
type HandOutcome struct {
	Snapshot  *game.GameSnapshot
	Winner    game.PlayerRef
	HumanWon  bool
	ChipDelta int
}

// Aggregator is the only writer of the analytics keys
type Aggregator struct {
	store  store.Store
	logger *log.Logger

	mu   sync.Mutex
	vpip bool
	pfr  bool
}

// New creates an aggregator over st
func New(st store.Store, logger *log.Logger) *Aggregator {
	return &Aggregator{store: st, logger: logger.WithPrefix("stats")}
}

// BeginHand clears the per-hand VPIP and PFR flags
func (a *Aggregator) BeginHand() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.vpip, a.pfr = false, false
}

// ObserveAction records whether the human's action, about to be taken
// against snap, counts towards VPIP or PFR. Flags are credited when the hand
// is recorded and only once per hand.
func (a *Aggregator) ObserveAction(snap *game.GameSnapshot, action game.Action) {
	vpip, pfr := classify(snap, action)
	a.mu.Lock()
	defer a.mu.Unlock()
	a.vpip = a.vpip || vpip
	a.pfr = a.pfr || pfr
}

func classify(snap *game.GameSnapshot, action game.Action) (vpip, pfr bool) {
	if snap == nil || snap.GameStage != game.StagePreflop {
		return false, false
	}
	human := snap.Human()
	if human == nil {
		return false, false
	}
	prior := human.CurrentStreetContribution
	bigBlind := snap.BigBlindAmount()
	inBigBlind := human.Position == game.PositionBigBlind

	switch action {
	case game.ActionCall, game.ActionBet, game.ActionRaise:
		vpip = prior < bigBlind || (prior == bigBlind && snap.CurrentBet != prior && inBigBlind)
	}
	switch action {
	case game.ActionBet, game.ActionRaise:
		pfr = prior < snap.CurrentBet || (prior == snap.CurrentBet && inBigBlind)
	}
	return vpip, pfr
}

// BeginSession opens a new slot in the session history for a brand-new game
func (a *Aggregator) BeginSession(ctx context.Context, playerCount int, botIDs []string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	r, err := a.load(ctx)
	if err != nil {
		return err
	}
	r.Sessions.Push()
	r.SessionsPlayed++
	if playerCount >= MinGameSize && playerCount <= MaxGameSize {
		r.GameSizeHistogram[playerCount-MinGameSize]++
	} else {
		a.logger.Warn("game size outside histogram", "players", playerCount)
	}
	for _, id := range botIDs {
		r.BotSelectionFrequency[id]++
	}
	a.logger.Debug("session started", "players", playerCount, "sessions", r.SessionsPlayed)
	return a.save(ctx, r)
}

// RecordHand folds a completed hand into the lifetime counters and the
// current session. Call it exactly once per completed hand.
func (a *Aggregator) RecordHand(ctx context.Context, out HandOutcome) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	r, err := a.load(ctx)
	if err != nil {
		return err
	}
	if r.Sessions.Len() == 0 {
		r.Sessions.Push()
	}
	s := &r.Sessions

	r.HandsPlayed++
	s.HandsPlayed[0]++
	r.MoneyWon += out.ChipDelta
	s.MoneyWon[0] += out.ChipDelta
	if out.HumanWon {
		r.HandsWon++
		s.HandsWon[0]++
	}
	if a.vpip {
		r.VPIP++
		s.VPIP[0]++
		a.vpip = false
	}
	if a.pfr {
		r.PFR++
		s.PFR[0]++
		a.pfr = false
	}

	a.logger.Debug("hand recorded", "won", out.HumanWon, "delta", out.ChipDelta, "hands", r.HandsPlayed)
	return a.save(ctx, r)
}

// Load returns the persisted analytics
func (a *Aggregator) Load(ctx context.Context) (RunningAnalytics, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	r, err := a.load(ctx)
	if err != nil {
		return RunningAnalytics{}, err
	}
	return r.clone(), nil
}

// Reset removes every analytics key
func (a *Aggregator) Reset(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, key := range Keys {
		if err := a.store.Remove(ctx, key); err != nil {
			return fmt.Errorf("reset %s: %w", key, err)
		}
	}
	a.vpip, a.pfr = false, false
	return nil
}

func (a *Aggregator) load(ctx context.Context) (*RunningAnalytics, error) {
	r := &RunningAnalytics{}
	ints := []struct {
		key string
		dst *int
	}{
		{KeyHandsPlayed, &r.HandsPlayed},
		{KeyHandsWon, &r.HandsWon},
		{KeyMoneyWon, &r.MoneyWon},
		{KeyVPIP, &r.VPIP},
		{KeyPFR, &r.PFR},
		{KeySessionsPlayed, &r.SessionsPlayed},
	}
	for _, f := range ints {
		v, err := store.GetJSONOr(ctx, a.store, f.key, 0)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", f.key, err)
		}
		*f.dst = v
	}

	series := []struct {
		key string
		dst *[]int
	}{
		{KeySessionHandsPlayed, &r.Sessions.HandsPlayed},
		{KeySessionHandsWon, &r.Sessions.HandsWon},
		{KeySessionMoneyWon, &r.Sessions.MoneyWon},
		{KeySessionVPIP, &r.Sessions.VPIP},
		{KeySessionPFR, &r.Sessions.PFR},
	}
	for _, f := range series {
		v, err := store.GetJSONOr[[]int](ctx, a.store, f.key, nil)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", f.key, err)
		}
		*f.dst = v
	}
	r.Sessions.normalize()

	hist, err := store.GetJSONOr[[]int](ctx, a.store, KeyGameSizeHistogram, nil)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", KeyGameSizeHistogram, err)
	}
	copy(r.GameSizeHistogram[:], hist)

	bots, err := store.GetJSONOr[map[string]int](ctx, a.store, KeyBotSelectionFrequency, nil)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", KeyBotSelectionFrequency, err)
	}
	if bots == nil {
		bots = make(map[string]int)
	}
	r.BotSelectionFrequency = bots
	return r, nil
}

func (a *Aggregator) save(ctx context.Context, r *RunningAnalytics) error {
	values := []struct {
		key string
		v   any
	}{
		{KeyHandsPlayed, r.HandsPlayed},
		{KeyHandsWon, r.HandsWon},
		{KeyMoneyWon, r.MoneyWon},
		{KeyVPIP, r.VPIP},
		{KeyPFR, r.PFR},
		{KeySessionsPlayed, r.SessionsPlayed},
		{KeySessionHandsPlayed, r.Sessions.HandsPlayed},
		{KeySessionHandsWon, r.Sessions.HandsWon},
		{KeySessionMoneyWon, r.Sessions.MoneyWon},
		{KeySessionVPIP, r.Sessions.VPIP},
		{KeySessionPFR, r.Sessions.PFR},
		{KeyGameSizeHistogram, r.GameSizeHistogram[:]},
		{KeyBotSelectionFrequency, r.BotSelectionFrequency},
	}
	for _, kv := range values {
		if err := store.SetJSON(ctx, a.store, kv.key, kv.v); err != nil {
			return fmt.Errorf("save %s: %w", kv.key, err)
		}
	}
	return nil
}
