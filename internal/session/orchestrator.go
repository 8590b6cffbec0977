// Package session drives a game against the remote service. It dispatches
// the human's actions, advances bot turns with paced narration, detects hand
// and game completion, and feeds the analytics aggregator.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/lox/acehigh/internal/game"
	"github.com/lox/acehigh/internal/pubsub"
	"github.com/lox/acehigh/internal/stats"
	"github.com/lox/acehigh/internal/store"
)

// Store keys owned by the orchestrator
const (
	KeyHandle = "sessionHandle"
	KeyGame   = "gameStats"
)

// maxBotTurns bounds a single bot-advance loop
const maxBotTurns = 200

// Service is the remote game service
type Service interface {
	CreateSession(ctx context.Context, names []string, botIDs []*string) (string, game.GameSnapshot, error)
	StartHand(ctx context.Context, gameID string) (game.GameSnapshot, error)
	SubmitPlayerAction(ctx context.Context, gameID string, action game.Action, amount int) (game.TurnResult, error)
	AdvanceBotTurn(ctx context.Context, gameID string) (game.TurnResult, error)
	EndGame(ctx context.Context, gameID string) error
}

// Publisher holds the visible snapshot
type Publisher interface {
	Get() *game.GameSnapshot
	Set(ctx context.Context, snap game.GameSnapshot) error
	Restore(ctx context.Context) (*game.GameSnapshot, error)
	Clear(ctx context.Context) error
}

// Aggregator accumulates the human's analytics
type Aggregator interface {
	BeginHand()
	ObserveAction(snap *game.GameSnapshot, action game.Action)
	BeginSession(ctx context.Context, playerCount int, botIDs []string) error
	RecordHand(ctx context.Context, out stats.HandOutcome) error
}

// gameState is the per-game bookkeeping persisted alongside the handle
type gameState struct {
	game.GameStats
	HandStartStack int      `json:"hand_start_stack"`
	PlayerCount    int      `json:"player_count"`
	BotIDs         []string `json:"bot_ids,omitempty"`
	NewGame        bool     `json:"new_game,omitempty"`
}

// Orchestrator runs one game at a time. Operations block until the request
// and any bot turns it triggers have finished; only one runs at a time.
type Orchestrator struct {
	service   Service
	store     store.Store
	publisher Publisher
	stats     Aggregator
	clock     quartz.Clock
	logger    *log.Logger
	navigator Navigator
	timings   Timings

	events pubsub.Topic[Event]
	done   chan struct{}

	mu        sync.Mutex
	idle      *sync.Cond
	closed    bool
	busy      bool
	phase     Phase
	handle    *game.SessionHandle
	state     gameState
	narration *game.Narration
	navigated bool
	timers    map[*quartz.Timer]struct{}
}

// New creates an orchestrator
func New(service Service, st store.Store, publisher Publisher, aggregator Aggregator, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		service:   service,
		store:     st,
		publisher: publisher,
		stats:     aggregator,
		clock:     quartz.NewReal(),
		logger:    log.Default(),
		navigator: NavigatorFunc(func(Outcome) {}),
		timings:   DefaultTimings(),
		done:      make(chan struct{}),
		timers:    make(map[*quartz.Timer]struct{}),
	}
	o.idle = sync.NewCond(&o.mu)
	for _, opt := range opts {
		opt(o)
	}
	o.logger = o.logger.WithPrefix("session")
	return o
}

// Subscribe registers fn for orchestrator events. Events are delivered on the
// goroutine that caused them.
func (o *Orchestrator) Subscribe(fn func(Event)) (unsubscribe func()) {
	return o.events.Subscribe(fn)
}

// Phase returns the current phase
func (o *Orchestrator) Phase() Phase {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.phase
}

// GameStats returns the running totals for the current game
func (o *Orchestrator) GameStats() game.GameStats {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state.GameStats
}

// Busy reports whether an operation is in flight
func (o *Orchestrator) Busy() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.busy
}

// Narration returns the narration being shown, or nil
func (o *Orchestrator) Narration() *game.Narration {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.narration == nil {
		return nil
	}
	n := *o.narration
	return &n
}

// Handle returns the active session handle
func (o *Orchestrator) Handle() (game.SessionHandle, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.handle == nil {
		return game.SessionHandle{}, false
	}
	return *o.handle, true
}

// CreateGame creates a game on the service with the human in seat 0 and the
// named bots after. The first hand is dealt by StartHand.
func (o *Orchestrator) CreateGame(ctx context.Context, humanName string, bots []string) error {
	names, botIDs, err := game.Seating(humanName, bots)
	if err != nil {
		return err
	}
	if err := o.acquire(false); err != nil {
		return err
	}
	defer o.release()

	id, snap, err := o.service.CreateSession(ctx, names, botIDs)
	if err != nil {
		return o.fail(ctx, "create game", err)
	}
	if !o.alive() {
		return ErrClosed
	}

	handle := game.SessionHandle{GameID: id, ExpiresAt: o.clock.Now().Add(o.timings.HandleTTL)}
	if err := store.SetJSONWithExpiry(ctx, o.store, KeyHandle, handle, o.timings.HandleTTL); err != nil {
		o.logger.Warn("failed to persist session handle", "error", err)
	}

	state := gameState{PlayerCount: len(names), NewGame: true}
	for _, bot := range botIDs {
		if bot != nil {
			state.BotIDs = append(state.BotIDs, *bot)
		}
	}
	if human := snap.Human(); human != nil {
		state.StartingChips = human.Chips
		state.FinalChips = human.Chips
	}

	o.cancelTimers()
	o.mu.Lock()
	o.handle = &handle
	o.state = state
	o.narration = nil
	o.navigated = false
	o.mu.Unlock()

	o.saveState(ctx, state)
	o.apply(ctx, snap)
	o.setPhase(PhaseIdle)
	o.logger.Info("game created", "game", id, "players", len(names))
	return nil
}

// Resume picks up a game persisted by an earlier run. It reports whether
// there was one. A hand left waiting on a bot carries on.
func (o *Orchestrator) Resume(ctx context.Context) (bool, error) {
	if err := o.acquire(false); err != nil {
		return false, err
	}
	defer o.release()

	handle, err := store.GetJSONWithExpiry[game.SessionHandle](ctx, o.store, KeyHandle)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return false, nil
	case errors.Is(err, store.ErrExpired):
		o.logger.Info("session handle expired")
		o.dropHandle(ctx)
		if err := o.publisher.Clear(ctx); err != nil {
			o.logger.Warn("failed to clear snapshot", "error", err)
		}
		return false, ErrStaleSession
	case err != nil:
		return false, fmt.Errorf("load session handle: %w", err)
	}

	state, err := store.GetJSONOr(ctx, o.store, KeyGame, gameState{})
	if err != nil {
		o.logger.Warn("discarding game stats", "error", err)
		state = gameState{}
	}
	snap, err := o.publisher.Restore(ctx)
	if err != nil {
		return false, err
	}

	phase := PhaseIdle
	if snap.InHand() {
		phase = PhaseInProgress
	}
	o.mu.Lock()
	o.handle = &handle
	o.state = state
	o.navigated = false
	o.mu.Unlock()
	o.setPhase(phase)
	o.logger.Info("resumed game", "game", handle.GameID, "phase", phase)

	if snap.InHand() && snap.IsBotTurn() {
		return true, o.advanceBots(ctx, handle.GameID)
	}
	return true, nil
}

// StartHand deals the next hand and runs bot turns until the human is to act
func (o *Orchestrator) StartHand(ctx context.Context) error {
	return o.startHand(ctx, false)
}

func (o *Orchestrator) startHand(ctx context.Context, wait bool) error {
	if err := o.acquire(wait); err != nil {
		return err
	}
	defer o.release()

	handle, err := o.currentHandle(ctx)
	if err != nil {
		return err
	}
	snap, err := o.service.StartHand(ctx, handle.GameID)
	if err != nil {
		return o.fail(ctx, "start hand", err)
	}
	if !o.alive() {
		return ErrClosed
	}

	o.mu.Lock()
	o.state.HandsPlayed++
	newGame := o.state.NewGame
	o.state.NewGame = false
	if human := snap.Human(); human != nil {
		o.state.HandStartStack = human.Chips + human.CurrentStreetContribution
	}
	state := o.state
	o.narration = nil
	o.mu.Unlock()

	o.stats.BeginHand()
	if newGame {
		if err := o.stats.BeginSession(ctx, state.PlayerCount, state.BotIDs); err != nil {
			o.logger.Error("failed to record session", "error", err)
		}
	}
	o.saveState(ctx, state)
	o.apply(ctx, snap)
	o.setPhase(PhaseInProgress)
	o.logger.Debug("hand started", "game", handle.GameID, "hand", state.HandsPlayed)

	return o.advanceBots(ctx, handle.GameID)
}

// SubmitPlayerAction sends the human's action. Bet and raise amounts are
// checked locally first; a rejected amount never reaches the service.
func (o *Orchestrator) SubmitPlayerAction(ctx context.Context, action game.Action, amount int) error {
	if err := o.acquire(false); err != nil {
		return err
	}
	defer o.release()

	handle, err := o.currentHandle(ctx)
	if err != nil {
		return err
	}
	snap := o.publisher.Get()
	if snap == nil {
		return ErrNoActiveSession
	}
	if err := Validate(snap, action, amount); err != nil {
		return err
	}
	if !action.NeedsAmount() {
		amount = 0
	}

	o.clearNarration()

	res, err := o.service.SubmitPlayerAction(ctx, handle.GameID, action, amount)
	if err != nil {
		return o.fail(ctx, "submit action", err)
	}
	if !o.alive() {
		return ErrClosed
	}
	// classified against the snapshot the action was taken on
	o.stats.ObserveAction(snap, action)
	o.apply(ctx, res.Snapshot)
	if res.HandComplete() {
		return o.completeHand(ctx, res)
	}
	return o.advanceBots(ctx, handle.GameID)
}

// EndSession deletes the game on the service and forgets it locally
func (o *Orchestrator) EndSession(ctx context.Context) error {
	if err := o.acquire(false); err != nil {
		return err
	}
	defer o.release()

	o.cancelTimers()
	o.mu.Lock()
	handle := o.handle
	o.mu.Unlock()
	if handle != nil {
		if err := o.service.EndGame(ctx, handle.GameID); err != nil {
			o.logger.Warn("failed to delete game", "game", handle.GameID, "error", err)
		}
	}
	if !o.alive() {
		return ErrClosed
	}

	o.dropHandle(ctx)
	o.mu.Lock()
	o.state = gameState{}
	o.narration = nil
	o.mu.Unlock()
	if err := o.store.Remove(ctx, KeyGame); err != nil {
		o.logger.Warn("failed to remove game stats", "error", err)
	}
	if err := o.publisher.Clear(ctx); err != nil {
		o.logger.Warn("failed to clear snapshot", "error", err)
	}
	o.setPhase(PhaseIdle)
	return nil
}

// Close stops every pending pause. Responses still in flight are discarded
// and nothing is published afterwards.
func (o *Orchestrator) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return nil
	}
	o.closed = true
	for t := range o.timers {
		t.Stop()
	}
	clear(o.timers)
	close(o.done)
	o.idle.Broadcast()
	return nil
}

// advanceBots requests bot turns one at a time until the human is to act or
// the hand ends. The service's status and actor decide; the stage does not.
func (o *Orchestrator) advanceBots(ctx context.Context, gameID string) error {
	for range maxBotTurns {
		if !o.alive() {
			return ErrClosed
		}
		if !o.publisher.Get().IsBotTurn() {
			return nil
		}

		res, err := o.service.AdvanceBotTurn(ctx, gameID)
		if err != nil {
			return o.fail(ctx, "advance bot turn", err)
		}
		if !o.alive() {
			return ErrClosed
		}
		if res.Narration != nil {
			if err := o.narrate(ctx, *res.Narration); err != nil {
				return err
			}
		}
		o.apply(ctx, res.Snapshot)
		if res.HandComplete() {
			return o.completeHand(ctx, res)
		}
	}
	err := fmt.Errorf("%w: bots took %d turns without returning control", ErrServiceUnavailable, maxBotTurns)
	return o.fail(ctx, "advance bot turn", err)
}

// narrate shows n for the narration dwell, then clears it
func (o *Orchestrator) narrate(ctx context.Context, n game.Narration) error {
	timer := o.clock.NewTimer(o.timings.NarrationDwell, "session", "narration")
	defer timer.Stop()

	o.mu.Lock()
	o.narration = &n
	o.mu.Unlock()
	o.publish(Event{Kind: EventNarration, Narration: &n})

	select {
	case <-timer.C:
	case <-o.done:
		return ErrClosed
	case <-ctx.Done():
		o.clearNarration()
		return ctx.Err()
	}
	o.clearNarration()
	return nil
}

func (o *Orchestrator) clearNarration() {
	o.mu.Lock()
	shown := o.narration != nil
	o.narration = nil
	o.mu.Unlock()
	if shown {
		o.publish(Event{Kind: EventNarration})
	}
}

func (o *Orchestrator) dealNext() {
	if err := o.startHand(context.Background(), true); err != nil && !errors.Is(err, ErrClosed) {
		o.logger.Warn("automatic deal failed", "error", err)
	}
}

func (o *Orchestrator) navigate(out Outcome) {
	o.mu.Lock()
	if o.closed || o.navigated {
		o.mu.Unlock()
		return
	}
	o.navigated = true
	o.mu.Unlock()

	o.logger.Info("game over", "result", out.Phase, "hands", out.Stats.HandsPlayed, "won", out.Stats.HandsWon)
	o.navigator.Navigate(out)
	o.publish(Event{Kind: EventNavigate, Outcome: &out})
}

// schedule runs fn on its own goroutine after d unless the orchestrator is
// closed or the timers are cancelled first
func (o *Orchestrator) schedule(d time.Duration, name string, fn func()) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return
	}
	var timer *quartz.Timer
	timer = o.clock.AfterFunc(d, func() {
		o.mu.Lock()
		delete(o.timers, timer)
		closed := o.closed
		o.mu.Unlock()
		if !closed {
			go fn()
		}
	}, "session", name)
	o.timers[timer] = struct{}{}
}

func (o *Orchestrator) cancelTimers() {
	o.mu.Lock()
	defer o.mu.Unlock()
	for t := range o.timers {
		t.Stop()
	}
	clear(o.timers)
}

func (o *Orchestrator) acquire(wait bool) error {
	o.mu.Lock()
	for wait && o.busy && !o.closed {
		o.idle.Wait()
	}
	if o.closed {
		o.mu.Unlock()
		return ErrClosed
	}
	if o.busy {
		o.mu.Unlock()
		return ErrBusy
	}
	o.busy = true
	o.mu.Unlock()
	o.publish(Event{Kind: EventBusy, Busy: true})
	return nil
}

func (o *Orchestrator) release() {
	o.mu.Lock()
	o.busy = false
	o.idle.Broadcast()
	o.mu.Unlock()
	o.publish(Event{Kind: EventBusy, Busy: false})
}

func (o *Orchestrator) alive() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return !o.closed
}

func (o *Orchestrator) publish(ev Event) {
	if o.alive() {
		o.events.Publish(ev)
	}
}

func (o *Orchestrator) setPhase(p Phase) {
	o.mu.Lock()
	o.phase = p
	o.mu.Unlock()
	o.publish(Event{Kind: EventPhase, Phase: p})
}

func (o *Orchestrator) apply(ctx context.Context, snap game.GameSnapshot) {
	// the publisher logs persistence failures and still publishes
	_ = o.publisher.Set(ctx, snap)
}

// fail publishes a service error and returns it wrapped with op
func (o *Orchestrator) fail(ctx context.Context, op string, err error) error {
	if !o.alive() {
		return ErrClosed
	}
	if errors.Is(err, ErrStaleSession) {
		o.dropHandle(ctx)
	}
	err = fmt.Errorf("%s: %w", op, err)
	o.logger.Error("request failed", "op", op, "error", err)
	o.publish(Event{Kind: EventError, Err: err})
	return err
}

func (o *Orchestrator) currentHandle(ctx context.Context) (game.SessionHandle, error) {
	o.mu.Lock()
	handle := o.handle
	o.mu.Unlock()
	if handle == nil {
		return game.SessionHandle{}, ErrNoActiveSession
	}
	if handle.Expired(o.clock.Now()) {
		o.dropHandle(ctx)
		return game.SessionHandle{}, ErrStaleSession
	}
	return *handle, nil
}

func (o *Orchestrator) dropHandle(ctx context.Context) {
	o.mu.Lock()
	o.handle = nil
	o.mu.Unlock()
	if err := o.store.Remove(ctx, KeyHandle); err != nil {
		o.logger.Warn("failed to remove session handle", "error", err)
	}
}

func (o *Orchestrator) saveState(ctx context.Context, state gameState) {
	if err := store.SetJSON(ctx, o.store, KeyGame, state); err != nil {
		o.logger.Warn("failed to persist game stats", "error", err)
	}
}
