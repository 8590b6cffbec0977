// Package coach asks the game service for advice on the human's turns.
package coach

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/lox/acehigh/internal/game"
	"github.com/lox/acehigh/internal/pubsub"
)

// ErrNoGame is returned when there is no game to ask about
var ErrNoGame = errors.New("no game in progress")

// Service is the coaching half of the game service
type Service interface {
	AskCoach(ctx context.Context, gameID, question string) (string, error)
	GetRecommendation(ctx context.Context, gameID string) (game.Recommendation, error)
}

// Sessions reports the game being played
type Sessions interface {
	Handle() (game.SessionHandle, bool)
}

// Kind distinguishes advice the advisor volunteered from answers to questions
type Kind string

const (
	KindRecommendation Kind = "recommendation"
	KindAnswer         Kind = "answer"
)

// Advice is published whenever the coach has something to say
type Advice struct {
	Kind     Kind   `json:"kind"`
	Question string `json:"question,omitempty"`
	Text     string `json:"text"`
	Action   string `json:"action,omitempty"`
	Err      error  `json:"-"`
}

// Advisor fetches a recommendation once for every distinct human decision
type Advisor struct {
	service  Service
	sessions Sessions
	logger   *log.Logger
	timeout  time.Duration

	topic  pubsub.Topic[Advice]
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	inFlight bool
	last     uint64
	pending  *game.GameSnapshot
}

// New creates an advisor. Feed it snapshots with Observe.
func New(service Service, sessions Sessions, logger *log.Logger) *Advisor {
	ctx, cancel := context.WithCancel(context.Background())
	return &Advisor{
		service:  service,
		sessions: sessions,
		logger:   logger.WithPrefix("coach"),
		timeout:  30 * time.Second,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Subscribe registers fn for advice
func (a *Advisor) Subscribe(fn func(Advice)) (unsubscribe func()) {
	return a.topic.Subscribe(fn)
}

// Observe requests a recommendation when snap is a human decision that has
// not been asked about yet. Only one request runs at a time; the latest
// snapshot seen meanwhile is considered when it finishes.
func (a *Advisor) Observe(snap *game.GameSnapshot) {
	if !snap.InHand() || !snap.IsHumanTurn() {
		return
	}
	fp := fingerprint(snap)

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.ctx.Err() != nil || fp == a.last {
		return
	}
	if a.inFlight {
		a.pending = snap
		return
	}
	a.inFlight = true
	a.last = fp
	a.wg.Add(1)
	go a.recommend()
}

func (a *Advisor) recommend() {
	defer a.wg.Done()
	for {
		a.fetch()

		a.mu.Lock()
		next := a.pending
		a.pending = nil
		if next == nil || a.ctx.Err() != nil {
			a.inFlight = false
			a.mu.Unlock()
			return
		}
		fp := fingerprint(next)
		if fp == a.last {
			a.inFlight = false
			a.mu.Unlock()
			return
		}
		a.last = fp
		a.mu.Unlock()
	}
}

func (a *Advisor) fetch() {
	handle, ok := a.sessions.Handle()
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(a.ctx, a.timeout)
	defer cancel()

	rec, err := a.service.GetRecommendation(ctx, handle.GameID)
	if a.ctx.Err() != nil {
		return
	}
	if err != nil {
		a.logger.Warn("recommendation failed", "error", err)
		a.topic.Publish(Advice{Kind: KindRecommendation, Err: err})
		return
	}
	a.logger.Debug("recommendation", "action", rec.Action)
	a.topic.Publish(Advice{Kind: KindRecommendation, Text: rec.CoachTip, Action: rec.Action})
}

// Ask puts a free-form question to the coach about the current game
func (a *Advisor) Ask(ctx context.Context, question string) (string, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return "", errors.New("empty question")
	}
	handle, ok := a.sessions.Handle()
	if !ok {
		return "", ErrNoGame
	}
	answer, err := a.service.AskCoach(ctx, handle.GameID, question)
	if err != nil {
		err = fmt.Errorf("ask coach: %w", err)
		a.topic.Publish(Advice{Kind: KindAnswer, Question: question, Err: err})
		return "", err
	}
	a.topic.Publish(Advice{Kind: KindAnswer, Question: question, Text: answer})
	return answer, nil
}

// Close cancels any request in flight and waits for it
func (a *Advisor) Close() error {
	a.cancel()
	a.wg.Wait()
	return nil
}

// fingerprint identifies a decision point. Two snapshots with the same
// fingerprint ask the same question.
func fingerprint(snap *game.GameSnapshot) uint64 {
	type seat struct {
		Chips   int
		Street  int
		Status  game.PlayerStatus
		Actions []game.Action
	}
	key := struct {
		Stage   game.Stage
		Board   []game.Card
		Pot     int
		Bet     int
		Current int
		Hole    []game.Card
		Seats   []seat
	}{
		Stage:   snap.GameStage,
		Board:   snap.CommunityCards,
		Pot:     snap.TotalPot,
		Bet:     snap.CurrentBet,
		Current: snap.CurrentPlayerIdx,
	}
	if human := snap.Human(); human != nil {
		key.Hole = human.PocketCards
	}
	for _, p := range snap.Players {
		key.Seats = append(key.Seats, seat{p.Chips, p.CurrentStreetContribution, p.Status, p.AvailableActions})
	}
	data, _ := json.Marshal(key)
	h := fnv.New64a()
	_, _ = h.Write(data)
	return h.Sum64()
}
