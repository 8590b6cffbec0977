package coach

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/lox/acehigh/internal/game"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCoach struct {
	mu      sync.Mutex
	recs    int
	asked   []string
	gate    chan struct{}
	askErr  error
	started chan struct{}
}

func (f *fakeCoach) GetRecommendation(ctx context.Context, _ string) (game.Recommendation, error) {
	f.mu.Lock()
	f.recs++
	gate := f.gate
	f.mu.Unlock()
	if f.started != nil {
		f.started <- struct{}{}
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return game.Recommendation{}, ctx.Err()
		}
	}
	return game.Recommendation{CoachTip: "Pot odds favour a call.", Action: "call"}, nil
}

func (f *fakeCoach) AskCoach(_ context.Context, _, question string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.asked = append(f.asked, question)
	if f.askErr != nil {
		return "", f.askErr
	}
	return "Position matters.", nil
}

func (f *fakeCoach) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.recs
}

type fixedSession struct{ ok bool }

func (s fixedSession) Handle() (game.SessionHandle, bool) {
	return game.SessionHandle{GameID: "g1"}, s.ok
}

func humanTurn(pot int) *game.GameSnapshot {
	return &game.GameSnapshot{
		GameStage:        game.StageFlop,
		CurrentPlayerIdx: 0,
		TotalPot:         pot,
		Players: []game.Player{
			{Name: "HumanUser", Chips: 900, AvailableActions: []game.Action{game.ActionFold, game.ActionCall}},
			{Name: "CalmCarl", Chips: 900},
		},
	}
}

func newAdvisor(t *testing.T, svc *fakeCoach, ok bool) (*Advisor, chan Advice) {
	t.Helper()
	a := New(svc, fixedSession{ok: ok}, log.NewWithOptions(io.Discard, log.Options{Level: log.ErrorLevel}))
	advice := make(chan Advice, 16)
	a.Subscribe(func(ad Advice) { advice <- ad })
	t.Cleanup(func() { _ = a.Close() })
	return a, advice
}

func receive(t *testing.T, ch chan Advice) Advice {
	t.Helper()
	select {
	case ad := <-ch:
		return ad
	case <-time.After(5 * time.Second):
		t.Fatal("no advice")
		return Advice{}
	}
}

func TestRecommendsOncePerDecision(t *testing.T) {
	svc := &fakeCoach{}
	a, advice := newAdvisor(t, svc, true)

	a.Observe(humanTurn(100))
	ad := receive(t, advice)
	assert.Equal(t, KindRecommendation, ad.Kind)
	assert.Equal(t, "call", ad.Action)
	assert.Equal(t, "Pot odds favour a call.", ad.Text)

	a.Observe(humanTurn(100))
	a.Observe(humanTurn(100))
	a.Observe(humanTurn(240))
	receive(t, advice)
	assert.Equal(t, 2, svc.count())
}

func TestIgnoresBotTurns(t *testing.T) {
	svc := &fakeCoach{}
	a, _ := newAdvisor(t, svc, true)

	snap := humanTurn(100)
	snap.CurrentPlayerIdx = 1
	a.Observe(snap)
	a.Observe(nil)
	idle := humanTurn(100)
	idle.GameStage = game.StageShowdown
	a.Observe(idle)

	require.NoError(t, a.Close())
	assert.Zero(t, svc.count())
}

func TestSingleRequestInFlight(t *testing.T) {
	svc := &fakeCoach{gate: make(chan struct{}), started: make(chan struct{}, 4)}
	a, advice := newAdvisor(t, svc, true)

	a.Observe(humanTurn(100))
	<-svc.started
	a.Observe(humanTurn(150))
	a.Observe(humanTurn(200))
	assert.Equal(t, 1, svc.count())

	close(svc.gate)
	receive(t, advice)
	<-svc.started
	receive(t, advice)
	assert.Equal(t, 2, svc.count(), "only the latest snapshot is followed up")
}

func TestNoGameNoRequest(t *testing.T) {
	svc := &fakeCoach{}
	a, _ := newAdvisor(t, svc, false)
	a.Observe(humanTurn(100))
	require.NoError(t, a.Close())
	assert.Zero(t, svc.count())

	_, err := a.Ask(context.Background(), "what now?")
	assert.ErrorIs(t, err, ErrNoGame)
}

func TestAsk(t *testing.T) {
	svc := &fakeCoach{}
	a, advice := newAdvisor(t, svc, true)

	answer, err := a.Ask(context.Background(), "  should I bluff?  ")
	require.NoError(t, err)
	assert.Equal(t, "Position matters.", answer)
	assert.Equal(t, []string{"should I bluff?"}, svc.asked)

	ad := receive(t, advice)
	assert.Equal(t, KindAnswer, ad.Kind)
	assert.Equal(t, "should I bluff?", ad.Question)

	_, err = a.Ask(context.Background(), " ")
	assert.Error(t, err)

	svc.askErr = errors.New("down")
	_, err = a.Ask(context.Background(), "again?")
	assert.Error(t, err)
	assert.Error(t, receive(t, advice).Err)
}

func TestFingerprint(t *testing.T) {
	a, b := humanTurn(100), humanTurn(100)
	assert.Equal(t, fingerprint(a), fingerprint(b))
	b.Players[0].PocketCards = []game.Card{"A♠", "K♠"}
	assert.NotEqual(t, fingerprint(a), fingerprint(b))
}
