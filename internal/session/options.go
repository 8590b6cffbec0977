package session

import (
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
)

// Timings controls how long the orchestrator pauses between steps
type Timings struct {
	// NarrationDwell is how long bot narration stays up before its snapshot is applied
	NarrationDwell time.Duration
	// NextHandPause is the delay before the next hand is dealt automatically
	NextHandPause time.Duration
	// OutcomePause is the delay before navigating to the game outcome
	OutcomePause time.Duration
	// HandleTTL is how long a session handle stays usable
	HandleTTL time.Duration
}

// DefaultTimings returns the production timings
func DefaultTimings() Timings {
	return Timings{
		NarrationDwell: 2 * time.Second,
		NextHandPause:  3 * time.Second,
		OutcomePause:   5 * time.Second,
		HandleTTL:      24 * time.Hour,
	}
}

func (t Timings) withDefaults() Timings {
	d := DefaultTimings()
	if t.NarrationDwell <= 0 {
		t.NarrationDwell = d.NarrationDwell
	}
	if t.NextHandPause <= 0 {
		t.NextHandPause = d.NextHandPause
	}
	if t.OutcomePause <= 0 {
		t.OutcomePause = d.OutcomePause
	}
	if t.HandleTTL <= 0 {
		t.HandleTTL = d.HandleTTL
	}
	return t
}

// Option configures an Orchestrator
type Option func(*Orchestrator)

// WithClock sets the clock used for every pause and expiry
func WithClock(clock quartz.Clock) Option {
	return func(o *Orchestrator) {
		o.clock = clock
	}
}

// WithLogger sets the logger
func WithLogger(logger *log.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

// WithNavigator sets who is told when a game ends
func WithNavigator(n Navigator) Option {
	return func(o *Orchestrator) {
		o.navigator = n
	}
}

// WithTimings overrides the pauses. Zero fields keep their defaults.
func WithTimings(t Timings) Option {
	return func(o *Orchestrator) {
		o.timings = t.withDefaults()
	}
}
