package session

import "github.com/lox/acehigh/internal/game"

// Phase is where the current game stands
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseInProgress
	PhaseHandComplete
	PhaseGameContinues
	PhaseGameEndedLost
	PhaseGameEndedWon
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseInProgress:
		return "in_progress"
	case PhaseHandComplete:
		return "hand_complete"
	case PhaseGameContinues:
		return "game_continues"
	case PhaseGameEndedLost:
		return "game_ended_lost"
	case PhaseGameEndedWon:
		return "game_ended_won"
	default:
		return "unknown"
	}
}

// Terminal reports whether the game is over
func (p Phase) Terminal() bool {
	return p == PhaseGameEndedLost || p == PhaseGameEndedWon
}

// WinnerSource records how a hand's winner was determined
type WinnerSource string

const (
	WinnerLastStanding WinnerSource = "last_standing"
	WinnerReported     WinnerSource = "reported"
	WinnerChipLeader   WinnerSource = "chip_leader"
)

// HandResult summarises a completed hand
type HandResult struct {
	Winner    game.PlayerRef `json:"winner"`
	Source    WinnerSource   `json:"source"`
	HumanWon  bool           `json:"human_won"`
	ChipDelta int            `json:"chip_delta"`
}

// Outcome is handed to the Navigator when a game ends
type Outcome struct {
	Phase Phase          `json:"phase"`
	Stats game.GameStats `json:"stats"`
}

// EventKind identifies an Event
type EventKind int

const (
	// EventNarration carries narration to show, or nil to clear it
	EventNarration EventKind = iota
	// EventPhase reports a phase change. Hand is set on PhaseHandComplete.
	EventPhase
	// EventError reports a failed operation
	EventError
	// EventBusy reports the in-flight guard changing
	EventBusy
	// EventNavigate reports the end-of-game navigation
	EventNavigate
)

func (k EventKind) String() string {
	switch k {
	case EventNarration:
		return "narration"
	case EventPhase:
		return "phase"
	case EventError:
		return "error"
	case EventBusy:
		return "busy"
	case EventNavigate:
		return "navigate"
	default:
		return "unknown"
	}
}

// Event is published to orchestrator subscribers
type Event struct {
	Kind      EventKind
	Narration *game.Narration
	Phase     Phase
	Hand      *HandResult
	Err       error
	Busy      bool
	Outcome   *Outcome
}

// Navigator receives the end-of-game outcome once
type Navigator interface {
	Navigate(Outcome)
}

// NavigatorFunc adapts a function to a Navigator
type NavigatorFunc func(Outcome)

func (f NavigatorFunc) Navigate(o Outcome) { f(o) }
