package game

import "time"

// Narration is a short aside attributed to a seat, shown before the
// snapshot it arrived with replaces the visible state
type Narration struct {
	Text       string `json:"text"`
	ActorIndex int    `json:"actor_index"`
	ActorName  string `json:"actor_name,omitempty"`
}

// PlayerRef identifies a seat
type PlayerRef struct {
	Index int    `json:"index"`
	Name  string `json:"name,omitempty"`
}

// TurnResult is the outcome of a player action or a bot turn
type TurnResult struct {
	Snapshot  GameSnapshot `json:"snapshot"`
	Status    TurnStatus   `json:"status"`
	Narration *Narration   `json:"narration,omitempty"`
	Winner    *PlayerRef   `json:"winner,omitempty"`
	ChipDelta *int         `json:"chip_delta,omitempty"`
}

// HandComplete reports whether this result ended the hand
func (r TurnResult) HandComplete() bool {
	return r.Status == TurnHandComplete
}

// SessionHandle ties the client to a game on the service
type SessionHandle struct {
	GameID    string    `json:"game_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the handle is no longer usable at now
func (h SessionHandle) Expired(now time.Time) bool {
	return !h.ExpiresAt.IsZero() && !now.Before(h.ExpiresAt)
}

// GameStats summarises the running game for the outcome screens
type GameStats struct {
	StartingChips int `json:"starting_chips"`
	HandsPlayed   int `json:"hands_played"`
	HandsWon      int `json:"hands_won"`
	FinalChips    int `json:"final_chips"`
}

// Recommendation is the coach's suggested play for the human's turn
type Recommendation struct {
	CoachTip string `json:"coach_tip"`
	Action   string `json:"action"`
}
