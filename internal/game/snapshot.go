// Package game holds the client's view of a remote Hold'em game: the snapshot
// the service returns after every request, the per-turn results, and the
// session handle that ties the client to a game on the server.
package game

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// Card is a card as rendered by the service, e.g. "A♠" or "10♥"
type Card string

// IsRed reports whether the card is a heart or a diamond
func (c Card) IsRed() bool {
	return strings.ContainsAny(string(c), "♥♦hd")
}

// Pot is a main or side pot
type Pot struct {
	Amount          int   `json:"amount"`
	EligiblePlayers []int `json:"eligible_players,omitempty"`
	RequiredAmount  int   `json:"required_amount,omitempty"`
}

// Player is one seat at the table
type Player struct {
	Name                      string       `json:"name"`
	IsBot                     bool         `json:"is_bot"`
	Chips                     int          `json:"chips"`
	Status                    PlayerStatus `json:"status"`
	Position                  string       `json:"position,omitempty"`
	PocketCards               []Card       `json:"pocket_cards,omitempty"`
	CurrentStreetContribution int          `json:"current_street_contribution"`
	IsAllIn                   bool         `json:"is_all_in,omitempty"`
	AvailableActions          []Action     `json:"available_actions,omitempty"`
	CallAmount                int          `json:"call_amount,omitempty"`
	MinRaise                  int          `json:"min_raise,omitempty"`
}

// Folded reports whether the player is out of the current hand
func (p Player) Folded() bool {
	return p.Status == StatusFolded
}

// CanAct reports whether the action is offered to the player
func (p Player) CanAct(a Action) bool {
	return slices.Contains(p.AvailableActions, a)
}

// GameSnapshot is the full game state at a point in time
type GameSnapshot struct {
	Players          []Player `json:"players"`
	CurrentPlayerIdx int      `json:"current_player_idx"`
	ButtonPosition   int      `json:"button_position"`
	CommunityCards   []Card   `json:"community_cards"`
	TotalPot         int      `json:"total_pot"`
	CurrentBet       int      `json:"current_bet"`
	GameStage        Stage    `json:"game_stage"`
	SmallBlind       int      `json:"small_blind,omitempty"`
	BigBlind         int      `json:"big_blind,omitempty"`
	MinRaise         int      `json:"min_raise,omitempty"`
	Pots             []Pot    `json:"pots,omitempty"`
}

// CurrentPlayer returns the player whose turn it is, or nil when the index is out of range
func (s *GameSnapshot) CurrentPlayer() *Player {
	if s == nil || s.CurrentPlayerIdx < 0 || s.CurrentPlayerIdx >= len(s.Players) {
		return nil
	}
	return &s.Players[s.CurrentPlayerIdx]
}

// HumanIndex returns the seat of the human player, or -1. Services that do
// not flag bots seat the human first, so the first unflagged seat wins.
func (s *GameSnapshot) HumanIndex() int {
	if s == nil {
		return -1
	}
	for i, p := range s.Players {
		if !p.IsBot {
			return i
		}
	}
	return -1
}

// Human returns the human player, or nil
func (s *GameSnapshot) Human() *Player {
	idx := s.HumanIndex()
	if idx < 0 {
		return nil
	}
	return &s.Players[idx]
}

// IsHumanTurn reports whether the acting player is the human
func (s *GameSnapshot) IsHumanTurn() bool {
	return s.CurrentPlayer() != nil && s.CurrentPlayerIdx == s.HumanIndex()
}

// IsBotTurn reports whether the acting player is anyone but the human
func (s *GameSnapshot) IsBotTurn() bool {
	return s.CurrentPlayer() != nil && s.CurrentPlayerIdx != s.HumanIndex()
}

// InHand reports whether a hand is being bet on
func (s *GameSnapshot) InHand() bool {
	return s != nil && s.GameStage.IsBetting()
}

// BigBlindAmount returns the big blind, falling back to the service default
func (s *GameSnapshot) BigBlindAmount() int {
	if s == nil || s.BigBlind <= 0 {
		return DefaultBigBlind
	}
	return s.BigBlind
}

// MinRaiseFor returns the smallest legal raise for the given player
func (s *GameSnapshot) MinRaiseFor(p *Player) int {
	if p != nil && p.MinRaise > 0 {
		return p.MinRaise
	}
	return s.MinRaise
}

// NonFolded returns the indexes of players still contesting the pot
func (s *GameSnapshot) NonFolded() []int {
	var idx []int
	for i, p := range s.Players {
		if !p.Folded() {
			idx = append(idx, i)
		}
	}
	return idx
}

// WithChips returns the indexes of players holding chips
func (s *GameSnapshot) WithChips() []int {
	var idx []int
	for i, p := range s.Players {
		if p.Chips > 0 {
			idx = append(idx, i)
		}
	}
	return idx
}

// ChipLeader returns the index of the player with the most chips. Ties keep the lowest seat.
func (s *GameSnapshot) ChipLeader() int {
	best := -1
	for i, p := range s.Players {
		if best < 0 || p.Chips > s.Players[best].Chips {
			best = i
		}
	}
	return best
}

// Clone returns a deep copy
func (s *GameSnapshot) Clone() *GameSnapshot {
	if s == nil {
		return nil
	}
	c := *s
	c.CommunityCards = slices.Clone(s.CommunityCards)
	c.Pots = make([]Pot, len(s.Pots))
	for i, pot := range s.Pots {
		c.Pots[i] = pot
		c.Pots[i].EligiblePlayers = slices.Clone(pot.EligiblePlayers)
	}
	if s.Pots == nil {
		c.Pots = nil
	}
	c.Players = make([]Player, len(s.Players))
	for i, p := range s.Players {
		c.Players[i] = p
		c.Players[i].PocketCards = slices.Clone(p.PocketCards)
		c.Players[i].AvailableActions = slices.Clone(p.AvailableActions)
	}
	return &c
}

// ErrInvalidSnapshot is returned when a snapshot violates the data model
var ErrInvalidSnapshot = errors.New("invalid snapshot")

// Validate checks the invariants the client relies on
func (s *GameSnapshot) Validate() error {
	if s == nil {
		return fmt.Errorf("%w: nil", ErrInvalidSnapshot)
	}
	if len(s.Players) == 0 {
		return fmt.Errorf("%w: no players", ErrInvalidSnapshot)
	}
	if len(s.CommunityCards) > 5 {
		return fmt.Errorf("%w: %d community cards", ErrInvalidSnapshot, len(s.CommunityCards))
	}
	for i, p := range s.Players {
		if p.Chips < 0 {
			return fmt.Errorf("%w: player %d has negative chips", ErrInvalidSnapshot, i)
		}
		if p.CurrentStreetContribution < 0 {
			return fmt.Errorf("%w: player %d has negative contribution", ErrInvalidSnapshot, i)
		}
		if n := len(p.PocketCards); n != 0 && n != 2 {
			return fmt.Errorf("%w: player %d holds %d cards", ErrInvalidSnapshot, i, n)
		}
		if p.Folded() && len(p.AvailableActions) > 0 {
			return fmt.Errorf("%w: folded player %d has actions", ErrInvalidSnapshot, i)
		}
	}
	if s.InHand() && s.CurrentPlayer() == nil {
		return fmt.Errorf("%w: current player %d out of range", ErrInvalidSnapshot, s.CurrentPlayerIdx)
	}
	return nil
}
