package game

import (
	"fmt"
	"strings"
)

// Action is a betting action a player can take
type Action string

const (
	ActionFold  Action = "fold"
	ActionCheck Action = "check"
	ActionCall  Action = "call"
	ActionBet   Action = "bet"
	ActionRaise Action = "raise"
)

// Actions lists every action in display order
var Actions = []Action{ActionFold, ActionCheck, ActionCall, ActionBet, ActionRaise}

// String returns the wire representation of an action
func (a Action) String() string {
	return string(a)
}

// NeedsAmount reports whether the action carries a chip amount
func (a Action) NeedsAmount() bool {
	return a == ActionBet || a == ActionRaise
}

// ParseAction converts user or wire input into an Action
func ParseAction(s string) (Action, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "fold", "f":
		return ActionFold, nil
	case "check", "k":
		return ActionCheck, nil
	case "call", "c":
		return ActionCall, nil
	case "bet", "b":
		return ActionBet, nil
	case "raise", "r":
		return ActionRaise, nil
	default:
		return "", fmt.Errorf("unknown action %q", s)
	}
}

// Stage is the betting round the hand is in
type Stage string

const (
	StagePreflop  Stage = "preflop"
	StageFlop     Stage = "flop"
	StageTurn     Stage = "turn"
	StageRiver    Stage = "river"
	StageShowdown Stage = "showdown"
	StageIdle     Stage = "idle"
)

// IsBetting reports whether players are still acting on this stage
func (s Stage) IsBetting() bool {
	switch s {
	case StagePreflop, StageFlop, StageTurn, StageRiver:
		return true
	default:
		return false
	}
}

// PlayerStatus is a player's standing within the current hand
type PlayerStatus string

const (
	StatusActive PlayerStatus = "active"
	StatusFolded PlayerStatus = "folded"
	StatusAllIn  PlayerStatus = "all_in"
)

// UnmarshalText accepts the spellings the service has used for all-in
func (s *PlayerStatus) UnmarshalText(text []byte) error {
	switch strings.ToLower(string(text)) {
	case "active", "":
		*s = StatusActive
	case "folded":
		*s = StatusFolded
	case "all_in", "allin", "all-in":
		*s = StatusAllIn
	default:
		return fmt.Errorf("unknown player status %q", text)
	}
	return nil
}

// TurnStatus reports whether a response ended the hand
type TurnStatus string

const (
	TurnInProgress   TurnStatus = "in_progress"
	TurnHandComplete TurnStatus = "hand_complete"
)

// Table positions as reported by the service
const (
	PositionButton     = "Button"
	PositionSmallBlind = "Small Blind"
	PositionBigBlind   = "Big Blind"
	PositionUTG        = "UTG"
	PositionUTG1       = "UTG+1"
	PositionCutoff     = "Cutoff"
)

// DefaultBigBlind is the service's forced bet when a snapshot omits it
const DefaultBigBlind = 2
