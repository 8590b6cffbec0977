package session

import (
	"errors"

	"github.com/lox/acehigh/internal/gameapi"
)

var (
	// ErrNoActiveSession is returned when no game has been created or the
	// game has ended.
	ErrNoActiveSession = errors.New("no active session")

	// ErrInvalidBetAmount is returned when a bet or raise is outside the
	// allowed bounds. No request is sent.
	ErrInvalidBetAmount = errors.New("invalid bet amount")

	// ErrServiceUnavailable is returned when a call to the game service fails.
	ErrServiceUnavailable = gameapi.ErrServiceUnavailable

	// ErrStaleSession is returned when the session handle has expired or the
	// service no longer knows the game. The handle is cleared.
	ErrStaleSession = gameapi.ErrStaleSession

	// ErrBusy is returned while another action or bot turn is in flight.
	ErrBusy = errors.New("an action is already in progress")

	// ErrNotHumanTurn is returned when the human acts out of turn.
	ErrNotHumanTurn = errors.New("not your turn")

	// ErrActionUnavailable is returned for an action the service did not offer.
	ErrActionUnavailable = errors.New("action not available")

	// ErrClosed is returned once the orchestrator has been closed.
	ErrClosed = errors.New("session closed")
)
