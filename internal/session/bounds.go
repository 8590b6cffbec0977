package session

import (
	"fmt"

	"github.com/lox/acehigh/internal/game"
)

// BetBounds returns the smallest and largest total the human may bet or
// raise to. When the stack cannot cover the minimum, lo exceeds hi and no
// amount is valid.
func BetBounds(snap *game.GameSnapshot, action game.Action) (lo, hi int) {
	human := snap.Human()
	if human == nil {
		return 0, 0
	}
	hi = human.Chips + human.CurrentStreetContribution
	switch action {
	case game.ActionRaise:
		lo = snap.MinRaiseFor(human)
		if lo <= 0 {
			lo = snap.CurrentBet + snap.BigBlindAmount()
		}
	default:
		lo = snap.BigBlindAmount()
	}
	return lo, hi
}

// Validate checks a human action against snap without contacting the service
func Validate(snap *game.GameSnapshot, action game.Action, amount int) error {
	if !snap.IsHumanTurn() {
		return ErrNotHumanTurn
	}
	if !snap.CurrentPlayer().CanAct(action) {
		return fmt.Errorf("%w: %s", ErrActionUnavailable, action)
	}
	if action.NeedsAmount() {
		lo, hi := BetBounds(snap, action)
		if amount < lo || amount > hi {
			return fmt.Errorf("%w: %d is outside %d-%d", ErrInvalidBetAmount, amount, lo, hi)
		}
	}
	return nil
}
