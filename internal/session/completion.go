package session

import (
	"context"

	"github.com/lox/acehigh/internal/game"
	"github.com/lox/acehigh/internal/stats"
)

// completeHand records a finished hand and decides whether the game goes on.
// It runs at most once per hand and never after the game has ended.
func (o *Orchestrator) completeHand(ctx context.Context, res game.TurnResult) error {
	snap := &res.Snapshot
	winner, source := resolveWinner(snap, res.Winner)
	if source == WinnerChipLeader {
		o.logger.Warn("service did not report a winner, using chip leader", "winner", winner.Name)
	}
	next := evaluate(snap)

	o.mu.Lock()
	if o.phase.Terminal() {
		o.mu.Unlock()
		return nil
	}
	o.phase = PhaseHandComplete
	hand := HandResult{
		Winner:    winner,
		Source:    source,
		HumanWon:  winner.Index >= 0 && winner.Index == snap.HumanIndex(),
		ChipDelta: chipDelta(res, snap, o.state.HandStartStack),
	}
	if human := snap.Human(); human != nil {
		o.state.FinalChips = human.Chips
	}
	if hand.HumanWon {
		o.state.HandsWon++
	}
	state := o.state
	o.mu.Unlock()

	o.publish(Event{Kind: EventPhase, Phase: PhaseHandComplete, Hand: &hand})
	err := o.stats.RecordHand(ctx, stats.HandOutcome{
		Snapshot:  snap,
		Winner:    winner,
		HumanWon:  hand.HumanWon,
		ChipDelta: hand.ChipDelta,
	})
	if err != nil {
		o.logger.Error("failed to record hand", "error", err)
	}
	o.saveState(ctx, state)
	o.logger.Info("hand complete", "winner", winner.Name, "source", source, "delta", hand.ChipDelta, "next", next)

	o.mu.Lock()
	o.phase = next
	o.mu.Unlock()
	if next == PhaseGameContinues {
		o.schedule(o.timings.NextHandPause, "next-hand", o.dealNext)
	} else {
		o.dropHandle(ctx)
		out := Outcome{Phase: next, Stats: state.GameStats}
		o.schedule(o.timings.OutcomePause, "outcome", func() { o.navigate(out) })
	}
	o.publish(Event{Kind: EventPhase, Phase: next})
	return nil
}

// resolveWinner prefers the last player standing, then the service's
// answer, then the chip leader
func resolveWinner(snap *game.GameSnapshot, reported *game.PlayerRef) (game.PlayerRef, WinnerSource) {
	if live := snap.NonFolded(); len(live) == 1 {
		return seat(snap, live[0]), WinnerLastStanding
	}
	if reported != nil && reported.Index >= 0 && reported.Index < len(snap.Players) {
		return seat(snap, reported.Index), WinnerReported
	}
	return seat(snap, snap.ChipLeader()), WinnerChipLeader
}

func seat(snap *game.GameSnapshot, idx int) game.PlayerRef {
	if idx < 0 || idx >= len(snap.Players) {
		return game.PlayerRef{Index: -1}
	}
	return game.PlayerRef{Index: idx, Name: snap.Players[idx].Name}
}

// evaluate decides what follows a completed hand once chips are distributed
func evaluate(snap *game.GameSnapshot) Phase {
	human := snap.HumanIndex()
	if human < 0 || snap.Players[human].Chips <= 0 {
		return PhaseGameEndedLost
	}
	if withChips := snap.WithChips(); len(withChips) == 1 && withChips[0] == human {
		return PhaseGameEndedWon
	}
	return PhaseGameContinues
}

// chipDelta is the service's figure when given, otherwise the human's
// stack now against the stack at the deal
func chipDelta(res game.TurnResult, snap *game.GameSnapshot, startStack int) int {
	if res.ChipDelta != nil {
		return *res.ChipDelta
	}
	human := snap.Human()
	if human == nil || startStack <= 0 {
		return 0
	}
	return human.Chips - startStack
}
