package tui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/lox/acehigh/internal/game"
	"github.com/lox/acehigh/internal/session"
)

// CommandKind is what an input line asks for
type CommandKind int

const (
	CommandNone CommandKind = iota
	CommandDeal
	CommandAct
	CommandAsk
	CommandNew
	CommandEnd
	CommandHelp
	CommandQuit
)

// Command is a parsed input line
type Command struct {
	Kind     CommandKind
	Action   game.Action
	Amount   int
	Question string
}

// Preset is a quick bet size
type Preset struct {
	Name   string
	Amount int
}

// Presets returns the quick bet sizes for the human: the minimum, half the
// pot, the pot and all in. Sizes outside the legal range and duplicates are
// dropped, so a stack below the minimum gets none.
func Presets(snap *game.GameSnapshot) []Preset {
	action, ok := sizingAction(snap)
	if !ok {
		return nil
	}
	lo, hi := session.BetBounds(snap, action)
	candidates := []Preset{
		{"min", lo},
		{"half", snap.TotalPot / 2},
		{"pot", snap.TotalPot},
		{"allin", hi},
	}
	var out []Preset
	seen := make(map[int]bool)
	for _, p := range candidates {
		if p.Amount < lo || p.Amount > hi || seen[p.Amount] {
			continue
		}
		seen[p.Amount] = true
		out = append(out, p)
	}
	return out
}

// sizingAction is bet when nothing has been bet yet, otherwise raise
func sizingAction(snap *game.GameSnapshot) (game.Action, bool) {
	if !snap.IsHumanTurn() {
		return "", false
	}
	p := snap.CurrentPlayer()
	switch {
	case p.CanAct(game.ActionBet):
		return game.ActionBet, true
	case p.CanAct(game.ActionRaise):
		return game.ActionRaise, true
	default:
		return "", false
	}
}

// ParseCommand turns an input line into a Command. snap resolves the bet
// presets and may be nil.
func ParseCommand(input string, snap *game.GameSnapshot) (Command, error) {
	fields := strings.Fields(input)
	if len(fields) == 0 {
		return Command{Kind: CommandNone}, nil
	}
	word := strings.ToLower(fields[0])
	args := fields[1:]

	switch word {
	case "deal", "d", "next":
		return Command{Kind: CommandDeal}, nil
	case "new":
		return Command{Kind: CommandNew}, nil
	case "end":
		return Command{Kind: CommandEnd}, nil
	case "help", "?":
		return Command{Kind: CommandHelp}, nil
	case "quit", "exit", "q":
		return Command{Kind: CommandQuit}, nil
	case "ask":
		q := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(input), fields[0]))
		if q == "" {
			return Command{}, fmt.Errorf("ask what? e.g. ask should I call?")
		}
		return Command{Kind: CommandAsk, Question: q}, nil
	case "min", "half", "pot", "allin":
		action, ok := sizingAction(snap)
		if !ok {
			return Command{}, fmt.Errorf("you cannot bet or raise right now")
		}
		for _, p := range Presets(snap) {
			if p.Name == word {
				return Command{Kind: CommandAct, Action: action, Amount: p.Amount}, nil
			}
		}
		return Command{}, fmt.Errorf("%s is not a legal size here", word)
	}

	action, err := game.ParseAction(word)
	if err != nil {
		return Command{}, fmt.Errorf("unknown command %q, type help", fields[0])
	}
	cmd := Command{Kind: CommandAct, Action: action}
	if action.NeedsAmount() {
		if len(args) != 1 {
			return Command{}, fmt.Errorf("usage: %s <amount>", action)
		}
		amount, err := strconv.Atoi(strings.TrimPrefix(args[0], "$"))
		if err != nil {
			return Command{}, fmt.Errorf("invalid amount %q", args[0])
		}
		cmd.Amount = amount
	}
	return cmd, nil
}

const helpText = "deal · fold · check · call · bet N · raise N · min · half · pot · allin · ask <question> · new · end · quit"
