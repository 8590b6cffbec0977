package game

import (
	"fmt"
	"strings"
)

// HumanName is the seat name the service expects for the human player
const HumanName = "HumanUser"

// Bot seat limits
const (
	MinBots = 1
	MaxBots = 5
)

// Bots lists the opponents the service offers, by display name
var Bots = []string{"LooseLauren", "TightTimmy", "AggroAmy", "CalmCarl"}

// BotID returns the service identifier for a bot display name
func BotID(name string) string {
	return strings.ToLower(name)
}

// LookupBot resolves a display name or id to the canonical display name
func LookupBot(s string) (string, bool) {
	for _, name := range Bots {
		if strings.EqualFold(name, s) {
			return name, true
		}
	}
	return "", false
}

// Seating builds the create-game arrays: the human at index 0 with a nil
// bot id, then one seat per bot in order.
func Seating(humanName string, bots []string) ([]string, []*string, error) {
	if len(bots) < MinBots || len(bots) > MaxBots {
		return nil, nil, fmt.Errorf("choose between %d and %d bots, got %d", MinBots, MaxBots, len(bots))
	}
	if strings.TrimSpace(humanName) == "" {
		humanName = HumanName
	}
	names := []string{humanName}
	ids := []*string{nil}
	for _, b := range bots {
		name, ok := LookupBot(b)
		if !ok {
			return nil, nil, fmt.Errorf("unknown bot %q (available: %s)", b, strings.Join(Bots, ", "))
		}
		id := BotID(name)
		names = append(names, name)
		ids = append(ids, &id)
	}
	return names, ids, nil
}
