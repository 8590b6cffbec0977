// Package stats aggregates completed hands into durable running analytics:
// lifetime counters, a newest-first history of the last sessions, and the
// game-size and bot-selection tallies shown on the analytics screen.
package stats

import (
	"slices"
)

// Capacity is the number of sessions kept in each history series
const Capacity = 10

// Game sizes tracked by the histogram, in players
const (
	MinGameSize = 2
	MaxGameSize = 6
)

// SessionHistory holds parallel per-session series, newest first. Index 0
// is the session being played.
type SessionHistory struct {
	HandsPlayed []int `json:"handsPlayed"`
	HandsWon    []int `json:"handsWon"`
	MoneyWon    []int `json:"moneyWon"`
	VPIP        []int `json:"vpip"`
	PFR         []int `json:"pfr"`
}

// RunningAnalytics is everything the aggregator persists
type RunningAnalytics struct {
	HandsPlayed           int                                `json:"handsPlayed"`
	HandsWon              int                                `json:"handsWon"`
	MoneyWon              int                                `json:"moneyWon"`
	VPIP                  int                                `json:"vpip"`
	PFR                   int                                `json:"pfr"`
	SessionsPlayed        int                                `json:"sessionsPlayed"`
	Sessions              SessionHistory                     `json:"sessions"`
	GameSizeHistogram     [MaxGameSize - MinGameSize + 1]int `json:"gameSizeHistogram"`
	BotSelectionFrequency map[string]int                     `json:"botSelectionFrequency"`
}

func (h *SessionHistory) series() []*[]int {
	return []*[]int{&h.HandsPlayed, &h.HandsWon, &h.MoneyWon, &h.VPIP, &h.PFR}
}

// Len returns the number of sessions held
func (h *SessionHistory) Len() int {
	return len(h.HandsPlayed)
}

// Push starts a new session: a zero entry goes in at index 0 of every
// series and the oldest entry falls off once Capacity is reached.
func (h *SessionHistory) Push() {
	for _, s := range h.series() {
		*s = pushFront(*s)
	}
}

// normalize aligns every series to the same length, at most Capacity
func (h *SessionHistory) normalize() {
	n := 0
	for _, s := range h.series() {
		n = max(n, len(*s))
	}
	n = min(n, Capacity)
	for _, s := range h.series() {
		switch {
		case len(*s) > n:
			*s = (*s)[:n]
		case len(*s) < n:
			*s = append(*s, make([]int, n-len(*s))...)
		}
	}
}

func pushFront(s []int) []int {
	out := make([]int, 0, Capacity)
	out = append(out, 0)
	out = append(out, s...)
	if len(out) > Capacity {
		out = out[:Capacity]
	}
	return out
}

func (r *RunningAnalytics) clone() RunningAnalytics {
	c := *r
	for i, s := range c.Sessions.series() {
		*s = slices.Clone(*r.Sessions.series()[i])
	}
	c.BotSelectionFrequency = make(map[string]int, len(r.BotSelectionFrequency))
	for k, v := range r.BotSelectionFrequency {
		c.BotSelectionFrequency[k] = v
	}
	return c
}
