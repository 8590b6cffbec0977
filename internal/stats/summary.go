package stats

import (
	"fmt"
	"sort"
)

// SessionRow is one game in the session history chart
type SessionRow struct {
	Label       string
	HandsPlayed int
	HandsWon    int
	MoneyWon    int
	VPIP        float64
	PFR         float64
}

// Count pairs a label with a tally
type Count struct {
	Name  string
	Count int
}

// Summary is the derived view shown on the analytics screen. Rates are
// percentages.
type Summary struct {
	HandsPlayed        int
	HandsWon           int
	MoneyWon           int
	SessionsPlayed     int
	WinRate            float64
	VPIPRate           float64
	PFRRate            float64
	AvgMoneyPerSession float64
	FavoriteBot        *Count
	MostPlayedSize     *Count
	GameSizes          []Count
	BotSelections      []Count
	Sessions           []SessionRow
}

// Summary derives the analytics screen from r
func (r RunningAnalytics) Summary() Summary {
	s := Summary{
		HandsPlayed:    r.HandsPlayed,
		HandsWon:       r.HandsWon,
		MoneyWon:       r.MoneyWon,
		SessionsPlayed: r.SessionsPlayed,
		WinRate:        percent(r.HandsWon, r.HandsPlayed),
		VPIPRate:       percent(r.VPIP, r.HandsPlayed),
		PFRRate:        percent(r.PFR, r.HandsPlayed),
	}
	if r.SessionsPlayed > 0 {
		s.AvgMoneyPerSession = float64(r.MoneyWon) / float64(r.SessionsPlayed)
	}

	for i, n := range r.GameSizeHistogram {
		if n == 0 {
			continue
		}
		c := Count{Name: fmt.Sprintf("%d players", i+MinGameSize), Count: n}
		s.GameSizes = append(s.GameSizes, c)
		if s.MostPlayedSize == nil || n > s.MostPlayedSize.Count {
			s.MostPlayedSize = &Count{Name: c.Name, Count: n}
		}
	}

	for bot, n := range r.BotSelectionFrequency {
		if n > 0 {
			s.BotSelections = append(s.BotSelections, Count{Name: bot, Count: n})
		}
	}
	sort.Slice(s.BotSelections, func(i, j int) bool {
		if s.BotSelections[i].Count != s.BotSelections[j].Count {
			return s.BotSelections[i].Count > s.BotSelections[j].Count
		}
		return s.BotSelections[i].Name < s.BotSelections[j].Name
	})
	if len(s.BotSelections) > 0 {
		fav := s.BotSelections[0]
		s.FavoriteBot = &fav
	}

	h := r.Sessions
	n := h.Len()
	for i := n - 1; i >= 0; i-- {
		s.Sessions = append(s.Sessions, SessionRow{
			Label:       fmt.Sprintf("Game %d", n-i),
			HandsPlayed: h.HandsPlayed[i],
			HandsWon:    at(h.HandsWon, i),
			MoneyWon:    at(h.MoneyWon, i),
			VPIP:        percent(at(h.VPIP, i), h.HandsPlayed[i]),
			PFR:         percent(at(h.PFR, i), h.HandsPlayed[i]),
		})
	}
	return s
}

func percent(n, total int) float64 {
	if total <= 0 {
		return 0
	}
	return float64(n) / float64(total) * 100
}

func at(s []int, i int) int {
	if i < len(s) {
		return s[i]
	}
	return 0
}
