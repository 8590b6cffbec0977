package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/lox/acehigh/internal/stats"
	"github.com/muesli/termenv"
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1).
			Bold(true)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#626262")).
			Width(22)

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFD700")).
			Bold(true)

	sectionStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#626262")).
			Padding(0, 1)
)

// StatsCmd prints the lifetime analytics
type StatsCmd struct {
	Reset   bool `help:"Clear all analytics"`
	NoColor bool `name:"no-color" help:"Disable colors"`
}

func (c *StatsCmd) Run(g *Globals) error {
	cfg, err := g.load()
	if err != nil {
		return err
	}
	if c.NoColor || cfg.UI.NoColor {
		lipgloss.SetColorProfile(termenv.Ascii)
	}

	ctx, stop := signalContext()
	defer stop()

	st, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	agg := stats.New(st, stderrLogger(cfg.UI))
	if c.Reset {
		if err := agg.Reset(ctx); err != nil {
			return fmt.Errorf("resetting analytics: %w", err)
		}
		fmt.Println("Analytics cleared")
		return nil
	}

	r, err := agg.Load(ctx)
	if err != nil {
		return fmt.Errorf("loading analytics: %w", err)
	}
	fmt.Println(renderSummary(r.Summary()))
	return nil
}

func renderSummary(s stats.Summary) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(" ♠ acehigh analytics ♣ "))
	b.WriteString("\n\n")

	if s.HandsPlayed == 0 {
		b.WriteString("No hands played yet.")
		return b.String()
	}

	row := func(label, value string) string {
		return labelStyle.Render(label) + valueStyle.Render(value)
	}
	overview := []string{
		row("Hands played", fmt.Sprintf("%d", s.HandsPlayed)),
		row("Hands won", fmt.Sprintf("%d (%.1f%%)", s.HandsWon, s.WinRate)),
		row("Chips won", signed(s.MoneyWon)),
		row("Games played", fmt.Sprintf("%d", s.SessionsPlayed)),
		row("Avg per game", fmt.Sprintf("%.1f", s.AvgMoneyPerSession)),
		row("VPIP", fmt.Sprintf("%.1f%%", s.VPIPRate)),
		row("PFR", fmt.Sprintf("%.1f%%", s.PFRRate)),
	}
	if s.FavoriteBot != nil {
		overview = append(overview, row("Favorite opponent", fmt.Sprintf("%s (%d)", s.FavoriteBot.Name, s.FavoriteBot.Count)))
	}
	if s.MostPlayedSize != nil {
		overview = append(overview, row("Usual table", fmt.Sprintf("%s (%d)", s.MostPlayedSize.Name, s.MostPlayedSize.Count)))
	}
	b.WriteString(sectionStyle.Render(strings.Join(overview, "\n")))

	if len(s.Sessions) > 0 {
		lines := []string{fmt.Sprintf("%-8s %6s %5s %7s %6s %6s", "", "Hands", "Won", "Chips", "VPIP", "PFR")}
		for _, r := range s.Sessions {
			lines = append(lines, fmt.Sprintf("%-8s %6d %5d %7s %5.0f%% %5.0f%%",
				r.Label, r.HandsPlayed, r.HandsWon, signed(r.MoneyWon), r.VPIP, r.PFR))
		}
		b.WriteString("\n")
		b.WriteString(sectionStyle.Render(strings.Join(lines, "\n")))
	}
	return b.String()
}

func signed(n int) string {
	if n > 0 {
		return fmt.Sprintf("+%d", n)
	}
	return fmt.Sprintf("%d", n)
}
