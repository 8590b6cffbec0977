package tui

import "github.com/charmbracelet/lipgloss"

// Table palette
var (
	felt      = lipgloss.Color("#1E6F4A")
	feltLight = lipgloss.Color("#3FB67F")
	rail      = lipgloss.Color("#5A5147")
	ivory     = lipgloss.Color("#F4EFE1")
	heart     = lipgloss.Color("#E04848")
	gold      = lipgloss.Color("#E8B93C")
	dim       = lipgloss.Color("#7C7A73")
	sky       = lipgloss.Color("#7FB8E6")
)

var (
	handHeader = lipgloss.NewStyle().Foreground(ivory).Background(felt).Bold(true)

	holeCards  = lipgloss.NewStyle().Foreground(feltLight).Bold(true)
	actionBar  = lipgloss.NewStyle().Foreground(gold)
	redSuit    = lipgloss.NewStyle().Foreground(heart).Bold(true)
	blackSuit  = lipgloss.NewStyle().Foreground(ivory).Bold(true)
	passive    = lipgloss.NewStyle().Foreground(feltLight)
	alertText  = lipgloss.NewStyle().Foreground(heart).Bold(true)
	chipText   = lipgloss.NewStyle().Foreground(gold).Bold(true)
	mutedText  = lipgloss.NewStyle().Foreground(dim)
	actorArrow = lipgloss.NewStyle().Foreground(feltLight).Bold(true)
	coachText  = lipgloss.NewStyle().Foreground(sky).Italic(true)

	// speechBubble holds a bot's table talk while its move is held back
	speechBubble = lipgloss.NewStyle().
			Foreground(ivory).
			Background(rail).
			Italic(true).
			Padding(0, 1)

	resultBanner = lipgloss.NewStyle().
			Border(lipgloss.ThickBorder()).
			BorderForeground(gold).
			Padding(0, 2).
			Bold(true)
)
