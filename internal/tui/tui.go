// Package tui is the terminal table: it renders the published snapshot and
// orchestrator events, and turns typed commands into orchestrator calls.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/lox/acehigh/internal/coach"
	"github.com/lox/acehigh/internal/game"
	"github.com/lox/acehigh/internal/session"
)

// Controller is the orchestrator as seen by the UI
type Controller interface {
	CreateGame(ctx context.Context, humanName string, bots []string) error
	StartHand(ctx context.Context) error
	SubmitPlayerAction(ctx context.Context, action game.Action, amount int) error
	EndSession(ctx context.Context) error
	Busy() bool
}

// Coach answers questions; it may be nil
type Coach interface {
	Ask(ctx context.Context, question string) (string, error)
}

// Messages delivered by the bridge
type (
	SnapshotMsg struct{ Snapshot *game.GameSnapshot }
	EventMsg    struct{ Event session.Event }
	AdviceMsg   struct{ Advice coach.Advice }
)

// doneMsg reports a finished controller call
type doneMsg struct {
	op  string
	err error
}

type tickMsg struct{ gen int }

// Options configures a TUIModel
type Options struct {
	HumanName string
	Bots      []string
	// Ctx bounds every controller call made from the UI
	Ctx context.Context
}

// TUIModel is the Bubble Tea model for the table
type TUIModel struct {
	ctrl   Controller
	coach  Coach
	logger *log.Logger
	opts   Options

	// UI components
	logViewport viewport.Model
	actionInput textinput.Model

	gameLog     []string
	focusedPane int // 0 = log, 1 = input
	quitting    bool

	// Display state, driven by the bridge
	snap      *game.GameSnapshot
	phase     session.Phase
	busy      bool
	narration *game.Narration
	lastHand  *session.HandResult
	outcome   *session.Outcome
	errText   string
	advice    string

	countdown int
	tickGen   int

	width       int
	height      int
	initialized bool
}

// NewTUIModel creates the table model
func NewTUIModel(ctrl Controller, c Coach, logger *log.Logger, opts Options) *TUIModel {
	if opts.Ctx == nil {
		opts.Ctx = context.Background()
	}
	vp := viewport.New(10, 5)
	vp.SetContent("")

	ti := textinput.New()
	ti.Placeholder = "deal, fold, check, call, bet 40, raise 80, pot, ask ..."
	ti.Focus()
	ti.CharLimit = 200
	ti.Width = 100
	ti.PromptStyle = lipgloss.NewStyle().Foreground(feltLight).Bold(true)
	ti.TextStyle = lipgloss.NewStyle().Foreground(ivory)
	ti.Prompt = "> "

	return &TUIModel{
		ctrl:        ctrl,
		coach:       c,
		logger:      logger.WithPrefix("tui"),
		opts:        opts,
		logViewport: vp,
		actionInput: ti,
		focusedPane: 1,
	}
}

// Init initializes the TUI model
func (m *TUIModel) Init() tea.Cmd {
	return textinput.Blink
}

// Update handles messages in the TUI
func (m *TUIModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case SnapshotMsg:
		m.applySnapshot(msg.Snapshot)

	case EventMsg:
		cmds = append(cmds, m.applyEvent(msg.Event))

	case AdviceMsg:
		m.applyAdvice(msg.Advice)

	case doneMsg:
		if msg.err != nil && !errors.Is(msg.err, session.ErrClosed) {
			m.errText = msg.err.Error()
			m.logger.Debug("command failed", "op", msg.op, "error", msg.err)
		}

	case tickMsg:
		if msg.gen == m.tickGen && m.countdown > 0 {
			m.countdown--
			if m.countdown > 0 {
				cmds = append(cmds, m.tick())
			}
		}

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Sequence(tea.ClearScreen, tea.Quit)
		case "tab":
			if m.focusedPane == 0 {
				m.focusedPane = 1
				m.actionInput.Focus()
			} else {
				m.focusedPane = 0
				m.actionInput.Blur()
			}
		case "enter":
			if m.focusedPane == 1 {
				input := strings.TrimSpace(m.actionInput.Value())
				m.actionInput.SetValue("")
				if cmd := m.submit(input); cmd != nil {
					cmds = append(cmds, cmd)
				}
				if m.quitting {
					return m, tea.Batch(cmds...)
				}
			}
		case "up", "k":
			if m.focusedPane == 0 {
				m.logViewport.ScrollUp(1)
			}
		case "down", "j":
			if m.focusedPane == 0 {
				m.logViewport.ScrollDown(1)
			}
		}
	}

	var cmd tea.Cmd
	if m.focusedPane == 1 {
		m.actionInput, cmd = m.actionInput.Update(msg)
		cmds = append(cmds, cmd)
	}
	m.logViewport, cmd = m.logViewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

func (m *TUIModel) applySnapshot(snap *game.GameSnapshot) {
	wasHumanTurn := m.snap.IsHumanTurn()
	m.snap = snap
	if snap == nil {
		return
	}
	if snap.InHand() && snap.IsHumanTurn() && !wasHumanTurn {
		if human := snap.Human(); human != nil {
			m.AddLogEntry(fmt.Sprintf("Your turn: %s, to call $%d", formatCards(human.PocketCards), human.CallAmount))
		}
	}
}

func (m *TUIModel) applyEvent(ev session.Event) tea.Cmd {
	switch ev.Kind {
	case session.EventBusy:
		m.busy = ev.Busy

	case session.EventNarration:
		m.narration = ev.Narration
		if n := ev.Narration; n != nil {
			m.AddLogEntry(fmt.Sprintf("%s: %q", speaker(n, m.snap), n.Text))
		}

	case session.EventError:
		if ev.Err != nil {
			m.errText = ev.Err.Error()
			m.AddLogEntry(alertText.Render("Error: " + ev.Err.Error()))
		}

	case session.EventPhase:
		m.phase = ev.Phase
		switch ev.Phase {
		case session.PhaseInProgress:
			m.lastHand = nil
			m.outcome = nil
			m.errText = ""
			m.advice = ""
			m.countdown = 0
			m.AddLogEntry(handHeader.Render(" New hand "))
		case session.PhaseHandComplete:
			if h := ev.Hand; h != nil {
				m.lastHand = h
				m.AddLogEntry(handSummary(h))
			}
		case session.PhaseGameContinues:
			return m.startCountdown(3)
		case session.PhaseGameEndedLost, session.PhaseGameEndedWon:
			m.AddLogEntry(chipText.Render("Game over"))
			return m.startCountdown(5)
		case session.PhaseIdle:
			m.lastHand = nil
			m.countdown = 0
		}

	case session.EventNavigate:
		m.outcome = ev.Outcome
		m.countdown = 0
	}
	return nil
}

func (m *TUIModel) applyAdvice(a coach.Advice) {
	if a.Err != nil {
		m.errText = a.Err.Error()
		return
	}
	switch a.Kind {
	case coach.KindAnswer:
		m.advice = a.Text
		m.AddLogEntry(coachText.Render("Coach: " + a.Text))
	default:
		m.advice = a.Text
		if a.Action != "" {
			m.advice = fmt.Sprintf("%s (suggests %s)", a.Text, a.Action)
		}
	}
}

func (m *TUIModel) startCountdown(seconds int) tea.Cmd {
	m.countdown = seconds
	m.tickGen++
	return m.tick()
}

func (m *TUIModel) tick() tea.Cmd {
	gen := m.tickGen
	return tea.Tick(time.Second, func(time.Time) tea.Msg { return tickMsg{gen: gen} })
}

// submit parses input and returns the command that carries it out
func (m *TUIModel) submit(input string) tea.Cmd {
	cmd, err := ParseCommand(input, m.snap)
	if err != nil {
		m.errText = err.Error()
		return nil
	}
	m.errText = ""

	switch cmd.Kind {
	case CommandNone:
		return nil
	case CommandHelp:
		m.AddLogEntry(mutedText.Render(helpText))
		return nil
	case CommandQuit:
		m.quitting = true
		return tea.Sequence(tea.ClearScreen, tea.Quit)
	case CommandAsk:
		if m.coach == nil {
			m.errText = "the coach is switched off"
			return nil
		}
		m.AddLogEntry("You: " + cmd.Question)
		return m.run("ask", func(ctx context.Context) error {
			_, err := m.coach.Ask(ctx, cmd.Question)
			return err
		})
	}

	if m.busy || m.ctrl.Busy() {
		m.errText = "wait for the table to finish"
		return nil
	}
	switch cmd.Kind {
	case CommandDeal:
		return m.run("deal", m.ctrl.StartHand)
	case CommandNew:
		m.outcome = nil
		return m.run("new", func(ctx context.Context) error {
			if err := m.ctrl.CreateGame(ctx, m.opts.HumanName, m.opts.Bots); err != nil {
				return err
			}
			return m.ctrl.StartHand(ctx)
		})
	case CommandEnd:
		return m.run("end", m.ctrl.EndSession)
	case CommandAct:
		m.AddLogEntry(fmt.Sprintf("You: %s", describe(cmd)))
		return m.run("act", func(ctx context.Context) error {
			return m.ctrl.SubmitPlayerAction(ctx, cmd.Action, cmd.Amount)
		})
	}
	return nil
}

func (m *TUIModel) run(op string, fn func(context.Context) error) tea.Cmd {
	ctx := m.opts.Ctx
	return func() tea.Msg {
		return doneMsg{op: op, err: fn(ctx)}
	}
}

// View renders the TUI
func (m *TUIModel) View() string {
	if m.quitting {
		return ""
	}
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	actionContent := m.renderActionPane()
	actionHeight := lipgloss.Height(actionContent)
	actionPane := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(feltLight).
		Width(max(m.width-2, 1)).
		Render(actionContent)

	sidebarContent := m.renderSidebarPane()
	sidebarWidth := max(lipgloss.Width(sidebarContent), 30)
	paneHeight := max(m.height-actionHeight-4, 1)
	sidebarPane := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(rail).
		Width(sidebarWidth).
		Height(paneHeight).
		Render(sidebarContent)

	logWidth := max(m.width-sidebarWidth-4, 1)
	m.logViewport.Width = logWidth
	m.logViewport.Height = paneHeight
	m.logViewport.SetContent(strings.Join(m.gameLog, "\n"))
	if !m.initialized && logWidth > 1 && paneHeight > 1 {
		m.logViewport.GotoBottom()
		m.initialized = true
	}
	logStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(rail).
		Width(logWidth).
		Height(paneHeight)
	if m.focusedPane == 0 {
		logStyle = logStyle.BorderForeground(feltLight)
	}
	logPane := logStyle.Render(m.logViewport.View())

	topRow := lipgloss.JoinHorizontal(lipgloss.Top, logPane, sidebarPane)
	return lipgloss.JoinVertical(lipgloss.Top, topRow, actionPane)
}

// renderSidebarPane shows the table: pot, board and every seat
func (m *TUIModel) renderSidebarPane() string {
	if m.snap == nil {
		return mutedText.Render("No game. Type new to start one.")
	}
	s := m.snap
	var b strings.Builder

	b.WriteString(chipText.Render(fmt.Sprintf("Pot: $%d", s.TotalPot)))
	if s.CurrentBet > 0 {
		b.WriteString(" | ")
		b.WriteString(chipText.Render(fmt.Sprintf("Bet: $%d", s.CurrentBet)))
	}
	b.WriteString("\n")
	b.WriteString(mutedText.Render(strings.ToUpper(string(s.GameStage))))
	b.WriteString(" ")
	b.WriteString(formatCards(s.CommunityCards))
	b.WriteString("\n\n")

	for i, p := range s.Players {
		marker := "  "
		if s.InHand() && i == s.CurrentPlayerIdx {
			marker = actorArrow.Render("▶ ")
		}
		name := p.Name
		if i == s.ButtonPosition {
			name += " (D)"
		}
		line := fmt.Sprintf("%s%-16s $%d", marker, name, p.Chips)
		if p.CurrentStreetContribution > 0 {
			line += fmt.Sprintf(" in $%d", p.CurrentStreetContribution)
		}
		switch {
		case p.Folded():
			line = mutedText.Render(line + " folded")
		case p.IsAllIn:
			line += chipText.Render(" all in")
		}
		b.WriteString(line)
		if len(p.PocketCards) > 0 {
			b.WriteString(" " + formatCards(p.PocketCards))
		}
		b.WriteString("\n")
	}
	return b.String()
}

// renderActionPane renders narration, banners, the human's options and the input
func (m *TUIModel) renderActionPane() string {
	var b strings.Builder

	if m.outcome != nil {
		b.WriteString(renderOutcome(*m.outcome))
		b.WriteString("\n")
	}
	if n := m.narration; n != nil {
		b.WriteString(speechBubble.Render(fmt.Sprintf("%s: %s", speaker(n, m.snap), n.Text)))
		b.WriteString("\n")
	}
	if m.lastHand != nil {
		b.WriteString(resultBanner.Render(handSummary(m.lastHand)))
		b.WriteString("\n")
	}
	switch {
	case m.countdown > 0 && m.phase == session.PhaseGameContinues:
		b.WriteString(mutedText.Render(fmt.Sprintf("Next hand in %ds", m.countdown)))
		b.WriteString("\n")
	case m.countdown > 0 && m.phase.Terminal():
		b.WriteString(mutedText.Render(fmt.Sprintf("Results in %ds", m.countdown)))
		b.WriteString("\n")
	}

	if m.snap.InHand() && m.snap.IsHumanTurn() {
		human := m.snap.Human()
		b.WriteString(holeCards.Render(fmt.Sprintf("Hand: %s  Pot: $%d", formatCards(human.PocketCards), m.snap.TotalPot)))
		b.WriteString("\n")
		b.WriteString(m.renderAvailableActions(human))
		b.WriteString("\n")
	} else if m.busy {
		b.WriteString(holeCards.Render("Waiting..."))
		b.WriteString("\n")
	}

	if m.advice != "" {
		b.WriteString(coachText.Render("Coach: " + m.advice))
		b.WriteString("\n")
	}
	if m.errText != "" {
		b.WriteString(alertText.Render(m.errText))
		b.WriteString("\n")
	}

	b.WriteString(m.actionInput.View())
	b.WriteString("\n")
	if m.focusedPane == 0 {
		b.WriteString(mutedText.Render("Log focused: ↑↓ scroll, Tab to input"))
	} else {
		b.WriteString(mutedText.Render("Tab to scroll log • Enter to submit • help for commands • Ctrl+C to quit"))
	}
	return b.String()
}

// renderAvailableActions lists what the service offers, with sizes
func (m *TUIModel) renderAvailableActions(human *game.Player) string {
	var actions []string
	for _, a := range human.AvailableActions {
		switch a {
		case game.ActionFold:
			actions = append(actions, alertText.Render("[fold]"))
		case game.ActionCheck:
			actions = append(actions, passive.Render("[check]"))
		case game.ActionCall:
			actions = append(actions, passive.Render(fmt.Sprintf("[call $%d]", human.CallAmount)))
		case game.ActionBet, game.ActionRaise:
			lo, hi := session.BetBounds(m.snap, a)
			if lo > hi {
				continue
			}
			actions = append(actions, chipText.Render(fmt.Sprintf("[%s $%d-$%d]", a, lo, hi)))
		}
	}
	if len(actions) == 0 {
		actions = append(actions, alertText.Render("[no actions available]"))
	}
	line := actionBar.Render("Actions: " + strings.Join(actions, " "))

	if presets := Presets(m.snap); len(presets) > 0 {
		var sizes []string
		for _, p := range presets {
			sizes = append(sizes, fmt.Sprintf("%s $%d", p.Name, p.Amount))
		}
		line += "\n" + mutedText.Render("Sizes: "+strings.Join(sizes, " · "))
	}
	return line
}

func renderOutcome(o session.Outcome) string {
	title := "You're out of chips"
	if o.Phase == session.PhaseGameEndedWon {
		title = "You won the table!"
	}
	s := o.Stats
	return resultBanner.Render(fmt.Sprintf(
		"%s\nHands played: %d  Hands won: %d\nChips: $%d → $%d\nType new to play again or quit to leave",
		title, s.HandsPlayed, s.HandsWon, s.StartingChips, s.FinalChips))
}

func handSummary(h *session.HandResult) string {
	who := h.Winner.Name
	if h.HumanWon {
		who = "You"
	}
	verb := "wins"
	if h.HumanWon {
		verb = "win"
	}
	sign := "+"
	if h.ChipDelta < 0 {
		sign = "-"
	}
	return fmt.Sprintf("%s %s the hand (%s$%d)", who, verb, sign, abs(h.ChipDelta))
}

func describe(c Command) string {
	if c.Action.NeedsAmount() {
		return fmt.Sprintf("%s $%d", c.Action, c.Amount)
	}
	return string(c.Action)
}

func speaker(n *game.Narration, snap *game.GameSnapshot) string {
	if n.ActorName != "" {
		return n.ActorName
	}
	if snap != nil && n.ActorIndex >= 0 && n.ActorIndex < len(snap.Players) {
		return snap.Players[n.ActorIndex].Name
	}
	return "Table"
}

// formatCards formats cards with colors
func formatCards(cards []game.Card) string {
	if len(cards) == 0 {
		return ""
	}
	var formatted []string
	for _, c := range cards {
		if c.IsRed() {
			formatted = append(formatted, redSuit.Render(string(c)))
		} else {
			formatted = append(formatted, blackSuit.Render(string(c)))
		}
	}
	return "[" + strings.Join(formatted, " ") + "]"
}

// AddLogEntry adds an entry to the game log
func (m *TUIModel) AddLogEntry(entry string) {
	m.gameLog = append(m.gameLog, entry)
	m.logViewport.SetContent(strings.Join(m.gameLog, "\n"))
	if m.logViewport.Height > 0 && m.logViewport.Width > 0 {
		m.logViewport.GotoBottom()
	}
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
