package tui

import (
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/balkashynov/champ/internal/models"
	"github.com/balkashynov/champ/internal/parser"
)

// TimerModel is the full-screen clock shown while a session runs
type TimerModel struct {
	width, height int

	session models.Session
	user    models.User
	now     func() time.Time
	elapsed time.Duration
	frame   int // index into stopwatchFrames

	stopping bool // s pressed: stop and save after the program exits
	leaving  bool // esc/q pressed: exit and keep the session running
}

// timerTickMsg is sent every second to advance running clocks
type timerTickMsg struct{}

// frameTickMsg flips the header stopwatch glyph
type frameTickMsg struct{}

var stopwatchFrames = []string{"⏱", "⏲"}

// NewTimerModel creates the clock for session owned by user
func NewTimerModel(session models.Session, user models.User) TimerModel {
	return TimerModel{
		session: session,
		user:    user,
		now:     time.Now,
		elapsed: session.Elapsed(time.Now()),
	}
}

func (m TimerModel) Init() tea.Cmd {
	return tea.Batch(timerTick(), frameTick())
}

func timerTick() tea.Cmd {
	return tea.Tick(time.Second, func(time.Time) tea.Msg { return timerTickMsg{} })
}

func frameTick() tea.Cmd {
	return tea.Tick(500*time.Millisecond, func(time.Time) tea.Msg { return frameTickMsg{} })
}

func (m TimerModel) done() bool {
	return m.stopping || m.leaving
}

func (m TimerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case timerTickMsg:
		// Display only; the stored duration is computed by the Manager on stop
		m.elapsed = m.session.Elapsed(m.now())
		if m.done() {
			return m, nil
		}
		return m, timerTick()

	case frameTickMsg:
		m.frame = (m.frame + 1) % len(stopwatchFrames)
		if m.done() {
			return m, nil
		}
		return m, frameTick()

	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "s", "S":
			m.stopping = true
			return m, tea.Quit
		case "ctrl+c", "esc", "q":
			m.leaving = true
			return m, tea.Quit
		}
	}
	return m, nil
}

// Stopping reports whether the user asked to stop the session
func (m TimerModel) Stopping() bool {
	return m.stopping
}

func (m TimerModel) View() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}
	help := hint(m.width, "s stop & save · esc/q exit (keep running) · ctrl+c force quit")
	bodyHeight := m.height - 2

	if m.width < 90 {
		return lipgloss.JoinVertical(lipgloss.Left, m.clockPanel(m.width, bodyHeight), help)
	}

	half := m.width / 2
	body := lipgloss.JoinHorizontal(lipgloss.Top,
		m.clockPanel(half, bodyHeight),
		"  ",
		m.weekPanel(m.width-half-2, bodyHeight),
	)
	return lipgloss.JoinVertical(lipgloss.Left, body, help)
}

func (m TimerModel) clockPanel(width, height int) string {
	glyph := stopwatchFrames[m.frame]
	lines := []string{
		centered(width, ColorAccentBright).Bold(true).Render(glyph + "  SESSION RUNNING  " + glyph),
		centered(width, ColorPrimaryText).Bold(true).Render(displayName(m.user)),
		centerLines(renderBigClock(m.elapsed, ColorAccentBright), width),
		centered(width, ColorSecondaryText).Italic(true).
			Render("Started at " + m.session.StartTime.Local().Format("15:04:05")),
	}
	return lipgloss.NewStyle().Width(width).Height(height).Align(lipgloss.Center, lipgloss.Center).
		Render(strings.Join(lines, "\n\n"))
}

// weekPanel shows the user's banked weekly total and what this session adds
func (m TimerModel) weekPanel(width, height int) string {
	inner := width - 8
	banked := time.Duration(m.user.WeeklyTotal) * time.Second
	stat := func(label string, d time.Duration, color string) string {
		value := lipgloss.NewStyle().Foreground(lipgloss.Color(color)).Bold(true).Render(parser.FormatClock(d))
		return lipgloss.NewStyle().Width(inner).Align(lipgloss.Center).Render(label + value)
	}

	rows := []string{
		"",
		centered(inner, ColorGold).Bold(true).Render(strings.Join(logoLines, "\n")),
		"",
		centered(inner, ColorBorder).Render(strings.Repeat("─", max(0, min(width-12, 40)))),
		"",
		stat("📊 This week: ", banked, ColorPrimaryText),
		stat("➕ With this session: ", banked+m.elapsed, ColorAccentBright),
		stat("🏁 Session: ", m.elapsed, ColorSuccess),
	}
	return lipgloss.NewStyle().Height(height).Render(strings.Join(rows, "\n"))
}

// centered is a width-filling, centered style in color
func centered(width int, color string) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(color)).Align(lipgloss.Center).Width(width)
}

// hint renders the bottom key help line
func hint(width int, text string) string {
	return centered(width, ColorHelpText).Italic(true).Render(text)
}

var logoLines = []string{
	" ██████╗██╗  ██╗ █████╗ ███╗   ███╗██████╗ ",
	"██╔════╝██║  ██║██╔══██╗████╗ ████║██╔══██╗",
	"██║     ███████║███████║██╔████╔██║██████╔╝",
	"██║     ██╔══██║██╔══██║██║╚██╔╝██║██╔═══╝ ",
	"╚██████╗██║  ██║██║  ██║██║ ╚═╝ ██║██║     ",
	" ╚═════╝╚═╝  ╚═╝╚═╝  ╚═╝╚═╝     ╚═╝╚═╝     ",
}

// displayName renders a user as "avatar name"
func displayName(u models.User) string {
	if u.Avatar == "" {
		return u.Name
	}
	return u.Avatar + " " + u.Name
}
