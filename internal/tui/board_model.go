package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/balkashynov/champ/internal/achievements"
	"github.com/balkashynov/champ/internal/models"
	"github.com/balkashynov/champ/internal/parser"
	"github.com/balkashynov/champ/internal/reconcile"
	"github.com/balkashynov/champ/internal/session"
)

// Controller starts and stops sessions for the board
type Controller interface {
	Start(ctx context.Context, userID string) (models.Session, error)
	Stop(ctx context.Context, userID string) (session.StopResult, error)
}

// viewMsg carries a new reconciled view into the program
type viewMsg reconcile.View

// shimmerTickMsg advances the champion banner animation
type shimmerTickMsg struct{}

// toggleDoneMsg reports the outcome of a start or stop
type toggleDoneMsg struct {
	started bool
	result  session.StopResult
	err     error
}

// BoardModel is the live leaderboard screen
type BoardModel struct {
	width  int
	height int

	self    models.User
	ctrl    Controller
	catalog *achievements.Catalog
	now     func() time.Time

	view    reconcile.View
	spinner spinner.Model
	shimmer *Shimmer

	busy   bool   // a start or stop is in flight
	status string // outcome of the last start or stop
	err    error
	warn   bool // the last stop saved but achievements were not checked
}

// NewBoardModel creates the board for self
func NewBoardModel(ctrl Controller, self models.User, catalog *achievements.Catalog) BoardModel {
	sp := spinner.New(
		spinner.WithSpinner(spinner.Dot),
		spinner.WithStyle(lipgloss.NewStyle().Foreground(lipgloss.Color(ColorSuccess))),
	)
	return BoardModel{
		self:    self,
		ctrl:    ctrl,
		catalog: catalog,
		now:     time.Now,
		spinner: sp,
		shimmer: NewShimmer(DefaultShimmerConfig()),
	}
}

// Init starts the spinner and the clock
func (m BoardModel) Init() tea.Cmd {
	cmds := []tea.Cmd{m.spinner.Tick, timerTick()}
	if m.shimmer.Active() {
		cmds = append(cmds, m.shimmerTick())
	}
	return tea.Batch(cmds...)
}

func (m BoardModel) shimmerTick() tea.Cmd {
	return tea.Tick(m.shimmer.Interval(), func(time.Time) tea.Msg {
		return shimmerTickMsg{}
	})
}

// Update handles messages
func (m BoardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case viewMsg:
		m.view = reconcile.View(msg)
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case timerTickMsg:
		// Re-render so running clocks advance
		return m, timerTick()

	case shimmerTickMsg:
		m.shimmer.Advance(m.now(), len([]rune(m.bannerText())))
		return m, m.shimmerTick()

	case toggleDoneMsg:
		m.busy = false
		m.err = msg.err
		m.warn = msg.err == nil && msg.result.EvaluationErr != nil
		m.status = m.describe(msg)
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "s", "S":
			if m.busy || !m.view.Ready {
				return m, nil
			}
			m.busy = true
			m.err = nil
			return m, m.toggle()
		case "ctrl+c", "esc", "q":
			return m, tea.Quit
		}
	}
	return m, nil
}

// toggle stops the running session or starts a new one
func (m BoardModel) toggle() tea.Cmd {
	ctrl, userID := m.ctrl, m.self.ID
	running := m.view.CurrentSession != nil

	return func() tea.Msg {
		ctx := context.Background()
		if running {
			res, err := ctrl.Stop(ctx, userID)
			return toggleDoneMsg{result: res, err: err}
		}
		_, err := ctrl.Start(ctx, userID)
		return toggleDoneMsg{started: true, err: err}
	}
}

func (m BoardModel) describe(msg toggleDoneMsg) string {
	switch {
	case msg.err != nil:
		return "❌ " + msg.err.Error()
	case msg.started:
		return "⏱️  Session started"
	}

	line := fmt.Sprintf("⏹️  Saved %s", parser.FormatSeconds(msg.result.Session.DurationSeconds))
	if names := achievementNames(m.catalog, msg.result.Unlocked); len(names) > 0 {
		line += " · 🏅 " + strings.Join(names, ", ")
	}
	if msg.result.EvaluationErr != nil {
		line += " · ⚠️  achievements not checked"
	}
	return line
}

func (m BoardModel) bannerText() string {
	if m.view.Champion == nil {
		return "No champion yet this week"
	}
	c := m.view.Champion
	name := c.Name
	if c.Avatar != "" {
		name = c.Avatar + " " + name
	}
	return fmt.Sprintf("👑 %s · %s", name, parser.FormatSeconds(c.WeeklyTotal))
}

// View renders the board
func (m BoardModel) View() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}
	if !m.view.Ready {
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center,
			m.spinner.View()+" syncing…")
	}

	helpBar := m.renderHelpBar()
	contentHeight := m.height - 2

	if m.width < 90 {
		return lipgloss.JoinVertical(lipgloss.Left,
			m.renderBanner(m.width),
			m.renderLeaderboard(m.width),
			m.renderOwnSession(m.width),
			m.renderStatus(m.width),
			helpBar,
		)
	}

	leftWidth := m.width / 2
	rightWidth := m.width - leftWidth - 2

	left := lipgloss.NewStyle().Width(leftWidth).Height(contentHeight).Align(lipgloss.Center, lipgloss.Center).
		Render(lipgloss.JoinVertical(lipgloss.Center, m.renderOwnSession(leftWidth), "", m.renderStatus(leftWidth)))
	right := lipgloss.NewStyle().Width(rightWidth).Height(contentHeight).
		Render(lipgloss.JoinVertical(lipgloss.Left, m.renderBanner(rightWidth), "", m.renderLeaderboard(rightWidth)))

	return lipgloss.JoinVertical(lipgloss.Left,
		lipgloss.JoinHorizontal(lipgloss.Top, left, "  ", right),
		helpBar,
	)
}

func (m BoardModel) renderBanner(width int) string {
	style := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(ColorGold)).
		Align(lipgloss.Center).
		Width(max(0, width-4)).
		Padding(0, 1)

	text := m.bannerText()
	if m.view.Champion != nil {
		text = m.shimmer.Render(text, rgbGold, rgbGoldLight)
	}
	reset := lipgloss.NewStyle().Foreground(lipgloss.Color(ColorSecondaryText)).Italic(true).
		Render("week " + parser.FormatResetIn(m.view.DaysUntilReset))

	return style.Render(text + "\n" + reset)
}

func (m BoardModel) renderLeaderboard(width int) string {
	var b strings.Builder

	title := lipgloss.NewStyle().Foreground(lipgloss.Color(ColorAccentMain)).Bold(true)
	b.WriteString(title.Render("🏆 LEADERBOARD"))
	b.WriteString("\n\n")

	if len(m.view.Leaderboard) == 0 {
		b.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color(ColorDisabledText)).
			Render("Nobody has joined yet. Try 'champ join <name>'."))
		return b.String()
	}

	now := m.now()
	for _, e := range m.view.Leaderboard {
		rankColor := ColorSecondaryText
		switch e.Rank {
		case 1:
			rankColor = ColorGold
		case 2:
			rankColor = ColorSilver
		case 3:
			rankColor = ColorBronze
		}
		rank := lipgloss.NewStyle().Foreground(lipgloss.Color(rankColor)).Bold(true).Width(4).
			Render(fmt.Sprintf("%d.", e.Rank))

		nameColor := ColorPrimaryText
		if e.UserID == m.self.ID {
			nameColor = ColorAccentBright
		}
		name := e.Name
		if e.Avatar != "" {
			name = e.Avatar + " " + name
		}
		nameCol := lipgloss.NewStyle().Foreground(lipgloss.Color(nameColor)).Width(max(10, width-30)).Render(name)
		total := lipgloss.NewStyle().Foreground(lipgloss.Color(ColorPrimaryText)).Width(10).Align(lipgloss.Right).
			Render(parser.FormatSeconds(e.WeeklyTotal))

		live := ""
		for _, s := range m.view.Active {
			if s.UserID == e.UserID {
				live = " " + m.spinner.View() + lipgloss.NewStyle().Foreground(lipgloss.Color(ColorSuccess)).
					Render(" "+parser.FormatClock(s.Elapsed(now)))
				break
			}
		}

		b.WriteString(rank + nameCol + total + live + "\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m BoardModel) renderOwnSession(width int) string {
	muted := lipgloss.NewStyle().Foreground(lipgloss.Color(ColorSecondaryText)).Align(lipgloss.Center).Width(width)

	clock := centerLines(renderBigClock(0, ColorDisabledText), width)
	caption := "Idle · press s to start"
	if cur := m.view.CurrentSession; cur != nil {
		clock = centerLines(renderBigClock(cur.Elapsed(m.now()), ColorAccentBright), width)
		caption = "Running since " + cur.StartTime.Local().Format("15:04:05") + " · press s to stop"
	}

	lines := []string{clock, "", muted.Render(caption)}
	if u, ok := m.view.User(m.self.ID); ok {
		lines = append(lines, muted.Render("This week: "+parser.FormatSeconds(u.WeeklyTotal)))
	}
	if badges := m.badges(); badges != "" {
		lines = append(lines, "", lipgloss.NewStyle().Align(lipgloss.Center).Width(width).Render(badges))
	}
	return lipgloss.JoinVertical(lipgloss.Center, lines...)
}

// badges shows one emoji per catalog entry, a lock for those not yet held
func (m BoardModel) badges() string {
	var b strings.Builder
	for i, a := range m.view.Achievements {
		if i > 0 {
			b.WriteString(" ")
		}
		if m.view.HasUnlocked(a.ID) {
			b.WriteString(a.Emoji)
		} else {
			b.WriteString("🔒")
		}
	}
	return b.String()
}

func (m BoardModel) renderStatus(width int) string {
	if m.busy {
		return lipgloss.NewStyle().Width(width).Align(lipgloss.Center).Render(m.spinner.View() + " saving…")
	}
	color := ColorSuccess
	switch {
	case m.err != nil:
		color = ColorError
	case m.warn:
		color = ColorWarning
	}
	return lipgloss.NewStyle().Foreground(lipgloss.Color(color)).Width(width).Align(lipgloss.Center).Render(m.status)
}

func (m BoardModel) renderHelpBar() string {
	return hint(m.width, "s start/stop · q/esc quit")
}

// achievementNames maps ids to "emoji name" using the catalog
func achievementNames(cat *achievements.Catalog, ids []string) []string {
	names := make([]string, 0, len(ids))
	for _, id := range ids {
		name := id
		if cat != nil {
			if a, ok := cat.Lookup(id); ok {
				name = strings.TrimSpace(a.Emoji + " " + a.Name)
			}
		}
		names = append(names, name)
	}
	return names
}
