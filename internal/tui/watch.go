// Package tui provides terminal user interface components for slipway
package tui

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/slipway-build/slipway/internal/lifecycle"
)

// Styles
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39")).
			MarginBottom(1)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			MarginTop(1)

	runningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")).
			Bold(true)

	expiredStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")).
			Bold(true)

	absentStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	urlStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")).
			Underline(true)

	errStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))
)

// statusMsg carries the result of one status poll.
type statusMsg struct {
	status *lifecycle.Status
	err    error
}

// pollTickMsg schedules the next poll.
type pollTickMsg time.Time

// WatchModel is the bubbletea model for live sandbox status.
type WatchModel struct {
	mgr       *lifecycle.Manager
	projectID string
	ownerID   string
	interval  time.Duration

	spinner  spinner.Model
	status   *lifecycle.Status
	err      error
	polls    int
	lastPoll time.Time
	quitting bool
}

// NewWatch creates a status watch model for one project.
func NewWatch(mgr *lifecycle.Manager, projectID, ownerID string, interval time.Duration) WatchModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))

	return WatchModel{
		mgr:       mgr,
		projectID: projectID,
		ownerID:   ownerID,
		interval:  interval,
		spinner:   sp,
	}
}

func (m WatchModel) poll() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		status, err := m.mgr.GetStatus(ctx, m.projectID, m.ownerID)
		return statusMsg{status: status, err: err}
	}
}

func (m WatchModel) nextTick() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg {
		return pollTickMsg(t)
	})
}

func (m WatchModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.poll())
}

func (m WatchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		}

	case statusMsg:
		m.status = msg.status
		m.err = msg.err
		m.polls++
		m.lastPoll = time.Now()
		return m, m.nextTick()

	case pollTickMsg:
		return m, m.poll()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m WatchModel) View() string {
	if m.quitting {
		return ""
	}

	title := titleStyle.Render(fmt.Sprintf("Slipway - %s", m.projectID))
	help := helpStyle.Render("[q] Quit")

	if m.polls == 0 {
		return title + "\n" + m.spinner.View() + " checking sandbox...\n" + help
	}

	var body string
	switch {
	case m.err != nil:
		body = errStyle.Render("✗ " + m.err.Error())
	case m.status.State == lifecycle.StatusRunning:
		body = fmt.Sprintf("%s  %s\n%s\n%s",
			runningStyle.Render("● running"),
			fmt.Sprintf("%dm remaining", m.status.RemainingMinutes),
			urlStyle.Render(m.status.PreviewURL),
			absentStyle.Render("sandbox "+m.status.SandboxID),
		)
	case m.status.State == lifecycle.StatusExpired:
		body = expiredStyle.Render("● expired") + "\n" +
			absentStyle.Render("run `slipway sync` to provision a new sandbox")
	default:
		body = absentStyle.Render("○ no sandbox") + "\n" +
			absentStyle.Render("run `slipway sync` to provision one")
	}

	footer := absentStyle.Render(fmt.Sprintf("last checked %s", m.lastPoll.Format("15:04:05")))
	return title + "\n" + body + "\n" + footer + "\n" + help
}

// RunWatch runs the interactive status watcher until the user quits.
func RunWatch(mgr *lifecycle.Manager, projectID, ownerID string, interval time.Duration) error {
	m := NewWatch(mgr, projectID, ownerID, interval)
	p := tea.NewProgram(m)
	_, err := p.Run()
	return err
}
