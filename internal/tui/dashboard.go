package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"trading-agent/internal/service"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const runTimeout = 2 * time.Minute

// Dashboard message types.
type snapshotMsg struct {
	snap service.Snapshot
	ok   bool
}
type runDoneMsg struct {
	snap service.Snapshot
	err  error
}
type dashTickMsg time.Time

// DashboardModel shows the latest report and can trigger a run.
type DashboardModel struct {
	services Services
	snap     service.Snapshot
	hasSnap  bool
	running  bool
	err      error
	spinner  spinner.Model
	width    int
	height   int
}

// NewDashboardModel creates a new dashboard model.
func NewDashboardModel(svc Services) DashboardModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(SpinnerColor)
	return DashboardModel{
		services: svc,
		spinner:  sp,
	}
}

// Init fires the initial fetch and starts the refresh tick.
func (m DashboardModel) Init() tea.Cmd {
	return tea.Batch(
		m.fetchLatestCmd(),
		m.tickCmd(),
	)
}

// Update handles incoming messages.
func (m DashboardModel) Update(msg tea.Msg) (DashboardModel, tea.Cmd) {
	switch msg := msg.(type) {
	case snapshotMsg:
		if msg.ok {
			m.snap = msg.snap
			m.hasSnap = true
		}
		return m, nil

	case runDoneMsg:
		m.running = false
		m.err = msg.err
		if msg.snap.Report != nil {
			m.snap = msg.snap
			m.hasSnap = true
		}
		return m, nil

	case dashTickMsg:
		return m, tea.Batch(
			m.fetchLatestCmd(),
			m.tickCmd(),
		)

	case spinner.TickMsg:
		if m.running {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			return m, cmd
		}
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Run):
			if m.running || m.services.Reports == nil {
				return m, nil
			}
			m.running = true
			m.err = nil
			return m, tea.Batch(m.runCmd(), m.spinner.Tick)
		case key.Matches(msg, keys.Refresh):
			return m, m.fetchLatestCmd()
		}
	}

	return m, nil
}

// View renders the dashboard.
func (m DashboardModel) View() string {
	if m.services.Reports == nil {
		return ErrorStyle.Render("Agent not available")
	}

	var sections []string
	sections = append(sections, m.renderStatus())

	if !m.hasSnap {
		sections = append(sections, SubtextStyle.Render("  No report yet. Press a to analyze now."))
		return lipgloss.JoinVertical(lipgloss.Left, sections...)
	}

	width := m.width - 2
	if width < 40 {
		width = 40
	}
	sections = append(sections, BorderStyle.Width(width).Render(m.renderSummary()))
	sections = append(sections, BorderStyle.Width(width).Render(m.snap.Block))
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// SetSize updates the model dimensions.
func (m *DashboardModel) SetSize(w, h int) {
	m.width = w
	m.height = h
}

// Snapshot returns the displayed snapshot (for testing).
func (m DashboardModel) Snapshot() (service.Snapshot, bool) { return m.snap, m.hasSnap }

// IsRunning reports whether an analysis is in flight (for testing).
func (m DashboardModel) IsRunning() bool { return m.running }

func (m DashboardModel) renderStatus() string {
	help := helpLine(keys.Run, keys.Refresh, keys.Quit)
	switch {
	case m.running:
		return fmt.Sprintf("  %s Analyzing...", m.spinner.View())
	case m.err != nil:
		return ErrorStyle.Render(fmt.Sprintf("  Last run failed: %v", m.err)) + "\n" + help
	default:
		return help
	}
}

func (m DashboardModel) renderSummary() string {
	r := m.snap.Report
	var lines []string
	lines = append(lines, HeaderStyle.Render("  "+m.snap.Subject))
	if r == nil {
		return strings.Join(lines, "\n")
	}
	lines = append(lines, fmt.Sprintf("  Side        %s", FormatSide(r.Side)))
	lines = append(lines, fmt.Sprintf("  Confidence  %s", RenderConfidenceBar(r.Confidence, 20)))
	lines = append(lines, fmt.Sprintf("  Entry %s  SL %s  TP %s", formatPrice(r.Entry), formatPrice(r.SL), formatPrice(r.TP)))
	if r.AnomalyScore > 0 {
		lines = append(lines, fmt.Sprintf("  Anomaly     %.2f", r.AnomalyScore))
	}
	if !r.GeneratedAt.IsZero() {
		lines = append(lines, SubtextStyle.Render("  Generated "+r.GeneratedAt.UTC().Format(time.DateTime)+" UTC"))
	}
	return strings.Join(lines, "\n")
}

func (m DashboardModel) fetchLatestCmd() tea.Cmd {
	return func() tea.Msg {
		if m.services.Reports == nil {
			return snapshotMsg{}
		}
		snap, ok := m.services.Reports.Latest()
		return snapshotMsg{snap: snap, ok: ok}
	}
}

func (m DashboardModel) runCmd() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
		defer cancel()
		snap, err := m.services.Reports.AnalyzeOnce(ctx, service.RunOptions{})
		return runDoneMsg{snap: snap, err: err}
	}
}

func (m DashboardModel) tickCmd() tea.Cmd {
	return tea.Tick(10*time.Second, func(t time.Time) tea.Msg {
		return dashTickMsg(t)
	})
}
