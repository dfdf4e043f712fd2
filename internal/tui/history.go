package tui

import (
	"context"
	"fmt"
	"strings"

	"trading-agent/internal/domain"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
)

const historyLimit = 20

type historyMsg []domain.Report
type historyErrMsg struct{ err error }

// HistoryModel lists stored reports.
type HistoryModel struct {
	services Services
	reports  []domain.Report
	loading  bool
	err      error
	width    int
	height   int
}

func NewHistoryModel(svc Services) HistoryModel {
	return HistoryModel{services: svc, loading: true}
}

func (m HistoryModel) Init() tea.Cmd {
	return m.fetchHistoryCmd()
}

func (m HistoryModel) Update(msg tea.Msg) (HistoryModel, tea.Cmd) {
	switch msg := msg.(type) {
	case historyMsg:
		m.reports = []domain.Report(msg)
		m.loading = false
		m.err = nil
		return m, nil

	case historyErrMsg:
		m.err = msg.err
		m.loading = false
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, keys.Refresh) {
			m.loading = true
			return m, m.fetchHistoryCmd()
		}
	}
	return m, nil
}

func (m HistoryModel) View() string {
	var lines []string
	lines = append(lines, HeaderStyle.Render("  Report History"))

	switch {
	case m.loading && len(m.reports) == 0:
		lines = append(lines, SubtextStyle.Render("  Loading reports..."))
	case m.err != nil:
		lines = append(lines, ErrorStyle.Render(fmt.Sprintf("  Error: %v", m.err)))
	case len(m.reports) == 0:
		lines = append(lines, SubtextStyle.Render("  No stored reports"))
	default:
		for _, r := range m.reports {
			lines = append(lines, "  "+FormatReportLine(r))
		}
	}

	width := m.width - 2
	if width < 40 {
		width = 40
	}
	return BorderStyle.Width(width).Render(strings.Join(lines, "\n")) + "\n" + helpLine(keys.Refresh, keys.Next, keys.Quit)
}

func (m *HistoryModel) SetSize(w, h int) {
	m.width = w
	m.height = h
}

// Reports returns the listed reports (for testing).
func (m HistoryModel) Reports() []domain.Report { return m.reports }

func (m HistoryModel) fetchHistoryCmd() tea.Cmd {
	return func() tea.Msg {
		if m.services.History == nil {
			return historyErrMsg{err: fmt.Errorf("report history not available")}
		}
		reports, err := m.services.History.History(context.Background(), historyLimit)
		if err != nil {
			return historyErrMsg{err: err}
		}
		return historyMsg(reports)
	}
}
