package tui

import (
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Tab selects the screen shown below the tab bar.
type Tab int

const (
	TabDashboard Tab = iota
	TabHistory
	tabCount
)

func (t Tab) title() string {
	switch t {
	case TabDashboard:
		return "Report"
	case TabHistory:
		return "History"
	}
	return "?"
}

// AppModel owns the report and history screens and routes input to the one
// in front. Results of background commands always reach their screen.
type AppModel struct {
	activeTab Tab
	dashboard DashboardModel
	history   HistoryModel
	width     int
	height    int
	quitting  bool
}

func NewAppModel(svc Services) AppModel {
	return AppModel{
		activeTab: TabDashboard,
		dashboard: NewDashboardModel(svc),
		history:   NewHistoryModel(svc),
	}
}

func (m AppModel) Init() tea.Cmd {
	return tea.Batch(m.dashboard.Init(), m.history.Init())
}

func (m AppModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if size, ok := msg.(tea.WindowSizeMsg); ok {
		m.SetSize(size.Width, size.Height)
		return m, nil
	}
	if k, ok := msg.(tea.KeyMsg); ok {
		if next, handled, quit := m.navigate(k); handled {
			m.activeTab = next
			if quit {
				m.quitting = true
				return m, tea.Quit
			}
			return m, nil
		}
	}

	var cmd tea.Cmd
	switch msg.(type) {
	case snapshotMsg, runDoneMsg, dashTickMsg:
		m.dashboard, cmd = m.dashboard.Update(msg)
	case historyMsg, historyErrMsg:
		m.history, cmd = m.history.Update(msg)
	default:
		if m.activeTab == TabHistory {
			m.history, cmd = m.history.Update(msg)
		} else {
			m.dashboard, cmd = m.dashboard.Update(msg)
		}
	}
	return m, cmd
}

// navigate handles the global keys. Digits jump straight to a tab.
func (m AppModel) navigate(k tea.KeyMsg) (next Tab, handled, quit bool) {
	switch {
	case key.Matches(k, keys.Quit):
		return m.activeTab, true, true
	case key.Matches(k, keys.Next):
		return (m.activeTab + 1) % tabCount, true, false
	case key.Matches(k, keys.Prev):
		return (m.activeTab + tabCount - 1) % tabCount, true, false
	}
	if n, err := strconv.Atoi(k.String()); err == nil && n >= 1 && n <= int(tabCount) {
		return Tab(n - 1), true, false
	}
	return m.activeTab, false, false
}

func (m AppModel) View() string {
	if m.quitting {
		return "Bye.\n"
	}
	body := m.dashboard.View()
	if m.activeTab == TabHistory {
		body = m.history.View()
	}
	return lipgloss.JoinVertical(lipgloss.Left, m.tabBar(), body)
}

func (m *AppModel) SetSize(w, h int) {
	m.width, m.height = w, h
	// one line for the tab bar, one for spacing
	m.dashboard.SetSize(w, h-2)
	m.history.SetSize(w, h-2)
}

func (m AppModel) ActiveTab() Tab { return m.activeTab }

func (m AppModel) tabBar() string {
	parts := make([]string, 0, tabCount)
	for t := Tab(0); t < tabCount; t++ {
		label := strconv.Itoa(int(t)+1) + ":" + t.title()
		style := InactiveTabStyle
		if t == m.activeTab {
			style = ActiveTabStyle
		}
		parts = append(parts, style.Render(label))
	}
	return strings.Join(parts, "")
}

// Run blocks until the user quits.
func Run(svc Services) error {
	_, err := tea.NewProgram(NewAppModel(svc), tea.WithAltScreen()).Run()
	return err
}
