package main

import (
	"fmt"
	"io"

	"trading-agent/internal/domain"
	"trading-agent/internal/service"

	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true)
	buyStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42"))
	sellStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
	errorStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("203"))
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	mutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	blockStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)
)

func printSnapshot(w io.Writer, snap service.Snapshot) {
	if snap.Report == nil {
		return
	}
	fmt.Fprintln(w, subjectStyle(snap.Report).Render(snap.Subject))
	fmt.Fprintln(w, blockStyle.Render(snap.Block))
	if snap.Report.ChartPath != "" {
		fmt.Fprintln(w, mutedStyle.Render("chart: "+snap.Report.ChartPath))
	}
}

func subjectStyle(r *domain.Report) lipgloss.Style {
	switch {
	case r.Type == domain.ReportError:
		return errorStyle
	case r.Side == domain.SideBuy:
		return buyStyle
	case r.Side == domain.SideSell:
		return sellStyle
	default:
		return titleStyle
	}
}
