package tui

import (
	"trading-agent/internal/domain"

	"github.com/charmbracelet/lipgloss"
)

// Palette. Bull and bear follow chart candle colors.
const (
	colorText   = lipgloss.Color("#E6E6E6")
	colorMuted  = lipgloss.Color("#7A7A7A")
	colorFrame  = lipgloss.Color("#4A4A4A")
	colorAccent = lipgloss.Color("#2E86DE")
	colorBull   = lipgloss.Color("#26A69A")
	colorBear   = lipgloss.Color("#EF5350")
	colorWait   = lipgloss.Color("#F5B041")
)

var (
	TabStyle         = lipgloss.NewStyle().Padding(0, 2)
	ActiveTabStyle   = TabStyle.Bold(true).Foreground(colorText).Background(colorAccent)
	InactiveTabStyle = TabStyle.Foreground(colorMuted)

	HeaderStyle  = lipgloss.NewStyle().Bold(true).Foreground(colorText)
	SubtextStyle = lipgloss.NewStyle().Foreground(colorMuted)
	BorderStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(colorFrame)
	ErrorStyle   = lipgloss.NewStyle().Foreground(colorBear)
	SpinnerColor = colorAccent

	TypeEventStyle = lipgloss.NewStyle().Foreground(colorAccent).Bold(true)
	TypeErrorStyle = ErrorStyle.Bold(true)
)

func sideStyle(side domain.Side) lipgloss.Style {
	switch side {
	case domain.SideBuy:
		return lipgloss.NewStyle().Foreground(colorBull).Bold(true)
	case domain.SideSell:
		return lipgloss.NewStyle().Foreground(colorBear).Bold(true)
	default:
		return lipgloss.NewStyle().Foreground(colorWait)
	}
}

// confidenceStyle buckets at the 50 and 70 marks used by the signal scorer.
func confidenceStyle(confidence int) lipgloss.Style {
	switch {
	case confidence >= 70:
		return lipgloss.NewStyle().Foreground(colorBull)
	case confidence >= 50:
		return lipgloss.NewStyle().Foreground(colorWait)
	default:
		return lipgloss.NewStyle().Foreground(colorBear)
	}
}
