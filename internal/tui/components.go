package tui

import (
	"fmt"
	"math"
	"strings"
	"time"

	"trading-agent/internal/domain"
)

// FormatSide colors a trade side.
func FormatSide(side domain.Side) string {
	if side != domain.SideBuy && side != domain.SideSell {
		side = domain.SideNone
	}
	return sideStyle(side).Render(string(side))
}

// FormatReportLine renders a stored report as a single line.
func FormatReportLine(r domain.Report) string {
	kind := string(r.Type)
	switch r.Type {
	case domain.ReportEvent:
		kind = TypeEventStyle.Render(kind)
	case domain.ReportError:
		kind = TypeErrorStyle.Render(kind)
	}

	if r.Type == domain.ReportError {
		return fmt.Sprintf("#%-5d %s  %-6s  %s",
			r.ID,
			r.GeneratedAt.UTC().Format(time.DateTime),
			kind,
			ErrorStyle.Render(r.Error),
		)
	}
	return fmt.Sprintf("#%-5d %s  %-6s  %s %3d%%  entry %s  SL %s  TP %s",
		r.ID,
		r.GeneratedAt.UTC().Format(time.DateTime),
		kind,
		FormatSide(r.Side),
		r.Confidence,
		formatPrice(r.Entry),
		formatPrice(r.SL),
		formatPrice(r.TP),
	)
}

// RenderConfidenceBar renders an ASCII bar for a 0..100 confidence.
func RenderConfidenceBar(confidence, barWidth int) string {
	if barWidth <= 0 {
		barWidth = 20
	}
	filled := int(math.Round(float64(confidence) / 100 * float64(barWidth)))
	if filled > barWidth {
		filled = barWidth
	}
	if filled < 0 {
		filled = 0
	}
	empty := barWidth - filled

	style := confidenceStyle(confidence)

	bar := style.Render(strings.Repeat("█", filled)) + SubtextStyle.Render(strings.Repeat("░", empty))
	return fmt.Sprintf("%s %d%%", bar, confidence)
}

func formatPrice(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "-"
	}
	return fmt.Sprintf("%.5f", v)
}
