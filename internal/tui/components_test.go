package tui

import (
	"math"
	"strings"
	"testing"

	"trading-agent/internal/domain"
)

func TestFormatReportLine(t *testing.T) {
	line := FormatReportLine(domain.Report{
		ID:         7,
		Type:       domain.ReportSignal,
		Side:       domain.SideNone,
		Entry:      1.0851,
		SL:         math.NaN(),
		TP:         math.NaN(),
		Confidence: 40,
	})
	if !strings.Contains(line, "#7") || !strings.Contains(line, "1.08510") || !strings.Contains(line, "SL -") {
		t.Fatalf("unexpected line %q", line)
	}

	errLine := FormatReportLine(domain.Report{ID: 8, Type: domain.ReportError, Error: "yahoo down"})
	if !strings.Contains(errLine, "yahoo down") {
		t.Fatalf("expected error text, got %q", errLine)
	}
}

func TestRenderConfidenceBar(t *testing.T) {
	bar := RenderConfidenceBar(72, 10)
	if !strings.HasSuffix(bar, "72%") {
		t.Fatalf("unexpected bar %q", bar)
	}
	if strings.Count(bar, "█") != 7 {
		t.Fatalf("expected 7 filled cells, got %q", bar)
	}
	if got := RenderConfidenceBar(150, 10); strings.Count(got, "█") != 10 {
		t.Fatalf("expected clamped bar, got %q", got)
	}
}
