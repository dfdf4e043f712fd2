package tui

import (
	"context"

	"trading-agent/internal/domain"
	"trading-agent/internal/service"
)

// ReportSource provides the latest analysis and on-demand runs.
type ReportSource interface {
	Latest() (service.Snapshot, bool)
	AnalyzeOnce(ctx context.Context, opts service.RunOptions) (service.Snapshot, error)
}

// HistorySource lists stored reports, newest first.
type HistorySource interface {
	History(ctx context.Context, limit int) ([]domain.Report, error)
}

// Services bundles the dependencies injected into the TUI.
type Services struct {
	Reports ReportSource
	History HistorySource
}
