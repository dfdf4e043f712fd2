package mcp

import (
	"context"

	"trading-agent/internal/domain"
	"trading-agent/internal/service"
)

// ReportReader exposes the agent's reports.
type ReportReader interface {
	Latest() (service.Snapshot, bool)
	History(ctx context.Context, limit int) ([]domain.Report, error)
	AnalyzeOnce(ctx context.Context, opts service.RunOptions) (service.Snapshot, error)
}

// CandleReader exposes stored candles.
type CandleReader interface {
	GetCandles(ctx context.Context, symbol string, tf domain.Timeframe, limit int) ([]domain.Candle, error)
}
