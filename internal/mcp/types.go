package mcp

import (
	"fmt"
	"math"
	"time"

	"trading-agent/internal/domain"
)

const (
	defaultCandleLimit  = 100
	maxCandleLimit      = 500
	defaultHistoryLimit = 20
	maxHistoryLimit     = 200
)

// reportView flattens a report for tool output. Undefined prices are nil.
type reportView struct {
	ID          int64    `json:"id,omitempty"`
	Type        string   `json:"type"`
	Symbol      string   `json:"symbol"`
	Label       string   `json:"label"`
	Side        string   `json:"side"`
	Mood        string   `json:"mood"`
	Confidence  int      `json:"confidence"`
	Entry       *float64 `json:"entry,omitempty"`
	SL          *float64 `json:"sl,omitempty"`
	TP          *float64 `json:"tp,omitempty"`
	Bias        string   `json:"bias"`
	Setup       string   `json:"setup"`
	SetupNote   string   `json:"setup_note"`
	TechReason  string   `json:"tech_reason"`
	FundReason  string   `json:"fund_reason"`
	NextSteps   string   `json:"next_steps"`
	Error       string   `json:"error,omitempty"`
	Anomaly     float64  `json:"anomaly_score,omitempty"`
	GeneratedAt string   `json:"generated_at"`
	SentAt      string   `json:"sent_at,omitempty"`
}

func newReportView(r *domain.Report) reportView {
	if r == nil {
		return reportView{}
	}
	return reportView{
		ID:          r.ID,
		Type:        string(r.Type),
		Symbol:      r.Symbol,
		Label:       r.Label,
		Side:        string(r.Side),
		Mood:        r.Mood,
		Confidence:  r.Confidence,
		Entry:       finitePtr(r.Entry),
		SL:          finitePtr(r.SL),
		TP:          finitePtr(r.TP),
		Bias:        string(r.Regime.Bias),
		Setup:       string(r.Setup.Action),
		SetupNote:   r.Setup.Note,
		TechReason:  r.TechReason,
		FundReason:  r.FundReason,
		NextSteps:   r.NextSteps,
		Error:       r.Error,
		Anomaly:     r.AnomalyScore,
		GeneratedAt: formatTime(r.GeneratedAt),
		SentAt:      formatTime(r.SentAt),
	}
}

func finitePtr(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

type reportLatestInput struct{}

type reportOutput struct {
	Subject string     `json:"subject"`
	Block   string     `json:"block"`
	Report  reportView `json:"report"`
}

type reportHistoryInput struct {
	Limit int `json:"limit,omitempty" jsonschema:"number of reports to return, max 200"`
}

type reportHistoryOutput struct {
	Reports []reportView `json:"reports"`
}

type analyzeNowInput struct{}

type candlesListInput struct {
	Timeframe string `json:"timeframe" jsonschema:"candle timeframe: 5m, 15m, 1h, 4h, 1d (or M5, M15, H1, H4, D1)"`
	Limit     int    `json:"limit,omitempty" jsonschema:"number of candles to return, max 500"`
}

type candlesListOutput struct {
	Symbol    string          `json:"symbol"`
	Timeframe string          `json:"timeframe"`
	Candles   []domain.Candle `json:"candles"`
}

func normalizeTimeframe(raw string) (domain.Timeframe, error) {
	if raw == "" {
		return "", fmt.Errorf("timeframe is required")
	}
	tf, ok := domain.ParseTimeframe(raw)
	if !ok || tf == domain.TimeframeW1 {
		return "", fmt.Errorf("unsupported timeframe: %s", raw)
	}
	return tf, nil
}

func normalizeCandleLimit(limit int) int {
	if limit <= 0 {
		return defaultCandleLimit
	}
	if limit > maxCandleLimit {
		return maxCandleLimit
	}
	return limit
}

func normalizeHistoryLimit(limit int) int {
	if limit <= 0 {
		return defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		return maxHistoryLimit
	}
	return limit
}
