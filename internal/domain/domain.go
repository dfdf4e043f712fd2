package domain

import (
	"strings"
	"time"
)

type Timeframe string

const (
	TimeframeW1  Timeframe = "1wk"
	TimeframeD1  Timeframe = "1d"
	TimeframeH4  Timeframe = "4h"
	TimeframeH1  Timeframe = "1h"
	TimeframeM15 Timeframe = "15m"
	TimeframeM5  Timeframe = "5m"
)

// SupportedTimeframes lists the candle intervals the agent analyses, highest first.
var SupportedTimeframes = []Timeframe{
	TimeframeD1,
	TimeframeH4,
	TimeframeH1,
	TimeframeM15,
	TimeframeM5,
}

var timeframeDurations = map[Timeframe]time.Duration{
	TimeframeW1:  7 * 24 * time.Hour,
	TimeframeD1:  24 * time.Hour,
	TimeframeH4:  4 * time.Hour,
	TimeframeH1:  time.Hour,
	TimeframeM15: 15 * time.Minute,
	TimeframeM5:  5 * time.Minute,
}

var timeframeLabels = map[Timeframe]string{
	TimeframeW1:  "W1",
	TimeframeD1:  "D1",
	TimeframeH4:  "H4",
	TimeframeH1:  "H1",
	TimeframeM15: "M15",
	TimeframeM5:  "M5",
}

func (tf Timeframe) Duration() time.Duration {
	return timeframeDurations[tf]
}

func (tf Timeframe) Label() string {
	if l, ok := timeframeLabels[tf]; ok {
		return l
	}
	return strings.ToUpper(string(tf))
}

func (tf Timeframe) IsValid() bool {
	_, ok := timeframeDurations[tf]
	return ok
}

// ParseTimeframe accepts both interval ("15m") and label ("M15") spellings.
func ParseTimeframe(raw string) (Timeframe, bool) {
	raw = strings.TrimSpace(raw)
	if tf := Timeframe(strings.ToLower(raw)); tf.IsValid() {
		return tf, true
	}
	for tf, label := range timeframeLabels {
		if strings.EqualFold(label, raw) {
			return tf, true
		}
	}
	return "", false
}

type Candle struct {
	Symbol    string    `json:"symbol"`
	Timeframe Timeframe `json:"timeframe"`
	OpenTime  time.Time `json:"open_time"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
}

type Trend string

const (
	TrendUp   Trend = "UP"
	TrendDown Trend = "DOWN"
	TrendFlat Trend = "FLAT"
)

type Bias string

const (
	BiasUp      Bias = "UP"
	BiasDown    Bias = "DOWN"
	BiasNeutral Bias = "NEUTRAL"
)

type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
	SideNone Side = "NONE"
)

type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
	ActionWait Action = "WAIT"
)

type ReportType string

const (
	ReportSignal ReportType = "SIGNAL"
	ReportEvent  ReportType = "EVENT"
	ReportError  ReportType = "ERROR"
)

// Regime is the higher-timeframe market bias with the reasons that produced it.
type Regime struct {
	Bias    Bias     `json:"bias"`
	Reasons []string `json:"reasons"`
}

// Setup is an M15 entry decision. Price levels are nil unless Action is BUY or SELL.
type Setup struct {
	Action Action   `json:"action"`
	Note   string   `json:"note"`
	Entry  *float64 `json:"entry,omitempty"`
	SL     *float64 `json:"sl,omitempty"`
	TP     *float64 `json:"tp,omitempty"`
}

type Levels struct {
	Price    float64 `json:"price"`
	DayHigh  float64 `json:"day_high"`
	DayLow   float64 `json:"day_low"`
	H1High   float64 `json:"h1_high"`
	H1Low    float64 `json:"h1_low"`
	High24h  float64 `json:"high_24h"`
	Low24h   float64 `json:"low_24h"`
	VIXClose float64 `json:"vix"`
}

type Trends struct {
	W1  Trend `json:"w1"`
	D1  Trend `json:"d1"`
	H4  Trend `json:"h4"`
	H1  Trend `json:"h1"`
	M15 Trend `json:"m15"`
}

// Report is the outcome of one analysis run, the payload behind the email block.
type Report struct {
	ID         int64      `json:"id,omitempty"`
	Type       ReportType `json:"type"`
	Symbol     string     `json:"symbol"`
	Label      string     `json:"label"`
	Mood       string     `json:"mood"`
	Side       Side       `json:"side"`
	Trends     Trends     `json:"trends"`
	Entry      float64    `json:"entry"`
	SL         float64    `json:"sl"`
	TP         float64    `json:"tp"`
	Confidence int        `json:"confidence"`
	Levels     Levels     `json:"levels"`
	Regime     Regime     `json:"regime"`
	Setup      Setup      `json:"setup"`
	TechReason string     `json:"tech_reason"`
	FundReason string     `json:"fund_reason"`
	NextSteps  string     `json:"next_steps"`
	Error      string     `json:"error,omitempty"`

	JobStart     time.Time `json:"job_start_utc"`
	AnalysisDone time.Time `json:"analysis_done_utc"`
	GeneratedAt  time.Time `json:"time_utc"`
	SentAt       time.Time `json:"email_sent_utc"`

	ChartPath string `json:"chart_path,omitempty"`
	// AnomalyScore is the isolation-forest score of the last H1 bar, 0 when unscored.
	AnomalyScore float64 `json:"anomaly_score,omitempty"`
}

// Actionable reports whether the report carries a trade idea rather than a status update.
func (r *Report) Actionable() bool {
	return r.Type == ReportEvent || (r.Type == ReportSignal && r.Side != SideNone)
}
