package signal

import (
	"errors"
	"fmt"
	"math"
	"time"

	"trading-agent/internal/config"
	"trading-agent/internal/domain"
	"trading-agent/internal/indicator"
)

const (
	confidenceSide  = 72
	confidenceNone  = 40
	confidenceEvent = 65

	rsiOversold   = 30
	rsiOverbought = 70

	vixOptimistic = 15
	vixFear       = 25

	rangeBars = 24
)

// ErrInsufficientData is returned when H1 has fewer than two complete rows.
var ErrInsufficientData = errors.New("signal: not enough H1 data")

// Input carries the enriched frames of one run. Frames are trimmed to their
// complete rows by the engine.
type Input struct {
	Symbol   string
	Label    string
	Frames   map[domain.Timeframe]*indicator.Frame
	VIXClose float64
	Regime   domain.Regime
	Setup    domain.Setup
}

type Engine struct {
	cfg          config.StrategyConfig
	moodOverride string
	now          func() time.Time
}

type levels struct {
	buyEntry, buySL, buyTP    float64
	sellEntry, sellSL, sellTP float64
}

func NewEngine(cfg config.StrategyConfig, moodOverride string, now func() time.Time) *Engine {
	if now == nil {
		now = time.Now
	}
	return &Engine{cfg: cfg, moodOverride: moodOverride, now: now}
}

// Analyze builds the SIGNAL or EVENT report from the H1 breakout channel and
// the trend of every timeframe.
func (e *Engine) Analyze(in Input) (domain.Report, error) {
	frames := make(map[domain.Timeframe]*indicator.Frame, len(in.Frames))
	for tf, f := range in.Frames {
		if f != nil {
			frames[tf] = f.Complete()
		}
	}

	h1 := frames[domain.TimeframeH1]
	if h1.Len() < 2 {
		return domain.Report{}, fmt.Errorf("%w: %d complete rows", ErrInsufficientData, h1.Len())
	}
	now, _ := h1.Last()
	prev := h1.At(h1.Len() - 2)

	trends := domain.Trends{
		W1:  e.weeklyTrend(frames[domain.TimeframeW1]),
		D1:  frameTrend(frames[domain.TimeframeD1]),
		H4:  frameTrend(frames[domain.TimeframeH4]),
		H1:  frameTrend(h1),
		M15: frameTrend(frames[domain.TimeframeM15]),
	}

	r := e.cfg.Rules
	atr := now.ATR
	lv := levels{buyEntry: now.HH + r.BreakoutATRBuffer*atr, sellEntry: now.LL - r.BreakoutATRBuffer*atr}
	lv.buySL, lv.buyTP = lv.buyEntry-r.BreakoutSLMult*atr, lv.buyEntry+r.BreakoutTPMult*atr
	lv.sellSL, lv.sellTP = lv.sellEntry+r.BreakoutSLMult*atr, lv.sellEntry-r.BreakoutTPMult*atr

	report := domain.Report{
		Type:   domain.ReportSignal,
		Symbol: in.Symbol,
		Label:  in.Label,
		Mood:   e.mood(in.VIXClose),
		Side:   domain.SideNone,
		Trends: trends,
		Regime: in.Regime,
		Setup:  in.Setup,
		Levels: e.levels(frames, h1, in.VIXClose),
	}

	bars := e.cfg.Params.BreakoutBars
	price := now.Close
	switch {
	case trends.D1 == domain.TrendDown && trends.H4 == domain.TrendDown && trends.H1 != domain.TrendUp && price <= lv.sellEntry:
		report.Side = domain.SideSell
		report.Entry, report.SL, report.TP = lv.sellEntry, lv.sellSL, lv.sellTP
		report.TechReason = fmt.Sprintf("D1/H4 down; H1 below %d-bar low.", bars)
	case trends.D1 == domain.TrendUp && trends.H4 == domain.TrendUp && trends.H1 != domain.TrendDown && price >= lv.buyEntry:
		report.Side = domain.SideBuy
		report.Entry, report.SL, report.TP = lv.buyEntry, lv.buySL, lv.buyTP
		report.TechReason = fmt.Sprintf("D1/H4 up; H1 above %d-bar high.", bars)
	default:
		report.Entry, report.SL, report.TP = price, math.NaN(), math.NaN()
		report.TechReason = "No clean breakout."
	}
	report.Confidence = confidenceNone
	if report.Side != domain.SideNone {
		report.Confidence = confidenceSide
	}
	report.FundReason = "High-impact news not filtered."
	report.NextSteps = "Wait for M15/M5 confirmation."

	e.applyReversal(&report, prev, now, lv)

	report.AnalysisDone = e.now().UTC()
	report.GeneratedAt = report.AnalysisDone
	return report, nil
}

// applyReversal turns the report into an EVENT when H1 RSI leaves an extreme
// against the higher-timeframe trend.
func (e *Engine) applyReversal(report *domain.Report, prev, now indicator.Snapshot, lv levels) {
	bars := e.cfg.Params.BreakoutBars
	t := report.Trends
	if t.D1 == domain.TrendDown && t.H4 == domain.TrendDown &&
		prev.RSI < rsiOversold && rsiOversold <= now.RSI &&
		(now.Close >= now.EMAFast || now.Close >= lv.buyEntry) {
		e.event(report, lv.buyEntry, lv.buySL, lv.buyTP,
			fmt.Sprintf("RSI<30 to >=30 & close >= EMA50/%d-bar high; D1/H4 bearish.", bars),
			"H1 above entry; M15/M5 breakout.")
		return
	}
	if t.D1 == domain.TrendUp && t.H4 == domain.TrendUp &&
		prev.RSI > rsiOverbought && rsiOverbought >= now.RSI &&
		(now.Close <= now.EMAFast || now.Close <= lv.sellEntry) {
		e.event(report, lv.sellEntry, lv.sellSL, lv.sellTP,
			fmt.Sprintf("RSI>70 to <=70 & close <= EMA50/%d-bar low; D1/H4 bullish.", bars),
			"H1 below entry; M15/M5 breakout.")
	}
}

func (e *Engine) event(report *domain.Report, entry, sl, tp float64, tech, next string) {
	report.Type = domain.ReportEvent
	report.Side = domain.SideNone
	report.Entry, report.SL, report.TP = entry, sl, tp
	report.Confidence = confidenceEvent
	report.TechReason = tech
	report.FundReason = "Check high-impact news."
	report.NextSteps = next
}

func (e *Engine) levels(frames map[domain.Timeframe]*indicator.Frame, h1 *indicator.Frame, vix float64) domain.Levels {
	last, _ := h1.Last()
	lv := domain.Levels{
		Price:    last.Close,
		H1High:   last.High,
		H1Low:    last.Low,
		DayHigh:  math.NaN(),
		DayLow:   math.NaN(),
		VIXClose: vix,
	}
	if d1, ok := frames[domain.TimeframeD1].Last(); ok {
		lv.DayHigh, lv.DayLow = d1.High, d1.Low
	}
	lv.High24h, lv.Low24h = h1.HighLow(rangeBars)
	return lv
}

func (e *Engine) mood(vix float64) string {
	label := MoodFromVIX(vix)
	if e.moodOverride != "" {
		label = e.moodOverride
	}
	return fmt.Sprintf("%s (VIX=%.2f)", label, vix)
}

// weeklyTrend needs enough weekly bars for the slow EMA to mean anything.
func (e *Engine) weeklyTrend(f *indicator.Frame) domain.Trend {
	if f.Len() < e.cfg.Params.EMASlow {
		return domain.TrendFlat
	}
	return frameTrend(f)
}

// MoodFromVIX maps the VIX close to a market mood. NaN is neutral.
func MoodFromVIX(vix float64) string {
	switch {
	case vix < vixOptimistic:
		return "Optimistic"
	case vix > vixFear:
		return "Fear"
	default:
		return "Neutral"
	}
}

// DetectTrend classifies price against the fast and slow EMA.
func DetectTrend(price, emaFast, emaSlow float64) domain.Trend {
	if math.IsNaN(price) || math.IsNaN(emaFast) || math.IsNaN(emaSlow) {
		return domain.TrendFlat
	}
	switch {
	case price > emaFast && emaFast >= emaSlow:
		return domain.TrendUp
	case price < emaFast && emaFast <= emaSlow:
		return domain.TrendDown
	}
	return domain.TrendFlat
}

func frameTrend(f *indicator.Frame) domain.Trend {
	last, ok := f.Last()
	if !ok {
		return domain.TrendFlat
	}
	return DetectTrend(last.Close, last.EMAFast, last.EMASlow)
}
