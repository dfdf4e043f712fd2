package strategy

import (
	"math"

	"trading-agent/internal/config"
	"trading-agent/internal/domain"
	"trading-agent/internal/indicator"
	"trading-agent/internal/regime"

	"github.com/shopspring/decimal"
)

const minSignalBars = 20

// Strategy turns candles into indicator frames, a higher-timeframe regime and
// an M15 entry decision.
type Strategy interface {
	Name() string
	Enrich(tf domain.Timeframe, candles []domain.Candle) *indicator.Frame
	Regime(d1, h4, h1 *indicator.Frame) domain.Regime
	Signal(m15 *indicator.Frame, bias domain.Bias) domain.Setup
}

// Wilder trades M15 pullbacks to the fast EMA in the direction of the regime,
// confirmed by RSI crossing 50.
type Wilder struct {
	cfg config.StrategyConfig
}

func NewWilder(cfg config.StrategyConfig) *Wilder {
	return &Wilder{cfg: cfg}
}

func (w *Wilder) Name() string { return "wilder" }

func (w *Wilder) Config() config.StrategyConfig { return w.cfg }

func (w *Wilder) Enrich(tf domain.Timeframe, candles []domain.Candle) *indicator.Frame {
	return indicator.Enrich(tf, candles, w.cfg.Params)
}

func (w *Wilder) Regime(d1, h4, h1 *indicator.Frame) domain.Regime {
	return regime.EvaluateSafe(d1, h4, h1, w.cfg.Rules)
}

func (w *Wilder) Signal(m15 *indicator.Frame, bias domain.Bias) domain.Setup {
	wait := domain.Setup{Action: domain.ActionWait, Note: "no setup"}
	if m15.Len() < minSignalBars {
		wait.Note = "too few bars"
		return wait
	}

	last := m15.At(m15.Len() - 1)
	prevRSI := m15.RSI[m15.Len()-2]
	r := w.cfg.Rules
	pullbackOK := math.Abs(last.Close-last.EMAFast) <= r.PullbackATRFrac*last.ATR

	switch bias {
	case domain.BiasUp:
		crossedUp := prevRSI <= 50 && last.RSI > 50
		if last.Close > last.EMAFast && crossedUp && pullbackOK {
			entry := round5(last.Close)
			note := "UP-bias entry (RSI>50, pullback, >EMA50)"
			if last.PSAR > last.Close {
				note += " | warning: PSAR above price (possible flip)"
			}
			return setup(domain.ActionBuy, note, entry, round5(entry-r.SLATRMult*last.ATR), round5(entry+r.TPATRMult*last.ATR))
		}
	case domain.BiasDown:
		crossedDown := prevRSI >= 50 && last.RSI < 50
		if last.Close < last.EMAFast && crossedDown && pullbackOK {
			entry := round5(last.Close)
			note := "DOWN-bias entry (RSI<50, pullback, <EMA50)"
			if last.PSAR < last.Close {
				note += " | warning: PSAR below price (possible flip)"
			}
			return setup(domain.ActionSell, note, entry, round5(entry+r.SLATRMult*last.ATR), round5(entry-r.TPATRMult*last.ATR))
		}
	}
	return wait
}

func setup(action domain.Action, note string, entry, sl, tp float64) domain.Setup {
	return domain.Setup{Action: action, Note: note, Entry: &entry, SL: &sl, TP: &tp}
}

// round5 rounds half away from zero to five decimal places.
func round5(v float64) float64 {
	return decimal.NewFromFloat(v).Round(5).InexactFloat64()
}
