package regime

import (
	"fmt"
	"math"

	"trading-agent/internal/config"
	"trading-agent/internal/domain"
	"trading-agent/internal/indicator"
)

// slopeEpsilon absorbs regression rounding when the H1 EMA is constant.
const slopeEpsilon = 1e-12

// Evaluate derives the directional bias from D1 (close vs slow EMA), H4 (DMI)
// and H1 (regression slope of the fast EMA). Missing inputs yield NEUTRAL.
func Evaluate(d1, h4, h1 *indicator.Frame, rules config.Rules) domain.Regime {
	var reasons []string
	neutral := func(reason string) domain.Regime {
		return domain.Regime{Bias: domain.BiasNeutral, Reasons: append(reasons, reason)}
	}

	last, ok := d1.Last()
	if !ok || !finite(last.Close) || !finite(last.EMASlow) {
		return neutral("D1: close/EMA200 unavailable")
	}
	d1Up := last.Close > last.EMASlow
	d1Down := last.Close < last.EMASlow
	switch {
	case d1Up:
		reasons = append(reasons, "D1 above EMA200")
	case d1Down:
		reasons = append(reasons, "D1 below EMA200")
	default:
		reasons = append(reasons, "D1 near EMA200")
	}

	h4Last, ok := h4.Last()
	if !ok || !finite(h4Last.ADX) || !finite(h4Last.PlusDI) || !finite(h4Last.MinusDI) {
		return neutral("H4: ADX/DMI unavailable")
	}
	h4Up := h4Last.PlusDI > h4Last.MinusDI
	h4Down := h4Last.MinusDI > h4Last.PlusDI
	if rules.ADXMin > 0 && h4Last.ADX < rules.ADXMin {
		h4Up, h4Down = false, false
	}
	dmi := "mixed"
	if h4Up {
		dmi = "bullish"
	} else if h4Down {
		dmi = "bearish"
	}
	reasons = append(reasons, fmt.Sprintf("H4 DMI: %s (ADX=%.1f)", dmi, h4Last.ADX))

	lookback := min(rules.EMA50SlopeLookback, h1.Len())
	if lookback < 5 {
		return neutral("H1: too little data for the EMA50 slope")
	}
	window := h1.Tail(lookback).EMAFast
	slope, ok := indicator.Slope(window)
	if !ok {
		return neutral("H1: EMA50 slope unavailable")
	}
	h1Up := slope > slopeEpsilon
	h1Down := slope < -slopeEpsilon
	direction := "flat"
	if h1Up {
		direction = "rising"
	} else if h1Down {
		direction = "falling"
	}
	reasons = append(reasons, "H1 EMA50 slope: "+direction)

	bias := domain.BiasNeutral
	switch {
	case d1Up && h4Up && h1Up:
		bias = domain.BiasUp
	case !d1Up && h4Down && h1Down:
		bias = domain.BiasDown
	}
	return domain.Regime{Bias: bias, Reasons: reasons}
}

// EvaluateSafe is Evaluate with panics turned into a NEUTRAL regime.
func EvaluateSafe(d1, h4, h1 *indicator.Frame, rules config.Rules) (out domain.Regime) {
	defer func() {
		if r := recover(); r != nil {
			out = domain.Regime{Bias: domain.BiasNeutral, Reasons: []string{fmt.Sprintf("regime error: %v", r)}}
		}
	}()
	return Evaluate(d1, h4, h1, rules)
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
