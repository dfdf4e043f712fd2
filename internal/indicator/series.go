package indicator

import (
	"math"

	talib "github.com/markcheno/go-talib"
	"gonum.org/v1/gonum/stat"
)

// EMA is the recursive exponential average with alpha 2/(span+1), seeded with
// the first value.
func EMA(values []float64, span int) []float64 {
	if len(values) == 0 {
		return nil
	}
	alpha := 2.0 / (float64(span) + 1.0)
	out := make([]float64, len(values))
	out[0] = values[0]
	for i := 1; i < len(values); i++ {
		out[i] = alpha*values[i] + (1-alpha)*out[i-1]
	}
	return out
}

// wilder applies Wilder's smoothing (alpha 1/period) seeded with the first value.
func wilder(values []float64, period int) []float64 {
	if len(values) == 0 {
		return nil
	}
	out := make([]float64, len(values))
	out[0] = values[0]
	for i := 1; i < len(values); i++ {
		out[i] = out[i-1] + (values[i]-out[i-1])/float64(period)
	}
	return out
}

// RSI over closes. The first period values are NaN.
func RSI(closes []float64, period int) []float64 {
	out := nanSeries(len(closes))
	if len(closes) <= period || period <= 0 {
		return out
	}
	gains := make([]float64, len(closes))
	losses := make([]float64, len(closes))
	for i := 1; i < len(closes); i++ {
		d := closes[i] - closes[i-1]
		gains[i] = math.Max(d, 0)
		losses[i] = math.Max(-d, 0)
	}
	avgGain := wilder(gains, period)
	avgLoss := wilder(losses, period)
	for i := period; i < len(closes); i++ {
		out[i] = rsiFromAvg(avgGain[i], avgLoss[i])
	}
	return out
}

func rsiFromAvg(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		if avgGain == 0 {
			return 50
		}
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - (100 / (1 + rs))
}

// TrueRange of each bar; the first bar has no previous close and uses high-low.
func TrueRange(highs, lows, closes []float64) []float64 {
	out := make([]float64, len(closes))
	for i := range closes {
		hl := math.Abs(highs[i] - lows[i])
		if i == 0 {
			out[i] = hl
			continue
		}
		hc := math.Abs(highs[i] - closes[i-1])
		lc := math.Abs(lows[i] - closes[i-1])
		out[i] = math.Max(hl, math.Max(hc, lc))
	}
	return out
}

// ATR with Wilder smoothing. The first period-1 values are NaN.
func ATR(highs, lows, closes []float64, period int) []float64 {
	out := nanSeries(len(closes))
	if len(closes) < period || period <= 0 {
		return out
	}
	smoothed := wilder(TrueRange(highs, lows, closes), period)
	copy(out[period-1:], smoothed[period-1:])
	return out
}

// DMI returns ADX, +DI and -DI. Warm-up rows are NaN.
func DMI(highs, lows, closes []float64, period int) (adx, plusDI, minusDI []float64) {
	n := len(closes)
	adx, plusDI, minusDI = nanSeries(n), nanSeries(n), nanSeries(n)
	if period <= 1 || n <= 2*period {
		return adx, plusDI, minusDI
	}
	copyFrom(plusDI, talib.PlusDI(highs, lows, closes, period), period)
	copyFrom(minusDI, talib.MinusDI(highs, lows, closes, period), period)
	copyFrom(adx, talib.Adx(highs, lows, closes, period), 2*period-1)
	return adx, plusDI, minusDI
}

// PSAR is the parabolic stop-and-reverse. The first value is NaN.
func PSAR(highs, lows []float64, af, maxAF float64) []float64 {
	out := nanSeries(len(highs))
	if len(highs) < 2 {
		return out
	}
	copyFrom(out, talib.Sar(highs, lows, af, maxAF), 1)
	return out
}

// RollingHigh is the highest value of the previous bars excluding the current one.
func RollingHigh(values []float64, bars int) []float64 {
	return rollingPrev(values, bars, math.Max)
}

// RollingLow is the lowest value of the previous bars excluding the current one.
func RollingLow(values []float64, bars int) []float64 {
	return rollingPrev(values, bars, math.Min)
}

func rollingPrev(values []float64, bars int, pick func(a, b float64) float64) []float64 {
	out := nanSeries(len(values))
	if bars <= 0 {
		return out
	}
	for i := bars; i < len(values); i++ {
		v := values[i-bars]
		for j := i - bars + 1; j < i; j++ {
			v = pick(v, values[j])
		}
		out[i] = v
	}
	return out
}

// Slope fits a least-squares line over the finite values (x = position) and
// returns its gradient. ok is false with fewer than three finite points.
func Slope(values []float64) (slope float64, ok bool) {
	xs := make([]float64, 0, len(values))
	ys := make([]float64, 0, len(values))
	for i, v := range values {
		if isFinite(v) {
			xs = append(xs, float64(i))
			ys = append(ys, v)
		}
	}
	if len(ys) < 3 {
		return 0, false
	}
	_, beta := stat.LinearRegression(xs, ys, nil, false)
	return beta, true
}

func copyFrom(dst, src []float64, from int) {
	for i := from; i < len(dst) && i < len(src); i++ {
		dst[i] = src[i]
	}
}

func nanSeries(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
