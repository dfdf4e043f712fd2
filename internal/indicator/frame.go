package indicator

import (
	"math"
	"sort"
	"time"

	"trading-agent/internal/config"
	"trading-agent/internal/domain"
)

// Frame is a candle series of one timeframe with its indicator columns aligned
// row by row.
type Frame struct {
	Timeframe domain.Timeframe
	Candles   []domain.Candle

	EMAFast []float64
	EMASlow []float64
	RSI     []float64
	ATR     []float64
	ADX     []float64
	PlusDI  []float64
	MinusDI []float64
	PSAR    []float64
	HH      []float64
	LL      []float64
}

// Snapshot is one row of a Frame.
type Snapshot struct {
	Time    time.Time
	Open    float64
	High    float64
	Low     float64
	Close   float64
	EMAFast float64
	EMASlow float64
	RSI     float64
	ATR     float64
	ADX     float64
	PlusDI  float64
	MinusDI float64
	PSAR    float64
	HH      float64
	LL      float64
}

// Enrich sorts candles by open time and computes every indicator column.
func Enrich(tf domain.Timeframe, candles []domain.Candle, p config.Params) *Frame {
	series := make([]domain.Candle, len(candles))
	copy(series, candles)
	sort.SliceStable(series, func(i, j int) bool { return series[i].OpenTime.Before(series[j].OpenTime) })

	highs := make([]float64, len(series))
	lows := make([]float64, len(series))
	closes := make([]float64, len(series))
	for i, c := range series {
		highs[i], lows[i], closes[i] = c.High, c.Low, c.Close
	}

	f := &Frame{Timeframe: tf, Candles: series}
	f.EMAFast = EMA(closes, p.EMAFast)
	f.EMASlow = EMA(closes, p.EMASlow)
	f.RSI = RSI(closes, p.RSILen)
	f.ATR = ATR(highs, lows, closes, p.ATRLen)
	f.ADX, f.PlusDI, f.MinusDI = DMI(highs, lows, closes, p.ADXLen)
	f.PSAR = PSAR(highs, lows, p.PSAR.AF, p.PSAR.MaxAF)
	f.HH = RollingHigh(highs, p.BreakoutBars)
	f.LL = RollingLow(lows, p.BreakoutBars)
	return f
}

func (f *Frame) Len() int {
	if f == nil {
		return 0
	}
	return len(f.Candles)
}

func (f *Frame) At(i int) Snapshot {
	c := f.Candles[i]
	return Snapshot{
		Time:    c.OpenTime,
		Open:    c.Open,
		High:    c.High,
		Low:     c.Low,
		Close:   c.Close,
		EMAFast: at(f.EMAFast, i),
		EMASlow: at(f.EMASlow, i),
		RSI:     at(f.RSI, i),
		ATR:     at(f.ATR, i),
		ADX:     at(f.ADX, i),
		PlusDI:  at(f.PlusDI, i),
		MinusDI: at(f.MinusDI, i),
		PSAR:    at(f.PSAR, i),
		HH:      at(f.HH, i),
		LL:      at(f.LL, i),
	}
}

func (f *Frame) Last() (Snapshot, bool) {
	if f.Len() == 0 {
		return Snapshot{}, false
	}
	return f.At(f.Len() - 1), true
}

// Slice returns rows [from, to) sharing the underlying arrays.
func (f *Frame) Slice(from, to int) *Frame {
	from = clamp(from, 0, f.Len())
	to = clamp(to, from, f.Len())
	return &Frame{
		Timeframe: f.Timeframe,
		Candles:   f.Candles[from:to],
		EMAFast:   f.EMAFast[from:to],
		EMASlow:   f.EMASlow[from:to],
		RSI:       f.RSI[from:to],
		ATR:       f.ATR[from:to],
		ADX:       f.ADX[from:to],
		PlusDI:    f.PlusDI[from:to],
		MinusDI:   f.MinusDI[from:to],
		PSAR:      f.PSAR[from:to],
		HH:        f.HH[from:to],
		LL:        f.LL[from:to],
	}
}

func (f *Frame) Tail(n int) *Frame {
	return f.Slice(f.Len()-n, f.Len())
}

// Complete drops the leading rows where RSI, ATR or the breakout channel are
// still warming up.
func (f *Frame) Complete() *Frame {
	for i := 0; i < f.Len(); i++ {
		if isFinite(f.RSI[i]) && isFinite(f.ATR[i]) && isFinite(f.HH[i]) && isFinite(f.LL[i]) {
			return f.Slice(i, f.Len())
		}
	}
	return f.Slice(f.Len(), f.Len())
}

func (f *Frame) Closes() []float64 {
	out := make([]float64, f.Len())
	for i, c := range f.Candles {
		out[i] = c.Close
	}
	return out
}

// HighLow returns the extreme high and low of the last n rows.
func (f *Frame) HighLow(n int) (high, low float64) {
	tail := f.Tail(n)
	if tail.Len() == 0 {
		return math.NaN(), math.NaN()
	}
	high, low = math.Inf(-1), math.Inf(1)
	for _, c := range tail.Candles {
		high = math.Max(high, c.High)
		low = math.Min(low, c.Low)
	}
	return high, low
}

func at(values []float64, i int) float64 {
	if i < 0 || i >= len(values) {
		return math.NaN()
	}
	return values[i]
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
