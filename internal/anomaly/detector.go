package anomaly

import (
	"fmt"
	"math"

	"trading-agent/internal/indicator"
)

// FeatureNames are the per-bar features scored by the detector.
var FeatureNames = []string{
	"log_return",
	"range_atr",
	"body_ratio",
	"rsi_dev",
}

const defaultMinSamples = 100

// Result is the anomaly assessment of the most recent bar of a frame.
type Result struct {
	Score     float64
	Anomalous bool
	Samples   int
}

// Detector trains a fresh forest on a frame's history and scores its last bar.
type Detector struct {
	opts       TrainOptions
	minSamples int
}

func NewDetector(opts TrainOptions) *Detector {
	if opts.Threshold <= 0 {
		opts.Threshold = DefaultTrainOptions().Threshold
	}
	return &Detector{opts: opts, minSamples: defaultMinSamples}
}

func (d *Detector) Score(f *indicator.Frame) (Result, error) {
	samples := Features(f)
	if len(samples) < d.minSamples+1 {
		return Result{}, fmt.Errorf("anomaly: %d usable bars, need %d", len(samples), d.minSamples+1)
	}
	history, last := samples[:len(samples)-1], samples[len(samples)-1]
	model, err := Train(history, FeatureNames, d.opts)
	if err != nil {
		return Result{}, err
	}
	score := model.PredictScore(last)
	return Result{
		Score:     score,
		Anomalous: score >= d.opts.Threshold,
		Samples:   len(history),
	}, nil
}

// Features builds one vector per bar, skipping bars whose indicators are
// undefined or whose range is zero.
func Features(f *indicator.Frame) [][]float64 {
	if f.Len() < 2 {
		return nil
	}
	out := make([][]float64, 0, f.Len())
	for i := 1; i < f.Len(); i++ {
		c, prev := f.Candles[i], f.Candles[i-1]
		atr, rsi := f.ATR[i], f.RSI[i]
		rng := c.High - c.Low
		if math.IsNaN(atr) || math.IsNaN(rsi) || atr <= 0 || rng <= 0 || prev.Close <= 0 || c.Close <= 0 {
			continue
		}
		out = append(out, []float64{
			math.Log(c.Close / prev.Close),
			rng / atr,
			math.Abs(c.Close-c.Open) / rng,
			(rsi - 50) / 50,
		})
	}
	return out
}
