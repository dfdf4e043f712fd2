package anomaly

import (
	"errors"
	"math"

	goiforest "github.com/narumiruna/go-iforest/pkg/iforest"
)

type TrainOptions struct {
	NumTrees   int
	SampleSize int
	Threshold  float64
}

func DefaultTrainOptions() TrainOptions {
	return TrainOptions{
		NumTrees:   200,
		SampleSize: 256,
		Threshold:  0.6,
	}
}

// Model is an isolation forest over z-normalized feature vectors.
type Model struct {
	featureNames []string
	means        []float64
	stds         []float64
	forest       *goiforest.IsolationForest
}

func Train(samples [][]float64, featureNames []string, opts TrainOptions) (*Model, error) {
	if len(samples) == 0 {
		return nil, errors.New("empty training dataset")
	}
	if len(samples[0]) == 0 {
		return nil, errors.New("empty feature vectors")
	}
	defaults := DefaultTrainOptions()
	if opts.NumTrees <= 0 {
		opts.NumTrees = defaults.NumTrees
	}
	if opts.SampleSize <= 0 {
		opts.SampleSize = defaults.SampleSize
	}
	if opts.SampleSize > len(samples) {
		opts.SampleSize = len(samples)
	}
	if opts.Threshold <= 0 {
		opts.Threshold = defaults.Threshold
	}

	means, stds := fitNormalizer(samples)
	forest := goiforest.NewWithOptions(goiforest.Options{
		DetectionType: goiforest.DetectionTypeThreshold,
		Threshold:     opts.Threshold,
		NumTrees:      opts.NumTrees,
		SampleSize:    opts.SampleSize,
	})
	forest.Fit(normalizeBatch(samples, means, stds))

	return &Model{
		featureNames: append([]string(nil), featureNames...),
		means:        means,
		stds:         stds,
		forest:       forest,
	}, nil
}

// PredictScore returns the anomaly score of sample in [0, 1]. Higher is more unusual.
func (m *Model) PredictScore(sample []float64) float64 {
	if m == nil || m.forest == nil || len(sample) != len(m.means) {
		return 0
	}
	scores := m.forest.Score([][]float64{normalize(sample, m.means, m.stds)})
	if len(scores) == 0 {
		return 0
	}
	score := scores[0]
	if math.IsNaN(score) || math.IsInf(score, 0) || score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

func (m *Model) FeatureNames() []string {
	if m == nil {
		return nil
	}
	return append([]string(nil), m.featureNames...)
}

func fitNormalizer(samples [][]float64) ([]float64, []float64) {
	featureCount := len(samples[0])
	means := make([]float64, featureCount)
	stds := make([]float64, featureCount)
	for j := 0; j < featureCount; j++ {
		for i := range samples {
			means[j] += samples[i][j]
		}
		means[j] /= float64(len(samples))
		for i := range samples {
			d := samples[i][j] - means[j]
			stds[j] += d * d
		}
		stds[j] = math.Sqrt(stds[j] / float64(len(samples)))
		if stds[j] == 0 {
			stds[j] = 1
		}
	}
	return means, stds
}

func normalizeBatch(samples [][]float64, means, stds []float64) [][]float64 {
	out := make([][]float64, len(samples))
	for i := range samples {
		out[i] = normalize(samples[i], means, stds)
	}
	return out
}

func normalize(in, means, stds []float64) []float64 {
	out := make([]float64, len(in))
	for i := range in {
		out[i] = (in[i] - means[i]) / stds[i]
	}
	return out
}
