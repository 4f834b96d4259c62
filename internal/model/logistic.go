package model

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
	"time"

	"github.com/google/uuid"

	"churn/internal/schema"
	"churn/pkg/records"
)

// TrainParams controls logistic regression training. Zero values fall back
// to the defaults below.
type TrainParams struct {
	LearningRate float64 // default 0.1
	Epochs       int     // default 200
	TestFraction float64 // default 0.2
	Seed         int64
}

const (
	defaultLearningRate = 0.1
	defaultEpochs       = 200
	defaultTestFraction = 0.2
)

// LogisticModel is a standardized logistic regression scorer. Inputs are
// centered and scaled with the training-set statistics before the linear
// term is applied, so weights are comparable across features.
type LogisticModel struct {
	Features []string  `json:"features"`
	Weights  []float64 `json:"weights"`
	Bias     float64   `json:"bias"`
	Means    []float64 `json:"means"`
	Stds     []float64 `json:"stds"`
}

// Train fits a logistic regression on the labeled feature rows and returns
// the model plus its metadata. labelObserved is carried into the metadata so
// consumers can tell real labels from synthetic ones.
func Train(rows []records.Record, labelObserved bool, p TrainParams) (*LogisticModel, Metadata, error) {
	if p.LearningRate <= 0 {
		p.LearningRate = defaultLearningRate
	}
	if p.Epochs <= 0 {
		p.Epochs = defaultEpochs
	}
	if p.TestFraction <= 0 || p.TestFraction >= 1 {
		p.TestFraction = defaultTestFraction
	}

	features := append(SelectFeatures(rows), EncodeCategoricals(rows)...)
	x, y, err := Matrix(rows, features)
	if err != nil {
		return nil, Metadata{}, err
	}
	if len(x) < 2 {
		return nil, Metadata{}, fmt.Errorf("train: need at least 2 rows, got %d", len(x))
	}

	rng := rand.New(rand.NewSource(p.Seed))
	perm := rng.Perm(len(x))
	testN := int(float64(len(x)) * p.TestFraction)
	if testN < 1 {
		testN = 1
	}
	trainIdx, testIdx := perm[testN:], perm[:testN]

	means, stds := columnStats(x, trainIdx)
	m := &LogisticModel{
		Features: features,
		Weights:  make([]float64, len(features)),
		Means:    means,
		Stds:     stds,
	}

	// Full-batch gradient descent. The row counts of a feature batch make
	// anything fancier unnecessary.
	n := float64(len(trainIdx))
	for epoch := 0; epoch < p.Epochs; epoch++ {
		grad := make([]float64, len(features))
		var gradBias float64
		for _, i := range trainIdx {
			z := m.scoreScaled(m.scale(x[i]))
			diff := z - y[i]
			for j, v := range m.scale(x[i]) {
				grad[j] += diff * v
			}
			gradBias += diff
		}
		for j := range m.Weights {
			m.Weights[j] -= p.LearningRate * grad[j] / n
		}
		m.Bias -= p.LearningRate * gradBias / n
	}

	scores := make([]float64, len(testIdx))
	labels := make([]float64, len(testIdx))
	for k, i := range testIdx {
		scores[k] = m.scoreScaled(m.scale(x[i]))
		labels[k] = y[i]
	}

	meta := Metadata{
		ModelVersion:      uuid.NewString(),
		Algorithm:         AlgorithmLogistic,
		AUCScore:          AUC(scores, labels),
		FeatureNames:      features,
		FeatureImportance: m.importance(),
		TrainingDate:      time.Now().UTC(),
		Target:            schema.Label,
		TrainRows:         len(trainIdx),
		TestRows:          len(testIdx),
		LabelObserved:     labelObserved,
	}
	return m, meta, nil
}

// Score returns the churn probability for a single feature record.
func (m *LogisticModel) Score(r records.Record) float64 {
	raw := make([]float64, len(m.Features))
	for j, name := range m.Features {
		if v, ok := numericValue(r[name]); ok {
			raw[j] = v
		}
	}
	return m.scoreScaled(m.scale(raw))
}

// ScoreVector returns the churn probability for a raw feature vector aligned
// with m.Features.
func (m *LogisticModel) ScoreVector(raw []float64) (float64, error) {
	if len(raw) != len(m.Features) {
		return 0, fmt.Errorf("score: vector length %d != features length %d", len(raw), len(m.Features))
	}
	return m.scoreScaled(m.scale(raw)), nil
}

func (m *LogisticModel) scale(raw []float64) []float64 {
	scaled := make([]float64, len(raw))
	for j, v := range raw {
		scaled[j] = (v - m.Means[j]) / m.Stds[j]
	}
	return scaled
}

func (m *LogisticModel) scoreScaled(scaled []float64) float64 {
	z := m.Bias
	for j, v := range scaled {
		z += m.Weights[j] * v
	}
	return sigmoid(z)
}

// importance is the absolute weight per feature, normalized to sum to 1.
// Weights act on standardized inputs, so no extra variance term is needed.
func (m *LogisticModel) importance() map[string]float64 {
	var total float64
	for _, w := range m.Weights {
		total += math.Abs(w)
	}
	out := make(map[string]float64, len(m.Features))
	for j, name := range m.Features {
		if total == 0 {
			out[name] = 0
			continue
		}
		out[name] = math.Abs(m.Weights[j]) / total
	}
	return out
}

// columnStats computes per-column mean and standard deviation over the given
// row indices. Constant columns get std 1 so scaling never divides by zero.
func columnStats(x [][]float64, idx []int) (means, stds []float64) {
	cols := len(x[0])
	means = make([]float64, cols)
	stds = make([]float64, cols)
	n := float64(len(idx))

	for _, i := range idx {
		for j, v := range x[i] {
			means[j] += v
		}
	}
	for j := range means {
		means[j] /= n
	}
	for _, i := range idx {
		for j, v := range x[i] {
			d := v - means[j]
			stds[j] += d * d
		}
	}
	for j := range stds {
		stds[j] = math.Sqrt(stds[j] / n)
		if stds[j] == 0 {
			stds[j] = 1
		}
	}
	return means, stds
}

// AUC computes the area under the ROC curve by rank statistic. Tied scores
// share their average rank. A degenerate single-class sample yields 0.5.
func AUC(scores, labels []float64) float64 {
	type pair struct {
		score float64
		pos   bool
	}
	pairs := make([]pair, len(scores))
	var pos, neg float64
	for i, s := range scores {
		p := labels[i] > 0.5
		pairs[i] = pair{score: s, pos: p}
		if p {
			pos++
		} else {
			neg++
		}
	}
	if pos == 0 || neg == 0 {
		return 0.5
	}

	sort.Slice(pairs, func(i, j int) bool { return pairs[i].score < pairs[j].score })

	var rankSum float64
	i := 0
	for i < len(pairs) {
		j := i
		for j < len(pairs) && pairs[j].score == pairs[i].score {
			j++
		}
		// ranks are 1-based; ties share the average rank of the run
		avgRank := float64(i+j+1) / 2
		for k := i; k < j; k++ {
			if pairs[k].pos {
				rankSum += avgRank
			}
		}
		i = j
	}
	return (rankSum - pos*(pos+1)/2) / (pos * neg)
}

func sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}
