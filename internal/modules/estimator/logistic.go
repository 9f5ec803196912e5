package estimator

import (
	"context"
	"fmt"
	"math"
	"sort"
)

// Logistic is a standardised L2-regularised logistic regression.
type Logistic struct {
	Weights []float64 `json:"weights"`
	Bias    float64   `json:"bias"`
	Mean    []float64 `json:"mean"`
	Scale   []float64 `json:"scale"`
}

func (m *Logistic) PredictProba(ctx context.Context, rows [][]float64) ([]float64, error) {
	if len(m.Weights) == 0 {
		return nil, ErrNotFitted
	}
	out := make([]float64, len(rows))
	for i, r := range rows {
		if len(r) != len(m.Weights) {
			return nil, fmt.Errorf("%w: row %d has %d values, model expects %d", ErrLengthMismatch, i, len(r), len(m.Weights))
		}
		out[i] = sigmoid(m.logit(r))
	}
	return out, nil
}

func (m *Logistic) logit(r []float64) float64 {
	z := m.Bias
	for j, x := range r {
		z += m.Weights[j] * (x - m.Mean[j]) / m.Scale[j]
	}
	return z
}

// FeatureWeight is one standardised coefficient.
type FeatureWeight struct {
	Name   string
	Weight float64
}

// Importance ranks features by absolute standardised coefficient.
func (m *Logistic) Importance(names []string) []FeatureWeight {
	out := make([]FeatureWeight, 0, len(m.Weights))
	for j, w := range m.Weights {
		name := fmt.Sprintf("f%d", j)
		if j < len(names) {
			name = names[j]
		}
		out = append(out, FeatureWeight{Name: name, Weight: w})
	}
	sort.SliceStable(out, func(i, j int) bool { return math.Abs(out[i].Weight) > math.Abs(out[j].Weight) })
	return out
}

// LogisticTrainer fits Logistic with full-batch gradient descent. Deterministic for a given input.
type LogisticTrainer struct {
	Iterations   int
	LearningRate float64
	L2           float64
	// PositiveWeight scales the loss of positive samples; 0 means negatives/positives.
	PositiveWeight float64
}

func DefaultLogisticTrainer() LogisticTrainer {
	return LogisticTrainer{Iterations: 300, LearningRate: 0.5, L2: 1e-3}
}

func (t LogisticTrainer) Fit(ctx context.Context, X [][]float64, y []int) (Classifier, error) {
	if len(X) == 0 {
		return nil, ErrEmptyTrainSet
	}
	if len(X) != len(y) {
		return nil, fmt.Errorf("%w: %d rows, %d labels", ErrLengthMismatch, len(X), len(y))
	}
	dim := len(X[0])
	for i, r := range X {
		if len(r) != dim {
			return nil, fmt.Errorf("%w: row %d has %d values, want %d", ErrLengthMismatch, i, len(r), dim)
		}
	}

	m := &Logistic{
		Weights: make([]float64, dim),
		Mean:    make([]float64, dim),
		Scale:   make([]float64, dim),
	}
	standardize(X, m.Mean, m.Scale)

	pos, neg := 0, 0
	for _, v := range y {
		if v == 1 {
			pos++
		} else {
			neg++
		}
	}
	posWeight := t.PositiveWeight
	if posWeight <= 0 {
		posWeight = 1
		if pos > 0 && neg > 0 {
			posWeight = float64(neg) / float64(pos)
		}
	}

	iters := t.Iterations
	if iters <= 0 {
		iters = 300
	}
	lr := t.LearningRate
	if lr <= 0 {
		lr = 0.5
	}

	z := make([][]float64, len(X))
	for i, r := range X {
		z[i] = make([]float64, dim)
		for j, x := range r {
			z[i][j] = (x - m.Mean[j]) / m.Scale[j]
		}
	}

	grad := make([]float64, dim)
	var totalWeight float64
	for _, v := range y {
		if v == 1 {
			totalWeight += posWeight
		} else {
			totalWeight++
		}
	}
	for it := 0; it < iters; it++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for j := range grad {
			grad[j] = 0
		}
		var gradBias float64
		for i, row := range z {
			logit := m.Bias
			for j, x := range row {
				logit += m.Weights[j] * x
			}
			w := 1.0
			target := 0.0
			if y[i] == 1 {
				w = posWeight
				target = 1
			}
			e := w * (sigmoid(logit) - target)
			for j, x := range row {
				grad[j] += e * x
			}
			gradBias += e
		}
		for j := range m.Weights {
			m.Weights[j] -= lr * (grad[j]/totalWeight + t.L2*m.Weights[j])
		}
		m.Bias -= lr * gradBias / totalWeight
	}
	return m, nil
}

func standardize(X [][]float64, mean, scale []float64) {
	n := float64(len(X))
	for _, r := range X {
		for j, x := range r {
			mean[j] += x / n
		}
	}
	for _, r := range X {
		for j, x := range r {
			d := x - mean[j]
			scale[j] += d * d / n
		}
	}
	for j := range scale {
		scale[j] = math.Sqrt(scale[j])
		if scale[j] == 0 {
			scale[j] = 1
		}
	}
}

func sigmoid(z float64) float64 {
	if z >= 0 {
		return 1 / (1 + math.Exp(-z))
	}
	e := math.Exp(z)
	return e / (1 + e)
}
