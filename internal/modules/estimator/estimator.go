// README: Probability estimator boundary. The core treats the model family as a black box.
package estimator

import (
	"context"
	"errors"
)

var (
	ErrLengthMismatch = errors.New("feature row length mismatch")
	ErrNotFitted      = errors.New("estimator not fitted")
	ErrEmptyTrainSet  = errors.New("empty training set")
)

// Classifier returns the positive-class probability for each aligned feature row.
type Classifier interface {
	PredictProba(ctx context.Context, rows [][]float64) ([]float64, error)
}

// Trainer fits a Classifier on aligned rows and 0/1 labels.
type Trainer interface {
	Fit(ctx context.Context, X [][]float64, y []int) (Classifier, error)
}

// Func adapts a per-row scoring function into a Classifier.
type Func func(row []float64) float64

func (f Func) PredictProba(ctx context.Context, rows [][]float64) ([]float64, error) {
	out := make([]float64, len(rows))
	for i, r := range rows {
		out[i] = f(r)
	}
	return out, nil
}
