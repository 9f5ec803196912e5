// README: Predictor composes feature derivation, schema alignment, scoring and the decision threshold.
package predictor

import (
	"context"
	"fmt"
	"math"

	"github.com/rs/zerolog/log"

	"farebid/internal/modules/feature"
	"farebid/internal/modules/model"
)

type Prediction struct {
	Probability float64
	Label       int
	Threshold   float64
}

// Predictor is a pure function of (record, model); safe for concurrent use.
type Predictor struct {
	model   *model.Model
	deriver *feature.Deriver
}

func New(m *model.Model) *Predictor {
	p := &Predictor{model: m, deriver: feature.NewDeriver(m.Stats())}
	if missing := feature.Missing(p.deriver.Derive(feature.OrderRecord{}), m.Features()); len(missing) > 0 {
		log.Warn().Strs("columns", missing).Msg("model expects columns the deriver does not produce; they will be zero-filled")
	}
	return p
}

func (p *Predictor) Model() *model.Model { return p.model }

func (p *Predictor) Predict(ctx context.Context, rec feature.OrderRecord) (Prediction, error) {
	out, err := p.PredictBatch(ctx, []feature.OrderRecord{rec})
	if err != nil {
		return Prediction{}, err
	}
	return out[0], nil
}

// PredictBatch scores all records in one estimator call.
func (p *Predictor) PredictBatch(ctx context.Context, recs []feature.OrderRecord) ([]Prediction, error) {
	probs, err := p.Probabilities(ctx, recs)
	if err != nil {
		return nil, err
	}
	thr := p.model.Threshold()
	out := make([]Prediction, len(probs))
	for i, prob := range probs {
		out[i] = Prediction{Probability: prob, Label: Decide(prob, thr), Threshold: thr}
	}
	return out, nil
}

// Probabilities returns clamped acceptance probabilities, one per record.
func (p *Predictor) Probabilities(ctx context.Context, recs []feature.OrderRecord) ([]float64, error) {
	if len(recs) == 0 {
		return nil, nil
	}
	rows := feature.AlignBatch(p.deriver.DeriveBatch(recs), p.model.Features())
	probs, err := p.model.Classifier().PredictProba(ctx, rows)
	if err != nil {
		return nil, fmt.Errorf("predict proba: %w", err)
	}
	if len(probs) != len(recs) {
		return nil, fmt.Errorf("estimator returned %d probabilities for %d records", len(probs), len(recs))
	}
	for i, pr := range probs {
		probs[i] = clamp01(pr)
	}
	return probs, nil
}

// Decide applies the threshold: 1 iff probability >= threshold.
func Decide(probability, threshold float64) int {
	if probability >= threshold {
		return 1
	}
	return 0
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(1, v))
}
