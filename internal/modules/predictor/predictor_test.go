package predictor

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"farebid/internal/modules/estimator"
	"farebid/internal/modules/feature"
	"farebid/internal/modules/model"
)

func fixtureOrder() feature.OrderRecord {
	return feature.OrderRecord{
		OrderID:         "o1",
		TenderID:        "t1",
		DriverID:        "123",
		UserID:          "456",
		OrderTime:       feature.ParseTimestamp("2024-10-01 12:30:00"),
		TenderTime:      feature.ParseTimestamp("2024-10-01 12:30:15"),
		DriverRegDate:   feature.ParseTimestamp("2023-01-01"),
		Platform:        "ios",
		CarModel:        "Toyota",
		CarName:         "Camry",
		DurationSeconds: 420,
		PickupSeconds:   60,
		DistanceMeters:  3400,
		PickupMeters:    500,
		PriceStart:      100,
		PriceBid:        1000,
		DriverRating:    2,
	}
}

// goldenModel is a fixed logistic stub over four features.
func goldenModel() *model.Model {
	lr := &estimator.Logistic{
		Weights: []float64{-0.5, 0.3, 0.2, 0.1},
		Bias:    1.0,
		Mean:    []float64{0, 0, 0, 0},
		Scale:   []float64{1, 1, 1, 1},
	}
	features := []string{feature.FPriceRatio, feature.FIsIOS, feature.FDriverRating, feature.FDistanceCategory}
	return model.New(lr, model.DefaultThreshold, features, feature.Stats{}, model.Meta{Version: "golden"})
}

func TestPredict_Golden(t *testing.T) {
	p := New(goldenModel())
	got, err := p.Predict(context.Background(), fixtureOrder())
	require.NoError(t, err)
	assert.InDelta(t, 0.043107257003537125, got.Probability, 1e-9)
	assert.Equal(t, 0, got.Label)
	assert.Equal(t, 0.5, got.Threshold)

	again, err := p.Predict(context.Background(), fixtureOrder())
	require.NoError(t, err)
	assert.Equal(t, got, again, "prediction is deterministic")
}

func TestPredict_ThresholdConsistency(t *testing.T) {
	probs := []float64{0, 0.1, 0.29999, 0.3, 0.30001, 0.9, 1}
	i := 0
	clf := estimator.Func(func(row []float64) float64 {
		v := probs[i%len(probs)]
		i++
		return v
	})
	m := model.New(clf, 0.3, []string{feature.FPriceDiff}, feature.Stats{}, model.Meta{})
	recs := make([]feature.OrderRecord, len(probs))
	for j := range recs {
		recs[j] = fixtureOrder()
	}
	preds, err := New(m).PredictBatch(context.Background(), recs)
	require.NoError(t, err)
	require.Len(t, preds, len(probs))
	for _, pr := range preds {
		assert.Equal(t, pr.Probability >= pr.Threshold, pr.Label == 1, "p=%v", pr.Probability)
	}
	assert.Equal(t, 1, preds[3].Label, "probability equal to threshold is accepted")
}

func TestPredict_ZeroFillsUnknownColumns(t *testing.T) {
	var seen []float64
	clf := estimator.Func(func(row []float64) float64 {
		seen = row
		return 0.7
	})
	m := model.New(clf, 0.5, []string{"column_from_other_batch", feature.FPriceDiff}, feature.Stats{}, model.Meta{})
	got, err := New(m).Predict(context.Background(), fixtureOrder())
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 900}, seen)
	assert.Equal(t, 1, got.Label)
}

func TestPredict_ClampsProbability(t *testing.T) {
	m := model.New(estimator.Func(func([]float64) float64 { return 1.7 }), 0.5, []string{feature.FPriceDiff}, feature.Stats{}, model.Meta{})
	got, err := New(m).Predict(context.Background(), fixtureOrder())
	require.NoError(t, err)
	assert.Equal(t, 1.0, got.Probability)
}

type failingClassifier struct{}

func (failingClassifier) PredictProba(context.Context, [][]float64) ([]float64, error) {
	return nil, errors.New("scorer down")
}

func TestPredict_EstimatorError(t *testing.T) {
	m := model.New(failingClassifier{}, 0.5, []string{feature.FPriceDiff}, feature.Stats{}, model.Meta{})
	_, err := New(m).Predict(context.Background(), fixtureOrder())
	assert.ErrorContains(t, err, "scorer down")
}

func TestProbabilities_Empty(t *testing.T) {
	probs, err := New(goldenModel()).Probabilities(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, probs)
}
