package bidding

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"farebid/internal/modules/estimator"
	"farebid/internal/modules/feature"
	"farebid/internal/modules/model"
	"farebid/internal/modules/predictor"
)

// bidScorer scores each record from its bid alone and counts batch calls.
type bidScorer struct {
	fn    func(bid float64) float64
	calls int
	err   error
}

func (s *bidScorer) Probabilities(_ context.Context, recs []feature.OrderRecord) ([]float64, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	out := make([]float64, len(recs))
	for i, r := range recs {
		out[i] = s.fn(r.PriceBid)
	}
	return out, nil
}

func order(start float64) feature.OrderRecord {
	return feature.OrderRecord{
		OrderID:        "o1",
		OrderTime:      feature.ParseTimestamp("2024-10-01 12:30:00"),
		DistanceMeters: 3400,
		PriceStart:     start,
		PriceBid:       start,
		DriverRating:   4.9,
	}
}

func linearDecay(bid float64) float64 { return math.Max(0, 1-bid/1000) }

func TestGrid(t *testing.T) {
	g := Grid(100, 150, 25)
	require.Len(t, g, 25)
	assert.Equal(t, 100.0, g[0])
	assert.Equal(t, 150.0, g[24])
	for i := 1; i < len(g); i++ {
		assert.InDelta(t, 50.0/24, g[i]-g[i-1], 1e-9)
	}

	assert.Equal(t, []float64{100}, Grid(100, 150, 1))
	assert.Equal(t, []float64{100, 100, 100}, Grid(100, 100, 3))
}

func TestOptimize_ClosedFormOptimum(t *testing.T) {
	tests := []struct {
		name       string
		start      float64
		multiplier float64
		want       float64
	}{
		{name: "interior optimum", start: 400, multiplier: 1.5, want: 500},
		{name: "upper edge", start: 100, multiplier: 2, want: 200},
		{name: "lower edge", start: 600, multiplier: 1.5, want: 600},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &bidScorer{fn: linearDecay}
			opt := NewOptimizer(s, DefaultParams())
			res, err := opt.Optimize(context.Background(), order(tt.start), Params{Multiplier: tt.multiplier, ProbabilityCeiling: 1})
			require.NoError(t, err)

			step := tt.start * (tt.multiplier - 1) / float64(DefaultSteps-1)
			assert.InDelta(t, tt.want, res.OptimalBid, step)
			assert.Equal(t, 1, s.calls, "candidates are scored in one batch")
		})
	}
}

func TestOptimize_ThroughPredictor(t *testing.T) {
	clf := estimator.Func(func(row []float64) float64 { return linearDecay(row[0]) })
	m := model.New(clf, model.DefaultThreshold, []string{feature.FPriceBidClipped}, feature.Stats{}, model.Meta{Version: "test"})
	opt := NewOptimizer(predictor.New(m), DefaultParams())

	res, err := opt.Optimize(context.Background(), order(400), Params{ProbabilityCeiling: 1})
	require.NoError(t, err)
	assert.InDelta(t, 500, res.OptimalBid, 200.0/24)
	assert.InDelta(t, res.OptimalBid*res.Probability, res.ExpectedIncome, 0.01)
	assert.Equal(t, 400.0, res.BasePrice)
}

func TestOptimize_EvaluatesFullGrid(t *testing.T) {
	s := &bidScorer{fn: func(float64) float64 { return 0.5 }}
	opt := NewOptimizer(s, DefaultParams())
	res, err := opt.Optimize(context.Background(), order(100), Params{IncludeCandidates: true})
	require.NoError(t, err)

	assert.Equal(t, 25, res.Evaluated)
	assert.Equal(t, 25, res.Feasible)
	require.Len(t, res.Candidates, 25)
	assert.Equal(t, 100.0, res.Candidates[0].Bid)
	assert.Equal(t, 150.0, res.Candidates[24].Bid)
	assert.Equal(t, 150.0, res.OptimalBid)
	assert.Equal(t, 75.0, res.ExpectedIncome)
}

func TestOptimize_CandidatesOmittedByDefault(t *testing.T) {
	opt := NewOptimizer(&bidScorer{fn: linearDecay}, DefaultParams())
	res, err := opt.Optimize(context.Background(), order(100), Params{})
	require.NoError(t, err)
	assert.Nil(t, res.Candidates)
}

func TestOptimize_CeilingFilter(t *testing.T) {
	// Low bids are near-certain and would win on revenue without the ceiling.
	fn := func(bid float64) float64 {
		if bid < 120 {
			return 0.99
		}
		return 0.5
	}
	opt := NewOptimizer(&bidScorer{fn: fn}, DefaultParams())
	res, err := opt.Optimize(context.Background(), order(100), Params{IncludeCandidates: true})
	require.NoError(t, err)

	assert.LessOrEqual(t, res.Probability, DefaultProbabilityCeiling)
	assert.Equal(t, 150.0, res.OptimalBid)
	assert.Less(t, res.Feasible, res.Evaluated)
	assert.Len(t, res.Candidates, res.Evaluated)
}

func TestOptimize_NoFeasibleBid(t *testing.T) {
	opt := NewOptimizer(&bidScorer{fn: func(float64) float64 { return 0.99 }}, DefaultParams())
	_, err := opt.Optimize(context.Background(), order(100), Params{})
	assert.ErrorIs(t, err, ErrNoFeasibleBid)
}

func TestOptimize_TieGoesToLowestBid(t *testing.T) {
	fn := func(bid float64) float64 {
		if bid == 100 {
			return 0.5
		}
		return 0.25
	}
	opt := NewOptimizer(&bidScorer{fn: fn}, DefaultParams())
	res, err := opt.Optimize(context.Background(), order(100), Params{Multiplier: 2, Steps: 2})
	require.NoError(t, err)
	assert.Equal(t, 100.0, res.OptimalBid)
	assert.Equal(t, 50.0, res.ExpectedIncome)
}

func TestOptimize_SingleStep(t *testing.T) {
	opt := NewOptimizer(&bidScorer{fn: linearDecay}, DefaultParams())
	res, err := opt.Optimize(context.Background(), order(120), Params{Steps: 1})
	require.NoError(t, err)
	assert.Equal(t, 120.0, res.OptimalBid)
	assert.Equal(t, 1, res.Evaluated)
}

func TestOptimize_Floor(t *testing.T) {
	opt := NewOptimizer(&bidScorer{fn: linearDecay}, DefaultParams())
	res, err := opt.Optimize(context.Background(), order(400), Params{Floor: 550, ProbabilityCeiling: 1, IncludeCandidates: true})
	require.NoError(t, err)
	assert.Equal(t, 550.0, res.Candidates[0].Bid)
	assert.Equal(t, 550.0, res.OptimalBid)

	res, err = opt.Optimize(context.Background(), order(400), Params{Floor: 50, ProbabilityCeiling: 1, IncludeCandidates: true})
	require.NoError(t, err)
	assert.Equal(t, 400.0, res.Candidates[0].Bid, "a floor below the start price is ignored")
	for _, c := range res.Candidates {
		assert.GreaterOrEqual(t, c.Bid, 400.0)
	}
}

func TestOptimize_ZeroPrecision(t *testing.T) {
	opt := NewOptimizer(&bidScorer{fn: linearDecay}, DefaultParams())
	res, err := opt.Optimize(context.Background(), order(100.4), Params{Steps: 1, Precision: Places(0)})
	require.NoError(t, err)
	assert.Equal(t, 100.0, res.OptimalBid)
	assert.Equal(t, 100.0, res.BasePrice)
}

func TestOptimize_InvalidParams(t *testing.T) {
	tests := []struct {
		name   string
		start  float64
		params Params
	}{
		{name: "zero start price", start: 0},
		{name: "negative start price", start: -5},
		{name: "multiplier below one", start: 100, params: Params{Multiplier: 0.5}},
		{name: "negative steps", start: 100, params: Params{Steps: -1}},
		{name: "ceiling above one", start: 100, params: Params{ProbabilityCeiling: 1.5}},
		{name: "negative ceiling", start: 100, params: Params{ProbabilityCeiling: -0.1}},
		{name: "floor above range", start: 100, params: Params{Floor: 200}},
		{name: "negative precision", start: 100, params: Params{Precision: Places(-1)}},
		{name: "too many steps", start: 100, params: Params{Steps: MaxSteps + 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &bidScorer{fn: linearDecay}
			_, err := NewOptimizer(s, DefaultParams()).Optimize(context.Background(), order(tt.start), tt.params)
			assert.ErrorIs(t, err, ErrInvalidParams)
			assert.Equal(t, 0, s.calls)
		})
	}
}

func TestOptimize_ScorerError(t *testing.T) {
	boom := errors.New("boom")
	_, err := NewOptimizer(&bidScorer{err: boom}, DefaultParams()).Optimize(context.Background(), order(100), Params{})
	assert.ErrorIs(t, err, boom)
}

func TestSelect(t *testing.T) {
	cands := []Candidate{
		{Bid: 100, Probability: 0.96, ExpectedRevenue: 96},
		{Bid: 110, Probability: 0.6, ExpectedRevenue: 66},
		{Bid: 120, Probability: 0.55, ExpectedRevenue: 66},
		{Bid: 130, Probability: 0.4, ExpectedRevenue: 52},
	}
	best, feasible := Select(cands, 0.95)
	assert.Equal(t, 3, feasible)
	assert.Equal(t, 110.0, best.Bid)

	_, feasible = Select(cands[:1], 0.95)
	assert.Equal(t, 0, feasible)
}

func TestParams_WithDefaults(t *testing.T) {
	p := Params{Steps: 10}.WithDefaults(DefaultParams())
	assert.Equal(t, 10, p.Steps)
	assert.Equal(t, DefaultMultiplier, p.Multiplier)
	assert.Equal(t, DefaultProbabilityCeiling, p.ProbabilityCeiling)
	require.NotNil(t, p.Precision)
	assert.Equal(t, int32(DefaultPrecision), *p.Precision)

	p = Params{Precision: Places(0)}.WithDefaults(DefaultParams())
	assert.Equal(t, int32(0), *p.Precision)
}
