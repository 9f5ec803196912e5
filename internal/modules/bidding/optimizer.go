package bidding

import (
	"context"
	"fmt"
	"math"

	"farebid/internal/modules/feature"
	"farebid/internal/types"
)

// Scorer returns acceptance probabilities for a batch of records.
type Scorer interface {
	Probabilities(ctx context.Context, recs []feature.OrderRecord) ([]float64, error)
}

type Optimizer struct {
	scorer   Scorer
	defaults Params
}

func NewOptimizer(scorer Scorer, defaults Params) *Optimizer {
	return &Optimizer{scorer: scorer, defaults: defaults.WithDefaults(DefaultParams())}
}

// Optimize scans the bid grid and returns the revenue-maximising candidate whose probability
// does not exceed the ceiling. Ties go to the lowest bid. The call is all-or-nothing.
func (o *Optimizer) Optimize(ctx context.Context, order feature.OrderRecord, params Params) (Result, error) {
	params = params.WithDefaults(o.defaults)
	lo, hi, err := bounds(order, params)
	if err != nil {
		return Result{}, err
	}
	grid := Grid(lo, hi, params.Steps)

	recs := make([]feature.OrderRecord, len(grid))
	for i, bid := range grid {
		recs[i] = order.WithBid(bid)
	}
	probs, err := o.scorer.Probabilities(ctx, recs)
	if err != nil {
		return Result{}, fmt.Errorf("score candidates: %w", err)
	}
	if len(probs) != len(grid) {
		return Result{}, fmt.Errorf("scorer returned %d probabilities for %d candidates", len(probs), len(grid))
	}

	candidates := make([]Candidate, len(grid))
	for i, bid := range grid {
		candidates[i] = Candidate{Bid: bid, Probability: probs[i], ExpectedRevenue: bid * probs[i]}
	}

	best, feasible := Select(candidates, params.ProbabilityCeiling)
	if feasible == 0 {
		return Result{}, ErrNoFeasibleBid
	}

	shown := best.rounded(params.places())
	res := Result{
		OptimalBid:     shown.Bid,
		Probability:    shown.Probability,
		ExpectedIncome: shown.ExpectedRevenue,
		BasePrice:      types.Round(order.PriceStart, params.places()),
		Evaluated:      len(candidates),
		Feasible:       feasible,
	}
	if params.IncludeCandidates {
		res.Candidates = make([]Candidate, len(candidates))
		for i, c := range candidates {
			res.Candidates[i] = c.rounded(params.places())
		}
	}
	return res, nil
}

// Select picks the maximum expected revenue among candidates with probability <= ceiling,
// scanning in the given (ascending bid) order with a strict comparison.
func Select(candidates []Candidate, ceiling float64) (best Candidate, feasible int) {
	for _, c := range candidates {
		if c.Probability > ceiling {
			continue
		}
		feasible++
		if feasible == 1 || c.ExpectedRevenue > best.ExpectedRevenue {
			best = c
		}
	}
	return best, feasible
}

// Grid returns steps evenly spaced values over [lo, hi], both ends included.
func Grid(lo, hi float64, steps int) []float64 {
	if steps <= 1 {
		return []float64{lo}
	}
	out := make([]float64, steps)
	step := (hi - lo) / float64(steps-1)
	for i := range out {
		out[i] = lo + float64(i)*step
	}
	out[steps-1] = hi
	return out
}

func bounds(order feature.OrderRecord, p Params) (lo, hi float64, err error) {
	start := order.PriceStart
	switch {
	case math.IsNaN(start) || math.IsInf(start, 0) || start <= 0:
		return 0, 0, fmt.Errorf("%w: start price must be positive", ErrInvalidParams)
	case math.IsNaN(p.Multiplier) || math.IsInf(p.Multiplier, 0) || p.Multiplier < 1:
		return 0, 0, fmt.Errorf("%w: multiplier must be >= 1", ErrInvalidParams)
	case p.Steps < 1:
		return 0, 0, fmt.Errorf("%w: steps must be >= 1", ErrInvalidParams)
	case math.IsNaN(p.ProbabilityCeiling) || p.ProbabilityCeiling <= 0 || p.ProbabilityCeiling > 1:
		return 0, 0, fmt.Errorf("%w: probability ceiling must be in (0, 1]", ErrInvalidParams)
	case p.Steps > MaxSteps:
		return 0, 0, fmt.Errorf("%w: steps must be <= %d", ErrInvalidParams, MaxSteps)
	case p.places() < 0:
		return 0, 0, fmt.Errorf("%w: precision must be non-negative", ErrInvalidParams)
	case p.Floor < 0:
		return 0, 0, fmt.Errorf("%w: floor must be non-negative", ErrInvalidParams)
	}
	lo, hi = math.Max(start, p.Floor), start*p.Multiplier
	if lo > hi {
		return 0, 0, fmt.Errorf("%w: floor %.2f above ceiling price %.2f", ErrInvalidParams, lo, hi)
	}
	return lo, hi, nil
}
