// README: Bid optimisation parameters, candidates and results.
package bidding

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"farebid/internal/types"
)

var (
	ErrNoFeasibleBid = errors.New("no feasible bid under probability ceiling")
	ErrInvalidParams = errors.New("invalid optimisation parameters")
	ErrStoreDisabled = errors.New("decision store not configured")
)

const (
	DefaultMultiplier         = 1.5
	DefaultProbabilityCeiling = 0.95
	DefaultSteps              = 25
	DefaultPrecision          = 2
	// MaxSteps is the largest accepted grid.
	MaxSteps = 1000

	probabilityPlaces = 4
)

// Params controls the bid grid. Zero fields (nil Precision) take defaults.
type Params struct {
	// Floor raises the lowest candidate bid above the start price; a lower floor has no effect.
	Floor              float64 `json:"floor,omitempty"`
	Multiplier         float64 `json:"multiplier"`
	ProbabilityCeiling float64 `json:"probability_ceiling"`
	Steps              int     `json:"steps"`
	// Precision is the number of decimals for money values in the result; 0 rounds to whole units.
	Precision         *int32 `json:"precision,omitempty"`
	IncludeCandidates bool   `json:"include_candidates,omitempty"`
}

func DefaultParams() Params {
	return Params{
		Multiplier:         DefaultMultiplier,
		ProbabilityCeiling: DefaultProbabilityCeiling,
		Steps:              DefaultSteps,
		Precision:          Places(DefaultPrecision),
	}
}

// Places returns a Precision value.
func Places(n int32) *int32 { return &n }

func (p Params) places() int32 {
	if p.Precision == nil {
		return DefaultPrecision
	}
	return *p.Precision
}

// WithDefaults fills zero fields from def.
func (p Params) WithDefaults(def Params) Params {
	if p.Multiplier == 0 {
		p.Multiplier = def.Multiplier
	}
	if p.ProbabilityCeiling == 0 {
		p.ProbabilityCeiling = def.ProbabilityCeiling
	}
	if p.Steps == 0 {
		p.Steps = def.Steps
	}
	if p.Precision == nil {
		p.Precision = def.Precision
	}
	return p
}

type Candidate struct {
	Bid             float64 `json:"bid"`
	Probability     float64 `json:"probability"`
	ExpectedRevenue float64 `json:"expected_revenue"`
}

func (c Candidate) rounded(places int32) Candidate {
	return Candidate{
		Bid:             types.Round(c.Bid, places),
		Probability:     types.Round(c.Probability, probabilityPlaces),
		ExpectedRevenue: types.Round(c.ExpectedRevenue, places),
	}
}

// Result carries display-rounded values of the chosen candidate.
type Result struct {
	OptimalBid     float64     `json:"optimal_bid"`
	Probability    float64     `json:"probability"`
	ExpectedIncome float64     `json:"expected_income"`
	BasePrice      float64     `json:"base_price"`
	Evaluated      int         `json:"evaluated"`
	Feasible       int         `json:"feasible"`
	Candidates     []Candidate `json:"candidates,omitempty"`
}

// Decision is the persisted audit record of one optimisation.
type Decision struct {
	ID           uuid.UUID
	OrderID      types.ID
	ModelVersion string
	Params       Params
	Result       Result
	CreatedAt    time.Time
}
