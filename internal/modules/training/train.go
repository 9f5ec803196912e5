// README: Training run: fit batch statistics, derive, split, fit an estimator and report quality.
package training

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"farebid/internal/modules/estimator"
	"farebid/internal/modules/feature"
	"farebid/internal/modules/model"
)

var ErrNoLabels = errors.New("no labelled records")

const (
	DefaultTestFraction = 0.2
	DefaultSeed         = 42
)

type Config struct {
	TestFraction float64
	// Seed 0 takes DefaultSeed.
	Seed      int64
	Threshold float64
	Version   string
	Features  []string
	Trainer   estimator.Trainer
}

func DefaultConfig() Config {
	return Config{
		TestFraction: DefaultTestFraction,
		Seed:         DefaultSeed,
		Threshold:    model.DefaultThreshold,
		Features:     feature.Columns,
		Trainer:      estimator.DefaultLogisticTrainer(),
	}
}

type Outcome struct {
	Model     *model.Model
	Train     Report
	Test      Report
	Labelled  int
	Unlabeled int
}

// Run trains on records whose outcome is done or cancel. Batch statistics are fitted
// on every labelled record before the split and frozen into the model.
func Run(ctx context.Context, recs []feature.OrderRecord, cfg Config) (*Outcome, error) {
	cfg = withDefaults(cfg)

	labelled := make([]feature.OrderRecord, 0, len(recs))
	labels := make([]int, 0, len(recs))
	for _, r := range recs {
		y, ok := feature.Label(r)
		if !ok {
			continue
		}
		labelled = append(labelled, r)
		labels = append(labels, y)
	}
	if len(labelled) == 0 {
		return nil, ErrNoLabels
	}

	stats := feature.FitStats(labelled)
	rows := feature.AlignBatch(feature.NewDeriver(stats).DeriveBatch(labelled), cfg.Features)

	trainIdx, testIdx := StratifiedSplit(labels, cfg.TestFraction, cfg.Seed)
	Xtr, ytr := pick(rows, labels, trainIdx)
	Xte, yte := pick(rows, labels, testIdx)

	log.Info().
		Int("labelled", len(labelled)).
		Int("train", len(trainIdx)).
		Int("test", len(testIdx)).
		Int("features", len(cfg.Features)).
		Msg("training estimator")

	clf, err := cfg.Trainer.Fit(ctx, Xtr, ytr)
	if err != nil {
		return nil, fmt.Errorf("fit estimator: %w", err)
	}

	out := &Outcome{Labelled: len(labelled), Unlabeled: len(recs) - len(labelled)}
	if out.Train, err = score(ctx, clf, Xtr, ytr, cfg.Threshold); err != nil {
		return nil, err
	}
	if len(Xte) > 0 {
		if out.Test, err = score(ctx, clf, Xte, yte, cfg.Threshold); err != nil {
			return nil, err
		}
	}

	version := cfg.Version
	if version == "" {
		version = time.Now().UTC().Format("20060102T150405Z")
	}
	out.Model = model.New(clf, cfg.Threshold, cfg.Features, stats, model.Meta{Version: version, TrainedAt: time.Now().UTC()})
	return out, nil
}

func score(ctx context.Context, clf estimator.Classifier, X [][]float64, y []int, threshold float64) (Report, error) {
	probs, err := clf.PredictProba(ctx, X)
	if err != nil {
		return Report{}, fmt.Errorf("score split: %w", err)
	}
	return Evaluate(y, probs, threshold)
}

func pick(rows [][]float64, labels []int, idx []int) ([][]float64, []int) {
	X := make([][]float64, len(idx))
	y := make([]int, len(idx))
	for i, j := range idx {
		X[i] = rows[j]
		y[i] = labels[j]
	}
	return X, y
}

func withDefaults(cfg Config) Config {
	def := DefaultConfig()
	if cfg.TestFraction <= 0 || cfg.TestFraction >= 1 {
		cfg.TestFraction = def.TestFraction
	}
	if cfg.Seed == 0 {
		cfg.Seed = def.Seed
	}
	if cfg.Threshold == 0 {
		cfg.Threshold = def.Threshold
	}
	if len(cfg.Features) == 0 {
		cfg.Features = def.Features
	}
	if cfg.Trainer == nil {
		cfg.Trainer = def.Trainer
	}
	return cfg
}
