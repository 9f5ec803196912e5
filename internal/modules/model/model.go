// README: Thresholded model: estimator, decision threshold, feature order and frozen stats.
package model

import (
	"time"

	"farebid/internal/modules/estimator"
	"farebid/internal/modules/feature"
)

const DefaultThreshold = 0.5

// Model is immutable once built and shared read-only across requests.
type Model struct {
	clf       estimator.Classifier
	threshold float64
	features  []string
	stats     feature.Stats
	version   string
	trainedAt time.Time
}

type Meta struct {
	Version   string
	TrainedAt time.Time
}

func New(clf estimator.Classifier, threshold float64, features []string, stats feature.Stats, meta Meta) *Model {
	return &Model{
		clf:       clf,
		threshold: threshold,
		features:  append([]string(nil), features...),
		stats:     stats,
		version:   meta.Version,
		trainedAt: meta.TrainedAt,
	}
}

func (m *Model) Classifier() estimator.Classifier { return m.clf }
func (m *Model) Threshold() float64               { return m.threshold }
func (m *Model) Stats() feature.Stats             { return m.stats }
func (m *Model) Version() string                  { return m.version }
func (m *Model) TrainedAt() time.Time             { return m.trainedAt }

// Features returns a copy of the ordered feature names the estimator expects.
func (m *Model) Features() []string {
	return append([]string(nil), m.features...)
}
