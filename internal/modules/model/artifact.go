package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"farebid/internal/modules/estimator"
	"farebid/internal/modules/feature"
)

var (
	ErrArtifactUnavailable = errors.New("model artifact unavailable")
	ErrUnsupportedKind     = errors.New("unsupported estimator kind")
)

const (
	FormatVersion = "farebid/v1"

	KindLogistic = "logistic"
	KindRemote   = "remote"
)

// Artifact is the persisted form of a Model.
type Artifact struct {
	Format    string          `json:"format"`
	Version   string          `json:"version"`
	Kind      string          `json:"kind"`
	Threshold float64         `json:"threshold"`
	Features  []string        `json:"features"`
	Stats     feature.Stats   `json:"stats"`
	TrainedAt time.Time       `json:"trained_at"`
	Estimator json.RawMessage `json:"estimator,omitempty"`
	RemoteURL string          `json:"remote_url,omitempty"`
}

type LoadOptions struct {
	// RemoteURL overrides the artifact's remote estimator URL.
	RemoteURL       string
	RemoteTimeout   time.Duration
	RemoteChunkSize int
}

// Load reads and validates an artifact. Every failure wraps ErrArtifactUnavailable.
func Load(path string, opts LoadOptions) (*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrArtifactUnavailable, err)
	}
	var a Artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", ErrArtifactUnavailable, path, err)
	}
	m, err := a.Build(opts)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrArtifactUnavailable, err)
	}
	return m, nil
}

// Build validates the artifact and constructs its Model.
func (a Artifact) Build(opts LoadOptions) (*Model, error) {
	if a.Format != FormatVersion {
		return nil, fmt.Errorf("unknown artifact format %q", a.Format)
	}
	if len(a.Features) == 0 {
		return nil, errors.New("artifact lists no features")
	}
	if a.Threshold < 0 || a.Threshold > 1 {
		return nil, fmt.Errorf("threshold %v outside [0,1]", a.Threshold)
	}

	var clf estimator.Classifier
	switch a.Kind {
	case KindLogistic:
		var lr estimator.Logistic
		if err := json.Unmarshal(a.Estimator, &lr); err != nil {
			return nil, fmt.Errorf("decode logistic estimator: %w", err)
		}
		if len(lr.Weights) != len(a.Features) || len(lr.Mean) != len(a.Features) || len(lr.Scale) != len(a.Features) {
			return nil, fmt.Errorf("logistic estimator has %d weights for %d features", len(lr.Weights), len(a.Features))
		}
		clf = &lr
	case KindRemote:
		url := a.RemoteURL
		if opts.RemoteURL != "" {
			url = opts.RemoteURL
		}
		if url == "" {
			return nil, errors.New("remote estimator url is empty")
		}
		clf = estimator.NewRemote(url, a.Features, estimator.RemoteOptions{
			Timeout:   opts.RemoteTimeout,
			ChunkSize: opts.RemoteChunkSize,
		})
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedKind, a.Kind)
	}
	return New(clf, a.Threshold, a.Features, a.Stats, Meta{Version: a.Version, TrainedAt: a.TrainedAt}), nil
}

// NewArtifact captures a Model for persistence. Only logistic estimators carry weights.
func NewArtifact(m *Model) (Artifact, error) {
	a := Artifact{
		Format:    FormatVersion,
		Version:   m.Version(),
		Threshold: m.Threshold(),
		Features:  m.Features(),
		Stats:     m.Stats(),
		TrainedAt: m.TrainedAt(),
	}
	switch clf := m.Classifier().(type) {
	case *estimator.Logistic:
		raw, err := json.Marshal(clf)
		if err != nil {
			return Artifact{}, err
		}
		a.Kind = KindLogistic
		a.Estimator = raw
	default:
		return Artifact{}, fmt.Errorf("%w: %T", ErrUnsupportedKind, clf)
	}
	return a, nil
}

// Save writes the artifact atomically via a temp file in the same directory.
func Save(path string, m *Model) error {
	a, err := NewArtifact(m)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".artifact-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
