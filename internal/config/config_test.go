package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("FAREBID_CONFIG", "")
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, "model.json", cfg.Model.Path)
	assert.Equal(t, 1.5, cfg.Optimizer.Multiplier)
	assert.Equal(t, 0.95, cfg.Optimizer.ProbabilityCeiling)
	assert.Equal(t, 25, cfg.Optimizer.Steps)
	assert.Equal(t, int32(2), cfg.Optimizer.Precision)
	assert.Equal(t, 5*time.Minute, cfg.Redis.TTL)
	assert.Empty(t, cfg.DB.DSN)
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "farebid.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
http:
  addr: ":9000"
  cors_origins: ["https://a.example"]
  rate_limit: 5
optimizer:
  steps: 11
  probability_ceiling: 0.9
redis:
  addr: "localhost:6379"
  ttl: 30s
`), 0o600))
	t.Setenv("FAREBID_CONFIG", path)
	t.Setenv("FAREBID_BID_STEPS", "41")
	t.Setenv("FAREBID_CORS_ORIGINS", "https://b.example, https://c.example")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.HTTP.Addr)
	assert.Equal(t, 5.0, cfg.HTTP.RateLimit)
	assert.Equal(t, 41, cfg.Optimizer.Steps, "env wins over file")
	assert.Equal(t, 0.9, cfg.Optimizer.ProbabilityCeiling)
	assert.Equal(t, 1.5, cfg.Optimizer.Multiplier, "unset keys keep defaults")
	assert.Equal(t, []string{"https://b.example", "https://c.example"}, cfg.HTTP.CORSOrigins)
	assert.Equal(t, 30*time.Second, cfg.Redis.TTL)

	p := cfg.Optimizer.Params()
	assert.Equal(t, 41, p.Steps)
	assert.Equal(t, 0.9, p.ProbabilityCeiling)
}

func TestLoad_BadFile(t *testing.T) {
	t.Setenv("FAREBID_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))
	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_Invalid(t *testing.T) {
	t.Setenv("FAREBID_CONFIG", "")
	t.Setenv("FAREBID_PROBABILITY_CEILING", "1.5")
	_, err := Load()
	assert.ErrorContains(t, err, "probability_ceiling")
}

func TestLoad_OptimizerBounds(t *testing.T) {
	t.Setenv("FAREBID_CONFIG", "")
	t.Setenv("FAREBID_BID_STEPS", "5000")
	_, err := Load()
	assert.ErrorContains(t, err, "optimizer.steps")
}

func TestOptimizerConfig_ZeroPrecision(t *testing.T) {
	p := OptimizerConfig{Multiplier: 1.5, ProbabilityCeiling: 0.9, Steps: 5, Precision: 0}.Params()
	require.NotNil(t, p.Precision)
	assert.Equal(t, int32(0), *p.Precision)
}

func TestEnvHelpers(t *testing.T) {
	t.Setenv("X_INT", "nope")
	assert.Equal(t, 7, envOrDefaultInt("X_INT", 7))
	t.Setenv("X_DUR", "250ms")
	assert.Equal(t, 250*time.Millisecond, envOrDefaultDuration("X_DUR", time.Second))
	t.Setenv("X_BOOL", "true")
	assert.True(t, envOrDefaultBool("X_BOOL", false))
}
