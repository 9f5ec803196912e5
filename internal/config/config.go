// README: Config loader: defaults, optional YAML file, then FAREBID_* env overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"farebid/internal/modules/bidding"
)

type HTTPConfig struct {
	Addr         string        `yaml:"addr"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	CORSOrigins  []string      `yaml:"cors_origins"`
	// APIKeys guards /api routes when non-empty.
	APIKeys []string `yaml:"api_keys"`
	// RateLimit is requests per second per client IP; 0 disables limiting.
	RateLimit float64 `yaml:"rate_limit"`
	RateBurst int     `yaml:"rate_burst"`
}

type ModelConfig struct {
	Path string `yaml:"path"`
}

type EstimatorConfig struct {
	RemoteURL string        `yaml:"remote_url"`
	Timeout   time.Duration `yaml:"timeout"`
	ChunkSize int           `yaml:"chunk_size"`
}

type OptimizerConfig struct {
	Multiplier         float64 `yaml:"multiplier"`
	ProbabilityCeiling float64 `yaml:"probability_ceiling"`
	Steps              int     `yaml:"steps"`
	Precision          int32   `yaml:"precision"`
}

func (o OptimizerConfig) Params() bidding.Params {
	return bidding.Params{
		Multiplier:         o.Multiplier,
		ProbabilityCeiling: o.ProbabilityCeiling,
		Steps:              o.Steps,
		Precision:          bidding.Places(o.Precision),
	}
}

type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Model     ModelConfig     `yaml:"model"`
	Estimator EstimatorConfig `yaml:"estimator"`
	Optimizer OptimizerConfig `yaml:"optimizer"`
	DB        struct {
		// DSN is optional; an empty value disables the decision store.
		DSN string `yaml:"dsn"`
	} `yaml:"db"`
	Redis struct {
		Addr string        `yaml:"addr"`
		TTL  time.Duration `yaml:"ttl"`
	} `yaml:"redis"`
	Log struct {
		Level  string `yaml:"level"`
		Pretty bool   `yaml:"pretty"`
	} `yaml:"log"`
}

func Default() Config {
	var cfg Config
	cfg.HTTP = HTTPConfig{
		Addr:         ":8080",
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		CORSOrigins:  []string{"*"},
		RateBurst:    20,
	}
	cfg.Model.Path = "model.json"
	cfg.Estimator = EstimatorConfig{Timeout: 2 * time.Second, ChunkSize: 256}
	cfg.Optimizer = OptimizerConfig{
		Multiplier:         bidding.DefaultMultiplier,
		ProbabilityCeiling: bidding.DefaultProbabilityCeiling,
		Steps:              bidding.DefaultSteps,
		Precision:          bidding.DefaultPrecision,
	}
	cfg.Redis.TTL = 5 * time.Minute
	cfg.Log.Level = "info"
	return cfg
}

// Load applies FAREBID_CONFIG (if set) over the defaults, then env overrides.
func Load() (Config, error) {
	cfg := Default()
	if path := os.Getenv("FAREBID_CONFIG"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return Config{}, err
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.HTTP.Addr = envOrDefault("FAREBID_HTTP_ADDR", c.HTTP.Addr)
	c.HTTP.ReadTimeout = envOrDefaultDuration("FAREBID_HTTP_READ_TIMEOUT", c.HTTP.ReadTimeout)
	c.HTTP.WriteTimeout = envOrDefaultDuration("FAREBID_HTTP_WRITE_TIMEOUT", c.HTTP.WriteTimeout)
	c.HTTP.CORSOrigins = envOrDefaultList("FAREBID_CORS_ORIGINS", c.HTTP.CORSOrigins)
	c.HTTP.APIKeys = envOrDefaultList("FAREBID_API_KEYS", c.HTTP.APIKeys)
	c.HTTP.RateLimit = envOrDefaultFloat("FAREBID_RATE_LIMIT", c.HTTP.RateLimit)
	c.HTTP.RateBurst = envOrDefaultInt("FAREBID_RATE_BURST", c.HTTP.RateBurst)
	c.Model.Path = envOrDefault("FAREBID_MODEL_PATH", c.Model.Path)
	c.Estimator.RemoteURL = envOrDefault("FAREBID_ESTIMATOR_URL", c.Estimator.RemoteURL)
	c.Estimator.Timeout = envOrDefaultDuration("FAREBID_ESTIMATOR_TIMEOUT", c.Estimator.Timeout)
	c.Estimator.ChunkSize = envOrDefaultInt("FAREBID_ESTIMATOR_CHUNK", c.Estimator.ChunkSize)
	c.Optimizer.Multiplier = envOrDefaultFloat("FAREBID_BID_MULTIPLIER", c.Optimizer.Multiplier)
	c.Optimizer.ProbabilityCeiling = envOrDefaultFloat("FAREBID_PROBABILITY_CEILING", c.Optimizer.ProbabilityCeiling)
	c.Optimizer.Steps = envOrDefaultInt("FAREBID_BID_STEPS", c.Optimizer.Steps)
	c.Optimizer.Precision = int32(envOrDefaultInt("FAREBID_BID_PRECISION", int(c.Optimizer.Precision)))
	c.DB.DSN = envOrDefault("FAREBID_DB_DSN", c.DB.DSN)
	c.Redis.Addr = envOrDefault("FAREBID_REDIS_ADDR", c.Redis.Addr)
	c.Redis.TTL = envOrDefaultDuration("FAREBID_REDIS_TTL", c.Redis.TTL)
	c.Log.Level = envOrDefault("FAREBID_LOG_LEVEL", c.Log.Level)
	c.Log.Pretty = envOrDefaultBool("FAREBID_LOG_PRETTY", c.Log.Pretty)
}

func (c Config) Validate() error {
	var errs []error
	if c.HTTP.Addr == "" {
		errs = append(errs, errors.New("http.addr is required"))
	}
	if c.Model.Path == "" {
		errs = append(errs, errors.New("model.path is required"))
	}
	if c.HTTP.RateLimit < 0 {
		errs = append(errs, errors.New("http.rate_limit must be >= 0"))
	}
	if c.Optimizer.Multiplier < 1 {
		errs = append(errs, errors.New("optimizer.multiplier must be >= 1"))
	}
	if c.Optimizer.ProbabilityCeiling <= 0 || c.Optimizer.ProbabilityCeiling > 1 {
		errs = append(errs, errors.New("optimizer.probability_ceiling must be in (0, 1]"))
	}
	if c.Optimizer.Steps < 1 || c.Optimizer.Steps > bidding.MaxSteps {
		errs = append(errs, fmt.Errorf("optimizer.steps must be in [1, %d]", bidding.MaxSteps))
	}
	if c.Optimizer.Precision < 0 {
		errs = append(errs, errors.New("optimizer.precision must be >= 0"))
	}
	return errors.Join(errs...)
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envOrDefaultInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envOrDefaultFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseFloat(v, 64); err == nil {
			return n
		}
	}
	return def
}

func envOrDefaultBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func envOrDefaultDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func envOrDefaultList(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
