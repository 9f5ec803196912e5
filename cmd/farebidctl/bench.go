package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

type benchConfig struct {
	BaseURL     string
	APIKey      string
	DSN         string
	RedisAddr   string
	Timeout     time.Duration
	Concurrency int
	Duration    time.Duration
}

type benchResult struct {
	Status  string
	Latency time.Duration
	Note    string
}

type benchCase struct {
	Name string
	Run  func(ctx context.Context, r *benchRunner) benchResult
}

type benchRunner struct {
	cfg   benchConfig
	httpc *http.Client
	db    *pgxpool.Pool
	redis *redis.Client
}

func newBenchCmd() *cobra.Command {
	var cfg benchConfig

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Smoke-test and load a running farebid API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
			ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Timeout)
			defer cancel()

			r := &benchRunner{cfg: cfg, httpc: &http.Client{Timeout: 10 * time.Second}}
			w := cmd.OutOrStdout()
			results := r.runAll(ctx, w)

			pass, fail, skipped := 0, 0, 0
			for _, res := range results {
				switch res.Status {
				case "PASS":
					pass++
				case "FAIL":
					fail++
				case "SKIP":
					skipped++
				}
			}
			fmt.Fprintf(w, "\nPASS=%d FAIL=%d SKIP=%d\n", pass, fail, skipped)
			if fail > 0 {
				return fmt.Errorf("%d bench cases failed", fail)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&cfg.BaseURL, "base-url", envOrDefault("FAREBID_BENCH_BASE_URL", "http://localhost:8080"), "API base URL")
	cmd.Flags().StringVar(&cfg.APIKey, "api-key", os.Getenv("FAREBID_BENCH_API_KEY"), "API key for /api routes")
	cmd.Flags().StringVar(&cfg.DSN, "dsn", "", "Postgres DSN to check the decision table (optional)")
	cmd.Flags().StringVar(&cfg.RedisAddr, "redis", "", "Redis address to check the cache (optional)")
	cmd.Flags().DurationVar(&cfg.Timeout, "timeout", 60*time.Second, "Total timeout")
	cmd.Flags().IntVar(&cfg.Concurrency, "concurrency", 20, "Concurrent clients for the load case")
	cmd.Flags().DurationVar(&cfg.Duration, "duration", 10*time.Second, "Duration of the load case")
	return cmd
}

func (r *benchRunner) runAll(ctx context.Context, w io.Writer) []benchResult {
	if r.cfg.DSN != "" {
		if db, err := pgxpool.New(ctx, r.cfg.DSN); err == nil {
			r.db = db
			defer db.Close()
		}
	}
	if r.cfg.RedisAddr != "" {
		r.redis = redis.NewClient(&redis.Options{Addr: r.cfg.RedisAddr})
		defer r.redis.Close()
	}

	cases := r.cases()
	results := make([]benchResult, 0, len(cases))
	for _, tc := range cases {
		res := tc.Run(ctx, r)
		results = append(results, res)
		fmt.Fprintf(w, "%-5s %s", res.Status, tc.Name)
		if res.Latency > 0 {
			fmt.Fprintf(w, " (%s)", res.Latency.Round(time.Microsecond))
		}
		if res.Note != "" {
			fmt.Fprintf(w, " - %s", res.Note)
		}
		fmt.Fprintln(w)
	}
	return results
}

func sampleOrder() map[string]any {
	return map[string]any{
		"order_id":            "bench-1",
		"tender_id":           "bench-t1",
		"driver_id":           1,
		"user_id":             2,
		"order_timestamp":     "2025-01-13 18:20:00",
		"tender_timestamp":    "2025-01-13 18:20:12",
		"driver_reg_date":     "2022-06-01",
		"platform":            "android",
		"carmodel":            "Kia",
		"carname":             "Rio",
		"duration_in_seconds": 900,
		"pickup_in_seconds":   180,
		"distance_in_meters":  5200,
		"pickup_in_meters":    900,
		"price_start_local":   220,
		"price_bid_local":     250,
		"driver_rating":       4.9,
	}
}

func (r *benchRunner) cases() []benchCase {
	base := r.cfg.BaseURL
	missing := sampleOrder()
	delete(missing, "price_bid_local")
	badParams := sampleOrder()
	badParams["multiplier"] = 0.5

	return []benchCase{
		httpCase("health", http.MethodGet, base+"/health", nil, http.StatusOK),
		httpCase("model info", http.MethodGet, base+"/api/model", nil, http.StatusOK),
		httpCase("predict", http.MethodPost, base+"/api/predict", sampleOrder(), http.StatusOK),
		httpCase("predict missing field", http.MethodPost, base+"/api/predict", missing, http.StatusBadRequest),
		httpCase("predict batch", http.MethodPost, base+"/api/predict/batch", map[string]any{"orders": []any{sampleOrder(), sampleOrder()}}, http.StatusOK),
		httpCase("optimize", http.MethodPost, base+"/api/optimize", sampleOrder(), http.StatusOK, http.StatusUnprocessableEntity),
		httpCase("optimize invalid params", http.MethodPost, base+"/api/optimize", badParams, http.StatusBadRequest),
		httpCase("metrics", http.MethodGet, base+"/metrics", nil, http.StatusOK),
		{
			Name: "decision table",
			Run: func(ctx context.Context, r *benchRunner) benchResult {
				if r.db == nil {
					return benchResult{Status: "SKIP", Note: "no --dsn"}
				}
				var n int64
				start := time.Now()
				if err := r.db.QueryRow(ctx, `SELECT count(*) FROM bid_decisions`).Scan(&n); err != nil {
					return benchResult{Status: "FAIL", Note: err.Error()}
				}
				return benchResult{Status: "PASS", Latency: time.Since(start), Note: fmt.Sprintf("rows=%d", n)}
			},
		},
		{
			Name: "cache reachable",
			Run: func(ctx context.Context, r *benchRunner) benchResult {
				if r.redis == nil {
					return benchResult{Status: "SKIP", Note: "no --redis"}
				}
				start := time.Now()
				if err := r.redis.Ping(ctx).Err(); err != nil {
					return benchResult{Status: "FAIL", Note: err.Error()}
				}
				return benchResult{Status: "PASS", Latency: time.Since(start)}
			},
		},
		{
			Name: "predict load",
			Run: func(ctx context.Context, r *benchRunner) benchResult {
				return perfLoad(ctx, r, base+"/api/predict", sampleOrder())
			},
		},
	}
}

func httpCase(name, method, url string, body any, okStatuses ...int) benchCase {
	return benchCase{
		Name: name,
		Run: func(ctx context.Context, r *benchRunner) benchResult {
			start := time.Now()
			status, err := r.do(ctx, method, url, body)
			latency := time.Since(start)
			if err != nil {
				return benchResult{Status: "FAIL", Note: err.Error()}
			}
			note := fmt.Sprintf("status=%d", status)
			if contains(okStatuses, status) {
				return benchResult{Status: "PASS", Latency: latency, Note: note}
			}
			return benchResult{Status: "FAIL", Latency: latency, Note: note}
		},
	}
}

func (r *benchRunner) do(ctx context.Context, method, url string, body any) (int, error) {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return 0, err
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if r.cfg.APIKey != "" {
		req.Header.Set("X-API-Key", r.cfg.APIKey)
	}
	resp, err := r.httpc.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, nil
}

func perfLoad(ctx context.Context, r *benchRunner, url string, payload any) benchResult {
	end := time.Now().Add(r.cfg.Duration)
	var count, errCount, limited int64
	var mu sync.Mutex
	var wg sync.WaitGroup

	for i := 0; i < r.cfg.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for time.Now().Before(end) && ctx.Err() == nil {
				status, err := r.do(ctx, http.MethodPost, url, payload)
				mu.Lock()
				switch {
				case err != nil && !errors.Is(err, context.DeadlineExceeded):
					errCount++
				case status == http.StatusTooManyRequests:
					limited++
				case err == nil:
					count++
				}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if count == 0 {
		return benchResult{Status: "FAIL", Note: "no requests completed"}
	}
	rps := float64(count) / r.cfg.Duration.Seconds()
	return benchResult{Status: "PASS", Note: fmt.Sprintf("rps=%.1f errors=%d limited=%d", rps, errCount, limited)}
}

func contains(list []int, v int) bool {
	for _, i := range list {
		if i == v {
			return true
		}
	}
	return false
}
