package metrics

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_Observe(t *testing.T) {
	r := New()
	r.ObservePrediction(1)
	r.ObservePrediction(0)
	r.ObservePrediction(0)
	r.ObserveOptimize("ok", 10*time.Millisecond)
	r.ObserveCache("hit")
	r.ObserveStoreError()

	body := scrape(t, r)
	assert.Contains(t, body, `farebid_predictions_total{label="accept"} 1`)
	assert.Contains(t, body, `farebid_predictions_total{label="reject"} 2`)
	assert.Contains(t, body, `farebid_optimizations_total{result="ok"} 1`)
	assert.Contains(t, body, `farebid_optimize_duration_seconds_count 1`)
	assert.Contains(t, body, `farebid_cache_lookups_total{result="hit"} 1`)
	assert.Contains(t, body, `farebid_decision_store_errors_total 1`)
}

func scrape(t *testing.T, r *Registry) string {
	t.Helper()
	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)
	return rec.Body.String()
}

func TestRegistry_NilSafe(t *testing.T) {
	var r *Registry
	assert.NotPanics(t, func() {
		r.ObservePrediction(1)
		r.ObserveOptimize("ok", time.Second)
		r.ObserveCache("miss")
		r.ObserveStoreError()
		r.ObserveHTTP("GET", "/health", 200, time.Millisecond)
	})
}

func TestRegistry_Handler(t *testing.T) {
	r := New()
	r.ObserveHTTP("POST", "/api/predict", 404, time.Millisecond)

	body := scrape(t, r)
	assert.Contains(t, body, `farebid_http_requests_total{method="POST",route="/api/predict",status="4xx"} 1`)
}

func TestStatusClass(t *testing.T) {
	tests := map[int]string{200: "2xx", 201: "2xx", 302: "3xx", 400: "4xx", 422: "4xx", 500: "5xx", 503: "5xx"}
	for code, want := range tests {
		assert.Equal(t, want, statusClass(code), "status %d", code)
	}
}
