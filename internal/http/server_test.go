package http

import (
	"bytes"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"farebid/internal/metrics"
	"farebid/internal/modules/bidding"
	"farebid/internal/modules/estimator"
	"farebid/internal/modules/feature"
	"farebid/internal/modules/model"
	"farebid/internal/modules/predictor"
)

// newTestServer scores p = max(0, 1 - bid/1000).
func newTestServer(t *testing.T, apiKeys ...string) http.Handler {
	t.Helper()
	gin.SetMode(gin.TestMode)
	clf := estimator.Func(func(row []float64) float64 { return math.Max(0, 1-row[0]/1000) })
	m := model.New(clf, model.DefaultThreshold, []string{feature.FPriceBidClipped}, feature.Stats{}, model.Meta{Version: "test"})
	p := predictor.New(m)
	reg := metrics.New()
	svc := bidding.NewService(bidding.NewOptimizer(p, bidding.DefaultParams()), m.Version(), nil, nil, reg)
	return NewServer(ServerDeps{Predictor: p, Bidding: svc, Metrics: reg, APIKeys: apiKeys}).Routes()
}

func orderBody(overrides map[string]any) map[string]any {
	body := map[string]any{
		"order_id":            "101",
		"tender_id":           "t1",
		"driver_id":           7,
		"user_id":             "9",
		"order_timestamp":     "2024-10-01 12:30:00",
		"tender_timestamp":    "2024-10-01 12:30:15",
		"driver_reg_date":     "2023-01-01",
		"platform":            "ios",
		"carmodel":            "Toyota",
		"carname":             "Camry",
		"duration_in_seconds": 420,
		"pickup_in_seconds":   60,
		"distance_in_meters":  3400,
		"pickup_in_meters":    500,
		"price_start_local":   400,
		"price_bid_local":     600,
		"driver_rating":       4.9,
	}
	for k, v := range overrides {
		if v == nil {
			delete(body, k)
			continue
		}
		body[k] = v
	}
	return body
}

func doJSON(h http.Handler, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestHealth(t *testing.T) {
	w := doJSON(newTestServer(t), http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "OK", w.Body.String())
}

func TestPredict(t *testing.T) {
	w := doJSON(newTestServer(t), http.MethodPost, "/api/predict", orderBody(nil))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	out := decode(t, w)
	assert.InDelta(t, 0.4, out["probability"], 1e-9)
	assert.Equal(t, 0.0, out["prediction"])
	assert.Equal(t, 0.5, out["threshold"])
	assert.Equal(t, "101", out["order_id"])
}

func TestPredict_BadInput(t *testing.T) {
	h := newTestServer(t)
	tests := []struct {
		name    string
		body    any
		wantErr string
	}{
		{name: "missing field", body: orderBody(map[string]any{"price_bid_local": nil}), wantErr: "price_bid_local"},
		{name: "negative distance", body: orderBody(map[string]any{"distance_in_meters": -1}), wantErr: "distance_in_meters"},
		{name: "wrong type", body: orderBody(map[string]any{"driver_rating": "high"}), wantErr: "invalid json"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(h, http.MethodPost, "/api/predict", tt.body)
			require.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, decode(t, w)["error"], tt.wantErr)
		})
	}
}

func TestPredictBatch(t *testing.T) {
	h := newTestServer(t)
	body := map[string]any{"orders": []any{
		orderBody(map[string]any{"price_bid_local": 100}),
		orderBody(map[string]any{"order_id": "102", "price_bid_local": 800}),
	}}
	w := doJSON(h, http.MethodPost, "/api/predict/batch", body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	preds := decode(t, w)["predictions"].([]any)
	require.Len(t, preds, 2)
	first := preds[0].(map[string]any)
	second := preds[1].(map[string]any)
	assert.InDelta(t, 0.9, first["probability"], 1e-9)
	assert.Equal(t, 1.0, first["prediction"])
	assert.InDelta(t, 0.2, second["probability"], 1e-9)
	assert.Equal(t, "102", second["order_id"])

	w = doJSON(h, http.MethodPost, "/api/predict/batch", map[string]any{"orders": []any{}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestOptimize(t *testing.T) {
	w := doJSON(newTestServer(t), http.MethodPost, "/api/optimize", orderBody(map[string]any{"probability_ceiling": 1}))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	out := decode(t, w)
	assert.InDelta(t, 500, out["optimal_bid"], 200.0/24)
	assert.Equal(t, 400.0, out["base_price"])
	assert.Contains(t, out, "expected_income")
	assert.Contains(t, out, "probability")
	assert.NotContains(t, out, "candidates")
}

func TestOptimize_Explain(t *testing.T) {
	body := orderBody(map[string]any{"price_bid_local": nil, "explain": true, "steps": 5})
	w := doJSON(newTestServer(t), http.MethodPost, "/api/optimize", body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Len(t, decode(t, w)["candidates"], 5)
}

func TestOptimize_Errors(t *testing.T) {
	h := newTestServer(t)

	w := doJSON(h, http.MethodPost, "/api/optimize", orderBody(map[string]any{"price_start_local": 10, "probability_ceiling": 0.5}))
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code, "all candidates above ceiling")

	w = doJSON(h, http.MethodPost, "/api/optimize", orderBody(map[string]any{"multiplier": 0.5}))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(h, http.MethodPost, "/api/optimize", orderBody(map[string]any{"price_start_local": 0}))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(h, http.MethodPost, "/api/optimize", orderBody(map[string]any{"steps": 100000000}))
	assert.Equal(t, http.StatusBadRequest, w.Code, "steps above the grid limit")

	w = doJSON(h, http.MethodGet, "/api/decisions/101", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestModel(t *testing.T) {
	w := doJSON(newTestServer(t), http.MethodGet, "/api/model", nil)
	require.Equal(t, http.StatusOK, w.Code)
	out := decode(t, w)
	assert.Equal(t, "test", out["version"])
	assert.Equal(t, []any{feature.FPriceBidClipped}, out["features"])
}

func TestAPIKeys(t *testing.T) {
	h := newTestServer(t, "secret")
	assert.Equal(t, http.StatusUnauthorized, doJSON(h, http.MethodGet, "/api/model", nil).Code)
	assert.Equal(t, http.StatusOK, doJSON(h, http.MethodGet, "/api/model", nil, "X-API-Key", "secret").Code)
	assert.Equal(t, http.StatusOK, doJSON(h, http.MethodGet, "/health", nil).Code)
}

func TestMetricsEndpoint(t *testing.T) {
	h := newTestServer(t)
	doJSON(h, http.MethodPost, "/api/predict", orderBody(nil))
	w := doJSON(h, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), `farebid_predictions_total{label="reject"} 1`))
}

func TestCORSPreflight(t *testing.T) {
	req := httptest.NewRequest(http.MethodOptions, "/api/predict", nil)
	req.Header.Set("Origin", "https://app.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	newTestServer(t).ServeHTTP(w, req)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}
