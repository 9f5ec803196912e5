// README: Prometheus collectors for prediction, optimisation and HTTP traffic.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry owns its own prometheus.Registry so tests can build several.
type Registry struct {
	Predictions      *prometheus.CounterVec
	Optimizations    *prometheus.CounterVec
	OptimizeDuration prometheus.Histogram
	CacheLookups     *prometheus.CounterVec
	StoreErrors      prometheus.Counter
	HTTPRequests     *prometheus.CounterVec
	HTTPDuration     *prometheus.HistogramVec

	reg *prometheus.Registry
}

func New() *Registry {
	r := &Registry{
		Predictions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "farebid_predictions_total",
				Help: "Predictions served by label",
			},
			[]string{"label"},
		),
		Optimizations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "farebid_optimizations_total",
				Help: "Bid optimisations by result",
			},
			[]string{"result"},
		),
		OptimizeDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "farebid_optimize_duration_seconds",
				Help:    "Wall time of one bid optimisation",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
			},
		),
		CacheLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "farebid_cache_lookups_total",
				Help: "Optimisation cache lookups by result",
			},
			[]string{"result"},
		),
		StoreErrors: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "farebid_decision_store_errors_total",
				Help: "Failed writes to the decision store",
			},
		),
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "farebid_http_requests_total",
				Help: "HTTP requests by method, route and status",
			},
			[]string{"method", "route", "status"},
		),
		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "farebid_http_request_duration_seconds",
				Help:    "HTTP request latency by route",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route"},
		),
		reg: prometheus.NewRegistry(),
	}
	r.reg.MustRegister(
		r.Predictions,
		r.Optimizations,
		r.OptimizeDuration,
		r.CacheLookups,
		r.StoreErrors,
		r.HTTPRequests,
		r.HTTPDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

// Gatherer exposes the underlying registry for tests.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.reg
}

func (r *Registry) ObserveOptimize(result string, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.Optimizations.WithLabelValues(result).Inc()
	r.OptimizeDuration.Observe(elapsed.Seconds())
}

func (r *Registry) ObservePrediction(label int) {
	if r == nil {
		return
	}
	name := "reject"
	if label == 1 {
		name = "accept"
	}
	r.Predictions.WithLabelValues(name).Inc()
}

func (r *Registry) ObserveCache(result string) {
	if r == nil {
		return
	}
	r.CacheLookups.WithLabelValues(result).Inc()
}

func (r *Registry) ObserveStoreError() {
	if r == nil {
		return
	}
	r.StoreErrors.Inc()
}

func (r *Registry) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.HTTPRequests.WithLabelValues(method, route, statusClass(status)).Inc()
	r.HTTPDuration.WithLabelValues(route).Observe(elapsed.Seconds())
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
