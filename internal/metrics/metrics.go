// internal/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTPRequestDuration is a histogram for HTTP request latencies
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of response latency (seconds) of HTTP requests handled by the server.",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "route", "code"},
	)

	// GRPCServerHandlingSeconds is a histogram for gRPC server request latencies
	GRPCServerHandlingSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "grpc_server_handling_seconds",
			Help:    "Histogram of response latency (seconds) of gRPC that had been application-level handled by the server.",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "code"},
	)

	// PreprocessLatencySeconds is a histogram for decode+resize+normalize latency
	PreprocessLatencySeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "preprocess_latency_seconds",
			Help:    "Histogram of image preprocessing latency (seconds).",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
	)

	// InferenceLatencySeconds is a histogram for inference-only latency
	InferenceLatencySeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "inference_latency_seconds",
			Help:    "Histogram of inference latency (seconds) excluding preprocessing and HTTP overhead.",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
	)

	// PredictionsTotal counts predictions by label
	PredictionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "predictions_total",
			Help: "Number of completed predictions by label.",
		},
		[]string{"label"},
	)

	// CacheLookupsTotal counts score cache lookups by result
	CacheLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "score_cache_lookups_total",
			Help: "Number of score cache lookups by result (hit, miss).",
		},
		[]string{"result"},
	)

	// ModelLoadsTotal counts model load attempts by outcome
	ModelLoadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "model_loads_total",
			Help: "Number of classifier load attempts by outcome (ok, error).",
		},
		[]string{"outcome"},
	)

	// HealthStatus is a gauge indicating the health status of the service
	HealthStatus = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "health_status",
			Help: "Health status of the service (1 = healthy, 0 = unhealthy).",
		},
	)
)

// RecordHTTPLatency records the latency of an HTTP request
func RecordHTTPLatency(method, route, code string, seconds float64) {
	HTTPRequestDuration.WithLabelValues(method, route, code).Observe(seconds)
}

// RecordGRPCLatency records the latency of a gRPC method call
func RecordGRPCLatency(method, code string, seconds float64) {
	GRPCServerHandlingSeconds.WithLabelValues(method, code).Observe(seconds)
}

// RecordPreprocessLatency records the latency of image preprocessing
func RecordPreprocessLatency(seconds float64) {
	PreprocessLatencySeconds.Observe(seconds)
}

// RecordInferenceLatency records the latency of an inference call
func RecordInferenceLatency(seconds float64) {
	InferenceLatencySeconds.Observe(seconds)
}

// RecordPrediction counts a prediction with the given label
func RecordPrediction(label string) {
	PredictionsTotal.WithLabelValues(label).Inc()
}

// RecordCacheLookup counts a score cache hit or miss
func RecordCacheLookup(hit bool) {
	if hit {
		CacheLookupsTotal.WithLabelValues("hit").Inc()
		return
	}
	CacheLookupsTotal.WithLabelValues("miss").Inc()
}

// RecordModelLoad counts a classifier load attempt
func RecordModelLoad(err error) {
	if err != nil {
		ModelLoadsTotal.WithLabelValues("error").Inc()
		return
	}
	ModelLoadsTotal.WithLabelValues("ok").Inc()
}

// SetHealthy sets the health status to healthy
func SetHealthy() {
	HealthStatus.Set(1)
}

// SetUnhealthy sets the health status to unhealthy
func SetUnhealthy() {
	HealthStatus.Set(0)
}
