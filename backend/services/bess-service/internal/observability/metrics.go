package observability

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"bessanalytics/backend/services/bess-service/internal/ingestion"
	"bessanalytics/backend/services/bess-service/internal/models"
)

const (
	metricRuns            = "bess_ingest_runs_total"
	metricAssetsProcessed = "bess_ingest_assets_processed_total"
	metricNewAssets       = "bess_ingest_new_assets_total"
	metricInserted        = "bess_ingest_metrics_inserted_total"
	metricRunDuration     = "bess_ingest_run_duration_seconds"
	metricFeedClients     = "bess_dashboard_feed_clients"
	metricHTTPRequests    = "bess_http_requests_total"
	metricHTTPLatency     = "bess_http_request_duration_seconds"
)

// Metrics holds the service's Prometheus collectors.
type Metrics struct {
	runs        *prometheus.CounterVec
	counters    map[string]prometheus.Counter
	histos      map[string]prometheus.Observer
	feedClients prometheus.Gauge
	requests    *prometheus.CounterVec
	latency     *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: metricRuns,
		Help: "Ingestion runs by outcome.",
	}, []string{"outcome"})
	processed := prometheus.NewCounter(prometheus.CounterOpts{
		Name: metricAssetsProcessed,
		Help: "Asset records merged into the store.",
	})
	newAssets := prometheus.NewCounter(prometheus.CounterOpts{
		Name: metricNewAssets,
		Help: "Assets created by ingestion.",
	})
	inserted := prometheus.NewCounter(prometheus.CounterOpts{
		Name: metricInserted,
		Help: "Telemetry samples appended after dedup.",
	})
	duration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    metricRunDuration,
		Help:    "Wall time of one ingestion run.",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
	})
	feedClients := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: metricFeedClients,
		Help: "Websocket clients subscribed to the dashboard feed.",
	})
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: metricHTTPRequests,
		Help: "HTTP requests by route and status code.",
	}, []string{"route", "code"})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    metricHTTPLatency,
		Help:    "HTTP request latency by route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})

	reg.MustRegister(runs, processed, newAssets, inserted, duration, feedClients, requests, latency)

	return &Metrics{
		runs: runs,
		counters: map[string]prometheus.Counter{
			metricAssetsProcessed: processed,
			metricNewAssets:       newAssets,
			metricInserted:        inserted,
		},
		histos: map[string]prometheus.Observer{
			metricRunDuration: duration,
		},
		feedClients: feedClients,
		requests:    requests,
		latency:     latency,
	}
}

// ObserveRun implements ingestion.Observer. Counters include the committed part of failed runs.
func (m *Metrics) ObserveRun(result models.IngestResult, duration time.Duration, err error) {
	m.runs.WithLabelValues(outcome(err)).Inc()
	m.counters[metricAssetsProcessed].Add(float64(result.AssetsProcessed))
	m.counters[metricNewAssets].Add(float64(result.NewAssets))
	m.counters[metricInserted].Add(float64(result.MetricsInserted))
	m.histos[metricRunDuration].Observe(duration.Seconds())
}

// SetFeedClients records the current number of feed subscribers.
func (m *Metrics) SetFeedClients(n int) {
	m.feedClients.Set(float64(n))
}

// Instrument wraps next, counting requests under route.
func (m *Metrics) Instrument(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		m.requests.WithLabelValues(route, strconv.Itoa(rec.status)).Inc()
		m.latency.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ingestion.ErrValidation):
		return "invalid"
	default:
		return "error"
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Unwrap exposes the underlying writer to http.ResponseController.
func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}
