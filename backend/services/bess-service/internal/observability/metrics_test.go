package observability

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"bessanalytics/backend/services/bess-service/internal/ingestion"
	"bessanalytics/backend/services/bess-service/internal/models"
)

func TestMetricsObserveRun(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.ObserveRun(models.IngestResult{AssetsProcessed: 3, NewAssets: 1, MetricsInserted: 7}, 20*time.Millisecond, nil)
	m.ObserveRun(models.IngestResult{AssetsProcessed: 1}, time.Millisecond, fmt.Errorf("record 1: %w", ingestion.ErrValidation))
	m.ObserveRun(models.IngestResult{}, time.Millisecond, errors.New("db down"))

	if got := testutil.ToFloat64(m.counters[metricAssetsProcessed]); got != 4 {
		t.Fatalf("expected assets processed 4, got %f", got)
	}
	if got := testutil.ToFloat64(m.counters[metricInserted]); got != 7 {
		t.Fatalf("expected inserted 7, got %f", got)
	}
	for _, label := range []string{"success", "invalid", "error"} {
		if got := testutil.ToFloat64(m.runs.WithLabelValues(label)); got != 1 {
			t.Fatalf("expected one %s run, got %f", label, got)
		}
	}
	hCollector := m.histos[metricRunDuration].(prometheus.Collector)
	if samples := testutil.CollectAndCount(hCollector); samples != 1 {
		t.Fatalf("expected duration histogram to be collected once, got %d", samples)
	}
}

func TestMetricsFeedClientsGauge(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.SetFeedClients(3)
	if got := testutil.ToFloat64(m.feedClients); got != 3 {
		t.Fatalf("expected gauge 3, got %f", got)
	}
}

func TestMetricsInstrumentRecordsStatus(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	handler := m.Instrument("assets", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/bess/assets", nil))

	if got := testutil.ToFloat64(m.requests.WithLabelValues("assets", "404")); got != 1 {
		t.Fatalf("expected one 404 request, got %f", got)
	}
}

func TestNewMetricsPanicsOnDoubleRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewMetrics(reg)

	defer func() {
		if recover() == nil {
			t.Fatalf("expected duplicate registration to panic")
		}
	}()
	NewMetrics(reg)
}
