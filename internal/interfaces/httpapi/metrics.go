package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"txexport/internal/application"
	"txexport/internal/domain"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "txexport"

// Metrics is the Prometheus-backed application.Observer. Each instance owns
// its registry so tests can build as many as they like.
type Metrics struct {
	registry *prometheus.Registry

	pagesFetched    *prometheus.CounterVec
	recordsFetched  *prometheus.CounterVec
	retries         *prometheus.CounterVec
	windowShrinks   *prometheus.CounterVec
	pageSize        *prometheus.GaugeVec
	categoryResults *prometheus.CounterVec
	runs            *prometheus.CounterVec
	runDuration     prometheus.Histogram
	lastRunRecords  prometheus.Gauge
	runsInFlight    prometheus.Gauge
	triggers        *prometheus.CounterVec
}

var _ application.Observer = (*Metrics)(nil)

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		pagesFetched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pages_fetched_total",
			Help:      "Explorer pages fetched by category.",
		}, []string{"category"}),
		recordsFetched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_fetched_total",
			Help:      "Normalized records fetched by category.",
		}, []string{"category"}),
		retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retries_total",
			Help:      "Page request retries by category.",
		}, []string{"category"}),
		windowShrinks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "window_shrinks_total",
			Help:      "Page size halvings after a result window rejection.",
		}, []string{"category"}),
		pageSize: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "page_size",
			Help:      "Page size of the last request by category.",
		}, []string{"category"}),
		categoryResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "category_fetches_total",
			Help:      "Finished category fetches by outcome.",
		}, []string{"category", "status"}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Finished ingestion runs by outcome.",
		}, []string{"status"}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of ingestion runs.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		}),
		lastRunRecords: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_records",
			Help:      "Records exported by the last successful run.",
		}),
		runsInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "runs_in_flight",
			Help:      "Runs started over HTTP and not yet finished.",
		}),
		triggers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "triggers_total",
			Help:      "HTTP trigger requests by response code.",
		}, []string{"code"}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.pagesFetched,
		m.recordsFetched,
		m.retries,
		m.windowShrinks,
		m.pageSize,
		m.categoryResults,
		m.runs,
		m.runDuration,
		m.lastRunRecords,
		m.runsInFlight,
		m.triggers,
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) OnPageFetched(category domain.FetchCategory, _ int, pageSize, records int) {
	label := category.String()
	m.pagesFetched.WithLabelValues(label).Inc()
	m.recordsFetched.WithLabelValues(label).Add(float64(records))
	m.pageSize.WithLabelValues(label).Set(float64(pageSize))
}

func (m *Metrics) OnRetry(category domain.FetchCategory, _ int, _ time.Duration, _ error) {
	m.retries.WithLabelValues(category.String()).Inc()
}

func (m *Metrics) OnWindowShrunk(category domain.FetchCategory, _, to int) {
	m.windowShrinks.WithLabelValues(category.String()).Inc()
	m.pageSize.WithLabelValues(category.String()).Set(float64(to))
}

func (m *Metrics) OnCategoryFinished(category domain.FetchCategory, _ int, err error) {
	m.categoryResults.WithLabelValues(category.String(), statusOf(err)).Inc()
}

func (m *Metrics) OnRunFinished(records int, duration time.Duration, err error) {
	m.runs.WithLabelValues(statusOf(err)).Inc()
	m.runDuration.Observe(duration.Seconds())
	if err == nil {
		m.lastRunRecords.Set(float64(records))
	}
}

func (m *Metrics) runStarted()  { m.runsInFlight.Inc() }
func (m *Metrics) runFinished() { m.runsInFlight.Dec() }

func (m *Metrics) triggerAnswered(code int) {
	m.triggers.WithLabelValues(strconv.Itoa(code)).Inc()
}

func statusOf(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, application.ErrRetriesExhausted):
		return "retries_exhausted"
	case errors.Is(err, application.ErrWindowFloor):
		return "window_floor"
	case errors.Is(err, application.ErrExport):
		return "export_failed"
	default:
		return "error"
	}
}
