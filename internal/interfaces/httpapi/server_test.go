package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"txexport/internal/application"
	"txexport/internal/domain"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type gatedIngester struct {
	gate chan struct{}
}

func (g *gatedIngester) Ingest(ctx context.Context, address string) (application.Result, error) {
	select {
	case <-g.gate:
	case <-ctx.Done():
		return application.Result{}, ctx.Err()
	}
	return application.Result{Records: []domain.TransactionRecord{{Hash: "0x1"}}}, nil
}

type countingSink struct {
	mu    sync.Mutex
	count int
}

func (s *countingSink) Export(context.Context, []string, []domain.TransactionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.count++
	return nil
}

func (s *countingSink) exports() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

func newTestServer(t *testing.T, checks map[string]ReadinessCheck) (*Server, *gatedIngester, *countingSink, *Metrics) {
	t.Helper()
	ingester := &gatedIngester{gate: make(chan struct{})}
	sink := &countingSink{}
	metrics := NewMetrics()
	runner, err := application.NewRunner(ingester, sink, nil, nil, metrics, application.RunnerConfig{ExportPath: "out.csv"})
	require.NoError(t, err)
	server, err := NewServer(runner, metrics, checks, BuildInfo{Version: "1.2.3"})
	require.NoError(t, err)
	t.Cleanup(server.Close)
	return server, ingester, sink, metrics
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestTriggerAcceptsAndRunsInBackground(t *testing.T) {
	server, ingester, sink, metrics := newTestServer(t, nil)
	handler := server.Handler()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/ethereum/transactions?walletAddress=0xabc", nil))
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, triggerAck, decode(t, rec)["message"])
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.runsInFlight))

	// A second trigger while the export file is busy is refused.
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/ethereum/transactions?walletAddress=0xdef", nil))
	assert.Equal(t, http.StatusConflict, rec.Code)

	close(ingester.gate)
	require.Eventually(t, func() bool {
		return sink.exports() == 1 && testutil.ToFloat64(metrics.runsInFlight) == 0
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.runs.WithLabelValues("success")))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.lastRunRecords))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.triggers.WithLabelValues("409")))
}

func TestTriggerRequiresAddress(t *testing.T) {
	server, _, _, _ := newTestServer(t, nil)

	for _, target := range []string{"/api/ethereum/transactions", "/api/ethereum/transactions?walletAddress=%20"} {
		rec := httptest.NewRecorder()
		server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
		assert.Equal(t, "walletAddress is required", decode(t, rec)["error"])
	}

	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/ethereum/transactions?walletAddress=0x1", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestCloseCancelsRunningIngestion(t *testing.T) {
	server, _, sink, metrics := newTestServer(t, nil)

	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/ethereum/transactions?walletAddress=0xabc", nil))
	require.Equal(t, http.StatusAccepted, rec.Code)

	server.Close()
	assert.Zero(t, sink.exports())
	assert.Equal(t, float64(0), testutil.ToFloat64(metrics.runsInFlight))
}

func TestTriggerRefusedAfterClose(t *testing.T) {
	server, _, sink, _ := newTestServer(t, nil)
	server.Close()

	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/ethereum/transactions?walletAddress=0xabc", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Zero(t, sink.exports())
}

func TestCloseRacesWithTriggers(t *testing.T) {
	server, _, _, metrics := newTestServer(t, nil)
	handler := server.Handler()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/ethereum/transactions?walletAddress=0xabc", nil))
			assert.Contains(t, []int{http.StatusAccepted, http.StatusConflict, http.StatusServiceUnavailable}, rec.Code)
		}()
	}
	server.Close()
	wg.Wait()
	server.Close()
	assert.Equal(t, float64(0), testutil.ToFloat64(metrics.runsInFlight))
}

func TestReadyzReportsFailingCheck(t *testing.T) {
	server, _, _, _ := newTestServer(t, map[string]ReadinessCheck{
		"redis": func(context.Context) error { return errors.New("down") },
	})

	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "redis not ready", decode(t, rec)["error"])
}

func TestHealthVersionAndMetrics(t *testing.T) {
	server, _, _, _ := newTestServer(t, nil)
	handler := server.Handler()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/version", nil))
	assert.Equal(t, "1.2.3", decode(t, rec)["version"])

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "go_goroutines"))
}
