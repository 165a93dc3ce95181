package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"txexport/internal/application"
)

const triggerAck = "Transaction fetch process started. CSV will be generated."

// Trigger starts a background ingestion run.
type Trigger interface {
	Start(ctx context.Context, address string) (*application.Task, error)
}

// ReadinessCheck reports whether a dependency can serve traffic.
type ReadinessCheck func(ctx context.Context) error

type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
}

type Server struct {
	trigger   Trigger
	metrics   *Metrics
	checks    map[string]ReadinessCheck
	buildInfo BuildInfo

	// runCtx outlives individual requests so runs continue after the
	// trigger response is written. It is cancelled on shutdown.
	runCtx    context.Context
	cancelRun context.CancelFunc

	// mu orders runs.Add against Close so no run starts after Wait begins.
	mu     sync.Mutex
	closed bool
	runs   sync.WaitGroup
}

func NewServer(trigger Trigger, metrics *Metrics, checks map[string]ReadinessCheck, buildInfo BuildInfo) (*Server, error) {
	if trigger == nil {
		return nil, errors.New("http server dependencies must not be nil")
	}
	if metrics == nil {
		metrics = NewMetrics()
	}
	runCtx, cancel := context.WithCancel(context.Background())
	return &Server{
		trigger:   trigger,
		metrics:   metrics,
		checks:    checks,
		buildInfo: buildInfo,
		runCtx:    runCtx,
		cancelRun: cancel,
	}, nil
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/readyz", s.handleReady)
	mux.HandleFunc("/version", s.handleVersion)
	mux.Handle("/metrics", s.metrics.Handler())
	mux.HandleFunc("/api/ethereum/transactions", s.handleTransactions)
	return mux
}

// ListenAndServe blocks until ctx is cancelled, then stops accepting
// requests, cancels in-flight runs and waits for them to settle.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	err := server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		// Shutdown returns once in-flight handlers are done.
		<-shutdownDone
		err = nil
	}
	s.Close()
	return err
}

// Close refuses new runs, cancels running ingestions and waits for their
// goroutines. It is safe to call more than once.
func (s *Server) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.cancelRun()
	s.runs.Wait()
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	for name, check := range s.checks {
		if err := check(ctx); err != nil {
			respondError(w, http.StatusServiceUnavailable, name+" not ready")
			return
		}
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.buildInfo)
}

func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		s.answer(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	address := strings.TrimSpace(r.URL.Query().Get("walletAddress"))
	if address == "" {
		s.answer(w, http.StatusBadRequest, "walletAddress is required")
		return
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		s.answer(w, http.StatusServiceUnavailable, "server is shutting down")
		return
	}
	task, err := s.trigger.Start(s.runCtx, address)
	if err == nil {
		s.runs.Add(1)
	}
	s.mu.Unlock()

	switch {
	case errors.Is(err, application.ErrRunInProgress):
		s.answer(w, http.StatusConflict, "an export is already running")
		return
	case errors.Is(err, application.ErrInvalidAddress):
		s.answer(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		slog.Error("ingestion start failed", "address", address, "err", err)
		s.answer(w, http.StatusInternalServerError, "failed to start ingestion")
		return
	}

	s.metrics.runStarted()
	go s.watch(task)

	s.metrics.triggerAnswered(http.StatusAccepted)
	respondJSON(w, http.StatusAccepted, map[string]string{
		"message":       triggerAck,
		"walletAddress": address,
	})
}

func (s *Server) watch(task *application.Task) {
	defer s.runs.Done()
	defer s.metrics.runFinished()

	<-task.Done()
	report, err := task.Wait(context.Background())
	if err != nil {
		slog.Error("ingestion run failed", "run_id", report.RunID, "address", task.Address, "err", err)
		return
	}
	for category, categoryErr := range report.Result.Errors() {
		slog.Warn("category incomplete", "run_id", report.RunID, "category", category.String(), "err", categoryErr)
	}
}

func (s *Server) answer(w http.ResponseWriter, status int, message string) {
	s.metrics.triggerAnswered(status)
	respondError(w, status, message)
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
