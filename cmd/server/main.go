package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"txexport/internal/bootstrap"
	"txexport/internal/config"
	"txexport/internal/infrastructure/logging"
	"txexport/internal/infrastructure/telemetry"
	"txexport/internal/interfaces/httpapi"
)

var (
	version   = "dev"
	commit    = "none"
	buildTime = "unknown"
)

func main() {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logCloser, err := logging.Init(logging.Config(cfg.Log))
	if err != nil {
		log.Fatalf("logging error: %v", err)
	}
	defer logCloser.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	shutdownTracing, err := telemetry.InitTracer(ctx, "txexport-server", version, cfg.OtelEndpoint)
	if err != nil {
		slog.Warn("tracing init failed", "err", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			slog.Warn("tracing shutdown failed", "err", err)
		}
	}()

	metrics := httpapi.NewMetrics()
	pipeline, err := bootstrap.Build(ctx, cfg, metrics)
	if err != nil {
		log.Fatalf("pipeline error: %v", err)
	}
	defer func() {
		if err := pipeline.Close(); err != nil {
			slog.Warn("pipeline close failed", "err", err)
		}
	}()

	checks := make(map[string]httpapi.ReadinessCheck, len(pipeline.Checks))
	for name, check := range pipeline.Checks {
		checks[name] = check
	}
	server, err := httpapi.NewServer(pipeline.Runner, metrics, checks, httpapi.BuildInfo{
		Version:   version,
		Commit:    commit,
		BuildTime: buildTime,
	})
	if err != nil {
		log.Fatalf("http server error: %v", err)
	}

	slog.Info("http server listening", "addr", cfg.HTTPAddr, "export_path", cfg.ExportPath)
	if err := server.ListenAndServe(ctx, cfg.HTTPAddr); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("http server failed", "err", err)
		os.Exit(1)
	}
	slog.Info("http server stopped")
}
