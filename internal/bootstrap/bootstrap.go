// Package bootstrap assembles the ingestion pipeline from configuration.
package bootstrap

import (
	"context"
	"errors"
	"log/slog"

	"txexport/internal/application"
	"txexport/internal/config"
	"txexport/internal/infrastructure/csvexport"
	"txexport/internal/infrastructure/explorer"
	"txexport/internal/infrastructure/kafka"
	"txexport/internal/infrastructure/redislock"
)

type Pipeline struct {
	Runner *application.Runner
	// Checks are named dependency probes for readiness.
	Checks  map[string]func(context.Context) error
	closers []func() error
}

// Build wires the explorer client, retry, fetchers, coordinator, sink and
// the optional redis lock and kafka publisher. Optional backends that are
// configured but unreachable fail the build.
func Build(ctx context.Context, cfg config.Config, observer application.Observer) (*Pipeline, error) {
	client, err := explorer.NewClient(explorer.Config{
		BaseURL: cfg.ExplorerBaseURL,
		APIKey:  cfg.ExplorerAPIKey,
		Timeout: cfg.RequestTimeout,
	})
	if err != nil {
		return nil, err
	}
	attempter, err := application.NewAttempter(client, application.RetryPolicy{
		MaxAttempts: cfg.MaxAttempts,
		BaseDelay:   cfg.RetryBaseDelay,
	}, observer)
	if err != nil {
		return nil, err
	}
	fetcher, err := application.NewFetcher(attempter, observer, application.FetcherConfig{
		PageSize:     cfg.PageSize,
		PageDelay:    cfg.PageDelay,
		NativeSymbol: cfg.NativeSymbol,
	})
	if err != nil {
		return nil, err
	}
	coordinator, err := application.NewCoordinator(fetcher, observer)
	if err != nil {
		return nil, err
	}
	sink, err := csvexport.NewSink(cfg.ExportPath)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{Checks: make(map[string]func(context.Context) error)}

	var locker application.RunLocker
	redisLocker, err := redislock.New(ctx, redislock.Config{Addr: cfg.RedisAddr, TTL: cfg.RunLockTTL})
	if err != nil {
		return nil, err
	}
	if redisLocker != nil {
		locker = redisLocker
		p.Checks["redis"] = redisLocker.Ping
		p.closers = append(p.closers, redisLocker.Close)
		slog.Info("redis run lock enabled", "addr", cfg.RedisAddr)
	}

	var events application.EventPublisher
	if len(cfg.KafkaBrokers) > 0 {
		producer, err := kafka.NewProducer(kafka.ProducerConfig{Brokers: cfg.KafkaBrokers, Topic: cfg.KafkaTopic})
		if err != nil {
			_ = p.Close()
			return nil, err
		}
		events = producer
		p.closers = append(p.closers, producer.Close)
		slog.Info("run events enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	}

	runner, err := application.NewRunner(coordinator, sink, locker, events, observer, application.RunnerConfig{
		ExportPath: cfg.ExportPath,
		RunTimeout: cfg.RunTimeout,
	})
	if err != nil {
		_ = p.Close()
		return nil, err
	}
	p.Runner = runner
	return p, nil
}

// Close releases optional backends in reverse order of creation.
func (p *Pipeline) Close() error {
	var errs []error
	for i := len(p.closers) - 1; i >= 0; i-- {
		errs = append(errs, p.closers[i]())
	}
	p.closers = nil
	return errors.Join(errs...)
}
