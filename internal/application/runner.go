package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"txexport/internal/domain"
	"txexport/internal/streaming"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Ingester is satisfied by *Coordinator.
type Ingester interface {
	Ingest(ctx context.Context, address string) (Result, error)
}

// Sink writes the merged records behind a header row.
type Sink interface {
	Export(ctx context.Context, header []string, records []domain.TransactionRecord) error
}

// RunLocker serializes runs that share an export target. Acquire returns
// ErrRunInProgress when the key is already held.
type RunLocker interface {
	Acquire(ctx context.Context, key string) (release func(context.Context) error, err error)
}

type EventPublisher interface {
	PublishRunEvent(ctx context.Context, event streaming.RunEvent) error
}

type RunnerConfig struct {
	ExportPath string
	RunTimeout time.Duration
}

// Report describes one finished run.
type Report struct {
	RunID      string
	Address    string
	ExportPath string
	Result     Result
	Duration   time.Duration
}

type Runner struct {
	ingester Ingester
	sink     Sink
	locker   RunLocker
	events   EventPublisher
	observer Observer
	cfg      RunnerConfig
}

func NewRunner(ingester Ingester, sink Sink, locker RunLocker, events EventPublisher, observer Observer, cfg RunnerConfig) (*Runner, error) {
	if ingester == nil || sink == nil {
		return nil, errors.New("runner dependencies must not be nil")
	}
	if locker == nil {
		locker = NewLocalLocker()
	}
	return &Runner{
		ingester: ingester,
		sink:     sink,
		locker:   locker,
		events:   events,
		observer: observerOrNoop(observer),
		cfg:      cfg,
	}, nil
}

// Run ingests and exports synchronously.
func (r *Runner) Run(ctx context.Context, address string) (Report, error) {
	release, err := r.acquire(ctx, address)
	if err != nil {
		return Report{}, err
	}
	defer r.release(release)
	return r.execute(ctx, address)
}

// Start acquires the run lock and executes the run in the background. The
// returned Task reports the outcome to whoever owns it.
func (r *Runner) Start(ctx context.Context, address string) (*Task, error) {
	release, err := r.acquire(ctx, address)
	if err != nil {
		return nil, err
	}
	task := &Task{Address: address, done: make(chan struct{})}
	go func() {
		defer r.release(release)
		report, err := r.execute(ctx, address)
		task.finish(report, err)
	}()
	return task, nil
}

func (r *Runner) acquire(ctx context.Context, address string) (func(context.Context) error, error) {
	if strings.TrimSpace(address) == "" {
		return nil, ErrInvalidAddress
	}
	return r.locker.Acquire(ctx, "export:"+r.cfg.ExportPath)
}

func (r *Runner) release(release func(context.Context) error) {
	if release == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := release(ctx); err != nil {
		slog.Warn("run lock release failed", "err", err)
	}
}

func (r *Runner) execute(ctx context.Context, address string) (Report, error) {
	if r.cfg.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.RunTimeout)
		defer cancel()
	}
	ctx, span := otel.Tracer("txexport/runner").Start(ctx, "runner.run", trace.WithAttributes(
		attribute.String("address", address),
	))
	defer span.End()

	start := time.Now()
	report := Report{RunID: uuid.NewString(), Address: address, ExportPath: r.cfg.ExportPath}
	slog.Info("ingestion started", "run_id", report.RunID, "address", address)
	r.publish(ctx, report, streaming.RunEventStarted, nil)

	result, err := r.ingester.Ingest(ctx, address)
	report.Result = result
	if err == nil {
		if exportErr := r.sink.Export(ctx, domain.ExportHeader, result.Records); exportErr != nil {
			err = fmt.Errorf("%w: %w", ErrExport, exportErr)
		}
	}
	report.Duration = time.Since(start)
	r.observer.OnRunFinished(len(result.Records), report.Duration, err)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		r.publish(ctx, report, streaming.RunEventFailed, err)
		return report, err
	}
	slog.Info("ingestion finished",
		"run_id", report.RunID,
		"address", address,
		"records", len(result.Records),
		"failed_categories", len(result.Errors()),
		"duration", report.Duration,
	)
	r.publish(ctx, report, streaming.RunEventCompleted, nil)
	return report, nil
}

func (r *Runner) publish(ctx context.Context, report Report, eventType streaming.RunEventType, runErr error) {
	if r.events == nil {
		return
	}
	event := streaming.RunEvent{
		Type:       eventType,
		RunID:      report.RunID,
		Address:    report.Address,
		ExportPath: report.ExportPath,
		Records:    len(report.Result.Records),
		OccurredAt: time.Now().UTC(),
	}
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		event.TraceID = sc.TraceID().String()
	}
	for _, category := range report.Result.Categories {
		summary := streaming.CategorySummary{Category: category.Category.String(), Records: len(category.Records)}
		if category.Err != nil {
			summary.Error = category.Err.Error()
		}
		event.Categories = append(event.Categories, summary)
	}
	if runErr != nil {
		event.Error = runErr.Error()
	}
	// Publish failures are logged, never returned.
	publishCtx := context.WithoutCancel(ctx)
	if err := r.events.PublishRunEvent(publishCtx, event); err != nil {
		slog.Warn("run event publish failed", "run_id", report.RunID, "type", string(eventType), "err", err)
	}
}

// Task is a handle on a background run.
type Task struct {
	Address string
	done    chan struct{}
	report  Report
	err     error
}

func (t *Task) finish(report Report, err error) {
	t.report = report
	t.err = err
	close(t.done)
}

func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Wait blocks until the run finishes or ctx ends.
func (t *Task) Wait(ctx context.Context) (Report, error) {
	select {
	case <-ctx.Done():
		return Report{}, ctx.Err()
	case <-t.done:
		return t.report, t.err
	}
}
