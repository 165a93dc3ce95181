package application

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"txexport/internal/domain"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// CategoryFetcher is satisfied by *Fetcher.
type CategoryFetcher interface {
	FetchAll(ctx context.Context, address string, category domain.FetchCategory) ([]domain.TransactionRecord, error)
}

type CategoryResult struct {
	Category domain.FetchCategory
	Records  []domain.TransactionRecord
	Err      error
}

// Result is the merged outcome of one ingestion.
type Result struct {
	Records    []domain.TransactionRecord
	Categories []CategoryResult
}

// Errors returns the failed categories only.
func (r Result) Errors() map[domain.FetchCategory]error {
	errs := make(map[domain.FetchCategory]error)
	for _, category := range r.Categories {
		if category.Err != nil {
			errs[category.Category] = category.Err
		}
	}
	return errs
}

type Coordinator struct {
	fetcher  CategoryFetcher
	observer Observer
}

func NewCoordinator(fetcher CategoryFetcher, observer Observer) (*Coordinator, error) {
	if fetcher == nil {
		return nil, errors.New("category fetcher is required")
	}
	return &Coordinator{fetcher: fetcher, observer: observerOrNoop(observer)}, nil
}

// Ingest fetches every category concurrently. A failing category never
// cancels its siblings; its partial records are still merged.
func (c *Coordinator) Ingest(ctx context.Context, address string) (Result, error) {
	if strings.TrimSpace(address) == "" {
		return Result{}, ErrInvalidAddress
	}
	ctx, span := otel.Tracer("txexport/coordinator").Start(ctx, "coordinator.ingest", trace.WithAttributes(
		attribute.String("address", address),
	))
	defer span.End()

	categories := domain.Categories()
	results := make([]CategoryResult, len(categories))

	var g errgroup.Group
	for i, category := range categories {
		g.Go(func() error {
			records, err := c.fetcher.FetchAll(ctx, address, category)
			if err != nil {
				slog.Error("category fetch failed",
					"category", category.String(),
					"records", len(records),
					"err", err,
				)
			} else {
				slog.Info("category fetched",
					"category", category.String(),
					"records", len(records),
				)
			}
			c.observer.OnCategoryFinished(category, len(records), err)
			results[i] = CategoryResult{Category: category, Records: records, Err: err}
			return nil
		})
	}
	_ = g.Wait()

	total := 0
	for _, result := range results {
		total += len(result.Records)
	}
	merged := make([]domain.TransactionRecord, 0, total)
	for _, result := range results {
		merged = append(merged, result.Records...)
	}
	span.SetAttributes(attribute.Int("records", total))
	return Result{Records: merged, Categories: results}, nil
}
