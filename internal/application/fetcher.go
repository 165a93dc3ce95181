package application

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"txexport/internal/domain"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	DefaultPageSize  = 10000
	DefaultPageDelay = 200 * time.Millisecond
	MinPageSize      = 1
)

type FetcherConfig struct {
	PageSize     int
	PageDelay    time.Duration
	NativeSymbol string
}

// Fetcher walks one category's history page by page.
type Fetcher struct {
	attempter  *Attempter
	normalizer Normalizer
	observer   Observer
	cfg        FetcherConfig
}

func NewFetcher(attempter *Attempter, observer Observer, cfg FetcherConfig) (*Fetcher, error) {
	if attempter == nil {
		return nil, errors.New("attempter is required")
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
	}
	if cfg.PageDelay < 0 {
		cfg.PageDelay = 0
	}
	return &Fetcher{
		attempter:  attempter,
		normalizer: Normalizer{NativeSymbol: cfg.NativeSymbol},
		observer:   observerOrNoop(observer),
		cfg:        cfg,
	}, nil
}

// FetchAll returns every record of the category in page order. On a
// terminal failure it returns what was fetched so far together with a
// *CategoryFetchError. A null result stops the category without an error.
func (f *Fetcher) FetchAll(ctx context.Context, address string, category domain.FetchCategory) ([]domain.TransactionRecord, error) {
	if strings.TrimSpace(address) == "" {
		return nil, ErrInvalidAddress
	}
	tracer := otel.Tracer("txexport/fetcher")
	ctx, span := tracer.Start(ctx, "fetcher.fetch_all", trace.WithAttributes(
		attribute.String("category", category.String()),
	))
	defer span.End()

	var records []domain.TransactionRecord
	page, pageSize := 1, f.cfg.PageSize
	fail := func(err error) ([]domain.TransactionRecord, error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return records, &CategoryFetchError{Category: category, Page: page, PageSize: pageSize, Err: err}
	}

	for {
		req := domain.PageRequest{Address: address, Category: category, Page: page, PageSize: pageSize}
		resp, err := f.fetchPage(ctx, tracer, req)
		if err != nil {
			return fail(err)
		}

		switch resp.Outcome {
		case OutcomeWindowTooLarge:
			if pageSize <= MinPageSize {
				return fail(ErrWindowFloor)
			}
			next := max(pageSize/2, MinPageSize)
			slog.Warn("result window too large, reducing offset",
				"category", category.String(),
				"page", page,
				"from", pageSize,
				"to", next,
			)
			f.observer.OnWindowShrunk(category, pageSize, next)
			pageSize = next
			continue
		case OutcomeNullResult:
			slog.Warn("explorer returned null result",
				"category", category.String(),
				"page", page,
				"message", resp.Message,
			)
			return records, nil
		}

		f.observer.OnPageFetched(category, page, pageSize, len(resp.Transactions))
		if len(resp.Transactions) == 0 {
			return records, nil
		}
		for _, raw := range resp.Transactions {
			records = append(records, f.normalizer.Normalize(raw, category))
		}
		page++

		if err := sleepContext(ctx, f.cfg.PageDelay); err != nil {
			return fail(err)
		}
	}
}

func (f *Fetcher) fetchPage(ctx context.Context, tracer trace.Tracer, req domain.PageRequest) (PageResponse, error) {
	ctx, span := tracer.Start(ctx, "fetcher.page", trace.WithAttributes(
		attribute.String("category", req.Category.String()),
		attribute.Int("page", req.Page),
		attribute.Int("offset", req.PageSize),
	))
	defer span.End()

	resp, err := f.attempter.Attempt(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return PageResponse{}, err
	}
	span.SetAttributes(
		attribute.String("outcome", resp.Outcome.String()),
		attribute.Int("records", len(resp.Transactions)),
	)
	return resp, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
