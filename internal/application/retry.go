package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"txexport/internal/domain"

	"github.com/cenkalti/backoff/v4"
)

const (
	DefaultMaxAttempts = 5
	DefaultBaseDelay   = time.Second
	// MaxRetryDelay caps a single backoff wait however many attempts are
	// configured.
	MaxRetryDelay = 10 * time.Minute
)

// PageSource issues one page request. A returned error is a transport
// failure; HTTP statuses are reported through RawResponse.
type PageSource interface {
	FetchPage(ctx context.Context, req domain.PageRequest) (domain.RawResponse, error)
}

type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

// Attempter runs one page request through the retry protocol: transport
// failures back off exponentially, everything else is final.
type Attempter struct {
	source   PageSource
	policy   RetryPolicy
	observer Observer
	newTimer func() backoff.Timer
}

func NewAttempter(source PageSource, policy RetryPolicy, observer Observer) (*Attempter, error) {
	if source == nil {
		return nil, errors.New("page source is required")
	}
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = DefaultMaxAttempts
	}
	if policy.BaseDelay <= 0 {
		policy.BaseDelay = DefaultBaseDelay
	}
	return &Attempter{source: source, policy: policy, observer: observerOrNoop(observer)}, nil
}

func (a *Attempter) Attempt(ctx context.Context, req domain.PageRequest) (PageResponse, error) {
	attempt := 0
	operation := func() (PageResponse, error) {
		attempt++
		raw, err := a.source.FetchPage(ctx, req)
		if err != nil {
			slog.Warn("page request failed",
				"category", req.Category.String(),
				"page", req.Page,
				"offset", req.PageSize,
				"attempt", attempt,
				"err", err,
			)
			return PageResponse{}, err
		}
		if raw.StatusCode < 200 || raw.StatusCode >= 300 {
			return PageResponse{}, backoff.Permanent(&HTTPStatusError{StatusCode: raw.StatusCode, Body: string(raw.Body)})
		}
		resp, err := ClassifyResponse(raw.Body)
		if err != nil {
			return PageResponse{}, backoff.Permanent(err)
		}
		return resp, nil
	}
	notify := func(err error, delay time.Duration) {
		a.observer.OnRetry(req.Category, attempt, delay, err)
	}

	var timer backoff.Timer
	if a.newTimer != nil {
		timer = a.newTimer()
	}
	resp, err := backoff.RetryNotifyWithTimerAndData(operation, a.schedule(ctx), notify, timer)
	if err == nil {
		return resp, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return PageResponse{}, ctxErr
	}
	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) || errors.Is(err, ErrMalformedResponse) {
		return PageResponse{}, err
	}
	return PageResponse{}, fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, attempt, err)
}

// schedule waits BaseDelay*2^i before attempt i+1 with no jitter, capped at
// MaxRetryDelay.
func (a *Attempter) schedule(ctx context.Context) backoff.BackOff {
	exp := &backoff.ExponentialBackOff{
		InitialInterval:     a.policy.BaseDelay,
		RandomizationFactor: 0,
		Multiplier:          2,
		MaxInterval:         max(a.policy.BaseDelay, MaxRetryDelay),
		MaxElapsedTime:      0,
		Stop:                backoff.Stop,
		Clock:               backoff.SystemClock,
	}
	exp.Reset()
	return backoff.WithContext(backoff.WithMaxRetries(exp, uint64(a.policy.MaxAttempts-1)), ctx)
}
