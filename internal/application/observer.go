package application

import (
	"time"

	"txexport/internal/domain"
)

// Observer receives ingestion progress. Implementations must be safe for
// concurrent use; the three category fetchers report in parallel.
type Observer interface {
	OnPageFetched(category domain.FetchCategory, page, pageSize, records int)
	OnRetry(category domain.FetchCategory, attempt int, delay time.Duration, err error)
	OnWindowShrunk(category domain.FetchCategory, from, to int)
	OnCategoryFinished(category domain.FetchCategory, records int, err error)
	OnRunFinished(records int, duration time.Duration, err error)
}

type noopObserver struct{}

func (noopObserver) OnPageFetched(domain.FetchCategory, int, int, int) {}
func (noopObserver) OnRetry(domain.FetchCategory, int, time.Duration, error) {}
func (noopObserver) OnWindowShrunk(domain.FetchCategory, int, int) {}
func (noopObserver) OnCategoryFinished(domain.FetchCategory, int, error) {}
func (noopObserver) OnRunFinished(int, time.Duration, error) {}

func observerOrNoop(observer Observer) Observer {
	if observer == nil {
		return noopObserver{}
	}
	return observer
}
