package application

import (
	"errors"
	"fmt"

	"txexport/internal/domain"
)

var (
	ErrInvalidAddress    = errors.New("wallet address is required")
	ErrRetriesExhausted  = errors.New("retries exhausted")
	ErrWindowFloor       = errors.New("page size cannot shrink further")
	ErrMalformedResponse = errors.New("malformed explorer response")
	ErrExport            = errors.New("export failed")
	ErrRunInProgress     = errors.New("ingestion run already in progress")
)

// HTTPStatusError is a non-2xx explorer response. It is never retried.
type HTTPStatusError struct {
	StatusCode int
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("explorer status %d: %s", e.StatusCode, e.Body)
}

// CategoryFetchError ends one category's pagination. Records fetched before
// it are kept.
type CategoryFetchError struct {
	Category domain.FetchCategory
	Page     int
	PageSize int
	Err      error
}

func (e *CategoryFetchError) Error() string {
	return fmt.Sprintf("fetch %s page %d (offset %d): %v", e.Category, e.Page, e.PageSize, e.Err)
}

func (e *CategoryFetchError) Unwrap() error {
	return e.Err
}
