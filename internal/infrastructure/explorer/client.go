package explorer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"txexport/internal/domain"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	DefaultBaseURL = "https://api.etherscan.io/api"
	DefaultTimeout = 30 * time.Second

	startBlock = "0"
	endBlock   = "99999999"
	sortOrder  = "asc"
)

type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// Client issues account-module list queries against an Etherscan-compatible
// explorer API. It only reports what came back; classification and retries
// happen in the caller.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("explorer api key is required")
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("parse explorer url: %w", err)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  cfg.APIKey,
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}, nil
}

// FetchPage requests one page of one category. A non-nil error means no
// response was obtained at all; any HTTP status is returned in RawResponse.
func (c *Client) FetchPage(ctx context.Context, req domain.PageRequest) (domain.RawResponse, error) {
	action := req.Category.Action()
	if action == "" {
		return domain.RawResponse{}, fmt.Errorf("unsupported category %q", req.Category)
	}

	target, err := c.pageURL(action, req)
	if err != nil {
		return domain.RawResponse{}, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return domain.RawResponse{}, err
	}
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return domain.RawResponse{}, redact(err, c.apiKey)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.RawResponse{}, fmt.Errorf("read %s page %d: %w", action, req.Page, err)
	}
	return domain.RawResponse{StatusCode: resp.StatusCode, Body: body}, nil
}

func (c *Client) pageURL(action string, req domain.PageRequest) (string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("module", "account")
	q.Set("action", action)
	q.Set("address", req.Address)
	q.Set("startblock", startBlock)
	q.Set("endblock", endBlock)
	q.Set("page", strconv.Itoa(req.Page))
	q.Set("offset", strconv.Itoa(req.PageSize))
	q.Set("sort", sortOrder)
	q.Set("apikey", c.apiKey)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// redact strips the api key from transport errors, which embed the request URL.
func redact(err error, apiKey string) error {
	if apiKey == "" || !strings.Contains(err.Error(), apiKey) {
		return err
	}
	return &redactedError{msg: strings.ReplaceAll(err.Error(), apiKey, "REDACTED"), err: err}
}

type redactedError struct {
	msg string
	err error
}

func (e *redactedError) Error() string { return e.msg }

func (e *redactedError) Unwrap() error { return e.err }
