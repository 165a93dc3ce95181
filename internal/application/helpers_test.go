package application

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"txexport/internal/domain"

	"github.com/cenkalti/backoff/v4"
)

const emptyPageBody = `{"status":"0","message":"No transactions found","result":[]}`

type step struct {
	status int
	body   string
	err    error
}

// scriptedSource replays steps per category, then serves empty pages.
// Categories in failing always return a transport error.
type scriptedSource struct {
	mu       sync.Mutex
	steps    map[domain.FetchCategory][]step
	failing  map[domain.FetchCategory]error
	requests []domain.PageRequest
}

func newScriptedSource() *scriptedSource {
	return &scriptedSource{
		steps:   make(map[domain.FetchCategory][]step),
		failing: make(map[domain.FetchCategory]error),
	}
}

func (s *scriptedSource) add(category domain.FetchCategory, steps ...step) *scriptedSource {
	s.steps[category] = append(s.steps[category], steps...)
	return s
}

func (s *scriptedSource) FetchPage(_ context.Context, req domain.PageRequest) (domain.RawResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, req)
	if err, ok := s.failing[req.Category]; ok {
		return domain.RawResponse{}, err
	}
	queue := s.steps[req.Category]
	if len(queue) == 0 {
		return domain.RawResponse{StatusCode: 200, Body: []byte(emptyPageBody)}, nil
	}
	next := queue[0]
	s.steps[req.Category] = queue[1:]
	if next.err != nil {
		return domain.RawResponse{}, next.err
	}
	status := next.status
	if status == 0 {
		status = 200
	}
	return domain.RawResponse{StatusCode: status, Body: []byte(next.body)}, nil
}

func (s *scriptedSource) requestsFor(category domain.FetchCategory) []domain.PageRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.PageRequest
	for _, req := range s.requests {
		if req.Category == category {
			out = append(out, req)
		}
	}
	return out
}

// pageBody renders a result array of n transactions with hashes prefix-0..n-1.
func pageBody(prefix string, n int) string {
	result := make([]map[string]string, 0, n)
	for i := 0; i < n; i++ {
		result = append(result, map[string]string{
			"hash":      fmt.Sprintf("%s-%d", prefix, i),
			"timeStamp": "1700000000",
			"value":     "1",
		})
	}
	payload, _ := json.Marshal(map[string]any{"status": "1", "message": "OK", "result": result})
	return string(payload)
}

// recordingTimer fires immediately and remembers every requested delay.
type recordingTimer struct {
	mu     sync.Mutex
	delays []time.Duration
	c      chan time.Time
}

func newRecordingTimer() *recordingTimer {
	return &recordingTimer{c: make(chan time.Time, 1)}
}

func (t *recordingTimer) Start(d time.Duration) {
	t.mu.Lock()
	t.delays = append(t.delays, d)
	t.mu.Unlock()
	t.c <- time.Now()
}

func (t *recordingTimer) Stop() {}

func (t *recordingTimer) C() <-chan time.Time {
	return t.c
}

func (t *recordingTimer) Delays() []time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]time.Duration(nil), t.delays...)
}

func newTestAttempter(source PageSource, policy RetryPolicy, timer *recordingTimer) *Attempter {
	attempter, err := NewAttempter(source, policy, nil)
	if err != nil {
		panic(err)
	}
	attempter.newTimer = func() backoff.Timer { return timer }
	return attempter
}

func newTestFetcher(source PageSource, policy RetryPolicy, pageSize int) (*Fetcher, *recordingTimer) {
	timer := newRecordingTimer()
	fetcher, err := NewFetcher(newTestAttempter(source, policy, timer), nil, FetcherConfig{PageSize: pageSize})
	if err != nil {
		panic(err)
	}
	return fetcher, timer
}

func hashes(records []domain.TransactionRecord) []string {
	out := make([]string, 0, len(records))
	for _, record := range records {
		out = append(out, record.Hash)
	}
	return out
}
