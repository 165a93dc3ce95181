package streaming

import (
	"encoding/json"
	"errors"
	"time"
)

type RunEventType string

const (
	RunEventStarted   RunEventType = "run_started"
	RunEventCompleted RunEventType = "run_completed"
	RunEventFailed    RunEventType = "run_failed"
)

type CategorySummary struct {
	Category string `json:"category"`
	Records  int    `json:"records"`
	Error    string `json:"error,omitempty"`
}

// RunEvent announces an ingestion run transition.
type RunEvent struct {
	Type       RunEventType      `json:"type"`
	RunID      string            `json:"run_id"`
	TraceID    string            `json:"trace_id,omitempty"`
	Address    string            `json:"address"`
	ExportPath string            `json:"export_path,omitempty"`
	Records    int               `json:"records"`
	Categories []CategorySummary `json:"categories,omitempty"`
	Error      string            `json:"error,omitempty"`
	OccurredAt time.Time         `json:"occurred_at"`
}

func Encode(event RunEvent) ([]byte, error) {
	if event.Type == "" {
		return nil, errors.New("event type is required")
	}
	if event.Address == "" {
		return nil, errors.New("address is required")
	}
	return json.Marshal(event)
}

func Decode(payload []byte) (RunEvent, error) {
	var event RunEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return RunEvent{}, err
	}
	if event.Type == "" {
		return RunEvent{}, errors.New("event type is missing")
	}
	if event.Address == "" {
		return RunEvent{}, errors.New("address is missing")
	}
	return event, nil
}
