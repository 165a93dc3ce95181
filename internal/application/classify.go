package application

import (
	"bytes"
	"encoding/json"
	"fmt"

	"txexport/internal/domain"
)

// windowTooLargeMarker is the only signal the explorer gives for an
// oversized page; it has no structured error code.
const windowTooLargeMarker = "Result window is too large"

// PageOutcome classifies a successfully transported page response.
type PageOutcome int

const (
	OutcomePage PageOutcome = iota
	OutcomeWindowTooLarge
	OutcomeNullResult
)

func (o PageOutcome) String() string {
	switch o {
	case OutcomePage:
		return "page"
	case OutcomeWindowTooLarge:
		return "window_too_large"
	case OutcomeNullResult:
		return "null_result"
	default:
		return "unknown"
	}
}

// PageResponse is a classified explorer payload.
type PageResponse struct {
	Outcome      PageOutcome
	Transactions []domain.RawTransaction
	Message      string
}

type envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Result  json.RawMessage `json:"result"`
}

// ClassifyResponse decides what a 2xx body means for pagination. An array
// result is always a page. The window marker is only looked for when the
// result is absent, null or not an array, or when the body is not JSON.
func ClassifyResponse(body []byte) (PageResponse, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		if bytes.Contains(body, []byte(windowTooLargeMarker)) {
			return windowTooLarge(), nil
		}
		return PageResponse{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	result := bytes.TrimSpace(env.Result)
	if len(result) > 0 && result[0] == '[' {
		var elements []json.RawMessage
		if err := json.Unmarshal(result, &elements); err != nil {
			return PageResponse{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
		}
		transactions := make([]domain.RawTransaction, 0, len(elements))
		for _, element := range elements {
			transactions = append(transactions, decodeRawTransaction(element))
		}
		return PageResponse{Outcome: OutcomePage, Transactions: transactions, Message: env.Message}, nil
	}

	if bytes.Contains(body, []byte(windowTooLargeMarker)) {
		return windowTooLarge(), nil
	}
	message := env.Message
	if len(result) > 0 && !bytes.Equal(result, []byte("null")) {
		var text string
		if err := json.Unmarshal(result, &text); err == nil && text != "" {
			message = text
		}
	}
	return PageResponse{Outcome: OutcomeNullResult, Message: message}, nil
}

func windowTooLarge() PageResponse {
	return PageResponse{Outcome: OutcomeWindowTooLarge, Message: windowTooLargeMarker}
}

// decodeRawTransaction yields an empty record for elements that are not
// objects so normalization can still apply defaults.
func decodeRawTransaction(element json.RawMessage) domain.RawTransaction {
	decoder := json.NewDecoder(bytes.NewReader(element))
	decoder.UseNumber()
	var raw domain.RawTransaction
	if err := decoder.Decode(&raw); err != nil || raw == nil {
		return domain.RawTransaction{}
	}
	return raw
}
