package event

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var ErrMalformed = errors.New("malformed event")

// Event is the bus envelope: {type, userId, data, timestamp}.
type Event struct {
	Type      string         `json:"type"`
	UserID    string         `json:"userId"`
	Data      map[string]any `json:"data"`
	Timestamp time.Time      `json:"timestamp"`
}

// Parse decodes and validates a raw bus payload. Shape violations come back
// wrapped in ErrMalformed so callers can route them to the dead-letter list.
func Parse(raw []byte) (*Event, error) {
	var e Event
	if err := json.Unmarshal(raw, &e); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if e.Type == "" {
		return nil, fmt.Errorf("%w: missing type", ErrMalformed)
	}
	if e.UserID == "" {
		return nil, fmt.Errorf("%w: missing userId", ErrMalformed)
	}
	if e.Timestamp.IsZero() {
		return nil, fmt.Errorf("%w: missing timestamp", ErrMalformed)
	}
	if e.Data == nil {
		e.Data = map[string]any{}
	}
	return &e, nil
}

// DeadLetter preserves an unprocessable message for inspection.
type DeadLetter struct {
	Message    string    `json:"message"`
	Error      string    `json:"error"`
	Timestamp  time.Time `json:"timestamp"`
	RetryCount int       `json:"retryCount"`
}
