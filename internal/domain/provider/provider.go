package provider

import (
	"context"
	"fmt"
	"time"

	"github.com/NordCoder/Courier/internal/domain/notification"
)

// Provider is the uniform per-channel send contract. Implementations perform
// the channel-specific call and convert failures into *Error values; no
// transport or SDK types leak to callers.
type Provider interface {
	Channel() notification.Channel
	Send(ctx context.Context, n *notification.Notification) error
	ValidateConfig() error
}

// Error is an opaque provider failure carrying just enough for the retry
// classifier: a status code when the channel speaks HTTP, the provider's
// message, and an optional rate-limit hint.
type Error struct {
	Channel    notification.Channel
	StatusCode int
	Message    string
	RetryAfter time.Duration
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s provider: status %d: %s", e.Channel, e.StatusCode, e.Message)
	}
	if e.Message != "" {
		return fmt.Sprintf("%s provider: %s", e.Channel, e.Message)
	}
	return fmt.Sprintf("%s provider: %v", e.Channel, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }
