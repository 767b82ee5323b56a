package event

import (
	"context"
	"time"
)

type DeadLetters interface {
	Push(ctx context.Context, dl DeadLetter) error
	List(ctx context.Context, limit int64) ([]DeadLetter, error)
}

// Counters tracks per-event-type delivery counts, daily and all-time.
type Counters interface {
	IncrDelivered(ctx context.Context, eventType string, at time.Time) error
	DeliveredCounts(ctx context.Context, eventType string, day time.Time) (total, daily int64, err error)
}

type Publisher interface {
	Publish(ctx context.Context, e *Event) error
}
