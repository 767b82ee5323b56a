package queue

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/NordCoder/Courier/internal/domain/notification"
)

// ErrUnavailable wraps backing-store failures: the operation did not happen
// and the caller decides whether to retry or surface the error. No queue
// operation ever drops work silently.
var ErrUnavailable = errors.New("queue backend unavailable")

type Set string

const (
	SetScheduled Set = "scheduled"
	SetRetry     Set = "retry"
)

type Manager interface {
	// EnqueueImmediate pushes a job onto the per-channel work list and records
	// the notification in the global priority index. Priority is best-effort:
	// a higher score is eligible to be served first, nothing stronger.
	EnqueueImmediate(ctx context.Context, n *notification.Notification) error

	// EnqueueScheduled parks the notification in the time-ordered scheduled
	// set; a due time now-or-past degenerates to EnqueueImmediate.
	EnqueueScheduled(ctx context.Context, n *notification.Notification, at time.Time) error

	// EnqueueRetry parks the notification in the retry set, due after delay.
	EnqueueRetry(ctx context.Context, n *notification.Notification, delay time.Duration) error

	// Cancel removes any queued trace of the notification: scheduled/retry set
	// entries, the priority index, and the pending job on its channel list.
	// Best-effort: a job already claimed by a worker is out of reach.
	Cancel(ctx context.Context, id uuid.UUID) error

	// Dequeue blocks up to block for the next job across the given channel
	// lists. Returns (nil, nil) when the wait times out empty.
	Dequeue(ctx context.Context, channels []notification.Channel, block time.Duration) (*Job, error)
}

// Promoter is the sweep-facing side of the queue store.
type Promoter interface {
	// PopDue claims up to limit entries due at now from the set. Each entry is
	// claimed by conditional delete: concurrent sweeps never return the same
	// entry twice.
	PopDue(ctx context.Context, set Set, now time.Time, limit int64) ([]uuid.UUID, error)

	// Requeue puts a claimed entry back, due at at. Used when promotion fails
	// midway so the entry is retried on a later tick.
	Requeue(ctx context.Context, set Set, id uuid.UUID, at time.Time) error
}
