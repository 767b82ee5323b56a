package dispatch_worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/NordCoder/Courier/internal/classify"
	"github.com/NordCoder/Courier/internal/domain/notification"
	"github.com/NordCoder/Courier/internal/domain/provider"
	"github.com/NordCoder/Courier/internal/domain/queue"
	"github.com/NordCoder/Courier/internal/repository/postgres"
	"github.com/NordCoder/Courier/internal/services/dispatch-worker/repo"
)

const defaultSendTimeout = 30 * time.Second

// ProviderSource yields the delivery adapter for a channel.
type ProviderSource interface {
	Get(ch notification.Channel) (provider.Provider, bool)
}

// Result is what the runner counts. It says nothing the database does not
// already say; metrics only.
type Result int

const (
	ResultSkipped Result = iota
	ResultSent
	ResultRetried
	ResultFailed
)

func (r Result) String() string {
	switch r {
	case ResultSent:
		return "sent"
	case ResultRetried:
		return "retried"
	case ResultFailed:
		return "failed"
	default:
		return "skipped"
	}
}

type Handler struct {
	Notifications repo.Notifications
	Attempts      repo.Attempts
	Retries       repo.Retries
	Providers     ProviderSource
	Tx            postgres.Transactor
	Clock         notification.Clock
	Log           *zap.Logger
	SendTimeout   time.Duration
}

// HandleJob runs one delivery attempt for a dequeued job. The queue is
// at-least-once, so everything here tolerates redelivery: terminal rows are
// skipped, not re-sent. A non-nil error means an infrastructure failure, not
// a delivery failure; delivery failures are absorbed into the row's state.
func (h *Handler) HandleJob(ctx context.Context, job *queue.Job) (Result, error) {
	n, err := h.Notifications.GetByID(ctx, job.NotificationID)
	if err != nil {
		if errors.Is(err, notification.ErrNotFound) {
			h.Log.Warn("job references missing notification",
				zap.String("notification_id", job.NotificationID.String()))
			return ResultSkipped, nil
		}
		return ResultSkipped, fmt.Errorf("get notification: %w", err)
	}

	if n.Status.Terminal() {
		h.Log.Debug("skip terminal notification",
			zap.String("notification_id", n.ID.String()),
			zap.String("status", string(n.Status)))
		return ResultSkipped, nil
	}
	// Not due yet means a sweep raced us; leave the row alone.
	if n.Status == notification.StatusScheduled && n.ScheduledAt != nil && n.ScheduledAt.After(h.Clock.Now()) {
		h.Log.Debug("skip not-yet-due notification",
			zap.String("notification_id", n.ID.String()),
			zap.Time("scheduled_at", *n.ScheduledAt))
		return ResultSkipped, nil
	}

	p, ok := h.Providers.Get(n.Channel)
	if !ok {
		return h.onFailure(ctx, n, fmt.Errorf("no provider configured for channel %q", n.Channel), 0)
	}

	timeout := h.SendTimeout
	if timeout <= 0 {
		timeout = defaultSendTimeout
	}
	sendCtx, cancel := context.WithTimeout(ctx, timeout)
	start := h.Clock.Now()
	sendErr := p.Send(sendCtx, n)
	cancel()
	dur := h.Clock.Now().Sub(start)

	if sendErr != nil {
		return h.onFailure(ctx, n, sendErr, dur)
	}
	return h.onSuccess(ctx, n, dur)
}

func (h *Handler) onSuccess(ctx context.Context, n *notification.Notification, dur time.Duration) (Result, error) {
	now := h.Clock.Now().UTC()
	n.Status = notification.StatusSent
	n.SentAt = &now
	n.LastError = ""

	att := &notification.Attempt{
		NotificationID: n.ID,
		Number:         n.RetryCount + 1,
		Status:         notification.StatusSent,
		DurationMS:     dur.Milliseconds(),
	}
	if err := h.commit(ctx, n, att); err != nil {
		return ResultSkipped, err
	}
	h.Log.Info("notification sent",
		zap.String("notification_id", n.ID.String()),
		zap.String("channel", string(n.Channel)),
		zap.Int("attempt", att.Number),
		zap.Duration("duration", dur))
	return ResultSent, nil
}

func (h *Handler) onFailure(ctx context.Context, n *notification.Notification, sendErr error, dur time.Duration) (Result, error) {
	d := classify.Classify(sendErr)

	att := &notification.Attempt{
		NotificationID: n.ID,
		Number:         n.RetryCount + 1,
		Status:         notification.StatusFailed,
		Error:          sendErr.Error(),
		Response:       attemptResponse(sendErr),
		DurationMS:     dur.Milliseconds(),
	}

	if d.Outcome != classify.Permanent && n.RetryCount < n.MaxRetries {
		delay := classify.RetryDelay(d, n.RetryCount)
		n.RetryCount++
		n.Status = notification.StatusPending
		n.LastError = sendErr.Error()

		if err := h.commit(ctx, n, att); err != nil {
			return ResultSkipped, err
		}
		// Re-enqueue sits outside the tx: a crash right here leaves a pending
		// row missing from the retry set. Accepted at-least-once gap; the
		// alternative ordering risks duplicate sends instead.
		if err := h.Retries.EnqueueRetry(ctx, n, delay); err != nil {
			return ResultSkipped, fmt.Errorf("enqueue retry: %w", err)
		}
		h.Log.Warn("delivery failed, retry scheduled",
			zap.String("notification_id", n.ID.String()),
			zap.String("channel", string(n.Channel)),
			zap.String("outcome", d.Outcome.String()),
			zap.Int("retry_count", n.RetryCount),
			zap.Duration("delay", delay),
			zap.Error(sendErr))
		return ResultRetried, nil
	}

	n.Status = notification.StatusFailed
	n.LastError = sendErr.Error()
	if err := h.commit(ctx, n, att); err != nil {
		return ResultSkipped, err
	}
	h.Log.Warn("delivery failed terminally",
		zap.String("notification_id", n.ID.String()),
		zap.String("channel", string(n.Channel)),
		zap.String("outcome", d.Outcome.String()),
		zap.Int("retry_count", n.RetryCount),
		zap.Error(sendErr))
	return ResultFailed, nil
}

// commit writes the status change and its attempt row in one transaction so
// the attempt log never disagrees with the notification state.
func (h *Handler) commit(ctx context.Context, n *notification.Notification, att *notification.Attempt) error {
	return h.Tx.WithTx(ctx, func(txCtx context.Context) error {
		if err := h.Notifications.Update(txCtx, n); err != nil {
			return fmt.Errorf("update notification: %w", err)
		}
		if err := h.Attempts.Insert(txCtx, att); err != nil {
			return fmt.Errorf("insert attempt: %w", err)
		}
		return nil
	})
}

func attemptResponse(err error) map[string]any {
	var pe *provider.Error
	if errors.As(err, &pe) && pe.StatusCode != 0 {
		return map[string]any{"statusCode": pe.StatusCode}
	}
	return nil
}
