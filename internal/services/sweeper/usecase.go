package sweeper

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/NordCoder/Courier/internal/domain/notification"
	"github.com/NordCoder/Courier/internal/domain/queue"
	"github.com/NordCoder/Courier/internal/obs"
	"github.com/NordCoder/Courier/internal/services/sweeper/repo"
)

type Usecase struct {
	Notifs repo.Notifications
	Queue  repo.Queue
	Clock  notification.Clock
	Log    *zap.Logger
}

func NewUC(notifs repo.Notifications, q repo.Queue, clock notification.Clock, log *zap.Logger) *Usecase {
	return &Usecase{Notifs: notifs, Queue: q, Clock: clock, Log: log}
}

// Tick promotes due entries from the scheduled and retry sets into the
// immediate queues. Each claimed id is handled independently; one bad entry
// never blocks the batch.
func (u *Usecase) Tick(ctx context.Context, limit int64) (int, int, int, error) {
	if limit <= 0 {
		limit = 100
	}

	tr := otel.Tracer("sweeper.uc")
	ctxTick, span := tr.Start(ctx, "sweeper.tick",
		trace.WithAttributes(attribute.Int64("batch.limit", limit)),
	)
	defer span.End()

	now := u.Clock.Now()
	claimed, promoted, errs := 0, 0, 0
	var popErr error

	for _, set := range []queue.Set{queue.SetScheduled, queue.SetRetry} {
		ids, err := u.Queue.PopDue(ctxTick, set, now, limit)
		if err != nil {
			span.RecordError(err)
			errs++
			popErr = errors.Join(popErr, fmt.Errorf("pop due %s: %w", set, err))
			continue
		}
		claimed += len(ids)
		for _, id := range ids {
			ok, err := u.promote(ctxTick, tr, set, id, now)
			if err != nil {
				errs++
				continue
			}
			if ok {
				promoted++
			}
		}
	}

	span.SetAttributes(
		attribute.Int("batch.claimed", claimed),
		attribute.Int("batch.promoted", promoted),
		attribute.Int("batch.errors", errs),
	)
	return claimed, promoted, errs, popErr
}

// promote moves one claimed entry to its channel queue. Claimed entries that
// cannot be handled right now go back into the set; entries in a terminal
// state are dropped for good.
func (u *Usecase) promote(ctx context.Context, tr trace.Tracer, set queue.Set, id uuid.UUID, now time.Time) (bool, error) {
	ctxP, sp := tr.Start(ctx, "sweeper.promote",
		trace.WithAttributes(
			attribute.String("notification.id", id.String()),
			attribute.String("set", string(set)),
		),
	)
	defer sp.End()

	n, err := u.Notifs.GetByID(ctxP, id)
	if err != nil {
		if errors.Is(err, notification.ErrNotFound) {
			obs.WithTrace(ctxP, u.Log).Debug("due entry references missing notification",
				zap.String("notification_id", id.String()))
			sp.SetAttributes(attribute.String("promote.status", "dropped"))
			return false, nil
		}
		sp.RecordError(err)
		u.requeue(ctxP, set, id, now)
		return false, err
	}

	switch n.Status {
	case notification.StatusSent, notification.StatusCancelled, notification.StatusFailed:
		obs.WithTrace(ctxP, u.Log).Debug("drop due entry in terminal state",
			zap.String("notification_id", id.String()),
			zap.String("status", string(n.Status)))
		sp.SetAttributes(attribute.String("promote.status", "dropped"))
		return false, nil
	}

	if n.Status == notification.StatusScheduled {
		n.Status = notification.StatusPending
		if err := u.Notifs.Update(ctxP, n); err != nil {
			sp.RecordError(err)
			u.requeue(ctxP, set, id, now)
			return false, err
		}
	}

	if err := u.Queue.EnqueueImmediate(ctxP, n); err != nil {
		sp.RecordError(err)
		sp.SetAttributes(attribute.String("promote.status", "error"))
		u.requeue(ctxP, set, id, now)
		return false, err
	}
	sp.SetAttributes(attribute.String("promote.status", "ok"))
	return true, nil
}

func (u *Usecase) requeue(ctx context.Context, set queue.Set, id uuid.UUID, at time.Time) {
	if err := u.Queue.Requeue(ctx, set, id, at); err != nil {
		obs.WithTrace(ctx, u.Log).Warn("requeue claimed entry",
			zap.String("notification_id", id.String()),
			zap.String("set", string(set)),
			zap.Error(err))
	}
}
