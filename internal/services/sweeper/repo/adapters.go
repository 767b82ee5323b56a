package repo

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/NordCoder/Courier/internal/domain/notification"
	"github.com/NordCoder/Courier/internal/domain/queue"
)

type Notifications struct{ R notification.Repo }

type Queue struct {
	M queue.Manager
	P queue.Promoter
}

func (a Notifications) GetByID(ctx context.Context, id uuid.UUID) (*notification.Notification, error) {
	return a.R.GetByID(ctx, id)
}

func (a Notifications) Update(ctx context.Context, n *notification.Notification) error {
	return a.R.Update(ctx, n)
}

func (q Queue) PopDue(ctx context.Context, set queue.Set, now time.Time, limit int64) ([]uuid.UUID, error) {
	return q.P.PopDue(ctx, set, now, limit)
}

func (q Queue) Requeue(ctx context.Context, set queue.Set, id uuid.UUID, at time.Time) error {
	return q.P.Requeue(ctx, set, id, at)
}

func (q Queue) EnqueueImmediate(ctx context.Context, n *notification.Notification) error {
	return q.M.EnqueueImmediate(ctx, n)
}
