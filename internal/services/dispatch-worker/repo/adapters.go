package repo

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/NordCoder/Courier/internal/domain/notification"
	"github.com/NordCoder/Courier/internal/domain/queue"
)

type Notifications struct{ R notification.Repo }
type Attempts struct{ R notification.AttemptRepo }
type Retries struct{ M queue.Manager }

func (a Notifications) GetByID(ctx context.Context, id uuid.UUID) (*notification.Notification, error) {
	return a.R.GetByID(ctx, id)
}

func (a Notifications) Update(ctx context.Context, n *notification.Notification) error {
	return a.R.Update(ctx, n)
}

func (a Attempts) Insert(ctx context.Context, at *notification.Attempt) error {
	return a.R.Insert(ctx, at)
}

func (a Retries) EnqueueRetry(ctx context.Context, n *notification.Notification, delay time.Duration) error {
	return a.M.EnqueueRetry(ctx, n, delay)
}
