package repo

import (
	"context"
	"time"

	"github.com/NordCoder/Courier/internal/domain/event"
	"github.com/NordCoder/Courier/internal/domain/notification"
	"github.com/NordCoder/Courier/internal/domain/queue"
	"github.com/NordCoder/Courier/internal/domain/subscription"
	"github.com/NordCoder/Courier/internal/domain/template"
)

type Subscriptions struct{ R subscription.Repo }
type Preferences struct{ R subscription.PreferenceRepo }
type Templates struct{ R template.Repo }
type Notifications struct{ R notification.Repo }
type Enqueuer struct{ M queue.Manager }
type Counters struct{ C event.Counters }
type DeadLetters struct{ D event.DeadLetters }

func (a Subscriptions) ListEnabled(ctx context.Context, userID, eventType string) ([]*subscription.Subscription, error) {
	return a.R.ListEnabled(ctx, userID, eventType)
}

func (a Preferences) Get(ctx context.Context, userID string, ch notification.Channel) (*subscription.Preference, error) {
	return a.R.Get(ctx, userID, ch)
}

func (a Templates) GetByEventType(ctx context.Context, eventType string) (*template.Template, error) {
	return a.R.GetByEventType(ctx, eventType)
}

func (a Notifications) Create(ctx context.Context, n *notification.Notification) error {
	return a.R.Create(ctx, n)
}

func (a Enqueuer) EnqueueImmediate(ctx context.Context, n *notification.Notification) error {
	return a.M.EnqueueImmediate(ctx, n)
}

func (a Counters) IncrDelivered(ctx context.Context, eventType string, at time.Time) error {
	return a.C.IncrDelivered(ctx, eventType, at)
}

func (a DeadLetters) Push(ctx context.Context, dl event.DeadLetter) error {
	return a.D.Push(ctx, dl)
}
