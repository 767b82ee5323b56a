package kafka

import (
	"context"

	"go.uber.org/zap"

	"github.com/NordCoder/Courier/internal/domain/event"
	"github.com/NordCoder/Courier/internal/obs/retry"
)

// EventBus publishes domain events onto the bus, keyed by user id so one
// user's events keep their partition order. Broker hiccups are absorbed by
// the publish retry policy before the error reaches the caller.
type EventBus struct {
	p      *Producer
	policy retry.Policy
}

var _ event.Publisher = (*EventBus)(nil)

func NewEventBus(p *Producer, log *zap.Logger) *EventBus {
	return &EventBus{p: p, policy: retry.DefaultPublishPolicy(log)}
}

func (b *EventBus) Publish(ctx context.Context, e *event.Event) error {
	return retry.Do(ctx, func() error {
		return b.p.PublishJSON(ctx, []byte(e.UserID), e)
	}, b.policy)
}
