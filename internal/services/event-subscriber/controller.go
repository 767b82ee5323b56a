package event_subscriber

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/NordCoder/Courier/internal/domain/event"
	"github.com/NordCoder/Courier/internal/domain/notification"
	kafkax "github.com/NordCoder/Courier/internal/repository/kafka"
	"github.com/NordCoder/Courier/internal/services/event-subscriber/repo"
)

type Controller struct {
	log   *zap.Logger
	sub   *kafkax.Consumer
	uc    *Handler
	dead  repo.DeadLetters
	clock notification.Clock

	mConsumed  prometheus.Counter
	mMalformed prometheus.Counter
	mCreated   prometheus.Counter
	mErrors    prometheus.Counter
}

func NewController(log *zap.Logger, sub *kafkax.Consumer, uc *Handler, dead repo.DeadLetters, clock notification.Clock) *Controller {
	return &Controller{
		log:   log,
		sub:   sub,
		uc:    uc,
		dead:  dead,
		clock: clock,
		mConsumed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "event_subscriber_events_consumed_total", Help: "Events consumed from the bus",
		}),
		mMalformed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "event_subscriber_events_malformed_total", Help: "Events dead-lettered as malformed",
		}),
		mCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "event_subscriber_notifications_created_total", Help: "Notifications created from events",
		}),
		mErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "event_subscriber_errors_total", Help: "Errors while handling events",
		}),
	}
}

func (c *Controller) Run(ctx context.Context) error {
	if err := c.sub.Consume(ctx, c.handle); err != nil && !errors.Is(err, context.Canceled) {
		c.log.Warn("kafka consume", zap.Error(err))
		return err
	}
	return ctx.Err()
}

// handle never returns an error for malformed payloads: those are
// dead-lettered and committed, because redelivery cannot fix them.
func (c *Controller) handle(ctx context.Context, _ []byte, value []byte) error {
	c.mConsumed.Inc()

	ev, err := event.Parse(value)
	if err != nil {
		c.mMalformed.Inc()
		c.log.Warn("malformed event", zap.Error(err))
		if perr := c.dead.Push(ctx, deadLetterFrom(value, err, c.clock.Now())); perr != nil {
			c.log.Error("dead letter push", zap.Error(perr))
		}
		return nil
	}

	created, errs, err := c.uc.OnEvent(ctx, ev)
	if errs > 0 {
		c.mErrors.Add(float64(errs))
	}
	if err != nil {
		c.mErrors.Inc()
		return err
	}
	if created > 0 {
		c.mCreated.Add(float64(created))
	}
	return nil
}

func deadLetterFrom(raw []byte, cause error, now time.Time) event.DeadLetter {
	return event.DeadLetter{
		Message:   string(raw),
		Error:     cause.Error(),
		Timestamp: now.UTC(),
	}
}
