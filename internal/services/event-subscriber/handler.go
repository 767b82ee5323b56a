package event_subscriber

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/NordCoder/Courier/internal/domain/event"
	"github.com/NordCoder/Courier/internal/domain/notification"
	"github.com/NordCoder/Courier/internal/domain/subscription"
	"github.com/NordCoder/Courier/internal/domain/template"
	"github.com/NordCoder/Courier/internal/services/event-subscriber/repo"
)

type Handler struct {
	Subs      repo.Subscriptions
	Prefs     repo.Preferences
	Templates repo.Templates
	Notifs    repo.Notifications
	Queue     repo.Enqueuer
	Counters  repo.Counters
	Clock     notification.Clock
	Log       *zap.Logger
}

// OnEvent fans a validated event out to the user's matching subscriptions.
// Each subscription is handled in isolation: a failure on one never blocks
// the others. The returned error is reserved for failures before fan-out
// starts, where redelivering the whole event is the right reaction.
func (h *Handler) OnEvent(ctx context.Context, ev *event.Event) (created, errs int, err error) {
	subs, err := h.Subs.ListEnabled(ctx, ev.UserID, ev.Type)
	if err != nil {
		return 0, 0, fmt.Errorf("list subscriptions: %w", err)
	}
	if len(subs) == 0 {
		h.Log.Debug("no subscriptions for event",
			zap.String("event_type", ev.Type), zap.String("user_id", ev.UserID))
		return 0, 0, nil
	}

	now := h.Clock.Now()
	for _, sub := range subs {
		ok, subErr := h.deliver(ctx, ev, sub, now)
		if subErr != nil {
			errs++
			h.Log.Warn("subscription delivery",
				zap.String("subscription_id", sub.ID.String()),
				zap.String("event_type", ev.Type),
				zap.Error(subErr))
			continue
		}
		if ok {
			created++
		}
	}
	return created, errs, nil
}

// deliver runs one subscription through filters, preferences, quiet hours,
// template rendering and enqueue. A false return with nil error means the
// event was deliberately suppressed for this subscription.
func (h *Handler) deliver(ctx context.Context, ev *event.Event, sub *subscription.Subscription, now time.Time) (bool, error) {
	if !sub.Matches(ev.Data) {
		h.Log.Debug("filters do not match",
			zap.String("subscription_id", sub.ID.String()))
		return false, nil
	}

	pref, err := h.Prefs.Get(ctx, ev.UserID, sub.Channel)
	if err != nil {
		if !errors.Is(err, subscription.ErrNotFound) {
			return false, fmt.Errorf("get preference: %w", err)
		}
		// No preference row: the channel is allowed and has no quiet hours.
		pref = nil
	}
	if pref != nil {
		if !pref.Enabled {
			h.Log.Debug("channel disabled by preference",
				zap.String("user_id", ev.UserID), zap.String("channel", string(sub.Channel)))
			return false, nil
		}
		if pref.QuietAt(now) {
			h.Log.Debug("suppressed by quiet hours",
				zap.String("user_id", ev.UserID), zap.String("channel", string(sub.Channel)))
			return false, nil
		}
	}

	addr := sub.Address(pref)
	if addr == "" {
		h.Log.Warn("no delivery address resolved",
			zap.String("subscription_id", sub.ID.String()),
			zap.String("channel", string(sub.Channel)))
		return false, nil
	}

	rendered := h.render(ctx, ev)

	n := &notification.Notification{
		UserID:      ev.UserID,
		Channel:     sub.Channel,
		Recipient:   addr,
		Subject:     rendered.Subject,
		Message:     rendered.Body,
		HTMLMessage: rendered.HTMLBody,
		Metadata: map[string]any{
			"eventType":      ev.Type,
			"subscriptionId": sub.ID.String(),
			"eventTimestamp": ev.Timestamp.UTC().Format(time.RFC3339),
		},
		Priority:   notification.PriorityMedium,
		Status:     notification.StatusPending,
		MaxRetries: notification.DefaultMaxRetries,
	}
	if err := h.Notifs.Create(ctx, n); err != nil {
		return false, fmt.Errorf("create notification: %w", err)
	}
	if err := h.Queue.EnqueueImmediate(ctx, n); err != nil {
		// The row exists but never reached the queue; it stays visible in the
		// user's list for triage.
		return false, fmt.Errorf("enqueue: %w", err)
	}
	if err := h.Counters.IncrDelivered(ctx, ev.Type, now); err != nil {
		h.Log.Warn("increment delivery counter",
			zap.String("event_type", ev.Type), zap.Error(err))
	}
	return true, nil
}

// render resolves the event's template; without one the event is delivered
// as a plain key/value listing rather than dropped.
func (h *Handler) render(ctx context.Context, ev *event.Event) template.Rendered {
	tpl, err := h.Templates.GetByEventType(ctx, ev.Type)
	if err != nil {
		if !errors.Is(err, template.ErrNotFound) {
			h.Log.Warn("load template", zap.String("event_type", ev.Type), zap.Error(err))
		}
		return plainRender(ev)
	}
	return tpl.Render(ev.Data)
}

func plainRender(ev *event.Event) template.Rendered {
	keys := make([]string, 0, len(ev.Data))
	for k := range ev.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, "%s: %v\n", k, ev.Data[k])
	}
	return template.Rendered{Subject: ev.Type, Body: b.String()}
}
