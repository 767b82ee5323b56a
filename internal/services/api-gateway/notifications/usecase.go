package notifications

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/NordCoder/Courier/internal/domain/notification"
	"github.com/NordCoder/Courier/internal/domain/queue"
)

var (
	ErrNotCancellable = errors.New("only pending or scheduled notifications can be cancelled")
	ErrNotResendable  = errors.New("only failed notifications can be resent")
)

// ValidationError rejects a request before anything is stored or queued.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

type CreateRequest struct {
	UserID      string         `json:"user_id"`
	Channel     string         `json:"channel"`
	Recipient   string         `json:"recipient"`
	Subject     string         `json:"subject"`
	Message     string         `json:"message"`
	HTMLMessage string         `json:"html_message,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	Priority    string         `json:"priority,omitempty"`
	MaxRetries  *int           `json:"max_retries,omitempty"`
}

func (r *CreateRequest) validate() error {
	if strings.TrimSpace(r.UserID) == "" {
		return &ValidationError{Field: "user_id", Reason: "required"}
	}
	if !notification.Channel(r.Channel).Valid() {
		return &ValidationError{Field: "channel", Reason: fmt.Sprintf("unknown channel %q", r.Channel)}
	}
	if strings.TrimSpace(r.Recipient) == "" {
		return &ValidationError{Field: "recipient", Reason: "required"}
	}
	if strings.TrimSpace(r.Message) == "" {
		return &ValidationError{Field: "message", Reason: "required"}
	}
	if r.Priority != "" && !notification.Priority(r.Priority).Valid() {
		return &ValidationError{Field: "priority", Reason: fmt.Sprintf("unknown priority %q", r.Priority)}
	}
	if r.MaxRetries != nil && *r.MaxRetries < 0 {
		return &ValidationError{Field: "max_retries", Reason: "must be >= 0"}
	}
	return nil
}

func (r *CreateRequest) toNotification() *notification.Notification {
	priority := notification.Priority(r.Priority)
	if r.Priority == "" {
		priority = notification.PriorityMedium
	}
	maxRetries := notification.DefaultMaxRetries
	if r.MaxRetries != nil {
		maxRetries = *r.MaxRetries
	}
	return &notification.Notification{
		UserID:      r.UserID,
		Channel:     notification.Channel(r.Channel),
		Recipient:   r.Recipient,
		Subject:     r.Subject,
		Message:     r.Message,
		HTMLMessage: r.HTMLMessage,
		Metadata:    r.Metadata,
		Priority:    priority,
		Status:      notification.StatusPending,
		MaxRetries:  maxRetries,
	}
}

type Usecase struct {
	repo     notification.Repo
	attempts notification.AttemptRepo
	queue    queue.Manager
	log      *zap.Logger
	clk      func() time.Time
}

func New(repo notification.Repo, attempts notification.AttemptRepo, q queue.Manager, log *zap.Logger, clk func() time.Time) *Usecase {
	if clk == nil {
		clk = func() time.Time { return time.Now().UTC() }
	}
	return &Usecase{repo: repo, attempts: attempts, queue: q, log: log, clk: clk}
}

func (u *Usecase) CreateAndEnqueue(ctx context.Context, req *CreateRequest) (*notification.Notification, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	n := req.toNotification()
	if err := u.repo.Create(ctx, n); err != nil {
		return nil, fmt.Errorf("create notification: %w", err)
	}
	if err := u.queue.EnqueueImmediate(ctx, n); err != nil {
		return nil, fmt.Errorf("enqueue: %w", err)
	}
	return n, nil
}

// Schedule parks the notification until at. A due time in the past degrades
// to an immediate enqueue instead of failing.
func (u *Usecase) Schedule(ctx context.Context, req *CreateRequest, at time.Time) (*notification.Notification, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	if !at.After(u.clk()) {
		return u.CreateAndEnqueue(ctx, req)
	}
	n := req.toNotification()
	n.Status = notification.StatusScheduled
	due := at.UTC()
	n.ScheduledAt = &due
	if err := u.repo.Create(ctx, n); err != nil {
		return nil, fmt.Errorf("create notification: %w", err)
	}
	if err := u.queue.EnqueueScheduled(ctx, n, due); err != nil {
		return nil, fmt.Errorf("enqueue scheduled: %w", err)
	}
	return n, nil
}

// Cancel flips the row first and cleans the queue second: a job that slips
// past the removal is stopped by the worker's terminal-status guard.
func (u *Usecase) Cancel(ctx context.Context, id uuid.UUID) (*notification.Notification, error) {
	n, err := u.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	switch n.Status {
	case notification.StatusPending, notification.StatusScheduled:
	default:
		return nil, fmt.Errorf("%w: status is %s", ErrNotCancellable, n.Status)
	}
	n.Status = notification.StatusCancelled
	if err := u.repo.Update(ctx, n); err != nil {
		return nil, fmt.Errorf("update notification: %w", err)
	}
	if err := u.queue.Cancel(ctx, id); err != nil {
		u.log.Warn("queue cancel", zap.String("notification_id", id.String()), zap.Error(err))
	}
	return n, nil
}

// Resend reopens a failed notification without resetting its retry count; the
// retry history stays visible in the attempt log.
func (u *Usecase) Resend(ctx context.Context, id uuid.UUID) (*notification.Notification, error) {
	n, err := u.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if n.Status != notification.StatusFailed {
		return nil, fmt.Errorf("%w: status is %s", ErrNotResendable, n.Status)
	}
	n.Status = notification.StatusPending
	if err := u.repo.Update(ctx, n); err != nil {
		return nil, fmt.Errorf("update notification: %w", err)
	}
	if err := u.queue.EnqueueImmediate(ctx, n); err != nil {
		return nil, fmt.Errorf("enqueue: %w", err)
	}
	return n, nil
}

func (u *Usecase) Get(ctx context.Context, id uuid.UUID) (*notification.Notification, error) {
	return u.repo.GetByID(ctx, id)
}

func (u *Usecase) ListForUser(ctx context.Context, f notification.Filter) ([]*notification.Notification, int64, error) {
	if strings.TrimSpace(f.UserID) == "" {
		return nil, 0, &ValidationError{Field: "user_id", Reason: "required"}
	}
	if f.Status != "" && !f.Status.Valid() {
		return nil, 0, &ValidationError{Field: "status", Reason: fmt.Sprintf("unknown status %q", f.Status)}
	}
	return u.repo.ListByUser(ctx, f)
}

func (u *Usecase) Attempts(ctx context.Context, id uuid.UUID, limit int) ([]*notification.Attempt, error) {
	if _, err := u.repo.GetByID(ctx, id); err != nil {
		return nil, err
	}
	return u.attempts.ListByNotification(ctx, id, limit)
}
