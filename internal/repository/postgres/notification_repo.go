package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/NordCoder/Courier/internal/domain/notification"
)

var _ notification.Repo = (*NotificationRepoImpl)(nil)

type NotificationRepoImpl struct{ db *DB }

func NewNotificationRepo(db *DB) *NotificationRepoImpl { return &NotificationRepoImpl{db: db} }

const (
	qNotifInsert = `
INSERT INTO notifications
  (id, user_id, channel, recipient, subject, message, html_message, metadata,
   priority, status, retry_count, max_retries, last_error, scheduled_at, sent_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
RETURNING created_at, updated_at;
`

	qNotifGet = `
SELECT id, user_id, channel, recipient, subject, message, html_message, metadata,
       priority, status, retry_count, max_retries, last_error, scheduled_at, sent_at,
       created_at, updated_at
FROM notifications
WHERE id = $1;
`

	qNotifUpdate = `
UPDATE notifications
SET status = $2, retry_count = $3, last_error = $4, scheduled_at = $5, sent_at = $6,
    updated_at = now()
WHERE id = $1;
`

	qNotifList = `
SELECT id, user_id, channel, recipient, subject, message, html_message, metadata,
       priority, status, retry_count, max_retries, last_error, scheduled_at, sent_at,
       created_at, updated_at
FROM notifications
WHERE user_id = $1 AND ($2 = '' OR status = $2)
ORDER BY created_at DESC
LIMIT $3 OFFSET $4;
`

	qNotifCount = `
SELECT count(*) FROM notifications
WHERE user_id = $1 AND ($2 = '' OR status = $2);
`
)

func scanNotification(row pgx.Row, n *notification.Notification) error {
	if err := row.Scan(
		&n.ID,
		&n.UserID,
		&n.Channel,
		&n.Recipient,
		&n.Subject,
		&n.Message,
		&n.HTMLMessage,
		&n.Metadata,
		&n.Priority,
		&n.Status,
		&n.RetryCount,
		&n.MaxRetries,
		&n.LastError,
		&n.ScheduledAt,
		&n.SentAt,
		&n.CreatedAt,
		&n.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return notification.ErrNotFound
		}
		return fmt.Errorf("scan notification: %w", err)
	}
	return nil
}

func (r *NotificationRepoImpl) Create(ctx context.Context, n *notification.Notification) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	if err := r.db.Pool.QueryRow(ctx, qNotifInsert,
		n.ID,
		n.UserID,
		string(n.Channel),
		n.Recipient,
		n.Subject,
		n.Message,
		n.HTMLMessage,
		emptyMap(n.Metadata),
		string(n.Priority),
		string(n.Status),
		n.RetryCount,
		n.MaxRetries,
		n.LastError,
		nullTime(n.ScheduledAt),
		nullTime(n.SentAt),
	).Scan(&n.CreatedAt, &n.UpdatedAt); err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

func (r *NotificationRepoImpl) GetByID(ctx context.Context, id uuid.UUID) (*notification.Notification, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	var n notification.Notification
	if err := scanNotification(r.db.Pool.QueryRow(ctx, qNotifGet, id), &n); err != nil {
		return nil, err
	}
	return &n, nil
}

// Update persists the lifecycle fields mutated by the delivery worker and the
// cancel/resend paths. Runs on the ambient transaction when one is injected.
func (r *NotificationRepoImpl) Update(ctx context.Context, n *notification.Notification) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	eq := r.db.execQueryer(ctx)
	cmd, err := eq.Exec(ctx, qNotifUpdate,
		n.ID,
		string(n.Status),
		n.RetryCount,
		n.LastError,
		nullTime(n.ScheduledAt),
		nullTime(n.SentAt),
	)
	if err != nil {
		return fmt.Errorf("update notification: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return notification.ErrNotFound
	}
	return nil
}

func (r *NotificationRepoImpl) ListByUser(ctx context.Context, f notification.Filter) ([]*notification.Notification, int64, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	page := f.Page
	if page <= 0 {
		page = 1
	}
	offset := (page - 1) * limit

	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	var total int64
	if err := r.db.Pool.QueryRow(ctx, qNotifCount, f.UserID, string(f.Status)).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count notifications: %w", err)
	}

	rows, err := r.db.Pool.Query(ctx, qNotifList, f.UserID, string(f.Status), limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("query notifications: %w", err)
	}
	defer rows.Close()

	out := make([]*notification.Notification, 0, limit)
	for rows.Next() {
		var n notification.Notification
		if err := scanNotification(rows, &n); err != nil {
			return nil, 0, err
		}
		out = append(out, &n)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("rows: %w", err)
	}
	return out, total, nil
}
