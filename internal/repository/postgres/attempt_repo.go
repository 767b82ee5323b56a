package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/NordCoder/Courier/internal/domain/notification"
)

var _ notification.AttemptRepo = (*AttemptRepoImpl)(nil)

type AttemptRepoImpl struct{ db *DB }

func NewAttemptRepo(db *DB) *AttemptRepoImpl { return &AttemptRepoImpl{db: db} }

const (
	qAttemptInsert = `
INSERT INTO notification_attempts (notification_id, number, status, error, response, duration_ms)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id, created_at;
`

	qAttemptsByNotif = `
SELECT id, notification_id, number, status, error, response, duration_ms, created_at
FROM notification_attempts
WHERE notification_id = $1
ORDER BY number
LIMIT $2;
`
)

// Insert appends one attempt row. Runs on the ambient transaction when one is
// injected so the row commits together with the notification status change.
func (r *AttemptRepoImpl) Insert(ctx context.Context, a *notification.Attempt) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	eq := r.db.execQueryer(ctx)
	if err := eq.QueryRow(ctx, qAttemptInsert,
		a.NotificationID,
		a.Number,
		string(a.Status),
		a.Error,
		emptyMap(a.Response),
		a.DurationMS,
	).Scan(&a.ID, &a.CreatedAt); err != nil {
		return fmt.Errorf("insert attempt: %w", err)
	}
	return nil
}

func (r *AttemptRepoImpl) ListByNotification(ctx context.Context, id uuid.UUID, limit int) ([]*notification.Attempt, error) {
	if limit <= 0 {
		limit = 50
	}
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	rows, err := r.db.Pool.Query(ctx, qAttemptsByNotif, id, limit)
	if err != nil {
		return nil, fmt.Errorf("query attempts: %w", err)
	}
	defer rows.Close()

	var out []*notification.Attempt
	for rows.Next() {
		var a notification.Attempt
		if err := rows.Scan(
			&a.ID,
			&a.NotificationID,
			&a.Number,
			&a.Status,
			&a.Error,
			&a.Response,
			&a.DurationMS,
			&a.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan attempt: %w", err)
		}
		out = append(out, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}
