package postgres

import (
	"context"
	"fmt"

	"github.com/NordCoder/Courier/internal/domain/subscription"
)

var _ subscription.Repo = (*SubscriptionRepoImpl)(nil)

type SubscriptionRepoImpl struct{ db *DB }

func NewSubscriptionRepo(db *DB) *SubscriptionRepoImpl { return &SubscriptionRepoImpl{db: db} }

const qSubsEnabled = `
SELECT id, user_id, event_type, channel, enabled, filters, settings, created_at, updated_at
FROM subscriptions
WHERE user_id = $1 AND event_type = $2 AND enabled = TRUE
ORDER BY created_at;
`

func (r *SubscriptionRepoImpl) ListEnabled(ctx context.Context, userID, eventType string) ([]*subscription.Subscription, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	rows, err := r.db.Pool.Query(ctx, qSubsEnabled, userID, eventType)
	if err != nil {
		return nil, fmt.Errorf("query subscriptions: %w", err)
	}
	defer rows.Close()

	var out []*subscription.Subscription
	for rows.Next() {
		var s subscription.Subscription
		if err := rows.Scan(
			&s.ID,
			&s.UserID,
			&s.EventType,
			&s.Channel,
			&s.Enabled,
			&s.Filters,
			&s.Settings,
			&s.CreatedAt,
			&s.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan subscription: %w", err)
		}
		out = append(out, &s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}
