package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/NordCoder/Courier/internal/domain/notification"
	"github.com/NordCoder/Courier/internal/domain/subscription"
)

var _ subscription.PreferenceRepo = (*PreferenceRepoImpl)(nil)

type PreferenceRepoImpl struct{ db *DB }

func NewPreferenceRepo(db *DB) *PreferenceRepoImpl { return &PreferenceRepoImpl{db: db} }

const qPrefGet = `
SELECT user_id, channel, enabled, frequency, quiet_start, quiet_end, timezone, settings,
       created_at, updated_at
FROM notification_preferences
WHERE user_id = $1 AND channel = $2;
`

func (r *PreferenceRepoImpl) Get(ctx context.Context, userID string, ch notification.Channel) (*subscription.Preference, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	var p subscription.Preference
	if err := r.db.Pool.QueryRow(ctx, qPrefGet, userID, string(ch)).Scan(
		&p.UserID,
		&p.Channel,
		&p.Enabled,
		&p.Frequency,
		&p.QuietStart,
		&p.QuietEnd,
		&p.Timezone,
		&p.Settings,
		&p.CreatedAt,
		&p.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, subscription.ErrNotFound
		}
		return nil, fmt.Errorf("get preference: %w", err)
	}
	return &p, nil
}
