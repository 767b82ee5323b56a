package subscription

import (
	"context"
	"errors"

	"github.com/NordCoder/Courier/internal/domain/notification"
)

var ErrNotFound = errors.New("not found")

type Repo interface {
	ListEnabled(ctx context.Context, userID, eventType string) ([]*Subscription, error)
}

type PreferenceRepo interface {
	// Get returns ErrNotFound when the user has no preference row for the
	// channel; callers treat that as "channel allowed, no quiet hours".
	Get(ctx context.Context, userID string, ch notification.Channel) (*Preference, error)
}
