package notification

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("notification not found")

type Filter struct {
	UserID string
	Status Status // empty matches all
	Page   int
	Limit  int
}

type Repo interface {
	Create(ctx context.Context, n *Notification) error
	GetByID(ctx context.Context, id uuid.UUID) (*Notification, error)
	Update(ctx context.Context, n *Notification) error
	ListByUser(ctx context.Context, f Filter) ([]*Notification, int64, error)
}

type AttemptRepo interface {
	Insert(ctx context.Context, a *Attempt) error
	ListByNotification(ctx context.Context, id uuid.UUID, limit int) ([]*Attempt, error)
}
