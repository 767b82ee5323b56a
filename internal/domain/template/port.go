package template

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("template not found")

type Repo interface {
	// GetByEventType returns the active template for an event type, or
	// ErrNotFound when none exists; callers fall back to a plain rendering.
	GetByEventType(ctx context.Context, eventType string) (*Template, error)
}
