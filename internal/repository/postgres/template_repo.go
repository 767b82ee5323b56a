package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/NordCoder/Courier/internal/domain/template"
)

var _ template.Repo = (*TemplateRepoImpl)(nil)

type TemplateRepoImpl struct{ db *DB }

func NewTemplateRepo(db *DB) *TemplateRepoImpl { return &TemplateRepoImpl{db: db} }

const qTemplateByType = `
SELECT id, name, event_type, subject, body, html_body, variables, active, created_at, updated_at
FROM notification_templates
WHERE event_type = $1 AND active = TRUE
ORDER BY updated_at DESC
LIMIT 1;
`

func (r *TemplateRepoImpl) GetByEventType(ctx context.Context, eventType string) (*template.Template, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	var t template.Template
	if err := r.db.Pool.QueryRow(ctx, qTemplateByType, eventType).Scan(
		&t.ID,
		&t.Name,
		&t.EventType,
		&t.Subject,
		&t.Body,
		&t.HTMLBody,
		&t.Variables,
		&t.Active,
		&t.CreatedAt,
		&t.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, template.ErrNotFound
		}
		return nil, fmt.Errorf("get template: %w", err)
	}
	return &t, nil
}
