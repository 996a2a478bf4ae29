package store

import (
	"context"

	"fortaudit/internal/checklist/models"
	"fortaudit/pkg/platform/sentinel"
)

// ErrNotFound keeps store-specific 404s consistent across implementations.
var ErrNotFound = sentinel.ErrNotFound

// Store persists checklist templates. Published templates are immutable, so
// implementations may cache them indefinitely.
type Store interface {
	Save(ctx context.Context, template *models.ChecklistTemplate) error
	FindByID(ctx context.Context, id string) (*models.ChecklistTemplate, error)
	ListByStatus(ctx context.Context, status models.TemplateStatus) ([]*models.ChecklistTemplate, error)
}
