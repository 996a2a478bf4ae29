package store

import (
	"context"

	"fortaudit/internal/session/models"
	"fortaudit/pkg/platform/sentinel"
)

// Sentinel re-exports keep store callers decoupled from pkg/platform.
var (
	ErrNotFound = sentinel.ErrNotFound
	ErrConflict = sentinel.ErrConflict
)

// Store persists audit sessions. SaveIfStatus is the compare-and-swap write:
// it persists the session only while the stored status equals expected, so
// two writers racing a transition cannot overwrite each other's outcome.
type Store interface {
	Save(ctx context.Context, session *models.AuditSession) error
	SaveIfStatus(ctx context.Context, session *models.AuditSession, expected models.AuditStatus) error
	FindByID(ctx context.Context, id string) (*models.AuditSession, error)
	ListByMill(ctx context.Context, millID string) ([]*models.AuditSession, error)
	ListByStatus(ctx context.Context, status models.AuditStatus) ([]*models.AuditSession, error)
}
