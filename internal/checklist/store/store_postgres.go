package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"fortaudit/internal/checklist/models"
)

// PostgresStore persists templates as JSONB documents with status and
// version columns for querying. Schema:
//
//	CREATE TABLE checklist_templates (
//	    id           TEXT PRIMARY KEY,
//	    version      INT NOT NULL,
//	    status       TEXT NOT NULL,
//	    document     JSONB NOT NULL,
//	    created_at   TIMESTAMPTZ NOT NULL,
//	    published_at TIMESTAMPTZ
//	);
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Save(ctx context.Context, template *models.ChecklistTemplate) error {
	doc, err := json.Marshal(template)
	if err != nil {
		return fmt.Errorf("marshal template: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO checklist_templates (id, version, status, document, created_at, published_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE
		SET version = EXCLUDED.version,
		    status = EXCLUDED.status,
		    document = EXCLUDED.document,
		    published_at = EXCLUDED.published_at`,
		template.ID, template.Version, string(template.Status), doc, template.CreatedAt, template.PublishedAt)
	if err != nil {
		return fmt.Errorf("save template: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, id string) (*models.ChecklistTemplate, error) {
	var doc []byte
	err := s.pool.QueryRow(ctx,
		`SELECT document FROM checklist_templates WHERE id = $1`, id).Scan(&doc)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find template: %w", err)
	}
	var template models.ChecklistTemplate
	if err := json.Unmarshal(doc, &template); err != nil {
		return nil, fmt.Errorf("unmarshal template: %w", err)
	}
	return &template, nil
}

func (s *PostgresStore) ListByStatus(ctx context.Context, status models.TemplateStatus) ([]*models.ChecklistTemplate, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT document FROM checklist_templates WHERE status = $1 ORDER BY id`, string(status))
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	defer rows.Close()

	var out []*models.ChecklistTemplate
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("scan template: %w", err)
		}
		var template models.ChecklistTemplate
		if err := json.Unmarshal(doc, &template); err != nil {
			return nil, fmt.Errorf("unmarshal template: %w", err)
		}
		out = append(out, &template)
	}
	return out, rows.Err()
}
