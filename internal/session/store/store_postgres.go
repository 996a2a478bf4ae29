package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"fortaudit/internal/session/models"
)

// PostgresStore persists sessions as JSONB documents with queryable columns.
// The status column doubles as the compare-and-swap token. Schema:
//
//	CREATE TABLE audit_sessions (
//	    id         TEXT PRIMARY KEY,
//	    mill_id    TEXT NOT NULL,
//	    status     TEXT NOT NULL,
//	    document   JSONB NOT NULL,
//	    updated_at TIMESTAMPTZ NOT NULL
//	);
//	CREATE INDEX audit_sessions_mill_idx ON audit_sessions (mill_id);
//	CREATE INDEX audit_sessions_status_idx ON audit_sessions (status);
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Save(ctx context.Context, session *models.AuditSession) error {
	doc, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO audit_sessions (id, mill_id, status, document, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE
		SET status = EXCLUDED.status,
		    document = EXCLUDED.document,
		    updated_at = EXCLUDED.updated_at`,
		session.ID, session.MillID, string(session.Status), doc, session.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (s *PostgresStore) SaveIfStatus(ctx context.Context, session *models.AuditSession, expected models.AuditStatus) error {
	doc, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE audit_sessions
		SET status = $2, document = $3, updated_at = $4
		WHERE id = $1 AND status = $5`,
		session.ID, string(session.Status), doc, session.UpdatedAt, string(expected))
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Distinguish a lost race from a missing row.
		var exists bool
		if err := s.pool.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM audit_sessions WHERE id = $1)`, session.ID).Scan(&exists); err != nil {
			return fmt.Errorf("check session: %w", err)
		}
		if !exists {
			return ErrNotFound
		}
		return ErrConflict
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, id string) (*models.AuditSession, error) {
	var doc []byte
	err := s.pool.QueryRow(ctx,
		`SELECT document FROM audit_sessions WHERE id = $1`, id).Scan(&doc)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find session: %w", err)
	}
	return unmarshalSession(doc)
}

func (s *PostgresStore) ListByMill(ctx context.Context, millID string) ([]*models.AuditSession, error) {
	return s.list(ctx, `SELECT document FROM audit_sessions WHERE mill_id = $1 ORDER BY id`, millID)
}

func (s *PostgresStore) ListByStatus(ctx context.Context, status models.AuditStatus) ([]*models.AuditSession, error) {
	return s.list(ctx, `SELECT document FROM audit_sessions WHERE status = $1 ORDER BY id`, string(status))
}

func (s *PostgresStore) list(ctx context.Context, query string, arg any) ([]*models.AuditSession, error) {
	rows, err := s.pool.Query(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []*models.AuditSession
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		session, err := unmarshalSession(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, session)
	}
	return out, rows.Err()
}

func unmarshalSession(doc []byte) (*models.AuditSession, error) {
	var session models.AuditSession
	if err := json.Unmarshal(doc, &session); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	return &session, nil
}
