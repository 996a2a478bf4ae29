// Package cache provides a Redis read-through wrapper for the template
// store. Published templates are immutable, so cache entries never go stale;
// saves (publish, archive) evict so status changes are visible immediately.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"fortaudit/internal/checklist/models"
	"fortaudit/internal/checklist/store"
)

const keyPrefix = "fortaudit:template:"

// TTL bounds cache residency so evicted-but-missed deletes self-heal.
var TTL = 24 * time.Hour

type Store struct {
	inner  store.Store
	client *redis.Client
	logger *slog.Logger
}

func New(inner store.Store, client *redis.Client, logger *slog.Logger) *Store {
	return &Store{inner: inner, client: client, logger: logger}
}

func (s *Store) Save(ctx context.Context, template *models.ChecklistTemplate) error {
	if err := s.inner.Save(ctx, template); err != nil {
		return err
	}
	if err := s.client.Del(ctx, keyPrefix+template.ID).Err(); err != nil {
		// Cache eviction failure is not a save failure; the TTL bounds the
		// window of staleness.
		s.logger.WarnContext(ctx, "template cache evict failed",
			"template_id", template.ID,
			"error", err,
		)
	}
	return nil
}

func (s *Store) FindByID(ctx context.Context, id string) (*models.ChecklistTemplate, error) {
	raw, err := s.client.Get(ctx, keyPrefix+id).Bytes()
	if err == nil {
		var template models.ChecklistTemplate
		if err := json.Unmarshal(raw, &template); err == nil {
			return &template, nil
		}
		// Corrupt entry: fall through to the inner store and overwrite.
	} else if !errors.Is(err, redis.Nil) {
		s.logger.WarnContext(ctx, "template cache read failed", "template_id", id, "error", err)
	}

	template, err := s.inner.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	// Only published templates are safe to cache: drafts still mutate.
	if template.Status == models.TemplatePublished {
		if raw, err := json.Marshal(template); err == nil {
			if err := s.client.Set(ctx, keyPrefix+id, raw, TTL).Err(); err != nil {
				s.logger.WarnContext(ctx, "template cache write failed", "template_id", id, "error", err)
			}
		}
	}
	return template, nil
}

func (s *Store) ListByStatus(ctx context.Context, status models.TemplateStatus) ([]*models.ChecklistTemplate, error) {
	return s.inner.ListByStatus(ctx, status)
}
