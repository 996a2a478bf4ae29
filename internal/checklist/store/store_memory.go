package store

import (
	"context"
	"sort"
	"sync"

	"fortaudit/internal/checklist/models"
)

// InMemoryStore keeps templates in a mutex-guarded map. Used in tests and in
// single-node deployments without a database.
type InMemoryStore struct {
	mu        sync.RWMutex
	templates map[string]*models.ChecklistTemplate
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{
		templates: make(map[string]*models.ChecklistTemplate),
	}
}

func (s *InMemoryStore) Save(_ context.Context, template *models.ChecklistTemplate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.templates[template.ID] = template
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, id string) (*models.ChecklistTemplate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	template, ok := s.templates[id]
	if !ok {
		return nil, ErrNotFound
	}
	return template, nil
}

func (s *InMemoryStore) ListByStatus(_ context.Context, status models.TemplateStatus) ([]*models.ChecklistTemplate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.ChecklistTemplate
	for _, t := range s.templates {
		if t.Status == status {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
