package store

import (
	"context"
	"sort"
	"sync"

	"fortaudit/internal/session/models"
)

// InMemoryStore keeps sessions in a mutex-guarded map. Reads and writes
// exchange deep copies so callers always work on their own snapshot, matching
// the snapshot semantics the scoring core assumes.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*models.AuditSession
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{
		sessions: make(map[string]*models.AuditSession),
	}
}

func (s *InMemoryStore) Save(_ context.Context, session *models.AuditSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ID] = session.Clone()
	return nil
}

func (s *InMemoryStore) SaveIfStatus(_ context.Context, session *models.AuditSession, expected models.AuditStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.sessions[session.ID]
	if !ok {
		return ErrNotFound
	}
	if current.Status != expected {
		return ErrConflict
	}
	s.sessions[session.ID] = session.Clone()
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, id string) (*models.AuditSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return session.Clone(), nil
}

func (s *InMemoryStore) ListByMill(_ context.Context, millID string) ([]*models.AuditSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.AuditSession
	for _, sess := range s.sessions {
		if sess.MillID == millID {
			out = append(out, sess.Clone())
		}
	}
	sortByID(out)
	return out, nil
}

func (s *InMemoryStore) ListByStatus(_ context.Context, status models.AuditStatus) ([]*models.AuditSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.AuditSession
	for _, sess := range s.sessions {
		if sess.Status == status {
			out = append(out, sess.Clone())
		}
	}
	sortByID(out)
	return out, nil
}

func sortByID(sessions []*models.AuditSession) {
	sort.Slice(sessions, func(i, j int) bool { return sessions[i].ID < sessions[j].ID })
}
