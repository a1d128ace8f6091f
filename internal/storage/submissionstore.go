package storage

import (
	"sync"

	"github.com/example/skillbook/internal/models"
)

// SubmissionStore defines persistence for the booking submission audit trail.
type SubmissionStore interface {
	SaveSubmission(s *models.BookingSubmission) error
	UpdateSubmission(s *models.BookingSubmission) error
}

type MemoryStore struct {
	mu   sync.RWMutex
	subs map[string]*models.BookingSubmission
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{subs: make(map[string]*models.BookingSubmission)}
}

func (m *MemoryStore) SaveSubmission(s *models.BookingSubmission) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subs[s.ID] = s
	return nil
}

func (m *MemoryStore) UpdateSubmission(s *models.BookingSubmission) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subs[s.ID] = s
	return nil
}

func (m *MemoryStore) Get(id string) (*models.BookingSubmission, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.subs[id]
	return s, ok
}
