package repository

import (
	"context"
	"errors"
	"sync"

	"impex-service/internal/models"
)

// MemoryStore keeps records in process memory. Used for local runs
// (STORE_DRIVER=memory) and tests.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]*models.Record
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]*models.Record)}
}

func (s *MemoryStore) FindByID(_ context.Context, id string) (*models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[id]
	if !ok {
		return nil, ErrRecordNotFound
	}
	return rec.Clone(), nil
}

func (s *MemoryStore) Save(_ context.Context, rec *models.Record) (*models.Record, error) {
	if rec.ID == "" {
		return nil, errors.New("record ID is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[rec.ID] = rec.Clone()
	return rec, nil
}

func (s *MemoryStore) SaveAll(_ context.Context, recs []*models.Record) ([]*models.Record, error) {
	for _, rec := range recs {
		if rec.ID == "" {
			return nil, errors.New("record ID is required")
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, rec := range recs {
		s.records[rec.ID] = rec.Clone()
	}
	return recs, nil
}

func (s *MemoryStore) Delete(_ context.Context, rec *models.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[rec.ID]; !ok {
		return ErrRecordNotFound
	}
	delete(s.records, rec.ID)
	return nil
}

// Len returns the number of stored records
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
