package store

import (
	"context"
	"sync"

	"schoolbus-backend/internal/models"
)

// MemoryStore keeps records in process. Used for local runs and tests.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]models.LocationRecord
	writes  int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]models.LocationRecord)}
}

func (s *MemoryStore) Read(ctx context.Context, path string) (*models.LocationRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.records[path]
	if !ok {
		return nil, nil
	}
	return &record, nil
}

func (s *MemoryStore) Write(ctx context.Context, path string, record models.LocationRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[path] = record
	s.writes++
	return nil
}

// Writes returns how many writes the store has accepted
func (s *MemoryStore) Writes() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.writes
}
