// internal/roundstate/memory.go
package roundstate

import (
	"context"
	"fmt"
	"sync"

	"app-deployer/internal/models"
)

// MemoryStore is the default, process-local backend. Records are lost on restart.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]models.RepoRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]models.RepoRecord)}
}

func (s *MemoryStore) Put(ctx context.Context, record *models.RepoRecord) error {
	if err := validate(record); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.records[record.Task]; exists {
		return nil
	}
	s.records[record.Task] = *record
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, taskID string) (*models.RepoRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.records[taskID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, taskID)
	}
	return &record, nil
}

// Len reports how many tasks are tracked.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
