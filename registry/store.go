package registry

import (
	"context"
	"sync"

	"github.com/ruteri/vehicle-registry/interfaces"
)

// MemoryStore is an in-memory interfaces.RecordStore.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[interfaces.Registration]interfaces.VehicleRecord
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[interfaces.Registration]interfaces.VehicleRecord)}
}

// Get returns a copy of the record for registration.
func (s *MemoryStore) Get(ctx context.Context, registration interfaces.Registration) (*interfaces.VehicleRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.records[registration]
	if !ok {
		return nil, interfaces.ErrRecordNotFound
	}
	return &record, nil
}

// Put replaces the record for record.Registration.
func (s *MemoryStore) Put(ctx context.Context, record *interfaces.VehicleRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[record.Registration] = *record
	return nil
}

// Len returns the number of stored records.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
