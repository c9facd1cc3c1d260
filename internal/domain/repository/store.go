package repository

import (
	"sort"
	"sync"
	"time"
)

// Store is the in-memory plugin record map. Mutations are single-writer;
// readers always get deep copies, never live records.
type Store struct {
	mu      sync.RWMutex
	records map[string]*Record
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{records: make(map[string]*Record)}
}

// Put inserts or replaces a record.
func (s *Store) Put(r *Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[r.ID()] = r.Clone()
}

// Get returns a copy of the record for id.
func (s *Store) Get(id string) (*Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.records[id]
	if !ok {
		return nil, false
	}
	return r.Clone(), true
}

// Has returns true if the store holds a record for id.
func (s *Store) Has(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.records[id]
	return ok
}

// Remove deletes a record. Removing an unknown id is a no-op.
func (s *Store) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, id)
}

// Mutate applies fn to the live record under the write lock. The
// record's UpdatedAt is refreshed afterwards.
func (s *Store) Mutate(id string, fn func(*Record)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.records[id]
	if !ok {
		return &NotFoundError{PluginID: id}
	}
	fn(r)
	r.UpdatedAt = time.Now().UTC()
	return nil
}

// List returns copies of all records sorted by plugin identifier.
func (s *Store) List() []*Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*Record, 0, len(s.records))
	for _, r := range s.records {
		result = append(result, r.Clone())
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].ID() < result[j].ID()
	})
	return result
}

// Count returns the number of records.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
