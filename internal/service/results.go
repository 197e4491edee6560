package service

import (
	"sync"

	"mapsjob/internal/core/domain"
)

// ResultStore holds the records reported for the current job.
// Only the controller's poll handler writes to it; readers get copies.
type ResultStore struct {
	mu      sync.RWMutex
	schema  domain.Schema
	records []domain.Record
}

// Records returns a copy of the current result set.
func (s *ResultStore) Records() []domain.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Record(nil), s.records...)
}

// Schema returns the column layout in effect.
func (s *ResultStore) Schema() domain.Schema {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.schema
}

// Len returns the number of records held.
func (s *ResultStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// replace swaps in a new result set. Results are never merged.
func (s *ResultStore) replace(records []domain.Record) {
	s.mu.Lock()
	s.records = append([]domain.Record(nil), records...)
	s.mu.Unlock()
}

// reset clears the store and sets the schema for the next job.
func (s *ResultStore) reset(schema domain.Schema) {
	s.mu.Lock()
	s.schema = schema
	s.records = nil
	s.mu.Unlock()
}
