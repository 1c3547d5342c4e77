package resource

import (
	"context"
	"fmt"
	"maps"
	"sync"

	"github.com/google/uuid"

	"github.com/hydrant-api/hydrant/field"
)

// MemStore is an in-memory Store keyed by primary key. Records go in and
// come out as copies, and All preserves insertion order.
type MemStore struct {
	mu      sync.RWMutex
	pkField string
	records map[string]map[string]any
	order   []string
}

// NewMemStore builds an empty store keyed by the given primary-key
// attribute, defaulting to "id".
func NewMemStore(pkField string) *MemStore {
	if pkField == "" {
		pkField = "id"
	}
	return &MemStore{
		pkField: pkField,
		records: make(map[string]map[string]any),
	}
}

// Seed saves records in order, assigning primary keys where missing. It
// is a convenience for fixtures.
func (s *MemStore) Seed(records ...map[string]any) error {
	for _, rec := range records {
		if _, err := s.Save(context.Background(), rec); err != nil {
			return err
		}
	}
	return nil
}

// Select returns copies of the records matching every selector, in
// insertion order.
func (s *MemStore) Select(ctx context.Context, selectors map[string]any) ([]map[string]any, error) {
	if err := ValidateSelectors(selectors); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []map[string]any
	for _, pk := range s.order {
		rec := s.records[pk]
		if MatchesSelectors(rec, selectors) {
			out = append(out, maps.Clone(rec))
		}
	}
	return out, nil
}

// All returns copies of every record in insertion order.
func (s *MemStore) All(ctx context.Context) ([]map[string]any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]map[string]any, 0, len(s.order))
	for _, pk := range s.order {
		out = append(out, maps.Clone(s.records[pk]))
	}
	return out, nil
}

// Save upserts a copy of the record, assigning a fresh UUID primary key
// when the record carries none, and returns the stored form.
func (s *MemStore) Save(ctx context.Context, record map[string]any) (map[string]any, error) {
	if record == nil {
		return nil, fmt.Errorf("cannot save a nil record")
	}
	stored := maps.Clone(record)
	pk := stored[s.pkField]
	if !field.Truthy(pk) {
		pk = uuid.NewString()
		stored[s.pkField] = pk
	}
	key := fmt.Sprintf("%v", pk)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[key]; !exists {
		s.order = append(s.order, key)
	}
	s.records[key] = stored
	return maps.Clone(stored), nil
}

// Delete removes the record whose primary key equals pk.
func (s *MemStore) Delete(ctx context.Context, pk any) error {
	key := fmt.Sprintf("%v", pk)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[key]; !ok {
		return fmt.Errorf("%w: %s %v", field.ErrNotFound, s.pkField, pk)
	}
	delete(s.records, key)
	for i, k := range s.order {
		if k == key {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

// Len reports the number of stored records.
func (s *MemStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}
