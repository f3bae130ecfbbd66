package warehouse

import (
	"context"
	"sync"
)

// MemoryStore keeps tables in process memory (dry runs, tests)
type MemoryStore struct {
	mu     sync.Mutex
	tables map[string]*memTable
}

type memTable struct {
	rows  []Row
	index map[string]int
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tables: make(map[string]*memTable)}
}

// Append upserts rows by natural key
func (s *MemoryStore) Append(_ context.Context, spec TableSpec, rows []Row) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tables[spec.Name]
	if !ok {
		t = &memTable{index: make(map[string]int)}
		s.tables[spec.Name] = t
	}

	for _, r := range rows {
		key, err := spec.KeyOf(r)
		if err != nil {
			return 0, err
		}
		if pos, exists := t.index[key]; exists {
			t.rows[pos] = r
			continue
		}
		t.index[key] = len(t.rows)
		t.rows = append(t.rows, r)
	}
	return len(rows), nil
}

// Read returns a copy of a table's rows in insertion order
func (s *MemoryStore) Read(_ context.Context, spec TableSpec) ([]Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tables[spec.Name]
	if !ok {
		return nil, nil
	}
	return append([]Row(nil), t.rows...), nil
}

// Len returns the row count of a table
func (s *MemoryStore) Len(table string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t, ok := s.tables[table]; ok {
		return len(t.rows)
	}
	return 0
}
