package analysis

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/ZanzyTHEbar/credit-risk-lens/internal/types"
)

// ErrApplicationNotFound is returned for unknown application ids.
var ErrApplicationNotFound = errors.New("application not found")

// RecordStore looks applications up by id. Implementations return an error
// wrapping ErrApplicationNotFound for unknown ids.
type RecordStore interface {
	Get(ctx context.Context, id string) (*types.ApplicationRecord, error)
}

// ResultSink receives every freshly computed result, e.g. for persistence.
type ResultSink interface {
	SaveAnalysis(ctx context.Context, result *AnalysisResult) error
}

// MemoryStore is an in-process RecordStore.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]types.ApplicationRecord
}

// NewMemoryStore creates a store holding records.
func NewMemoryStore(records ...types.ApplicationRecord) *MemoryStore {
	s := &MemoryStore{records: make(map[string]types.ApplicationRecord, len(records))}
	s.PutAll(records)
	return s
}

// Put adds or replaces one record.
func (s *MemoryStore) Put(r types.ApplicationRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[r.ID] = r
}

// PutAll adds or replaces records.
func (s *MemoryStore) PutAll(records []types.ApplicationRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range records {
		s.records[r.ID] = r
	}
}

// Get returns a copy of the record.
func (s *MemoryStore) Get(_ context.Context, id string) (*types.ApplicationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.records[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrApplicationNotFound, id)
	}
	return &r, nil
}

// IDs lists stored ids in sorted order.
func (s *MemoryStore) IDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.records))
	for id := range s.records {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Len returns the number of records.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
