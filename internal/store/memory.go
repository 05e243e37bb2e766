package store

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore keeps records in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	records []Record
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Save(ctx context.Context, rec *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = append(s.records, *rec)
	return nil
}

func (s *MemoryStore) List(ctx context.Context, f Filter) ([]Record, error) {
	out := s.matching(f)
	for i := range out {
		out[i].Image = nil
	}
	return out, nil
}

func (s *MemoryStore) Get(ctx context.Context, id uuid.UUID) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, rec := range s.records {
		if rec.ID == id {
			rec.Image = append([]byte(nil), rec.Image...)
			return &rec, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) Labels(ctx context.Context, f Filter) ([]string, error) {
	recs := s.matching(f)
	out := make([]string, len(recs))
	for i, rec := range recs {
		out[i] = rec.Label
	}
	return out, nil
}

// matching returns copies of the records f selects, newest first.
func (s *MemoryStore) matching(f Filter) []Record {
	s.mu.RLock()
	out := make([]Record, 0, len(s.records))
	for _, rec := range s.records {
		if f.Owner == "" || rec.Owner == f.Owner {
			out = append(out, rec)
		}
	}
	s.mu.RUnlock()

	// newest first; later inserts win ties
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	reverseTies(out)

	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out
}

// reverseTies flips runs of equal timestamps so the last inserted comes first.
func reverseTies(recs []Record) {
	for i := 0; i < len(recs); {
		j := i + 1
		for j < len(recs) && recs[j].CreatedAt.Equal(recs[i].CreatedAt) {
			j++
		}
		for a, b := i, j-1; a < b; a, b = a+1, b-1 {
			recs[a], recs[b] = recs[b], recs[a]
		}
		i = j
	}
}

func (s *MemoryStore) Close() error {
	return nil
}
