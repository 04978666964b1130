package target

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"callsync/internal/crm"
)

// MemoryStore is an in-memory Store for tests and early development.
type MemoryStore struct {
	mu    sync.Mutex
	seq   int
	rows  map[int]map[string]any
	codes FieldCodes
}

func NewMemoryStore(codes FieldCodes) *MemoryStore {
	return &MemoryStore{rows: map[int]map[string]any{}, codes: codes}
}

func (s *MemoryStore) FindByDedupKey(ctx context.Context, key string) ([]Record, error) {
	if key == "" {
		return nil, fmt.Errorf("target: dedup key is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Record
	for id, fields := range s.rows {
		if crm.FieldString(fields, s.codes.DedupKey) == key {
			rec := recordFromRaw(fields, s.codes)
			rec.ID = id
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].ID < out[b].ID })
	return out, nil
}

func (s *MemoryStore) ListByPeriod(ctx context.Context, from, to time.Time, onlyMissingLink bool) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Record
	for id, fields := range s.rows {
		rec := recordFromRaw(fields, s.codes)
		rec.ID = id
		if rec.CallStartedAt.IsZero() || rec.CallStartedAt.Before(from) || rec.CallStartedAt.After(to) {
			continue
		}
		if onlyMissingLink && rec.HasActivityLink() {
			continue
		}
		out = append(out, rec)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].ID < out[b].ID })
	return out, nil
}

func (s *MemoryStore) Create(ctx context.Context, fields map[string]any) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	row := make(map[string]any, len(fields))
	for k, v := range fields {
		row[k] = v
	}
	s.rows[s.seq] = row
	return s.seq, nil
}

func (s *MemoryStore) Update(ctx context.Context, id int, fields map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.rows[id]
	if !ok {
		return fmt.Errorf("target: record %d not found", id)
	}
	// Patch semantics: absent keys keep their previous values.
	for k, v := range fields {
		row[k] = v
	}
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id int) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.rows[id]
	if !ok {
		return Record{}, fmt.Errorf("target: record %d not found", id)
	}
	rec := recordFromRaw(row, s.codes)
	rec.ID = id
	return rec, nil
}

// Fields exposes a copy of the stored raw fields for assertions.
func (s *MemoryStore) Fields(id int) map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.rows[id]
	if !ok {
		return nil
	}
	out := make(map[string]any, len(row))
	for k, v := range row {
		out[k] = v
	}
	return out
}

// Len reports the number of stored records.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows)
}
