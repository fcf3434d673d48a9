package store

import (
	"context"
	"sort"
	"sync"

	"github.com/rs-vn/document-search-platform/internal/document"
	apperrors "github.com/rs-vn/document-search-platform/pkg/errors"
)

// MemoryStore is an in-memory Store used in standalone mode and tests.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]document.Record
}

// NewMemory creates an empty MemoryStore.
func NewMemory() *MemoryStore {
	return &MemoryStore{records: make(map[string]document.Record)}
}

func (s *MemoryStore) CreateProcessing(ctx context.Context, rec document.Record) error {
	rec.Status = document.StatusProcessing
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.DocumentID] = rec
	return nil
}

func (s *MemoryStore) Upsert(ctx context.Context, rec document.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.DocumentID] = rec
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, documentID string) (*document.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[documentID]
	if !ok {
		return nil, apperrors.ErrDocumentNotFound
	}
	copied := rec
	return &copied, nil
}

func (s *MemoryStore) Delete(ctx context.Context, documentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, documentID)
	return nil
}

func (s *MemoryStore) List(ctx context.Context, offset, limit int) ([]document.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := s.sortedLocked(func(document.Record) bool { return true })
	if offset >= len(all) {
		return []document.Record{}, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

func (s *MemoryStore) ListCompleted(ctx context.Context, afterID string, limit int) ([]document.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	completed := s.sortedLocked(func(r document.Record) bool {
		return r.Status == document.StatusCompleted && r.DocumentID > afterID
	})
	if len(completed) > limit {
		completed = completed[:limit]
	}
	return completed, nil
}

func (s *MemoryStore) sortedLocked(keep func(document.Record) bool) []document.Record {
	records := make([]document.Record, 0, len(s.records))
	for _, rec := range s.records {
		if keep(rec) {
			records = append(records, rec)
		}
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].DocumentID < records[j].DocumentID
	})
	return records
}
