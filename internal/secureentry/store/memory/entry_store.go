package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/secureentry/secureentry/internal/secureentry/store"
)

// EntryStore is an in-memory append-only entry log.
type EntryStore struct {
	mu      sync.Mutex
	nextID  int64
	entries []store.EntryRecord
}

func NewEntryStore() *EntryStore {
	return &EntryStore{nextID: 1}
}

func (s *EntryStore) RecordEntry(_ context.Context, rec store.EntryRecord) error {
	if rec.DecidedAt.IsZero() {
		rec.DecidedAt = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	rec.ID = s.nextID
	s.nextID++
	s.entries = append(s.entries, rec)
	return nil
}

func (s *EntryStore) QueryEntries(_ context.Context, f store.EntryFilter) ([]store.EntryRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []store.EntryRecord
	for _, rec := range s.entries {
		if f.Match(rec) {
			out = append(out, rec)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].DecidedAt.Equal(out[j].DecidedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].DecidedAt.After(out[j].DecidedAt)
	})
	return out, nil
}

func (s *EntryStore) PruneOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.entries[:0]
	var deleted int64
	for _, rec := range s.entries {
		if rec.DecidedAt.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, rec)
	}
	s.entries = kept
	return deleted, nil
}

// Entries returns a copy of all recorded entries in insertion order.
// Test-only helper.
func (s *EntryStore) Entries() []store.EntryRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]store.EntryRecord, len(s.entries))
	copy(out, s.entries)
	return out
}
