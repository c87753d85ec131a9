// Package memory holds mutex-guarded stores for tests and dev runs.
package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/secureentry/secureentry/internal/secureentry/store"
)

type WorkerStore struct {
	mu     sync.RWMutex
	nextID int64
	byID   map[int64]store.WorkerRecord
}

func NewWorkerStore() *WorkerStore {
	return &WorkerStore{
		nextID: 1,
		byID:   make(map[int64]store.WorkerRecord),
	}
}

func (s *WorkerStore) ListWorkers(_ context.Context) ([]store.WorkerRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]store.WorkerRecord, 0, len(s.byID))
	for _, rec := range s.byID {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *WorkerStore) GetWorker(_ context.Context, id int64) (store.WorkerRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.byID[id]
	if !ok {
		return store.WorkerRecord{}, store.ErrNotFound
	}
	return rec, nil
}

func (s *WorkerStore) FindByDigest(_ context.Context, digest string) (store.WorkerRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		found store.WorkerRecord
		ok    bool
	)
	for _, rec := range s.byID {
		if rec.CredentialDigest == digest && (!ok || rec.ID > found.ID) {
			found, ok = rec, true
		}
	}
	if !ok {
		return store.WorkerRecord{}, store.ErrNotFound
	}
	return found, nil
}

func (s *WorkerStore) CreateWorker(_ context.Context, rec store.WorkerRecord) (store.WorkerRecord, error) {
	now := time.Now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = rec.CreatedAt
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec.ID = s.nextID
	s.nextID++
	s.byID[rec.ID] = rec
	return rec, nil
}

// UpdateWorker holds the write lock across fn, so concurrent updates to
// the same id apply one after the other.
func (s *WorkerStore) UpdateWorker(_ context.Context, id int64, fn func(*store.WorkerRecord) error) (store.WorkerRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.byID[id]
	if !ok {
		return store.WorkerRecord{}, store.ErrNotFound
	}

	next := cur
	if err := fn(&next); err != nil {
		if errors.Is(err, store.ErrUnchanged) {
			return cur, nil
		}
		return store.WorkerRecord{}, err
	}
	next.ID = cur.ID
	next.CreatedAt = cur.CreatedAt
	s.byID[id] = next
	return next, nil
}
