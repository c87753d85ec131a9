package service

import (
	"context"
	"encoding/hex"
	"errors"

	"github.com/zeebo/blake3"

	"github.com/secureentry/secureentry/internal/secureentry/store"
)

// Matcher identifies the worker shown in an image. It is the seam for a
// real face-matching backend.
type Matcher interface {
	Match(ctx context.Context, image []byte) (workerID int64, matched bool, err error)
}

// Digest is the BLAKE3-256 hex digest of b.
func Digest(b []byte) string {
	sum := blake3.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// DigestMatcher matches a frame that is byte-identical to a stored
// credential. It stands in for a face matcher in dev and tests.
type DigestMatcher struct {
	workers store.WorkerStore
}

func NewDigestMatcher(workers store.WorkerStore) *DigestMatcher {
	return &DigestMatcher{workers: workers}
}

func (m *DigestMatcher) Match(ctx context.Context, image []byte) (int64, bool, error) {
	rec, err := m.workers.FindByDigest(ctx, Digest(image))
	if errors.Is(err, store.ErrNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return rec.ID, true, nil
}

// MatcherFunc adapts a function to Matcher.
type MatcherFunc func(ctx context.Context, image []byte) (int64, bool, error)

func (f MatcherFunc) Match(ctx context.Context, image []byte) (int64, bool, error) {
	return f(ctx, image)
}
