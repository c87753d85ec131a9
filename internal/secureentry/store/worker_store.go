package store

import (
	"context"
	"time"
)

type WorkerRecord struct {
	ID               int64
	Name             string
	ExpiresAt        time.Time
	CredentialRef    string
	CredentialDigest string // BLAKE3 hex of the credential artifact
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// IsActive reports whether the authorization window is still open at now.
func (w WorkerRecord) IsActive(now time.Time) bool {
	return now.Before(w.ExpiresAt)
}

type WorkerStore interface {
	// ListWorkers returns every worker ordered by id.
	ListWorkers(ctx context.Context) ([]WorkerRecord, error)
	GetWorker(ctx context.Context, id int64) (WorkerRecord, error)

	// FindByDigest returns the newest worker whose credential digest
	// matches, or ErrNotFound.
	FindByDigest(ctx context.Context, digest string) (WorkerRecord, error)

	// CreateWorker assigns a fresh id and stores rec.
	CreateWorker(ctx context.Context, rec WorkerRecord) (WorkerRecord, error)

	// UpdateWorker loads the record, lets fn modify it, and stores the
	// result as one serialized write. An error from fn aborts the write.
	UpdateWorker(ctx context.Context, id int64, fn func(*WorkerRecord) error) (WorkerRecord, error)
}
