package service

import (
	"context"
	"strings"
	"time"

	"github.com/secureentry/secureentry/internal/clock"
	"github.com/secureentry/secureentry/internal/credentials"
	"github.com/secureentry/secureentry/internal/logging"
	"github.com/secureentry/secureentry/internal/metrics"
	"github.com/secureentry/secureentry/internal/secureentry/store"
	"github.com/secureentry/secureentry/internal/secureentry/types"
)

// RevokeSkew is how far before "now" a revoked worker's expiration is set.
const RevokeSkew = time.Second

// Credential is an uploaded credential image.
type Credential struct {
	Data        []byte
	ContentType string
}

type CreateWorkerInput struct {
	Name       string
	ExpiresAt  time.Time
	Credential *Credential
}

// UpdateWorkerInput carries only the supplied fields; nil means keep.
type UpdateWorkerInput struct {
	Name       *string
	ExpiresAt  *time.Time
	Credential *Credential
}

// DirectoryService owns the worker lifecycle. Active status is derived
// from the clock at read time and never stored.
type DirectoryService struct {
	workers store.WorkerStore
	creds   credentials.Store
	clock   clock.Clock
	log     logging.Logger
	metrics *metrics.Metrics
}

func NewDirectoryService(
	workers store.WorkerStore,
	creds credentials.Store,
	clk clock.Clock,
	log logging.Logger,
	m *metrics.Metrics,
) *DirectoryService {
	if clk == nil {
		clk = clock.Real()
	}
	if log == nil {
		log = logging.Discard()
	}
	return &DirectoryService{workers: workers, creds: creds, clock: clk, log: log, metrics: m}
}

func (s *DirectoryService) List(ctx context.Context) ([]types.Worker, error) {
	recs, err := s.workers.ListWorkers(ctx)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()
	out := make([]types.Worker, 0, len(recs))
	for _, rec := range recs {
		out = append(out, ToWorker(rec, now))
	}
	return out, nil
}

func (s *DirectoryService) Create(ctx context.Context, in CreateWorkerInput) (w types.Worker, err error) {
	defer func() { s.metrics.ObserveDirectoryOp("create", err, outcome) }()

	name := strings.TrimSpace(in.Name)
	switch {
	case name == "":
		return types.Worker{}, invalid("name", "name is required")
	case in.ExpiresAt.IsZero():
		return types.Worker{}, invalid("expiration_date", "expiration date is required")
	case in.Credential == nil || len(in.Credential.Data) == 0:
		return types.Worker{}, invalid("file", "credential image is required")
	case !IsImage(in.Credential.Data):
		return types.Worker{}, invalid("file", "credential must be an image")
	}

	ref, err := s.creds.Put(ctx, in.Credential.Data, in.Credential.ContentType)
	if err != nil {
		return types.Worker{}, err
	}

	now := s.clock.Now().UTC()
	rec, err := s.workers.CreateWorker(ctx, store.WorkerRecord{
		Name:             name,
		ExpiresAt:        in.ExpiresAt.UTC(),
		CredentialRef:    ref,
		CredentialDigest: Digest(in.Credential.Data),
		CreatedAt:        now,
		UpdatedAt:        now,
	})
	if err != nil {
		s.discard(ctx, ref)
		return types.Worker{}, err
	}

	s.log.Info(ctx, "worker created", "worker_id", rec.ID)
	return ToWorker(rec, s.clock.Now()), nil
}

// Update applies the supplied fields. A replacement credential is written
// under a fresh reference first, swapped in by the record write, and the
// superseded artifact is removed only after that write commits.
func (s *DirectoryService) Update(ctx context.Context, id int64, in UpdateWorkerInput) (w types.Worker, err error) {
	defer func() { s.metrics.ObserveDirectoryOp("update", err, outcome) }()

	var name string
	if in.Name != nil {
		name = strings.TrimSpace(*in.Name)
		if name == "" {
			return types.Worker{}, invalid("name", "name must not be empty")
		}
	}
	if in.ExpiresAt != nil && in.ExpiresAt.IsZero() {
		return types.Worker{}, invalid("expiration_date", "expiration date must not be empty")
	}
	if in.Credential != nil {
		if len(in.Credential.Data) == 0 {
			return types.Worker{}, invalid("file", "credential image is empty")
		}
		if !IsImage(in.Credential.Data) {
			return types.Worker{}, invalid("file", "credential must be an image")
		}
	}

	if _, err := s.workers.GetWorker(ctx, id); err != nil {
		return types.Worker{}, err
	}

	var newRef, newDigest string
	if in.Credential != nil {
		newRef, err = s.creds.Put(ctx, in.Credential.Data, in.Credential.ContentType)
		if err != nil {
			return types.Worker{}, err
		}
		newDigest = Digest(in.Credential.Data)
	}

	var oldRef string
	now := s.clock.Now().UTC()
	rec, err := s.workers.UpdateWorker(ctx, id, func(rec *store.WorkerRecord) error {
		oldRef = rec.CredentialRef
		if in.Name != nil {
			rec.Name = name
		}
		if in.ExpiresAt != nil {
			rec.ExpiresAt = in.ExpiresAt.UTC()
		}
		if newRef != "" {
			rec.CredentialRef = newRef
			rec.CredentialDigest = newDigest
		}
		rec.UpdatedAt = now
		return nil
	})
	if err != nil {
		if newRef != "" {
			s.discard(ctx, newRef)
		}
		return types.Worker{}, err
	}

	if newRef != "" && oldRef != "" && oldRef != newRef {
		s.discard(ctx, oldRef)
	}

	s.log.Info(ctx, "worker updated", "worker_id", id, "credential_replaced", newRef != "")
	return ToWorker(rec, s.clock.Now()), nil
}

// Revoke closes the worker's window immediately by moving the expiration
// to RevokeSkew before now. An already expired worker is left untouched.
func (s *DirectoryService) Revoke(ctx context.Context, id int64) (w types.Worker, err error) {
	defer func() { s.metrics.ObserveDirectoryOp("revoke", err, outcome) }()

	now := s.clock.Now().UTC()
	rec, err := s.workers.UpdateWorker(ctx, id, func(rec *store.WorkerRecord) error {
		if !rec.IsActive(now) {
			return store.ErrUnchanged
		}
		rec.ExpiresAt = now.Add(-RevokeSkew)
		rec.UpdatedAt = now
		return nil
	})
	if err != nil {
		return types.Worker{}, err
	}

	s.log.Info(ctx, "worker revoked", "worker_id", id)
	return ToWorker(rec, s.clock.Now()), nil
}

// discard deletes an artifact that no record references.
func (s *DirectoryService) discard(ctx context.Context, ref string) {
	// The request may already be cancelled; cleanup should still run.
	ctx = context.WithoutCancel(ctx)
	if err := s.creds.Delete(ctx, ref); err != nil {
		s.log.Warn(ctx, "credential cleanup failed", "ref", ref, "err", err)
	}
}

// ToWorker renders rec with its status as of now.
func ToWorker(rec store.WorkerRecord, now time.Time) types.Worker {
	return types.Worker{
		ID:             rec.ID,
		Name:           rec.Name,
		ExpirationDate: rec.ExpiresAt.UTC().Format(time.RFC3339),
		Active:         rec.IsActive(now),
		CreatedAt:      rec.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:      rec.UpdatedAt.UTC().Format(time.RFC3339),
	}
}
