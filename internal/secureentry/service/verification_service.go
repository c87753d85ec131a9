package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/secureentry/secureentry/internal/clock"
	"github.com/secureentry/secureentry/internal/logging"
	"github.com/secureentry/secureentry/internal/metrics"
	"github.com/secureentry/secureentry/internal/secureentry/store"
	"github.com/secureentry/secureentry/internal/secureentry/types"
)

type VerificationPolicy struct {
	// RequireKnownKiosks denies scans from kiosks that are not
	// commissioned.
	RequireKnownKiosks bool

	// StoreImages keeps the submitted frame with each entry.
	StoreImages bool
}

type VerificationService struct {
	registry *KioskRegistry
	matcher  Matcher
	workers  store.WorkerStore
	entries  store.EntryStore
	policy   VerificationPolicy
	clock    clock.Clock
	log      logging.Logger
	metrics  *metrics.Metrics
}

type VerificationDeps struct {
	Registry *KioskRegistry
	Matcher  Matcher
	Workers  store.WorkerStore
	Entries  store.EntryStore
	Policy   VerificationPolicy
	Clock    clock.Clock
	Logger   logging.Logger
	Metrics  *metrics.Metrics
}

func NewVerificationService(d VerificationDeps) *VerificationService {
	if d.Clock == nil {
		d.Clock = clock.Real()
	}
	if d.Logger == nil {
		d.Logger = logging.Discard()
	}
	return &VerificationService{
		registry: d.Registry,
		matcher:  d.Matcher,
		workers:  d.Workers,
		entries:  d.Entries,
		policy:   d.Policy,
		clock:    d.Clock,
		log:      d.Logger,
		metrics:  d.Metrics,
	}
}

// Decide resolves one scan to a decision. Every decision is appended to
// the entry log. Only a kiosk registry failure is returned as an error.
func (s *VerificationService) Decide(ctx context.Context, req types.VerifyRequest) (types.VerifyResponse, error) {
	now := s.clock.Now().UTC()
	kioskID := strings.TrimSpace(req.KioskID)

	if kioskID != "" && s.registry != nil {
		known, err := s.registry.IsKnown(ctx, kioskID)
		if err != nil {
			return types.VerifyResponse{}, err
		}
		if err := s.registry.NoteSeen(ctx, kioskID); err != nil {
			s.log.Warn(ctx, "note kiosk seen failed", "kiosk_id", kioskID, "err", err)
		}
		if !known && s.policy.RequireKnownKiosks {
			return s.finish(ctx, req, now, types.CodeUnknownKiosk, nil, nil), nil
		}
	} else if s.policy.RequireKnownKiosks {
		return s.finish(ctx, req, now, types.CodeUnknownKiosk, nil, nil), nil
	}

	img, err := DecodeImage(req.Image)
	if err != nil {
		return s.finish(ctx, req, now, types.CodeInvalidImage, nil, nil), nil
	}

	workerID, matched, err := s.matcher.Match(ctx, img)
	if err != nil {
		s.log.Error(ctx, "matcher failed", "kiosk_id", kioskID, "err", err)
		return s.finish(ctx, req, now, types.CodeMatcherError, nil, img), nil
	}
	if !matched {
		return s.finish(ctx, req, now, types.CodeNoMatch, nil, img), nil
	}

	worker, err := s.workers.GetWorker(ctx, workerID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return s.finish(ctx, req, now, types.CodeNoMatch, nil, img), nil
	case err != nil:
		s.log.Error(ctx, "load matched worker failed", "worker_id", workerID, "err", err)
		return s.finish(ctx, req, now, types.CodeMatcherError, nil, img), nil
	case !worker.IsActive(now):
		return s.finish(ctx, req, now, types.CodeWorkerExpired, &workerID, img), nil
	}

	return s.finish(ctx, req, now, types.CodeGranted, &workerID, img), nil
}

func (s *VerificationService) finish(
	ctx context.Context,
	req types.VerifyRequest,
	now time.Time,
	code int,
	workerID *int64,
	img []byte,
) types.VerifyResponse {
	msg := types.CodeMessage(code)
	s.metrics.ObserveDecision(code)
	s.recordEntry(ctx, req, code, msg, workerID, img, now)

	s.log.Info(ctx, "scan decided",
		"kiosk_id", strings.TrimSpace(req.KioskID),
		"code", code,
		"granted", code == types.CodeGranted,
	)

	return types.VerifyResponse{
		Granted:    code == types.CodeGranted,
		Code:       code,
		Message:    msg,
		ServerTime: now.Format(time.RFC3339Nano),
	}
}

// recordEntry appends the decision to the entry log. A failed write is
// logged and counted; the kiosk still receives its decision.
func (s *VerificationService) recordEntry(
	ctx context.Context,
	req types.VerifyRequest,
	code int,
	msg string,
	workerID *int64,
	img []byte,
	decidedAt time.Time,
) {
	rec := store.EntryRecord{
		DecidedAt:   decidedAt,
		RequestedAt: parseOptionalTimestamp(req.Timestamp),
		KioskID:     strings.TrimSpace(req.KioskID),
		WorkerID:    workerID,
		Code:        code,
		Message:     msg,
	}
	if s.policy.StoreImages {
		rec.FaceImage = img
	}

	if err := s.entries.RecordEntry(ctx, rec); err != nil {
		s.metrics.EntryWriteFailed()
		s.log.Error(ctx, "record entry failed", "code", code, "err", err)
	}
}

// parseOptionalTimestamp returns nil for an empty or unparseable value.
func parseOptionalTimestamp(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return nil
	}
	u := t.UTC()
	return &u
}
