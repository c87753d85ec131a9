package store

import (
	"context"
	"time"
)

// EntryRecord is one verification decision in the append-only entry log.
type EntryRecord struct {
	ID          int64
	DecidedAt   time.Time
	RequestedAt *time.Time // kiosk-reported capture time
	KioskID     string
	WorkerID    *int64
	Code        int
	Message     string
	FaceImage   []byte // nil when images are not kept
}

func (e EntryRecord) Granted() bool { return e.Code == 0 }

type Validity int

const (
	ValidityAll Validity = iota
	ValidityValid
	ValidityInvalid
)

// EntryFilter selects entries. From is inclusive, To exclusive.
type EntryFilter struct {
	From     *time.Time
	To       *time.Time
	WorkerID *int64
	Validity Validity
}

// Match reports whether rec passes the filter.
func (f EntryFilter) Match(rec EntryRecord) bool {
	if f.From != nil && rec.DecidedAt.Before(*f.From) {
		return false
	}
	if f.To != nil && !rec.DecidedAt.Before(*f.To) {
		return false
	}
	if f.WorkerID != nil && (rec.WorkerID == nil || *rec.WorkerID != *f.WorkerID) {
		return false
	}
	switch f.Validity {
	case ValidityValid:
		return rec.Granted()
	case ValidityInvalid:
		return !rec.Granted()
	}
	return true
}

type EntryStore interface {
	RecordEntry(ctx context.Context, rec EntryRecord) error

	// QueryEntries returns matching entries, newest first.
	QueryEntries(ctx context.Context, f EntryFilter) ([]EntryRecord, error)

	PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
