package service

import (
	"context"
	"encoding/base64"
	"strings"
	"time"

	"github.com/secureentry/secureentry/internal/secureentry/store"
	"github.com/secureentry/secureentry/internal/secureentry/types"
)

type ReportQuery struct {
	DateFrom string // RFC3339 or YYYY-MM-DD
	DateTo   string // a bare date covers the whole day
	WorkerID *int64
	Valid    bool
	Invalid  bool
}

type ReportService struct {
	entries store.EntryStore
	workers store.WorkerStore
}

func NewReportService(entries store.EntryStore, workers store.WorkerStore) *ReportService {
	return &ReportService{entries: entries, workers: workers}
}

// Report lists entries newest first. Selecting both or neither validity
// flag returns every entry.
func (s *ReportService) Report(ctx context.Context, q ReportQuery) (types.Report, error) {
	f := store.EntryFilter{WorkerID: q.WorkerID}

	if q.DateFrom != "" {
		from, _, err := parseDate(q.DateFrom)
		if err != nil {
			return types.Report{}, invalid("date_from", "expected RFC3339 or YYYY-MM-DD")
		}
		f.From = &from
	}
	if q.DateTo != "" {
		to, dateOnly, err := parseDate(q.DateTo)
		if err != nil {
			return types.Report{}, invalid("date_to", "expected RFC3339 or YYYY-MM-DD")
		}
		if dateOnly {
			to = to.AddDate(0, 0, 1)
		} else {
			to = to.Add(time.Millisecond)
		}
		f.To = &to
	}

	switch {
	case q.Valid && !q.Invalid:
		f.Validity = store.ValidityValid
	case q.Invalid && !q.Valid:
		f.Validity = store.ValidityInvalid
	}

	recs, err := s.entries.QueryEntries(ctx, f)
	if err != nil {
		return types.Report{}, err
	}

	names := map[int64]string{}
	if s.workers != nil {
		workers, err := s.workers.ListWorkers(ctx)
		if err != nil {
			return types.Report{}, err
		}
		for _, w := range workers {
			names[w.ID] = w.Name
		}
	}

	data := make([]types.ReportEntry, 0, len(recs))
	for _, rec := range recs {
		e := types.ReportEntry{
			ID:       rec.ID,
			Date:     rec.DecidedAt.UTC().Format(time.RFC3339Nano),
			Code:     rec.Code,
			Message:  rec.Message,
			WorkerID: rec.WorkerID,
			KioskID:  rec.KioskID,
		}
		if rec.WorkerID != nil {
			e.WorkerName = names[*rec.WorkerID]
		}
		if len(rec.FaceImage) > 0 {
			e.FaceImage = base64.StdEncoding.EncodeToString(rec.FaceImage)
		}
		data = append(data, e)
	}

	return types.Report{
		Count: len(data),
		Filters: types.ReportFilters{
			DateFrom: q.DateFrom,
			DateTo:   q.DateTo,
			WorkerID: q.WorkerID,
			Valid:    q.Valid,
			Invalid:  q.Invalid,
		},
		Data: data,
	}, nil
}

// parseDate accepts RFC3339 or a bare date, read as UTC midnight.
func parseDate(s string) (t time.Time, dateOnly bool, err error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t.UTC(), true, nil
	}
	t, err = time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, false, err
	}
	return t.UTC(), false, nil
}

// ParseInstant parses an RFC3339 instant or a bare date (UTC midnight).
func ParseInstant(s string) (time.Time, error) {
	t, _, err := parseDate(s)
	return t, err
}
