package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	dbpkg "github.com/secureentry/secureentry/internal/db"
	"github.com/secureentry/secureentry/internal/secureentry/store"
)

type EntryStore struct {
	db     *sql.DB
	writer *dbpkg.Writer
}

func NewEntryStore(db *sql.DB, writer *dbpkg.Writer) *EntryStore {
	return &EntryStore{db: db, writer: writer}
}

func (s *EntryStore) RecordEntry(ctx context.Context, rec store.EntryRecord) error {
	if rec.DecidedAt.IsZero() {
		rec.DecidedAt = time.Now().UTC()
	}
	decidedMs := rec.DecidedAt.UTC().UnixMilli()

	var requestedMs any
	if rec.RequestedAt != nil {
		requestedMs = rec.RequestedAt.UTC().UnixMilli()
	}

	var kioskID any
	if id := strings.TrimSpace(rec.KioskID); id != "" {
		kioskID = id
	}

	var workerID any
	if rec.WorkerID != nil {
		workerID = *rec.WorkerID
	}

	var image any
	if len(rec.FaceImage) > 0 {
		image = compressImage(rec.FaceImage)
	}

	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if kioskID != nil {
			if err := ensureKiosk(ctx, tx, kioskID.(string), decidedMs); err != nil {
				return err
			}
		}

		if _, err := tx.ExecContext(ctx, `
INSERT INTO entries(
  decided_at_ms, requested_at_ms, kiosk_id, worker_id, code, message, face_image_zst
) VALUES (?, ?, ?, ?, ?, ?, ?);
`,
			decidedMs, requestedMs, kioskID, workerID, rec.Code, rec.Message, image,
		); err != nil {
			return fmt.Errorf("RecordEntry insert: %w", err)
		}
		return nil
	})
}

func (s *EntryStore) QueryEntries(ctx context.Context, f store.EntryFilter) ([]store.EntryRecord, error) {
	var (
		where []string
		args  []any
	)
	if f.From != nil {
		where = append(where, "decided_at_ms >= ?")
		args = append(args, f.From.UTC().UnixMilli())
	}
	if f.To != nil {
		where = append(where, "decided_at_ms < ?")
		args = append(args, f.To.UTC().UnixMilli())
	}
	if f.WorkerID != nil {
		where = append(where, "worker_id = ?")
		args = append(args, *f.WorkerID)
	}
	switch f.Validity {
	case store.ValidityValid:
		where = append(where, "code = 0")
	case store.ValidityInvalid:
		where = append(where, "code <> 0")
	}

	q := `
SELECT id, decided_at_ms, requested_at_ms, kiosk_id, worker_id, code, message, face_image_zst
FROM entries`
	if len(where) > 0 {
		q += "\nWHERE " + strings.Join(where, " AND ")
	}
	q += "\nORDER BY decided_at_ms DESC, id DESC;"

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("QueryEntries query: %w", err)
	}
	defer rows.Close()

	var out []store.EntryRecord
	for rows.Next() {
		var (
			rec         store.EntryRecord
			decidedMs   int64
			requestedMs sql.NullInt64
			kioskID     sql.NullString
			workerID    sql.NullInt64
			image       []byte
		)
		if err := rows.Scan(&rec.ID, &decidedMs, &requestedMs, &kioskID, &workerID,
			&rec.Code, &rec.Message, &image); err != nil {
			return nil, fmt.Errorf("QueryEntries scan: %w", err)
		}

		rec.DecidedAt = time.UnixMilli(decidedMs).UTC()
		if requestedMs.Valid {
			t := time.UnixMilli(requestedMs.Int64).UTC()
			rec.RequestedAt = &t
		}
		rec.KioskID = kioskID.String
		if workerID.Valid {
			id := workerID.Int64
			rec.WorkerID = &id
		}
		if rec.FaceImage, err = decompressImage(image); err != nil {
			return nil, fmt.Errorf("QueryEntries entry %d: %w", rec.ID, err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("QueryEntries rows: %w", err)
	}
	return out, nil
}

func (s *EntryStore) PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	var deleted int64
	err := s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`DELETE FROM entries WHERE decided_at_ms < ?;`, cutoff.UTC().UnixMilli())
		if err != nil {
			return fmt.Errorf("PruneOlderThan: %w", err)
		}
		deleted, err = res.RowsAffected()
		return err
	})
	return deleted, err
}
