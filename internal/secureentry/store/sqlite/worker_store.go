package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	dbpkg "github.com/secureentry/secureentry/internal/db"
	"github.com/secureentry/secureentry/internal/secureentry/store"
)

const workerColumns = `id, name, expires_at_ms, credential_ref, credential_digest, created_at_ms, updated_at_ms`

type WorkerStore struct {
	db     *sql.DB
	writer *dbpkg.Writer
}

func NewWorkerStore(db *sql.DB, writer *dbpkg.Writer) *WorkerStore {
	return &WorkerStore{db: db, writer: writer}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanWorker(row rowScanner) (store.WorkerRecord, error) {
	var (
		rec                            store.WorkerRecord
		expiresMs, createdMs, updatedMs int64
	)
	if err := row.Scan(
		&rec.ID, &rec.Name, &expiresMs, &rec.CredentialRef, &rec.CredentialDigest, &createdMs, &updatedMs,
	); err != nil {
		return store.WorkerRecord{}, err
	}
	rec.ExpiresAt = time.UnixMilli(expiresMs).UTC()
	rec.CreatedAt = time.UnixMilli(createdMs).UTC()
	rec.UpdatedAt = time.UnixMilli(updatedMs).UTC()
	return rec, nil
}

func (s *WorkerStore) ListWorkers(ctx context.Context) ([]store.WorkerRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+workerColumns+` FROM workers ORDER BY id;`)
	if err != nil {
		return nil, fmt.Errorf("ListWorkers query: %w", err)
	}
	defer rows.Close()

	var out []store.WorkerRecord
	for rows.Next() {
		rec, err := scanWorker(rows)
		if err != nil {
			return nil, fmt.Errorf("ListWorkers scan: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListWorkers rows: %w", err)
	}
	return out, nil
}

func (s *WorkerStore) GetWorker(ctx context.Context, id int64) (store.WorkerRecord, error) {
	rec, err := scanWorker(s.db.QueryRowContext(ctx,
		`SELECT `+workerColumns+` FROM workers WHERE id = ?;`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return store.WorkerRecord{}, store.ErrNotFound
	}
	if err != nil {
		return store.WorkerRecord{}, fmt.Errorf("GetWorker %d: %w", id, err)
	}
	return rec, nil
}

func (s *WorkerStore) FindByDigest(ctx context.Context, digest string) (store.WorkerRecord, error) {
	rec, err := scanWorker(s.db.QueryRowContext(ctx,
		`SELECT `+workerColumns+` FROM workers WHERE credential_digest = ? ORDER BY id DESC LIMIT 1;`, digest))
	if errors.Is(err, sql.ErrNoRows) {
		return store.WorkerRecord{}, store.ErrNotFound
	}
	if err != nil {
		return store.WorkerRecord{}, fmt.Errorf("FindByDigest: %w", err)
	}
	return rec, nil
}

func (s *WorkerStore) CreateWorker(ctx context.Context, rec store.WorkerRecord) (store.WorkerRecord, error) {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = rec.CreatedAt
	}

	err := s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
INSERT INTO workers(
  name, expires_at_ms, credential_ref, credential_digest, created_at_ms, updated_at_ms
) VALUES (?, ?, ?, ?, ?, ?);
`,
			rec.Name, rec.ExpiresAt.UTC().UnixMilli(), rec.CredentialRef, rec.CredentialDigest,
			rec.CreatedAt.UTC().UnixMilli(), rec.UpdatedAt.UTC().UnixMilli(),
		)
		if err != nil {
			return fmt.Errorf("CreateWorker insert: %w", err)
		}
		rec.ID, err = res.LastInsertId()
		if err != nil {
			return fmt.Errorf("CreateWorker id: %w", err)
		}
		return nil
	})
	if err != nil {
		return store.WorkerRecord{}, err
	}
	return s.normalize(rec), nil
}

// UpdateWorker reads and rewrites the row inside one writer transaction,
// so concurrent updates to one id never interleave.
func (s *WorkerStore) UpdateWorker(ctx context.Context, id int64, fn func(*store.WorkerRecord) error) (store.WorkerRecord, error) {
	var out store.WorkerRecord

	err := s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		cur, err := scanWorker(tx.QueryRowContext(ctx,
			`SELECT `+workerColumns+` FROM workers WHERE id = ?;`, id))
		if errors.Is(err, sql.ErrNoRows) {
			return store.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("UpdateWorker load %d: %w", id, err)
		}

		next := cur
		if err := fn(&next); err != nil {
			if errors.Is(err, store.ErrUnchanged) {
				out = cur
				return nil
			}
			return err
		}
		next.ID = cur.ID
		next.CreatedAt = cur.CreatedAt

		if _, err := tx.ExecContext(ctx, `
UPDATE workers
SET name              = ?,
    expires_at_ms     = ?,
    credential_ref    = ?,
    credential_digest = ?,
    updated_at_ms     = ?
WHERE id = ?;
`,
			next.Name, next.ExpiresAt.UTC().UnixMilli(), next.CredentialRef, next.CredentialDigest,
			next.UpdatedAt.UTC().UnixMilli(), id,
		); err != nil {
			return fmt.Errorf("UpdateWorker %d: %w", id, err)
		}
		out = s.normalize(next)
		return nil
	})
	if err != nil {
		return store.WorkerRecord{}, err
	}
	return out, nil
}

// normalize truncates timestamps to the stored millisecond precision so
// returned records compare equal to ones read back later.
func (s *WorkerStore) normalize(rec store.WorkerRecord) store.WorkerRecord {
	rec.ExpiresAt = time.UnixMilli(rec.ExpiresAt.UnixMilli()).UTC()
	rec.CreatedAt = time.UnixMilli(rec.CreatedAt.UnixMilli()).UTC()
	rec.UpdatedAt = time.UnixMilli(rec.UpdatedAt.UnixMilli()).UTC()
	return rec
}
