package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	dbpkg "github.com/secureentry/secureentry/internal/db"
)

type KioskStore struct {
	db     *sql.DB
	writer *dbpkg.Writer
}

func NewKioskStore(db *sql.DB, writer *dbpkg.Writer) *KioskStore {
	return &KioskStore{db: db, writer: writer}
}

// IsKnown treats "known" as commissioned, enabled and not revoked.
func (s *KioskStore) IsKnown(ctx context.Context, kioskID string) (bool, error) {
	kioskID = strings.TrimSpace(kioskID)
	if kioskID == "" {
		return false, nil
	}

	var (
		enabled      int
		commissioned sql.NullInt64
		revoked      sql.NullInt64
	)
	err := s.db.QueryRowContext(ctx, `
SELECT enabled, commissioned_at_ms, revoked_at_ms
FROM kiosks
WHERE kiosk_id = ?;
`, kioskID).Scan(&enabled, &commissioned, &revoked)

	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("IsKnown query: %w", err)
	}

	return enabled == 1 && commissioned.Valid && !revoked.Valid, nil
}

// MarkSeen records the kiosk (even an unknown one) and bumps last_seen.
func (s *KioskStore) MarkSeen(ctx context.Context, kioskID string, t time.Time) error {
	kioskID = strings.TrimSpace(kioskID)
	if kioskID == "" {
		return nil
	}
	if t.IsZero() {
		t = time.Now().UTC()
	}
	ms := t.UTC().UnixMilli()

	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if err := ensureKiosk(ctx, tx, kioskID, ms); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
UPDATE kiosks
SET last_seen_at_ms = ?,
    updated_at_ms   = ?
WHERE kiosk_id = ?;
`, ms, ms, kioskID); err != nil {
			return fmt.Errorf("MarkSeen update kiosk: %w", err)
		}
		return nil
	})
}
