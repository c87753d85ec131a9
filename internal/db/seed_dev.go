package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

type SeedDevOptions struct {
	// Kiosks to commission in addition to kiosk-001.
	KnownKiosks []string
}

// SeedDev commissions the development kiosks so a fresh database accepts
// scans from them straight away.
func SeedDev(ctx context.Context, db *sql.DB, opt SeedDevOptions) error {
	now := time.Now().UTC().UnixMilli()

	kiosks := append([]string{"kiosk-001"}, opt.KnownKiosks...)
	for _, id := range kiosks {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, err := db.ExecContext(ctx, `
INSERT INTO kiosks(
  kiosk_id, display_name, enabled, commissioned_at_ms,
  created_at_ms, updated_at_ms
) VALUES (?, ?, 1, ?, ?, ?)
ON CONFLICT(kiosk_id) DO UPDATE SET
  enabled = 1,
  commissioned_at_ms = COALESCE(kiosks.commissioned_at_ms, excluded.commissioned_at_ms),
  revoked_at_ms = NULL,
  updated_at_ms = excluded.updated_at_ms;
`, id, id, now, now, now); err != nil {
			return fmt.Errorf("seed kiosk %s: %w", id, err)
		}
	}

	return nil
}
