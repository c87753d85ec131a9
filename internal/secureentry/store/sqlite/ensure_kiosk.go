package sqlite

import (
	"context"
	"database/sql"
	"fmt"
)

// ensureKiosk guarantees a kiosks row exists so the entries foreign key is
// satisfied. New rows start disabled and uncommissioned; only an admin
// action or the dev seeder commissions a kiosk.
//
// Must be called inside an existing transaction.
func ensureKiosk(ctx context.Context, tx *sql.Tx, kioskID string, nowMs int64) error {
	if _, err := tx.ExecContext(ctx, `
INSERT OR IGNORE INTO kiosks(
  kiosk_id, enabled, created_at_ms, updated_at_ms
) VALUES (?, 0, ?, ?);
`, kioskID, nowMs, nowMs); err != nil {
		return fmt.Errorf("ensureKiosk %s: %w", kioskID, err)
	}
	return nil
}
