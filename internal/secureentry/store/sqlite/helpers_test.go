package sqlite_test

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/secureentry/secureentry/internal/db"
)

// openTestDB returns a SQLite database in the test's temp dir with the
// production PRAGMAs and schema. It is closed when the test finishes.
//
// It is file-backed on purpose: a cancelled query may discard the pool's
// only connection, and a shared-cache in-memory database would vanish with
// it.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()

	dsn := db.DSN(filepath.Join(t.TempDir(), "test.db"))

	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		t.Fatalf("openTestDB: sql.Open: %v", err)
	}

	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(0)

	if err := conn.Ping(); err != nil {
		conn.Close()
		t.Fatalf("openTestDB: ping: %v", err)
	}

	if err := db.Migrate(context.Background(), conn); err != nil {
		conn.Close()
		t.Fatalf("openTestDB: migrate: %v", err)
	}

	t.Cleanup(func() { conn.Close() })
	return conn
}

// newTestWriter returns a db.Writer backed by conn, closed with the test.
func newTestWriter(t *testing.T, conn *sql.DB) *db.Writer {
	t.Helper()

	w := db.NewWriter(conn)
	t.Cleanup(func() { w.Close() })
	return w
}

// seedKiosk inserts a commissioned, enabled kiosk.
func seedKiosk(t *testing.T, conn *sql.DB, kioskID string) {
	t.Helper()
	nowMs := time.Now().UTC().UnixMilli()
	_, err := conn.ExecContext(context.Background(), `
INSERT INTO kiosks(kiosk_id, enabled, commissioned_at_ms, created_at_ms, updated_at_ms)
VALUES (?, 1, ?, ?, ?);`, kioskID, nowMs, nowMs, nowMs)
	if err != nil {
		t.Fatalf("seedKiosk(%s): %v", kioskID, err)
	}
}
