package main

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/secureentry/secureentry/internal/config"
	"github.com/secureentry/secureentry/internal/credentials"
	"github.com/secureentry/secureentry/internal/logging"
	"github.com/secureentry/secureentry/internal/secureentry/store"
)

func TestOpenStores_SQLiteDevSeedsKiosks(t *testing.T) {
	cfg := config.Defaults()
	cfg.DBPath = filepath.Join(t.TempDir(), "se.db")
	cfg.KnownKiosks = []string{"kiosk-002"}
	ctx := context.Background()

	st, err := openStores(ctx, cfg, logging.Discard())
	require.NoError(t, err)
	defer st.close()

	for _, id := range []string{"kiosk-001", "kiosk-002"} {
		known, err := st.kiosks.IsKnown(ctx, id)
		require.NoError(t, err)
		assert.True(t, known, id)
	}

	rec, err := st.workers.CreateWorker(ctx, store.WorkerRecord{
		Name:          "Ada",
		ExpiresAt:     time.Now().Add(time.Hour),
		CredentialRef: "credentials/2026/03/01/x",
	})
	require.NoError(t, err)
	assert.Positive(t, rec.ID)
}

func TestOpenStores_Memory(t *testing.T) {
	cfg := config.Defaults()
	cfg.StoreEngine = "memory"
	cfg.KnownKiosks = []string{"kiosk-009"}

	st, err := openStores(context.Background(), cfg, logging.Discard())
	require.NoError(t, err)
	defer st.close()

	known, err := st.kiosks.IsKnown(context.Background(), "kiosk-009")
	require.NoError(t, err)
	assert.True(t, known)
}

func TestOpenStores_UnknownEngine(t *testing.T) {
	cfg := config.Defaults()
	cfg.StoreEngine = "postgres"
	_, err := openStores(context.Background(), cfg, logging.Discard())
	assert.Error(t, err)
}

func TestOpenCredentials(t *testing.T) {
	ctx := context.Background()
	cfg := config.Defaults()

	cfg.CredentialBackend = "memory"
	s, err := openCredentials(ctx, cfg)
	require.NoError(t, err)
	assert.IsType(t, &credentials.MemoryStore{}, s)

	cfg.CredentialBackend = "fs"
	cfg.CredentialDir = t.TempDir()
	s, err = openCredentials(ctx, cfg)
	require.NoError(t, err)
	assert.IsType(t, &credentials.FSStore{}, s)

	cfg.CredentialBackend = "tape"
	_, err = openCredentials(ctx, cfg)
	assert.Error(t, err)
}
