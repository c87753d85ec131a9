package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnv_Defaults(t *testing.T) {
	t.Setenv("SECUREENTRY_CONFIG", "")
	t.Setenv("SECUREENTRY_GRPC_ADDR", ":9090")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Empty(t, cmp.Diff(Defaults(), cfg))
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("SECUREENTRY_HTTP_ADDR", ":8081")
	t.Setenv("SECUREENTRY_GRPC_ADDR", "")
	t.Setenv("SECUREENTRY_ENV", "PROD")
	t.Setenv("SECUREENTRY_KNOWN_KIOSKS", " kiosk-001, ,kiosk-002 ")
	t.Setenv("SECUREENTRY_REQUIRE_KNOWN_KIOSKS", "1")
	t.Setenv("SECUREENTRY_ENTRY_RETENTION_DAYS", "-3")
	t.Setenv("SECUREENTRY_SHUTDOWN_TIMEOUT", "12s")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, ":8081", cfg.HTTPAddr)
	assert.Equal(t, "", cfg.GRPCAddr)
	assert.Equal(t, "prod", cfg.Env)
	assert.Equal(t, []string{"kiosk-001", "kiosk-002"}, cfg.KnownKiosks)
	assert.True(t, cfg.RequireKnownKiosks)
	assert.Equal(t, 90, cfg.EntryRetentionDays, "negative values fall back")
	assert.Equal(t, 12*time.Second, cfg.ShutdownTimeout)
}

func TestFromEnv_UnknownEnvIsDev(t *testing.T) {
	t.Setenv("SECUREENTRY_ENV", "staging")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, "dev", cfg.Env)
}

func TestFromEnv_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
http_addr: ":7000"
db_path: /var/lib/secureentry/db.sqlite
credential_backend: s3
s3_bucket: faces
known_kiosks: [lobby, dock]
shutdown_timeout: 30s
`), 0o600))

	t.Setenv("SECUREENTRY_CONFIG", path)
	t.Setenv("SECUREENTRY_HTTP_ADDR", ":7001")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, ":7001", cfg.HTTPAddr, "env wins over file")
	assert.Equal(t, "/var/lib/secureentry/db.sqlite", cfg.DBPath)
	assert.Equal(t, "s3", cfg.CredentialBackend)
	assert.Equal(t, "faces", cfg.S3Bucket)
	assert.Equal(t, []string{"lobby", "dock"}, cfg.KnownKiosks)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, int64(10<<20), cfg.MaxUploadBytes, "unset keys keep defaults")
}

func TestFromEnv_BadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("http_addr: [unterminated"), 0o600))
	t.Setenv("SECUREENTRY_CONFIG", path)

	_, err := FromEnv()
	require.Error(t, err)
}

func TestKioskConfig_FlagsWin(t *testing.T) {
	t.Setenv("SECUREENTRY_KIOSK_ID", "from-env")

	cfg, err := KioskFromEnv()
	require.NoError(t, err)

	fs := pflag.NewFlagSet("kiosk", pflag.ContinueOnError)
	BindKioskFlags(fs, &cfg)
	require.NoError(t, fs.Parse([]string{"--kiosk-id", "from-flag", "--scan-interval", "5s", "--frame-dir", "/tmp/frames"}))

	assert.Equal(t, "from-flag", cfg.KioskID)
	assert.Equal(t, 5*time.Second, cfg.ScanInterval)
	assert.Equal(t, 3*time.Second, cfg.DisplayDuration)
	require.NoError(t, cfg.Validate())
}

func TestKioskConfig_Validate(t *testing.T) {
	base := KioskDefaults()
	base.FrameDir = "/tmp/frames"

	tests := []struct {
		name    string
		mutate  func(*KioskConfig)
		wantErr error
	}{
		{name: "ok", mutate: func(*KioskConfig) {}},
		{name: "timeout equals interval", mutate: func(c *KioskConfig) { c.VerifyTimeout = c.ScanInterval }, wantErr: ErrVerifyTimeoutTooLong},
		{name: "timeout longer", mutate: func(c *KioskConfig) { c.VerifyTimeout = 10 * time.Second }, wantErr: ErrVerifyTimeoutTooLong},
		{name: "no frame source", mutate: func(c *KioskConfig) { c.FrameDir = "" }, wantErr: ErrNoFrameSource},
		{name: "two frame sources", mutate: func(c *KioskConfig) { c.SnapshotURL = "http://cam/snap.jpg" }, wantErr: ErrNoFrameSource},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestKioskConfig_UnknownTransport(t *testing.T) {
	cfg := KioskDefaults()
	cfg.FrameDir = "/tmp/frames"
	cfg.Transport = "carrier-pigeon"
	assert.Error(t, cfg.Validate())
}
