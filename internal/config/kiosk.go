package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"
)

var (
	ErrVerifyTimeoutTooLong = errors.New("verify timeout must be shorter than the scan interval")
	ErrNoFrameSource        = errors.New("one of frame dir or snapshot url is required")
)

// KioskConfig is the secureentry-kiosk configuration.
type KioskConfig struct {
	Env     string `yaml:"env"`
	KioskID string `yaml:"kiosk_id"`

	// Verification transport: "http" posts to ServerURL, "grpc" dials GRPCAddr.
	Transport string `yaml:"transport"`
	ServerURL string `yaml:"server_url"`
	GRPCAddr  string `yaml:"grpc_addr"`

	ScanInterval    time.Duration `yaml:"scan_interval"`
	DisplayDuration time.Duration `yaml:"display_duration"`
	VerifyTimeout   time.Duration `yaml:"verify_timeout"`

	// Frame source: a spool directory the camera writes stills into, or
	// an IP camera snapshot URL.
	FrameDir    string `yaml:"frame_dir"`
	SnapshotURL string `yaml:"snapshot_url"`

	Display string `yaml:"display"` // "log" | "terminal"
}

func KioskDefaults() KioskConfig {
	return KioskConfig{
		Env:             "dev",
		KioskID:         "kiosk-001",
		Transport:       "http",
		ServerURL:       "http://localhost:3000",
		GRPCAddr:        "localhost:9090",
		ScanInterval:    3 * time.Second,
		DisplayDuration: 3 * time.Second,
		VerifyTimeout:   2 * time.Second,
		Display:         "terminal",
	}
}

// KioskFromEnv applies the YAML file (SECUREENTRY_KIOSK_CONFIG) and the
// environment over the defaults. Flags are bound afterwards with
// BindKioskFlags so they win over both.
func KioskFromEnv() (KioskConfig, error) {
	cfg := KioskDefaults()

	if path := strings.TrimSpace(os.Getenv("SECUREENTRY_KIOSK_CONFIG")); path != "" {
		if err := LoadFile(path, &cfg); err != nil {
			return KioskConfig{}, err
		}
	}

	cfg.Env = strings.ToLower(getenvDefault("SECUREENTRY_ENV", cfg.Env))
	cfg.KioskID = getenvDefault("SECUREENTRY_KIOSK_ID", cfg.KioskID)
	cfg.Transport = strings.ToLower(getenvDefault("SECUREENTRY_KIOSK_TRANSPORT", cfg.Transport))
	cfg.ServerURL = getenvDefault("SECUREENTRY_SERVER_URL", cfg.ServerURL)
	cfg.GRPCAddr = getenvDefault("SECUREENTRY_SERVER_GRPC_ADDR", cfg.GRPCAddr)
	cfg.ScanInterval = getenvDuration("SECUREENTRY_SCAN_INTERVAL", cfg.ScanInterval)
	cfg.DisplayDuration = getenvDuration("SECUREENTRY_DISPLAY_DURATION", cfg.DisplayDuration)
	cfg.VerifyTimeout = getenvDuration("SECUREENTRY_VERIFY_TIMEOUT", cfg.VerifyTimeout)
	cfg.FrameDir = getenvDefault("SECUREENTRY_FRAME_DIR", cfg.FrameDir)
	cfg.SnapshotURL = getenvDefault("SECUREENTRY_SNAPSHOT_URL", cfg.SnapshotURL)
	cfg.Display = strings.ToLower(getenvDefault("SECUREENTRY_DISPLAY", cfg.Display))

	return cfg, nil
}

// BindKioskFlags registers flags on fs that write into cfg, using the
// current cfg values as defaults.
func BindKioskFlags(fs *pflag.FlagSet, cfg *KioskConfig) {
	fs.StringVar(&cfg.KioskID, "kiosk-id", cfg.KioskID, "identifier sent with every verification")
	fs.StringVar(&cfg.Transport, "transport", cfg.Transport, "verification transport: http or grpc")
	fs.StringVar(&cfg.ServerURL, "server", cfg.ServerURL, "verification server base URL")
	fs.StringVar(&cfg.GRPCAddr, "grpc-addr", cfg.GRPCAddr, "verification server gRPC address")
	fs.DurationVar(&cfg.ScanInterval, "scan-interval", cfg.ScanInterval, "idle tick period")
	fs.DurationVar(&cfg.DisplayDuration, "display-duration", cfg.DisplayDuration, "how long a decision stays on screen")
	fs.DurationVar(&cfg.VerifyTimeout, "verify-timeout", cfg.VerifyTimeout, "verification call timeout (must be < scan-interval)")
	fs.StringVar(&cfg.FrameDir, "frame-dir", cfg.FrameDir, "directory the camera writes still frames into")
	fs.StringVar(&cfg.SnapshotURL, "snapshot-url", cfg.SnapshotURL, "camera snapshot URL")
	fs.StringVar(&cfg.Display, "display", cfg.Display, "display: log or terminal")
}

// Validate checks the timing invariant and that exactly one frame source
// is configured.
func (c KioskConfig) Validate() error {
	if c.ScanInterval <= 0 || c.DisplayDuration <= 0 || c.VerifyTimeout <= 0 {
		return fmt.Errorf("scan interval, display duration and verify timeout must be positive")
	}
	if c.VerifyTimeout >= c.ScanInterval {
		return fmt.Errorf("%w (timeout=%s, interval=%s)", ErrVerifyTimeoutTooLong, c.VerifyTimeout, c.ScanInterval)
	}
	if (c.FrameDir == "") == (c.SnapshotURL == "") {
		return ErrNoFrameSource
	}
	switch c.Transport {
	case "http", "grpc":
	default:
		return fmt.Errorf("unknown transport %q", c.Transport)
	}
	return nil
}
