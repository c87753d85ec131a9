package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is the secureentry-server configuration. Values come from
// defaults, then the optional YAML file named by SECUREENTRY_CONFIG, then
// environment variables.
type Config struct {
	HTTPAddr string `yaml:"http_addr"`
	GRPCAddr string `yaml:"grpc_addr"` // empty disables the gRPC listener

	Env string `yaml:"env"` // "dev" | "prod"

	// Storage
	StoreEngine string `yaml:"store_engine"` // "sqlite" | "memory"
	DBPath      string `yaml:"db_path"`

	// Credential artifacts
	CredentialBackend string `yaml:"credential_backend"` // "fs" | "s3" | "memory"
	CredentialDir     string `yaml:"credential_dir"`
	S3Bucket          string `yaml:"s3_bucket"`
	S3Region          string `yaml:"s3_region"`
	S3Endpoint        string `yaml:"s3_endpoint"`
	S3AccessKey       string `yaml:"s3_access_key"`
	S3SecretKey       string `yaml:"s3_secret_key"`

	MaxUploadBytes int64 `yaml:"max_upload_bytes"`

	// Kiosks
	KnownKiosks        []string `yaml:"known_kiosks"`
	RequireKnownKiosks bool     `yaml:"require_known_kiosks"`

	// Entry log
	StoreEntryImages   bool `yaml:"store_entry_images"`
	EntryRetentionDays int  `yaml:"entry_retention_days"` // 0 = keep forever
	PruneIntervalHours int  `yaml:"prune_interval_hours"`

	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// Defaults returns the development defaults.
func Defaults() Config {
	return Config{
		HTTPAddr:           ":3000",
		GRPCAddr:           ":9090",
		Env:                "dev",
		StoreEngine:        "sqlite",
		DBPath:             "./data/secureentry.db",
		CredentialBackend:  "fs",
		CredentialDir:      "./data/credentials",
		S3Region:           "us-east-1",
		MaxUploadBytes:     10 << 20,
		StoreEntryImages:   true,
		EntryRetentionDays: 90,
		PruneIntervalHours: 6,
		ShutdownTimeout:    5 * time.Second,
	}
}

// FromEnv loads the server configuration. A broken config file is the
// only error; malformed environment values fall back to the current value.
func FromEnv() (Config, error) {
	cfg := Defaults()

	if path := strings.TrimSpace(os.Getenv("SECUREENTRY_CONFIG")); path != "" {
		if err := LoadFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	cfg.HTTPAddr = getenvDefault("SECUREENTRY_HTTP_ADDR", cfg.HTTPAddr)
	if v, ok := os.LookupEnv("SECUREENTRY_GRPC_ADDR"); ok {
		cfg.GRPCAddr = strings.TrimSpace(v)
	}

	cfg.Env = strings.ToLower(getenvDefault("SECUREENTRY_ENV", cfg.Env))
	if cfg.Env != "dev" && cfg.Env != "prod" {
		// fail-soft: treat unknown as dev
		cfg.Env = "dev"
	}

	cfg.StoreEngine = strings.ToLower(getenvDefault("SECUREENTRY_STORE_ENGINE", cfg.StoreEngine))
	cfg.DBPath = getenvDefault("SECUREENTRY_DB_PATH", cfg.DBPath)

	cfg.CredentialBackend = strings.ToLower(getenvDefault("SECUREENTRY_CREDENTIAL_BACKEND", cfg.CredentialBackend))
	cfg.CredentialDir = getenvDefault("SECUREENTRY_CREDENTIAL_DIR", cfg.CredentialDir)
	cfg.S3Bucket = getenvDefault("SECUREENTRY_S3_BUCKET", cfg.S3Bucket)
	cfg.S3Region = getenvDefault("SECUREENTRY_S3_REGION", cfg.S3Region)
	cfg.S3Endpoint = getenvDefault("SECUREENTRY_S3_ENDPOINT", cfg.S3Endpoint)
	cfg.S3AccessKey = getenvDefault("SECUREENTRY_S3_ACCESS_KEY", cfg.S3AccessKey)
	cfg.S3SecretKey = getenvDefault("SECUREENTRY_S3_SECRET_KEY", cfg.S3SecretKey)

	cfg.MaxUploadBytes = int64(getenvInt("SECUREENTRY_MAX_UPLOAD_BYTES", int(cfg.MaxUploadBytes)))

	if kiosks := splitCSV(os.Getenv("SECUREENTRY_KNOWN_KIOSKS")); kiosks != nil {
		cfg.KnownKiosks = kiosks
	}
	cfg.RequireKnownKiosks = getenvBool("SECUREENTRY_REQUIRE_KNOWN_KIOSKS", cfg.RequireKnownKiosks)

	cfg.StoreEntryImages = getenvBool("SECUREENTRY_STORE_ENTRY_IMAGES", cfg.StoreEntryImages)
	cfg.EntryRetentionDays = getenvInt("SECUREENTRY_ENTRY_RETENTION_DAYS", cfg.EntryRetentionDays)
	cfg.PruneIntervalHours = getenvInt("SECUREENTRY_PRUNE_INTERVAL_HOURS", cfg.PruneIntervalHours)

	cfg.ShutdownTimeout = getenvDuration("SECUREENTRY_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)

	return cfg, nil
}

func getenvDefault(key, def string) string {
	v := os.Getenv(key)
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

func getenvInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}

func getenvBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return strings.EqualFold(v, "true") || v == "1"
}

func getenvDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

func splitCSV(v string) []string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
