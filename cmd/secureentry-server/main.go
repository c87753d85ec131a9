package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/secureentry/secureentry/internal/clock"
	"github.com/secureentry/secureentry/internal/config"
	"github.com/secureentry/secureentry/internal/credentials"
	dbpkg "github.com/secureentry/secureentry/internal/db"
	"github.com/secureentry/secureentry/internal/grpcapi"
	"github.com/secureentry/secureentry/internal/httpapi"
	"github.com/secureentry/secureentry/internal/logging"
	"github.com/secureentry/secureentry/internal/metrics"
	"github.com/secureentry/secureentry/internal/secureentry/service"
	"github.com/secureentry/secureentry/internal/secureentry/store"
	"github.com/secureentry/secureentry/internal/secureentry/store/memory"
	"github.com/secureentry/secureentry/internal/secureentry/store/sqlite"
)

func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "secureentry-server: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(os.Stdout, cfg.Env, "secureentry-server")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error(context.Background(), "server exited", "err", err)
		os.Exit(1)
	}
}

type stores struct {
	workers store.WorkerStore
	entries store.EntryStore
	kiosks  store.KioskStore
	close   func()
}

func openStores(ctx context.Context, cfg config.Config, logger logging.Logger) (stores, error) {
	switch cfg.StoreEngine {
	case "memory":
		logger.Warn(ctx, "using in-memory stores; data is lost on restart")
		return stores{
			workers: memory.NewWorkerStore(),
			entries: memory.NewEntryStore(),
			kiosks:  memory.NewKioskStore(cfg.KnownKiosks),
			close:   func() {},
		}, nil
	case "sqlite":
	default:
		return stores{}, fmt.Errorf("unknown store engine %q", cfg.StoreEngine)
	}

	db, err := dbpkg.Open(ctx, dbpkg.Config{Path: cfg.DBPath, Env: cfg.Env})
	if err != nil {
		return stores{}, err
	}
	if cfg.Env == "dev" {
		if err := dbpkg.SeedDev(ctx, db, dbpkg.SeedDevOptions{KnownKiosks: cfg.KnownKiosks}); err != nil {
			_ = db.Close()
			return stores{}, fmt.Errorf("seed dev: %w", err)
		}
	}
	writer := dbpkg.NewWriter(db)
	logger.Info(ctx, "database ready", "path", cfg.DBPath)

	return stores{
		workers: sqlite.NewWorkerStore(db, writer),
		entries: sqlite.NewEntryStore(db, writer),
		kiosks:  sqlite.NewKioskStore(db, writer),
		close:   closeDB(db, writer),
	}, nil
}

func closeDB(db *sql.DB, writer *dbpkg.Writer) func() {
	return func() {
		writer.Close()
		_ = db.Close()
	}
}

func openCredentials(ctx context.Context, cfg config.Config) (credentials.Store, error) {
	switch cfg.CredentialBackend {
	case "fs":
		return credentials.NewFSStore(cfg.CredentialDir)
	case "s3":
		return credentials.NewS3Store(ctx, credentials.S3Config{
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
		})
	case "memory":
		return credentials.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown credential backend %q", cfg.CredentialBackend)
	}
}

func run(ctx context.Context, cfg config.Config, logger logging.Logger) error {
	st, err := openStores(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer st.close()

	creds, err := openCredentials(ctx, cfg)
	if err != nil {
		return fmt.Errorf("credential store: %w", err)
	}

	clk := clock.Real()
	m := metrics.New()

	// Services
	directory := service.NewDirectoryService(st.workers, creds, clk, logger.With("component", "directory"), m)
	verification := service.NewVerificationService(service.VerificationDeps{
		Registry: service.NewKioskRegistry(st.kiosks, clk),
		Matcher:  service.NewDigestMatcher(st.workers),
		Workers:  st.workers,
		Entries:  st.entries,
		Policy: service.VerificationPolicy{
			RequireKnownKiosks: cfg.RequireKnownKiosks,
			StoreImages:        cfg.StoreEntryImages,
		},
		Clock:   clk,
		Logger:  logger.With("component", "verification"),
		Metrics: m,
	})
	reports := service.NewReportService(st.entries, st.workers)

	pruner := service.NewEntryPruner(st.entries, service.PrunerConfig{
		RetentionDays: cfg.EntryRetentionDays,
		IntervalHours: cfg.PruneIntervalHours,
	}, clk, logger.With("component", "pruner"), m)

	// HTTP
	srv := httpapi.NewServer(httpapi.Dependencies{
		Logger:         logger.With("component", "http"),
		Metrics:        m,
		Addr:           cfg.HTTPAddr,
		MaxUploadBytes: cfg.MaxUploadBytes,
		Directory:      directory,
		Verification:   verification,
		Reports:        reports,
	})

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info(gctx, "http listening", "addr", cfg.HTTPAddr)
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http: %w", err)
		}
		return nil
	})

	if cfg.GRPCAddr != "" {
		lis, err := net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			return fmt.Errorf("grpc listen: %w", err)
		}
		grpcServer := grpcapi.NewServer(verification, logger.With("component", "grpc"))

		g.Go(func() error {
			logger.Info(gctx, "grpc listening", "addr", cfg.GRPCAddr)
			return grpcServer.Serve(lis)
		})
		g.Go(func() error {
			<-gctx.Done()
			grpcServer.GracefulStop()
			return nil
		})
	}

	pruner.Start(gctx)
	defer pruner.Stop()

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		logger.Info(shutdownCtx, "shutting down")
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
