package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/secureentry/secureentry/internal/clock"
	"github.com/secureentry/secureentry/internal/config"
	"github.com/secureentry/secureentry/internal/kiosk/display"
	"github.com/secureentry/secureentry/internal/kiosk/frame"
	"github.com/secureentry/secureentry/internal/kiosk/scan"
	"github.com/secureentry/secureentry/internal/kiosk/verify"
	"github.com/secureentry/secureentry/internal/logging"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "secureentry-kiosk: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.KioskFromEnv()
	if err != nil {
		return err
	}

	fs := pflag.NewFlagSet("secureentry-kiosk", pflag.ContinueOnError)
	config.BindKioskFlags(fs, &cfg)
	if err := fs.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := logging.New(os.Stderr, cfg.Env, "secureentry-kiosk").With("kiosk_id", cfg.KioskID)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var source frame.Source
	if cfg.FrameDir != "" {
		source = frame.NewDirSource(cfg.FrameDir)
	} else {
		source = frame.NewSnapshotSource(cfg.SnapshotURL, nil)
	}

	var verifier scan.Verifier
	switch cfg.Transport {
	case "grpc":
		conn, err := verify.DialGRPC(cfg.GRPCAddr)
		if err != nil {
			return fmt.Errorf("dial %s: %w", cfg.GRPCAddr, err)
		}
		defer conn.Close()
		verifier = verify.NewGRPCClient(conn, cfg.KioskID)
	default:
		verifier = verify.NewHTTPClient(cfg.ServerURL, cfg.KioskID, &http.Client{})
	}

	var disp scan.Display
	switch cfg.Display {
	case "log":
		disp = display.NewLog(logger)
	default:
		disp = display.NewTerminal(os.Stdout)
	}

	orch, err := scan.NewOrchestrator(scan.Config{
		Interval:        cfg.ScanInterval,
		DisplayDuration: cfg.DisplayDuration,
		VerifyTimeout:   cfg.VerifyTimeout,
	}, scan.Deps{
		Source:   source,
		Verifier: verifier,
		Display:  disp,
		Clock:    clock.Real(),
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	logger.Info(ctx, "kiosk started",
		"transport", cfg.Transport,
		"interval", cfg.ScanInterval.String(),
		"verify_timeout", cfg.VerifyTimeout.String(),
	)
	return orch.Run(ctx)
}
