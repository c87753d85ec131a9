package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/pflag"

	"github.com/secureentry/secureentry/internal/directoryclient"
	"github.com/secureentry/secureentry/internal/secureentry/service"
	"github.com/secureentry/secureentry/internal/secureentry/types"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", describe(err))
		os.Exit(1)
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintf(w, `Usage: secureentry-admin <subcommand> [flags]

Subcommands:
  list                 List every worker with its status
  create               Register a worker (--name, --expires, --photo)
  update <id>          Change name, expiration or photo
  revoke <id>          End a worker's authorization now

Every subcommand accepts --server (default $SECUREENTRY_SERVER_URL or
http://localhost:3000) and --json.
`)
}

func run(ctx context.Context, args []string, out io.Writer) error {
	if len(args) < 1 {
		printUsage(os.Stderr)
		return fmt.Errorf("subcommand required")
	}

	switch args[0] {
	case "list":
		return runList(ctx, args[1:], out)
	case "create":
		return runCreate(ctx, args[1:], out)
	case "update":
		return runUpdate(ctx, args[1:], out)
	case "revoke":
		return runRevoke(ctx, args[1:], out)
	case "-h", "--help", "help":
		printUsage(out)
		return nil
	default:
		printUsage(os.Stderr)
		return fmt.Errorf("unknown subcommand: %q", args[0])
	}
}

type commonFlags struct {
	server  string
	json    bool
	timeout time.Duration
}

func newFlagSet(name string, c *commonFlags) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	server := os.Getenv("SECUREENTRY_SERVER_URL")
	if server == "" {
		server = "http://localhost:3000"
	}
	fs.StringVar(&c.server, "server", server, "secureentry-server base URL")
	fs.BoolVar(&c.json, "json", false, "print JSON instead of a table")
	fs.DurationVar(&c.timeout, "timeout", 30*time.Second, "request timeout")
	return fs
}

func (c commonFlags) client() *directoryclient.Client {
	return directoryclient.New(c.server, &http.Client{Timeout: c.timeout})
}

func runList(ctx context.Context, args []string, out io.Writer) error {
	var c commonFlags
	fs := newFlagSet("list", &c)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() > 0 {
		return fmt.Errorf("unexpected argument: %s", fs.Arg(0))
	}

	workers, err := c.client().List(ctx)
	if err != nil {
		return err
	}
	if c.json {
		return writeJSON(out, workers)
	}
	if len(workers) == 0 {
		fmt.Fprintln(out, "No workers registered.")
		return nil
	}
	return renderWorkers(out, workers)
}

func runCreate(ctx context.Context, args []string, out io.Writer) error {
	var (
		c       commonFlags
		name    string
		expires string
		photo   string
	)
	fs := newFlagSet("create", &c)
	fs.StringVar(&name, "name", "", "worker name (required)")
	fs.StringVar(&expires, "expires", "", "authorization end, RFC3339 or YYYY-MM-DD (required)")
	fs.StringVar(&photo, "photo", "", "path to the face image (required)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	p := directoryclient.CreateParams{Name: name}
	if expires != "" {
		t, err := service.ParseInstant(expires)
		if err != nil {
			return fmt.Errorf("--expires: expected RFC3339 or YYYY-MM-DD")
		}
		p.ExpiresAt = t
	}
	if photo != "" {
		cred, err := readPhoto(photo)
		if err != nil {
			return err
		}
		p.Credential = *cred
	}

	w, err := c.client().Create(ctx, p)
	if err != nil {
		return err
	}
	return report(out, c, "created", w)
}

func runUpdate(ctx context.Context, args []string, out io.Writer) error {
	var (
		c       commonFlags
		name    string
		expires string
		photo   string
	)
	fs := newFlagSet("update", &c)
	fs.StringVar(&name, "name", "", "new worker name")
	fs.StringVar(&expires, "expires", "", "new authorization end, RFC3339 or YYYY-MM-DD")
	fs.StringVar(&photo, "photo", "", "path to a replacement face image")
	if err := fs.Parse(args); err != nil {
		return err
	}
	id, err := parseID(fs)
	if err != nil {
		return err
	}

	var p directoryclient.UpdateParams
	if fs.Changed("name") {
		p.Name = &name
	}
	if fs.Changed("expires") {
		t, err := service.ParseInstant(expires)
		if err != nil {
			return fmt.Errorf("--expires: expected RFC3339 or YYYY-MM-DD")
		}
		p.ExpiresAt = &t
	}
	if fs.Changed("photo") {
		cred, err := readPhoto(photo)
		if err != nil {
			return err
		}
		p.Credential = cred
	}
	if p.Name == nil && p.ExpiresAt == nil && p.Credential == nil {
		return fmt.Errorf("nothing to update: pass --name, --expires or --photo")
	}

	w, err := c.client().Update(ctx, id, p)
	if err != nil {
		return err
	}
	return report(out, c, "updated", w)
}

func runRevoke(ctx context.Context, args []string, out io.Writer) error {
	var c commonFlags
	fs := newFlagSet("revoke", &c)
	if err := fs.Parse(args); err != nil {
		return err
	}
	id, err := parseID(fs)
	if err != nil {
		return err
	}

	w, err := c.client().Revoke(ctx, id)
	if err != nil {
		return err
	}
	return report(out, c, "revoked", w)
}

func parseID(fs *pflag.FlagSet) (int64, error) {
	if fs.NArg() != 1 {
		return 0, fmt.Errorf("expected exactly one worker id")
	}
	id, err := strconv.ParseInt(fs.Arg(0), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid worker id %q", fs.Arg(0))
	}
	return id, nil
}

func readPhoto(path string) (*directoryclient.Credential, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read photo: %w", err)
	}
	return &directoryclient.Credential{
		Filename:    filepath.Base(path),
		ContentType: http.DetectContentType(data),
		Data:        data,
	}, nil
}

func report(out io.Writer, c commonFlags, verb string, w types.Worker) error {
	if c.json {
		return writeJSON(out, w)
	}
	fmt.Fprintf(out, "Worker %d %s.\n", w.ID, verb)
	return renderWorkers(out, []types.Worker{w})
}

var (
	activeStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#4ade80"))
	expiredStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#f87171"))
)

func renderWorkers(out io.Writer, workers []types.Worker) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tEXPIRES\tSTATUS")
	for _, w := range workers {
		status := expiredStyle.Render("expired")
		if w.Active {
			status = activeStyle.Render("active")
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", w.ID, w.Name, w.ExpirationDate, status)
	}
	return tw.Flush()
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// describe turns client errors into operator-facing text.
func describe(err error) string {
	var apiErr *directoryclient.APIError
	var te *directoryclient.TransportError
	switch {
	case errors.Is(err, directoryclient.ErrNotFound):
		return "no such worker"
	case errors.Is(err, directoryclient.ErrValidation) && errors.As(err, &apiErr):
		return "rejected: " + apiErr.Message
	case errors.As(err, &te):
		if te.StatusCode != 0 {
			return fmt.Sprintf("server error (status %d)", te.StatusCode)
		}
		return "server unreachable: " + strings.TrimSpace(te.Err.Error())
	default:
		return err.Error()
	}
}
