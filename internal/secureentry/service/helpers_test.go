package service_test

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/secureentry/secureentry/internal/clock"
	"github.com/secureentry/secureentry/internal/credentials"
	"github.com/secureentry/secureentry/internal/logging"
	"github.com/secureentry/secureentry/internal/secureentry/service"
	"github.com/secureentry/secureentry/internal/secureentry/store/memory"
)

var t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

// pngBytes returns bytes that sniff as image/png and differ per tag.
func pngBytes(tag string) []byte {
	return append([]byte("\x89PNG\r\n\x1a\n"), tag...)
}

type directoryFixture struct {
	svc     *service.DirectoryService
	workers *memory.WorkerStore
	creds   *credentials.MemoryStore
	clock   *clock.Fake
}

func newTestDirectory(t *testing.T) directoryFixture {
	t.Helper()
	workers := memory.NewWorkerStore()
	creds := credentials.NewMemoryStore()
	clk := clock.NewFake(t0)
	svc := service.NewDirectoryService(workers, creds, clk, logging.Discard(), nil)
	return directoryFixture{svc: svc, workers: workers, creds: creds, clock: clk}
}

func credential(tag string) *service.Credential {
	return &service.Credential{Data: pngBytes(tag), ContentType: "image/png"}
}

// flakyCreds wraps a credential store and can fail deletes or count calls.
type flakyCreds struct {
	credentials.Store
	mu        sync.Mutex
	deleted   []string
	putErr    error
	deleteErr error
}

func (f *flakyCreds) Put(ctx context.Context, data []byte, ct string) (string, error) {
	if f.putErr != nil {
		return "", f.putErr
	}
	return f.Store.Put(ctx, data, ct)
}

func (f *flakyCreds) Delete(ctx context.Context, ref string) error {
	f.mu.Lock()
	f.deleted = append(f.deleted, ref)
	f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	return f.Store.Delete(ctx, ref)
}

var errBoom = errors.New("boom")

func logBuffer() (*bytes.Buffer, logging.Logger) {
	var buf bytes.Buffer
	return &buf, logging.New(&buf, "dev", "test")
}
