package sqlite_test

import (
	"context"
	"testing"
	"time"

	"github.com/secureentry/secureentry/internal/credentials"
	"github.com/secureentry/secureentry/internal/secureentry/service"
	sqlitestore "github.com/secureentry/secureentry/internal/secureentry/store/sqlite"
)

func facePNG(i int) []byte {
	return append([]byte("\x89PNG\r\n\x1a\n"), byte(i), byte(i>>8))
}

// cancelAfter returns a context cancelled after a short, iteration-dependent
// delay so cancellation lands at different points of the write.
func cancelAfter(i int) (context.Context, func()) {
	ctx, cancel := context.WithCancel(context.Background())
	timer := time.AfterFunc(time.Duration(i%9)*30*time.Microsecond, cancel)
	return ctx, func() {
		timer.Stop()
		cancel()
	}
}

// Every stored worker must reference a credential that still exists, and no
// credential may outlive the write that failed to reference it.
func TestDirectory_CancelledWritesKeepCredentialsConsistent(t *testing.T) {
	conn := openTestDB(t)
	workers := sqlitestore.NewWorkerStore(conn, newTestWriter(t, conn))
	creds := credentials.NewMemoryStore()
	dir := service.NewDirectoryService(workers, creds, nil, nil, nil)
	bg := context.Background()

	for i := 0; i < 400; i++ {
		ctx, done := cancelAfter(i)
		_, _ = dir.Create(ctx, service.CreateWorkerInput{
			Name:       "worker",
			ExpiresAt:  time.Now().Add(time.Hour),
			Credential: &service.Credential{Data: facePNG(i), ContentType: "image/png"},
		})
		done()
	}

	seed, err := dir.Create(bg, service.CreateWorkerInput{
		Name:       "target",
		ExpiresAt:  time.Now().Add(time.Hour),
		Credential: &service.Credential{Data: facePNG(1 << 15), ContentType: "image/png"},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	for i := 0; i < 200; i++ {
		ctx, done := cancelAfter(i)
		_, _ = dir.Update(ctx, seed.ID, service.UpdateWorkerInput{
			Credential: &service.Credential{Data: facePNG(i + 1000), ContentType: "image/png"},
		})
		done()
	}

	recs, err := workers.ListWorkers(bg)
	if err != nil {
		t.Fatalf("ListWorkers: %v", err)
	}
	for _, rec := range recs {
		if _, err := creds.Get(bg, rec.CredentialRef); err != nil {
			t.Errorf("worker %d references missing credential %s: %v", rec.ID, rec.CredentialRef, err)
		}
	}
	if got, want := len(creds.Refs()), len(recs); got != want {
		t.Errorf("expected %d stored credentials (one per worker), got %d", want, got)
	}
}
