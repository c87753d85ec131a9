package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/secureentry/secureentry/internal/clock"
	"github.com/secureentry/secureentry/internal/logging"
	"github.com/secureentry/secureentry/internal/secureentry/service"
	"github.com/secureentry/secureentry/internal/secureentry/store"
	"github.com/secureentry/secureentry/internal/secureentry/store/memory"
)

func TestEntryPruner_DisabledWhenRetentionZero(t *testing.T) {
	es := memory.NewEntryStore()
	require.NoError(t, es.RecordEntry(context.Background(), store.EntryRecord{DecidedAt: t0.AddDate(-1, 0, 0)}))

	pruner := service.NewEntryPruner(es, service.PrunerConfig{RetentionDays: 0}, clock.NewFake(t0), logging.Discard(), nil)
	pruner.Start(context.Background())
	pruner.Stop()

	assert.Len(t, es.Entries(), 1)
}

func TestEntryPruner_PrunesOnStart(t *testing.T) {
	es := memory.NewEntryStore()
	ctx := context.Background()
	require.NoError(t, es.RecordEntry(ctx, store.EntryRecord{DecidedAt: t0.AddDate(0, 0, -40), Message: "old"}))
	require.NoError(t, es.RecordEntry(ctx, store.EntryRecord{DecidedAt: t0.AddDate(0, 0, -1), Message: "recent"}))

	pruner := service.NewEntryPruner(es, service.PrunerConfig{RetentionDays: 30, IntervalHours: 1},
		clock.NewFake(t0), logging.Discard(), nil)
	pruner.Start(ctx)
	// Stop waits for the loop, which prunes once before it first waits.
	pruner.Stop()

	rest := es.Entries()
	require.Len(t, rest, 1)
	assert.Equal(t, "recent", rest[0].Message)
}

func TestEntryPruner_StopIsIdempotent(t *testing.T) {
	pruner := service.NewEntryPruner(memory.NewEntryStore(), service.PrunerConfig{RetentionDays: 30},
		clock.NewFake(t0), logging.Discard(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	pruner.Start(ctx)
	cancel()
	pruner.Stop()
	pruner.Stop()
}

func TestKioskRegistry_NoteSeenUsesClock(t *testing.T) {
	ks := memory.NewKioskStore(nil)
	clk := clock.NewFake(t0)
	reg := service.NewKioskRegistry(ks, clk)

	require.NoError(t, reg.NoteSeen(context.Background(), " kiosk-9 "))
	seen, ok := ks.LastSeen("kiosk-9")
	require.True(t, ok)
	assert.Equal(t, t0, seen)

	require.NoError(t, reg.NoteSeen(context.Background(), ""))
	known, err := reg.IsKnown(context.Background(), "")
	require.NoError(t, err)
	assert.False(t, known)
}
