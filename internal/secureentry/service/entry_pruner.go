package service

import (
	"context"
	"time"

	"github.com/secureentry/secureentry/internal/clock"
	"github.com/secureentry/secureentry/internal/logging"
	"github.com/secureentry/secureentry/internal/metrics"
	"github.com/secureentry/secureentry/internal/secureentry/store"
)

// EntryPruner periodically deletes entries older than the retention
// period. A retention of 0 disables pruning.
type EntryPruner struct {
	store     store.EntryStore
	retention time.Duration
	interval  time.Duration
	clock     clock.Clock
	log       logging.Logger
	metrics   *metrics.Metrics
	cancel    context.CancelFunc
	done      chan struct{}
}

type PrunerConfig struct {
	// RetentionDays is how many days of entries to keep. 0 keeps
	// everything.
	RetentionDays int

	// IntervalHours is how often the pruner runs. Defaults to 6.
	IntervalHours int
}

func NewEntryPruner(s store.EntryStore, cfg PrunerConfig, clk clock.Clock, log logging.Logger, m *metrics.Metrics) *EntryPruner {
	interval := time.Duration(cfg.IntervalHours) * time.Hour
	if interval <= 0 {
		interval = 6 * time.Hour
	}
	if clk == nil {
		clk = clock.Real()
	}
	if log == nil {
		log = logging.Discard()
	}

	return &EntryPruner{
		store:     s,
		retention: time.Duration(cfg.RetentionDays) * 24 * time.Hour,
		interval:  interval,
		clock:     clk,
		log:       log,
		metrics:   m,
		done:      make(chan struct{}),
	}
}

// Start prunes once immediately, then on every interval, until ctx is
// cancelled or Stop is called.
func (p *EntryPruner) Start(ctx context.Context) {
	if p.retention <= 0 {
		p.log.Info(ctx, "entry pruner disabled", "retention_days", 0)
		close(p.done)
		return
	}

	ctx, p.cancel = context.WithCancel(ctx)
	go p.loop(ctx)

	p.log.Info(ctx, "entry pruner started",
		"retention_days", int(p.retention.Hours()/24),
		"interval", p.interval.String(),
	)
}

// Stop signals the pruner to exit and waits for it. Safe to call twice.
func (p *EntryPruner) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
	<-p.done
}

func (p *EntryPruner) loop(ctx context.Context) {
	defer close(p.done)

	p.prune(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.prune(ctx)
		}
	}
}

func (p *EntryPruner) prune(ctx context.Context) {
	cutoff := p.clock.Now().UTC().Add(-p.retention)
	deleted, err := p.store.PruneOlderThan(ctx, cutoff)
	if err != nil {
		p.log.Error(ctx, "entry prune failed", "err", err)
		return
	}
	p.metrics.EntriesPruned(deleted)
	if deleted > 0 {
		p.log.Info(ctx, "entries pruned", "deleted", deleted, "cutoff", cutoff.Format(time.RFC3339))
	}
}
