// Package scan runs the kiosk's scan cycle:
//
//	Idle -> Processing -> Granted | Denied -> Idle
//
// One Orchestrator owns the session state and a single timer handle. In
// Idle the handle is the tick timer, in Granted or Denied it is the reset
// timer, and in Processing nothing is armed.
package scan

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/secureentry/secureentry/internal/clock"
	"github.com/secureentry/secureentry/internal/kiosk/frame"
	"github.com/secureentry/secureentry/internal/kiosk/verify"
	"github.com/secureentry/secureentry/internal/logging"
)

var ErrTimeoutTooLong = errors.New("verify timeout must be shorter than the scan interval")

// Verifier submits one frame and returns the server's decision.
type Verifier interface {
	Verify(ctx context.Context, image []byte, takenAt time.Time) (verify.Decision, error)
}

// Display renders the session state. Show is called exactly once per
// state entry, with the orchestrator's lock held, so it must not call back
// into the Orchestrator.
type Display interface {
	Show(s State)
}

type Config struct {
	Interval        time.Duration
	DisplayDuration time.Duration
	VerifyTimeout   time.Duration
}

type Deps struct {
	Source   frame.Source
	Verifier Verifier
	Display  Display
	Clock    clock.Clock
	Logger   logging.Logger
}

// Session is a point-in-time copy of the scan session.
type Session struct {
	State         State
	LastCaptureAt time.Time // zero until the first successful capture
}

type Orchestrator struct {
	cfg Config

	source   frame.Source
	verifier Verifier
	display  Display
	clock    clock.Clock
	log      logging.Logger

	mu            sync.Mutex
	state         State
	lastCaptureAt time.Time
	timer         *clock.Timer
	started       bool
	stopped       bool
}

func NewOrchestrator(cfg Config, d Deps) (*Orchestrator, error) {
	if cfg.Interval <= 0 || cfg.DisplayDuration <= 0 || cfg.VerifyTimeout <= 0 {
		return nil, fmt.Errorf("scan: interval, display duration and verify timeout must be positive")
	}
	if cfg.VerifyTimeout >= cfg.Interval {
		return nil, fmt.Errorf("scan: %w (timeout=%s, interval=%s)", ErrTimeoutTooLong, cfg.VerifyTimeout, cfg.Interval)
	}
	if d.Source == nil || d.Verifier == nil || d.Display == nil {
		return nil, fmt.Errorf("scan: source, verifier and display are required")
	}
	if d.Clock == nil {
		d.Clock = clock.Real()
	}
	if d.Logger == nil {
		d.Logger = logging.Discard()
	}

	return &Orchestrator{
		cfg:      cfg,
		source:   d.Source,
		verifier: d.Verifier,
		display:  d.Display,
		clock:    d.Clock,
		log:      d.Logger,
		state:    Idle,
	}, nil
}

// Start shows the initial Idle state and arms the first tick.
func (o *Orchestrator) Start() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.started || o.stopped {
		return
	}
	o.started = true
	o.display.Show(Idle)
	o.armLocked(o.cfg.Interval, o.Tick)
}

// Run starts the cycle and blocks until ctx is done. A Processing cycle
// already in flight is not cancelled; it completes within the verify
// timeout and its result is still shown.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.Start()
	<-ctx.Done()
	o.Stop()
	return nil
}

// Stop disarms the timer. No further cycles start.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.stopped = true
	o.disarmLocked()
}

func (o *Orchestrator) Snapshot() Session {
	o.mu.Lock()
	defer o.mu.Unlock()
	return Session{State: o.state, LastCaptureAt: o.lastCaptureAt}
}

// Tick runs one Idle cycle. Outside Idle it does nothing.
func (o *Orchestrator) Tick() {
	ctx := context.Background()

	if !o.idle() {
		return
	}

	// Ready may do I/O, so it runs unlocked and the state is checked again.
	ready := o.source.Ready(ctx)

	o.mu.Lock()
	if o.stopped || o.state != Idle {
		o.mu.Unlock()
		return
	}
	if !ready {
		o.log.Debug(ctx, "tick skipped", "reason", "no_frame")
		o.armLocked(o.cfg.Interval, o.Tick)
		o.mu.Unlock()
		return
	}
	o.disarmLocked()
	o.enterLocked(Processing)
	o.mu.Unlock()

	o.finish(o.process(ctx))
}

func (o *Orchestrator) idle() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return !o.stopped && o.state == Idle
}

func (o *Orchestrator) process(ctx context.Context) State {
	f, err := o.source.Capture(ctx)
	if err != nil {
		o.log.Warn(ctx, "capture failed, denying", "err", err)
		return Denied
	}

	now := o.clock.Now()
	o.mu.Lock()
	o.lastCaptureAt = now
	o.mu.Unlock()

	vctx, cancel := context.WithTimeout(ctx, o.cfg.VerifyTimeout)
	defer cancel()

	dec, err := o.verifier.Verify(vctx, f.Data, now)
	if err != nil {
		o.log.Warn(ctx, "verification failed, denying", "err", err)
		return Denied
	}
	if dec.Granted {
		return Granted
	}
	return Denied
}

func (o *Orchestrator) finish(s State) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.enterLocked(s)
	if !o.stopped {
		o.armLocked(o.cfg.DisplayDuration, o.reset)
	}
}

func (o *Orchestrator) reset() {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.state != Granted && o.state != Denied {
		return
	}
	o.enterLocked(Idle)
	if !o.stopped {
		o.armLocked(o.cfg.Interval, o.Tick)
	}
}

func (o *Orchestrator) enterLocked(s State) {
	o.state = s
	o.display.Show(s)
}

// armLocked replaces the current timer, so at most one is ever armed.
func (o *Orchestrator) armLocked(d time.Duration, fn func()) {
	o.disarmLocked()
	o.timer = o.clock.AfterFunc(d, fn)
}

func (o *Orchestrator) disarmLocked() {
	if o.timer != nil {
		o.timer.Stop()
		o.timer = nil
	}
}
