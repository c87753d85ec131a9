package db

import (
	"context"
	"database/sql"
	"errors"
)

// ErrWriterClosed is returned by Do after Close.
var ErrWriterClosed = errors.New("db writer closed")

type TxFn func(ctx context.Context, tx *sql.Tx) error

type job struct {
	ctx context.Context
	fn  TxFn
	ch  chan error
}

// Writer runs every write transaction on one goroutine. SQLite allows a
// single writer, and funnelling read-modify-write sequences through here
// also serializes concurrent updates to the same row.
type Writer struct {
	db   *sql.DB
	jobs chan job
	quit chan struct{}
	done chan struct{}
}

func NewWriter(db *sql.DB) *Writer {
	w := &Writer{
		db:   db,
		jobs: make(chan job, 256),
		quit: make(chan struct{}),
		done: make(chan struct{}),
	}
	go w.loop()
	return w
}

// Close stops accepting work and waits for the in-flight transaction.
// Queued jobs that never started fail with ErrWriterClosed. Calling Close
// more than once is a no-op.
func (w *Writer) Close() {
	select {
	case <-w.quit:
	default:
		close(w.quit)
	}
	<-w.done
}

// Do runs fn inside a transaction on the writer goroutine. fn's error
// rolls the transaction back; otherwise it commits. A nil error means the
// transaction committed and a non-nil one means it did not, even when ctx
// is cancelled while the job is queued or running.
func (w *Writer) Do(ctx context.Context, fn TxFn) error {
	ch := make(chan error, 1)
	j := job{ctx: ctx, fn: fn, ch: ch}

	select {
	case w.jobs <- j:
	case <-w.quit:
		return ErrWriterClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	// Once queued, wait for the real outcome. A cancelled ctx still rolls
	// the transaction back through BeginTx, but a commit that already
	// happened must be reported as a success.
	select {
	case err := <-ch:
		return err
	case <-w.done:
		select {
		case err := <-ch:
			return err
		default:
			return ErrWriterClosed
		}
	}
}

func (w *Writer) loop() {
	defer close(w.done)

	for {
		select {
		case <-w.quit:
			w.drain()
			return
		case j := <-w.jobs:
			j.ch <- w.run(j)
		}
	}
}

func (w *Writer) run(j job) error {
	if err := j.ctx.Err(); err != nil {
		return err
	}

	tx, err := w.db.BeginTx(j.ctx, nil)
	if err != nil {
		return err
	}
	if err := j.fn(j.ctx, tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (w *Writer) drain() {
	for {
		select {
		case j := <-w.jobs:
			j.ch <- ErrWriterClosed
		default:
			return
		}
	}
}
