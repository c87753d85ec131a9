// Package store declares the persistence contracts for workers, kiosks and
// the entry log. Implementations live in the memory and sqlite packages.
package store

import "errors"

var (
	// ErrNotFound is returned when a worker id does not exist.
	ErrNotFound = errors.New("not found")

	// ErrUnchanged may be returned by an UpdateWorker callback to skip the
	// write. UpdateWorker then returns the current record and a nil error.
	ErrUnchanged = errors.New("unchanged")
)
