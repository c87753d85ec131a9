// Package frame provides the still images a kiosk submits for
// verification.
package frame

import (
	"context"
	"errors"
	"time"
)

// ErrNoFrame is returned by Capture when the source has nothing to give.
var ErrNoFrame = errors.New("no frame available")

// Frame is one captured still.
type Frame struct {
	Data        []byte
	ContentType string
	TakenAt     time.Time
}

// Source produces frames on demand. Ready reports whether a usable frame
// is available right now; Capture returns exactly one frame. Ready may be
// called concurrently and may block on I/O.
type Source interface {
	Ready(ctx context.Context) bool
	Capture(ctx context.Context) (Frame, error)
}
