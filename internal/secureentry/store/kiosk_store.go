package store

import (
	"context"
	"time"
)

type KioskStore interface {
	IsKnown(ctx context.Context, kioskID string) (bool, error)
	MarkSeen(ctx context.Context, kioskID string, t time.Time) error
}
