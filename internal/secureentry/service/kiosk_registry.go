package service

import (
	"context"
	"strings"

	"github.com/secureentry/secureentry/internal/clock"
	"github.com/secureentry/secureentry/internal/secureentry/store"
)

type KioskRegistry struct {
	store store.KioskStore
	clock clock.Clock
}

func NewKioskRegistry(st store.KioskStore, clk clock.Clock) *KioskRegistry {
	return &KioskRegistry{store: st, clock: clk}
}

func (r *KioskRegistry) IsKnown(ctx context.Context, kioskID string) (bool, error) {
	kioskID = strings.TrimSpace(kioskID)
	if kioskID == "" {
		return false, nil
	}
	return r.store.IsKnown(ctx, kioskID)
}

func (r *KioskRegistry) NoteSeen(ctx context.Context, kioskID string) error {
	kioskID = strings.TrimSpace(kioskID)
	if kioskID == "" {
		return nil
	}
	return r.store.MarkSeen(ctx, kioskID, r.clock.Now().UTC())
}
