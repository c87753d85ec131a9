// Package credentials stores worker credential artifacts (face images)
// behind opaque references. Workers keep only the reference.
package credentials

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound   = errors.New("credential not found")
	ErrInvalidRef = errors.New("invalid credential reference")
)

type Store interface {
	// Put stores data under a fresh reference and returns it.
	Put(ctx context.Context, data []byte, contentType string) (string, error)
	Get(ctx context.Context, ref string) ([]byte, error)
	// Delete removes the artifact. Deleting a missing artifact is not an
	// error.
	Delete(ctx context.Context, ref string) error
}

// NewKey returns a fresh reference, bucketed by day.
func NewKey(now time.Time) string {
	return fmt.Sprintf("credentials/%d/%02d/%02d/%v", now.Year(), now.Month(), now.Day(), uuid.New())
}

func checkRef(ref string) error {
	if ref == "" || strings.HasPrefix(ref, "/") || strings.Contains(ref, "\\") {
		return ErrInvalidRef
	}
	for _, part := range strings.Split(ref, "/") {
		if part == "" || part == "." || part == ".." {
			return ErrInvalidRef
		}
	}
	return nil
}
