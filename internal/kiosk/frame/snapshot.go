package frame

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

const maxSnapshotBytes = 10 << 20

// SnapshotSource pulls stills from an IP camera's snapshot URL. Ready
// fetches a frame and holds it so the following Capture returns that same
// frame instead of a second request.
type SnapshotSource struct {
	url    string
	client *http.Client
	now    func() time.Time

	mu      sync.Mutex
	pending *Frame
}

func NewSnapshotSource(url string, client *http.Client) *SnapshotSource {
	if client == nil {
		client = &http.Client{Timeout: 2 * time.Second}
	}
	return &SnapshotSource{url: url, client: client, now: time.Now}
}

func (s *SnapshotSource) Ready(ctx context.Context) bool {
	f, err := s.fetch(ctx)
	if err != nil {
		return false
	}
	s.mu.Lock()
	s.pending = &f
	s.mu.Unlock()
	return true
}

func (s *SnapshotSource) Capture(ctx context.Context) (Frame, error) {
	s.mu.Lock()
	f := s.pending
	s.pending = nil
	s.mu.Unlock()

	if f != nil {
		return *f, nil
	}
	return s.fetch(ctx)
}

func (s *SnapshotSource) fetch(ctx context.Context) (Frame, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return Frame{}, fmt.Errorf("snapshot request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return Frame{}, fmt.Errorf("snapshot: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Frame{}, fmt.Errorf("snapshot: status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxSnapshotBytes))
	if err != nil {
		return Frame{}, fmt.Errorf("snapshot body: %w", err)
	}
	if len(data) == 0 {
		return Frame{}, ErrNoFrame
	}

	ct := http.DetectContentType(data)
	if !strings.HasPrefix(ct, "image/") {
		return Frame{}, fmt.Errorf("snapshot: unexpected content type %q", ct)
	}
	return Frame{Data: data, ContentType: ct, TakenAt: s.now()}, nil
}
