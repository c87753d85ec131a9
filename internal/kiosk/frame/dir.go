package frame

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

var imageExts = map[string]bool{".jpg": true, ".jpeg": true, ".png": true}

// DirSource reads the newest image file a camera has written into a spool
// directory. A file is handed out once; Ready stays false until the camera
// writes a newer one.
type DirSource struct {
	dir string

	mu       sync.Mutex
	lastName string
	lastMod  time.Time
}

func NewDirSource(dir string) *DirSource {
	return &DirSource{dir: dir}
}

type dirCandidate struct {
	path string
	name string
	mod  time.Time
}

func (s *DirSource) newest() (dirCandidate, bool) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return dirCandidate{}, false
	}

	var best dirCandidate
	found := false
	for _, e := range entries {
		if e.IsDir() || !imageExts[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		info, err := e.Info()
		if err != nil || info.Size() == 0 {
			continue
		}
		mod := info.ModTime()
		if !found || mod.After(best.mod) || (mod.Equal(best.mod) && e.Name() > best.name) {
			best = dirCandidate{path: filepath.Join(s.dir, e.Name()), name: e.Name(), mod: mod}
			found = true
		}
	}
	return best, found
}

func (s *DirSource) fresh(c dirCandidate) bool {
	return c.name != s.lastName || c.mod.After(s.lastMod)
}

func (s *DirSource) Ready(ctx context.Context) bool {
	c, ok := s.newest()
	if !ok {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fresh(c)
}

func (s *DirSource) Capture(ctx context.Context) (Frame, error) {
	if err := ctx.Err(); err != nil {
		return Frame{}, err
	}

	c, ok := s.newest()
	if !ok {
		return Frame{}, ErrNoFrame
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.fresh(c) {
		return Frame{}, ErrNoFrame
	}

	data, err := os.ReadFile(c.path)
	if err != nil {
		return Frame{}, fmt.Errorf("read frame %s: %w", c.name, err)
	}
	s.lastName, s.lastMod = c.name, c.mod

	return Frame{
		Data:        data,
		ContentType: http.DetectContentType(data),
		TakenAt:     c.mod,
	}, nil
}
