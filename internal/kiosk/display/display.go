// Package display renders the kiosk's scan state to the operator.
package display

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"github.com/secureentry/secureentry/internal/kiosk/scan"
	"github.com/secureentry/secureentry/internal/logging"
)

// Log writes one structured line per state change.
type Log struct {
	log logging.Logger
}

func NewLog(log logging.Logger) *Log {
	if log == nil {
		log = logging.Discard()
	}
	return &Log{log: log}
}

func (d *Log) Show(s scan.State) {
	d.log.Info(context.Background(), "display", "state", s.String())
}

var (
	grantedColor = lipgloss.Color("#4ade80")
	deniedColor  = lipgloss.Color("#f87171")
	idleColor    = lipgloss.Color("#94a3b8")
	busyColor    = lipgloss.Color("#facc15")
)

// Terminal draws a coloured banner per state.
type Terminal struct {
	mu     sync.Mutex
	w      io.Writer
	styles map[scan.State]lipgloss.Style
	labels map[scan.State]string
}

func NewTerminal(w io.Writer) *Terminal {
	if w == nil {
		w = os.Stdout
	}
	r := lipgloss.NewRenderer(w)
	banner := func(c lipgloss.Color) lipgloss.Style {
		return r.NewStyle().
			Bold(true).
			Padding(0, 2).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(c).
			Foreground(c)
	}
	return &Terminal{
		w: w,
		styles: map[scan.State]lipgloss.Style{
			scan.Idle:       banner(idleColor),
			scan.Processing: banner(busyColor),
			scan.Granted:    banner(grantedColor),
			scan.Denied:     banner(deniedColor),
		},
		labels: map[scan.State]string{
			scan.Idle:       "Look at the camera",
			scan.Processing: "Verifying...",
			scan.Granted:    "ACCESS GRANTED",
			scan.Denied:     "ACCESS DENIED",
		},
	}
}

func (d *Terminal) Show(s scan.State) {
	d.mu.Lock()
	defer d.mu.Unlock()

	label, ok := d.labels[s]
	if !ok {
		label = s.String()
	}
	_, _ = fmt.Fprintln(d.w, d.styles[s].Render(label))
}
