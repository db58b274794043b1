package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"mercator-hq/scanport/pkg/export"
)

const barWidth = 30

// ProgressBar renders export progress events on a single line.
type ProgressBar struct {
	mu     sync.Mutex
	writer io.Writer
	last   export.ProgressEvent
	events int
}

// NewProgressBar creates a bar that writes to w. If w is nil, it defaults
// to os.Stderr.
func NewProgressBar(w io.Writer) *ProgressBar {
	if w == nil {
		w = os.Stderr
	}
	return &ProgressBar{writer: w}
}

// Func returns the bar as an export progress callback.
func (p *ProgressBar) Func() export.ProgressFunc {
	return p.Handle
}

// Handle renders one event.
func (p *ProgressBar) Handle(e export.ProgressEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.last = e
	p.events++

	if e.Failed() {
		fmt.Fprintf(p.writer, "\n✗ Error: %s\n", e.Error)
		return
	}
	fmt.Fprintf(p.writer, "\r%s", renderBar(e))
	if e.Done {
		fmt.Fprintln(p.writer)
	}
}

// Last returns the most recent event and how many were seen.
func (p *ProgressBar) Last() (export.ProgressEvent, int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last, p.events
}

func renderBar(e export.ProgressEvent) string {
	percent := 0.0
	if e.Total > 0 {
		percent = float64(e.Current) / float64(e.Total) * 100
	}
	if percent > 100 {
		percent = 100
	}
	filled := int(float64(barWidth) * percent / 100)
	bar := strings.Repeat("█", filled) + strings.Repeat("░", barWidth-filled)

	line := fmt.Sprintf("[%s] %5.1f%% (%d/%d)", bar, percent, e.Current, e.Total)
	if e.Status != "" {
		line += " " + e.Status
	}
	return line
}
