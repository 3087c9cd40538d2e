package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

// maxVisibleLines caps the live status message's visible activity
// tail; older lines collapse into a count.
const maxVisibleLines = 10

// minEditInterval rate-limits edits: at most one per job per second.
const minEditInterval = time.Second

// statusReporter owns one job's live status message: the transport
// message id, the rolling activity tail, and the edit rate limit.
// Owning these in one value lets cancellation dispose of the reporter
// deterministically.
type statusReporter struct {
	mu       sync.Mutex
	edit     func(ctx context.Context, msgID, text string) error
	msgID    string
	header   string
	lines    []string
	dropped  int
	lastEdit time.Time
	clock    func() time.Time
}

func newStatusReporter(edit func(ctx context.Context, msgID, text string) error, msgID, header string, now func() time.Time) *statusReporter {
	return &statusReporter{edit: edit, msgID: msgID, header: header, clock: now}
}

// Append adds one activity line and flushes if the rate limit allows.
func (r *statusReporter) Append(ctx context.Context, line string) {
	r.mu.Lock()
	r.lines = append(r.lines, line)
	if len(r.lines) > maxVisibleLines {
		r.dropped += len(r.lines) - maxVisibleLines
		r.lines = r.lines[len(r.lines)-maxVisibleLines:]
	}
	shouldFlush := r.clock().Sub(r.lastEdit) >= minEditInterval
	body := r.renderLocked()
	if shouldFlush {
		r.lastEdit = r.clock()
	}
	r.mu.Unlock()

	if shouldFlush {
		_ = r.edit(ctx, r.msgID, body)
	}
}

// Finish rewrites the header to a terminal label and always flushes,
// bypassing the rate limit.
func (r *statusReporter) Finish(ctx context.Context, header string) {
	r.mu.Lock()
	r.header = header
	body := r.renderLocked()
	r.lastEdit = r.clock()
	r.mu.Unlock()
	_ = r.edit(ctx, r.msgID, body)
}

func (r *statusReporter) renderLocked() string {
	var b strings.Builder
	b.WriteString(r.header)
	if r.dropped > 0 {
		fmt.Fprintf(&b, "\n… %d earlier lines", r.dropped)
	}
	for _, l := range r.lines {
		b.WriteString("\n")
		b.WriteString(l)
	}
	return b.String()
}
