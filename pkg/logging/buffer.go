package logging

import (
	"strings"
	"sync"
)

// DefaultRingSize is the number of lines a Ring keeps.
const DefaultRingSize = 50

// Ring is a thread-safe writer that keeps the last N lines written to it.
type Ring struct {
	mu    sync.RWMutex
	lines []string
	next  int
	full  bool
}

// StatusLog captures INFO+ server log lines for the operator status display.
var StatusLog = NewRing(DefaultRingSize)

// EventLog captures flight events.
var EventLog = NewRing(DefaultRingSize)

// NewRing creates a ring holding up to size lines.
func NewRing(size int) *Ring {
	if size <= 0 {
		size = DefaultRingSize
	}
	return &Ring{lines: make([]string, size)}
}

// Write implements io.Writer. Each call is one line.
func (r *Ring) Write(p []byte) (n int, err error) {
	r.Add(string(p))
	return len(p), nil
}

// Add stores a line, evicting the oldest when full.
func (r *Ring) Add(line string) {
	line = strings.TrimRight(line, "\r\n")
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines[r.next] = line
	r.next = (r.next + 1) % len(r.lines)
	if r.next == 0 {
		r.full = true
	}
}

// Last returns the most recent line, or "" if nothing was written.
func (r *Ring) Last() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if !r.full && r.next == 0 {
		return ""
	}
	return r.lines[(r.next-1+len(r.lines))%len(r.lines)]
}

// Lines returns the retained lines, oldest first.
func (r *Ring) Lines() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if !r.full {
		out := make([]string, r.next)
		copy(out, r.lines[:r.next])
		return out
	}
	out := make([]string, 0, len(r.lines))
	out = append(out, r.lines[r.next:]...)
	return append(out, r.lines[:r.next]...)
}
