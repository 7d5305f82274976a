package logging

import (
	"fmt"
	"strings"
	"sync"
)

// Entry is one captured log line.
type Entry struct {
	Level   string
	Message string
}

// Recorder is a Logger that keeps every entry in memory. Tests use it to
// assert on swallowed hook failures.
type Recorder struct {
	mu      sync.Mutex
	entries []Entry
}

// NewRecorder returns an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Debug(format string, args ...any) { r.add("debug", format, args) }
func (r *Recorder) Info(format string, args ...any)  { r.add("info", format, args) }
func (r *Recorder) Warn(format string, args ...any)  { r.add("warn", format, args) }
func (r *Recorder) Error(format string, args ...any) { r.add("error", format, args) }

func (r *Recorder) add(level, format string, args []any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, Entry{Level: level, Message: fmt.Sprintf(format, args...)})
}

// Entries returns a copy of the captured entries.
func (r *Recorder) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Filter returns entries at level whose message contains substr.
func (r *Recorder) Filter(level, substr string) []Entry {
	var out []Entry
	for _, entry := range r.Entries() {
		if entry.Level == level && strings.Contains(entry.Message, substr) {
			out = append(out, entry)
		}
	}
	return out
}
