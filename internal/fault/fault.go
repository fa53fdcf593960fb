// Package fault carries reports of unrecoverable I/O failures to an external
// monitor.
//
// The journal reports a fault and then halts the failing goroutine forever,
// so a report is often the last thing an operator learns about a stuck
// process. Monitors must therefore never block and never panic.
package fault

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Report describes one fatal failure.
type Report struct {
	ID        string    // UUIDv7, time-sortable
	Component string    // reporting component, e.g. "journal"
	Message   string    // what was blocked and why
	File      string    // file being written, if any
	Cause     error     // underlying error
	At        time.Time // when the fault was reported
}

// NewReport builds a report with a fresh ID and the current time.
func NewReport(component, message, file string, cause error) Report {
	return Report{
		ID:        uuid.Must(uuid.NewV7()).String(),
		Component: component,
		Message:   message,
		File:      file,
		Cause:     cause,
		At:        time.Now().UTC(),
	}
}

func (r Report) String() string {
	s := fmt.Sprintf("%s: %s", r.Component, r.Message)
	if r.File != "" {
		s += " (file " + r.File + ")"
	}
	if r.Cause != nil {
		s += ": " + r.Cause.Error()
	}
	return s
}

// Monitor receives fault reports.
type Monitor interface {
	Notify(r Report)
}

// Log writes reports to a slog logger at error level.
type Log struct {
	Logger *slog.Logger // nil means slog.Default()
}

// Notify implements Monitor.
func (l Log) Notify(r Report) {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Error(r.Message,
		"fault_id", r.ID,
		"component", r.Component,
		"file", r.File,
		"error", r.Cause,
	)
}

// Multi fans a report out to several monitors in order.
type Multi []Monitor

// Notify implements Monitor.
func (m Multi) Notify(r Report) {
	for _, mon := range m {
		if mon != nil {
			mon.Notify(r)
		}
	}
}

// Recorder keeps reports in memory. Used by tests.
type Recorder struct {
	mu      sync.Mutex
	reports []Report
}

// Notify implements Monitor.
func (r *Recorder) Notify(rep Report) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reports = append(r.reports, rep)
}

// Reports returns a copy of the recorded reports.
func (r *Recorder) Reports() []Report {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Report, len(r.reports))
	copy(out, r.reports)
	return out
}
