package testutil

import (
	"runtime"
	"sync"
)

// HaltRecorder stands in for the fail-stop hang of the journal in tests.
//
// Halt records the call and then ends the calling goroutine with
// runtime.Goexit, so deferred turn releases still run and the test goroutine
// that observed the fault is never stuck. Production code blocks forever.
type HaltRecorder struct {
	mu     sync.Mutex
	count  int
	halted chan struct{}
}

// NewHaltRecorder creates a recorder with no halts.
func NewHaltRecorder() *HaltRecorder {
	return &HaltRecorder{halted: make(chan struct{})}
}

// Halt records a halt and terminates the calling goroutine.
func (h *HaltRecorder) Halt() {
	h.mu.Lock()
	h.count++
	if h.count == 1 {
		close(h.halted)
	}
	h.mu.Unlock()
	runtime.Goexit()
}

// Count returns the number of halts observed.
func (h *HaltRecorder) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.count
}

// Halted is closed after the first halt.
func (h *HaltRecorder) Halted() <-chan struct{} {
	return h.halted
}
