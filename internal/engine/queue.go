package engine

import "sync"

// SnapshotResult is the outcome of a requested snapshot.
type SnapshotResult struct {
	Version uint64
	Err     error
}

// snapshotRequest asks the Run loop for a snapshot.
type snapshotRequest struct {
	reply chan SnapshotResult // buffered, size 1
}

// requestQueue is a thread-safe FIFO queue of snapshot requests.
//
// The queue uses a channel for signaling to enable context-aware waiting
// in the Run loop.
type requestQueue struct {
	mu       sync.Mutex
	requests []snapshotRequest
	closed   bool
	signal   chan struct{} // Signals request availability (buffered, size 1)
}

func newRequestQueue() *requestQueue {
	return &requestQueue{
		signal: make(chan struct{}, 1),
	}
}

// Enqueue adds a request to the back of the queue.
// Returns false if the queue is closed.
func (q *requestQueue) Enqueue(r snapshotRequest) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	q.requests = append(q.requests, r)

	// Non-blocking: the buffer of 1 coalesces signals.
	select {
	case q.signal <- struct{}{}:
	default:
	}

	return true
}

// TryDequeue removes the front request without blocking.
func (q *requestQueue) TryDequeue() (snapshotRequest, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.requests) == 0 {
		return snapshotRequest{}, false
	}

	r := q.requests[0]
	q.requests[0] = snapshotRequest{}
	if len(q.requests) == 1 {
		q.requests = q.requests[:0]
	} else {
		q.requests = q.requests[1:]
	}
	return r, true
}

// Wait returns a channel that signals when requests may be available.
// It is closed when the queue is closed.
func (q *requestQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the current queue length.
func (q *requestQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.requests)
}

// Drained reports whether the queue is closed and empty.
func (q *requestQueue) Drained() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed && len(q.requests) == 0
}

// Close rejects further requests and wakes waiters. Requests still queued
// are answered with ErrClosed.
func (q *requestQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}

	q.closed = true
	for _, r := range q.requests {
		r.reply <- SnapshotResult{Err: ErrClosed}
	}
	q.requests = nil
	close(q.signal)
}
