package turn

import "sync"

// Issuer hands out turns in strictly increasing sequence order.
//
// Thread-safety: Issue is safe for concurrent use. The sequence counter and
// the link to the most recently issued turn are only touched under mu.
type Issuer struct {
	mu   sync.Mutex
	next uint64
	last chan struct{} // release signal of the most recently issued turn
}

// NewIssuer creates an issuer whose first turn carries sequence number first.
func NewIssuer(first uint64) *Issuer {
	return &Issuer{next: first}
}

// Issue returns a fresh turn numbered after every turn issued before it.
func (i *Issuer) Issue() *Turn {
	i.mu.Lock()
	defer i.mu.Unlock()

	t := &Turn{
		seq:  i.next,
		prev: i.last,
		done: make(chan struct{}),
	}
	i.next++
	i.last = t.done
	return t
}

// Next returns the sequence number the next issued turn will carry.
func (i *Issuer) Next() uint64 {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.next
}

// Turn is one position in the global order.
//
// A turn is owned by exactly one pending transaction. Ownership moves from the
// issuer to the caller, which must call SignalDone exactly once it no longer
// needs its position (extra calls are no-ops).
type Turn struct {
	seq  uint64
	prev <-chan struct{} // nil for the first turn of an issuer
	done chan struct{}
	once sync.Once
}

// Seq returns the turn's sequence number.
func (t *Turn) Seq() uint64 {
	return t.seq
}

// WaitForPrevious blocks until the immediately preceding turn has signalled.
// The first turn of an issuer never waits. Calling it again returns at once.
func (t *Turn) WaitForPrevious() {
	if t.prev == nil {
		return
	}
	<-t.prev
}

// SignalDone releases the next turn.
//
// The predecessor is awaited first so the release order always matches the
// issue order, even when the holder never called WaitForPrevious.
func (t *Turn) SignalDone() {
	t.once.Do(func() {
		t.WaitForPrevious()
		close(t.done)
	})
}
