package txn

import (
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/roach88/prevail/internal/codec"
)

// Capsule wraps one transaction in serialized form together with the
// transient outcome of its single execution.
//
// INVARIANTS:
//   - serialized never changes after construction
//   - Execute runs at most once per capsule; CleanCopy starts over
//   - Result after Execute always returns the same value and error
type Capsule[S any] struct {
	serialized      []byte
	desiresRollback bool

	mu            sync.Mutex
	executed      bool
	result        any
	err           error
	unrecoverable bool
}

// NewCapsule serializes tx through reg immediately.
func NewCapsule[S any](tx Transaction[S], reg *codec.Registry) (*Capsule[S], error) {
	data, err := reg.Marshal(tx)
	if err != nil {
		return nil, &NotSerializableError{Transaction: fmt.Sprintf("%T", tx), Err: err}
	}
	return &Capsule[S]{
		serialized:      data,
		desiresRollback: JournalingOf(tx) >= RollbackOnUnrecoverable,
	}, nil
}

// FromBytes rebuilds a capsule from journaled bytes. The rollback intent is
// not part of the journal, so a replayed capsule never desires rollback.
func FromBytes[S any](serialized []byte) *Capsule[S] {
	return &Capsule[S]{serialized: serialized}
}

// Serialized returns the transaction bytes. Callers must not modify them.
func (c *Capsule[S]) Serialized() []byte {
	return c.serialized
}

// Deserialize decodes a fresh copy of the transaction.
func (c *Capsule[S]) Deserialize(reg *codec.Registry) (Transaction[S], error) {
	v, err := reg.Unmarshal(c.serialized)
	if err != nil {
		return nil, &NotDeserializableError{Err: err}
	}
	tx, ok := v.(Transaction[S])
	if !ok {
		var state S
		return nil, &NotDeserializableError{
			Err: fmt.Errorf("%T is not a transaction on %T", v, state),
		}
	}
	return tx, nil
}

// Execute decodes the transaction and applies it to state, caching the
// outcome. It returns an error only when the transaction could not be run at
// all (not deserializable, already executed); the transaction's own outcome is
// read with Result.
func (c *Capsule[S]) Execute(state S, executedAt time.Time, reg *codec.Registry) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.executed {
		return ErrAlreadyExecuted
	}

	tx, err := c.Deserialize(reg)
	if err != nil {
		return err
	}

	c.executed = true
	c.result, c.unrecoverable, c.err = run(tx, state, executedAt)
	return nil
}

// run invokes tx, turning a panic into an UnrecoverableError.
func run[S any](tx Transaction[S], state S, executedAt time.Time) (result any, unrecoverable bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			unrecoverable = true
			err = &UnrecoverableError{Value: r, Stack: debug.Stack()}
		}
	}()
	result, err = tx.ExecuteOn(state, executedAt)
	return result, false, err
}

// Executed reports whether Execute has run.
func (c *Capsule[S]) Executed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.executed
}

// Result returns the cached result or the cached error.
func (c *Capsule[S]) Result() (any, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.executed {
		return nil, ErrNotExecuted
	}
	return c.result, c.err
}

// DesiresRollback reports whether the transaction asked to be kept out of
// the journal when its execution is unrecoverable.
func (c *Capsule[S]) DesiresRollback() bool {
	return c.desiresRollback
}

// RequiresRollback reports whether rollback was desired and the execution
// ended in an unrecoverable error. Declared errors never require rollback.
func (c *Capsule[S]) RequiresRollback() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.desiresRollback && c.unrecoverable
}

// CleanCopy returns a capsule with the same bytes and rollback intent but no
// outcome.
func (c *Capsule[S]) CleanCopy() *Capsule[S] {
	return &Capsule[S]{
		serialized:      c.serialized,
		desiresRollback: c.desiresRollback,
	}
}
