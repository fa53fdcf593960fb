// Package censor holds the policy gate consulted after a transaction's trial
// execution and before it is journaled.
//
// A Censor sees the executed capsule and either approves it, vetoes it, or
// fails with a configuration error. Policies are swappable without touching
// the journal or the engine.
package censor

import "errors"

// ErrRollbackNotSupported is returned by Liberal for a transaction that asks
// for rollback-on-unrecoverable semantics. The engine cannot undo in-memory
// mutations, so accepting such a transaction would be a silent lie.
var ErrRollbackNotSupported = errors.New("rollback is not supported by this censor: use journal-always transactions")

// Capsule is the view of an executed capsule a censor may inspect.
type Capsule interface {
	DesiresRollback() bool
	RequiresRollback() bool
}

// Censor approves or vetoes an executed transaction.
//
// Approve is called exactly once per transaction. A false result keeps the
// transaction out of the journal; an error does too, and is returned to the
// submitter instead of the transaction's own outcome.
type Censor interface {
	Approve(c Capsule) (bool, error)
}

// Func adapts a function to the Censor interface.
type Func func(c Capsule) (bool, error)

// Approve calls f.
func (f Func) Approve(c Capsule) (bool, error) {
	return f(c)
}

// Liberal approves every transaction but refuses to run transactions that
// desire rollback.
type Liberal struct{}

// Approve implements Censor.
func (Liberal) Approve(c Capsule) (bool, error) {
	if c.DesiresRollback() {
		return false, ErrRollbackNotSupported
	}
	return true, nil
}

// Strict vetoes any transaction whose execution requires rollback and
// approves the rest.
//
// The vetoed transaction is never journaled, but whatever it changed in
// memory before failing stays changed.
type Strict struct{}

// Approve implements Censor.
func (Strict) Approve(c Capsule) (bool, error) {
	return !c.RequiresRollback(), nil
}
