package txn

import (
	"errors"
	"fmt"
	"time"
)

// Transaction is a serializable command applied to the prevalent state S.
type Transaction[S any] interface {
	ExecuteOn(state S, executedAt time.Time) (any, error)
}

// Journaling is a transaction's durability policy.
type Journaling int

const (
	// JournalAlways journals the transaction whatever its outcome.
	JournalAlways Journaling = iota

	// RollbackOnUnrecoverable asks that the transaction be kept out of the
	// journal when its execution panics.
	RollbackOnUnrecoverable
)

func (j Journaling) String() string {
	switch j {
	case JournalAlways:
		return "journal-always"
	case RollbackOnUnrecoverable:
		return "rollback-on-unrecoverable"
	default:
		return fmt.Sprintf("Journaling(%d)", int(j))
	}
}

// JournalingPolicy is implemented by transactions that want a policy other
// than JournalAlways.
type JournalingPolicy interface {
	Journaling() Journaling
}

// JournalingOf returns tx's declared policy.
func JournalingOf(tx any) Journaling {
	if p, ok := tx.(JournalingPolicy); ok {
		return p.Journaling()
	}
	return JournalAlways
}

var (
	// ErrNotSerializable marks a transaction that could not be encoded.
	ErrNotSerializable = errors.New("transaction not serializable")

	// ErrNotDeserializable marks capsule bytes that could not be decoded
	// into a transaction.
	ErrNotDeserializable = errors.New("transaction not deserializable")

	// ErrAlreadyExecuted is returned by a second Execute on one capsule.
	ErrAlreadyExecuted = errors.New("capsule already executed")

	// ErrNotExecuted is returned by Result before Execute.
	ErrNotExecuted = errors.New("capsule not executed")
)

// NotSerializableError reports a transaction whose encoding failed.
// It is fatal to the submission and happens before any journaling.
type NotSerializableError struct {
	Transaction string // Go type of the transaction
	Err         error
}

func (e *NotSerializableError) Error() string {
	return fmt.Sprintf("unable to serialize transaction %s: %v", e.Transaction, e.Err)
}

func (e *NotSerializableError) Unwrap() []error {
	return []error{ErrNotSerializable, e.Err}
}

// NotDeserializableError reports capsule bytes that could not be decoded.
// It is never retried.
type NotDeserializableError struct {
	Err error
}

func (e *NotDeserializableError) Error() string {
	return fmt.Sprintf("unable to deserialize transaction: %v", e.Err)
}

func (e *NotDeserializableError) Unwrap() []error {
	return []error{ErrNotDeserializable, e.Err}
}

// UnrecoverableError carries a panic raised while a transaction executed.
type UnrecoverableError struct {
	Value any
	Stack []byte
}

func (e *UnrecoverableError) Error() string {
	return fmt.Sprintf("unrecoverable error executing transaction: %v", e.Value)
}

// Unwrap exposes the panic value when it was itself an error.
func (e *UnrecoverableError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// IsUnrecoverable reports whether err is or wraps an UnrecoverableError.
func IsUnrecoverable(err error) bool {
	var ue *UnrecoverableError
	return errors.As(err, &ue)
}

// As converts an untyped transaction result to R.
//
// A nil result converts to R's zero value. A result of any other type is an
// error, unless err is already non-nil, in which case err is returned as is.
func As[R any](v any, err error) (R, error) {
	var zero R
	if err != nil {
		if r, ok := v.(R); ok {
			return r, err
		}
		return zero, err
	}
	if v == nil {
		return zero, nil
	}
	r, ok := v.(R)
	if !ok {
		return zero, fmt.Errorf("transaction result is %T, not %T", v, zero)
	}
	return r, nil
}
