package engine

import (
	"errors"
	"fmt"
)

var (
	// ErrVetoed is returned when the censor refuses a transaction. It wraps
	// the transaction's own error when there is one.
	ErrVetoed = errors.New("transaction vetoed by censor")

	// ErrClosed is returned by operations on a closed engine.
	ErrClosed = errors.New("engine closed")
)

// RecoveryError reports a failed startup.
type RecoveryError struct {
	// Code identifies the error category.
	Code RecoveryErrorCode

	// Message is a human-readable description.
	Message string

	// Version is the snapshot version recovery started from.
	Version uint64

	// Err is the underlying error.
	Err error
}

// RecoveryErrorCode categorizes recovery errors.
type RecoveryErrorCode string

const (
	// ErrCodeSnapshotUnreadable means the latest snapshot could not be
	// listed or decoded.
	ErrCodeSnapshotUnreadable RecoveryErrorCode = "SNAPSHOT_UNREADABLE"

	// ErrCodeJournalUnreadable means the journal could not be replayed.
	ErrCodeJournalUnreadable RecoveryErrorCode = "JOURNAL_UNREADABLE"

	// ErrCodeTransactionUndecodable means a journaled transaction no longer
	// decodes, typically after an incompatible change to its Go type.
	ErrCodeTransactionUndecodable RecoveryErrorCode = "TRANSACTION_UNDECODABLE"
)

// Error implements the error interface.
func (e *RecoveryError) Error() string {
	return fmt.Sprintf("%s: %s (snapshot version %d): %v", e.Code, e.Message, e.Version, e.Err)
}

// Unwrap returns the underlying error.
func (e *RecoveryError) Unwrap() error {
	return e.Err
}

// IsRecoveryError reports whether err is a RecoveryError with the given code.
// Uses errors.As to handle wrapped errors.
func IsRecoveryError(err error, code RecoveryErrorCode) bool {
	var re *RecoveryError
	if errors.As(err, &re) {
		return re.Code == code
	}
	return false
}
