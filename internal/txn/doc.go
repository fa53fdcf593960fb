// Package txn defines transactions and the capsule that carries one through
// censorship, journaling and execution.
//
// A Transaction mutates the prevalent state and may return a result read
// back from the just-mutated state. Its returned error is the transaction's
// declared failure: an expected, deterministic outcome that is journaled and
// replayed like any other. A panic raised during execution is the
// unrecoverable variant; the capsule recovers it into an UnrecoverableError
// so the engine keeps running and the caller still receives an error.
//
// A Capsule owns only the serialized bytes of its transaction. Each Execute
// decodes a fresh copy, so no live object outlives the call and replay after a
// restart sees exactly what was journaled.
//
// Transactions must be deterministic: the same transaction applied to the
// same state with the same executedAt must produce the same state, result and
// error. Reading time.Now inside ExecuteOn breaks replay; use executedAt.
package txn
