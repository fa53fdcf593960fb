// Package engine implements the prevalence engine.
//
// The engine keeps a system of type S in memory and makes every change to it
// durable by journaling the transaction that caused it. On startup it loads
// the latest snapshot and replays the journal after it; from then on it
// accepts transactions from any number of goroutines.
//
// ARCHITECTURE:
//
// Per-transaction flow (Execute):
//  1. Issue a turn. Turn order is the global order of the transaction.
//  2. Serialize the transaction into a capsule. Nothing is locked yet.
//  3. Wait for the previous turn.
//  4. Execute the capsule against the live state under the state write lock,
//     stamped with the engine clock.
//  5. Ask the censor. A vetoed transaction is not journaled.
//  6. Append the capsule's bytes to the journal under the same turn.
//  7. Release the lock and the turn, return the capsule's cached outcome.
//
// Queries take the state read lock, so a reader never observes a change
// whose transaction is not yet on disk.
//
// Recovery flow (Open):
//
//	version = snapshots.LatestVersion()
//	state   = snapshot.Load(initial, version)
//	journal.Update(engine, version+1)
//
// The engine is the journal's replay subscriber. Replayed transactions run
// with their recorded timestamps and are never censored.
//
// FAILURE MODEL:
//
// A failed journal write halts the submitting goroutine forever after a
// fault report, still holding its turn. Every later transaction waits on that
// turn, which is the intended fail-stop: the process must be restarted by an
// operator. Snapshot failures are reported and returned; the journal still
// holds everything.
//
// KNOWN LIMITATION:
//
// A transaction's trial execution mutates the live state before the censor
// sees it. If the censor vetoes it, the mutation stays in memory while the
// transaction never reaches the journal, so the in-memory state and the
// recovered state can differ until restart.
package engine
