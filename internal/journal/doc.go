// Package journal implements the persistent transaction journal: a directory
// of rotating, append-only segment files holding every committed transaction
// in order.
//
// # Files
//
// A segment is named after the number of the first transaction it may
// contain, as a 19-digit zero-padded decimal plus ".journal"
// (0000000000000000001.journal). Records inside a segment are consecutive, so
// the number of any record is its segment's number plus its index. Recovery
// relies on this: when a segment ends, the next one must be named after the
// next expected transaction.
//
// # Records
//
// Each record is framed as
//
//	[uint32 length][uint64 xxhash64(payload)][payload]
//
// with big-endian header fields. The payload is the MessagePack encoding of
// the execution time and the capsule bytes. A reader tells a clean end of
// segment (io.EOF on a frame boundary) from a torn write (ErrTruncated) and
// from damage (ErrCorrupt).
//
// # Lifecycle
//
// Uninitialized -> Ready after the first Update (recovery) -> Halted after a
// fatal I/O failure. Append before Update is a programming error. Update must
// not run concurrently with Append.
//
// # Fail-stop
//
// A failure while creating, writing or syncing a segment leaves the durable
// log and the in-memory state at risk of diverging. The journal reports the
// failure to its fault monitor and then blocks the failing goroutine forever.
// Every later Append blocks the same way. Nothing is retried.
//
// The journal never deletes segments. A segment that never received a
// complete first record is renamed with an ".unusedFile<millis>" suffix during
// recovery so its name can be reused.
package journal
