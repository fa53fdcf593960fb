// Package snapshot writes and reads whole-state snapshot files.
//
// A snapshot named 0000000000000000042.snapshot holds the state after
// transaction 42 was applied; recovery loads it and replays the journal from
// transaction 43. Files are produced atomically: the state is serialized into
// a temporary file in the same directory, synced, and renamed over the final
// name. A crash mid-write leaves only a stray temporary file, which no reader
// ever mistakes for a snapshot.
//
// The serialization pipeline is pluggable through codec.Serializer. The
// default is MessagePack compressed with zstd; JSON without compression is
// available for snapshots meant to be read by people.
//
// Superseded snapshots are never deleted. Pruning is an operator decision.
package snapshot
