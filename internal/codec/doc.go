// Package codec provides the pluggable binary object codecs used for journal
// records, transaction bodies and snapshots.
//
// The baseline codec is MessagePack (vmihailenco/msgpack). Snapshots go
// through a Serializer that can additionally compress with gzip or zstd.
//
// Transactions are opaque to the engine, so they are stored with their type
// name in an envelope. A Registry maps those names back to Go types when a
// capsule is executed or a journal is replayed. Names are part of the
// on-disk format: renaming a registered transaction breaks replay of journals
// written before the rename.
package codec
