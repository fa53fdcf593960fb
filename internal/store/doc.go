// Package store provides a SQLite-backed ledger of fault reports.
//
// The journal reports a fatal I/O failure and then halts the failing
// goroutine forever. A log line is easy to lose in that situation, so the
// store keeps every report in a small SQLite database that operators can
// inspect with `prevail faults` after the process is killed.
//
// Store implements fault.Monitor. Notify never fails the caller: insert
// errors are logged and dropped.
//
// The database runs in WAL mode with synchronous=FULL and a five second
// busy timeout.
//
// Reports are listed newest first by reported_at, ties broken by the
// time-sortable UUIDv7 id.
package store
