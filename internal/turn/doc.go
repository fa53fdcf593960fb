// Package turn provides the ordering token that gives transactions a single
// global order across journaling and application.
//
// Every transaction takes a Turn from an Issuer before it does any I/O. Turns
// are numbered in issue order and chained: a holder of turn n may only pass
// WaitForPrevious once turn n-1 has called SignalDone. The result is a total
// order over the durable write and the in-memory apply that does not depend
// on goroutine scheduling, while the work a transaction does before its wait
// (serialization, frame encoding) still overlaps with its predecessors.
//
// Turns must always be released:
//
//	t := issuer.Issue()
//	defer t.SignalDone()
//	t.WaitForPrevious()
//	// journal and apply
//
// SignalDone waits for the predecessor itself, so releasing a turn on an early
// error path never lets a later turn overtake an earlier one.
package turn
