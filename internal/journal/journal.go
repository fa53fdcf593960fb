package journal

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/roach88/prevail/internal/clock"
	"github.com/roach88/prevail/internal/fault"
	"github.com/roach88/prevail/internal/turn"
)

var (
	// ErrNotRecovered is returned by Append before the first Update.
	ErrNotRecovered = errors.New("journal: Update must be called at least once before Append")

	// ErrClosed is returned by Append after Close.
	ErrClosed = errors.New("journal: closed")

	// ErrHalted is returned by Append only when the configured halt function
	// returns, which production halts never do.
	ErrHalted = errors.New("journal: halted after fatal I/O failure")

	// ErrNotReached is returned by a repeated Update asking for a transaction
	// the journal has not logged yet.
	ErrNotReached = errors.New("journal: transaction not yet reached")

	// ErrMissingSegment is returned when a segment needed for recovery is
	// gone, typically deleted by hand.
	ErrMissingSegment = errors.New("journal: missing segment")

	// ErrInconsistentRecovery is returned when recovery disagrees with an
	// earlier recovery, or leaves segments it could not reach.
	ErrInconsistentRecovery = errors.New("journal: inconsistent recovery")
)

// Subscriber receives recovered transactions in order.
type Subscriber interface {
	Receive(seq uint64, tx []byte, executedAt time.Time) error
}

// SubscriberFunc adapts a function to the Subscriber interface.
type SubscriberFunc func(seq uint64, tx []byte, executedAt time.Time) error

// Receive calls f.
func (f SubscriberFunc) Receive(seq uint64, tx []byte, executedAt time.Time) error {
	return f(seq, tx, executedAt)
}

type state int

const (
	stateUninitialized state = iota
	stateReady
	stateHalted
)

// Journal writes transactions to rotating segment files and replays them on
// recovery.
//
// Thread-safety: Append is safe for concurrent use; the order of records is
// the order of the turns passed to it. Update and Close must not overlap with
// Append.
type Journal struct {
	dir           string
	sizeThreshold int64
	ageThreshold  time.Duration
	clock         clock.Clock
	monitor       fault.Monitor
	logger        *slog.Logger
	halt          func()

	mu     sync.Mutex
	state  state
	next   uint64 // number of the next transaction to be written
	out    *segment
	closed bool
}

// Option configures a Journal.
type Option func(*Journal)

// WithSizeThreshold rotates the output segment once it holds at least n
// bytes. Zero disables size rotation.
func WithSizeThreshold(n int64) Option {
	return func(j *Journal) { j.sizeThreshold = n }
}

// WithAgeThreshold rotates the output segment once it is at least d old.
// Zero disables age rotation.
func WithAgeThreshold(d time.Duration) Option {
	return func(j *Journal) { j.ageThreshold = d }
}

// WithClock sets the clock used to age segments.
func WithClock(c clock.Clock) Option {
	return func(j *Journal) { j.clock = c }
}

// WithMonitor sets the sink for fatal I/O failures.
func WithMonitor(m fault.Monitor) Option {
	return func(j *Journal) { j.monitor = m }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(j *Journal) { j.logger = l }
}

// WithHalt replaces the fail-stop hang. Tests use it to observe halts.
func WithHalt(halt func()) Option {
	return func(j *Journal) { j.halt = halt }
}

// Open prepares a journal over dir, creating the directory if needed. No
// segment is read until Update.
func Open(dir string, opts ...Option) (*Journal, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create journal directory: %w", err)
	}

	j := &Journal{
		dir:   dir,
		clock: clock.System{},
		halt:  blockForever,
	}
	for _, opt := range opts {
		opt(j)
	}
	if j.sizeThreshold < 0 || j.ageThreshold < 0 {
		return nil, fmt.Errorf("journal thresholds must not be negative")
	}
	if j.logger == nil {
		j.logger = slog.Default()
	}
	if j.monitor == nil {
		j.monitor = fault.Log{Logger: j.logger}
	}
	return j, nil
}

// Dir returns the journal directory.
func (j *Journal) Dir() string {
	return j.dir
}

// NextTransaction returns the number the next appended transaction will get.
func (j *Journal) NextTransaction() uint64 {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.next
}

// Append durably writes one transaction in the position granted by t and
// returns the transaction's number.
//
// The record is encoded before waiting for t's predecessor. Segment selection,
// the write and the sync happen after the wait, so records land in turn order
// and a new segment is always named after the record it starts with. Append
// does not release t; the caller does.
func (j *Journal) Append(tx []byte, executedAt time.Time, t *turn.Turn) (uint64, error) {
	frame, err := encodeFrame(Record{ExecutedAt: executedAt, Transaction: tx})
	if err != nil {
		return 0, err
	}

	j.mu.Lock()
	initialized := j.state != stateUninitialized
	j.mu.Unlock()
	if !initialized {
		return 0, ErrNotRecovered
	}

	t.WaitForPrevious()

	seq, ioErr, err := j.write(frame)
	if ioErr != nil {
		j.fail(ioErr)
		return 0, ErrHalted
	}
	return seq, err
}

// ioFailure describes a fatal I/O failure.
type ioFailure struct {
	action string
	file   string
	err    error
}

// write runs the critical section of Append. It returns an ioFailure for
// errors that must halt the journal and a plain error for everything else.
func (j *Journal) write(frame []byte) (uint64, *ioFailure, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	switch {
	case j.state == stateHalted:
		return 0, &ioFailure{action: "appending to", err: ErrHalted}, nil
	case j.closed:
		return 0, nil, ErrClosed
	}

	if !j.outputValid() {
		if f := j.rotate(); f != nil {
			j.state = stateHalted
			return 0, f, nil
		}
	}

	if err := j.out.write(frame); err != nil {
		j.state = stateHalted
		return 0, &ioFailure{action: "writing to", file: j.out.path, err: err}, nil
	}

	seq := j.next
	j.next++
	return seq, nil, nil
}

func (j *Journal) outputValid() bool {
	return j.out != nil && !j.outputTooBig() && !j.outputTooOld()
}

func (j *Journal) outputTooBig() bool {
	return j.sizeThreshold != 0 && j.out.size >= j.sizeThreshold
}

func (j *Journal) outputTooOld() bool {
	return j.ageThreshold != 0 && j.clock.Now().Sub(j.out.created) >= j.ageThreshold
}

// rotate closes the current output segment and starts one named after the
// next transaction.
func (j *Journal) rotate() *ioFailure {
	if j.out != nil {
		old := j.out
		j.out = nil
		if err := old.close(); err != nil {
			return &ioFailure{action: "closing", file: old.path, err: err}
		}
		j.logger.Debug("journal segment closed", "segment", old.path, "bytes", old.size)
	}

	path := j.segmentPath(j.next)
	seg, err := createSegment(path, j.clock.Now())
	if err != nil {
		return &ioFailure{action: "creating", file: path, err: err}
	}
	j.out = seg
	j.logger.Debug("journal segment created", "segment", path, "first", j.next)
	return nil
}

// fail reports a fatal failure and halts the calling goroutine.
func (j *Journal) fail(f *ioFailure) {
	if errors.Is(f.err, ErrHalted) {
		j.logger.Debug("append on halted journal blocked")
	} else {
		msg := "All transaction processing is now blocked. A problem was found while " + f.action + " a .journal file."
		j.monitor.Notify(fault.NewReport("journal", msg, f.file, f.err))
	}
	j.halt()
}

// blockForever parks the calling goroutine without consuming CPU.
func blockForever() {
	var never chan struct{}
	<-never
}

// Update replays journaled transactions numbered initialWanted and above to
// sub, then makes the journal ready to append after the last complete record.
//
// A repeated call must agree with the first one; disagreement means segments
// were deleted or edited by hand.
func (j *Journal) Update(sub Subscriber, initialWanted uint64) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	initial, err := j.findInitialSegment(initialWanted)
	if err != nil {
		return err
	}
	if initial == 0 {
		if err := j.checkNoOrphans(max(initialWanted, 1)); err != nil {
			return err
		}
		return j.initializeNext(initialWanted, 1)
	}

	next, err := j.recoverPending(sub, initialWanted, initial)
	if err != nil {
		return err
	}
	if err := j.checkNoOrphans(next); err != nil {
		return err
	}
	return j.initializeNext(initialWanted, next)
}

// findInitialSegment returns the highest segment number not above wanted, or
// zero when there is none.
func (j *Journal) findInitialSegment(wanted uint64) (uint64, error) {
	seqs, err := segmentNumbers(j.dir)
	if err != nil {
		return 0, err
	}
	var found uint64
	for _, seq := range seqs {
		if seq != 0 && seq <= wanted && seq > found {
			found = seq
		}
	}
	return found, nil
}

func (j *Journal) initializeNext(wanted, next uint64) error {
	if j.state != stateUninitialized {
		if j.next < wanted {
			return fmt.Errorf("%w: wanted %d, last logged transaction was %d", ErrNotReached, wanted, j.next-1)
		}
		if next < j.next {
			return fmt.Errorf("%w: unable to find segment containing transaction %d", ErrMissingSegment, next)
		}
		if next > j.next {
			return fmt.Errorf("%w: recovered up to %d but journal is at %d", ErrInconsistentRecovery, next, j.next)
		}
		return nil
	}

	j.state = stateReady
	j.next = max(wanted, next)
	j.logger.Info("journal recovered", "dir", j.dir, "next", j.next)
	return nil
}

// recoverPending reads segments from initial onward, delivering records from
// wanted onward, and returns the number after the last complete record.
func (j *Journal) recoverPending(sub Subscriber, wanted, initial uint64) (uint64, error) {
	seq := initial
	path := j.segmentPath(seq)

	for {
		if err := j.replaySegment(path, &seq, wanted, sub); err != nil {
			return 0, err
		}

		nextPath := j.segmentPath(seq)
		if nextPath == path {
			// The segment's first record never completed; free the name.
			if err := j.renameUnused(path); err != nil {
				return 0, err
			}
		}
		path = nextPath

		if _, err := os.Stat(path); err != nil {
			if os.IsNotExist(err) {
				break
			}
			return 0, fmt.Errorf("stat %s: %w", path, err)
		}
	}
	return seq, nil
}

// replaySegment delivers the complete records of one segment, advancing seq
// past each of them.
func (j *Journal) replaySegment(path string, seq *uint64, wanted uint64, sub Subscriber) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open segment: %w", err)
	}
	defer f.Close()

	r := NewReader(f)
	for {
		rec, err := r.Next()
		switch {
		case errors.Is(err, io.EOF):
			return nil
		case errors.Is(err, ErrTruncated):
			j.logger.Warn("journal segment ends with a partial record",
				"segment", path, "seq", *seq, "valid_bytes", r.Offset())
			return nil
		case err != nil:
			return fmt.Errorf("read %s at transaction %d: %w", path, *seq, err)
		}

		if *seq >= wanted {
			if err := sub.Receive(*seq, rec.Transaction, rec.ExecutedAt); err != nil {
				return fmt.Errorf("replay transaction %d: %w", *seq, err)
			}
		}
		*seq++
	}
}

func (j *Journal) renameUnused(path string) error {
	target := fmt.Sprintf("%s%s%d", path, unusedMarker, time.Now().UnixMilli())
	if err := os.Rename(path, target); err != nil {
		return fmt.Errorf("rename unused segment: %w", err)
	}
	j.logger.Warn("renamed journal segment without complete records", "segment", path, "renamed_to", target)
	return nil
}

// checkNoOrphans fails when a segment exists past the point where recovery
// stopped: the chain of segments has a gap.
func (j *Journal) checkNoOrphans(next uint64) error {
	seqs, err := segmentNumbers(j.dir)
	if err != nil {
		return err
	}
	for _, seq := range seqs {
		if seq > next {
			return fmt.Errorf("%w: segment %s is unreachable, recovery stopped at transaction %d",
				ErrInconsistentRecovery, SegmentName(seq), next)
		}
	}
	return nil
}

// Close syncs and closes the output segment. It is idempotent.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.closed = true
	if j.out == nil {
		return nil
	}
	out := j.out
	j.out = nil
	if err := out.close(); err != nil {
		return fmt.Errorf("close segment %s: %w", out.path, err)
	}
	return nil
}

// segmentNumbers lists the segment numbers present in dir, ascending.
func segmentNumbers(dir string) ([]uint64, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read journal directory: %w", err)
	}
	var seqs []uint64
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if seq, ok := ParseSegmentName(e.Name()); ok {
			seqs = append(seqs, seq)
		}
	}
	sort.Slice(seqs, func(a, b int) bool { return seqs[a] < seqs[b] })
	return seqs, nil
}
