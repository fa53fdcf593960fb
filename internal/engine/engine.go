package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/roach88/prevail/internal/censor"
	"github.com/roach88/prevail/internal/clock"
	"github.com/roach88/prevail/internal/codec"
	"github.com/roach88/prevail/internal/config"
	"github.com/roach88/prevail/internal/fault"
	"github.com/roach88/prevail/internal/journal"
	"github.com/roach88/prevail/internal/snapshot"
	"github.com/roach88/prevail/internal/store"
	"github.com/roach88/prevail/internal/turn"
	"github.com/roach88/prevail/internal/txn"
)

// Engine holds a prevalent system of type S.
//
// Thread-safety model:
//   - Execute, Query, TakeSnapshot, RequestSnapshot: safe from any goroutine
//   - Run: at most one goroutine at a time
//   - Close: once, after submissions have stopped
//
// INVARIANTS:
//   - transactions are applied and journaled in turn order
//   - a transaction is on disk before any reader can observe its effect
//   - replay never consults the censor
type Engine[S any] struct {
	cfg       config.Config
	registry  *codec.Registry
	censor    censor.Censor
	clock     clock.Clock
	monitor   fault.Monitor
	logger    *slog.Logger
	journal   *journal.Journal
	snapshots *snapshot.Manager
	faults    *store.Store // owned; nil unless cfg.FaultDB is set

	turns    *turn.Issuer
	requests *requestQueue
	closed   atomic.Bool

	mu    sync.RWMutex // guards state
	state S
}

type options struct {
	censor    censor.Censor
	clock     clock.Clock
	monitor   fault.Monitor
	logger    *slog.Logger
	journal   *journal.Journal
	snapshots *snapshot.Manager
	halt      func()
}

// Option configures an Engine.
type Option func(*options)

// WithCensor sets the censor. The default is censor.Liberal.
func WithCensor(c censor.Censor) Option {
	return func(o *options) { o.censor = c }
}

// WithClock sets the clock that stamps transactions and ages journal
// segments.
func WithClock(c clock.Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithMonitor sets the fault sink. It replaces the default log monitor and
// the fault database named in the config.
func WithMonitor(m fault.Monitor) Option {
	return func(o *options) { o.monitor = m }
}

// WithLogger sets the logger for the engine and the components it builds.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithJournal uses j instead of opening one from the config. The engine
// still runs recovery on it and closes it on Close.
func WithJournal(j *journal.Journal) Option {
	return func(o *options) { o.journal = j }
}

// WithSnapshotManager uses m instead of building one from the config.
func WithSnapshotManager(m *snapshot.Manager) Option {
	return func(o *options) { o.snapshots = m }
}

// WithHalt replaces the journal's fail-stop hang. Only used by tests; it has
// no effect together with WithJournal.
func WithHalt(halt func()) Option {
	return func(o *options) { o.halt = halt }
}

// Open recovers the prevalent system from cfg's directories and returns an
// engine ready to accept transactions. initial is the state used when no
// snapshot exists; reg must know every transaction type that may be
// journaled.
func Open[S any](initial S, reg *codec.Registry, cfg config.Config, opts ...Option) (*Engine[S], error) {
	if reg == nil {
		return nil, errors.New("engine: nil registry")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	e := &Engine[S]{
		cfg:      cfg,
		registry: reg,
		censor:   o.censor,
		clock:    o.clock,
		monitor:  o.monitor,
		logger:   o.logger,
		requests: newRequestQueue(),
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	if e.censor == nil {
		e.censor = censor.Liberal{}
	}
	if e.clock == nil {
		e.clock = clock.System{}
	}
	if e.monitor == nil {
		e.monitor = fault.Log{Logger: e.logger}
		if cfg.FaultDB != "" {
			faults, err := store.Open(cfg.FaultDB, store.WithLogger(e.logger))
			if err != nil {
				return nil, fmt.Errorf("open fault database: %w", err)
			}
			e.faults = faults
			e.monitor = fault.Multi{e.monitor, faults}
		}
	}

	if err := e.openComponents(o); err != nil {
		e.closeComponents()
		return nil, err
	}
	if err := e.recover(initial); err != nil {
		e.closeComponents()
		return nil, err
	}

	e.turns = turn.NewIssuer(1)
	return e, nil
}

func (e *Engine[S]) openComponents(o options) error {
	e.snapshots = o.snapshots
	if e.snapshots == nil {
		serializer, err := e.cfg.Serializer()
		if err != nil {
			return err
		}
		e.snapshots, err = snapshot.NewManager(e.cfg.SnapshotDir,
			snapshot.WithSuffix(e.cfg.SnapshotSuffix),
			snapshot.WithSerializer(serializer),
			snapshot.WithLogger(e.logger),
		)
		if err != nil {
			return err
		}
	}

	e.journal = o.journal
	if e.journal == nil {
		jopts := []journal.Option{
			journal.WithSizeThreshold(e.cfg.JournalSizeThreshold),
			journal.WithAgeThreshold(e.cfg.JournalAgeThreshold.Std()),
			journal.WithClock(e.clock),
			journal.WithMonitor(e.monitor),
			journal.WithLogger(e.logger),
		}
		if o.halt != nil {
			jopts = append(jopts, journal.WithHalt(o.halt))
		}
		j, err := journal.Open(e.cfg.JournalDir, jopts...)
		if err != nil {
			return err
		}
		e.journal = j
	}
	return nil
}

// recover loads the latest snapshot and replays the journal after it.
func (e *Engine[S]) recover(initial S) error {
	start := time.Now()

	version, err := e.snapshots.LatestVersion()
	if err != nil {
		return &RecoveryError{Code: ErrCodeSnapshotUnreadable, Message: "cannot list snapshots", Err: err}
	}
	state, err := snapshot.Load(e.snapshots, initial, version)
	if err != nil {
		return &RecoveryError{Code: ErrCodeSnapshotUnreadable, Message: "cannot load snapshot", Version: version, Err: err}
	}
	e.state = state

	var replayed int
	sub := journal.SubscriberFunc(func(seq uint64, tx []byte, executedAt time.Time) error {
		replayed++
		return e.Receive(seq, tx, executedAt)
	})
	if err := e.journal.Update(sub, version+1); err != nil {
		code := ErrCodeJournalUnreadable
		if errors.Is(err, txn.ErrNotDeserializable) {
			code = ErrCodeTransactionUndecodable
		}
		return &RecoveryError{Code: code, Message: "cannot replay journal", Version: version, Err: err}
	}

	e.logger.Info("prevalent system recovered",
		"snapshot_version", version,
		"replayed", replayed,
		"next_transaction", e.journal.NextTransaction(),
		"duration", time.Since(start),
	)
	return nil
}

// Receive applies one recovered transaction. It implements
// journal.Subscriber.
func (e *Engine[S]) Receive(seq uint64, tx []byte, executedAt time.Time) error {
	capsule := txn.FromBytes[S](tx)

	e.mu.Lock()
	err := capsule.Execute(e.state, executedAt, e.registry)
	e.mu.Unlock()
	if err != nil {
		return err
	}

	if _, txErr := capsule.Result(); txErr != nil {
		e.logger.Debug("replayed transaction failed as it did originally",
			"seq", seq,
			"unrecoverable", txn.IsUnrecoverable(txErr),
			"error", txErr,
		)
	}
	return nil
}

// Execute runs tx against the prevalent system and returns its result.
//
// The transaction's own error is returned as is. A transaction that panicked
// returns a *txn.UnrecoverableError; it is still journaled unless it asked
// for rollback and the censor refuses it.
func (e *Engine[S]) Execute(tx txn.Transaction[S]) (any, error) {
	if e.closed.Load() {
		return nil, ErrClosed
	}

	t := e.turns.Issue()
	defer t.SignalDone()

	capsule, err := txn.NewCapsule(tx, e.registry)
	if err != nil {
		return nil, err
	}

	t.WaitForPrevious()

	e.mu.Lock()
	defer e.mu.Unlock()

	executedAt := e.clock.Now()
	if err := capsule.Execute(e.state, executedAt, e.registry); err != nil {
		return nil, err
	}

	approved, err := e.censor.Approve(capsule)
	if err != nil {
		e.logger.Warn("censor failed", "turn", t.Seq(), "error", err)
		return nil, err
	}
	result, txErr := capsule.Result()
	if !approved {
		e.logger.Debug("transaction vetoed", "turn", t.Seq(), "error", txErr)
		if txErr != nil {
			return nil, fmt.Errorf("%w: %w", ErrVetoed, txErr)
		}
		return nil, ErrVetoed
	}
	if capsule.RequiresRollback() {
		e.logger.Debug("transaction kept out of journal", "turn", t.Seq(), "error", txErr)
		return result, txErr
	}

	seq, err := e.journal.Append(capsule.Serialized(), executedAt, t)
	if err != nil {
		return nil, err
	}
	e.logger.Debug("transaction journaled", "seq", seq, "turn", t.Seq())
	return result, txErr
}

// ExecuteQuery runs tx and converts its result to R.
func ExecuteQuery[S, R any](e *Engine[S], tx txn.Transaction[S]) (R, error) {
	return txn.As[R](e.Execute(tx))
}

// Query runs fn with read access to the prevalent system. fn must not
// modify the state or retain references into it.
func (e *Engine[S]) Query(fn func(state S) error) error {
	if e.closed.Load() {
		return ErrClosed
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	return fn(e.state)
}

// Version returns the number of the last journaled transaction.
func (e *Engine[S]) Version() uint64 {
	return e.journal.NextTransaction() - 1
}

// Close stops Run, then closes the journal and the fault database.
func (e *Engine[S]) Close() error {
	if !e.closed.CompareAndSwap(false, true) {
		return nil
	}
	e.requests.Close()
	return e.closeComponents()
}

func (e *Engine[S]) closeComponents() error {
	var errs []error
	if e.journal != nil {
		errs = append(errs, e.journal.Close())
	}
	if e.faults != nil {
		errs = append(errs, e.faults.Close())
	}
	return errors.Join(errs...)
}
