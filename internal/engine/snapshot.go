package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/roach88/prevail/internal/fault"
)

// TakeSnapshot writes the current state as a snapshot and returns its
// version, the number of the last journaled transaction.
//
// The snapshot holds a turn while it encodes the state, so it sits between
// two transactions in the global order. The file is written after the turn
// is released. With nothing journaled yet there is nothing to snapshot and
// the version returned is zero.
func (e *Engine[S]) TakeSnapshot() (uint64, error) {
	if e.closed.Load() {
		return 0, ErrClosed
	}

	version, data, err := e.encodeState()
	if err != nil {
		return 0, err
	}
	if version == 0 {
		e.logger.Debug("snapshot skipped: nothing journaled")
		return 0, nil
	}

	path, err := e.snapshots.WriteEncoded(data, version)
	if err != nil {
		e.monitor.Notify(fault.NewReport("snapshot",
			"Unable to write a snapshot. Recovery will replay the journal from the previous snapshot.",
			e.snapshots.FileName(version), err))
		return 0, fmt.Errorf("write snapshot %d: %w", version, err)
	}
	e.logger.Debug("snapshot taken", "version", version, "file", path)
	return version, nil
}

func (e *Engine[S]) encodeState() (uint64, []byte, error) {
	t := e.turns.Issue()
	defer t.SignalDone()
	t.WaitForPrevious()

	e.mu.RLock()
	defer e.mu.RUnlock()

	version := e.journal.NextTransaction() - 1
	if version == 0 {
		return 0, nil, nil
	}
	data, err := e.snapshots.Encode(e.state)
	if err != nil {
		return 0, nil, fmt.Errorf("encode snapshot %d: %w", version, err)
	}
	return version, data, nil
}

// RequestSnapshot asks the Run loop to take a snapshot. The result arrives
// on the returned channel once Run has served the request; without a running
// Run loop it arrives only when the engine is closed.
func (e *Engine[S]) RequestSnapshot() <-chan SnapshotResult {
	reply := make(chan SnapshotResult, 1)
	if !e.requests.Enqueue(snapshotRequest{reply: reply}) {
		reply <- SnapshotResult{Err: ErrClosed}
	}
	return reply
}

// Run serves snapshot requests and, when the config sets a snapshot
// interval, takes periodic snapshots. It blocks until ctx is cancelled or the
// engine is closed.
//
// A failed periodic snapshot is logged and retried at the next tick.
func (e *Engine[S]) Run(ctx context.Context) error {
	interval := e.cfg.SnapshotInterval.Std()
	e.logger.Info("engine running", "snapshot_interval", interval)

	var tick <-chan time.Time
	if interval > 0 {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		if req, ok := e.requests.TryDequeue(); ok {
			version, err := e.TakeSnapshot()
			req.reply <- SnapshotResult{Version: version, Err: err}
			continue
		}

		select {
		case <-ctx.Done():
			e.logger.Info("engine stopping: context cancelled")
			return ctx.Err()

		case <-tick:
			if _, err := e.TakeSnapshot(); err != nil {
				e.logger.Error("periodic snapshot failed", "error", err)
			}

		case <-e.requests.Wait():
			if e.requests.Drained() {
				e.logger.Info("engine stopping: closed")
				return nil
			}
		}
	}
}
