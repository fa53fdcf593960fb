package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/prevail/internal/config"
)

func startRun(t *testing.T, e *Engine[*notebook], ctx context.Context) <-chan error {
	t.Helper()
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()
	return done
}

func waitRun(t *testing.T, done <-chan error) error {
	t.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return")
		return nil
	}
}

func TestRun_ServesSnapshotRequests(t *testing.T) {
	env := newTestEnv(t)
	e := env.open()
	_, err := e.Execute(addLine{Text: "a"})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := startRun(t, e, ctx)

	select {
	case res := <-e.RequestSnapshot():
		require.NoError(t, res.Err)
		assert.Equal(t, uint64(1), res.Version)
	case <-time.After(5 * time.Second):
		t.Fatal("snapshot request not served")
	}

	cancel()
	assert.True(t, errors.Is(waitRun(t, done), context.Canceled))
}

func TestRun_StopsOnClose(t *testing.T) {
	e := newTestEnv(t).open()
	done := startRun(t, e, context.Background())

	require.NoError(t, e.Close())
	assert.NoError(t, waitRun(t, done))

	res := <-e.RequestSnapshot()
	assert.ErrorIs(t, res.Err, ErrClosed)
}

func TestRun_PeriodicSnapshots(t *testing.T) {
	env := newTestEnv(t)
	env.cfg.SnapshotInterval = config.Duration(10 * time.Millisecond)
	e := env.open()
	_, err := e.Execute(addLine{Text: "a"})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := startRun(t, e, ctx)
	defer func() {
		cancel()
		waitRun(t, done)
	}()

	assert.Eventually(t, func() bool {
		latest, err := e.snapshots.LatestVersion()
		return err == nil && latest == 1
	}, 5*time.Second, 10*time.Millisecond)
}
