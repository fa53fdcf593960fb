package engine

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/prevail/internal/codec"
	"github.com/roach88/prevail/internal/config"
	"github.com/roach88/prevail/internal/testutil"
	"github.com/roach88/prevail/internal/txn"
)

// notebook is the prevalent system used by the engine tests.
type notebook struct {
	Lines  []string
	Stamps []int64 // executedAt of each line, Unix nanoseconds
}

func (n *notebook) add(text string, at time.Time) {
	n.Lines = append(n.Lines, text)
	n.Stamps = append(n.Stamps, at.UnixNano())
}

type addLine struct{ Text string }

func (a addLine) ExecuteOn(n *notebook, at time.Time) (any, error) {
	n.add(a.Text, at)
	return len(n.Lines), nil
}

var errRejected = errors.New("rejected")

// addThenFail changes the state and then declares an error.
type addThenFail struct{ Text string }

func (a addThenFail) ExecuteOn(n *notebook, at time.Time) (any, error) {
	n.add(a.Text, at)
	return nil, errRejected
}

// explode changes the state and then panics.
type explode struct {
	Text     string
	Rollback bool
}

func (e explode) ExecuteOn(n *notebook, at time.Time) (any, error) {
	n.add(e.Text, at)
	panic("exploded: " + e.Text)
}

func (e explode) Journaling() txn.Journaling {
	if e.Rollback {
		return txn.RollbackOnUnrecoverable
	}
	return txn.JournalAlways
}

type lineCount struct{}

func (lineCount) ExecuteOn(n *notebook, _ time.Time) (any, error) {
	return len(n.Lines), nil
}

type unencodable struct{ C chan int }

func (unencodable) ExecuteOn(*notebook, time.Time) (any, error) { return nil, nil }

func newTestRegistry() *codec.Registry {
	reg := codec.NewRegistry()
	codec.MustRegister[addLine](reg, "addLine")
	codec.MustRegister[addThenFail](reg, "addThenFail")
	codec.MustRegister[explode](reg, "explode")
	codec.MustRegister[lineCount](reg, "lineCount")
	codec.MustRegister[unencodable](reg, "unencodable")
	return reg
}

// testEnv is a data directory that engines can be opened and reopened on.
type testEnv struct {
	t     *testing.T
	cfg   config.Config
	reg   *codec.Registry
	clock *testutil.ManualClock
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return &testEnv{
		t:     t,
		cfg:   config.Default(t.TempDir()),
		reg:   newTestRegistry(),
		clock: testutil.NewManualClock(time.Time{}),
	}
}

func (env *testEnv) open(opts ...Option) *Engine[*notebook] {
	env.t.Helper()
	e, err := env.tryOpen(opts...)
	require.NoError(env.t, err)
	env.t.Cleanup(func() { e.Close() })
	return e
}

func (env *testEnv) tryOpen(opts ...Option) (*Engine[*notebook], error) {
	opts = append([]Option{WithClock(env.clock)}, opts...)
	return Open(&notebook{}, env.reg, env.cfg, opts...)
}

// reopen closes e and recovers a new engine from the same directories.
func (env *testEnv) reopen(e *Engine[*notebook], opts ...Option) *Engine[*notebook] {
	env.t.Helper()
	require.NoError(env.t, e.Close())
	return env.open(opts...)
}

func lines(t *testing.T, e *Engine[*notebook]) []string {
	t.Helper()
	var out []string
	require.NoError(t, e.Query(func(n *notebook) error {
		out = append([]string(nil), n.Lines...)
		return nil
	}))
	return out
}

func snapshotOf(t *testing.T, e *Engine[*notebook]) notebook {
	t.Helper()
	var out notebook
	require.NoError(t, e.Query(func(n *notebook) error {
		out.Lines = append([]string(nil), n.Lines...)
		out.Stamps = append([]int64(nil), n.Stamps...)
		return nil
	}))
	return out
}
