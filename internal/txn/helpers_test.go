package txn

import (
	"errors"
	"time"

	"github.com/roach88/prevail/internal/codec"
)

// appendingSystem is the prevalent state used throughout these tests.
type appendingSystem struct {
	Value string
}

// appendix appends its text to the system.
type appendix struct {
	Text string
}

func (a appendix) ExecuteOn(s *appendingSystem, _ time.Time) (any, error) {
	s.Value += a.Text
	return nil, nil
}

// appendAndRead appends and returns the resulting value.
type appendAndRead struct {
	Text string
}

func (a appendAndRead) ExecuteOn(s *appendingSystem, _ time.Time) (any, error) {
	s.Value += a.Text
	return s.Value, nil
}

var errRefused = errors.New("refused")

// refuse fails with a declared error without touching the state.
type refuse struct{}

func (refuse) ExecuteOn(*appendingSystem, time.Time) (any, error) {
	return nil, errRefused
}

// explode panics after mutating the state.
type explode struct {
	Rollback bool
}

func (e explode) ExecuteOn(s *appendingSystem, _ time.Time) (any, error) {
	s.Value += "!"
	panic("boom")
}

func (e explode) Journaling() Journaling {
	if e.Rollback {
		return RollbackOnUnrecoverable
	}
	return JournalAlways
}

// stamp records the execution time it was handed.
type stamp struct{}

func (stamp) ExecuteOn(s *appendingSystem, at time.Time) (any, error) {
	s.Value = at.Format(time.RFC3339)
	return at, nil
}

// notATransaction is registered but does not implement Transaction.
type notATransaction struct {
	X int
}

// unencodable cannot be encoded by msgpack.
type unencodable struct {
	C chan int
}

func (unencodable) ExecuteOn(*appendingSystem, time.Time) (any, error) {
	return nil, nil
}

func newTestRegistry() *codec.Registry {
	r := codec.NewRegistry()
	codec.MustRegister[appendix](r, "appendix")
	codec.MustRegister[appendAndRead](r, "append-and-read")
	codec.MustRegister[refuse](r, "refuse")
	codec.MustRegister[explode](r, "explode")
	codec.MustRegister[stamp](r, "stamp")
	codec.MustRegister[notATransaction](r, "not-a-transaction")
	codec.MustRegister[unencodable](r, "unencodable")
	return r
}
