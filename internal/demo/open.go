package demo

import (
	"github.com/roach88/prevail/internal/censor"
	"github.com/roach88/prevail/internal/config"
	"github.com/roach88/prevail/internal/engine"
)

// Engine is a prevalence engine holding a Ledger.
type Engine = engine.Engine[*Ledger]

// Open recovers a ledger from cfg. The strict censor is installed first so
// callers may still replace it.
func Open(cfg config.Config, opts ...engine.Option) (*Engine, error) {
	opts = append([]engine.Option{engine.WithCensor(censor.Strict{})}, opts...)
	return engine.Open(NewLedger(), NewRegistry(), cfg, opts...)
}

// Snapshot copies the balances out of the engine.
func Snapshot(e *Engine) (Balances, error) {
	out := Balances{}
	err := e.Query(func(l *Ledger) error {
		for name, balance := range l.Accounts {
			out[name] = balance
		}
		return nil
	})
	return out, err
}
