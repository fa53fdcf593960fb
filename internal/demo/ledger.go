package demo

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/prevail/internal/codec"
	"github.com/roach88/prevail/internal/txn"
)

var (
	ErrInvalidName       = errors.New("account name must not be empty")
	ErrInvalidAmount     = errors.New("amount must be positive")
	ErrAccountExists     = errors.New("account already exists")
	ErrUnknownAccount    = errors.New("unknown account")
	ErrInsufficientFunds = errors.New("insufficient funds")
)

// Ledger is the prevalent system: balances in minor currency units.
type Ledger struct {
	Accounts  map[string]int64 `msgpack:"accounts" json:"accounts"`
	LastAudit int64            `msgpack:"last_audit" json:"last_audit"` // Unix nanoseconds
}

// NewLedger returns an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{Accounts: make(map[string]int64)}
}

// Names returns the account names in sorted order.
func (l *Ledger) Names() []string {
	names := make([]string, 0, len(l.Accounts))
	for name := range l.Accounts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Normalize returns the canonical form of an account name.
func Normalize(name string) string {
	return norm.NFC.String(strings.TrimSpace(name))
}

func (l *Ledger) account(name string) (string, error) {
	key := Normalize(name)
	if key == "" {
		return "", ErrInvalidName
	}
	if _, ok := l.Accounts[key]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownAccount, key)
	}
	return key, nil
}

func checkAmount(amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidAmount, amount)
	}
	return nil
}

// checkCredit rejects an amount that would overflow the account's balance.
func (l *Ledger) checkCredit(key string, amount int64) error {
	if l.Accounts[key] > math.MaxInt64-amount {
		return fmt.Errorf("%w: crediting %d to %q overflows its balance", ErrInvalidAmount, amount, key)
	}
	return nil
}

// OpenAccount creates an account with an optional opening balance.
type OpenAccount struct {
	Name    string `msgpack:"name"`
	Initial int64  `msgpack:"initial"`
}

func (o OpenAccount) ExecuteOn(l *Ledger, _ time.Time) (any, error) {
	key := Normalize(o.Name)
	if key == "" {
		return nil, ErrInvalidName
	}
	if o.Initial < 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidAmount, o.Initial)
	}
	if _, ok := l.Accounts[key]; ok {
		return nil, fmt.Errorf("%w: %q", ErrAccountExists, key)
	}
	if l.Accounts == nil {
		l.Accounts = make(map[string]int64)
	}
	l.Accounts[key] = o.Initial
	return o.Initial, nil
}

// Deposit adds to an account and returns the new balance.
type Deposit struct {
	Account string `msgpack:"account"`
	Amount  int64  `msgpack:"amount"`
}

func (d Deposit) ExecuteOn(l *Ledger, _ time.Time) (any, error) {
	if err := checkAmount(d.Amount); err != nil {
		return nil, err
	}
	key, err := l.account(d.Account)
	if err != nil {
		return nil, err
	}
	if err := l.checkCredit(key, d.Amount); err != nil {
		return nil, err
	}
	l.Accounts[key] += d.Amount
	return l.Accounts[key], nil
}

// Withdraw takes from an account and returns the new balance.
type Withdraw struct {
	Account string `msgpack:"account"`
	Amount  int64  `msgpack:"amount"`
}

func (w Withdraw) ExecuteOn(l *Ledger, _ time.Time) (any, error) {
	if err := checkAmount(w.Amount); err != nil {
		return nil, err
	}
	key, err := l.account(w.Account)
	if err != nil {
		return nil, err
	}
	if l.Accounts[key] < w.Amount {
		return nil, fmt.Errorf("%w: %q has %d, needs %d", ErrInsufficientFunds, key, l.Accounts[key], w.Amount)
	}
	l.Accounts[key] -= w.Amount
	return l.Accounts[key], nil
}

// Balances maps account names to balances.
type Balances map[string]int64

// Transfer moves money between two accounts and returns both balances. It
// changes nothing unless it succeeds.
type Transfer struct {
	From   string `msgpack:"from"`
	To     string `msgpack:"to"`
	Amount int64  `msgpack:"amount"`
}

func (t Transfer) ExecuteOn(l *Ledger, _ time.Time) (any, error) {
	if err := checkAmount(t.Amount); err != nil {
		return nil, err
	}
	from, err := l.account(t.From)
	if err != nil {
		return nil, err
	}
	to, err := l.account(t.To)
	if err != nil {
		return nil, err
	}
	if l.Accounts[from] < t.Amount {
		return nil, fmt.Errorf("%w: %q has %d, needs %d", ErrInsufficientFunds, from, l.Accounts[from], t.Amount)
	}
	if from != to {
		if err := l.checkCredit(to, t.Amount); err != nil {
			return nil, err
		}
	}
	l.Accounts[from] -= t.Amount
	l.Accounts[to] += t.Amount
	return Balances{from: l.Accounts[from], to: l.Accounts[to]}, nil
}

// Audit sums the named accounts and records when it ran. An unknown
// account is a programming error and panics; the transaction opts into
// rollback so a strict censor keeps such audits out of the journal.
type Audit struct {
	Accounts []string `msgpack:"accounts"`
}

func (a Audit) ExecuteOn(l *Ledger, executedAt time.Time) (any, error) {
	var total int64
	for _, name := range a.Accounts {
		balance, ok := l.Accounts[Normalize(name)]
		if !ok {
			panic(fmt.Sprintf("audit of unknown account %q", name))
		}
		total += balance
	}
	l.LastAudit = executedAt.UnixNano()
	return total, nil
}

// Journaling implements txn.JournalingPolicy.
func (Audit) Journaling() txn.Journaling {
	return txn.RollbackOnUnrecoverable
}

// NewRegistry returns a registry holding every ledger transaction.
func NewRegistry() *codec.Registry {
	reg := codec.NewRegistry()
	codec.MustRegister[OpenAccount](reg, "ledger.OpenAccount")
	codec.MustRegister[Deposit](reg, "ledger.Deposit")
	codec.MustRegister[Withdraw](reg, "ledger.Withdraw")
	codec.MustRegister[Transfer](reg, "ledger.Transfer")
	codec.MustRegister[Audit](reg, "ledger.Audit")
	return reg
}
