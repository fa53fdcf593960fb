package harness

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"os"
	"sort"
	"time"

	"github.com/roach88/prevail/internal/config"
	"github.com/roach88/prevail/internal/demo"
	"github.com/roach88/prevail/internal/engine"
	"github.com/roach88/prevail/internal/testutil"
	"github.com/roach88/prevail/internal/txn"
)

// Harness drives one scenario against a ledger engine.
type Harness struct {
	cfg      config.Config
	clock    *testutil.ManualClock
	logger   *slog.Logger
	engine   *demo.Engine
	restarts int
}

// Run executes a scenario in a fresh temporary directory and returns the
// result. The directory is removed afterwards.
//
// Mismatches between the scenario's expectations and what happened are
// reported in Result.Errors; the returned error is reserved for failures of
// the harness itself, such as an engine that cannot be opened.
func Run(scenario *Scenario) (*Result, error) {
	dir, err := os.MkdirTemp("", "prevail-scenario-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create scenario directory: %w", err)
	}
	defer os.RemoveAll(dir)

	return RunIn(scenario, dir)
}

// RunIn executes a scenario with its journal and snapshots under dir. The
// clock starts at testutil.Epoch and moves only on advance steps.
func RunIn(scenario *Scenario, dir string) (*Result, error) {
	h := &Harness{
		cfg:    configFor(scenario, dir),
		clock:  testutil.NewManualClock(time.Time{}),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	if err := h.open(); err != nil {
		return nil, fmt.Errorf("failed to open engine: %w", err)
	}
	defer func() { h.engine.Close() }()

	result := NewResult()
	for i, step := range scenario.Steps {
		event, stepErr, err := h.execute(i, step)
		if err != nil {
			return nil, fmt.Errorf("step %d (%s): %w", i, step.Op, err)
		}
		result.AddTrace(event)
		if err := h.check(i, step, event, stepErr, result); err != nil {
			return nil, fmt.Errorf("step %d (%s): %w", i, step.Op, err)
		}
	}

	balances, err := demo.Snapshot(h.engine)
	if err != nil {
		return nil, fmt.Errorf("failed to read final balances: %w", err)
	}
	result.Balances = balances
	result.Version = h.engine.Version()
	result.Restarts = h.restarts

	if scenario.Balances != nil && !maps.Equal(scenario.Balances, result.Balances) {
		result.AddError(fmt.Sprintf("final balances: expected %s, got %s",
			formatBalances(scenario.Balances), formatBalances(result.Balances)))
	}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

func configFor(s *Scenario, dir string) config.Config {
	cfg := config.Default(dir)
	if s.Codec != "" {
		cfg.SnapshotCodec = s.Codec
	}
	if s.Compression != "" {
		cfg.SnapshotCompression = s.Compression
	}
	if s.SegmentBytes > 0 {
		cfg.JournalSizeThreshold = s.SegmentBytes
	}
	return cfg
}

func (h *Harness) open() error {
	e, err := demo.Open(h.cfg,
		engine.WithClock(h.clock),
		engine.WithLogger(h.logger),
	)
	if err != nil {
		return err
	}
	h.engine = e
	return nil
}

// execute runs one step. stepErr is the step's own outcome; err means the
// scenario cannot continue.
func (h *Harness) execute(index int, step Step) (event TraceEvent, stepErr error, err error) {
	event = TraceEvent{Step: index, Op: step.Op}

	var result any
	switch step.Op {
	case OpOpen:
		event.Args = map[string]any{"account": step.Account, "amount": step.Amount}
		result, stepErr = h.engine.Execute(demo.OpenAccount{Name: step.Account, Initial: step.Amount})
	case OpDeposit:
		event.Args = map[string]any{"account": step.Account, "amount": step.Amount}
		result, stepErr = h.engine.Execute(demo.Deposit{Account: step.Account, Amount: step.Amount})
	case OpWithdraw:
		event.Args = map[string]any{"account": step.Account, "amount": step.Amount}
		result, stepErr = h.engine.Execute(demo.Withdraw{Account: step.Account, Amount: step.Amount})
	case OpTransfer:
		event.Args = map[string]any{"from": step.From, "to": step.To, "amount": step.Amount}
		result, stepErr = h.engine.Execute(demo.Transfer{From: step.From, To: step.To, Amount: step.Amount})
	case OpAudit:
		event.Args = map[string]any{"accounts": step.Accounts}
		result, stepErr = h.engine.Execute(demo.Audit{Accounts: step.Accounts})
	case OpAdvance:
		d, perr := time.ParseDuration(step.By)
		if perr != nil {
			return event, nil, perr
		}
		event.Args = map[string]any{"by": step.By}
		result = h.clock.Advance(d).Format(time.RFC3339)
	case OpSnapshot:
		result, stepErr = h.engine.TakeSnapshot()
	case OpRestart:
		if err := h.engine.Close(); err != nil {
			return event, nil, fmt.Errorf("close before restart: %w", err)
		}
		if err := h.open(); err != nil {
			return event, nil, fmt.Errorf("recover: %w", err)
		}
		h.restarts++
	default:
		return event, nil, fmt.Errorf("unknown op %q", step.Op)
	}

	event.Outcome = outcomeOf(stepErr)
	if stepErr == nil {
		event.Result = result
	}
	event.Version = h.engine.Version()

	h.logger.Debug("scenario step executed",
		"step", index,
		"op", step.Op,
		"outcome", event.Outcome,
		"version", event.Version,
	)
	return event, stepErr, nil
}

// check compares a step's outcome with its expectation.
func (h *Harness) check(index int, step Step, event TraceEvent, stepErr error, result *Result) error {
	want := OutcomeOK
	if step.Expect != nil && step.Expect.Error != "" {
		want = step.Expect.Error
	}
	if event.Outcome != want {
		msg := fmt.Sprintf("steps[%d] %s: expected outcome %s, got %s", index, step.Op, want, event.Outcome)
		if stepErr != nil {
			msg += fmt.Sprintf(" (%v)", stepErr)
		}
		result.AddError(msg)
	}
	if step.Expect == nil {
		return nil
	}

	if step.Expect.Version != nil && *step.Expect.Version != event.Version {
		result.AddError(fmt.Sprintf("steps[%d] %s: expected version %d, got %d",
			index, step.Op, *step.Expect.Version, event.Version))
	}

	if len(step.Expect.Balances) > 0 {
		balances, err := demo.Snapshot(h.engine)
		if err != nil {
			return err
		}
		for _, name := range sortedKeys(step.Expect.Balances) {
			want := step.Expect.Balances[name]
			got, ok := balances[demo.Normalize(name)]
			switch {
			case !ok:
				result.AddError(fmt.Sprintf("steps[%d] %s: account %q does not exist", index, step.Op, name))
			case got != want:
				result.AddError(fmt.Sprintf("steps[%d] %s: balance of %q: expected %d, got %d",
					index, step.Op, name, want, got))
			}
		}
	}
	return nil
}

// outcomeOf maps a step error to its outcome code.
func outcomeOf(err error) string {
	var unrecoverable *txn.UnrecoverableError
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, engine.ErrVetoed):
		return OutcomeVetoed
	case errors.As(err, &unrecoverable):
		return OutcomeUnrecoverable
	case errors.Is(err, demo.ErrInvalidName):
		return OutcomeInvalidName
	case errors.Is(err, demo.ErrInvalidAmount):
		return OutcomeInvalidAmount
	case errors.Is(err, demo.ErrAccountExists):
		return OutcomeAccountExists
	case errors.Is(err, demo.ErrUnknownAccount):
		return OutcomeUnknownAccount
	case errors.Is(err, demo.ErrInsufficientFunds):
		return OutcomeInsufficientFunds
	default:
		return OutcomeFailed
	}
}

func sortedKeys(m map[string]int64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func formatBalances(m map[string]int64) string {
	out := "{"
	for i, name := range sortedKeys(m) {
		if i > 0 {
			out += ", "
		}
		out += fmt.Sprintf("%s: %d", name, m[name])
	}
	return out + "}"
}
