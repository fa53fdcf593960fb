package cli

import (
	"fmt"
	"io"
	"log/slog"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/roach88/prevail/internal/config"
	"github.com/roach88/prevail/internal/demo"
	"github.com/roach88/prevail/internal/engine"
	"github.com/roach88/prevail/internal/txn"
)

// LedgerOptions holds flags for the ledger commands.
type LedgerOptions struct {
	*RootOptions
	Config string
}

// LedgerResult is the outcome of a ledger command.
type LedgerResult struct {
	Balances map[string]int64 `json:"balances,omitempty"`
	Total    *int64           `json:"total,omitempty"`
	Version  uint64           `json:"version"`
	Snapshot *uint64          `json:"snapshot,omitempty"`
}

// NewLedgerCommand creates the ledger command group.
func NewLedgerCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LedgerOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "Run the demo ledger through the engine",
		Long: `Each ledger command recovers the ledger from the directories named in the
config file, executes one transaction, and closes the engine. Transactions
are journaled before the command reports success.

Examples:
  prevail ledger --config prevail.yaml open alice 100
  prevail ledger --config prevail.yaml transfer alice bob 30
  prevail ledger --config prevail.yaml balance
  prevail ledger --config prevail.yaml snapshot`,
	}
	cmd.PersistentFlags().StringVar(&opts.Config, "config", "", "config file, .yaml or .cue (required)")
	_ = cmd.MarkPersistentFlagRequired("config")

	cmd.AddCommand(
		ledgerTx(opts, "open NAME [INITIAL]", "Open an account", cobra.RangeArgs(1, 2),
			func(args []string) (ledgerCall, error) {
				var initial int64
				if len(args) == 2 {
					n, err := parseAmount(args[1])
					if err != nil {
						return ledgerCall{}, err
					}
					initial = n
				}
				return ledgerCall{demo.OpenAccount{Name: args[0], Initial: initial}, args[0]}, nil
			}),
		ledgerTx(opts, "deposit NAME AMOUNT", "Deposit into an account", cobra.ExactArgs(2),
			func(args []string) (ledgerCall, error) {
				n, err := parseAmount(args[1])
				return ledgerCall{demo.Deposit{Account: args[0], Amount: n}, args[0]}, err
			}),
		ledgerTx(opts, "withdraw NAME AMOUNT", "Withdraw from an account", cobra.ExactArgs(2),
			func(args []string) (ledgerCall, error) {
				n, err := parseAmount(args[1])
				return ledgerCall{demo.Withdraw{Account: args[0], Amount: n}, args[0]}, err
			}),
		ledgerTx(opts, "transfer FROM TO AMOUNT", "Move money between accounts", cobra.ExactArgs(3),
			func(args []string) (ledgerCall, error) {
				n, err := parseAmount(args[2])
				return ledgerCall{tx: demo.Transfer{From: args[0], To: args[1], Amount: n}}, err
			}),
		ledgerTx(opts, "audit NAME...", "Sum accounts and record the audit time", cobra.MinimumNArgs(1),
			func(args []string) (ledgerCall, error) {
				return ledgerCall{tx: demo.Audit{Accounts: args}}, nil
			}),
		&cobra.Command{
			Use:   "balance [NAME...]",
			Short: "Show balances",
			RunE: func(cmd *cobra.Command, args []string) error {
				return runLedger(opts, cmd, func(e *demo.Engine) (LedgerResult, error) {
					return balances(e, args)
				})
			},
		},
		&cobra.Command{
			Use:   "snapshot",
			Short: "Write a snapshot of the ledger",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return runLedger(opts, cmd, func(e *demo.Engine) (LedgerResult, error) {
					v, err := e.TakeSnapshot()
					if err != nil {
						return LedgerResult{}, err
					}
					return LedgerResult{Version: e.Version(), Snapshot: &v}, nil
				})
			},
		},
	)
	return cmd
}

// ledgerTx builds a subcommand that executes one ledger transaction.
func ledgerTx(opts *LedgerOptions, use, short string, args cobra.PositionalArgs, build func([]string) (ledgerCall, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  args,
		RunE: func(cmd *cobra.Command, args []string) error {
			call, err := build(args)
			if err != nil {
				return newFormatter(opts.RootOptions, cmd).Fail(ExitCommandError, "E_USAGE", "invalid arguments", err)
			}
			return runLedger(opts, cmd, func(e *demo.Engine) (LedgerResult, error) {
				return execute(e, call)
			})
		},
	}
}

func parseAmount(s string) (int64, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("amount %q is not an integer", s)
	}
	return n, nil
}

func runLedger(opts *LedgerOptions, cmd *cobra.Command, fn func(e *demo.Engine) (LedgerResult, error)) error {
	f := newFormatter(opts.RootOptions, cmd)

	cfg, err := config.Load(opts.Config)
	if err != nil {
		return f.Fail(ExitCommandError, "E_CONFIG", "failed to load config", err)
	}

	logger := opts.Logger()
	if !opts.Verbose {
		logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	}

	e, err := demo.Open(cfg, engine.WithLogger(logger))
	if err != nil {
		return f.Fail(ExitFailure, "E_RECOVERY", "failed to recover ledger", err)
	}
	defer e.Close()

	result, err := fn(e)
	if err != nil {
		return f.Fail(ExitFailure, "E_REJECTED", "transaction failed", err)
	}

	return f.Render(result, func(w io.Writer) {
		for _, name := range sortedNames(result.Balances) {
			fmt.Fprintf(w, "%s\t%d\n", name, result.Balances[name])
		}
		if result.Total != nil {
			fmt.Fprintf(w, "total\t%d\n", *result.Total)
		}
		if result.Snapshot != nil {
			if *result.Snapshot == 0 {
				fmt.Fprintln(w, "nothing journaled; no snapshot written")
			} else {
				fmt.Fprintf(w, "snapshot\t%d\n", *result.Snapshot)
			}
		}
		f.VerboseLog("version %d", result.Version)
	})
}

// ledgerCall is a transaction plus the account its scalar result belongs
// to. Without an account a scalar result is a total.
type ledgerCall struct {
	tx      txn.Transaction[*demo.Ledger]
	account string
}

func execute(e *demo.Engine, call ledgerCall) (LedgerResult, error) {
	out, err := e.Execute(call.tx)
	if err != nil {
		return LedgerResult{}, err
	}

	result := LedgerResult{Version: e.Version()}
	switch v := out.(type) {
	case demo.Balances:
		result.Balances = v
	case int64:
		if call.account != "" {
			result.Balances = map[string]int64{demo.Normalize(call.account): v}
		} else {
			result.Total = &v
		}
	}
	return result, nil
}

func balances(e *demo.Engine, names []string) (LedgerResult, error) {
	all, err := demo.Snapshot(e)
	if err != nil {
		return LedgerResult{}, err
	}
	result := LedgerResult{Version: e.Version(), Balances: all}
	if len(names) == 0 {
		return result, nil
	}

	result.Balances = map[string]int64{}
	for _, name := range names {
		key := demo.Normalize(name)
		b, ok := all[key]
		if !ok {
			return LedgerResult{}, fmt.Errorf("%w: %q", demo.ErrUnknownAccount, key)
		}
		result.Balances[key] = b
	}
	return result, nil
}

func sortedNames(m map[string]int64) []string {
	l := demo.Ledger{Accounts: m}
	return l.Names()
}
