package cli

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/prevail/internal/store"
)

// FaultsOptions holds flags for the faults command.
type FaultsOptions struct {
	*RootOptions
	Database string
	Limit    int
}

// FaultEntry is one recorded fault.
type FaultEntry struct {
	ID         string    `json:"id"`
	Component  string    `json:"component"`
	Message    string    `json:"message"`
	File       string    `json:"file,omitempty"`
	Cause      string    `json:"cause,omitempty"`
	ReportedAt time.Time `json:"reported_at"`
}

// NewFaultsCommand creates the faults command.
func NewFaultsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &FaultsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "faults",
		Short: "List faults recorded by the engine",
		Long: `List the fail-stop faults an engine recorded in its fault database
(the fault_db config setting), newest first.

Examples:
  prevail faults --db ./data/faults.db
  prevail faults --db ./data/faults.db --limit 5 --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFaults(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to the fault database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "maximum number of faults to list (0 = all)")

	return cmd
}

func runFaults(opts *FaultsOptions, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)

	// Opening creates the database; a typo in --db must not.
	if _, err := os.Stat(opts.Database); err != nil {
		return f.Fail(ExitCommandError, "E_NOT_FOUND", fmt.Sprintf("database not found: %s", opts.Database), err)
	}

	st, err := store.Open(opts.Database, store.WithLogger(opts.Logger()))
	if err != nil {
		return f.Fail(ExitCommandError, "E_STORE", "failed to open database", err)
	}
	defer st.Close()

	reports, err := st.ListFaults(cmd.Context(), opts.Limit)
	if err != nil {
		return f.Fail(ExitFailure, "E_STORE", "failed to list faults", err)
	}

	entries := make([]FaultEntry, 0, len(reports))
	for _, r := range reports {
		e := FaultEntry{
			ID:         r.ID,
			Component:  r.Component,
			Message:    r.Message,
			File:       r.File,
			ReportedAt: r.At,
		}
		if r.Cause != nil {
			e.Cause = r.Cause.Error()
		}
		entries = append(entries, e)
	}

	return f.Render(entries, func(w io.Writer) {
		if len(entries) == 0 {
			fmt.Fprintln(w, "No faults recorded.")
			return
		}
		for _, e := range entries {
			fmt.Fprintf(w, "%s  %s  %s\n", e.ReportedAt.Format(time.RFC3339), e.Component, e.Message)
			if e.File != "" {
				fmt.Fprintf(w, "    file:  %s\n", e.File)
			}
			if e.Cause != "" {
				fmt.Fprintf(w, "    cause: %s\n", e.Cause)
			}
		}
	})
}
