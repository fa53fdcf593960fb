package cli

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/prevail/internal/codec"
	"github.com/roach88/prevail/internal/journal"
)

// JournalOptions holds flags for the journal commands.
type JournalOptions struct {
	*RootOptions
	Dir  string
	From uint64
}

// DumpEntry is one line of journal dump output.
type DumpEntry struct {
	Seq        uint64    `json:"seq"`
	ExecutedAt time.Time `json:"executed_at"`
	Type       string    `json:"type"`
	Bytes      int       `json:"bytes"`
	Segment    string    `json:"segment"`
}

// NewJournalCommand creates the journal command group.
func NewJournalCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &JournalOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Inspect journal segments",
		Long: `Inspect the journal directory of a prevalent system without modifying it.

Examples:
  prevail journal ls --dir ./data/journal
  prevail journal dump --dir ./data/journal --from 100
  prevail journal dump --dir ./data/journal --format json`,
	}
	cmd.PersistentFlags().StringVar(&opts.Dir, "dir", "", "journal directory (required)")
	_ = cmd.MarkPersistentFlagRequired("dir")

	ls := &cobra.Command{
		Use:   "ls",
		Short: "List segments with record counts and tail state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runJournalList(opts, cmd)
		},
	}

	dump := &cobra.Command{
		Use:   "dump",
		Short: "Print every record: sequence, time, transaction type and size",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runJournalDump(opts, cmd)
		},
	}
	dump.Flags().Uint64Var(&opts.From, "from", 1, "first transaction number to print")

	cmd.AddCommand(ls, dump)
	return cmd
}

func checkDir(f *OutputFormatter, dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		return f.Fail(ExitCommandError, "E_NOT_FOUND", fmt.Sprintf("directory not found: %s", dir), err)
	}
	if !info.IsDir() {
		return f.Fail(ExitCommandError, "E_NOT_FOUND", fmt.Sprintf("not a directory: %s", dir), nil)
	}
	return nil
}

func runJournalList(opts *JournalOptions, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)
	if err := checkDir(f, opts.Dir); err != nil {
		return err
	}

	segments, err := journal.Segments(opts.Dir)
	if err != nil {
		return f.Fail(ExitFailure, "E_JOURNAL", "failed to read journal", err)
	}

	return f.Render(segments, func(w io.Writer) {
		if len(segments) == 0 {
			fmt.Fprintln(w, "No segments.")
			return
		}
		fmt.Fprintf(w, "%-28s %20s %8s %12s  %s\n", "SEGMENT", "FIRST", "RECORDS", "BYTES", "TAIL")
		for _, s := range segments {
			fmt.Fprintf(w, "%-28s %20d %8d %12d  %s\n", s.Name, s.First, s.Records, s.Bytes, s.Tail)
		}
	})
}

func runJournalDump(opts *JournalOptions, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)
	if err := checkDir(f, opts.Dir); err != nil {
		return err
	}

	entries := []DumpEntry{}
	err := journal.Scan(opts.Dir, opts.From, func(e journal.Entry) error {
		name, err := codec.TypeName(e.Transaction)
		if err != nil {
			f.VerboseLog("record %d: %v", e.Seq, err)
			name = "?"
		}
		entries = append(entries, DumpEntry{
			Seq:        e.Seq,
			ExecutedAt: e.ExecutedAt,
			Type:       name,
			Bytes:      len(e.Transaction),
			Segment:    e.Segment,
		})
		return nil
	})
	if err != nil {
		return f.Fail(ExitFailure, "E_JOURNAL", "failed to read journal", err)
	}

	return f.Render(entries, func(w io.Writer) {
		for _, e := range entries {
			fmt.Fprintf(w, "%d\t%s\t%s\t%d\n", e.Seq, e.ExecutedAt.Format(time.RFC3339Nano), e.Type, e.Bytes)
		}
	})
}
