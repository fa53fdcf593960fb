package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/roach88/prevail/internal/snapshot"
)

// SnapshotOptions holds flags for the snapshot commands.
type SnapshotOptions struct {
	*RootOptions
	Dir    string
	Suffix string
}

// SnapshotInfo describes one snapshot file.
type SnapshotInfo struct {
	Version uint64 `json:"version"`
	File    string `json:"file"`
	Bytes   int64  `json:"bytes"`
}

// NewSnapshotCommand creates the snapshot command group.
func NewSnapshotCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SnapshotOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Inspect snapshots",
	}

	ls := &cobra.Command{
		Use:   "ls",
		Short: "List snapshot versions, oldest first",
		Long: `List the snapshots in a directory. Only files named
<19-digit version>.<suffix> are listed.

Examples:
  prevail snapshot ls --dir ./data/snapshots
  prevail snapshot ls --dir ./data/snapshots --suffix backup`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSnapshotList(opts, cmd)
		},
	}
	ls.Flags().StringVar(&opts.Dir, "dir", "", "snapshot directory (required)")
	_ = ls.MarkFlagRequired("dir")
	ls.Flags().StringVar(&opts.Suffix, "suffix", snapshot.DefaultSuffix, "snapshot file suffix")

	cmd.AddCommand(ls)
	return cmd
}

func runSnapshotList(opts *SnapshotOptions, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)
	if err := checkDir(f, opts.Dir); err != nil {
		return err
	}

	m, err := snapshot.NewManager(opts.Dir,
		snapshot.WithSuffix(opts.Suffix),
		snapshot.WithLogger(opts.Logger()),
	)
	if err != nil {
		return f.Fail(ExitCommandError, "E_SNAPSHOT", "invalid snapshot settings", err)
	}
	versions, err := m.Versions()
	if err != nil {
		return f.Fail(ExitFailure, "E_SNAPSHOT", "failed to list snapshots", err)
	}

	infos := make([]SnapshotInfo, 0, len(versions))
	for _, v := range versions {
		info := SnapshotInfo{Version: v, File: m.FileName(v)}
		if st, err := os.Stat(filepath.Join(m.Dir(), info.File)); err == nil {
			info.Bytes = st.Size()
		}
		infos = append(infos, info)
	}

	return f.Render(infos, func(w io.Writer) {
		if len(infos) == 0 {
			fmt.Fprintln(w, "No snapshots.")
			return
		}
		fmt.Fprintf(w, "%20s %12s  %s\n", "VERSION", "BYTES", "FILE")
		for _, s := range infos {
			fmt.Fprintf(w, "%20d %12d  %s\n", s.Version, s.Bytes, s.File)
		}
	})
}
