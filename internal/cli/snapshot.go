package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/roach88/gqlcache/internal/gql"
	"github.com/roach88/gqlcache/internal/store"
)

// SnapshotOptions holds flags for the snapshot commands.
type SnapshotOptions struct {
	*RootOptions
	Database string
}

// SnapshotDetail is the JSON payload of snapshot show.
type SnapshotDetail struct {
	Snapshot store.Snapshot `json:"snapshot"`
	Cache    gql.Cache      `json:"cache"`
}

// NewSnapshotCommand creates the snapshot command group.
func NewSnapshotCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SnapshotOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Inspect stored hydration snapshots",
		Long: `Inspect hydration snapshots written by render --db.

Examples:
  gqlcache snapshot list --db ./snapshots.db
  gqlcache snapshot show <id> --db ./snapshots.db
  gqlcache snapshot delete <id> --db ./snapshots.db`,
	}

	cmd.PersistentFlags().StringVar(&opts.Database, "db", "", "path to SQLite database (default from config)")

	cmd.AddCommand(&cobra.Command{
		Use:           "list",
		Short:         "List snapshots in write order",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSnapshotList(opts, cmd)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:           "show <id>",
		Short:         "Show the entries of a snapshot",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSnapshotShow(opts, args[0], cmd)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:           "delete <id>",
		Short:         "Delete a snapshot",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSnapshotDelete(opts, args[0], cmd)
		},
	})

	return cmd
}

func (o *SnapshotOptions) open() (*store.Store, error) {
	db := firstNonEmpty(o.Database, o.Config.SnapshotDB)
	if db == "" {
		return nil, NewExitError(ExitCommandError, "no database: pass --db or set snapshot_db in the config")
	}
	st, err := store.Open(db)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	return st, nil
}

func runSnapshotList(opts *SnapshotOptions, cmd *cobra.Command) error {
	out := NewFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	st, err := opts.open()
	if err != nil {
		return err
	}
	defer st.Close()

	snaps, err := st.ListSnapshots(cmd.Context())
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list snapshots", err)
	}

	if out.JSON() {
		return out.Success(snaps)
	}
	if len(snaps) == 0 {
		fmt.Fprintln(out.Writer, "No snapshots.")
		return nil
	}

	tw := tabwriter.NewWriter(out.Writer, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tLABEL\tENTRIES\tSIZE\tCREATED")
	for _, s := range snaps {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n",
			s.ID, s.Label, s.Entries, humanize.Bytes(uint64(s.Bytes)), humanize.Time(s.CreatedAt))
	}
	return tw.Flush()
}

func runSnapshotShow(opts *SnapshotOptions, id string, cmd *cobra.Command) error {
	out := NewFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())
	ctx := cmd.Context()

	st, err := opts.open()
	if err != nil {
		return err
	}
	defer st.Close()

	snap, err := st.GetSnapshot(ctx, id)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read snapshot", err)
	}
	cache, err := st.ReadSnapshot(ctx, id)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read snapshot", err)
	}

	if out.JSON() {
		return out.Success(SnapshotDetail{Snapshot: snap, Cache: cache})
	}

	fmt.Fprintf(out.Writer, "snapshot %s (%s), %d entries, %s, %s\n",
		snap.ID, snap.Label, snap.Entries, humanize.Bytes(uint64(snap.Bytes)), humanize.Time(snap.CreatedAt))
	for _, fp := range cache.Keys() {
		lines := cache[fp].ErrorLines()
		if len(lines) == 0 {
			fmt.Fprintf(out.Writer, "  %s  ok\n", fp)
			continue
		}
		for _, l := range lines {
			fmt.Fprintf(out.Writer, "  %s  %s\n", fp, l)
		}
	}
	return nil
}

func runSnapshotDelete(opts *SnapshotOptions, id string, cmd *cobra.Command) error {
	out := NewFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	st, err := opts.open()
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.DeleteSnapshot(cmd.Context(), id); err != nil {
		return WrapExitError(ExitCommandError, "failed to delete snapshot", err)
	}

	if out.JSON() {
		return out.Success(map[string]string{"deleted": id})
	}
	fmt.Fprintf(out.Writer, "Deleted snapshot %s\n", id)
	return nil
}
