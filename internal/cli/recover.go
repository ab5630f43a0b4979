package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"showroom/internal/restore"
)

// RecoverOptions holds flags for the recover command.
type RecoverOptions struct {
	*RootOptions
	ChangelogSource string
	ManifestSource  string
}

// NewRecoverCommand creates the recover command.
func NewRecoverCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RecoverOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "recover",
		Short: "Rebuild the stored selection from the latest checkpoint and changelog",
		Long: `Rebuild the stored selection: load the snapshot named by the latest manifest,
replay the changelog recorded after it, and save the result to the state
backend. Without a manifest the whole changelog is replayed.

Examples:
  showroom recover
  showroom recover --changelog-source kafka --manifest-source kafka`,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp(opts.RootOptions)
			if err != nil {
				return err
			}
			defer app.Close()

			src, err := app.ChangelogSource(opts.ChangelogSource)
			if err != nil {
				return WrapExitError(ExitCommandError, "changelog source", err)
			}
			mr, err := app.ManifestReader(opts.ManifestSource)
			if err != nil {
				return WrapExitError(ExitCommandError, "manifest source", err)
			}
			r := restore.NewRestorer(app.Backend, app.Snapshotter(), mr, app.Log.Named("restore"), app.Metrics)
			res, err := r.RestoreAndReplay(cmd.Context(), src)
			if err != nil {
				return WrapExitError(ExitCommandError, "recovery failed", err)
			}
			if opts.Format == "json" {
				return writeJSON(cmd.OutOrStdout(), res)
			}
			snap := res.SnapshotID
			if snap == "" {
				snap = "(none)"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "snapshot %s: applied %d, skipped %d, %d keys, %d bytes read\n",
				snap, res.Applied, res.Skipped, res.Keys, res.Bytes)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.ChangelogSource, "changelog-source", "file", "changelog to replay (file|kafka)")
	cmd.Flags().StringVar(&opts.ManifestSource, "manifest-source", "file", "manifest to start from (file|kafka)")
	return cmd
}
