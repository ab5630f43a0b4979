package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewCheckpointCommand creates the checkpoint command.
func NewCheckpointCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "checkpoint",
		Short: "Snapshot the stored selection and publish a manifest for it",
		Long: `Write the stored selection to a new snapshot and publish it as the latest
manifest. Recovery starts from this snapshot and replays only the changelog
recorded after it.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp(rootOpts)
			if err != nil {
				return err
			}
			defer app.Close()

			man, err := app.Store.Checkpoint(app.Snapshotter(), app.ManifestPublisher())
			if err != nil {
				return WrapExitError(ExitCommandError, "checkpoint failed", err)
			}
			if rootOpts.Format == "json" {
				return writeJSON(cmd.OutOrStdout(), man)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "snapshot %s at seq %d\n", man.SnapshotID, man.LastSeq)
			return nil
		},
	}
}
