package cli

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"showroom/internal/aggregate"
	"showroom/internal/catalog"
)

// refresh fetches the catalog and reconciles the stored selection with it.
func refresh(ctx context.Context, app *App) (catalog.Snapshot, error) {
	snap, err := app.Browse.Fetch(ctx)
	if err != nil {
		return snap, WrapExitError(ExitCommandError, "failed to fetch catalog", err)
	}
	app.Store.Reconcile(snap)
	return snap, nil
}

// NewCatalogCommand creates the catalog command.
func NewCatalogCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "catalog",
		Short: "Fetch the catalog and list every selectable unit",
		Long: `Fetch the catalog, reconcile the stored selection with it, and list every
selectable unit with its key, on-road price and current quantity.

Examples:
  showroom catalog
  showroom catalog --format json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp(rootOpts)
			if err != nil {
				return err
			}
			defer app.Close()

			if _, err := refresh(cmd.Context(), app); err != nil {
				return err
			}
			sum := aggregate.Summarize(app.Store.Groups(), app.Store.Selection())
			if rootOpts.Format == "json" {
				return writeJSON(cmd.OutOrStdout(), sum)
			}
			printUnits(cmd.OutOrStdout(), sum)
			return nil
		},
	}
}

func printUnits(w io.Writer, sum aggregate.Summary) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, g := range sum.Groups {
		fmt.Fprintf(tw, "%s\n", g.Variant)
		for _, m := range g.Models {
			for _, u := range m.Units {
				color := u.Color
				if color == "" {
					color = "-"
				}
				fmt.Fprintf(tw, "  %s\t%s\t%s\t%d\t%s\n", m.Name, color, u.UnitPrice.StringFixed(2), u.Quantity, u.Key)
			}
		}
	}
	_ = tw.Flush()
}
