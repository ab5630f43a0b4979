package cli

import (
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"showroom/internal/confirm"
)

// ConfirmOptions holds flags for the confirm command.
type ConfirmOptions struct {
	*RootOptions
	DryRun bool
}

// NewConfirmCommand creates the confirm command.
func NewConfirmCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ConfirmOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "confirm",
		Short: "Price the selection against a fresh catalog and place the order",
		Long: `Resolve every selected unit against a freshly fetched catalog and print the
priced order lines. Units the catalog no longer lists are kept as zero-priced
lines. Unless --dry-run is given the selection is then cleared.

Exit codes:
  0 - Order confirmed (or previewed)
  1 - Nothing selected
  2 - Command error`,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp(opts.RootOptions)
			if err != nil {
				return err
			}
			defer app.Close()

			run := app.Confirm.Confirm
			if opts.DryRun {
				run = app.Confirm.Preview
			}
			c, err := run(cmd.Context())
			if err != nil {
				if errors.Is(err, confirm.ErrNothingSelected) {
					return WrapExitError(ExitFailure, "no units selected", err)
				}
				return err
			}
			if opts.Format == "json" {
				return writeJSON(cmd.OutOrStdout(), c)
			}
			printConfirmation(cmd.OutOrStdout(), c, opts.DryRun)
			return nil
		},
	}

	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "preview the order without clearing the selection")
	return cmd
}

func printConfirmation(w io.Writer, c confirm.Confirmation, dryRun bool) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ITEM\tCOLOR\tQTY\tUNIT\tSUBTOTAL")
	for _, l := range c.Lines {
		name := l.DisplayName
		if !l.Resolved {
			name += " (unavailable)"
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n", name, l.Color, l.Quantity, l.UnitPrice.StringFixed(2), l.Subtotal.StringFixed(2))
	}
	_ = tw.Flush()
	fmt.Fprintf(w, "Grand total: %s (%d units)\n", c.GrandTotal.StringFixed(2), c.Quantity)
	if dryRun {
		fmt.Fprintln(w, "Preview only; selection kept.")
	} else {
		fmt.Fprintln(w, "Order placed; selection cleared.")
	}
}
