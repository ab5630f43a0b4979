package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"showroom/internal/aggregate"
)

// NewSummaryCommand creates the summary command.
func NewSummaryCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "summary",
		Short: "Show the selected units with per-model and grand totals",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp(rootOpts)
			if err != nil {
				return err
			}
			defer app.Close()

			if _, err := refresh(cmd.Context(), app); err != nil {
				return err
			}
			sum := aggregate.Summarize(app.Store.Groups(), app.Store.Selection()).Selected()
			if rootOpts.Format == "json" {
				return writeJSON(cmd.OutOrStdout(), sum)
			}
			printSummary(cmd.OutOrStdout(), sum)
			return nil
		},
	}
}

func printSummary(w io.Writer, sum aggregate.Summary) {
	if sum.Quantity == 0 {
		fmt.Fprintln(w, "No units selected. Select at least one unit to place an order.")
		return
	}
	for _, g := range sum.Groups {
		fmt.Fprintf(w, "%s\n", g.Variant)
		for _, m := range g.Models {
			fmt.Fprintf(w, "  %s @ %s\n", m.Name, m.UnitPrice.StringFixed(2))
			for _, u := range m.Units {
				if u.Color != "" {
					fmt.Fprintf(w, "    %-12s x%d  %s\n", u.Color, u.Quantity, u.Subtotal.StringFixed(2))
				} else {
					fmt.Fprintf(w, "    x%d  %s\n", u.Quantity, u.Subtotal.StringFixed(2))
				}
			}
			fmt.Fprintf(w, "  Total for this model: %d units, %s\n", m.Quantity, m.Amount.StringFixed(2))
		}
	}
	fmt.Fprintf(w, "Selected: %d units, total %s\n", sum.Quantity, sum.Amount.StringFixed(2))
}
