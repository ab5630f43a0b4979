package cli

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"showroom/internal/aggregate"
	"showroom/internal/selection"
)

// SelectResult is the outcome of one adjustment.
type SelectResult struct {
	Key           string `json:"key"`
	Quantity      int    `json:"quantity"`
	Changed       bool   `json:"changed"`
	TotalSelected int    `json:"total_selected"`
	TotalAmount   string `json:"total_amount"`
}

// NewSelectCommand creates the select command.
func NewSelectCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "select <key> <delta>",
		Short: "Change the quantity of one unit",
		Long: `Change the selected quantity of one unit by delta. Quantities stay within
0 and 5; a change past either bound is clamped.

Examples:
  showroom select 'v=Activa#id=BK-1#p=0#c=Red' +1
  showroom select 'v=Shine#n=Shine#p=0' -- -1`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			delta, err := strconv.Atoi(args[1])
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid delta", err)
			}
			app, err := openApp(rootOpts)
			if err != nil {
				return err
			}
			defer app.Close()

			if _, err := refresh(cmd.Context(), app); err != nil {
				return err
			}
			q, changed, err := app.Store.Adjust(args[0], delta)
			if err != nil {
				if errors.Is(err, selection.ErrUnknownKey) {
					return WrapExitError(ExitFailure, "no such unit in the catalog", err)
				}
				return err
			}
			sel := app.Store.Selection()
			res := SelectResult{
				Key:           args[0],
				Quantity:      q,
				Changed:       changed,
				TotalSelected: aggregate.TotalSelected(sel),
				TotalAmount:   aggregate.TotalAmount(app.Store.Groups(), sel).StringFixed(2),
			}
			if rootOpts.Format == "json" {
				return writeJSON(cmd.OutOrStdout(), res)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d (selected %d, total %s)\n", res.Key, res.Quantity, res.TotalSelected, res.TotalAmount)
			return nil
		},
	}
}
