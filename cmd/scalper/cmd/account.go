package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var accountCmd = &cobra.Command{
	Use:   "account",
	Short: "Show account collateral and open venue positions",
	RunE:  runAccount,
}

func init() {
	rootCmd.AddCommand(accountCmd)
}

func runAccount(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd, true)
	if err != nil {
		return err
	}
	defer a.close()

	ctx := cmd.Context()
	acct, err := a.client.AccountSummary(ctx)
	if err != nil {
		return fmt.Errorf("account summary: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Account:            %s (%s)\n", acct.Account, acct.Status)
	fmt.Fprintf(out, "Account value:      $%.2f\n", acct.AccountValue)
	fmt.Fprintf(out, "Free collateral:    $%.2f\n", acct.FreeCollateral)
	fmt.Fprintf(out, "Initial margin:     $%.2f\n", acct.InitialMargin)
	fmt.Fprintf(out, "Maintenance margin: $%.2f\n", acct.MaintenanceMargin)

	positions, err := a.client.Positions(ctx)
	if err != nil {
		return fmt.Errorf("positions: %w", err)
	}
	if len(positions) == 0 {
		fmt.Fprintln(out, "\nNo open positions")
		return nil
	}

	fmt.Fprintln(out)
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SYMBOL\tSIDE\tSIZE\tENTRY\tUNREALIZED\tLEVERAGE\tLIQUIDATION")
	for _, p := range positions {
		fmt.Fprintf(w, "%s\t%s\t%g\t%g\t%.2f\t%.0fx\t%g\n",
			p.Symbol, p.Side, p.Size, p.AverageEntry, p.UnrealizedPnL, p.Leverage, p.LiquidationPrice)
	}
	return w.Flush()
}
