package cmd

import (
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/flashscalper/market"
)

var marketsCmd = &cobra.Command{
	Use:   "markets [symbol...]",
	Short: "List market rules and prices",
	Long: `Print the trading rules of every market, or of the named symbols with
their current mark, bid and ask.

Examples:
  scalper markets
  scalper markets BTC-USD-PERP ETH-USD-PERP`,
	RunE: runMarkets,
}

func init() {
	rootCmd.AddCommand(marketsCmd)
}

func runMarkets(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd, false)
	if err != nil {
		return err
	}
	defer a.close()

	ctx := cmd.Context()
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	defer w.Flush()

	if len(args) == 0 {
		rules, err := a.client.Markets(ctx)
		if err != nil {
			return fmt.Errorf("list markets: %w", err)
		}
		sort.Slice(rules, func(i, j int) bool { return rules[i].Symbol < rules[j].Symbol })

		fmt.Fprintln(w, "SYMBOL\tKIND\tSIZE INC\tTICK\tMIN NOTIONAL\tMAX SIZE")
		for _, r := range rules {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%.2f\t%g\n",
				r.Symbol, r.AssetKind, r.OrderSizeIncrement, r.PriceTickSize, r.MinNotional, r.MaxOrderSize)
		}
		return nil
	}

	fmt.Fprintln(w, "SYMBOL\tMARK\tBID\tASK\tFUNDING\tMIN QTY")
	for _, sym := range args {
		sym = strings.ToUpper(sym)
		s, err := a.client.MarketSummary(ctx, sym)
		if err != nil {
			return fmt.Errorf("%s: %w", sym, err)
		}
		var rule *market.Rule
		if r, ok := a.client.Market(ctx, sym); ok {
			rule = &r
		}
		fmt.Fprintf(w, "%s\t%g\t%g\t%g\t%.6f\t%g\n",
			sym, s.MarkPrice, s.Bid, s.Ask, s.FundingRate, market.MinQuantity(rule))
	}
	return nil
}
