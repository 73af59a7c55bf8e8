package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/flashscalper/execution"
	"github.com/rustyeddy/flashscalper/journal"
)

var openCmd = &cobra.Command{
	Use:   "open",
	Short: "Open a position from a trading signal",
	Long: `Size, risk-check and place an entry order for one signal.

A support (long) or resistance (short) level close to mark places a
passive limit order first; otherwise the entry is a market order.

Examples:
  scalper open --symbol BTC-USD-PERP --side long --confidence 72
  scalper open --symbol ETH-USD-PERP --side short --confidence 80 --resistance 3412.5 --atr 0.8
  scalper --dry open --symbol SOL-USD-PERP --side long --equity 2500`,
	RunE: runOpen,
}

var closeCmd = &cobra.Command{
	Use:   "close",
	Short: "Close a journaled position at market",
	Long: `Look up an open position in the journal and close it with a reduce-only
market order. Requires a journal that can read positions back (sqlite or
postgres).

Example:
  scalper close --id 01JC4Z8J6V9Q2Y3ZK5XGH0R7ME --reason "take profit"`,
	RunE: runClose,
}

var (
	openSymbol     string
	openSide       string
	openConfidence float64
	openScore      float64
	openSupport    float64
	openResistance float64
	openATR        float64
	openRSI        float64
	openReasons    []string
	openLLMAgreed  bool
	openEquity     float64

	closeID     string
	closeReason string
)

func init() {
	rootCmd.AddCommand(openCmd)
	rootCmd.AddCommand(closeCmd)

	f := openCmd.Flags()
	f.StringVarP(&openSymbol, "symbol", "s", "", "market symbol, e.g. BTC-USD-PERP (required)")
	f.StringVar(&openSide, "side", "long", "long or short")
	f.Float64Var(&openConfidence, "confidence", 50, "signal confidence 0-100")
	f.Float64Var(&openScore, "score", 0, "signal score")
	f.Float64Var(&openSupport, "support", 0, "support level for a passive long entry")
	f.Float64Var(&openResistance, "resistance", 0, "resistance level for a passive short entry")
	f.Float64Var(&openATR, "atr", 0, "ATR as percent of price, for the dynamic take profit")
	f.Float64Var(&openRSI, "rsi", 0, "RSI at signal time (journaled only)")
	f.StringArrayVar(&openReasons, "reason", nil, "signal reason, repeatable")
	f.BoolVar(&openLLMAgreed, "llm-agreed", false, "mark the signal as confirmed by a second opinion")
	f.Float64Var(&openEquity, "equity", 1000, "account equity used with --dry")
	openCmd.MarkFlagRequired("symbol")

	closeCmd.Flags().StringVar(&closeID, "id", "", "position id (required)")
	closeCmd.Flags().StringVar(&closeReason, "reason", "", "close reason")
	closeCmd.MarkFlagRequired("id")
}

func signalFromFlags(cmd *cobra.Command) (execution.Signal, error) {
	sig := execution.Signal{
		Symbol:     strings.ToUpper(openSymbol),
		Confidence: openConfidence,
		Score:      openScore,
		Reasons:    openReasons,
		LLMAgreed:  openLLMAgreed,
	}
	switch strings.ToLower(openSide) {
	case "long", "buy":
		sig.Direction = journal.Long
	case "short", "sell":
		sig.Direction = journal.Short
	default:
		return execution.Signal{}, fmt.Errorf("--side must be long or short, got %q", openSide)
	}

	flags := cmd.Flags()
	if flags.Changed("support") {
		v := openSupport
		sig.Support = &v
	}
	if flags.Changed("resistance") {
		v := openResistance
		sig.Resistance = &v
	}
	if flags.Changed("atr") || flags.Changed("rsi") {
		sig.Indicators = &execution.Indicators{}
		if flags.Changed("atr") {
			v := openATR
			sig.Indicators.ATRPercent = &v
		}
		if flags.Changed("rsi") {
			v := openRSI
			sig.Indicators.RSI = &v
		}
	}
	return sig, nil
}

// accountState reads equity and committed margin from the venue, or from
// --equity and the journal when paper trading.
func (a *app) accountState(ctx context.Context) (execution.AccountState, error) {
	if dryRun {
		st := execution.AccountState{Equity: openEquity}
		if s, ok := a.store(); ok {
			open, err := s.OpenPositions(ctx)
			if err != nil {
				return st, fmt.Errorf("open positions: %w", err)
			}
			for _, p := range open {
				st.Exposure += p.MarginUsed
			}
			st.OpenPositions = len(open)
		}
		return st, nil
	}

	acct, err := a.client.AccountSummary(ctx)
	if err != nil {
		return execution.AccountState{}, fmt.Errorf("account summary: %w", err)
	}
	positions, err := a.client.Positions(ctx)
	if err != nil {
		return execution.AccountState{}, fmt.Errorf("positions: %w", err)
	}

	st := execution.AccountState{Equity: acct.AccountValue, Exposure: acct.InitialMargin}
	for _, p := range positions {
		if strings.EqualFold(p.Status, "OPEN") && p.Size != 0 {
			st.OpenPositions++
		}
	}
	return st, nil
}

func runOpen(cmd *cobra.Command, args []string) error {
	sig, err := signalFromFlags(cmd)
	if err != nil {
		return err
	}

	a, err := newApp(cmd, true)
	if err != nil {
		return err
	}
	defer a.close()

	ctx := cmd.Context()
	acct, err := a.accountState(ctx)
	if err != nil {
		return err
	}

	res, err := a.exec.Open(ctx, sig, acct)
	if err != nil {
		var denied *execution.DeniedError
		if errors.As(err, &denied) {
			for _, v := range denied.Decision.Violations {
				fmt.Fprintf(cmd.ErrOrStderr(), "✗ %s: %s\n", v.Code, v.Msg)
			}
		}
		return err
	}

	p := res.Position
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "✓ Opened %s %s %g @ %g\n", p.Side, p.Symbol, p.Size, p.EntryPrice)
	fmt.Fprintf(out, "  Position: %s\n", p.ID)
	fmt.Fprintf(out, "  Margin:   $%.2f at %.0fx\n", p.MarginUsed, p.Leverage)
	if p.TakeProfit != nil {
		fmt.Fprintf(out, "  Target:   %g (%.1f%% ROE)\n", *p.TakeProfit, p.TakeProfitROE)
	}
	if p.Paper {
		fmt.Fprintln(out, "  Paper:    yes")
	}
	return nil
}

func runClose(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd, true)
	if err != nil {
		return err
	}
	defer a.close()

	store, ok := a.store()
	if !ok {
		return fmt.Errorf("journal type %q cannot look up positions", a.cfg.Journal.Type)
	}

	ctx := cmd.Context()
	pos, err := store.Position(ctx, closeID)
	if errors.Is(err, journal.ErrNotFound) {
		return fmt.Errorf("position %s not found", closeID)
	}
	if err != nil {
		return err
	}
	if pos.Status == journal.StatusClosed {
		return fmt.Errorf("position %s already closed", closeID)
	}

	res, err := a.exec.Close(ctx, pos, closeReason)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "✓ Closed %s %s @ %g\n", pos.Side, pos.Symbol, res.ExitPrice)
	fmt.Fprintf(out, "  P&L: $%.2f (%.2f%% ROE)\n", res.PnL, res.ROE)
	return nil
}
