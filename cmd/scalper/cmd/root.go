package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "scalper",
	Short: "Perpetual-futures execution layer for Paradex",
	Long: `Scalper places and closes perpetual-futures positions on Paradex.

It provides tools for:
  - Inspecting markets and account state
  - Opening risk-sized positions from a trading signal
  - Closing positions with realized P&L and ROE
  - Journaling positions and trades to SQLite, CSV or PostgreSQL
  - Paper trading against live prices with --dry

Configuration is read from --config, then SCALPER_* environment variables.`,
	SilenceUsage: true,
}

var (
	cfgFile     string
	metricsAddr string
	logLevel    string
	dryRun      bool
)

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (yaml)")
	rootCmd.PersistentFlags().StringVar(&metricsAddr, "metrics-addr", "", "serve prometheus metrics on this address, e.g. :9090")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override log level (debug|info|warn|error)")
	rootCmd.PersistentFlags().BoolVar(&dryRun, "dry", false, "paper trade against live prices with an in-memory journal")
}
