package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/rustyeddy/flashscalper/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Generate or validate configuration files",
	Long: `Manage scalper configuration files.

Subcommands:
  init     - Generate a default configuration file
  validate - Validate an existing configuration file

Examples:
  scalper config init -o scalper.yaml
  scalper config validate -f scalper.yaml`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate a default configuration file",
	RunE:  runConfigInit,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a configuration file",
	Long: `Load a configuration file with SCALPER_* environment overrides applied
and check it. Secrets are masked in the printed result.`,
	RunE: runConfigValidate,
}

var (
	configInitOutput   string
	configValidatePath string
	configValidateShow bool
)

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configValidateCmd)

	configInitCmd.Flags().StringVarP(&configInitOutput, "output", "o", "scalper.yaml", "output config file path")
	configValidateCmd.Flags().StringVarP(&configValidatePath, "file", "f", "", "path to config file (required)")
	configValidateCmd.Flags().BoolVar(&configValidateShow, "show", false, "print the resolved configuration")
	configValidateCmd.MarkFlagRequired("file")
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	cfg := config.Default()
	if err := cfg.SaveToFile(configInitOutput); err != nil {
		return fmt.Errorf("save config: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "✓ Created default configuration: %s\n", configInitOutput)
	fmt.Fprintln(out, "\nSet exchange.starknet_account and exchange.private_key (or SCALPER_EXCHANGE_PRIVATE_KEY), then:")
	fmt.Fprintf(out, "  scalper markets -c %s\n", configInitOutput)
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configValidatePath, nil)
	if err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	out := cmd.OutOrStdout()
	base, _ := cfg.ResolveBaseURL()
	fmt.Fprintf(out, "✓ Configuration valid: %s\n", configValidatePath)
	fmt.Fprintf(out, "  Exchange: %s (%s)\n", cfg.Exchange.Environment, base)
	fmt.Fprintf(out, "  Agent: %s (leverage %.0fx, max %d positions, max exposure %.0f%%)\n",
		cfg.Trading.AgentID, cfg.Trading.Leverage, cfg.Trading.MaxPositions, cfg.Trading.MaxExposurePercent)
	fmt.Fprintf(out, "  Journal: %s\n", cfg.Journal.Type)
	if cfg.Exchange.PrivateKey == "" {
		fmt.Fprintln(out, "  ! no private key: only public endpoints and --dry are available")
	}

	if configValidateShow {
		data, err := yaml.Marshal(cfg.Redacted())
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "\n%s", data)
	}
	return nil
}
