package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/bridge/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Generate or validate configuration files",
	Long: `Manage bridge configuration files.

Subcommands:
  init     - Generate a default configuration file
  validate - Validate a configuration file, with BRIDGE_* overrides applied

Examples:
  bridge config init -o bridge.yaml
  bridge config validate -f bridge.yaml`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate a default configuration file",
	Args:  cobra.NoArgs,
	RunE:  runConfigInit,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a configuration file",
	Args:  cobra.NoArgs,
	RunE:  runConfigValidate,
}

var configInitOutput string

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configValidateCmd)

	configInitCmd.Flags().StringVarP(&configInitOutput, "output", "o", "bridge.yaml", "output config file path")
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	cfg := config.Default()
	if err := cfg.SaveToFile(configInitOutput); err != nil {
		return fmt.Errorf("save config: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "✓ Created default configuration: %s\n", configInitOutput)
	fmt.Fprintln(out, "\nEdit the file and run with:")
	fmt.Fprintf(out, "  bridge run -f %s\n", configInitOutput)
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	if cfgFile == "" {
		return fmt.Errorf("a config file is required (-f)")
	}
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "✓ Configuration valid: %s\n", cfgFile)
	fmt.Fprintf(out, "  Files: %s -> %s\n", cfg.Files.Snapshot, cfg.Files.Commands)
	fmt.Fprintf(out, "  Strategy: %s (volume %.2f, max %d positions)\n", cfg.Strategy.Name, cfg.Strategy.Volume, cfg.Risk.MaxOpenPositions)
	fmt.Fprintf(out, "  Breaker: drawdown %.0f%%, margin level %.0f%%, cooldown %d cycles\n",
		cfg.Risk.MaxDrawdownFraction*100, cfg.Risk.CriticalMarginLevel, cfg.Risk.CooldownCycles)
	fmt.Fprintf(out, "  Poll: every %s\n", cfg.Loop.PollInterval)
	return nil
}
