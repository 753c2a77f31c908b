package cmd

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/bridge/config"
	"github.com/rustyeddy/bridge/internal/logger"
)

var rootCmd = &cobra.Command{
	Use:   "bridge",
	Short: "Decision loop for a file-bridged MT5 terminal",
	Long: `Bridge reads the account snapshot an MT5 expert advisor writes, runs a
decision engine behind a drawdown/margin circuit breaker, and appends
validated commands to the log the advisor executes.

Settings come from defaults, an optional YAML or JSON file (-f) and
BRIDGE_* environment variables, e.g. BRIDGE_RISK_MIN_FREE_MARGIN=250.`,
	SilenceUsage: true,
}

var (
	cfgFile  string
	logLevel string
)

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "f", "", "config file (YAML or JSON)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override log.level (debug, info, warn, error)")
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	return cfg, nil
}

// newLogger writes to stderr so command output on stdout stays clean.
func newLogger(cfg *config.Config) (*slog.Logger, func() error, error) {
	return logger.New(logger.Options{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Path:   cfg.Log.Path,
		Output: os.Stderr,
	})
}
