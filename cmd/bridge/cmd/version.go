package cmd

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/bridge/strategies"
)

// version is set at build time with -ldflags "-X .../cmd.version=v1.2.3".
var version = "dev"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "bridge version %s (%s)\n", version, runtime.Version())
		fmt.Fprintf(cmd.OutOrStdout(), "engines: %v\n", strategies.Names())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
