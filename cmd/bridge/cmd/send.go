package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/bridge/agent"
	"github.com/rustyeddy/bridge/command"
	"github.com/rustyeddy/bridge/journal"
	"github.com/rustyeddy/bridge/snapshot"
	"github.com/rustyeddy/bridge/strategies"
)

var sendCmd = &cobra.Command{
	Use:   "send VERB [ARGS...]",
	Short: "Append one manual command",
	Long: `Validate a single command against the current snapshot and append it to
the command log with the next id. The run loop must not be holding the log.

Examples:
  bridge send BUY 0.01
  bridge send MODIFY_SLTP 123456 1.08000 1.09500
  bridge send CLOSE_ALL
  bridge send --force CLOSE_ALL`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSend,
}

var sendForce bool

func init() {
	rootCmd.AddCommand(sendCmd)
	sendCmd.Flags().BoolVar(&sendForce, "force", false, "send with syntax checks only when no snapshot is available")
}

func runSend(cmd *cobra.Command, args []string) error {
	c, err := command.ParseText(strings.Join(args, " "))
	if err != nil {
		return err
	}
	if c.IsNoAction() {
		return fmt.Errorf("%s is never sent", command.NoAction)
	}

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger, closeLog, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer closeLog()

	log, err := journal.Open(cfg.Files.Commands, logger)
	if err != nil {
		return err
	}
	defer log.Close()

	a := agent.New(snapshot.NewReader(cfg.Files.Snapshot), log, strategies.Noop{}, agent.Options{
		Policy: cfg.Policy(),
		Logger: logger,
	})
	res := a.Submit(cmd.Context(), c, sendForce)
	printResult(cmd.OutOrStdout(), res)
	if res.Outcome != agent.Appended {
		return fmt.Errorf("command not sent: %s", res.Outcome)
	}
	return nil
}
