package cmd

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/bridge/journal"
)

var logCmd = &cobra.Command{
	Use:   "log",
	Short: "Inspect the command log",
	Long: `Read the command log the host consumes.

Subcommands:
  show  - Print the log, or its last N lines
  tail  - Print the last lines and optionally follow new ones

Examples:
  bridge log show -n 20
  bridge log tail -f`,
}

var logShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print logged commands",
	Args:  cobra.NoArgs,
	RunE:  runLogShow,
}

var logTailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Print the last commands and optionally follow",
	Args:  cobra.NoArgs,
	RunE:  runLogTail,
}

var (
	logShowLines int
	logFollow    bool
)

func init() {
	rootCmd.AddCommand(logCmd)
	logCmd.AddCommand(logShowCmd)
	logCmd.AddCommand(logTailCmd)

	logShowCmd.Flags().IntVarP(&logShowLines, "lines", "n", 0, "show only the last N lines (0 for all)")
	logTailCmd.Flags().BoolVarP(&logFollow, "follow", "F", false, "keep printing lines as they are appended")
}

func commandsPath() (string, error) {
	cfg, err := loadConfig()
	if err != nil {
		return "", fmt.Errorf("load config: %w", err)
	}
	return cfg.Files.Commands, nil
}

func runLogShow(cmd *cobra.Command, args []string) error {
	path, err := commandsPath()
	if err != nil {
		return err
	}
	var entries []journal.Entry
	if logShowLines > 0 {
		entries, err = journal.Tail(path, logShowLines)
	} else {
		entries, err = journal.ReadAll(path)
	}
	if err != nil {
		return err
	}
	for _, e := range entries {
		printEntry(cmd.OutOrStdout(), e)
	}
	return nil
}

func runLogTail(cmd *cobra.Command, args []string) error {
	path, err := commandsPath()
	if err != nil {
		return err
	}
	entries, err := journal.Tail(path, 10)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	out := cmd.OutOrStdout()
	for _, e := range entries {
		printEntry(out, e)
	}
	if !logFollow {
		return nil
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return journal.Follow(ctx, path, func(e journal.Entry) { printEntry(out, e) })
}

func printEntry(out io.Writer, e journal.Entry) {
	if e.Err != nil {
		fmt.Fprintf(out, "%s\t# unparsed: %v\n", e.Line, e.Err)
		return
	}
	fmt.Fprintln(out, e.Line)
}
