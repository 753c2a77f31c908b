package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/rustyeddy/bridge/agent"
	"github.com/rustyeddy/bridge/command"
	"github.com/rustyeddy/bridge/config"
	"github.com/rustyeddy/bridge/journal"
	"github.com/rustyeddy/bridge/llm"
	"github.com/rustyeddy/bridge/metrics"
	"github.com/rustyeddy/bridge/snapshot"
	"github.com/rustyeddy/bridge/strategies"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the decision loop",
	Long: `Poll the snapshot file, evaluate the circuit breaker, ask the configured
engine for a decision and append validated commands to the command log.
Runs until SIGINT or SIGTERM.

Examples:
  bridge run -f bridge.yaml
  bridge run -f bridge.yaml --flush-on-exit`,
	Args: cobra.NoArgs,
	RunE: runRun,
}

var runFlushOnExit bool

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().BoolVar(&runFlushOnExit, "flush-on-exit", false, "offer to send CLOSE_ALL after the loop stops")
}

func runRun(cmd *cobra.Command, args []string) error {
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
		logger.Error("cannot open command log", "path", cfg.Files.Commands, "err", err)
		return err
	}
	defer log.Close()

	engine, err := buildEngine(cfg, logger)
	if err != nil {
		return err
	}

	var m *metrics.Metrics
	if cfg.Metrics.Addr != "" {
		m = metrics.New()
	}
	a := agent.New(snapshot.NewReader(cfg.Files.Snapshot), log, engine, agent.Options{
		Policy:           cfg.Policy(),
		PollInterval:     cfg.Loop.PollInterval,
		CooldownInterval: cfg.Loop.CooldownInterval,
		SkipUnchanged:    cfg.Loop.SkipUnchangedSnapshots,
		Symbol:           cfg.Strategy.Symbol,
		Metrics:          m,
		Logger:           logger,
	})

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.Run(gctx) })
	if m != nil {
		srv := metrics.NewServer(cfg.Metrics.Addr, m, func() any { return a.Status() }, logger)
		g.Go(func() error { return srv.Start(gctx) })
	}
	err = g.Wait()
	stop()

	if runFlushOnExit {
		flush(cmd.InOrStdin(), cmd.OutOrStdout(), a)
	}
	return err
}

func buildEngine(cfg *config.Config, logger *slog.Logger) (strategies.Engine, error) {
	deps := strategies.Deps{Logger: logger}
	if strings.EqualFold(strings.TrimSpace(cfg.Strategy.Name), "llm") {
		deps.Client = llm.New(llm.Options{
			BaseURL:     cfg.LLM.BaseURL,
			APIKey:      cfg.LLM.APIKey,
			Model:       cfg.LLM.Model,
			Timeout:     cfg.LLM.Timeout,
			MaxRetries:  cfg.LLM.MaxRetries,
			Temperature: cfg.LLM.Temperature,
			Logger:      logger,
		})
	}
	return strategies.ByName(cfg.Engine(), deps)
}

// flush asks once whether to liquidate and, on yes, sends CLOSE_ALL
// through the validator and the log.
func flush(in io.Reader, out io.Writer, a *agent.Agent) {
	fmt.Fprint(out, "Close all open positions? (y/n) ")
	answer, _ := bufio.NewReader(in).ReadString('\n')
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
	default:
		fmt.Fprintln(out, "positions left open")
		return
	}
	res := a.Submit(context.Background(), command.CloseAllPositions(), true)
	printResult(out, res)
}

func printResult(out io.Writer, res agent.Result) {
	switch res.Outcome {
	case agent.Appended:
		fmt.Fprintf(out, "appended: %s\n", res.Command)
	case agent.Rejected:
		fmt.Fprintf(out, "rejected: %s (%s)\n", res.Command.Text(), res.Reason)
	default:
		fmt.Fprintf(out, "%s: %s: %v\n", res.Outcome, res.Command.Text(), res.Err)
	}
}
