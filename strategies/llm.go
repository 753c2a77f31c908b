package strategies

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/rustyeddy/bridge/command"
	"github.com/rustyeddy/bridge/llm"
	"github.com/rustyeddy/bridge/snapshot"
)

// LLM asks a chat model for the next command. Transport and parse
// failures come back wrapped in ErrEngine.
type LLM struct {
	cfg    Config
	client Completer
	hist   *History
	log    *slog.Logger
}

func NewLLM(cfg Config, client Completer, logger *slog.Logger) *LLM {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &LLM{cfg: cfg, client: client, hist: NewHistory(cfg.HistorySize), log: logger}
}

func (l *LLM) Name() string { return "llm" }

func (l *LLM) Observe(snap snapshot.Snapshot) {
	if mid, ok := snap.Mid(); ok {
		l.hist.Push(mid)
	}
}

func (l *LLM) Decide(ctx context.Context, snap snapshot.Snapshot) (command.Command, error) {
	system, user, err := llm.BuildPrompt(llm.PromptInput{
		Snapshot:     snap,
		History:      l.hist.Values(),
		Volume:       l.cfg.Volume.String(),
		MaxPositions: l.cfg.MaxOpenPositions,
	})
	if err != nil {
		return command.None(), fmt.Errorf("%w: prompt: %v", ErrEngine, err)
	}

	reply, err := l.client.Complete(ctx, system, user)
	if err != nil {
		return command.None(), fmt.Errorf("%w: %v", ErrEngine, err)
	}

	cmd, err := llm.ParseReply(reply)
	if err != nil {
		return command.None(), fmt.Errorf("%w: %v", ErrEngine, err)
	}
	l.log.Debug("llm reply", "reply", reply, "command", cmd.Text())

	if cmd.Verb.Exposure() && atCap(l.cfg, snap) {
		l.log.Info("llm command dropped at position cap", "command", cmd.Text(), "positions", snap.OpenPositions())
		return command.None(), nil
	}
	return cmd, nil
}
