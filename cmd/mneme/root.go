package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/vthunder/mneme/internal/config"
	"github.com/vthunder/mneme/internal/effectors"
	"github.com/vthunder/mneme/internal/logging"
	"github.com/vthunder/mneme/internal/reasoning"
	"github.com/vthunder/mneme/internal/senses"
)

var configPath string

// newRootCmd builds the mneme command tree. sync, status and sleep are
// one-shot subcommands (spec.md §6); running the root command with no
// subcommand launches the live organism: Discord senses/effectors and the
// trigger evaluator's background tick run alongside an interactive
// readline chat REPL on stdin/stdout, the two surfaces sharing one
// Engine. Grounded on the teacher's cmd/bud/main.go wiring order and on
// dotsetgreg-dotagent's cmd/dotagent/main.go interactiveMode for the REPL
// shape.
func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "mneme",
		Short: "A persistent digital-organism runtime",
		RunE:  runLive,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to config YAML")
	root.AddCommand(newSyncCmd())
	root.AddCommand(newStatusCmd())
	root.AddCommand(newSleepCmd())
	return root
}

func runLive(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	org, err := newOrganism(cfg)
	if err != nil {
		return fmt.Errorf("bootstrap organism: %w", err)
	}
	defer func() {
		if err := org.Close(); err != nil {
			logging.Warn("main", "shutdown: %v", err)
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pacer := org.pacer()
	var eff effectors.Effector = effectors.NewMockEffector("")

	if cfg.Secrets.DiscordToken != "" {
		dsense, err := senses.NewDiscordSense(senses.DiscordConfig{
			Token:     cfg.Secrets.DiscordToken,
			ChannelID: cfg.Secrets.DiscordChannel,
			OwnerID:   cfg.Secrets.DiscordOwnerID,
		}, func(ev reasoning.Event) {
			handleEvent(ctx, org, eff, pacer, ev)
		})
		if err != nil {
			return fmt.Errorf("build discord sense: %w", err)
		}
		if err := dsense.Start(); err != nil {
			return fmt.Errorf("start discord sense: %w", err)
		}
		defer dsense.Stop()
		eff = effectors.NewDiscordEffector(dsense.Session(), pacer)
		logging.Info("main", "discord presence online")
	} else {
		logging.Info("main", "no discord token configured, running local-only")
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go runTriggerLoop(ctx, org, eff, pacer, cfg.Organism.TriggerInterval())

	replDone := make(chan struct{})
	go func() {
		defer close(replDone)
		runChatREPL(ctx, org, eff, pacer)
	}()

	select {
	case <-stop:
		logging.Info("main", "shutting down on signal")
	case <-replDone:
	}
	return nil
}

// runTriggerLoop periodically asks the trigger evaluator whether the
// organism should speak unprompted (spec.md §4.6) and, if so, runs the
// resulting event through the engine exactly like an inbound message.
func runTriggerLoop(ctx context.Context, org *organism, eff effectors.Effector, pacer *effectors.Pacer, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ev, ok := org.trig.Evaluate(time.Now(), nil)
			if !ok {
				continue
			}
			handleEvent(ctx, org, eff, pacer, ev)
		}
	}
}

// handleEvent runs ev through the engine and, unless the output is
// silent, paces and sends the reply back through eff.
func handleEvent(ctx context.Context, org *organism, eff effectors.Effector, pacer *effectors.Pacer, ev reasoning.Event) {
	out, err := org.engine.Handle(ctx, ev)
	if err != nil {
		logging.Error("main", "handle event: %v", err)
		return
	}
	if out.Silent || out.Text == "" {
		return
	}
	channelID := ev.ChannelID
	if channelID == "" {
		channelID = org.cfg.Secrets.DiscordChannel
	}
	if err := effectors.SendPaced(ctx, eff, pacer, channelID, out.Text, org.engine.State.Fast.Affect); err != nil {
		logging.Error("main", "send reply: %v", err)
	}
}

const replChannelID = "local-repl"

// runChatREPL drives an interactive stdin/stdout conversation through the
// same engine the Discord sense and trigger loop use. Typed "quit" exits
// gracefully, matching spec.md §6's command list.
func runChatREPL(ctx context.Context, org *organism, eff effectors.Effector, pacer *effectors.Pacer) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "you> ",
		HistoryFile:     filepath.Join(os.TempDir(), ".mneme_history"),
		HistoryLimit:    200,
		InterruptPrompt: "^C",
		EOFPrompt:       "quit",
	})
	if err != nil {
		logging.Warn("main", "readline init failed (%v), chat disabled", err)
		<-ctx.Done()
		return
	}
	defer rl.Close()

	for {
		line, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt || err == io.EOF {
				return
			}
			logging.Warn("main", "readline: %v", err)
			continue
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}
		if input == "quit" {
			return
		}

		ev := reasoning.Event{
			Kind:      reasoning.EventUserMessage,
			Speaker:   "local",
			Content:   input,
			ChannelID: replChannelID,
			Casual:    true,
		}
		out, err := org.engine.Handle(ctx, ev)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			continue
		}
		if out.Silent || out.Text == "" {
			continue
		}
		for _, chunk := range pacer.Split(out.Text) {
			fmt.Printf("mneme> %s\n", chunk)
		}
		_ = eff // the REPL prints directly; eff still carries any Discord presence running alongside it
	}
}
