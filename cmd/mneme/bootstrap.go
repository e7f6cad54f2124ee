// Package main wires every Organism Core component into the running
// process: the config/state/memory substrate, the Reasoning Loop, the
// Discord senses/effectors, the trigger evaluator's background tick, and
// the CLI command tree that drives it all. Grounded on the teacher's own
// cmd/bud/main.go wiring order (load config/state, start senses, start
// effectors, start background evaluators, block until signal) and on
// lazypower-continuity's internal/cli package for splitting that wiring
// across cobra subcommands instead of one monolithic main.
package main

import (
	"fmt"
	"os"

	"github.com/vthunder/mneme/internal/budget"
	"github.com/vthunder/mneme/internal/config"
	"github.com/vthunder/mneme/internal/consolidate"
	"github.com/vthunder/mneme/internal/dynamics"
	"github.com/vthunder/mneme/internal/effectors"
	"github.com/vthunder/mneme/internal/embedding"
	"github.com/vthunder/mneme/internal/feedback"
	"github.com/vthunder/mneme/internal/llm"
	"github.com/vthunder/mneme/internal/logging"
	"github.com/vthunder/mneme/internal/memory"
	"github.com/vthunder/mneme/internal/persona"
	"github.com/vthunder/mneme/internal/reasoning"
	"github.com/vthunder/mneme/internal/tools"
	"github.com/vthunder/mneme/internal/triggers"
)

// organism bundles every long-lived component a command needs, assembled
// once by newOrganism and torn down by Close.
type organism struct {
	cfg *config.Config

	store     *memory.Store
	dyn       *dynamics.DefaultDynamics
	engine    *reasoning.Engine
	ledger    *budget.Ledger
	buffer    *feedback.Buffer
	consol    *consolidate.Consolidator
	trig      *triggers.Evaluator
	confirmer *tools.ConversationConfirmer
}

func newOrganism(cfg *config.Config) (*organism, error) {
	if err := os.MkdirAll(dirOf(cfg.Organism.DBPath), 0o755); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}

	embedClient := embedding.NewClient("", cfg.Memory.EmbeddingModel)
	cachedEmbedder, err := embedding.NewCachingEmbedder(embedClient, 512)
	if err != nil {
		return nil, fmt.Errorf("build embedder cache: %w", err)
	}

	store, err := memory.Open(cfg.Organism.DBPath, cachedEmbedder, cfg.Memory.StrengthFloor)
	if err != nil {
		return nil, fmt.Errorf("open memory store: %w", err)
	}

	if err := persona.Bootstrap(store, cfg.Organism.PersonaDir); err != nil {
		logging.Warn("main", "persona bootstrap: %v", err)
	}

	orgState, err := store.LoadOrganismState()
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("load organism state: %w", err)
	}

	client, err := llm.New(cfg.LLM, cfg.Secrets)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("build llm client: %w", err)
	}

	ledger := budget.NewLedger(store, cfg.TokenBudget.DailyLimit, cfg.TokenBudget.MonthlyLimit, cfg.TokenBudget.DowngradeThreshold)

	reg := tools.New().
		WithPathAllowlist(cfg.Safety.PathAllowlist).
		WithDomainAllowlist(cfg.Safety.DomainAllowlist)
	tools.RegisterBuiltins(reg, store)
	// Ask is nil and nothing in cmd/mneme sets it, so Confirm returns a
	// "no confirmation channel configured" error for Destructive-tier tools.
	confirmer := tools.NewConversationConfirmer(client, nil)
	if cfg.Safety.RequireConfirmation {
		reg.WithConfirmer(confirmer)
	}

	buffer := feedback.New(store)
	dyn := dynamics.New(cfg.Organism.MaxIntegrationStep(), 0)

	engine := reasoning.New(store, dyn, orgState, client, reg, buffer)
	engine.Persona = persona.NewProvider(store)
	engine.Embedder = cachedEmbedder
	engine.Ledger = ledger
	engine.MaxToolDepth = cfg.Reasoning.MaxToolDepth
	engine.ContextBaseBudget = cfg.Reasoning.ContextBaseBudget

	presence, err := triggers.ParsePresenceSchedule(cfg.Expression.PresenceSchedule)
	if err != nil {
		logging.Warn("main", "presence schedule: %v, using default", err)
		presence = triggers.DefaultPresenceSchedule()
	}
	trig := triggers.NewEvaluator(store, orgState, ledger, presence)

	consol := consolidate.New(store, buffer)

	return &organism{
		cfg:       cfg,
		store:     store,
		dyn:       dyn,
		engine:    engine,
		ledger:    ledger,
		buffer:    buffer,
		consol:    consol,
		trig:      trig,
		confirmer: confirmer,
	}, nil
}

func (o *organism) Close() error {
	if err := o.store.SaveOrganismState(o.engine.State); err != nil {
		logging.Warn("main", "save organism state on shutdown: %v", err)
	}
	return o.store.Close()
}

func (o *organism) pacer() *effectors.Pacer {
	return effectors.NewPacer(o.cfg.Expression)
}

func dirOf(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[:i]
		}
	}
	return "."
}
