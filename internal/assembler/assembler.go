// Package assembler implements the Context Assembler (spec.md §4.4): a
// deterministic, budget-aware stack of prompt layers in descending
// priority, compressed or dropped in reverse priority order when the
// ModulationVector's context_budget_factor leaves less room than the raw
// layers need. Grounded on the teacher's prompt-assembly conventions
// (plain Go string building, no templating library — vthunder-bud2 builds
// prompts the same way throughout internal/executive and internal/mcp) and
// on spec.md §4.4's own fixed six-layer ordering.
package assembler

import (
	"fmt"
	"strings"

	"github.com/vthunder/mneme/internal/memory"
	"github.com/vthunder/mneme/internal/modulation"
)

// layerPersona through layerTrigger fix the priority ordering spec.md §4.4
// names; lower numbers are higher priority and never dropped before higher
// numbers.
const (
	layerPersona = iota + 1
	layerFacts
	layerSocial
	layerEpisodes
	layerConversation
	layerTrigger
	numLayers
)

var layerNames = map[int]string{
	layerPersona:      "persona",
	layerFacts:        "facts",
	layerSocial:       "social",
	layerEpisodes:     "episodes",
	layerConversation: "conversation",
	layerTrigger:      "trigger",
}

// ConversationTurn is one line of the sliding recent-conversation window.
type ConversationTurn struct {
	Speaker string
	Content string
}

// Input is everything the assembler needs to build one turn's context. The
// caller (internal/reasoning) is responsible for having already run Recall,
// Modulate, and gathered the triggering event; the assembler itself does
// no I/O.
type Input struct {
	Persona            string // seeded + emergent self-knowledge, rendered
	UserFacts          []memory.SemanticFact
	SocialDigest       string
	RecalledEpisodes   []memory.Episode
	ConversationWindow []ConversationTurn
	TriggeringEvent    string
}

// LayerTrace records what happened to one layer, exposed so tests can
// assert the assembler behaved deterministically (spec.md §4.4 "must
// expose its layer-selection trace").
type LayerTrace struct {
	Name       string
	Included   bool
	Compressed bool
	Tokens     int
}

// Result is the assembled prompt plus its trace.
type Result struct {
	Text         string
	BudgetTokens int
	UsedTokens   int
	Trace        []LayerTrace
}

// estimateTokens is the same coarse chars/4 heuristic the teacher's context
// budget checks use elsewhere (no tokenizer dependency is wired anywhere in
// the pack for local estimation) — good enough for a soft budget, not meant
// to match a provider's exact tokenizer.
func estimateTokens(s string) int {
	return (len(s) + 3) / 4
}

// Assemble stacks the six layers, renders each to text, and — if the
// rendered total exceeds the budget — compresses or drops layers starting
// from the lowest priority until it fits. The persona layer is exempt from
// dropping; everything else may be compressed (truncated with a marker) or,
// if still over budget, dropped entirely.
func Assemble(in Input, baseBudget int, vector modulation.ModulationVector) Result {
	budget := int(float64(baseBudget) * vector.ContextBudgetFactor)
	if budget < 64 {
		budget = 64
	}

	layers := buildLayers(in)

	total := 0
	for _, l := range layers {
		total += estimateTokens(l.text)
	}

	trace := make([]LayerTrace, numLayers)
	for i := range trace {
		trace[i] = LayerTrace{Name: layerNames[i+1], Included: true}
	}

	if total > budget {
		total = fitToBudget(layers, budget, total, trace)
	}

	var parts []string
	for i, l := range layers {
		if !trace[i].Included || l.text == "" {
			continue
		}
		parts = append(parts, l.text)
		trace[i].Tokens = estimateTokens(l.text)
	}

	return Result{
		Text:         strings.Join(parts, "\n\n"),
		BudgetTokens: budget,
		UsedTokens:   total,
		Trace:        trace,
	}
}

type layer struct {
	priority int
	text     string
}

func buildLayers(in Input) []layer {
	return []layer{
		{layerPersona, in.Persona},
		{layerFacts, memory.FormatFactsForPrompt(in.UserFacts, 0.3)},
		{layerSocial, in.SocialDigest},
		{layerEpisodes, renderEpisodes(in.RecalledEpisodes)},
		{layerConversation, renderConversation(in.ConversationWindow)},
		{layerTrigger, in.TriggeringEvent},
	}
}

func renderEpisodes(episodes []memory.Episode) string {
	if len(episodes) == 0 {
		return ""
	}
	var lines []string
	for _, ep := range episodes {
		lines = append(lines, fmt.Sprintf("[%s] %s: %s", ep.Timestamp.Format("Jan 2 15:04"), ep.Author, ep.Body))
	}
	return "Relevant past moments:\n" + strings.Join(lines, "\n")
}

func renderConversation(turns []ConversationTurn) string {
	if len(turns) == 0 {
		return ""
	}
	var lines []string
	for _, t := range turns {
		lines = append(lines, fmt.Sprintf("%s: %s", t.Speaker, t.Content))
	}
	return strings.Join(lines, "\n")
}

// fitToBudget compresses (truncates) or drops layers from lowest priority
// upward until the running total fits budget, and records each decision in
// trace. Persona (priority 1) is only ever compressed, never dropped.
func fitToBudget(layers []layer, budget, total int, trace []LayerTrace) int {
	for priority := numLayers; priority >= layerPersona && total > budget; priority-- {
		idx := priority - 1
		l := &layers[idx]
		if l.text == "" {
			continue
		}
		over := total - budget
		current := estimateTokens(l.text)

		if priority != layerPersona && over >= current {
			total -= current
			l.text = ""
			trace[idx].Included = false
			continue
		}

		target := current - over
		if target < 16 {
			target = 16
		}
		if target >= current {
			continue
		}
		l.text = truncateToTokens(l.text, target) + " […]"
		newTokens := estimateTokens(l.text)
		total -= current - newTokens
		trace[idx].Compressed = true
	}
	return total
}

func truncateToTokens(s string, tokens int) string {
	maxChars := tokens * 4
	if maxChars >= len(s) {
		return s
	}
	return strings.TrimSpace(s[:maxChars])
}
