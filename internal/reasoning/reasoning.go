// Package reasoning implements the Reasoning Loop (spec.md §4.5/§4.10):
// Receive → Recall → Modulate → Assemble → Generate → Parse → Act → Learn
// → Sanitise, with a bounded tool-recursion re-entry on Act and a
// surprise score feeding back into Dynamics. Grounded on the teacher's
// turn-driving convention (vthunder-bud2/internal/executive's Executive,
// which also drives receive → generate → tool-dispatch → respond as a
// single serialized per-turn call), adapted away from that file's
// Claude-CLI subprocess/stream-json plumbing to the package's own
// llm.Client/tools.Registry abstractions.
package reasoning

import (
	"context"
	"fmt"
	"sync"
	"time"

	"gonum.org/v1/gonum/floats"

	"github.com/vthunder/mneme/internal/assembler"
	"github.com/vthunder/mneme/internal/budget"
	"github.com/vthunder/mneme/internal/dynamics"
	"github.com/vthunder/mneme/internal/feedback"
	"github.com/vthunder/mneme/internal/llm"
	"github.com/vthunder/mneme/internal/logging"
	"github.com/vthunder/mneme/internal/memory"
	"github.com/vthunder/mneme/internal/modulation"
	"github.com/vthunder/mneme/internal/state"
	"github.com/vthunder/mneme/internal/tools"
)

// EventKind is one of the five event kinds the loop's Receive step accepts
// (spec.md §4.5 step 1).
type EventKind string

const (
	EventUserMessage      EventKind = "user_message"
	EventSourceUpdate     EventKind = "source_update"
	EventScheduledTrigger EventKind = "scheduled_trigger"
	EventToolResult       EventKind = "tool_result"
	EventProactive        EventKind = "proactive"
)

// Event is one unit of work the loop receives.
type Event struct {
	Kind      EventKind
	Speaker   string // display name/author id, for conversational events
	Content   string
	ChannelID string
	// Casual, if false, means a technical channel — Sanitise leaves
	// markdown headers/bullets and code blocks alone there (spec.md §4.5
	// step 9).
	Casual bool
	// ToolDepth is how many Act→Receive re-entries have already happened
	// for this turn's causal chain; Handle refuses to recurse past
	// MaxToolDepth (spec.md §4.5 step 7).
	ToolDepth int
	// Intensity is the sense layer's own signal-strength estimate (0..1),
	// e.g. internal/senses's owner/DM/mention/urgent-keyword heuristic.
	// Zero means "let stimulusFor pick a default for this event kind".
	Intensity float64
}

// Output is what one full pass through the loop produces for the caller
// (typically internal/effectors, over whatever channel Event.ChannelID
// names).
type Output struct {
	Text         string
	Silent       bool
	SurpriseHigh bool
}

// PersonaProvider renders the current persona layer text; internal/persona
// implements this by combining seeded persona files with the state's
// projected persona and emergent self-knowledge.
type PersonaProvider interface {
	Render(proj state.ProjectedPersona) string
}

// Engine wires every Organism Core component the loop touches into the
// nine-step state machine. A single Engine instance serializes turns via
// its own mutex — spec.md §8 requires "within a turn, Dynamics is
// observed as a single snapshot after the Modulate step", which only
// holds if turns don't interleave against the same state.
type Engine struct {
	mu sync.Mutex

	Store     *memory.Store
	Dynamics  *dynamics.DefaultDynamics
	State     *state.OrganismState
	Curves    modulation.ModulationCurves
	Client    llm.Client
	Registry  *tools.Registry
	Buffer    *feedback.Buffer
	Persona   PersonaProvider
	Extractor *Extractor
	// Embedder backs the surprise score (topSimilarity): without one,
	// surprise falls back to "any recall hit at all" rather than a true
	// embedding distance.
	Embedder memory.Embedder
	// Ledger records token spend per completed LLM call (spec.md §6
	// token_budget); nil disables accounting.
	Ledger *budget.Ledger

	MaxToolDepth      int
	ContextBaseBudget int
	SystemPrompt      string

	// lastRecallTopSim is the strongest cosine similarity the previous
	// Recall step found, used by Surprise as the "distance between
	// prediction and realised input" proxy (spec.md §4.5's surprise
	// score) without fabricating a separate prediction model.
	lastRecallTopSim float64
}

// New returns an Engine over the given components, with MaxToolDepth 4
// and ContextBaseBudget 8000.
func New(store *memory.Store, dyn *dynamics.DefaultDynamics, s *state.OrganismState, client llm.Client, reg *tools.Registry, buf *feedback.Buffer) *Engine {
	return &Engine{
		Store:             store,
		Dynamics:          dyn,
		State:             s,
		Curves:            modulation.DefaultModulationCurves(),
		Client:            client,
		Registry:          reg,
		Buffer:            buf,
		Extractor:         NewExtractor(),
		MaxToolDepth:      4,
		ContextBaseBudget: 8000,
	}
}

// Handle runs one full pass of the loop for ev, recursing through Act for
// tool invocations up to MaxToolDepth (spec.md §4.10 "Acting→Receiving
// edge").
func (e *Engine) Handle(ctx context.Context, ev Event) (Output, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.handleLocked(ctx, ev)
}

func (e *Engine) handleLocked(ctx context.Context, ev Event) (Output, error) {
	if ev.ToolDepth > e.MaxToolDepth {
		return Output{}, fmt.Errorf("reasoning: tool recursion exceeded max_tool_depth=%d", e.MaxToolDepth)
	}

	// 1. Receive + Dynamics stimulus update.
	input := e.stimulusFor(ev)
	e.Dynamics.Step(e.State, input, time.Since(e.State.LastUpdated))
	e.State.LastUpdated = time.Now()

	// 2. Recall.
	recall, err := e.Store.Recall(ev.Content, 8, e.State.Medium.MoodBias)
	if err != nil {
		logging.Warn("reasoning", "recall failed: %v", err)
	}
	e.lastRecallTopSim = e.topSimilarity(recall, ev.Content)
	surpriseHigh := e.lastRecallTopSim < surpriseSimilarityFloor

	// 3. Modulate.
	marker := modulation.FromState(e.State)
	vector := marker.ToModulationVectorWithCurves(e.Curves)

	// 4. Assemble.
	in := assembler.Input{
		Persona:          e.renderPersona(),
		UserFacts:        recall.RelevantFacts,
		SocialDigest:     socialDigest(recall),
		RecalledEpisodes: recall.Episodes,
		TriggeringEvent:  ev.Content,
	}
	assembled := assembler.Assemble(in, e.ContextBaseBudget, vector)

	// 5. Generate.
	temp, topP, maxTokens := vector.Apply(0.7, 0.95, 1024)
	resp, err := e.Client.Complete(ctx, llm.Request{
		System:      e.SystemPrompt,
		Messages:    []llm.Message{{Role: llm.RoleUser, Content: assembled.Text}},
		MaxTokens:   maxTokens,
		Temperature: temp,
		TopP:        topP,
	})
	if err != nil {
		return Output{}, fmt.Errorf("generate: %w", err)
	}
	if e.Ledger != nil {
		if err := e.Ledger.Record(resp.Provider, resp.Model, resp.InputTokens, resp.OutputTokens); err != nil {
			logging.Warn("reasoning", "record token spend: %v", err)
		}
	}

	// 6. Parse.
	parsed := Parse(resp.Content)

	// 7. Act.
	var out Output
	switch parsed.Kind {
	case KindSilence:
		out = Output{Silent: true, SurpriseHigh: surpriseHigh}
	case KindToolCall:
		result := e.Registry.Execute(ctx, parsed.ToolName, parsed.ToolArgs)
		toolEv := Event{
			Kind:      EventToolResult,
			Speaker:   "tool:" + parsed.ToolName,
			Content:   result.Content,
			ChannelID: ev.ChannelID,
			Casual:    ev.Casual,
			ToolDepth: ev.ToolDepth + 1,
		}
		return e.handleLocked(ctx, toolEv)
	default:
		out = Output{Text: Sanitise(parsed.Text, ev.Casual), SurpriseHigh: surpriseHigh}
	}

	// 8. Learn.
	e.learn(ev, parsed, out)

	// 9. Sanitise already applied above for the final text case.
	return out, nil
}

// surpriseSimilarityFloor is the recall-similarity threshold below which
// the realised input is treated as surprising (spec.md §4.5 "above a
// threshold it raises arousal ... and may schedule a reflection entry").
const surpriseSimilarityFloor = 0.25

func (e *Engine) stimulusFor(ev Event) state.SensoryInput {
	input := state.SensoryInput{
		ContentIntensity: 0.4,
		IsSocial:         ev.Kind == EventUserMessage,
	}
	if ev.Kind == EventUserMessage || ev.Kind == EventProactive {
		input.ContentIntensity = 0.6
	}
	if ev.Intensity > 0 {
		input.ContentIntensity = ev.Intensity
	}
	input.Surprise = 1 - e.lastRecallTopSim
	return input
}

func (e *Engine) renderPersona() string {
	proj := e.State.Project()
	if e.Persona != nil {
		return e.Persona.Render(proj)
	}
	return proj.Affect.Describe()
}

func socialDigest(r memory.RecallResult) string {
	if len(r.SocialContext) == 0 {
		return ""
	}
	digest := ""
	for _, sc := range r.SocialContext {
		digest += fmt.Sprintf("%s: %s\n", sc.Person.DisplayName, memory.FormatFactsForPrompt(sc.Facts, 0.3))
	}
	return digest
}

// topSimilarity is the surprise score's "distance between the
// pre-generation prediction (if any) and the realised input" proxy
// (spec.md §4.5): the embedding of the triggering event compared against
// the strongest-ranked recalled episode's stored embedding. With no
// embedder wired, it degrades to a coarse presence check rather than a
// true distance.
func (e *Engine) topSimilarity(r memory.RecallResult, query string) float64 {
	if len(r.Episodes) == 0 {
		return 0
	}
	if e.Embedder == nil {
		return 1
	}
	queryEmb, err := e.Embedder.Embed(query)
	if err != nil || len(queryEmb) == 0 {
		return 1
	}
	best := 0.0
	for _, ep := range r.Episodes {
		if sim := cosine(queryEmb, ep.Embedding); sim > best {
			best = sim
		}
	}
	return best
}

// cosine mirrors internal/memory's cosineSim (unexported there), built on
// the same gonum.org/v1/gonum/floats primitives rather than duplicating a
// hand-rolled loop.
func cosine(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	normA := floats.Norm(a, 2)
	normB := floats.Norm(b, 2)
	if normA == 0 || normB == 0 {
		return 0
	}
	return floats.Dot(a, b) / (normA * normB)
}

func (e *Engine) learn(ev Event, parsed ParsedResponse, out Output) {
	if e.Buffer == nil {
		return
	}
	exchange := ev.Content + "\n" + out.Text
	facts := e.Extractor.Extract(exchange)
	for _, f := range facts {
		if err := e.Store.StoreFact(f); err != nil {
			logging.Warn("reasoning", "store extracted fact: %v", err)
		}
	}
	if out.SurpriseHigh {
		if err := e.Buffer.AddSignal(feedback.PredictionError, "", "surprising input: "+ev.Content, 0.6, 0); err != nil {
			logging.Warn("reasoning", "enqueue surprise reflection: %v", err)
		}
	}
}
