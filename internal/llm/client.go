// Package llm implements spec.md §6's capability-typed language-model
// client interface: a single Client abstraction with streaming and
// non-streaming Complete, so the Reasoning Loop calls only through the
// interface and providers are interchangeable (spec.md §9). Grounded on
// `lazypower-continuity/internal/llm`'s Client/Response/NewClient shape,
// generalized from a single-string-prompt call to spec.md's
// (system, messages, max_tokens, temperature, top_p) signature and given
// a streaming variant the teacher's version lacks.
package llm

import (
	"context"
	"fmt"

	"github.com/vthunder/mneme/internal/config"
)

// Role is a message's speaker, matching the Anthropic Messages API's role
// vocabulary.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn of the conversation passed to Complete.
type Message struct {
	Role    Role
	Content string
}

// Request is a single completion call's full parameterization (spec.md §6
// "complete(system, messages, max_tokens, temperature, top_p)").
type Request struct {
	System      string
	Messages    []Message
	MaxTokens   int
	Temperature float64
	TopP        float64
}

// Response is a completed (or fully-drained-streamed) call's result.
type Response struct {
	Content      string
	StopReason   string
	Provider     string
	Model        string
	InputTokens  int
	OutputTokens int
}

// StreamChunk is one incremental piece of a streamed response.
type StreamChunk struct {
	Delta string
	Done  bool
}

// Capabilities describes what a provider can do, so callers (and the
// Trigger Evaluator's downgrade path) can pick a cheaper provider without
// a type switch.
type Capabilities struct {
	Name      string
	Streaming bool
}

// Client is the capability-typed interface every provider implements.
// Providers are interchangeable behind it; nothing outside this package
// should import a concrete provider type.
type Client interface {
	Capabilities() Capabilities
	Complete(ctx context.Context, req Request) (*Response, error)
	CompleteStream(ctx context.Context, req Request, onChunk func(StreamChunk)) (*Response, error)
}

// New constructs a Client from config.LLM and secrets, mirroring the
// teacher's provider-switch NewClient.
func New(cfg config.LLM, secrets config.Secrets) (Client, error) {
	switch cfg.Provider {
	case "anthropic":
		if secrets.AnthropicAPIKey == "" {
			return nil, fmt.Errorf("llm: anthropic provider requires ANTHROPIC_API_KEY")
		}
		model := cfg.Model
		if model == "" {
			model = "claude-haiku-4-5-20251001"
		}
		return NewAnthropic(secrets.AnthropicAPIKey, model), nil
	case "ollama":
		model := cfg.Model
		if model == "" {
			model = "llama3.2"
		}
		return NewOllama("http://localhost:11434", model), nil
	case "mock", "":
		return NewMock(), nil
	default:
		return nil, fmt.Errorf("llm: unknown provider %q", cfg.Provider)
	}
}
