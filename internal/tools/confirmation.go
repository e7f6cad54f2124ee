package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/vthunder/mneme/internal/llm"
)

// ConversationConfirmer gates Destructive-tier execution behind an
// explicit user confirmation delivered over the live conversation channel
// (spec.md §4.9). It is grounded on internal/authorize/classifier.go's
// Ollama-backed YES/NO classifier, generalized from that package's
// Ollama-specific embedding.Client to the provider-agnostic llm.Client so
// any configured provider (Anthropic, Ollama, or Mock in tests) can serve
// as the confirmation judge.
//
// Each confirmation is synchronous: Confirm calls Ask and classifies the
// reply Ask returns. No pending prompts are kept between calls.
type ConversationConfirmer struct {
	client llm.Client
	// Ask is called to actually surface the confirmation prompt to the
	// user over whatever channel is live (Discord, REPL, ...). It returns
	// the user's raw reply text.
	Ask func(ctx context.Context, prompt string) (string, error)
}

// NewConversationConfirmer returns a Confirmer that asks ask and
// classifies the reply with client.
func NewConversationConfirmer(client llm.Client, ask func(ctx context.Context, prompt string) (string, error)) *ConversationConfirmer {
	return &ConversationConfirmer{client: client, Ask: ask}
}

// Confirm implements Registry's Confirmer: it surfaces summary to the
// user via Ask, then classifies the reply as an affirmative authorization
// or not.
func (c *ConversationConfirmer) Confirm(ctx context.Context, toolName, summary string) (bool, error) {
	if c.Ask == nil {
		return false, fmt.Errorf("no confirmation channel configured")
	}
	prompt := fmt.Sprintf("This action requires your confirmation before it runs:\n%s\nReply to confirm or decline.", summary)
	reply, err := c.Ask(ctx, prompt)
	if err != nil {
		return false, fmt.Errorf("ask for confirmation: %w", err)
	}
	return c.classify(ctx, reply)
}

// classify asks the configured llm.Client whether reply constitutes an
// affirmative authorization to proceed, the same YES/NO classification
// prompt shape internal/authorize/classifier.go uses.
func (c *ConversationConfirmer) classify(ctx context.Context, reply string) (bool, error) {
	if strings.TrimSpace(reply) == "" {
		return false, nil
	}

	req := llm.Request{
		System: "You are classifying a short reply for explicit authorization to proceed with an action. " +
			"Look for phrases like \"go ahead\", \"do it\", \"yes\", \"proceed\", \"confirmed\", \"approved\". " +
			"Answer only YES or NO.",
		Messages:    []llm.Message{{Role: llm.RoleUser, Content: reply}},
		MaxTokens:   8,
		Temperature: 0,
	}
	resp, err := c.client.Complete(ctx, req)
	if err != nil {
		return false, fmt.Errorf("classify confirmation: %w", err)
	}
	answer := strings.TrimSpace(strings.ToUpper(resp.Content))
	return strings.HasPrefix(answer, "YES"), nil
}
