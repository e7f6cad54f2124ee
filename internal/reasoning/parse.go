package reasoning

import (
	"encoding/json"
	"strings"
)

// ResponseKind is what Parse decided the model's raw text represents
// (spec.md §4.5 step 6: "final text, tool invocation, silence signal, or
// modality-annotated reply").
type ResponseKind string

const (
	KindText     ResponseKind = "text"
	KindToolCall ResponseKind = "tool_call"
	KindSilence  ResponseKind = "silence"
)

// ParsedResponse is Parse's structured decomposition of one model reply.
type ParsedResponse struct {
	Kind     ResponseKind
	Text     string
	Modality string // "", "voice", "image" — set when the reply carries a modality tag
	ToolName string
	ToolArgs map[string]any
}

// envelope is the JSON shape the system prompt instructs the model to use
// when it wants to call a tool or stay silent instead of replying with
// plain text. Grounded on lazypower-continuity/internal/engine/
// extractor.go's convention: the model embeds a JSON object in its text
// response (possibly fenced), and the caller extracts and unmarshals it
// rather than requiring a strict JSON-only response.
type envelope struct {
	Tool     string         `json:"tool"`
	Args     map[string]any `json:"args"`
	Silence  bool           `json:"silence"`
}

// Parse decomposes a raw model response into one of: silence, a tool
// call, or final text (optionally modality-tagged with a leading
// "[voice] "/"[image] " marker, which Parse strips and records
// separately).
func Parse(raw string) ParsedResponse {
	raw = strings.TrimSpace(raw)

	if env, ok := extractEnvelope(raw); ok {
		if env.Silence {
			return ParsedResponse{Kind: KindSilence}
		}
		if env.Tool != "" {
			args := env.Args
			if args == nil {
				args = map[string]any{}
			}
			return ParsedResponse{Kind: KindToolCall, ToolName: env.Tool, ToolArgs: args}
		}
	}

	modality, text := stripModalityTag(raw)
	return ParsedResponse{Kind: KindText, Text: text, Modality: modality}
}

// extractEnvelope looks for a JSON object embedded in content, the same
// fenced-or-bare extraction idiom extractor.go's parseExtractionResponse
// uses for its JSON array. Plain conversational text containing no object
// at all (the overwhelmingly common case) is left alone — extractEnvelope
// reports ok=false and Parse falls through to KindText.
func extractEnvelope(content string) (envelope, bool) {
	body := content
	if strings.HasPrefix(body, "```") {
		lines := strings.Split(body, "\n")
		if len(lines) > 2 {
			body = strings.Join(lines[1:len(lines)-1], "\n")
		}
	}
	body = strings.TrimSpace(body)

	start := strings.Index(body, "{")
	end := strings.LastIndex(body, "}")
	if start < 0 || end < 0 || end <= start {
		return envelope{}, false
	}
	var env envelope
	if err := json.Unmarshal([]byte(body[start:end+1]), &env); err != nil {
		return envelope{}, false
	}
	if env.Tool == "" && !env.Silence {
		return envelope{}, false
	}
	return env, true
}

// stripModalityTag recognizes a leading "[voice]"/"[image]" marker the
// system prompt asks the model to prefix modality-specific replies with,
// returning the modality and the remaining text.
func stripModalityTag(text string) (modality, rest string) {
	for _, tag := range []string{"voice", "image"} {
		prefix := "[" + tag + "]"
		if strings.HasPrefix(text, prefix) {
			return tag, strings.TrimSpace(strings.TrimPrefix(text, prefix))
		}
	}
	return "", text
}
