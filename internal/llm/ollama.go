package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Ollama calls a local Ollama instance's chat endpoint, grounded on
// lazypower-continuity/internal/llm's Ollama client (and
// internal/embedding/ollama.go's HTTP conventions in this module),
// generalized from a single prompt string to a system+messages chat
// request with an NDJSON streaming variant.
type Ollama struct {
	url    string
	model  string
	client *http.Client
}

// NewOllama returns an Ollama client against url for model.
func NewOllama(url, model string) *Ollama {
	return &Ollama{
		url:    url,
		model:  model,
		client: &http.Client{Timeout: 180 * time.Second},
	}
}

func (o *Ollama) Capabilities() Capabilities {
	return Capabilities{Name: "ollama", Streaming: true}
}

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func (o *Ollama) chatBody(req Request, stream bool) ([]byte, error) {
	msgs := make([]ollamaMessage, 0, len(req.Messages)+1)
	if req.System != "" {
		msgs = append(msgs, ollamaMessage{Role: "system", Content: req.System})
	}
	for _, m := range req.Messages {
		msgs = append(msgs, ollamaMessage{Role: string(m.Role), Content: m.Content})
	}
	body := map[string]any{
		"model":    o.model,
		"messages": msgs,
		"stream":   stream,
		"options": map[string]any{
			"temperature": req.Temperature,
			"top_p":       req.TopP,
			"num_predict": req.MaxTokens,
		},
	}
	return json.Marshal(body)
}

// Complete sends a non-streaming chat request.
func (o *Ollama) Complete(ctx context.Context, req Request) (*Response, error) {
	return withRetry(ctx, maxRetryAttempts, func() (*Response, error) {
		body, err := o.chatBody(req, false)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.url+"/api/chat", bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		httpReq.Header.Set("Content-Type", "application/json")

		resp, err := o.client.Do(httpReq)
		if err != nil {
			return nil, fmt.Errorf("ollama api: %w", err)
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("read response: %w", err)
		}
		if resp.StatusCode != http.StatusOK {
			return nil, &statusError{status: resp.StatusCode, body: string(respBody)}
		}

		var result struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
			PromptEvalCount int `json:"prompt_eval_count"`
			EvalCount       int `json:"eval_count"`
		}
		if err := json.Unmarshal(respBody, &result); err != nil {
			return nil, fmt.Errorf("decode response: %w", err)
		}
		return &Response{
			Content:      result.Message.Content,
			Provider:     "ollama",
			Model:        o.model,
			InputTokens:  result.PromptEvalCount,
			OutputTokens: result.EvalCount,
		}, nil
	})
}

// CompleteStream sends a streaming chat request and parses Ollama's
// newline-delimited JSON stream, one chat-completion fragment per line.
func (o *Ollama) CompleteStream(ctx context.Context, req Request, onChunk func(StreamChunk)) (*Response, error) {
	body, err := o.chatBody(req, true)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.url+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("ollama api: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, &statusError{status: resp.StatusCode, body: string(respBody)}
	}

	var full strings.Builder
	var inputTokens, outputTokens int

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var frag struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
			Done            bool `json:"done"`
			PromptEvalCount int  `json:"prompt_eval_count"`
			EvalCount       int  `json:"eval_count"`
		}
		if err := json.Unmarshal([]byte(line), &frag); err != nil {
			continue
		}
		if frag.Message.Content != "" {
			full.WriteString(frag.Message.Content)
			onChunk(StreamChunk{Delta: frag.Message.Content})
		}
		if frag.Done {
			inputTokens = frag.PromptEvalCount
			outputTokens = frag.EvalCount
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read stream: %w", err)
	}
	onChunk(StreamChunk{Done: true})

	return &Response{
		Content:      full.String(),
		Provider:     "ollama",
		Model:        o.model,
		InputTokens:  inputTokens,
		OutputTokens: outputTokens,
	}, nil
}
