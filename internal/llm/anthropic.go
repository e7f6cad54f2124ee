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

const anthropicAPI = "https://api.anthropic.com/v1/messages"
const anthropicVersion = "2023-06-01"
const maxRetryAttempts = 4

// Anthropic calls the Anthropic Messages API directly, grounded on
// lazypower-continuity/internal/llm's Anthropic client, generalized to a
// separate system prompt, a message list, top_p, and a streaming variant.
type Anthropic struct {
	apiKey string
	model  string
	client *http.Client
}

// NewAnthropic returns an Anthropic client for model.
func NewAnthropic(apiKey, model string) *Anthropic {
	return &Anthropic{
		apiKey: apiKey,
		model:  model,
		client: &http.Client{Timeout: 120 * time.Second},
	}
}

func (a *Anthropic) Capabilities() Capabilities {
	return Capabilities{Name: "anthropic", Streaming: true}
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func (a *Anthropic) requestBody(req Request, stream bool) ([]byte, error) {
	msgs := make([]anthropicMessage, len(req.Messages))
	for i, m := range req.Messages {
		msgs[i] = anthropicMessage{Role: string(m.Role), Content: m.Content}
	}
	body := map[string]any{
		"model":       a.model,
		"max_tokens":  req.MaxTokens,
		"temperature": req.Temperature,
		"top_p":       req.TopP,
		"messages":    msgs,
		"stream":      stream,
	}
	if req.System != "" {
		body["system"] = req.System
	}
	return json.Marshal(body)
}

func (a *Anthropic) newRequest(ctx context.Context, body []byte) (*http.Request, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, anthropicAPI, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", a.apiKey)
	httpReq.Header.Set("anthropic-version", anthropicVersion)
	return httpReq, nil
}

// Complete sends a non-streaming request.
func (a *Anthropic) Complete(ctx context.Context, req Request) (*Response, error) {
	return withRetry(ctx, maxRetryAttempts, func() (*Response, error) {
		body, err := a.requestBody(req, false)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		httpReq, err := a.newRequest(ctx, body)
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		resp, err := a.client.Do(httpReq)
		if err != nil {
			return nil, fmt.Errorf("anthropic api: %w", err)
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
			Content []struct {
				Text string `json:"text"`
			} `json:"content"`
			StopReason string `json:"stop_reason"`
			Usage      struct {
				InputTokens  int `json:"input_tokens"`
				OutputTokens int `json:"output_tokens"`
			} `json:"usage"`
		}
		if err := json.Unmarshal(respBody, &result); err != nil {
			return nil, fmt.Errorf("decode response: %w", err)
		}
		text := ""
		if len(result.Content) > 0 {
			text = result.Content[0].Text
		}
		return &Response{
			Content:      text,
			StopReason:   result.StopReason,
			Provider:     "anthropic",
			Model:        a.model,
			InputTokens:  result.Usage.InputTokens,
			OutputTokens: result.Usage.OutputTokens,
		}, nil
	})
}

// CompleteStream sends a streaming request and parses the Anthropic SSE
// event stream (content_block_delta events carry text), invoking onChunk
// as text arrives and returning the fully assembled Response at the end.
func (a *Anthropic) CompleteStream(ctx context.Context, req Request, onChunk func(StreamChunk)) (*Response, error) {
	body, err := a.requestBody(req, true)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	httpReq, err := a.newRequest(ctx, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	resp, err := a.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("anthropic api: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, &statusError{status: resp.StatusCode, body: string(respBody)}
	}

	var full strings.Builder
	var stopReason string
	var inputTokens, outputTokens int

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		data := strings.TrimPrefix(line, "data: ")
		var event struct {
			Type  string `json:"type"`
			Delta struct {
				Text       string `json:"text"`
				StopReason string `json:"stop_reason"`
			} `json:"delta"`
			Usage struct {
				InputTokens  int `json:"input_tokens"`
				OutputTokens int `json:"output_tokens"`
			} `json:"usage"`
		}
		if err := json.Unmarshal([]byte(data), &event); err != nil {
			continue
		}
		switch event.Type {
		case "content_block_delta":
			full.WriteString(event.Delta.Text)
			onChunk(StreamChunk{Delta: event.Delta.Text})
		case "message_delta":
			if event.Delta.StopReason != "" {
				stopReason = event.Delta.StopReason
			}
			outputTokens = event.Usage.OutputTokens
		case "message_start":
			inputTokens = event.Usage.InputTokens
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read stream: %w", err)
	}
	onChunk(StreamChunk{Done: true})

	return &Response{
		Content:      full.String(),
		StopReason:   stopReason,
		Provider:     "anthropic",
		Model:        a.model,
		InputTokens:  inputTokens,
		OutputTokens: outputTokens,
	}, nil
}
