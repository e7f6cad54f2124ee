package llm

import (
	"context"
	"sync"
)

// Mock is a test double and dry-run provider, grounded on
// lazypower-continuity/internal/llm's MockClient.
type Mock struct {
	mu        sync.Mutex
	Responses []*Response // consumed in order; last one repeats once exhausted
	Err       error
	Calls     []Request // records every request received
}

// NewMock returns a Mock with a single canned reply.
func NewMock() *Mock {
	return &Mock{Responses: []*Response{{Content: "(mock response)", Provider: "mock", Model: "mock"}}}
}

func (m *Mock) Capabilities() Capabilities {
	return Capabilities{Name: "mock", Streaming: true}
}

func (m *Mock) Complete(ctx context.Context, req Request) (*Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, req)
	if m.Err != nil {
		return nil, m.Err
	}
	return m.nextLocked(), nil
}

func (m *Mock) CompleteStream(ctx context.Context, req Request, onChunk func(StreamChunk)) (*Response, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, req)
	if m.Err != nil {
		m.mu.Unlock()
		return nil, m.Err
	}
	resp := m.nextLocked()
	m.mu.Unlock()

	onChunk(StreamChunk{Delta: resp.Content})
	onChunk(StreamChunk{Done: true})
	return resp, nil
}

func (m *Mock) nextLocked() *Response {
	if len(m.Responses) == 0 {
		return &Response{Content: "", Provider: "mock", Model: "mock"}
	}
	if len(m.Responses) == 1 {
		return m.Responses[0]
	}
	resp := m.Responses[0]
	m.Responses = m.Responses[1:]
	return resp
}
