// Package testutil provides shared testing utilities: a scripted completion
// client, an in-memory cache, and a disposable PostgreSQL container.
package testutil

import (
	"context"
	"strings"
	"sync"

	"github.com/wellora/coach/internal/llm"
)

// MockLLM provides deterministic completion responses for testing. It
// matches the last user turn against registered patterns and returns the
// corresponding response.
//
// Thread-safe for concurrent use.
type MockLLM struct {
	mu       sync.Mutex
	rules    []mockRule
	fallback string
	err      error
	calls    []MockCall
}

type mockRule struct {
	pattern  string // substring match in the last user turn, lowercase
	response string
}

// MockCall records a single call to the mock client.
type MockCall struct {
	UserMessage string // last user turn text
	Response    string // response text returned
	Streamed    bool
}

// NewMockLLM creates a mock client with the given fallback response. The
// fallback is returned when no pattern matches.
func NewMockLLM(fallback string) *MockLLM {
	return &MockLLM{fallback: fallback}
}

// AddResponse registers a pattern-response pair. When the last user turn
// contains the pattern (case-insensitive), the response is returned.
// Patterns are checked in registration order; first match wins.
func (m *MockLLM) AddResponse(pattern, response string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules = append(m.rules, mockRule{
		pattern:  strings.ToLower(pattern),
		response: response,
	})
}

// FailWith makes every subsequent call return err. Pass nil to recover.
func (m *MockLLM) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Calls returns a copy of all recorded calls.
func (m *MockLLM) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]MockCall, len(m.calls))
	copy(cp, m.calls)
	return cp
}

// Reset clears recorded calls (keeps registered responses).
func (m *MockLLM) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
}

// Complete implements llm.Client.
func (m *MockLLM) Complete(_ context.Context, turns []llm.Turn, _ llm.CompleteOpts) (*llm.Completion, error) {
	text, err := m.respond(turns, false)
	if err != nil {
		return nil, err
	}
	return &llm.Completion{Content: text, Model: "mock", FinishReason: "stop"}, nil
}

// Stream implements llm.Client. The response is delivered in two chunks so
// callers exercise their accumulation path.
func (m *MockLLM) Stream(_ context.Context, turns []llm.Turn, _ llm.CompleteOpts, fn llm.StreamFunc) (*llm.Completion, error) {
	text, err := m.respond(turns, true)
	if err != nil {
		return nil, err
	}

	half := len(text) / 2
	for _, chunk := range []string{text[:half], text[half:]} {
		if chunk == "" {
			continue
		}
		if err := fn(chunk); err != nil {
			return &llm.Completion{Content: chunk, Model: "mock"}, err
		}
	}
	return &llm.Completion{Content: text, Model: "mock", FinishReason: "stop"}, nil
}

func (m *MockLLM) respond(turns []llm.Turn, streamed bool) (string, error) {
	var userText string
	for i := len(turns) - 1; i >= 0; i-- {
		if turns[i].Role == llm.RoleUser {
			userText = turns[i].Content
			break
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.err != nil {
		return "", m.err
	}

	text := m.fallback
	lower := strings.ToLower(userText)
	for _, rule := range m.rules {
		if strings.Contains(lower, rule.pattern) {
			text = rule.response
			break
		}
	}

	m.calls = append(m.calls, MockCall{
		UserMessage: userText,
		Response:    text,
		Streamed:    streamed,
	})
	return text, nil
}
