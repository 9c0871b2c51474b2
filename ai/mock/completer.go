package mock

import (
	"context"
	"errors"
	"sync"
)

// ErrNoResponses is returned when a MockCompleter has run out of scripted replies.
var ErrNoResponses = errors.New("mock completer: no responses left")

// Call records one Complete invocation.
type Call struct {
	System string
	Prompt string
}

// MockCompleter is a test double for ai.Completer.
// By default it returns the scripted Responses in order.
type MockCompleter struct {
	// CompleteFunc is called by Complete if set.
	CompleteFunc func(ctx context.Context, system, prompt string) (string, error)

	// Responses are returned one per call when CompleteFunc is nil.
	Responses []string

	mu    sync.Mutex
	calls []Call
}

// NewMockCompleter creates a mock completer that replies with responses in order.
func NewMockCompleter(responses ...string) *MockCompleter {
	return &MockCompleter{Responses: responses}
}

// Complete returns the next scripted response.
func (m *MockCompleter) Complete(ctx context.Context, system, prompt string) (string, error) {
	m.mu.Lock()
	m.calls = append(m.calls, Call{System: system, Prompt: prompt})
	fn := m.CompleteFunc
	var reply string
	var err error
	if fn == nil {
		if len(m.Responses) == 0 {
			err = ErrNoResponses
		} else {
			reply, m.Responses = m.Responses[0], m.Responses[1:]
		}
	}
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, system, prompt)
	}
	return reply, err
}

// CallCount returns the number of times Complete was called.
func (m *MockCompleter) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// Calls returns the recorded invocations in order.
func (m *MockCompleter) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Call(nil), m.calls...)
}

// Reset clears recorded calls, scripted responses and custom functions.
func (m *MockCompleter) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
	m.Responses = nil
	m.CompleteFunc = nil
}
