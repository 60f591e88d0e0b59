package llm

import (
	"context"
	"fmt"
	"sync"
)

type scriptStep struct {
	response string
	err      error
}

// ScriptedClient is a Client for tests: it replays canned completions in
// call order and records every request it sees.
type ScriptedClient struct {
	mu    sync.Mutex
	steps []scriptStep
	calls []Request
}

// NewScriptedClient creates a client that returns the given completions in
// order. When the script runs out, further calls error.
func NewScriptedClient(responses ...string) *ScriptedClient {
	c := &ScriptedClient{}
	for _, r := range responses {
		c.steps = append(c.steps, scriptStep{response: r})
	}
	return c
}

// Enqueue appends a completion to the script.
func (s *ScriptedClient) Enqueue(response string) {
	s.mu.Lock()
	s.steps = append(s.steps, scriptStep{response: response})
	s.mu.Unlock()
}

// EnqueueError appends a failing call to the script.
func (s *ScriptedClient) EnqueueError(err error) {
	s.mu.Lock()
	s.steps = append(s.steps, scriptStep{err: err})
	s.mu.Unlock()
}

// Complete pops the next scripted completion.
func (s *ScriptedClient) Complete(_ context.Context, req Request) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := len(s.calls)
	s.calls = append(s.calls, req)

	if idx >= len(s.steps) {
		return "", fmt.Errorf("scripted client: unexpected call %d (prompt %.60q)", idx+1, req.Prompt)
	}
	step := s.steps[idx]
	if step.err != nil {
		return "", step.err
	}
	return step.response, nil
}

// Calls returns the recorded requests.
func (s *ScriptedClient) Calls() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.calls...)
}
