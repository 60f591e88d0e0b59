// Package llm provides the completion-client boundary: the pipeline's stage
// functions treat content generation and review as opaque calls behind the
// Client interface. The production implementation speaks the
// OpenAI-compatible chat completions protocol; tests use ScriptedClient.
package llm

import "context"

// Request is one chat completion call.
type Request struct {
	Model       string
	System      string
	Prompt      string
	Temperature float64
}

// Client produces a completion for a request. Implementations may block for
// the duration of the external call; callers must not hold locks across
// Complete.
type Client interface {
	Complete(ctx context.Context, req Request) (string, error)
}
