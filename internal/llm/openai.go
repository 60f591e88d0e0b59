package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// DefaultBaseURL targets Groq's OpenAI-compatible endpoint, the provider the
// generation stages were designed against. Any compatible endpoint works.
const DefaultBaseURL = "https://api.groq.com/openai/v1"

const maxAttempts = 3

// HTTPClient is an OpenAI-compatible chat completions client.
type HTTPClient struct {
	apiKey  string
	baseURL string
	httpc   *http.Client
}

// NewHTTPClient creates a client for the given endpoint. An empty baseURL
// selects DefaultBaseURL.
func NewHTTPClient(apiKey, baseURL string) *HTTPClient {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &HTTPClient{
		apiKey:  apiKey,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpc:   &http.Client{Timeout: 5 * time.Minute},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Complete sends the request, retrying transient failures with exponential
// backoff. Rate-limit responses are retried; other non-200 statuses fail
// immediately.
func (c *HTTPClient) Complete(ctx context.Context, req Request) (string, error) {
	if c.apiKey == "" {
		return "", fmt.Errorf("llm: API key not configured")
	}

	var messages []chatMessage
	if req.System != "" {
		messages = append(messages, chatMessage{Role: "system", Content: req.System})
	}
	messages = append(messages, chatMessage{Role: "user", Content: req.Prompt})

	body, err := json.Marshal(chatRequest{
		Model:       req.Model,
		Messages:    messages,
		Temperature: req.Temperature,
	})
	if err != nil {
		return "", fmt.Errorf("llm: marshal request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(time.Duration(1<<uint(attempt-1)) * time.Second):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}

		out, retryable, err := c.send(ctx, body)
		if err == nil {
			return out, nil
		}
		if !retryable {
			return "", err
		}
		lastErr = err
		slog.Debug("llm request retry", "attempt", attempt+1, "error", err)
	}

	return "", fmt.Errorf("llm: retries exhausted: %w", lastErr)
}

func (c *HTTPClient) send(ctx context.Context, body []byte) (out string, retryable bool, err error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", false, fmt.Errorf("llm: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpc.Do(httpReq)
	if err != nil {
		return "", true, fmt.Errorf("llm: request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", true, fmt.Errorf("llm: read response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return "", true, fmt.Errorf("llm: rate limited (429)")
	}
	if resp.StatusCode != http.StatusOK {
		return "", false, fmt.Errorf("llm: status %d: %s", resp.StatusCode, string(data))
	}

	var parsed chatResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", false, fmt.Errorf("llm: parse response: %w", err)
	}
	if parsed.Error != nil {
		return "", false, fmt.Errorf("llm: api error: %s", parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return "", false, fmt.Errorf("llm: no completion returned")
	}

	return strings.TrimSpace(parsed.Choices[0].Message.Content), false, nil
}
