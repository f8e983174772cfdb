package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

const defaultUserAgent = "asky/1.0"

// Client talks to OpenAI-compatible chat-completion endpoints. One
// instance is shared across the answer model and the summarization
// model; the Endpoint argument selects which one a call targets.
type Client struct {
	http        *http.Client
	userAgent   string
	retryConfig RetryConfig
}

func NewClient(timeout time.Duration, userAgent string) *Client {
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	return &Client{
		http:        &http.Client{Timeout: timeout},
		userAgent:   userAgent,
		retryConfig: DefaultRetryConfig(),
	}
}

// WithRetryConfig returns a copy using cfg instead of the defaults.
func (c *Client) WithRetryConfig(cfg RetryConfig) *Client {
	copied := *c
	copied.retryConfig = cfg
	return &copied
}

type chatResponse struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
	Usage *wireUsage `json:"usage"`
}

// wireUsage uses pointers so an endpoint that omits a count can be told
// apart from one that reports zero.
type wireUsage struct {
	PromptTokens     *int `json:"prompt_tokens"`
	CompletionTokens *int `json:"completion_tokens"`
}

// Complete sends one chat-completion request and returns the assistant
// message verbatim, tool calls included. Token usage is recorded against
// ep.Alias when tracker is non-nil; counts the endpoint omits are
// estimated at four characters per token.
func (c *Client) Complete(ctx context.Context, ep Endpoint, messages []Message, tools []ToolDefinition, tracker *UsageTracker) (*Message, error) {
	payload := map[string]interface{}{
		"model":    ep.Model,
		"messages": messages,
	}
	if len(tools) > 0 {
		payload["tools"] = tools
		payload["tool_choice"] = "auto"
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal chat request: %w", err)
	}

	sent := EstimateTokens(messages)
	slog.Debug("sending chat request",
		"model", ep.Model,
		"messages", len(messages),
		"tokens_sent", sent)

	raw, err := RetryDo(ctx, c.retryConfig, func() ([]byte, error) {
		return c.post(ctx, ep, data)
	})
	if err != nil {
		return nil, err
	}

	var resp chatResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("decode chat response: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("chat response from %s has no choices", ep.Model)
	}
	msg := resp.Choices[0].Message

	prompt := sent
	completion := 0
	if resp.Usage != nil && resp.Usage.PromptTokens != nil {
		prompt = *resp.Usage.PromptTokens
	}
	if resp.Usage != nil && resp.Usage.CompletionTokens != nil {
		completion = *resp.Usage.CompletionTokens
	} else if b, err := json.Marshal(msg); err == nil {
		completion = len(b) / 4
	}

	if tracker != nil && ep.Alias != "" {
		tracker.Add(ep.Alias, prompt+completion)
	}
	slog.Debug("chat response received",
		"model", ep.Model,
		"prompt_tokens", prompt,
		"completion_tokens", completion,
		"tool_calls", len(msg.ToolCalls))

	return &msg, nil
}

func (c *Client) post(ctx context.Context, ep Endpoint, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ep.BaseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if ep.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+ep.APIKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &transportError{err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &transportError{err: err}
	}
	if resp.StatusCode != http.StatusOK {
		after, ok := ParseRetryAfter(resp.Header.Get("Retry-After"))
		return nil, &HTTPError{
			Status:        resp.StatusCode,
			Body:          string(data),
			RetryAfter:    after,
			HasRetryAfter: ok,
		}
	}
	return data, nil
}
