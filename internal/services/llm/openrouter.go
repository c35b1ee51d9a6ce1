package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"mediafactory/internal/services"
)

const (
	defaultOpenRouterURL = "https://openrouter.ai/api/v1/chat/completions"
	defaultTimeout       = 60 * time.Second
)

// Config holds the OpenRouter connection settings.
type Config struct {
	APIKey         string
	BaseURL        string
	Model          string
	Referer        string
	Title          string
	TimeoutSeconds int
	Temperature    float64
}

// Client talks to an OpenAI-compatible chat completion endpoint, OpenRouter
// by default.
type Client struct {
	cfg   Config
	http  *http.Client
	retry retryPolicy
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.http = client
		}
	}
}

// WithRetryMaxAttempts sets how many requests one completion may take.
func WithRetryMaxAttempts(attempts int) Option {
	return func(c *Client) { c.retry.attempts = attempts }
}

// WithRetryBackoff sets the first retry delay and the cap for later ones.
func WithRetryBackoff(base, maxDelay time.Duration) Option {
	return func(c *Client) {
		c.retry.base = base
		c.retry.max = maxDelay
	}
}

// WithSleeper replaces the retry wait, for tests.
func WithSleeper(sleep func(time.Duration)) Option {
	return func(c *Client) { c.retry.sleep = sleep }
}

// NewClient builds a client. Missing credentials surface on the first call.
func NewClient(cfg Config, opts ...Option) *Client {
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	cfg.BaseURL = strings.TrimSpace(cfg.BaseURL)
	cfg.Model = strings.TrimSpace(cfg.Model)
	cfg.Referer = strings.TrimSpace(cfg.Referer)
	cfg.Title = strings.TrimSpace(cfg.Title)
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultOpenRouterURL
	}
	timeout := defaultTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}

	c := &Client{
		cfg:   cfg,
		http:  &http.Client{Timeout: timeout},
		retry: defaultRetryPolicy(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CompleteJSON returns the JSON document the model produced for the prompts.
// Errors carry a services marker.
func (c *Client) CompleteJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	systemPrompt = strings.TrimSpace(systemPrompt)
	userPrompt = strings.TrimSpace(userPrompt)
	if systemPrompt == "" || userPrompt == "" {
		return "", services.Wrap(services.ErrValidation, "script", "llm complete", "system and user prompts are required", nil)
	}
	return c.complete(ctx, "llm complete", systemPrompt, userPrompt, c.cfg.Temperature)
}

// HealthCheck sends a minimal prompt to confirm the key and model work.
func (c *Client) HealthCheck(ctx context.Context) error {
	content, err := c.complete(ctx, "llm health", "You must respond with JSON only.", `Respond with {"ok":true}`, 0)
	if err != nil {
		return err
	}
	return checkHealthPayload(content)
}

// Provider reports the backend name.
func (c *Client) Provider() string { return ProviderOpenRouter }

// Close is a no-op.
func (c *Client) Close() error { return nil }

func (c *Client) complete(ctx context.Context, op, systemPrompt, userPrompt string, temperature float64) (string, error) {
	if c.cfg.APIKey == "" {
		return "", services.Wrap(services.ErrConfiguration, "script", op, "api key required", nil)
	}
	body := completionRequest{
		Model: c.cfg.Model,
		Messages: []message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		Temperature:    temperature,
		ResponseFormat: responseFormat{Type: "json_object"},
	}
	var content string
	err := c.retry.do(ctx, func() error {
		var err error
		content, err = c.post(ctx, body)
		return err
	})
	if err != nil {
		return "", classifyError(fmt.Errorf("%s: %w", op, err))
	}
	return content, nil
}

type completionRequest struct {
	Model          string         `json:"model"`
	Messages       []message      `json:"messages"`
	Temperature    float64        `json:"temperature"`
	ResponseFormat responseFormat `json:"response_format"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type completionResponse struct {
	Choices []choice `json:"choices"`
	Error   *struct {
		Message string `json:"message"`
	} `json:"error"`
}

type choice struct {
	Message reply `json:"message"`
	// Some providers answer non-streaming requests with the streaming shape.
	Delta        reply  `json:"delta"`
	FinishReason string `json:"finish_reason"`
}

type reply struct {
	Content   string `json:"content"`
	Refusal   string `json:"refusal"`
	ToolCalls []struct {
		Function struct {
			Arguments string `json:"arguments"`
		} `json:"function"`
	} `json:"tool_calls"`
}

// text returns the first non-empty payload of r: content, then tool arguments.
func (r reply) text() string {
	if content := strings.TrimSpace(r.Content); content != "" {
		return content
	}
	for _, call := range r.ToolCalls {
		if args := strings.TrimSpace(call.Function.Arguments); args != "" {
			return args
		}
	}
	return ""
}

// post performs one HTTP round trip and extracts the completion text.
func (c *Client) post(ctx context.Context, body completionRequest) (string, error) {
	encoded, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL, bytes.NewReader(encoded))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.Referer != "" {
		req.Header.Set("HTTP-Referer", c.cfg.Referer)
	}
	if c.cfg.Title != "" {
		req.Header.Set("X-Title", c.cfg.Title)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("send request (timeout %s): %w", c.http.Timeout, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return "", &httpStatusError{
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(raw)),
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}
	}

	var completion completionResponse
	if err := json.Unmarshal(raw, &completion); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if completion.Error != nil {
		return "", fmt.Errorf("provider error: %s", strings.TrimSpace(completion.Error.Message))
	}
	if len(completion.Choices) == 0 {
		return "", &emptyContentError{Snippet: snippet(string(raw))}
	}
	empty := &emptyContentError{Snippet: snippet(string(raw))}
	for _, ch := range completion.Choices {
		if text := ch.Message.text(); text != "" {
			return text, nil
		}
		if text := ch.Delta.text(); text != "" {
			return text, nil
		}
		if empty.FinishReason == "" {
			empty.FinishReason = strings.TrimSpace(ch.FinishReason)
		}
		if empty.Refusal == "" {
			empty.Refusal = strings.TrimSpace(ch.Message.Refusal + ch.Delta.Refusal)
		}
	}
	return "", empty
}
