// Package elevenlabs is a minimal client for the ElevenLabs text-to-speech API.
package elevenlabs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"mediafactory/internal/services"
)

const (
	defaultBaseURL  = "https://api.elevenlabs.io/v1"
	defaultModelID  = "eleven_multilingual_v2"
	defaultTimeout  = 120 * time.Second
	maxErrorSnippet = 512
)

// Config captures the runtime settings required to talk to ElevenLabs.
type Config struct {
	APIKey  string
	BaseURL string
	ModelID string
	Timeout time.Duration
}

// Client wraps the text-to-speech endpoint.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// NewClient constructs a client from cfg.
func NewClient(cfg Config, opts ...Option) *Client {
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if strings.TrimSpace(cfg.ModelID) == "" {
		cfg.ModelID = defaultModelID
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	client := &Client{cfg: cfg, httpClient: &http.Client{Timeout: cfg.Timeout}}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// Configured reports whether an API key is present.
func (c *Client) Configured() bool {
	return c != nil && c.cfg.APIKey != ""
}

type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

type synthesisRequest struct {
	Text          string        `json:"text"`
	ModelID       string        `json:"model_id"`
	VoiceSettings voiceSettings `json:"voice_settings"`
}

// Synthesize converts text into MP3 audio spoken by voiceID.
func (c *Client) Synthesize(ctx context.Context, voiceID, text string) ([]byte, error) {
	if !c.Configured() {
		return nil, services.Wrap(services.ErrConfiguration, "voice", "elevenlabs synthesize", "api key required", nil)
	}
	voiceID = strings.TrimSpace(voiceID)
	if voiceID == "" || strings.TrimSpace(text) == "" {
		return nil, services.Wrap(services.ErrValidation, "voice", "elevenlabs synthesize", "voice and text are required", nil)
	}
	body, err := json.Marshal(synthesisRequest{
		Text:          text,
		ModelID:       c.cfg.ModelID,
		VoiceSettings: voiceSettings{Stability: 0.5, SimilarityBoost: 0.75},
	})
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: encode body: %w", err)
	}
	endpoint := c.cfg.BaseURL + "/text-to-speech/" + url.PathEscape(voiceID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: new request: %w", err)
	}
	req.Header.Set("xi-api-key", c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/mpeg")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, services.Wrap(services.ErrTransient, "voice", "elevenlabs synthesize", "request failed", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorSnippet))
		return nil, services.Wrap(services.StatusMarker(resp.StatusCode), "voice", "elevenlabs synthesize",
			fmt.Sprintf("http %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet))), nil)
	}
	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "voice", "elevenlabs synthesize", "read audio", err)
	}
	if len(audio) == 0 {
		return nil, services.Wrap(services.ErrTransient, "voice", "elevenlabs synthesize", "empty audio response", nil)
	}
	return audio, nil
}

// HealthCheck verifies the API key against the user endpoint.
func (c *Client) HealthCheck(ctx context.Context) error {
	if !c.Configured() {
		return services.Wrap(services.ErrConfiguration, "voice", "elevenlabs health", "api key required", nil)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/user", nil)
	if err != nil {
		return fmt.Errorf("elevenlabs: new request: %w", err)
	}
	req.Header.Set("xi-api-key", c.cfg.APIKey)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return services.Wrap(services.ErrTransient, "voice", "elevenlabs health", "request failed", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusOK {
		return services.Wrap(services.StatusMarker(resp.StatusCode), "voice", "elevenlabs health", fmt.Sprintf("http %d", resp.StatusCode), nil)
	}
	return nil
}
