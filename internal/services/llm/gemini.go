package llm

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"mediafactory/internal/services"
)

// GeminiConfig captures the settings for the Gemini backend.
type GeminiConfig struct {
	APIKey      string
	Model       string
	Temperature float32
	// Options are appended to the client options; tests point the client at a fake endpoint.
	Options []option.ClientOption
}

// GeminiClient implements Completer on top of the Google generative AI SDK.
type GeminiClient struct {
	client *genai.Client
	cfg    GeminiConfig
}

// NewGeminiClient creates a Gemini client. An empty API key is a configuration error.
func NewGeminiClient(ctx context.Context, cfg GeminiConfig) (*GeminiClient, error) {
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	cfg.Model = strings.TrimSpace(cfg.Model)
	if cfg.APIKey == "" {
		return nil, services.Wrap(services.ErrConfiguration, "script", "gemini client", "api key required", nil)
	}
	if cfg.Model == "" {
		return nil, services.Wrap(services.ErrConfiguration, "script", "gemini client", "model required", nil)
	}
	opts := append([]option.ClientOption{option.WithAPIKey(cfg.APIKey)}, cfg.Options...)
	client, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "script", "gemini client", "create client", err)
	}
	return &GeminiClient{client: client, cfg: cfg}, nil
}

// CompleteJSON asks the model for an application/json response.
func (c *GeminiClient) CompleteJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	systemPrompt = strings.TrimSpace(systemPrompt)
	userPrompt = strings.TrimSpace(userPrompt)
	if systemPrompt == "" || userPrompt == "" {
		return "", services.Wrap(services.ErrValidation, "script", "gemini complete", "system and user prompts are required", nil)
	}
	model := c.client.GenerativeModel(c.cfg.Model)
	model.SetTemperature(c.cfg.Temperature)
	model.ResponseMIMEType = "application/json"
	model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(systemPrompt)}}

	resp, err := model.GenerateContent(ctx, genai.Text(userPrompt))
	if err != nil {
		return "", classifyGeminiError(err)
	}
	text, err := geminiText(resp)
	if err != nil {
		return "", err
	}
	return stripFence(strings.TrimSpace(text)), nil
}

// HealthCheck verifies the model answers a trivial JSON prompt.
func (c *GeminiClient) HealthCheck(ctx context.Context) error {
	content, err := c.CompleteJSON(ctx, "You must respond with JSON only.", `Respond with {"ok":true}`)
	if err != nil {
		return err
	}
	if err := checkHealthPayload(content); err != nil {
		return services.Wrap(services.ErrTransient, "script", "gemini health", "unexpected response", err)
	}
	return nil
}

// Provider reports the backend name.
func (c *GeminiClient) Provider() string { return ProviderGemini }

// Close releases the underlying gRPC/HTTP connections.
func (c *GeminiClient) Close() error {
	if c.client == nil {
		return nil
	}
	return c.client.Close()
}

func geminiText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil {
		return "", services.Wrap(services.ErrTransient, "script", "gemini complete", "empty response", nil)
	}
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != genai.BlockReasonUnspecified {
		return "", services.Wrap(services.ErrPermanent, "script", "gemini complete",
			"prompt blocked: "+resp.PromptFeedback.BlockReason.String(), ErrContentRejected)
	}
	if len(resp.Candidates) == 0 {
		return "", services.Wrap(services.ErrTransient, "script", "gemini complete", "no candidates in response", nil)
	}
	candidate := resp.Candidates[0]
	if candidate.FinishReason == genai.FinishReasonSafety {
		return "", services.Wrap(services.ErrPermanent, "script", "gemini complete", "response blocked by safety filter", ErrContentRejected)
	}
	if candidate.Content == nil {
		return "", services.Wrap(services.ErrTransient, "script", "gemini complete", "no content in response", nil)
	}
	var parts []string
	for _, part := range candidate.Content.Parts {
		if text, ok := part.(genai.Text); ok {
			parts = append(parts, string(text))
		}
	}
	if len(parts) == 0 {
		return "", services.Wrap(services.ErrTransient, "script", "gemini complete", "no text parts in response", nil)
	}
	return strings.Join(parts, ""), nil
}

func classifyGeminiError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return services.Wrap(services.ErrTimeout, "script", "gemini complete", "provider did not answer in time", err)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	var blocked *genai.BlockedError
	if errors.As(err, &blocked) {
		return services.Wrap(services.ErrPermanent, "script", "gemini complete", "content blocked", errors.Join(ErrContentRejected, err))
	}
	if code := geminiHTTPCode(err); code > 0 {
		switch {
		case code == http.StatusUnauthorized || code == http.StatusForbidden:
			return services.Wrap(services.ErrConfiguration, "script", "gemini complete", "provider rejected credentials", err)
		case code == http.StatusTooManyRequests || code >= http.StatusInternalServerError:
			return services.Wrap(services.ErrTransient, "script", "gemini complete", "provider unavailable", err)
		case code >= http.StatusBadRequest:
			return services.Wrap(services.ErrPermanent, "script", "gemini complete", "provider rejected the request", err)
		}
	}
	return services.Wrap(services.ErrTransient, "script", "gemini complete", "request failed", err)
}

// httpCoder is implemented by the SDK's apierror.APIError.
type httpCoder interface {
	HTTPCode() int
}

func geminiHTTPCode(err error) int {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	var coder httpCoder
	if errors.As(err, &coder) {
		return coder.HTTPCode()
	}
	return 0
}
