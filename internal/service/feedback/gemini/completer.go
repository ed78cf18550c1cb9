// Package gemini implements the feedback completer on the Gemini API.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"interview-session-service/internal/observability/logging"
	"interview-session-service/internal/service/feedback"
)

// DefaultModel is used when Config.Model is empty.
const DefaultModel = "gemini-2.5-flash"

// Config configures the Gemini client.
type Config struct {
	APIKey string
	Model  string
	// BaseURL overrides the API endpoint.
	BaseURL string
}

// Completer calls GenerateContent for each request.
type Completer struct {
	client *genai.Client
	model  string
}

// New creates a completer.
func New(ctx context.Context, cfg Config) (*Completer, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("gemini: api key is required")
	}
	cc := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	logger := logging.WithComponent("gemini")
	logger.Info().Str("model", model).Msg("Gemini completer initialized")
	return &Completer{client: client, model: model}, nil
}

func (c *Completer) Complete(ctx context.Context, req feedback.Request) (string, error) {
	gc := &genai.GenerateContentConfig{
		Temperature:      genai.Ptr(float32(req.Temperature)),
		TopP:             genai.Ptr(float32(req.TopP)),
		TopK:             genai.Ptr(float32(req.TopK)),
		MaxOutputTokens:  int32(req.MaxOutputTokens),
		ResponseMIMEType: "application/json",
	}
	resp, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(req.Prompt), gc)
	if err != nil {
		return "", wrap(err)
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", feedback.ErrEmptyCompletion
	}
	return text, nil
}

// wrap attaches the HTTP status of API errors so they can be classified.
func wrap(err error) error {
	var apiErr *genai.APIError
	if errors.As(err, &apiErr) {
		return &feedback.CompletionError{StatusCode: apiErr.Code, Err: err}
	}
	return &feedback.CompletionError{Err: err}
}
