package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

var geminiModels = map[string]string{
	"gemini-flash": "gemini-1.5-flash",
	"gemini-pro":   "gemini-1.5-pro",
}

// GeminiGenerator implements Generator using the Google Gemini SDK.
type GeminiGenerator struct {
	client    *genai.Client
	model     string
	maxTokens int32
}

func NewGeminiGenerator(ctx context.Context, cfg ProviderConfig) (*GeminiGenerator, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create Gemini client: %w", err)
	}

	return &GeminiGenerator{
		client:    client,
		model:     resolveModel(cfg.Model, geminiModels),
		maxTokens: int32(cfg.MaxTokens),
	}, nil
}

func (g *GeminiGenerator) Generate(ctx context.Context, prompt string, attachments []Attachment) (string, error) {
	result, err := g.client.Models.GenerateContent(ctx, g.model, buildGeminiContents(prompt, attachments), g.config())
	if err != nil {
		return "", mapGeminiError(err)
	}

	text := strings.TrimSpace(result.Text())
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

func (g *GeminiGenerator) GenerateStream(ctx context.Context, prompt string, attachments []Attachment) (<-chan string, <-chan error) {
	out := make(chan string)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		contents := buildGeminiContents(prompt, attachments)
		for resp, err := range g.client.Models.GenerateContentStream(ctx, g.model, contents, g.config()) {
			if err != nil {
				errCh <- mapGeminiError(err)
				return
			}
			text := resp.Text()
			if text == "" {
				continue
			}
			if !send(ctx, out, text) {
				errCh <- ctx.Err()
				return
			}
		}
	}()

	return out, errCh
}

func (g *GeminiGenerator) ModelID() string {
	return g.model
}

func (g *GeminiGenerator) config() *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{}
	if g.maxTokens > 0 {
		cfg.MaxOutputTokens = g.maxTokens
	}
	return cfg
}

func buildGeminiContents(prompt string, attachments []Attachment) []*genai.Content {
	parts := []*genai.Part{{Text: prompt}}
	for _, a := range attachments {
		parts = append(parts, genai.NewPartFromBytes(a.Data, a.MIMEType))
	}
	return []*genai.Content{{Role: genai.RoleUser, Parts: parts}}
}

func mapGeminiError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var apiErr *genai.APIError
	if errors.As(err, &apiErr) {
		return classifyStatus(apiErr.Code, err)
	}
	return &ErrProviderUnavailable{Err: err}
}

// resolveModel maps a friendly model name to a provider model ID.
func resolveModel(name string, models map[string]string) string {
	if id, ok := models[name]; ok {
		return id
	}
	return name
}
