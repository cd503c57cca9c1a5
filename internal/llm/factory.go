package llm

import (
	"context"
	"fmt"
	"time"

	"tutor_backend/internal/config"
)

// ProviderConfig holds the connection settings shared by all backends.
type ProviderConfig struct {
	APIKey    string
	BaseURL   string
	Model     string
	MaxTokens int
}

// NewGenerator creates a Generator from configuration, wrapped as
// caller → retry → logging → timeout → backend.
func NewGenerator(ctx context.Context, cfg config.AIConfig) (Generator, error) {
	pc := ProviderConfig{
		APIKey:    cfg.APIKey,
		BaseURL:   cfg.BaseURL,
		Model:     cfg.Model,
		MaxTokens: cfg.MaxTokens,
	}

	var base Generator
	var err error

	switch cfg.Provider {
	case "gemini", "":
		base, err = NewGeminiGenerator(ctx, pc)
	case "openai":
		base, err = NewOpenAIGenerator(pc)
	case "anthropic":
		base, err = NewAnthropicGenerator(pc)
	case "mock":
		return NewMockGenerator(), nil
	default:
		return nil, fmt.Errorf("unknown text generation provider: %q", cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("initializing %s generator: %w", cfg.Provider, err)
	}

	retry := DefaultRetryConfig()
	if cfg.MaxAttempts > 0 {
		retry.MaxAttempts = cfg.MaxAttempts
	}

	return WithRetry(WithLogging(WithTimeout(base, cfg.Timeout)), retry), nil
}

// WithTimeout bounds each generation call.
func WithTimeout(g Generator, d time.Duration) Generator {
	if d <= 0 {
		return g
	}
	return &timeoutGenerator{inner: g, timeout: d}
}

type timeoutGenerator struct {
	inner   Generator
	timeout time.Duration
}

func (t *timeoutGenerator) Generate(ctx context.Context, prompt string, attachments []Attachment) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.inner.Generate(ctx, prompt, attachments)
}

func (t *timeoutGenerator) GenerateStream(ctx context.Context, prompt string, attachments []Attachment) (<-chan string, <-chan error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	chunks, errs := t.inner.GenerateStream(ctx, prompt, attachments)

	out := make(chan string)
	errCh := make(chan error, 1)
	go func() {
		defer cancel()
		defer close(out)
		defer close(errCh)
		for c := range chunks {
			if !send(ctx, out, c) {
				drain(chunks, errs)
				errCh <- ctx.Err()
				return
			}
		}
		if err := <-errs; err != nil {
			errCh <- err
		}
	}()
	return out, errCh
}

func (t *timeoutGenerator) ModelID() string {
	return t.inner.ModelID()
}
