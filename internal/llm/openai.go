package llm

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIGenerator implements Generator against any OpenAI-compatible
// chat completions API (OpenAI, OpenRouter, DeepSeek, local gateways).
type OpenAIGenerator struct {
	client    *openai.Client
	model     string
	maxTokens int
}

func NewOpenAIGenerator(cfg ProviderConfig) (*OpenAIGenerator, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai API key is required")
	}

	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}

	model := cfg.Model
	if model == "" {
		model = openai.GPT4oMini
	}

	return &OpenAIGenerator{
		client:    openai.NewClientWithConfig(config),
		model:     model,
		maxTokens: cfg.MaxTokens,
	}, nil
}

func (g *OpenAIGenerator) Generate(ctx context.Context, prompt string, attachments []Attachment) (string, error) {
	resp, err := g.client.CreateChatCompletion(ctx, g.request(prompt, attachments, false))
	if err != nil {
		return "", mapOpenAIError(err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}

	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

func (g *OpenAIGenerator) GenerateStream(ctx context.Context, prompt string, attachments []Attachment) (<-chan string, <-chan error) {
	out := make(chan string)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		stream, err := g.client.CreateChatCompletionStream(ctx, g.request(prompt, attachments, true))
		if err != nil {
			errCh <- mapOpenAIError(err)
			return
		}
		defer stream.Close()

		for {
			resp, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				errCh <- mapOpenAIError(err)
				return
			}
			if len(resp.Choices) == 0 || resp.Choices[0].Delta.Content == "" {
				continue
			}
			if !send(ctx, out, resp.Choices[0].Delta.Content) {
				errCh <- ctx.Err()
				return
			}
		}
	}()

	return out, errCh
}

func (g *OpenAIGenerator) ModelID() string {
	return g.model
}

func (g *OpenAIGenerator) request(prompt string, attachments []Attachment, stream bool) openai.ChatCompletionRequest {
	req := openai.ChatCompletionRequest{
		Model:    g.model,
		Messages: []openai.ChatCompletionMessage{buildOpenAIMessage(prompt, attachments)},
		Stream:   stream,
	}
	if g.maxTokens > 0 {
		req.MaxCompletionTokens = g.maxTokens
	}
	return req
}

// 图片以 data URL 形式发送，其余附件只在文本中列出
func buildOpenAIMessage(prompt string, attachments []Attachment) openai.ChatCompletionMessage {
	var images, skipped []Attachment
	for _, a := range attachments {
		if a.IsImage() {
			images = append(images, a)
		} else {
			skipped = append(skipped, a)
		}
	}
	text := describeAttachments(prompt, skipped)

	if len(images) == 0 {
		return openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: text}
	}

	parts := []openai.ChatMessagePart{{Type: openai.ChatMessagePartTypeText, Text: text}}
	for _, img := range images {
		parts = append(parts, openai.ChatMessagePart{
			Type: openai.ChatMessagePartTypeImageURL,
			ImageURL: &openai.ChatMessageImageURL{
				URL:    "data:" + img.MIMEType + ";base64," + base64.StdEncoding.EncodeToString(img.Data),
				Detail: openai.ImageURLDetailAuto,
			},
		})
	}
	return openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, MultiContent: parts}
}

func mapOpenAIError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return classifyStatus(apiErr.HTTPStatusCode, err)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return classifyStatus(reqErr.HTTPStatusCode, err)
	}
	return &ErrProviderUnavailable{Err: err}
}
