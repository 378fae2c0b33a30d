package openai

import (
	"context"
	"fmt"
	"strings"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/pl-listing/lister/internal/providers"
)

// PerplexityBaseURL is the OpenAI-compatible endpoint of Perplexity.
const PerplexityBaseURL = "https://api.perplexity.ai"

// OpenAI is a provider for OpenAI and OpenAI-compatible chat APIs
type OpenAI struct {
	api *goopenai.Client
}

// New returns a new OpenAI provider. An empty baseURL selects api.openai.com.
func New(apiKey, baseURL string) *OpenAI {
	cfg := goopenai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	return &OpenAI{api: goopenai.NewClientWithConfig(cfg)}
}

// ExtractText sends the prompt and images as one user message
func (o *OpenAI) ExtractText(ctx context.Context, config providers.Config) (string, error) {
	msg := goopenai.ChatCompletionMessage{Role: goopenai.ChatMessageRoleUser}
	if len(config.Images) == 0 {
		msg.Content = config.Prompt
	} else {
		parts := []goopenai.ChatMessagePart{{
			Type: goopenai.ChatMessagePartTypeText,
			Text: config.Prompt,
		}}
		for _, img := range config.Images {
			parts = append(parts, goopenai.ChatMessagePart{
				Type: goopenai.ChatMessagePartTypeImageURL,
				ImageURL: &goopenai.ChatMessageImageURL{
					URL:    img.DataURL(),
					Detail: goopenai.ImageURLDetailAuto,
				},
			})
		}
		msg.MultiContent = parts
	}

	resp, err := o.api.CreateChatCompletion(ctx, goopenai.ChatCompletionRequest{
		Model:       config.Model,
		Messages:    []goopenai.ChatCompletionMessage{msg},
		Temperature: float32(config.Temperature),
	})
	if err != nil {
		return "", fmt.Errorf("openai request failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices returned from OpenAI")
	}

	return resp.Choices[0].Message.Content, nil
}
