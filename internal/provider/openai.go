package provider

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	log "github.com/sirupsen/logrus"

	"supportrelay/internal/common"
)

// OpenAIClient calls any OpenAI-compatible chat completions endpoint
type OpenAIClient struct {
	client      *openai.Client
	model       string
	temperature float64
	maxTokens   int
}

var _ common.Completer = (*OpenAIClient)(nil)

func NewOpenAIClient(url, apiKey, model string, temperature float64, maxTokens int) *OpenAIClient {
	options := []option.RequestOption{option.WithBaseURL(url)}

	if apiKey == "" {
		log.Info("OPENAI_API_KEY is not set, will try unauthenticated access")
	} else {
		options = append(options, option.WithAPIKey(apiKey))
	}

	client := openai.NewClient(options...)
	return &OpenAIClient{client: &client, model: model, temperature: temperature, maxTokens: maxTokens}
}

func (c *OpenAIClient) Complete(ctx context.Context, prompt string) (string, error) {
	params := openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		Model: c.model,
	}
	if c.temperature > 0 {
		params.Temperature = openai.Float(c.temperature)
	}
	if c.maxTokens > 0 {
		params.MaxTokens = openai.Int(int64(c.maxTokens))
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", common.NewProviderError("chat completion", err)
	}

	if len(resp.Choices) == 0 {
		return "", common.NewProviderError("chat completion", fmt.Errorf("client didn't return any content choices"))
	}

	return resp.Choices[0].Message.Content, nil
}
