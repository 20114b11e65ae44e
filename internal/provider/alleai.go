package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"

	"supportrelay/internal/common"
)

// maxErrorBody caps how much of a failed response ends up in logs
const maxErrorBody = 512

// AlleAIClient talks to the multi-model Alle-AI chat completions endpoint.
type AlleAIClient struct {
	httpClient  *http.Client
	url         string
	apiKey      string
	model       string
	temperature float64
	maxTokens   int
}

var _ common.Completer = (*AlleAIClient)(nil)

func NewAlleAIClient(httpClient *http.Client, url, apiKey, model string, temperature float64, maxTokens int) *AlleAIClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if apiKey == "" {
		log.Warn("ALLEAI_API_KEY is not set, provider calls will likely fail and fall back")
	}
	return &AlleAIClient{
		httpClient:  httpClient,
		url:         url,
		apiKey:      apiKey,
		model:       model,
		temperature: temperature,
		maxTokens:   maxTokens,
	}
}

type alleAIContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type alleAIMessage struct {
	User []alleAIContent `json:"user"`
}

type alleAIRequest struct {
	Models         []string          `json:"models"`
	Messages       []alleAIMessage   `json:"messages"`
	ResponseFormat map[string]string `json:"response_format"`
	Temperature    float64           `json:"temperature"`
	MaxTokens      int               `json:"max_tokens"`
	Stream         bool              `json:"stream"`
}

func (c *AlleAIClient) buildRequest(prompt string) alleAIRequest {
	return alleAIRequest{
		Models:         []string{c.model},
		Messages:       []alleAIMessage{{User: []alleAIContent{{Type: "text", Text: prompt}}}},
		ResponseFormat: map[string]string{"type": "text"},
		Temperature:    c.temperature,
		MaxTokens:      c.maxTokens,
		Stream:         false,
	}
}

// replyPath locates the model's answer. Dots in model names are escaped
// so "gpt-4.1" stays one path segment.
func (c *AlleAIClient) replyPath() string {
	model := strings.ReplaceAll(c.model, ".", `\.`)
	return fmt.Sprintf("responses.responses.%s.message.content", model)
}

func (c *AlleAIClient) Complete(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(c.buildRequest(prompt))
	if err != nil {
		return "", common.NewProviderError("encode request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return "", common.NewProviderError("build request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-KEY", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", common.NewProviderError("call", errors.Wrapf(err, "POST %s", c.url))
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", common.NewProviderError("read response", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet := string(data)
		if len(snippet) > maxErrorBody {
			snippet = snippet[:maxErrorBody]
		}
		return "", common.NewProviderError("call", errors.Errorf("status %d: %s", resp.StatusCode, snippet))
	}

	if !gjson.ValidBytes(data) {
		return "", common.NewProviderError("decode response", errors.New("response is not valid JSON"))
	}

	reply := gjson.GetBytes(data, c.replyPath())
	if !reply.Exists() {
		return "", common.NewProviderError("decode response", errors.Errorf("no content for model %s", c.model))
	}
	return reply.String(), nil
}
