// Package provider holds the completion backends behind common.Completer.
package provider

import (
	"fmt"
	"net/http"
	"time"

	"supportrelay/internal/common"
	"supportrelay/internal/config"
)

const (
	KindAlleAI = "alleai"
	KindOpenAI = "openai"
	KindMock   = "mock"
)

// New returns the Completer selected by PROVIDER_KIND
func New(cfg *config.Config) (common.Completer, error) {
	p := cfg.Provider
	switch p.Kind {
	case KindAlleAI, "":
		httpClient := &http.Client{Timeout: cfg.ProviderTimeout() + 5*time.Second}
		return NewAlleAIClient(httpClient, p.URL, p.APIKey, p.Model, p.Temperature, p.MaxTokens), nil
	case KindOpenAI:
		return NewOpenAIClient(p.URL, p.APIKey, p.Model, p.Temperature, p.MaxTokens), nil
	case KindMock:
		return NewMockCompleter(), nil
	default:
		return nil, fmt.Errorf("unknown provider kind %q", p.Kind)
	}
}
