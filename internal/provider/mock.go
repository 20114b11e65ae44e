package provider

import (
	"context"
	"fmt"
	"strings"
)

// MockCompleter echoes the prompt; used for local runs without a provider key.
type MockCompleter struct{}

func NewMockCompleter() *MockCompleter {
	return &MockCompleter{}
}

func (m *MockCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return fmt.Sprintf("Thanks for reaching out. You said %q. A teammate can follow up if needed.", strings.TrimSpace(prompt)), nil
}
