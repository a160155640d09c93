// Package llmimpl constructs concrete LLM clients by provider name.
package llmimpl

import (
	"fmt"
	"os"

	"devteam/pkg/agent"
	"devteam/pkg/agent/llmimpl/anthropic"
	"devteam/pkg/agent/llmimpl/openai"
)

// Provider names accepted by NewClient.
const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
)

// Environment variables holding provider API keys.
const (
	EnvAnthropicAPIKey = "ANTHROPIC_API_KEY"
	EnvOpenAIAPIKey    = "OPENAI_API_KEY"
)

// NewClient creates a provider client for the given model, reading the API
// key from the provider's environment variable.
func NewClient(provider, model string) (agent.LLMClient, error) {
	switch provider {
	case ProviderAnthropic:
		apiKey := os.Getenv(EnvAnthropicAPIKey)
		if apiKey == "" {
			return nil, fmt.Errorf("%w: %s not set", agent.ErrMissingAPIKey, EnvAnthropicAPIKey)
		}
		return anthropic.NewClaudeClient(apiKey, model), nil
	case ProviderOpenAI:
		apiKey := os.Getenv(EnvOpenAIAPIKey)
		if apiKey == "" {
			return nil, fmt.Errorf("%w: %s not set", agent.ErrMissingAPIKey, EnvOpenAIAPIKey)
		}
		return openai.NewClient(apiKey, model), nil
	default:
		return nil, fmt.Errorf("unknown LLM provider: %q", provider)
	}
}

// NewRetryingClient creates a provider client wrapped with default retry
// behavior for transient API failures.
func NewRetryingClient(provider, model string) (agent.LLMClient, error) {
	client, err := NewClient(provider, model)
	if err != nil {
		return nil, err
	}
	return agent.NewRetryableClient(client, agent.DefaultRetryConfig), nil
}
