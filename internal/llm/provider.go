package llm

import (
	"fmt"

	"github.com/sungho-yun/gapsim/internal/domain"
)

// Provider constants
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderGemini    = "gemini"
	ProviderCerebras  = "cerebras"
	ProviderMock      = "mock"
)

// NewClient creates an oracle for one call site. An empty model selects the
// provider's default. Returns an error if the provider is unknown or the API
// key is empty (except for mock).
func NewClient(provider, apiKey, model string) (domain.Oracle, error) {
	switch provider {
	case ProviderOpenAI:
		if apiKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY is required for OpenAI provider")
		}
		return &oracle{provider: provider, c: NewOpenAIClient(apiKey, model)}, nil

	case ProviderAnthropic:
		if apiKey == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY is required for Anthropic provider")
		}
		return &oracle{provider: provider, c: NewAnthropicClient(apiKey, model)}, nil

	case ProviderGemini:
		if apiKey == "" {
			return nil, fmt.Errorf("GEMINI_API_KEY is required for Gemini provider")
		}
		return &oracle{provider: provider, c: NewGeminiClient(apiKey, model)}, nil

	case ProviderCerebras:
		if apiKey == "" {
			return nil, fmt.Errorf("CEREBRAS_API_KEY is required for Cerebras provider")
		}
		return &oracle{provider: provider, c: NewCerebrasClient(apiKey, model)}, nil

	case ProviderMock:
		return NewMockOracle(), nil

	default:
		return nil, fmt.Errorf("unknown oracle provider: %s (valid options: openai, anthropic, gemini, cerebras, mock)", provider)
	}
}
