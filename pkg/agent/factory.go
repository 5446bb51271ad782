// Package agent provides the LLM client factory. Role loops receive a raw
// provider client; failure policy lives in the orchestrator, not in a
// middleware stack around the client.
package agent

import (
	"fmt"
	"strings"

	"codepilot/pkg/agent/internal/llmimpl/anthropic"
	"codepilot/pkg/agent/internal/llmimpl/google"
	"codepilot/pkg/agent/internal/llmimpl/ollama"
	"codepilot/pkg/agent/internal/llmimpl/openaiofficial"
	"codepilot/pkg/agent/llm"
	"codepilot/pkg/config"
)

// NewLLMClient creates an inference client for the given model name. The
// provider is inferred from the model registry and credentials come from the
// provider's environment variable. For Ollama the credential is the host URL
// and an explicit "ollama:" routing prefix is stripped before the model name
// goes on the wire.
func NewLLMClient(modelName string) (llm.LLMClient, error) {
	provider, err := config.GetModelProvider(modelName)
	if err != nil {
		return nil, fmt.Errorf("failed to get model provider for %s: %w", modelName, err)
	}

	apiKey, err := config.GetAPIKey(provider)
	if err != nil {
		return nil, fmt.Errorf("failed to get API key for provider %s: %w", provider, err)
	}

	switch provider {
	case config.ProviderAnthropic:
		return anthropic.NewClaudeClientWithModel(apiKey, modelName), nil
	case config.ProviderOpenAI:
		return openaiofficial.NewOfficialClientWithModel(apiKey, modelName), nil
	case config.ProviderGoogle:
		return google.NewGeminiClientWithModel(apiKey, modelName), nil
	case config.ProviderOllama:
		return ollama.NewOllamaClientWithModel(apiKey, strings.TrimPrefix(modelName, "ollama:")), nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", provider)
	}
}
