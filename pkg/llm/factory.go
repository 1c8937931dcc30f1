package llm

import (
	"strings"

	"github.com/harun/agentgate/internal/config"
)

// Fixed sampling parameters: low randomness keeps tool-call JSON
// formatting consistent across turns.
const (
	defaultTemperature = 0.1
	defaultTopP        = 0.9
)

// Factory builds LLM providers from the process configuration.
// Construction is cheap and side-effect free, so a fresh provider is
// built for every request rather than cached.
type Factory struct {
	cfg *config.Config
}

// NewFactory creates a provider factory
func NewFactory(cfg *config.Config) *Factory {
	return &Factory{cfg: cfg}
}

// New builds the configured provider. Required settings for a provider
// are validated here, only when that provider is actually selected.
func (f *Factory) New() (Provider, error) {
	choice := strings.ToLower(strings.TrimSpace(f.cfg.LLM.Choice))

	switch choice {
	case "":
		return nil, config.NewNotConfigured("LLM_CHOICE")

	case "ollama":
		ollama := f.cfg.LLM.Ollama
		if ollama.Model == "" {
			return nil, config.NewNotConfigured("OLLAMA_MODEL")
		}
		if ollama.BaseURL == "" {
			return nil, config.NewNotConfigured("OLLAMA_BASE_URL")
		}
		return newOllamaProvider(ollama.Model, ollama.BaseURL, f.cfg.OllamaTimeout()), nil

	case "litellm":
		litellm := f.cfg.LLM.LiteLLM
		if litellm.Model == "" {
			return nil, config.NewNotConfigured("LITELLM_MODEL")
		}
		if litellm.APIKey == "" {
			return nil, config.NewNotConfigured("LITELLM_API_KEY")
		}
		if litellm.APIBase == "" {
			return nil, config.NewNotConfigured("LITELLM_API_BASE")
		}
		return newLiteLLMProvider(litellm.Model, litellm.APIKey, litellm.APIBase), nil

	default:
		return nil, &config.NotConfiguredError{
			Setting: "LLM_CHOICE",
			Reason:  "unsupported provider " + f.cfg.LLM.Choice,
		}
	}
}
