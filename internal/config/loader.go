package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// envBindings maps config keys to the environment variables consumed by
// the service. The variable names match the deployment contract rather
// than a generated prefix scheme.
var envBindings = map[string]string{
	"llm.choice":            "LLM_CHOICE",
	"llm.ollama.model":      "OLLAMA_MODEL",
	"llm.ollama.base_url":   "OLLAMA_BASE_URL",
	"llm.ollama.timeout":    "OLLAMA_TIMEOUT",
	"llm.litellm.model":     "LITELLM_MODEL",
	"llm.litellm.api_key":   "LITELLM_API_KEY",
	"llm.litellm.api_base":  "LITELLM_API_BASE",
	"mcp.server_url":        "MCP_SERVER_URL",
	"mcp.allow_empty_tools": "MCP_ALLOW_EMPTY_TOOLS",
	"mcp.fetch_attempts":    "MCP_FETCH_ATTEMPTS",
	"mcp.retry_base_delay":  "MCP_RETRY_BASE_DELAY",
	"server.host":           "AGENTGATE_HOST",
	"server.port":           "AGENTGATE_PORT",
	"logging.level":         "AGENTGATE_LOG_LEVEL",
	"logging.file":          "AGENTGATE_LOG_FILE",
}

// Loader handles configuration loading
type Loader struct {
	configPath string
}

// NewLoader creates a new config loader
func NewLoader(configPath string) *Loader {
	return &Loader{configPath: configPath}
}

// Load reads configuration from the optional config file and the
// environment. Environment variables win over file values. The result
// is immutable for the lifetime of the process.
func (l *Loader) Load() (*Config, error) {
	v := viper.New()

	// Register defaults for every key so env overrides survive Unmarshal
	defaults := DefaultConfig()
	v.SetDefault("llm.choice", defaults.LLM.Choice)
	v.SetDefault("llm.ollama.model", defaults.LLM.Ollama.Model)
	v.SetDefault("llm.ollama.base_url", defaults.LLM.Ollama.BaseURL)
	v.SetDefault("llm.ollama.timeout", defaults.LLM.Ollama.Timeout)
	v.SetDefault("llm.litellm.model", defaults.LLM.LiteLLM.Model)
	v.SetDefault("llm.litellm.api_key", defaults.LLM.LiteLLM.APIKey)
	v.SetDefault("llm.litellm.api_base", defaults.LLM.LiteLLM.APIBase)
	v.SetDefault("mcp.server_url", defaults.MCP.ServerURL)
	v.SetDefault("mcp.allow_empty_tools", defaults.MCP.AllowEmptyTools)
	v.SetDefault("mcp.fetch_attempts", defaults.MCP.FetchAttempts)
	v.SetDefault("mcp.retry_base_delay", defaults.MCP.RetryBaseDelay)
	v.SetDefault("server.host", defaults.Server.Host)
	v.SetDefault("server.port", defaults.Server.Port)
	v.SetDefault("server.rate_limit_per_minute", defaults.Server.RateLimitPerMinute)
	v.SetDefault("server.request_timeout", defaults.Server.RequestTimeout)
	v.SetDefault("logging.level", defaults.Logging.Level)
	v.SetDefault("logging.file", defaults.Logging.File)
	v.SetDefault("logging.pretty", defaults.Logging.Pretty)
	v.SetDefault("logging.redaction", defaults.Logging.Redaction)
	v.SetDefault("logging.max_size", defaults.Logging.MaxSize)
	v.SetDefault("logging.max_age", defaults.Logging.MaxAge)
	v.SetDefault("logging.compress", defaults.Logging.Compress)

	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", env, err)
		}
	}

	// Optional config file; absence is not an error
	configPath := l.GetConfigPath()
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			v.SetConfigFile(configPath)
			v.SetConfigType("json")
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// GetConfigPath returns the config file path
func (l *Loader) GetConfigPath() string {
	if l.configPath != "" {
		return l.configPath
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".agentgate", "agentgate.json")
}

// Load is a convenience function that creates a loader and loads the config
func Load(configPath string) (*Config, error) {
	loader := NewLoader(configPath)
	return loader.Load()
}
