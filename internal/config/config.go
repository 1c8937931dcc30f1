package config

import (
	"encoding/json"
	"fmt"
	"time"
)

// Config represents the agentgate service configuration
type Config struct {
	// LLM provider selection and per-provider settings
	LLM LLMConfig `json:"llm" mapstructure:"llm"`

	// MCP tool server settings
	MCP MCPConfig `json:"mcp" mapstructure:"mcp"`

	// HTTP server settings
	Server ServerConfig `json:"server" mapstructure:"server"`

	// Logging
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`
}

// LLMConfig holds provider choice and per-provider settings.
// Required fields are validated lazily: only when the provider is
// actually selected for a request, never at load time.
type LLMConfig struct {
	Choice  string        `json:"choice" mapstructure:"choice"` // ollama, litellm
	Ollama  OllamaConfig  `json:"ollama" mapstructure:"ollama"`
	LiteLLM LiteLLMConfig `json:"litellm" mapstructure:"litellm"`
}

// OllamaConfig holds settings for a local or remote Ollama endpoint
type OllamaConfig struct {
	Model   string  `json:"model" mapstructure:"model"`
	BaseURL string  `json:"base_url" mapstructure:"base_url"`
	Timeout float64 `json:"timeout" mapstructure:"timeout"` // seconds
}

// LiteLLMConfig holds settings for a LiteLLM proxy
type LiteLLMConfig struct {
	Model   string `json:"model" mapstructure:"model"`
	APIKey  string `json:"api_key" mapstructure:"api_key"`
	APIBase string `json:"api_base" mapstructure:"api_base"`
}

// MCPConfig holds remote tool server settings
type MCPConfig struct {
	ServerURL string `json:"server_url" mapstructure:"server_url"`

	// AllowEmptyTools accepts a zero-tool listing as a valid result.
	// Off by default: a cold or misconfigured MCP server often answers
	// with an empty list before its tools are registered.
	AllowEmptyTools bool `json:"allow_empty_tools" mapstructure:"allow_empty_tools"`

	FetchAttempts  int           `json:"fetch_attempts" mapstructure:"fetch_attempts"`
	RetryBaseDelay time.Duration `json:"retry_base_delay" mapstructure:"retry_base_delay"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Host               string  `json:"host" mapstructure:"host"`
	Port               int     `json:"port" mapstructure:"port"`
	RateLimitPerMinute int     `json:"rate_limit_per_minute" mapstructure:"rate_limit_per_minute"`
	RequestTimeout     float64 `json:"request_timeout" mapstructure:"request_timeout"` // seconds, 0 disables
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level     string `json:"level" mapstructure:"level"`
	File      string `json:"file" mapstructure:"file"`
	Pretty    bool   `json:"pretty" mapstructure:"pretty"`
	Redaction bool   `json:"redaction" mapstructure:"redaction"`
	MaxSize   int    `json:"max_size" mapstructure:"max_size"` // MB
	MaxAge    int    `json:"max_age" mapstructure:"max_age"`   // days
	Compress  bool   `json:"compress" mapstructure:"compress"`
}

// DefaultConfig returns a config with default values. Only the Ollama
// request timeout carries a documented default; provider settings are
// otherwise empty until supplied by the environment.
func DefaultConfig() *Config {
	return &Config{
		LLM: LLMConfig{
			Ollama: OllamaConfig{
				Timeout: 120, // keep this default for safety
			},
		},
		MCP: MCPConfig{
			FetchAttempts:  3,
			RetryBaseDelay: 500 * time.Millisecond,
		},
		Server: ServerConfig{
			Host:               "0.0.0.0",
			Port:               8000,
			RateLimitPerMinute: 100,
		},
		Logging: LoggingConfig{
			Level:     "info",
			Pretty:    true,
			Redaction: true,
			MaxSize:   100,
			MaxAge:    7,
			Compress:  true,
		},
	}
}

// String returns a JSON representation of the config with credentials masked
func (c *Config) String() string {
	masked := *c
	masked.LLM.LiteLLM.APIKey = MaskSecret(c.LLM.LiteLLM.APIKey)
	data, _ := json.MarshalIndent(masked, "", "  ")
	return string(data)
}

// MaskSecret hides all but the last four characters of a credential
func MaskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 4 {
		return "****"
	}
	masked := make([]byte, len(s)-4)
	for i := range masked {
		masked[i] = '*'
	}
	return string(masked) + s[len(s)-4:]
}

// Validate checks structural sanity of the configuration. Provider
// required-field checks are intentionally absent; the LLM factory
// performs them when the provider is selected.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server port %d out of range", c.Server.Port)
	}
	if c.Server.RateLimitPerMinute < 0 {
		return fmt.Errorf("rate limit per minute cannot be negative")
	}
	if c.Server.RequestTimeout < 0 {
		return fmt.Errorf("request timeout cannot be negative")
	}
	if c.MCP.FetchAttempts < 1 {
		return fmt.Errorf("mcp fetch attempts must be at least 1")
	}
	if c.MCP.RetryBaseDelay < 0 {
		return fmt.Errorf("mcp retry base delay cannot be negative")
	}
	if c.LLM.Ollama.Timeout <= 0 {
		return fmt.Errorf("ollama timeout must be positive")
	}
	return nil
}

// OllamaTimeout returns the Ollama request timeout as a duration
func (c *Config) OllamaTimeout() time.Duration {
	return time.Duration(c.LLM.Ollama.Timeout * float64(time.Second))
}

// RequestTimeout returns the HTTP read timeout as a duration; zero
// means no limit
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.Server.RequestTimeout * float64(time.Second))
}
