package llm

import (
	"context"
	"strings"
)

// Provider is an interface for LLM API providers
type Provider interface {
	// Complete makes a chat completion call
	Complete(ctx context.Context, request Request) (*Response, error)

	// Name returns the provider name
	Name() string

	// Model returns the configured model identifier
	Model() string
}

// Request contains the request parameters for a completion call
type Request struct {
	Messages     []Message
	Tools        []ToolDefinition
	SystemPrompt string
}

// Response contains the response from the LLM
type Response struct {
	Content   string
	ToolCalls []ToolCall
	Usage     *TokenUsage
}

// Message represents a message in the conversation
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

// ToolCall represents a tool invocation requested by the model
type ToolCall struct {
	ID        string                 `json:"id"`
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments"`
}

// ToolDefinition describes a callable tool exposed to the model
type ToolDefinition struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"input_schema"`
}

// TokenUsage tracks token consumption
type TokenUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// IsRetryableError checks if an error should be retried
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}

	errMsg := err.Error()

	// Network errors
	if strings.Contains(errMsg, "connection refused") ||
		strings.Contains(errMsg, "connection reset") ||
		strings.Contains(errMsg, "timeout") {
		return true
	}

	// Rate limits
	if strings.Contains(errMsg, "429") || strings.Contains(errMsg, "rate limit") {
		return true
	}

	// Server errors
	if strings.Contains(errMsg, "500") || strings.Contains(errMsg, "502") ||
		strings.Contains(errMsg, "503") || strings.Contains(errMsg, "504") {
		return true
	}

	return false
}
