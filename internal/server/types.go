package server

import "github.com/harun/agentgate/pkg/agent"

// agentRequest is the POST /agent request body
type agentRequest struct {
	Instructions string `json:"instructions,omitempty"`
	Prompt       string `json:"prompt"`
	Debug        bool   `json:"debug,omitempty"`
}

// agentResponse is the POST /agent response body
type agentResponse struct {
	Output string      `json:"output"`
	Debug  *agentDebug `json:"debug,omitempty"`
}

// agentDebug carries trace details when debug mode is enabled
type agentDebug struct {
	RequestID    string                 `json:"request_id"`
	Turns        int                    `json:"turns"`
	ToolCalls    []agent.ToolCallRecord `json:"tool_calls,omitempty"`
	InputTokens  int                    `json:"input_tokens"`
	OutputTokens int                    `json:"output_tokens"`
}

// errorResponse mirrors the error body shape clients already expect
type errorResponse struct {
	Detail string `json:"detail"`
}

// healthResponse is the GET /health response body
type healthResponse struct {
	Status    string    `json:"status"`
	LLM       llmHealth `json:"llm"`
	MCP       mcpHealth `json:"mcp"`
	Uptime    float64   `json:"uptime"`
	Timestamp int64     `json:"timestamp"`
}

type llmHealth struct {
	Status   string `json:"status"`
	Provider string `json:"provider,omitempty"`
	Model    string `json:"model,omitempty"`
	Detail   string `json:"detail,omitempty"`
}

type mcpHealth struct {
	Status      string `json:"status"`
	ToolsCached int    `json:"tools_cached"`
	LastError   string `json:"last_error,omitempty"`
}
