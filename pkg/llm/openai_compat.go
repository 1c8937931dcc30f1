package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// ChatProvider implements Provider over any OpenAI-compatible chat
// completions endpoint. Both recognized providers speak this protocol:
// Ollama exposes it under /v1 and LiteLLM proxies it natively.
type ChatProvider struct {
	client      openai.Client
	name        string
	model       string
	temperature float64
	topP        float64
}

// newOllamaProvider builds a provider for an Ollama endpoint. Ollama
// ignores the API key but openai-go sends one, so a placeholder is used.
func newOllamaProvider(model, baseURL string, timeout time.Duration) *ChatProvider {
	return &ChatProvider{
		client: openai.NewClient(
			option.WithAPIKey("ollama"),
			option.WithBaseURL(ollamaCompatURL(baseURL)),
			option.WithRequestTimeout(timeout),
		),
		name:        "ollama",
		model:       model,
		temperature: defaultTemperature,
		topP:        defaultTopP,
	}
}

// newLiteLLMProvider builds a provider for a LiteLLM proxy
func newLiteLLMProvider(model, apiKey, apiBase string) *ChatProvider {
	return &ChatProvider{
		client: openai.NewClient(
			option.WithAPIKey(apiKey),
			option.WithBaseURL(strings.TrimSuffix(apiBase, "/")),
		),
		name:        "litellm",
		model:       model,
		temperature: defaultTemperature,
		topP:        defaultTopP,
	}
}

// ollamaCompatURL appends the OpenAI-compatible path to an Ollama base URL
func ollamaCompatURL(baseURL string) string {
	trimmed := strings.TrimSuffix(baseURL, "/")
	if strings.HasSuffix(trimmed, "/v1") {
		return trimmed
	}
	return trimmed + "/v1"
}

// Name returns the provider name
func (p *ChatProvider) Name() string {
	return p.name
}

// Model returns the configured model identifier
func (p *ChatProvider) Model() string {
	return p.model
}

// Complete makes a chat completion call
func (p *ChatProvider) Complete(ctx context.Context, request Request) (*Response, error) {
	messages := []openai.ChatCompletionMessageParamUnion{}

	if request.SystemPrompt != "" {
		messages = append(messages, openai.SystemMessage(request.SystemPrompt))
	}

	for _, msg := range request.Messages {
		switch msg.Role {
		case "system":
			// Already handled above
			continue
		case "user":
			messages = append(messages, openai.UserMessage(msg.Content))
		case "assistant":
			if len(msg.ToolCalls) > 0 {
				toolCalls := []openai.ChatCompletionMessageToolCall{}
				for _, tc := range msg.ToolCalls {
					argsJSON, err := json.Marshal(tc.Arguments)
					if err != nil {
						return nil, fmt.Errorf("failed to marshal tool arguments: %w", err)
					}

					toolCalls = append(toolCalls, openai.ChatCompletionMessageToolCall{
						ID:   tc.ID,
						Type: "function",
						Function: openai.ChatCompletionMessageToolCallFunction{
							Name:      tc.Name,
							Arguments: string(argsJSON),
						},
					})
				}

				assistantMsg := openai.ChatCompletionMessage{
					Role:      "assistant",
					Content:   msg.Content,
					ToolCalls: toolCalls,
				}
				messages = append(messages, assistantMsg.ToParam())
			} else {
				messages = append(messages, openai.AssistantMessage(msg.Content))
			}
		case "tool":
			messages = append(messages, openai.ToolMessage(msg.Content, msg.ToolCallID))
		}
	}

	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(p.model),
		Messages:    messages,
		Temperature: openai.Float(p.temperature),
		TopP:        openai.Float(p.topP),
	}

	if len(request.Tools) > 0 {
		tools := []openai.ChatCompletionToolParam{}
		for _, tool := range request.Tools {
			schema := tool.InputSchema
			if schema == nil {
				schema = map[string]interface{}{"type": "object"}
			}
			tools = append(tools, openai.ChatCompletionToolParam{
				Type: "function",
				Function: openai.FunctionDefinitionParam{
					Name:        tool.Name,
					Description: openai.String(tool.Description),
					Parameters:  openai.FunctionParameters(schema),
				},
			})
		}
		params.Tools = tools
	}

	response, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, err
	}

	if len(response.Choices) == 0 {
		return nil, fmt.Errorf("no response choices returned")
	}

	choice := response.Choices[0]

	toolCalls := []ToolCall{}
	for _, tc := range choice.Message.ToolCalls {
		var args map[string]interface{}
		if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
			return nil, fmt.Errorf("error parsing tool call arguments for %s: %w", tc.Function.Name, err)
		}

		toolCalls = append(toolCalls, ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: args,
		})
	}

	return &Response{
		Content:   choice.Message.Content,
		ToolCalls: toolCalls,
		Usage: &TokenUsage{
			InputTokens:  int(response.Usage.PromptTokens),
			OutputTokens: int(response.Usage.CompletionTokens),
		},
	}, nil
}
