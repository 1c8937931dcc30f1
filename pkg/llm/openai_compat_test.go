package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// completionServer returns a test server that answers every chat
// completion request with the given body
func completionServer(t *testing.T, body string, capture *map[string]interface{}) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if capture != nil {
			var req map[string]interface{}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			*capture = req
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body))
	}))
}

func TestChatProviderComplete(t *testing.T) {
	t.Run("text response", func(t *testing.T) {
		var captured map[string]interface{}
		srv := completionServer(t, `{
			"id": "chatcmpl-1",
			"choices": [{"index": 0, "message": {"role": "assistant", "content": "hello there"}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 12, "completion_tokens": 4}
		}`, &captured)
		defer srv.Close()

		provider := newOllamaProvider("test-model", srv.URL, 5*time.Second)
		response, err := provider.Complete(context.Background(), Request{
			Messages:     []Message{{Role: "user", Content: "hi"}},
			SystemPrompt: "be brief",
		})

		require.NoError(t, err)
		assert.Equal(t, "hello there", response.Content)
		assert.Empty(t, response.ToolCalls)
		assert.Equal(t, 12, response.Usage.InputTokens)
		assert.Equal(t, 4, response.Usage.OutputTokens)

		// Sampling parameters are always sent
		assert.InDelta(t, 0.1, captured["temperature"], 0.001)
		assert.InDelta(t, 0.9, captured["top_p"], 0.001)

		messages := captured["messages"].([]interface{})
		require.Len(t, messages, 2)
		first := messages[0].(map[string]interface{})
		assert.Equal(t, "system", first["role"])
	})

	t.Run("tool call response", func(t *testing.T) {
		srv := completionServer(t, `{
			"id": "chatcmpl-2",
			"choices": [{"index": 0, "message": {"role": "assistant", "content": "", "tool_calls": [
				{"id": "call_1", "type": "function", "function": {"name": "search", "arguments": "{\"query\": \"weather\"}"}}
			]}, "finish_reason": "tool_calls"}],
			"usage": {"prompt_tokens": 20, "completion_tokens": 8}
		}`, nil)
		defer srv.Close()

		provider := newLiteLLMProvider("gpt-4o-mini", "sk-test", srv.URL)
		response, err := provider.Complete(context.Background(), Request{
			Messages: []Message{{Role: "user", Content: "weather?"}},
			Tools: []ToolDefinition{{
				Name:        "search",
				Description: "web search",
				InputSchema: map[string]interface{}{"type": "object"},
			}},
		})

		require.NoError(t, err)
		require.Len(t, response.ToolCalls, 1)
		assert.Equal(t, "call_1", response.ToolCalls[0].ID)
		assert.Equal(t, "search", response.ToolCalls[0].Name)
		assert.Equal(t, "weather", response.ToolCalls[0].Arguments["query"])
	})

	t.Run("malformed tool call arguments", func(t *testing.T) {
		srv := completionServer(t, `{
			"id": "chatcmpl-3",
			"choices": [{"index": 0, "message": {"role": "assistant", "content": "", "tool_calls": [
				{"id": "call_1", "type": "function", "function": {"name": "search", "arguments": "{not valid json"}}
			]}, "finish_reason": "tool_calls"}],
			"usage": {"prompt_tokens": 20, "completion_tokens": 8}
		}`, nil)
		defer srv.Close()

		provider := newOllamaProvider("test-model", srv.URL, 5*time.Second)
		_, err := provider.Complete(context.Background(), Request{
			Messages: []Message{{Role: "user", Content: "weather?"}},
		})

		require.Error(t, err)
		assert.Contains(t, err.Error(), "error parsing tool call")
	})

	t.Run("no choices", func(t *testing.T) {
		srv := completionServer(t, `{"id": "chatcmpl-4", "choices": [], "usage": {"prompt_tokens": 1, "completion_tokens": 0}}`, nil)
		defer srv.Close()

		provider := newOllamaProvider("test-model", srv.URL, 5*time.Second)
		_, err := provider.Complete(context.Background(), Request{
			Messages: []Message{{Role: "user", Content: "hi"}},
		})

		require.Error(t, err)
		assert.Contains(t, err.Error(), "no response choices")
	})

	t.Run("tool results round-trip", func(t *testing.T) {
		var captured map[string]interface{}
		srv := completionServer(t, `{
			"id": "chatcmpl-5",
			"choices": [{"index": 0, "message": {"role": "assistant", "content": "done"}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 30, "completion_tokens": 2}
		}`, &captured)
		defer srv.Close()

		provider := newOllamaProvider("test-model", srv.URL, 5*time.Second)
		_, err := provider.Complete(context.Background(), Request{
			Messages: []Message{
				{Role: "user", Content: "weather?"},
				{Role: "assistant", ToolCalls: []ToolCall{{
					ID:        "call_1",
					Name:      "search",
					Arguments: map[string]interface{}{"query": "weather"},
				}}},
				{Role: "tool", ToolCallID: "call_1", Content: "sunny"},
			},
		})

		require.NoError(t, err)
		messages := captured["messages"].([]interface{})
		require.Len(t, messages, 3)
		last := messages[2].(map[string]interface{})
		assert.Equal(t, "tool", last["role"])
		assert.Equal(t, "call_1", last["tool_call_id"])
	})
}
