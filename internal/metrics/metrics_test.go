package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	m := New()

	if m == nil {
		t.Fatal("New returned nil")
	}

	if m.registry == nil {
		t.Error("Registry is nil")
	}

	if m.RequestsTotal == nil {
		t.Error("RequestsTotal is nil")
	}
	if m.RequestDuration == nil {
		t.Error("RequestDuration is nil")
	}
	if m.ToolFetchAttemptsTotal == nil {
		t.Error("ToolFetchAttemptsTotal is nil")
	}
	if m.ToolFetchFailuresTotal == nil {
		t.Error("ToolFetchFailuresTotal is nil")
	}
	if m.ToolsCached == nil {
		t.Error("ToolsCached is nil")
	}
	if m.LLMCallsTotal == nil {
		t.Error("LLMCallsTotal is nil")
	}
	if m.ToolInvocationsTotal == nil {
		t.Error("ToolInvocationsTotal is nil")
	}
}

func TestMetricsHandler(t *testing.T) {
	m := New()

	// Record some sample metrics so they appear in output
	m.RequestsTotal.WithLabelValues("/agent", "200").Inc()
	m.RequestDuration.WithLabelValues("/agent").Observe(0.5)
	m.ToolFetchAttemptsTotal.Inc()
	m.ToolFetchFailuresTotal.Inc()
	m.ToolsCached.Set(4)
	m.LLMCallsTotal.WithLabelValues("ollama", "ok").Inc()
	m.ToolInvocationsTotal.WithLabelValues("search", "ok").Inc()

	handler := m.Handler()
	if handler == nil {
		t.Fatal("Handler returned nil")
	}

	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}

	body := w.Body.String()

	expectedMetrics := []string{
		"agentgate_requests_total",
		"agentgate_request_duration_seconds",
		"agentgate_tool_fetch_attempts_total",
		"agentgate_tool_fetch_failures_total",
		"agentgate_tools_cached",
		"agentgate_llm_calls_total",
		"agentgate_tool_invocations_total",
	}

	for _, metric := range expectedMetrics {
		if !strings.Contains(body, metric) {
			t.Errorf("Metrics output missing: %s", metric)
		}
	}
}
