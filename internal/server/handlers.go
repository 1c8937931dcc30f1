package server

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/harun/agentgate/internal/config"
	"github.com/harun/agentgate/pkg/agent"
	"github.com/harun/agentgate/pkg/tools"
)

// apologyMessage replaces the raw error when the model produced a
// malformed tool call. Surfacing the parse error verbatim confuses
// users; asking them to rephrase usually works.
const apologyMessage = "I encountered an issue with tool formatting. Please try a simpler request or rephrase your question."

// handleRoot handles liveness requests
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		writeError(w, http.StatusNotFound, "Not Found")
		return
	}
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"service": "agentgate",
		"version": s.options.Version,
		"status":  "ok",
	})
}

// handleHealth reports provider and tool cache readiness without
// triggering a tool fetch
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	response := healthResponse{
		Status:    "healthy",
		Uptime:    time.Since(s.startTime).Seconds(),
		Timestamp: time.Now().UnixMilli(),
	}

	if provider, err := s.providers.New(); err != nil {
		response.Status = "degraded"
		response.LLM = llmHealth{Status: "not_configured", Detail: err.Error()}
	} else {
		response.LLM = llmHealth{
			Status:   "ok",
			Provider: provider.Name(),
			Model:    provider.Model(),
		}
	}

	if cached, ok := s.catalog.Cached(); ok {
		response.MCP = mcpHealth{Status: "ok", ToolsCached: len(cached)}
	} else {
		response.MCP = mcpHealth{Status: "pending"}
		if err := s.catalog.LastError(); err != nil {
			response.MCP.Status = "error"
			response.MCP.LastError = err.Error()
		}
		if s.options.MCPServerURL == "" {
			response.MCP.Status = "not_configured"
		}
	}

	writeJSON(w, http.StatusOK, response)
}

// handleAgent handles agent execution requests
func (s *Server) handleAgent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var request agentRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(request.Prompt) == "" {
		writeError(w, http.StatusBadRequest, "prompt is required")
		return
	}

	requestID := uuid.New().String()
	logger := s.logger.With().Str("request_id", requestID).Logger()

	result, err := s.runner.Run(r.Context(), agent.RunParams{
		Prompt:       request.Prompt,
		Instructions: request.Instructions,
		RequestID:    requestID,
	})
	if err != nil {
		s.writeRunError(w, logger, err)
		return
	}

	response := agentResponse{Output: result.Text()}
	if request.Debug {
		response.Debug = &agentDebug{
			RequestID: result.RequestID,
			Turns:     result.Turns,
			ToolCalls: result.ToolCalls,
		}
		if result.Usage != nil {
			response.Debug.InputTokens = result.Usage.InputTokens
			response.Debug.OutputTokens = result.Usage.OutputTokens
		}
	}

	writeJSON(w, http.StatusOK, response)
}

// writeRunError maps agent errors to HTTP responses
func (s *Server) writeRunError(w http.ResponseWriter, logger zerolog.Logger, err error) {
	// The model emitted a malformed tool call. Not a server fault, so
	// answer with an apology instead of an error status.
	if strings.Contains(err.Error(), "error parsing tool call") {
		logger.Warn().Err(err).Msg("Tool call parsing failed, returning apology")
		writeJSON(w, http.StatusOK, agentResponse{Output: apologyMessage})
		return
	}

	if tools.IsUnavailable(err) {
		logger.Warn().Err(err).Msg("Tool catalog unavailable")
		writeError(w, http.StatusServiceUnavailable, "service warming up: "+err.Error())
		return
	}

	if config.IsNotConfigured(err) {
		logger.Error().Err(err).Msg("Agent misconfigured")
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	logger.Error().Err(err).Msg("Agent execution failed")
	writeError(w, http.StatusInternalServerError, "agent execution failed: "+err.Error())
}

// writeJSON writes a JSON response with the given status
func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// writeError writes a JSON error response
func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, errorResponse{Detail: detail})
}
