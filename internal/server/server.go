package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/harun/agentgate/internal/metrics"
	"github.com/harun/agentgate/pkg/agent"
	"github.com/harun/agentgate/pkg/tools"
)

// Options holds server configuration
type Options struct {
	Host               string
	Port               int
	RateLimitPerMinute int
	Version            string
	MCPServerURL       string
	RequestTimeout     time.Duration
}

// Server is the agent HTTP server
type Server struct {
	options        Options
	server         *http.Server
	runner         *agent.Runner
	providers      agent.ProviderFactory
	catalog        *tools.Catalog
	rateLimiter    *RateLimiter
	metrics        *metrics.Metrics
	logger         zerolog.Logger
	startTime      time.Time
	isShuttingDown bool
	shutdownMu     sync.RWMutex
	inFlightReqs   sync.WaitGroup
}

// NewServer creates a new agent server
func NewServer(options Options, runner *agent.Runner, providers agent.ProviderFactory, catalog *tools.Catalog, m *metrics.Metrics, logger zerolog.Logger) (*Server, error) {
	// Set defaults
	if options.Port == 0 {
		options.Port = 8000
	}
	if options.Host == "" {
		options.Host = "0.0.0.0"
	}
	if options.RateLimitPerMinute == 0 {
		options.RateLimitPerMinute = 100
	}

	if runner == nil {
		return nil, fmt.Errorf("agent runner is required")
	}
	if providers == nil {
		return nil, fmt.Errorf("provider factory is required")
	}
	if catalog == nil {
		return nil, fmt.Errorf("tool catalog is required")
	}

	return &Server{
		options:     options,
		runner:      runner,
		providers:   providers,
		catalog:     catalog,
		rateLimiter: NewRateLimiter(options.RateLimitPerMinute),
		metrics:     m,
		logger:      logger,
		startTime:   time.Now(),
	}, nil
}

// Handler returns the HTTP handler with all routes registered
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/", s.instrument("/", s.handleRoot))
	mux.HandleFunc("/health", s.instrument("/health", s.handleHealth))
	mux.HandleFunc("/agent", s.instrument("/agent", s.handleAgent))
	if s.metrics != nil {
		mux.Handle("/metrics", s.metrics.Handler())
	}

	return mux
}

// Start starts the HTTP server and blocks until it stops
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:        fmt.Sprintf("%s:%d", s.options.Host, s.options.Port),
		Handler:     s.Handler(),
		ReadTimeout: s.options.RequestTimeout,
	}

	s.logger.Info().
		Str("host", s.options.Host).
		Int("port", s.options.Port).
		Msg("Starting agent server")

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start agent server: %w", err)
	}

	return nil
}

// Stop gracefully stops the server
func (s *Server) Stop() error {
	s.shutdownMu.Lock()
	s.isShuttingDown = true
	s.shutdownMu.Unlock()

	s.logger.Info().Msg("Shutting down agent server")

	// Wait for in-flight requests with timeout
	done := make(chan struct{})
	go func() {
		s.inFlightReqs.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info().Msg("All in-flight requests completed")
	case <-time.After(30 * time.Second):
		s.logger.Warn().Msg("Shutdown timeout reached, forcing close")
	}

	s.rateLimiter.Stop()

	if s.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := s.server.Shutdown(ctx); err != nil {
			return fmt.Errorf("failed to shutdown agent server: %w", err)
		}
	}

	s.logger.Info().Msg("Agent server stopped")
	return nil
}

// statusRecorder captures the response status for logging and metrics
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// instrument wraps a handler with shutdown checks, rate limiting,
// request logging and metrics
func (s *Server) instrument(path string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		startTime := time.Now()

		s.shutdownMu.RLock()
		if s.isShuttingDown {
			s.shutdownMu.RUnlock()
			http.Error(w, "Server is shutting down", http.StatusServiceUnavailable)
			return
		}
		s.shutdownMu.RUnlock()

		s.inFlightReqs.Add(1)
		defer s.inFlightReqs.Done()

		ip := s.getClientIP(r)

		if !s.rateLimiter.CheckLimit(ip) {
			retryAfter := s.rateLimiter.GetRetryAfter(ip)
			s.logger.Warn().
				Str("ip", ip).
				Str("path", r.URL.Path).
				Int("retryAfter", retryAfter).
				Msg("Rate limit exceeded")

			w.Header().Set("Retry-After", fmt.Sprintf("%d", retryAfter))
			http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
			return
		}

		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next(recorder, r)

		duration := time.Since(startTime)

		if s.metrics != nil {
			s.metrics.RequestsTotal.WithLabelValues(path, fmt.Sprintf("%d", recorder.status)).Inc()
			s.metrics.RequestDuration.WithLabelValues(path).Observe(duration.Seconds())
		}

		s.logger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("ip", ip).
			Int("status", recorder.status).
			Int64("duration", duration.Milliseconds()).
			Msg("Request completed")
	}
}

// getClientIP extracts the client IP from the request
func (s *Server) getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		ips := strings.Split(xff, ",")
		if len(ips) > 0 {
			return strings.TrimSpace(ips[0])
		}
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}

	ip := r.RemoteAddr
	if idx := strings.LastIndex(ip, ":"); idx != -1 {
		ip = ip[:idx]
	}
	return ip
}
