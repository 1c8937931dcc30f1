package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/harun/agentgate/internal/config"
	"github.com/harun/agentgate/internal/logger"
	"github.com/harun/agentgate/internal/metrics"
	"github.com/harun/agentgate/internal/server"
	"github.com/harun/agentgate/pkg/agent"
	"github.com/harun/agentgate/pkg/llm"
	"github.com/harun/agentgate/pkg/tools"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the agent HTTP server",
	Long: `Start the agent HTTP server in the foreground.
The server accepts prompts on POST /agent and answers them with the
configured LLM provider, calling MCP tools as needed.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}

	log, err := logger.New(logger.Config{
		Level:     cfg.Logging.Level,
		File:      cfg.Logging.File,
		Console:   true,
		Pretty:    cfg.Logging.Pretty,
		Redaction: cfg.Logging.Redaction,
		MaxSize:   cfg.Logging.MaxSize,
		MaxAge:    cfg.Logging.MaxAge,
		Compress:  cfg.Logging.Compress,
	})
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer log.Close()

	printBanner(cfg)

	m := metrics.New()
	factory := llm.NewFactory(cfg)

	mcpClient := tools.NewMCPClient(cfg.MCP.ServerURL, log.GetZerolog())
	defer mcpClient.Close()

	catalog := tools.NewCatalog(mcpClient, tools.Options{
		ServerURL:      cfg.MCP.ServerURL,
		AllowEmpty:     cfg.MCP.AllowEmptyTools,
		Attempts:       cfg.MCP.FetchAttempts,
		RetryBaseDelay: cfg.MCP.RetryBaseDelay,
		Logger:         log.GetZerolog(),
		Metrics:        m,
	})

	runner, err := agent.NewRunner(agent.Config{
		Providers: factory,
		Catalog:   catalog,
		Invoker:   mcpClient,
		Logger:    log.GetZerolog(),
		Metrics:   m,
	})
	if err != nil {
		return fmt.Errorf("failed to create agent runner: %w", err)
	}

	srv, err := server.NewServer(server.Options{
		Host:               cfg.Server.Host,
		Port:               cfg.Server.Port,
		RateLimitPerMinute: cfg.Server.RateLimitPerMinute,
		RequestTimeout:     cfg.RequestTimeout(),
		Version:            version,
		MCPServerURL:       cfg.MCP.ServerURL,
	}, runner, factory, catalog, m, log.GetZerolog())
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	// Check provider buildability and warm the tool cache in the
	// background so the first request does not pay the fetch latency.
	// Failures here are logged and swallowed; requests retry on demand.
	go func() {
		if provider, err := factory.New(); err != nil {
			log.Warn().Err(err).Msg("LLM provider is not ready")
		} else {
			log.Info().
				Str("provider", provider.Name()).
				Str("model", provider.Model()).
				Msg("LLM provider configured")
		}

		if cfg.MCP.ServerURL == "" {
			log.Warn().Msg("MCP server URL is not configured, tool fetch deferred")
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		catalog.Warm(ctx)
	}()

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Start()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return err
	case sig := <-sigChan:
		log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
	}

	return srv.Stop()
}

// printBanner logs the effective configuration with credentials masked
func printBanner(cfg *config.Config) {
	fmt.Printf("agentgate %s\n", version)
	fmt.Printf("  llm choice: %s\n", orUnset(cfg.LLM.Choice))
	switch strings.ToLower(strings.TrimSpace(cfg.LLM.Choice)) {
	case "ollama":
		fmt.Printf("  ollama model: %s\n", orUnset(cfg.LLM.Ollama.Model))
		fmt.Printf("  ollama base url: %s\n", orUnset(cfg.LLM.Ollama.BaseURL))
	case "litellm":
		fmt.Printf("  litellm model: %s\n", orUnset(cfg.LLM.LiteLLM.Model))
		fmt.Printf("  litellm api base: %s\n", orUnset(cfg.LLM.LiteLLM.APIBase))
		fmt.Printf("  litellm api key: %s\n", orUnset(config.MaskSecret(cfg.LLM.LiteLLM.APIKey)))
	}
	fmt.Printf("  mcp server: %s\n", orUnset(cfg.MCP.ServerURL))
	fmt.Printf("  listen: %s:%d\n", cfg.Server.Host, cfg.Server.Port)
}

func orUnset(s string) string {
	if s == "" {
		return "(not set)"
	}
	return s
}
