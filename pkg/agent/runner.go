package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/harun/agentgate/internal/metrics"
	"github.com/harun/agentgate/pkg/llm"
	"github.com/harun/agentgate/pkg/tools"
)

// formattingReminder is appended to every user prompt. Smaller models
// routinely emit malformed tool-call JSON; the reminder measurably
// cuts down on that failure mode.
const formattingReminder = "\nIMPORTANT: When calling tools, ensure all JSON parameters are properly formatted. " +
	"Avoid long free-form text inside parameters; keep values concise and valid JSON."

const (
	// maxTurns bounds the tool loop to prevent runaway tool chains
	maxTurns = 10

	// llmMaxRetries bounds retries of a single LLM call
	llmMaxRetries = 3
)

// ProviderFactory builds an LLM provider per run
type ProviderFactory interface {
	New() (llm.Provider, error)
}

// Runner orchestrates agent execution: it obtains a provider and the
// cached tool list, then interleaves LLM completions with tool
// invocations until the model produces a final answer.
type Runner struct {
	providers      ProviderFactory
	catalog        *tools.Catalog
	invoker        tools.Invoker
	logger         zerolog.Logger
	metrics        *metrics.Metrics
	retryBaseDelay time.Duration
}

// Config holds runner configuration
type Config struct {
	Providers ProviderFactory
	Catalog   *tools.Catalog
	Invoker   tools.Invoker
	Logger    zerolog.Logger
	Metrics   *metrics.Metrics
	// RetryBaseDelay scales the exponential backoff between LLM call
	// retries. Defaults to one second.
	RetryBaseDelay time.Duration
}

// NewRunner creates a new agent runner
func NewRunner(cfg Config) (*Runner, error) {
	if cfg.Providers == nil {
		return nil, fmt.Errorf("provider factory is required")
	}
	if cfg.Catalog == nil {
		return nil, fmt.Errorf("tool catalog is required")
	}
	if cfg.Invoker == nil {
		return nil, fmt.Errorf("tool invoker is required")
	}

	if cfg.RetryBaseDelay <= 0 {
		cfg.RetryBaseDelay = time.Second
	}

	return &Runner{
		providers:      cfg.Providers,
		catalog:        cfg.Catalog,
		invoker:        cfg.Invoker,
		logger:         cfg.Logger,
		metrics:        cfg.Metrics,
		retryBaseDelay: cfg.RetryBaseDelay,
	}, nil
}

// Run executes the agent for a single prompt
func (r *Runner) Run(ctx context.Context, params RunParams) (Result, error) {
	logger := r.logger.With().Str("request_id", params.RequestID).Logger()

	// A fresh provider per run: construction is cheap and picks up the
	// lazily validated provider settings.
	provider, err := r.providers.New()
	if err != nil {
		return Result{}, err
	}

	descriptors, err := r.catalog.Tools(ctx)
	if err != nil {
		return Result{}, err
	}

	toolDefs := make([]llm.ToolDefinition, 0, len(descriptors))
	for _, d := range descriptors {
		toolDefs = append(toolDefs, llm.ToolDefinition{
			Name:        d.Name,
			Description: d.Description,
			InputSchema: d.SchemaMap(),
		})
	}

	logger.Info().
		Str("provider", provider.Name()).
		Str("model", provider.Model()).
		Int("tools", len(toolDefs)).
		Msg("Starting agent run")

	messages := []llm.Message{{
		Role:    "user",
		Content: params.Prompt + formattingReminder,
	}}

	return r.runToolLoop(ctx, provider, messages, toolDefs, params, logger)
}

// runToolLoop drives the completion/tool-invocation cycle
func (r *Runner) runToolLoop(ctx context.Context, provider llm.Provider, messages []llm.Message, toolDefs []llm.ToolDefinition, params RunParams, logger zerolog.Logger) (Result, error) {
	var trace []ToolCallRecord
	usage := &llm.TokenUsage{}

	for turn := 1; turn <= maxTurns; turn++ {
		select {
		case <-ctx.Done():
			return Result{}, ctx.Err()
		default:
		}

		response, err := r.completeWithRetry(ctx, provider, llm.Request{
			Messages:     messages,
			Tools:        toolDefs,
			SystemPrompt: params.Instructions,
		}, logger)
		if err != nil {
			if r.metrics != nil {
				r.metrics.LLMCallsTotal.WithLabelValues(provider.Name(), "error").Inc()
			}
			return Result{}, err
		}
		if r.metrics != nil {
			r.metrics.LLMCallsTotal.WithLabelValues(provider.Name(), "ok").Inc()
		}

		if response.Usage != nil {
			usage.InputTokens += response.Usage.InputTokens
			usage.OutputTokens += response.Usage.OutputTokens
		}

		if len(response.ToolCalls) == 0 {
			var blocks []Block
			if response.Content != "" {
				blocks = append(blocks, Block{Kind: BlockText, Text: response.Content})
			}
			logger.Info().Int("turns", turn).Msg("Agent run completed")
			return Result{
				Blocks:    blocks,
				ToolCalls: trace,
				Usage:     usage,
				RequestID: params.RequestID,
				Turns:     turn,
			}, nil
		}

		messages = append(messages, llm.Message{
			Role:      "assistant",
			Content:   response.Content,
			ToolCalls: response.ToolCalls,
		})

		for _, call := range response.ToolCalls {
			record := ToolCallRecord{Name: call.Name, Arguments: call.Arguments}

			output, err := r.invoker.Invoke(ctx, call.Name, call.Arguments)
			content := output
			if err != nil {
				record.Error = err.Error()
				content = err.Error()
				if r.metrics != nil {
					r.metrics.ToolInvocationsTotal.WithLabelValues(call.Name, "error").Inc()
				}
				logger.Warn().Err(err).Str("tool", call.Name).Msg("Tool invocation failed")
			} else {
				record.Output = output
				if r.metrics != nil {
					r.metrics.ToolInvocationsTotal.WithLabelValues(call.Name, "ok").Inc()
				}
				logger.Debug().Str("tool", call.Name).Msg("Tool invocation completed")
			}
			trace = append(trace, record)

			messages = append(messages, llm.Message{
				Role:       "tool",
				Content:    content,
				ToolCallID: call.ID,
			})
		}
	}

	return Result{}, fmt.Errorf("maximum tool execution turns (%d) exceeded", maxTurns)
}

// completeWithRetry calls the LLM with exponential backoff on
// retryable errors
func (r *Runner) completeWithRetry(ctx context.Context, provider llm.Provider, request llm.Request, logger zerolog.Logger) (*llm.Response, error) {
	var lastErr error

	for attempt := 0; attempt < llmMaxRetries; attempt++ {
		response, err := provider.Complete(ctx, request)
		if err == nil {
			return response, nil
		}

		lastErr = err

		if !llm.IsRetryableError(err) {
			return nil, err
		}

		if attempt == llmMaxRetries-1 {
			break
		}

		// Doubling backoff: base, 2x base, 4x base
		delay := time.Duration(1<<attempt) * r.retryBaseDelay
		logger.Info().
			Int("attempt", attempt+1).
			Dur("delay", delay).
			Msg("Retrying LLM call after error")

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}

	return nil, fmt.Errorf("max retries (%d) exceeded: %w", llmMaxRetries, lastErr)
}
