package tools

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/xeipuuv/gojsonschema"

	"github.com/harun/agentgate/internal/config"
	"github.com/harun/agentgate/internal/metrics"
)

// Options configures a Catalog
type Options struct {
	// ServerURL is the remote MCP server address; required before the
	// first fetch, checked lazily so the process can boot without it.
	ServerURL string

	// AllowEmpty accepts a zero-tool listing as a valid result.
	AllowEmpty bool

	// Attempts is the number of fetch attempts per initialization
	// (default 3).
	Attempts int

	// RetryBaseDelay is multiplied by the attempt number for linear
	// backoff between attempts (default 500ms).
	RetryBaseDelay time.Duration

	Logger  zerolog.Logger
	Metrics *metrics.Metrics
}

// Catalog caches the remote tool list for the lifetime of the process.
// The first caller populates it; concurrent first callers wait on the
// initialization lock and observe that caller's outcome instead of
// starting duplicate fetches. A failed initialization leaves the cache
// unpopulated so the next caller retries from scratch.
type Catalog struct {
	fetcher Fetcher
	opts    Options

	cached  atomic.Pointer[[]Descriptor]
	initMu  sync.Mutex
	lastErr error
	errMu   sync.RWMutex
}

// NewCatalog creates a tool catalog backed by the given fetcher
func NewCatalog(fetcher Fetcher, opts Options) *Catalog {
	if opts.Attempts <= 0 {
		opts.Attempts = 3
	}
	if opts.RetryBaseDelay <= 0 {
		opts.RetryBaseDelay = 500 * time.Millisecond
	}
	return &Catalog{
		fetcher: fetcher,
		opts:    opts,
	}
}

// Tools returns the cached descriptor list, fetching it on first use.
// The fast path is a single atomic load; the initialization lock is
// held only while populating.
func (c *Catalog) Tools(ctx context.Context) ([]Descriptor, error) {
	if cached := c.cached.Load(); cached != nil {
		return *cached, nil
	}

	c.initMu.Lock()
	defer c.initMu.Unlock()

	// Re-check after acquiring the lock: another caller may have just
	// finished populating.
	if cached := c.cached.Load(); cached != nil {
		return *cached, nil
	}

	if c.opts.ServerURL == "" {
		return nil, config.NewNotConfigured("MCP_SERVER_URL")
	}

	descriptors, err := c.fetchWithRetry(ctx)
	if err != nil {
		c.setLastError(err)
		return nil, err
	}

	c.cached.Store(&descriptors)
	c.setLastError(nil)
	if c.opts.Metrics != nil {
		c.opts.Metrics.ToolsCached.Set(float64(len(descriptors)))
	}

	return descriptors, nil
}

// Warm pre-populates the catalog at process boot so the first real
// request does not pay the fetch latency. Failures are logged and
// swallowed; a cold tool server must not prevent startup.
func (c *Catalog) Warm(ctx context.Context) {
	if _, err := c.Tools(ctx); err != nil {
		c.opts.Logger.Warn().Err(err).Msg("Tool catalog warm start skipped")
		return
	}
	c.opts.Logger.Info().Msg("Tool catalog warm start completed")
}

// Cached returns the current cache contents without triggering a fetch
func (c *Catalog) Cached() ([]Descriptor, bool) {
	if cached := c.cached.Load(); cached != nil {
		return *cached, true
	}
	return nil, false
}

// LastError returns the error retained from the most recent failed
// initialization, if any
func (c *Catalog) LastError() error {
	c.errMu.RLock()
	defer c.errMu.RUnlock()
	return c.lastErr
}

func (c *Catalog) setLastError(err error) {
	c.errMu.Lock()
	c.lastErr = err
	c.errMu.Unlock()
}

// fetchWithRetry performs up to Attempts fetches with linear backoff.
// A listing with zero tools counts as a failure unless AllowEmpty is
// set; an empty toolset usually means the remote server has not
// finished registering its tools yet.
func (c *Catalog) fetchWithRetry(ctx context.Context) ([]Descriptor, error) {
	var lastErr error

	for attempt := 1; attempt <= c.opts.Attempts; attempt++ {
		if c.opts.Metrics != nil {
			c.opts.Metrics.ToolFetchAttemptsTotal.Inc()
		}

		descriptors, err := c.fetchOnce(ctx)
		if err == nil {
			c.opts.Logger.Info().
				Int("count", len(descriptors)).
				Int("attempt", attempt).
				Msg("Cached MCP tools")
			return descriptors, nil
		}

		lastErr = err
		if c.opts.Metrics != nil {
			c.opts.Metrics.ToolFetchFailuresTotal.Inc()
		}
		c.opts.Logger.Warn().
			Err(err).
			Int("attempt", attempt).
			Int("maxAttempts", c.opts.Attempts).
			Msg("MCP tool fetch attempt failed")

		if attempt == c.opts.Attempts {
			break
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, ctx.Err())
		case <-time.After(time.Duration(attempt) * c.opts.RetryBaseDelay):
		}
	}

	return nil, fmt.Errorf("%w after %d attempts: %v", ErrUnavailable, c.opts.Attempts, lastErr)
}

func (c *Catalog) fetchOnce(ctx context.Context) ([]Descriptor, error) {
	descriptors, err := c.fetcher.Fetch(ctx)
	if err != nil {
		return nil, err
	}

	descriptors = c.filterValid(descriptors)

	if len(descriptors) == 0 && !c.opts.AllowEmpty {
		return nil, fmt.Errorf("MCP server returned zero tools")
	}

	return descriptors, nil
}

// filterValid drops tools whose input schema does not compile. A tool
// with a broken schema would fail on every invocation; better to omit
// it than to offer it to the model.
func (c *Catalog) filterValid(descriptors []Descriptor) []Descriptor {
	valid := make([]Descriptor, 0, len(descriptors))
	for _, d := range descriptors {
		if d.Name == "" {
			c.opts.Logger.Warn().Msg("Dropping MCP tool with empty name")
			continue
		}
		if len(d.InputSchema) > 0 {
			loader := gojsonschema.NewBytesLoader(d.InputSchema)
			if _, err := gojsonschema.NewSchema(loader); err != nil {
				c.opts.Logger.Warn().
					Err(err).
					Str("tool", d.Name).
					Msg("Dropping MCP tool with invalid input schema")
				continue
			}
		}
		valid = append(valid, d)
	}
	return valid
}
