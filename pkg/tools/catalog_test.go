package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harun/agentgate/internal/config"
)

// fakeFetcher returns queued results in order, repeating the last one
type fakeFetcher struct {
	mu      sync.Mutex
	results []fetchResult
	calls   int32
}

type fetchResult struct {
	descriptors []Descriptor
	err         error
}

func (f *fakeFetcher) Fetch(ctx context.Context) ([]Descriptor, error) {
	atomic.AddInt32(&f.calls, 1)

	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.results) == 0 {
		return nil, fmt.Errorf("no results queued")
	}
	result := f.results[0]
	if len(f.results) > 1 {
		f.results = f.results[1:]
	}
	return result.descriptors, result.err
}

func (f *fakeFetcher) callCount() int {
	return int(atomic.LoadInt32(&f.calls))
}

func testDescriptors() []Descriptor {
	return []Descriptor{
		{Name: "search", Description: "web search", InputSchema: json.RawMessage(`{"type": "object"}`)},
		{Name: "fetch_page", Description: "fetch a page"},
	}
}

func testOptions() Options {
	return Options{
		ServerURL:      "http://localhost:8100/mcp",
		Attempts:       3,
		RetryBaseDelay: time.Millisecond,
		Logger:         zerolog.Nop(),
	}
}

func TestCatalogTools(t *testing.T) {
	t.Run("fetches once and caches", func(t *testing.T) {
		fetcher := &fakeFetcher{results: []fetchResult{{descriptors: testDescriptors()}}}
		catalog := NewCatalog(fetcher, testOptions())

		first, err := catalog.Tools(context.Background())
		require.NoError(t, err)
		assert.Len(t, first, 2)

		second, err := catalog.Tools(context.Background())
		require.NoError(t, err)
		assert.Len(t, second, 2)

		assert.Equal(t, 1, fetcher.callCount())
	})

	t.Run("concurrent callers share one fetch", func(t *testing.T) {
		fetcher := &fakeFetcher{results: []fetchResult{{descriptors: testDescriptors()}}}
		catalog := NewCatalog(fetcher, testOptions())

		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				descriptors, err := catalog.Tools(context.Background())
				assert.NoError(t, err)
				assert.Len(t, descriptors, 2)
			}()
		}
		wg.Wait()

		assert.Equal(t, 1, fetcher.callCount())
	})

	t.Run("missing server url", func(t *testing.T) {
		opts := testOptions()
		opts.ServerURL = ""
		catalog := NewCatalog(&fakeFetcher{}, opts)

		_, err := catalog.Tools(context.Background())
		require.Error(t, err)
		assert.True(t, config.IsNotConfigured(err))
	})

	t.Run("retries then succeeds", func(t *testing.T) {
		fetcher := &fakeFetcher{results: []fetchResult{
			{err: fmt.Errorf("connection refused")},
			{err: fmt.Errorf("connection refused")},
			{descriptors: testDescriptors()},
		}}
		catalog := NewCatalog(fetcher, testOptions())

		descriptors, err := catalog.Tools(context.Background())
		require.NoError(t, err)
		assert.Len(t, descriptors, 2)
		assert.Equal(t, 3, fetcher.callCount())
	})

	t.Run("failure leaves cache unpopulated", func(t *testing.T) {
		fetcher := &fakeFetcher{results: []fetchResult{
			{err: fmt.Errorf("connection refused")},
			{err: fmt.Errorf("connection refused")},
			{err: fmt.Errorf("connection refused")},
			{descriptors: testDescriptors()},
		}}
		catalog := NewCatalog(fetcher, testOptions())

		_, err := catalog.Tools(context.Background())
		require.Error(t, err)
		assert.True(t, IsUnavailable(err))
		assert.Equal(t, 3, fetcher.callCount())

		_, ok := catalog.Cached()
		assert.False(t, ok)
		assert.Error(t, catalog.LastError())

		// Next caller retries from scratch and succeeds
		descriptors, err := catalog.Tools(context.Background())
		require.NoError(t, err)
		assert.Len(t, descriptors, 2)
		assert.NoError(t, catalog.LastError())
	})

	t.Run("zero tools is a failure by default", func(t *testing.T) {
		fetcher := &fakeFetcher{results: []fetchResult{{descriptors: []Descriptor{}}}}
		catalog := NewCatalog(fetcher, testOptions())

		_, err := catalog.Tools(context.Background())
		require.Error(t, err)
		assert.True(t, IsUnavailable(err))
		assert.Contains(t, err.Error(), "zero tools")
		assert.Equal(t, 3, fetcher.callCount())
	})

	t.Run("zero tools allowed when configured", func(t *testing.T) {
		fetcher := &fakeFetcher{results: []fetchResult{{descriptors: []Descriptor{}}}}
		opts := testOptions()
		opts.AllowEmpty = true
		catalog := NewCatalog(fetcher, opts)

		descriptors, err := catalog.Tools(context.Background())
		require.NoError(t, err)
		assert.Empty(t, descriptors)
		assert.Equal(t, 1, fetcher.callCount())

		cached, ok := catalog.Cached()
		assert.True(t, ok)
		assert.Empty(t, cached)
	})

	t.Run("drops tools with invalid schema", func(t *testing.T) {
		fetcher := &fakeFetcher{results: []fetchResult{{descriptors: []Descriptor{
			{Name: "good", InputSchema: json.RawMessage(`{"type": "object"}`)},
			{Name: "broken", InputSchema: json.RawMessage(`{"type": ["not-a-type"]}`)},
			{Name: ""},
		}}}}
		catalog := NewCatalog(fetcher, testOptions())

		descriptors, err := catalog.Tools(context.Background())
		require.NoError(t, err)
		require.Len(t, descriptors, 1)
		assert.Equal(t, "good", descriptors[0].Name)
	})

	t.Run("cancelled context stops retries", func(t *testing.T) {
		fetcher := &fakeFetcher{results: []fetchResult{{err: fmt.Errorf("connection refused")}}}
		opts := testOptions()
		opts.RetryBaseDelay = time.Minute
		catalog := NewCatalog(fetcher, opts)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := catalog.Tools(ctx)
		require.Error(t, err)
		assert.True(t, IsUnavailable(err))
		assert.Equal(t, 1, fetcher.callCount())
	})
}

func TestCatalogWarm(t *testing.T) {
	t.Run("populates the cache", func(t *testing.T) {
		fetcher := &fakeFetcher{results: []fetchResult{{descriptors: testDescriptors()}}}
		catalog := NewCatalog(fetcher, testOptions())

		catalog.Warm(context.Background())

		cached, ok := catalog.Cached()
		assert.True(t, ok)
		assert.Len(t, cached, 2)
	})

	t.Run("swallows failures", func(t *testing.T) {
		fetcher := &fakeFetcher{results: []fetchResult{{err: fmt.Errorf("connection refused")}}}
		catalog := NewCatalog(fetcher, testOptions())

		catalog.Warm(context.Background())

		_, ok := catalog.Cached()
		assert.False(t, ok)
		assert.Error(t, catalog.LastError())
	})
}

func TestDescriptorSchemaMap(t *testing.T) {
	t.Run("decodes schema", func(t *testing.T) {
		d := Descriptor{InputSchema: json.RawMessage(`{"type": "object", "properties": {"q": {"type": "string"}}}`)}
		m := d.SchemaMap()
		assert.Equal(t, "object", m["type"])
		assert.Contains(t, m, "properties")
	})

	t.Run("missing schema yields permissive object", func(t *testing.T) {
		m := Descriptor{}.SchemaMap()
		assert.Equal(t, map[string]interface{}{"type": "object"}, m)
	})

	t.Run("undecodable schema yields permissive object", func(t *testing.T) {
		d := Descriptor{InputSchema: json.RawMessage(`[1, 2]`)}
		m := d.SchemaMap()
		assert.Equal(t, map[string]interface{}{"type": "object"}, m)
	})
}
