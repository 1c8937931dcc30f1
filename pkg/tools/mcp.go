package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	mcpclient "github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/rs/zerolog"
)

const (
	clientName    = "agentgate"
	clientVersion = "0.1.0"
)

// MCPClient speaks the Model Context Protocol to a remote tool server
// over streamable HTTP. It implements both Fetcher (tool discovery)
// and Invoker (tool execution). The underlying session is established
// lazily and re-established after a failure.
type MCPClient struct {
	serverURL string
	logger    zerolog.Logger

	mu     sync.Mutex
	client *mcpclient.Client
}

// NewMCPClient creates a client for the given MCP server address
func NewMCPClient(serverURL string, logger zerolog.Logger) *MCPClient {
	return &MCPClient{
		serverURL: serverURL,
		logger:    logger,
	}
}

// connect establishes and initializes the MCP session if needed.
// Callers must hold c.mu.
func (c *MCPClient) connect(ctx context.Context) (*mcpclient.Client, error) {
	if c.client != nil {
		return c.client, nil
	}

	cl, err := mcpclient.NewStreamableHttpClient(c.serverURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create MCP client: %w", err)
	}

	if err := cl.Start(ctx); err != nil {
		return nil, fmt.Errorf("failed to start MCP transport: %w", err)
	}

	initReq := mcp.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcp.Implementation{
		Name:    clientName,
		Version: clientVersion,
	}

	if _, err := cl.Initialize(ctx, initReq); err != nil {
		cl.Close()
		return nil, fmt.Errorf("MCP initialize failed: %w", err)
	}

	c.logger.Debug().Str("server", c.serverURL).Msg("MCP session established")
	c.client = cl
	return cl, nil
}

// reset drops the current session so the next call reconnects.
// Callers must hold c.mu.
func (c *MCPClient) reset() {
	if c.client != nil {
		c.client.Close()
		c.client = nil
	}
}

// Fetch lists all tools exposed by the server, following pagination
func (c *MCPClient) Fetch(ctx context.Context) ([]Descriptor, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cl, err := c.connect(ctx)
	if err != nil {
		c.reset()
		return nil, err
	}

	var descriptors []Descriptor
	var cursor mcp.Cursor

	for {
		req := mcp.ListToolsRequest{}
		req.Params.Cursor = cursor

		result, err := cl.ListTools(ctx, req)
		if err != nil {
			c.reset()
			return nil, fmt.Errorf("MCP tools/list failed: %w", err)
		}

		for _, tool := range result.Tools {
			schema, err := json.Marshal(tool.InputSchema)
			if err != nil {
				c.logger.Warn().Err(err).Str("tool", tool.Name).Msg("Failed to encode tool schema")
				schema = nil
			}
			descriptors = append(descriptors, Descriptor{
				Name:        tool.Name,
				Description: tool.Description,
				InputSchema: schema,
			})
		}

		if result.NextCursor == "" {
			break
		}
		cursor = result.NextCursor
	}

	return descriptors, nil
}

// Invoke calls a tool on the server and returns the concatenated text
// content of the result
func (c *MCPClient) Invoke(ctx context.Context, name string, args map[string]interface{}) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cl, err := c.connect(ctx)
	if err != nil {
		c.reset()
		return "", err
	}

	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args

	result, err := cl.CallTool(ctx, req)
	if err != nil {
		c.reset()
		return "", fmt.Errorf("MCP tools/call %s failed: %w", name, err)
	}

	var parts []string
	for _, item := range result.Content {
		if text, ok := item.(mcp.TextContent); ok {
			parts = append(parts, text.Text)
		}
	}
	output := strings.TrimSpace(strings.Join(parts, "\n"))

	if result.IsError {
		if output == "" {
			output = "tool reported an error"
		}
		return "", fmt.Errorf("tool %s failed: %s", name, output)
	}

	return output, nil
}

// Close terminates the MCP session
func (c *MCPClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.client != nil {
		err := c.client.Close()
		c.client = nil
		return err
	}
	return nil
}
