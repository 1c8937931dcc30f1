package tools

import (
	"context"
	"encoding/json"
	"errors"
)

// Descriptor holds the metadata for a callable tool discovered from the
// remote MCP server: its name and the JSON schema of its arguments.
type Descriptor struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"input_schema,omitempty"`
}

// SchemaMap decodes the input schema into a generic map for providers
// that consume schemas as plain objects. A missing or undecodable
// schema yields a permissive object schema.
func (d Descriptor) SchemaMap() map[string]interface{} {
	if len(d.InputSchema) == 0 {
		return map[string]interface{}{"type": "object"}
	}
	var m map[string]interface{}
	if err := json.Unmarshal(d.InputSchema, &m); err != nil {
		return map[string]interface{}{"type": "object"}
	}
	return m
}

// Fetcher lists tool descriptors from a remote server
type Fetcher interface {
	Fetch(ctx context.Context) ([]Descriptor, error)
}

// Invoker executes a named tool with the given arguments and returns
// its textual output
type Invoker interface {
	Invoke(ctx context.Context, name string, args map[string]interface{}) (string, error)
}

// ErrUnavailable marks tool discovery failures that are expected to be
// transient: the remote server may be cold-starting or unreachable.
// Callers translate it to a retry-later response rather than a hard
// failure.
var ErrUnavailable = errors.New("tool catalog unavailable")

// IsUnavailable reports whether err is a transient tool catalog failure
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}
