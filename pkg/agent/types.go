package agent

import (
	"github.com/harun/agentgate/pkg/llm"
)

// NoOutputPlaceholder is returned when a run produces no usable text
const NoOutputPlaceholder = "No output generated"

// RunParams contains input parameters for an agent run
type RunParams struct {
	Prompt       string `json:"prompt"`
	Instructions string `json:"instructions,omitempty"`
	RequestID    string `json:"request_id,omitempty"`
}

// BlockKind discriminates the content block variants of a run result
type BlockKind string

const (
	// BlockText carries human-readable model output
	BlockText BlockKind = "text"
)

// Block is one unit of run output. Using an explicit tagged variant
// instead of probing arbitrary result objects keeps extraction total:
// unknown kinds simply don't match.
type Block struct {
	Kind BlockKind `json:"kind"`
	Text string    `json:"text,omitempty"`
}

// ToolCallRecord traces one tool invocation made during a run
type ToolCallRecord struct {
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments,omitempty"`
	Output    string                 `json:"output,omitempty"`
	Error     string                 `json:"error,omitempty"`
}

// Result contains the output of an agent run
type Result struct {
	Blocks    []Block          `json:"blocks"`
	ToolCalls []ToolCallRecord `json:"tool_calls,omitempty"`
	Usage     *llm.TokenUsage  `json:"usage,omitempty"`
	RequestID string           `json:"request_id,omitempty"`
	Turns     int              `json:"turns"`
}

// Text returns the first non-empty text block, or the placeholder when
// the run produced none. It never fails: a malformed result degrades
// to the placeholder instead of an error.
func (r Result) Text() string {
	for _, block := range r.Blocks {
		if block.Kind == BlockText && block.Text != "" {
			return block.Text
		}
	}
	return NoOutputPlaceholder
}
