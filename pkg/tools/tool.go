package tools

import (
	"context"
	"encoding/json"
)

// Tool is the interface for all tools exposed to the LLM.
type Tool interface {
	Name() string
	Description() string
	// Schema returns the JSON schema of the tool's arguments.
	Schema() json.RawMessage
	// Run executes the tool with a JSON-encoded argument object.
	Run(ctx context.Context, args string) (string, error)
}
