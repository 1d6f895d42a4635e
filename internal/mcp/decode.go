package mcp

import (
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hpungsan/arbiter/internal/errors"
)

// decode unmarshals MCP request arguments into a typed request struct.
// Failures come back as INVALID_REQUEST so handlers can return them to the
// client unchanged.
func decode[T any](req mcp.CallToolRequest) (T, error) {
	var out T
	raw, err := json.Marshal(req.GetArguments())
	if err != nil {
		return out, errors.NewInvalidRequest("arguments are not serializable: " + err.Error())
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, errors.NewInvalidRequest("malformed arguments: " + err.Error())
	}
	return out, nil
}
