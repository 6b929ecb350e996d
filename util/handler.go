package util

import (
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

// ToolHandler is the handler shape registered with the MCP server. It is an
// alias so guarded handlers stay assignable to server.ToolHandlerFunc.
type ToolHandler = func(arguments map[string]interface{}) (*mcp.CallToolResult, error)

// ErrorGuard converts handler panics into tool error results so a single bad
// call cannot take down the server.
func ErrorGuard(handler ToolHandler) ToolHandler {
	return func(arguments map[string]interface{}) (result *mcp.CallToolResult, err error) {
		defer func() {
			if r := recover(); r != nil {
				result = mcp.NewToolResultError(fmt.Sprintf("tool handler panicked: %v", r))
				err = nil
			}
		}()
		return handler(arguments)
	}
}
