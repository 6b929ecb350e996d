package util

import (
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Guarded handlers must satisfy the server's registration type directly.
var _ server.ToolHandlerFunc = ErrorGuard(func(map[string]interface{}) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText("ok"), nil
})

func TestErrorGuardPassesThrough(t *testing.T) {
	handler := ErrorGuard(func(arguments map[string]interface{}) (*mcp.CallToolResult, error) {
		return mcp.NewToolResultText("ok"), nil
	})

	res, err := handler(map[string]interface{}{})
	require.NoError(t, err)
	assert.False(t, res.IsError)
}

func TestErrorGuardRecoversPanic(t *testing.T) {
	handler := ErrorGuard(func(arguments map[string]interface{}) (*mcp.CallToolResult, error) {
		panic("boom")
	})

	res, err := handler(map[string]interface{}{})
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.True(t, res.IsError)
}
