package server

import (
	"context"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServerListsAndCallsTools(t *testing.T) {
	s := GetInstance()
	assert.Same(t, s, GetInstance())
	assert.Equal(t, []string{"forecast_league", "list_leagues", "run_history"}, s.ToolNames())

	ctx := context.Background()
	serverTransport, clientTransport := mcp.NewInMemoryTransports()
	ss, err := s.Connect(ctx, serverTransport)
	require.NoError(t, err)
	defer ss.Close()

	client := mcp.NewClient(&mcp.Implementation{Name: "test", Version: "0"}, nil)
	cs, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)
	defer cs.Close()

	listed, err := cs.ListTools(ctx, &mcp.ListToolsParams{})
	require.NoError(t, err)
	var names []string
	for _, tool := range listed.Tools {
		names = append(names, tool.Name)
	}
	assert.ElementsMatch(t, s.ToolNames(), names)

	res, err := cs.CallTool(ctx, &mcp.CallToolParams{
		Name:      "list_leagues",
		Arguments: map[string]any{"filter": "bundesliga"},
	})
	require.NoError(t, err)
	require.False(t, res.IsError)
	require.Len(t, res.Content, 1)
	text, ok := res.Content[0].(*mcp.TextContent)
	require.True(t, ok)
	assert.Contains(t, text.Text, "35\tBundesliga")
	assert.NotContains(t, text.Text, "Premier League")

	res, err = cs.CallTool(ctx, &mcp.CallToolParams{
		Name:      "forecast_league",
		Arguments: map[string]any{},
	})
	require.NoError(t, err)
	assert.True(t, res.IsError)
}
