package mcp

import (
	"context"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/require"

	"github.com/dotcommander/scour/internal/config"
)

func TestEnabledServersOrderAndFiltering(t *testing.T) {
	cfg := &config.Config{Settings: config.Settings{
		MCPServers: map[string]config.MCPServerConfig{
			"zeta":       {Command: "zeta-server"},
			"brightdata": {Command: "npx"},
			"alpha":      {Command: "alpha-server"},
		},
		MCPDisable: []string{"zeta"},
	}}
	s := New(cfg)

	var names []string
	for name := range s.EnabledServers() {
		names = append(names, name)
	}
	require.Equal(t, []string{"alpha", "brightdata"}, names)
}

func TestConnectUnknownServer(t *testing.T) {
	s := New(&config.Config{})
	conn, err := s.Connect(context.Background(), "nope")
	require.Nil(t, conn)

	var cerr *ConnectionError
	require.ErrorAs(t, err, &cerr)
	require.Equal(t, "nope", cerr.Server)
}

func TestConnectDisabledServer(t *testing.T) {
	cfg := &config.Config{Settings: config.Settings{
		MCPServers: map[string]config.MCPServerConfig{"brightdata": {Command: "npx"}},
		MCPDisable: []string{"*"},
	}}
	s := New(cfg)
	_, err := s.Connect(context.Background(), "brightdata")

	var cerr *ConnectionError
	require.ErrorAs(t, err, &cerr)
}

func TestCallToolRequiresQualifiedName(t *testing.T) {
	s := New(&config.Config{})
	_, err := s.CallTool(context.Background(), "nounderscore", nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "invalid tool name")
}

func TestConnectDoesNotLaunchWithoutCredentials(t *testing.T) {
	// A stdio server whose required env is missing must fail during env
	// resolution, before any subprocess is spawned.
	cfg := &config.Config{Settings: config.Settings{
		MCPServers: map[string]config.MCPServerConfig{
			"brightdata": {
				Command: "definitely-not-a-real-binary",
				Env:     []string{"SCOUR_TEST_ABSENT_TOKEN"},
			},
		},
	}}
	s := New(cfg)
	_, err := s.Connect(context.Background(), "brightdata")

	var cerr *ConnectionError
	require.ErrorAs(t, err, &cerr)
	require.Contains(t, err.Error(), "SCOUR_TEST_ABSENT_TOKEN")
}

func TestInitClientRejectsUnknownType(t *testing.T) {
	_, err := initClient(context.Background(), &config.Config{}, config.MCPServerConfig{Type: "carrier-pigeon"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "unsupported MCP server type")
}

func TestDecodeArgs(t *testing.T) {
	t.Run("empty payload is nil args", func(t *testing.T) {
		args, err := decodeArgs(nil)
		require.NoError(t, err)
		require.Nil(t, args)
	})

	t.Run("object payload decodes", func(t *testing.T) {
		args, err := decodeArgs([]byte(`{"url":"https://example.com"}`))
		require.NoError(t, err)
		require.Equal(t, map[string]any{"url": "https://example.com"}, args)
	})

	t.Run("malformed payload fails", func(t *testing.T) {
		_, err := decodeArgs([]byte(`{`))
		require.Error(t, err)
	})
}

func TestFlattenContent(t *testing.T) {
	out := flattenContent([]mcp.Content{
		mcp.TextContent{Type: "text", Text: "first"},
		mcp.TextContent{Type: "text", Text: " second"},
		mcp.ImageContent{Type: "image"},
	})
	require.Equal(t, "first second[Non-text content]", out)
}
