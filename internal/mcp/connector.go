// Package mcp connects to MCP tool servers and executes tool calls.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"maps"
	"os"
	"slices"
	"strings"
	"sync"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
	"golang.org/x/sync/errgroup"

	"github.com/dotcommander/scour/internal/config"
	"github.com/dotcommander/scour/internal/errs"
)

// Connector provides access to MCP server discovery and tool execution.
type Connector struct {
	cfg *config.Config
}

// New creates a new connector.
func New(cfg *config.Config) *Connector {
	return &Connector{cfg: cfg}
}

// IsEnabled reports whether the named MCP server is enabled.
func (s *Connector) IsEnabled(name string) bool {
	return !config.IsDisabled(s.cfg, name)
}

// EnabledServers iterates enabled MCP servers in stable order.
func (s *Connector) EnabledServers() iter.Seq2[string, config.MCPServerConfig] {
	return func(yield func(string, config.MCPServerConfig) bool) {
		names := slices.Collect(maps.Keys(s.cfg.MCPServers))
		slices.Sort(names)
		for _, name := range names {
			if !s.IsEnabled(name) {
				continue
			}
			if !yield(name, s.cfg.MCPServers[name]) {
				return
			}
		}
	}
}

// Connect launches or attaches to the named server and performs the
// capability handshake. The caller owns the returned connection and must
// Close it; the subprocess is torn down with the connection.
func (s *Connector) Connect(ctx context.Context, name string) (*Connection, error) {
	server, ok := s.cfg.MCPServers[name]
	if !ok {
		return nil, &ConnectionError{Server: name, Err: errors.New("server is not configured")}
	}
	if !s.IsEnabled(name) {
		return nil, &ConnectionError{Server: name, Err: errors.New("server is disabled")}
	}
	cli, err := initClient(ctx, s.cfg, server)
	if err != nil {
		return nil, &ConnectionError{Server: name, Err: err}
	}
	return &Connection{server: name, cli: cli}, nil
}

// Tools returns tool descriptors grouped by server name.
func (s *Connector) Tools(ctx context.Context) (map[string][]mcp.Tool, error) {
	var mu sync.Mutex
	var wg errgroup.Group
	result := map[string][]mcp.Tool{}
	for sname := range s.EnabledServers() {
		wg.Go(func() error {
			serverTools, err := s.toolsFor(ctx, sname)
			if errors.Is(err, context.DeadlineExceeded) {
				return errs.Wrap(
					fmt.Errorf("timeout while listing tools for %q - make sure the configuration is correct and the server command is runnable", sname),
					"Could not list tools",
				)
			}
			if err != nil {
				return errs.Wrap(err, "Could not list tools")
			}
			mu.Lock()
			result[sname] = append(result[sname], serverTools...)
			mu.Unlock()
			return nil
		})
	}
	if err := wg.Wait(); err != nil {
		return nil, fmt.Errorf("mcp tools: %w", err)
	}
	return result, nil
}

// CallTool executes a tool call against the configured server.
// fullName must be of the form: <server>_<tool>.
func (s *Connector) CallTool(ctx context.Context, fullName string, data []byte) (string, error) {
	sname, tool, ok := strings.Cut(fullName, "_")
	if !ok {
		return "", fmt.Errorf("mcp: invalid tool name: %q", fullName)
	}
	conn, err := s.Connect(ctx, sname)
	if err != nil {
		return "", err
	}
	defer conn.Close() //nolint:errcheck

	args, err := decodeArgs(data)
	if err != nil {
		return "", err
	}
	return conn.Call(ctx, tool, args)
}

func (s *Connector) toolsFor(ctx context.Context, name string) ([]mcp.Tool, error) {
	conn, err := s.Connect(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("could not setup %s: %w", name, err)
	}
	defer conn.Close() //nolint:errcheck
	return conn.ListTools(ctx)
}

// Connection is a live channel to a single MCP server.
type Connection struct {
	server string
	cli    *client.Client
}

// Server returns the configured name of the connected server.
func (c *Connection) Server() string { return c.server }

// ListTools returns the server's current tool descriptors.
func (c *Connection) ListTools(ctx context.Context) ([]mcp.Tool, error) {
	tools, err := c.cli.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		return nil, fmt.Errorf("could not list tools for %s: %w", c.server, err)
	}
	return tools.Tools, nil
}

// Call invokes a single tool and flattens its text content. Results the
// provider marks as errors come back as *ToolExecutionError so the caller can
// feed the detail to the model instead of crashing the turn.
func (c *Connection) Call(ctx context.Context, tool string, args map[string]any) (string, error) {
	request := mcp.CallToolRequest{}
	request.Params.Name = tool
	request.Params.Arguments = args
	result, err := c.cli.CallTool(ctx, request)
	if err != nil {
		return "", &ToolExecutionError{Tool: tool, Detail: err.Error()}
	}

	text := flattenContent(result.Content)
	if result.IsError {
		return "", &ToolExecutionError{Tool: tool, Detail: text}
	}
	return text, nil
}

// Close releases the connection and reaps the server subprocess.
func (c *Connection) Close() error {
	if err := c.cli.Close(); err != nil {
		return fmt.Errorf("close %s: %w", c.server, err)
	}
	return nil
}

func decodeArgs(data []byte) (map[string]any, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var args map[string]any
	if err := json.Unmarshal(data, &args); err != nil {
		return nil, fmt.Errorf("mcp: %w: %s", err, string(data))
	}
	return args, nil
}

func flattenContent(contents []mcp.Content) string {
	var sb strings.Builder
	for _, content := range contents {
		switch content := content.(type) {
		case mcp.TextContent:
			sb.WriteString(content.Text)
		default:
			sb.WriteString("[Non-text content]")
		}
	}
	return sb.String()
}

func initClient(ctx context.Context, cfg *config.Config, server config.MCPServerConfig) (*client.Client, error) {
	var cli *client.Client
	var err error

	switch server.Type {
	case "", "stdio":
		env, envErr := server.ResolveEnv()
		if envErr != nil {
			return nil, envErr
		}
		if cfg != nil && !cfg.MCPNoInheritEnv {
			env = append(os.Environ(), env...)
		}
		cli, err = client.NewStdioMCPClient(
			server.Command,
			env,
			server.Args...,
		)
	case "sse":
		cli, err = client.NewSSEMCPClient(server.URL)
	case "http":
		cli, err = client.NewStreamableHttpClient(server.URL)
	default:
		return nil, fmt.Errorf("unsupported MCP server type: %q, supported types are: stdio, sse, http", server.Type)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to create MCP client: %w", err)
	}

	if err := cli.Start(ctx); err != nil {
		cli.Close() //nolint:errcheck,gosec
		return nil, fmt.Errorf("failed to start MCP client: %w", err)
	}

	if _, err := cli.Initialize(ctx, mcp.InitializeRequest{}); err != nil {
		cli.Close() //nolint:errcheck,gosec
		return nil, fmt.Errorf("failed to initialize MCP client: %w", err)
	}

	return cli, nil
}
