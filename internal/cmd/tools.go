package cmd

import (
	"context"
	"fmt"
	"os"
	"slices"
	"strings"

	mmcp "github.com/mark3labs/mcp-go/mcp"
	"github.com/spf13/cobra"

	"github.com/dotcommander/scour/internal/config"
	imcp "github.com/dotcommander/scour/internal/mcp"
	"github.com/dotcommander/scour/internal/present"
)

func newToolsCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "tools",
		Short: "List tools from enabled MCP servers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if rt.cfgErr != nil {
				return rt.cfgErr
			}
			if err := config.Validate(&rt.cfg); err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), rt.cfg.MCPTimeout)
			defer cancel()
			return listTools(ctx, &rt.cfg)
		},
	}
}

func newServersCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "servers",
		Short: "List configured MCP servers",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			if rt.cfgErr != nil {
				return rt.cfgErr
			}
			listServers(&rt.cfg)
			return nil
		},
	}
}

func listServers(cfg *config.Config) {
	connector := imcp.New(cfg)
	names := make([]string, 0, len(cfg.MCPServers))
	for name := range cfg.MCPServers {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		s := name
		if connector.IsEnabled(name) {
			s += present.StdoutStyles().Timeago.Render(" (enabled)")
		}
		fmt.Println(s)
	}
}

func listTools(ctx context.Context, cfg *config.Config) error {
	connector := imcp.New(cfg)
	servers, err := connector.Tools(ctx)
	if err != nil {
		return fmt.Errorf("list tools: %w", err)
	}

	names := make([]string, 0, len(servers))
	for name := range servers {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, sname := range names {
		tools := servers[sname]
		slices.SortFunc(tools, func(a, b mmcp.Tool) int { return strings.Compare(a.Name, b.Name) })
		for _, tool := range tools {
			_, _ = fmt.Fprint(os.Stdout, present.StdoutStyles().Timeago.Render(sname+" > "))
			_, _ = fmt.Fprintln(os.Stdout, tool.Name)
		}
	}
	return nil
}
