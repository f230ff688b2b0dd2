package cmd

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/dotcommander/scour/internal/agent"
	"github.com/dotcommander/scour/internal/config"
	"github.com/dotcommander/scour/internal/errs"
	"github.com/dotcommander/scour/internal/present"
	"github.com/dotcommander/scour/internal/tui"
)

func newChatCmd(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat [initial query]",
		Short: "Start an interactive multi-turn chat session",
		Long:  "Start an interactive REPL for multi-turn conversations, with scraping tools available on every turn. Type /exit or press Ctrl+C to quit.",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if rt.cfgErr != nil {
				return rt.cfgErr
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return rt.runChat(ctx, args)
		},
	}

	initChatFlags(cmd, &rt.cfg)
	return cmd
}

func initChatFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	flags.StringVarP(&cfg.Model, "model", "m", cfg.Model, present.StdoutStyles().FlagDesc.Render(helpText["model"]))
	flags.StringVarP(&cfg.API, "api", "a", cfg.API, present.StdoutStyles().FlagDesc.Render(helpText["api"]))
	flags.StringVarP(&cfg.HTTPProxy, "http-proxy", "x", cfg.HTTPProxy, present.StdoutStyles().FlagDesc.Render(helpText["http-proxy"]))
	flags.StringVar(&cfg.SystemPrompt, "system-prompt", cfg.SystemPrompt, present.StdoutStyles().FlagDesc.Render(helpText["system-prompt"]))
	flags.Int64Var(&cfg.MaxTokens, "max-tokens", cfg.MaxTokens, present.StdoutStyles().FlagDesc.Render(helpText["max-tokens"]))
	flags.Float64Var(&cfg.Temperature, "temp", cfg.Temperature, present.StdoutStyles().FlagDesc.Render(helpText["temp"]))
	flags.Float64Var(&cfg.TopP, "topp", cfg.TopP, present.StdoutStyles().FlagDesc.Render(helpText["topp"]))
	flags.Int64Var(&cfg.TopK, "topk", cfg.TopK, present.StdoutStyles().FlagDesc.Render(helpText["topk"]))
	flags.IntVar(&cfg.MaxRetries, "max-retries", cfg.MaxRetries, present.StdoutStyles().FlagDesc.Render(helpText["max-retries"]))
	flags.Var(newDurationFlag(cfg.RequestTimeout, &cfg.RequestTimeout), "request-timeout", present.StdoutStyles().FlagDesc.Render(helpText["request-timeout"]))
	flags.IntVar(&cfg.WordWrap, "word-wrap", cfg.WordWrap, present.StdoutStyles().FlagDesc.Render(helpText["word-wrap"]))
	flags.IntVar(&cfg.MaxToolDepth, "max-tool-depth", cfg.MaxToolDepth, present.StdoutStyles().FlagDesc.Render(helpText["max-tool-depth"]))
	flags.Var(newDurationFlag(cfg.MCPTimeout, &cfg.MCPTimeout), "mcp-timeout", present.StdoutStyles().FlagDesc.Render(helpText["mcp-timeout"]))
	flags.StringArrayVar(&cfg.MCPDisable, "mcp-disable", nil, present.StdoutStyles().FlagDesc.Render(helpText["mcp-disable"]))
	flags.BoolVar(&cfg.MCPNoInheritEnv, "mcp-no-inherit-env", cfg.MCPNoInheritEnv, present.StdoutStyles().FlagDesc.Render(helpText["mcp-no-inherit-env"]))
	flags.StringVar(&cfg.Theme, "theme", "charm", present.StdoutStyles().FlagDesc.Render(helpText["theme"]))
	flags.SortFlags = false
}

func (rt *runtime) runChat(ctx context.Context, args []string) error {
	initialPrompt := strings.TrimSpace(strings.Join(args, " "))

	if err := config.Validate(&rt.cfg); err != nil {
		return err
	}

	agentSvc, err := agent.Bootstrap(ctx, &rt.cfg)
	if err != nil {
		return err
	}

	chat := tui.NewChat(ctx, present.StderrRenderer(), &rt.cfg, agentSvc, nil, initialPrompt)

	p := tea.NewProgram(chat, tea.WithAltScreen(), tea.WithOutput(os.Stderr))
	m, err := p.Run()
	if err != nil {
		return errs.Wrap(err, "Couldn't start chat program.")
	}

	c := m.(*tui.Chat)
	if c.Error != nil {
		return *c.Error
	}

	return nil
}
