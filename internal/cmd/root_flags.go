package cmd

import (
	"github.com/spf13/cobra"

	"github.com/dotcommander/scour/internal/config"
	"github.com/dotcommander/scour/internal/present"
)

func initRootFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	flags.StringVarP(&cfg.Model, "model", "m", cfg.Model, present.StdoutStyles().FlagDesc.Render(helpText["model"]))
	flags.BoolVarP(&cfg.AskModel, "ask-model", "M", cfg.AskModel, present.StdoutStyles().FlagDesc.Render(helpText["ask-model"]))
	flags.StringVarP(&cfg.API, "api", "a", cfg.API, present.StdoutStyles().FlagDesc.Render(helpText["api"]))
	flags.StringVarP(&cfg.HTTPProxy, "http-proxy", "x", cfg.HTTPProxy, present.StdoutStyles().FlagDesc.Render(helpText["http-proxy"]))
	flags.BoolVarP(&cfg.Raw, "raw", "r", cfg.Raw, present.StdoutStyles().FlagDesc.Render(helpText["raw"]))
	flags.BoolVarP(&cfg.Quiet, "quiet", "q", cfg.Quiet, present.StdoutStyles().FlagDesc.Render(helpText["quiet"]))
	flags.BoolVarP(&cfg.ShowHelp, "help", "h", false, present.StdoutStyles().FlagDesc.Render(helpText["help"]))
	flags.BoolVarP(&cfg.Version, "version", "v", false, present.StdoutStyles().FlagDesc.Render(helpText["version"]))
	flags.StringVar(&cfg.SystemPrompt, "system-prompt", cfg.SystemPrompt, present.StdoutStyles().FlagDesc.Render(helpText["system-prompt"]))
	flags.IntVar(&cfg.MaxRetries, "max-retries", cfg.MaxRetries, present.StdoutStyles().FlagDesc.Render(helpText["max-retries"]))
	flags.Int64Var(&cfg.MaxTokens, "max-tokens", cfg.MaxTokens, present.StdoutStyles().FlagDesc.Render(helpText["max-tokens"]))
	flags.IntVar(&cfg.WordWrap, "word-wrap", cfg.WordWrap, present.StdoutStyles().FlagDesc.Render(helpText["word-wrap"]))
	flags.Float64Var(&cfg.Temperature, "temp", cfg.Temperature, present.StdoutStyles().FlagDesc.Render(helpText["temp"]))
	flags.Float64Var(&cfg.TopP, "topp", cfg.TopP, present.StdoutStyles().FlagDesc.Render(helpText["topp"]))
	flags.Int64Var(&cfg.TopK, "topk", cfg.TopK, present.StdoutStyles().FlagDesc.Render(helpText["topk"]))
	flags.IntVar(&cfg.MaxToolDepth, "max-tool-depth", cfg.MaxToolDepth, present.StdoutStyles().FlagDesc.Render(helpText["max-tool-depth"]))
	flags.Var(newDurationFlag(cfg.MCPTimeout, &cfg.MCPTimeout), "mcp-timeout", present.StdoutStyles().FlagDesc.Render(helpText["mcp-timeout"]))
	flags.StringArrayVar(&cfg.MCPDisable, "mcp-disable", nil, present.StdoutStyles().FlagDesc.Render(helpText["mcp-disable"]))
	flags.BoolVar(&cfg.MCPNoInheritEnv, "mcp-no-inherit-env", cfg.MCPNoInheritEnv, present.StdoutStyles().FlagDesc.Render(helpText["mcp-no-inherit-env"]))
	flags.Var(newDurationFlag(cfg.RequestTimeout, &cfg.RequestTimeout), "request-timeout", present.StdoutStyles().FlagDesc.Render(helpText["request-timeout"]))
	flags.BoolVar(&cfg.EditSettings, "settings", false, present.StdoutStyles().FlagDesc.Render(helpText["settings"]))
	flags.BoolVar(&cfg.ResetSettings, "reset-settings", cfg.ResetSettings, present.StdoutStyles().FlagDesc.Render(helpText["reset-settings"]))
	flags.BoolVar(&cfg.Dirs, "dirs", false, present.StdoutStyles().FlagDesc.Render(helpText["dirs"]))
	flags.StringVar(&cfg.Theme, "theme", "charm", present.StdoutStyles().FlagDesc.Render(helpText["theme"]))
	flags.BoolVarP(&cfg.OpenEditor, "editor", "e", false, present.StdoutStyles().FlagDesc.Render(helpText["editor"]))
	flags.StringVar(&cfg.StatusText, "status-text", cfg.StatusText, present.StdoutStyles().FlagDesc.Render(helpText["status-text"]))
	flags.SortFlags = false

	flags.BoolVar(&memprofile, "memprofile", false, "Write memory profiles to CWD")
	_ = flags.MarkHidden("memprofile")

	cmd.MarkFlagsMutuallyExclusive(
		"settings",
		"reset-settings",
		"dirs",
	)
}
