package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"

	glamour "github.com/charmbracelet/glamour/styles"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/x/editor"
	"github.com/spf13/cobra"

	"github.com/dotcommander/scour/internal/agent"
	"github.com/dotcommander/scour/internal/config"
	"github.com/dotcommander/scour/internal/errs"
	"github.com/dotcommander/scour/internal/present"
)

type runtime struct {
	build  BuildInfo
	cfg    config.Config
	cfgErr error
}

// NewRootCmd constructs the Cobra root command.
func NewRootCmd(build BuildInfo, cfg config.Config, cfgErr error) *cobra.Command {
	// XXX: unset error styles in Glamour dark and light styles.
	glamour.DarkStyleConfig.CodeBlock.Chroma.Error.BackgroundColor = new(string)
	glamour.LightStyleConfig.CodeBlock.Chroma.Error.BackgroundColor = new(string)

	rt := &runtime{build: normalizeBuildInfo(build), cfg: cfg, cfgErr: cfgErr}

	rootCmd := &cobra.Command{
		Use:           "scour",
		Short:         "Ask the web anything. Scraping tools included.",
		SilenceUsage:  true,
		SilenceErrors: true,
		Example:       randomExample(),
		RunE: func(cmd *cobra.Command, args []string) error {
			if rt.cfgErr != nil {
				return rt.cfgErr
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			cmd.SetContext(ctx)
			return rt.runQuery(cmd, args)
		},
	}

	rootCmd.SetUsageFunc(usageFunc)
	rootCmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return newFlagParseError(err)
	})

	rootCmd.CompletionOptions.HiddenDefaultCmd = true
	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})

	rootCmd.Version = rt.build.Version
	rootCmd.SetVersionTemplate(versionTemplate(rt.build))

	initRootFlags(rootCmd, &rt.cfg)

	// Commands.
	rootCmd.AddCommand(newChatCmd(rt))
	rootCmd.AddCommand(newToolsCmd(rt))
	rootCmd.AddCommand(newServersCmd(rt))
	rootCmd.AddCommand(newConfigCmd(rt))
	rootCmd.AddCommand(newManCmd(rootCmd))

	// Enable completion now that we have subcommands.
	rootCmd.InitDefaultCompletionCmd()

	return rootCmd
}

func (rt *runtime) runQuery(cmd *cobra.Command, args []string) error {
	rt.cfg.Prefix = removeWhitespace(strings.Join(args, " "))

	// Headless modes still drain stdin to keep pipes predictable.
	switch {
	case rt.cfg.ShowHelp:
		drainStdin()
		if err := cmd.Usage(); err != nil {
			return fmt.Errorf("usage: %w", err)
		}
		return nil
	case rt.cfg.Dirs:
		drainStdin()
		printDirs(&rt.cfg)
		return nil
	case rt.cfg.EditSettings:
		drainStdin()
		return editSettings(&rt.cfg)
	case rt.cfg.ResetSettings:
		drainStdin()
		return resetSettings(&rt.cfg)
	}

	if isNoArgs(&rt.cfg) && present.IsInputTTY() && rt.cfg.OpenEditor {
		prompt, err := prefixFromEditor(rt.cfg.SettingsPath)
		if err != nil {
			return err
		}
		rt.cfg.Prefix = prompt
	}

	if (isNoArgs(&rt.cfg) || rt.cfg.AskModel) && present.IsInputTTY() {
		if err := askInfo(&rt.cfg); err != nil && err == huh.ErrUserAborted {
			return errs.Error{Err: err, Reason: "User canceled."}
		} else if err != nil {
			return errs.Error{Err: err, Reason: "Prompt failed."}
		}
	}

	prompt := readStdin()
	if prompt == "" && rt.cfg.Prefix == "" {
		return errs.Error{
			Reason: "You haven't provided any prompt input.",
			Err: errs.UserErrorf(
				"You can give your prompt as arguments and/or pipe it from STDIN.\nExample: %s",
				present.StdoutStyles().InlineCode.Render("scour [prompt]"),
			),
		}
	}

	if err := config.Validate(&rt.cfg); err != nil {
		return err
	}

	agentSvc, err := agent.Bootstrap(cmd.Context(), &rt.cfg)
	if err != nil {
		return err
	}

	return rt.completeOnce(cmd.Context(), agentSvc, prompt)
}

// completeOnce runs a single headless query, retrying where the provider
// allows it, and prints the final answer to stdout.
func (rt *runtime) completeOnce(ctx context.Context, svc *agent.Service, prompt string) error {
	notify := func(e agent.Event) {
		if rt.cfg.Quiet || !e.Done {
			return
		}
		line := "* called " + e.ToolCall.Function.Name
		if e.Err != nil {
			line = "* " + e.ToolCall.Function.Name + " failed"
		}
		fmt.Fprintln(os.Stderr, present.StderrStyles().Comment.Render(line))
	}

	var result agent.TurnResult
	for attempt := 0; ; attempt++ {
		tctx := ctx
		cancel := context.CancelFunc(func() {})
		if rt.cfg.RequestTimeout > 0 {
			tctx, cancel = context.WithTimeout(ctx, rt.cfg.RequestTimeout)
		}
		var err error
		result, err = svc.Turn(tctx, nil, prompt, notify)
		cancel()
		if err == nil {
			break
		}
		action := svc.ActionForError(err, prompt)
		if action.Retry && attempt < rt.cfg.MaxRetries-1 {
			prompt = action.Prompt
			continue
		}
		return action.Err
	}

	out := result.Reply
	if present.IsOutputTTY() && !rt.cfg.Raw {
		if formatted, err := present.RenderMarkdownForTTY(out, rt.cfg.WordWrap); err == nil {
			out = formatted
		}
		fmt.Print(out)
		return nil
	}
	fmt.Println(out)
	return nil
}

func prefixFromEditor(appName string) (string, error) {
	f, err := os.CreateTemp("", "prompt")
	if err != nil {
		return "", fmt.Errorf("could not create temporary file: %w", err)
	}
	_ = f.Close()
	defer func() { _ = os.Remove(f.Name()) }()

	c, err := editor.Cmd(
		appName,
		f.Name(),
	)
	if err != nil {
		return "", fmt.Errorf("could not open editor: %w", err)
	}
	c.Stdin = os.Stdin
	c.Stderr = os.Stderr
	c.Stdout = os.Stdout
	if err := c.Run(); err != nil {
		return "", fmt.Errorf("could not open editor: %w", err)
	}
	prompt, err := os.ReadFile(f.Name())
	if err != nil {
		return "", fmt.Errorf("could not read file: %w", err)
	}
	return string(prompt), nil
}

func removeWhitespace(s string) string {
	if strings.TrimSpace(s) == "" {
		return ""
	}
	return s
}

// askInfo is the interactive prompt that can pick API/model and optionally the prompt.
func askInfo(cfg *config.Config) error {
	if err := promptForAPIAndModel(cfg); err != nil {
		return fmt.Errorf("prompt: %w", err)
	}
	return nil
}

func promptForAPIAndModel(cfg *config.Config) error {
	apis := make([]huh.Option[string], 0, len(cfg.APIs))
	opts := map[string][]huh.Option[string]{}
	for _, api := range cfg.APIs {
		apis = append(apis, huh.NewOption(api.Name, api.Name))
		for name, model := range api.Models {
			opts[api.Name] = append(opts[api.Name], huh.NewOption(name, name))

			if !cfg.AskModel &&
				(cfg.API == "" || cfg.API == api.Name) &&
				(cfg.Model == name || slices.Contains(model.Aliases, cfg.Model)) {
				cfg.API = api.Name
				cfg.Model = name
			}
		}
	}

	if err := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Choose the API:").
				Options(apis...).
				Value(&cfg.API),
			huh.NewSelect[string]().
				TitleFunc(func() string {
					return fmt.Sprintf("Choose the model for '%s':", cfg.API)
				}, &cfg.API).
				OptionsFunc(func() []huh.Option[string] {
					return opts[cfg.API]
				}, &cfg.API).
				Value(&cfg.Model),
		),
		huh.NewGroup(
			huh.NewText().
				TitleFunc(func() string {
					return fmt.Sprintf("Enter a query for %s/%s:", cfg.API, cfg.Model)
				}, &cfg.Model).
				Value(&cfg.Prefix),
		).WithHideFunc(func() bool {
			return cfg.Prefix != ""
		}),
	).
		WithTheme(themeFrom(cfg.Theme)).
		Run(); err != nil {
		return fmt.Errorf("prompt form: %w", err)
	}
	return nil
}

func themeFrom(theme string) *huh.Theme {
	switch theme {
	case "dracula":
		return huh.ThemeDracula()
	case "catppuccin":
		return huh.ThemeCatppuccin()
	case "base16":
		return huh.ThemeBase16()
	default:
		return huh.ThemeCharm()
	}
}
