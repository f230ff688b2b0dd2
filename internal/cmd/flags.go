package cmd

import (
	"strings"
	"time"

	"github.com/caarlos0/duration"
	flag "github.com/spf13/pflag"
)

var helpText = map[string]string{
	"model":              "Default model (claude-3-5-sonnet-20240620, gpt-4o, ...).",
	"ask-model":          "Ask which API and model to use.",
	"api":                "API to use (anthropic, openai, ollama, ...).",
	"http-proxy":         "HTTP proxy to use for API requests.",
	"raw":                "Render output as raw text without markdown formatting.",
	"quiet":              "Only output the final answer.",
	"help":               "Show help and exit.",
	"version":            "Show version and exit.",
	"max-retries":        "Maximum number of times to retry API calls.",
	"max-tokens":         "Maximum number of tokens in the answer.",
	"word-wrap":          "Wrap formatted output at specific width (default is 80).",
	"temp":               "Temperature (randomness) of results, from 0.0 to 2.0.",
	"topp":               "TopP, an alternative to temperature that narrows response, from 0.0 to 1.0.",
	"topk":               "TopK, only sample from the top K options for each subsequent token.",
	"system-prompt":      "System prompt sent at the start of every session.",
	"max-tool-depth":     "Maximum rounds of tool calls allowed within one query.",
	"mcp-timeout":        "Timeout for MCP server discovery and each tool call.",
	"mcp-disable":        "Disable specific MCP servers, or * to disable all.",
	"mcp-no-inherit-env": "Do not pass the parent environment to MCP server processes.",
	"request-timeout":    "Timeout for one full query, including tool calls.",
	"settings":           "Open settings in your $EDITOR.",
	"reset-settings":     "Backup your old settings file and reset everything to the defaults.",
	"dirs":               "Print the directories in which scour stores its data.",
	"theme":              "Theme to use in the forms; valid choices are charm, catppuccin, dracula, and base16.",
	"editor":             "Edit the prompt in your $EDITOR before sending it.",
	"status-text":        "Text to show while waiting for the answer.",
}

type durationFlag struct {
	d *time.Duration
}

func newDurationFlag(val time.Duration, p *time.Duration) *durationFlag {
	*p = val
	return &durationFlag{p}
}

// Set implements pflag.Value. It accepts extended units like d and w.
func (d *durationFlag) Set(s string) error {
	v, err := duration.Parse(s)
	*d.d = v
	return err //nolint:wrapcheck
}

func (d *durationFlag) String() string {
	if d == nil || d.d == nil {
		return ""
	}
	return d.d.String()
}

func (*durationFlag) Type() string {
	return "duration"
}

var _ flag.Value = &durationFlag{}

type flagParseError struct {
	err error
}

func newFlagParseError(err error) flagParseError {
	return flagParseError{err: err}
}

func (f flagParseError) Error() string {
	return f.err.Error()
}

// ReasonFormat returns a printf format with one %s verb for the flag name.
func (f flagParseError) ReasonFormat() string {
	msg := f.err.Error()
	switch {
	case strings.HasPrefix(msg, "unknown flag:"):
		return "Flag %s is missing."
	case strings.HasPrefix(msg, "flag needs an argument:"):
		return "Flag %s needs an argument."
	case strings.HasPrefix(msg, "invalid argument"):
		return "Flag %s have an invalid argument."
	default:
		return "Flag %s is invalid."
	}
}

// Flag extracts the offending flag name from the underlying pflag error.
func (f flagParseError) Flag() string {
	msg := f.err.Error()
	switch {
	case strings.HasPrefix(msg, "unknown flag: "):
		return strings.TrimPrefix(msg, "unknown flag: ")
	case strings.HasPrefix(msg, "flag needs an argument: "):
		rest := strings.TrimPrefix(msg, "flag needs an argument: ")
		if i := strings.LastIndex(rest, " in "); i >= 0 {
			return rest[i+len(" in "):]
		}
		return rest
	case strings.HasPrefix(msg, "invalid argument "):
		_, rest, ok := strings.Cut(msg, " for ")
		if !ok {
			return ""
		}
		if i := strings.Index(rest, " flag:"); i >= 0 {
			return strings.Trim(rest[:i], `"`)
		}
	}
	return ""
}
