package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"
	"time"

	_ "embed"

	"github.com/caarlos0/env/v9"
	"gopkg.in/yaml.v3"

	"github.com/dotcommander/scour/internal/errs"
)

//go:embed config_template.yml
var configTemplate string

const defaultSystemPrompt = "You can use multiple tools in sequence to answer complex queries."

// Model represents the LLM model used in the API call.
type Model struct {
	Name     string
	API      string
	MaxChars int64    `yaml:"max-input-chars"`
	Aliases  []string `yaml:"aliases"`
}

// API represents an API endpoint and its models.
type API struct {
	Name      string
	APIKey    string           `yaml:"api-key"`
	APIKeyEnv string           `yaml:"api-key-env"`
	APIKeyCmd string           `yaml:"api-key-cmd"`
	BaseURL   string           `yaml:"base-url"`
	Models    map[string]Model `yaml:"models"`
}

// APIs is a type alias to allow custom YAML decoding.
type APIs []API

// UnmarshalYAML implements sorted API YAML decoding.
func (apis *APIs) UnmarshalYAML(node *yaml.Node) error {
	for i := 0; i < len(node.Content); i += 2 {
		var api API
		if err := node.Content[i+1].Decode(&api); err != nil {
			return fmt.Errorf("error decoding YAML file: %s", err)
		}
		api.Name = node.Content[i].Value
		*apis = append(*apis, api)
	}
	return nil
}

// MCPServerConfig holds configuration for one MCP tool server.
//
// Env entries of the form KEY=VALUE are passed literally; bare KEY entries
// are forwarded from the parent environment and are required at startup.
type MCPServerConfig struct {
	Type    string   `yaml:"type"`
	Command string   `yaml:"command"`
	Env     []string `yaml:"env"`
	Args    []string `yaml:"args"`
	URL     string   `yaml:"url"`
}

// ResolveEnv expands the server's Env list into KEY=VALUE pairs, pulling bare
// names from the parent environment. A bare name absent from the environment
// is a configuration error; it must surface before the server subprocess is
// ever launched.
func (s MCPServerConfig) ResolveEnv() ([]string, error) {
	resolved := make([]string, 0, len(s.Env))
	for _, entry := range s.Env {
		if strings.Contains(entry, "=") {
			resolved = append(resolved, entry)
			continue
		}
		value, ok := os.LookupEnv(entry)
		if !ok {
			return nil, errs.Error{
				Err:    errs.UserErrorf("set %s in your environment and try again", entry),
				Reason: fmt.Sprintf("Missing required environment variable %s.", entry),
			}
		}
		resolved = append(resolved, entry+"="+value)
	}
	return resolved, nil
}

// Settings holds persisted configuration loaded from the YAML settings file
// and environment variables.
type Settings struct {
	API            string        `yaml:"default-api" env:"API"`
	Model          string        `yaml:"default-model" env:"MODEL"`
	SystemPrompt   string        `yaml:"system-prompt" env:"SYSTEM_PROMPT"`
	Quiet          bool          `yaml:"quiet" env:"QUIET"`
	Raw            bool          `yaml:"raw" env:"RAW"`
	MaxTokens      int64         `yaml:"max-tokens" env:"MAX_TOKENS"`
	Temperature    float64       `yaml:"temp" env:"TEMP"`
	TopP           float64       `yaml:"topp" env:"TOPP"`
	TopK           int64         `yaml:"topk" env:"TOPK"`
	MaxInputChars  int64         `yaml:"max-input-chars" env:"MAX_INPUT_CHARS"`
	WordWrap       int           `yaml:"word-wrap" env:"WORD_WRAP"`
	MaxRetries     int           `yaml:"max-retries" env:"MAX_RETRIES"`
	HTTPProxy      string        `yaml:"http-proxy" env:"HTTP_PROXY"`
	StatusText     string        `yaml:"status-text" env:"STATUS_TEXT"`
	Theme          string        `yaml:"theme" env:"THEME"`
	RequestTimeout time.Duration `yaml:"request-timeout" env:"REQUEST_TIMEOUT"`
	APIs           APIs          `yaml:"apis"`

	MaxToolDepth    int                        `yaml:"max-tool-depth" env:"MAX_TOOL_DEPTH"`
	MCPServers      map[string]MCPServerConfig `yaml:"mcp-servers"`
	MCPDisable      []string                   `yaml:"mcp-disable" env:"MCP_DISABLE"`
	MCPTimeout      time.Duration              `yaml:"mcp-timeout" env:"MCP_TIMEOUT"`
	MCPNoInheritEnv bool                       `yaml:"mcp-no-inherit-env" env:"MCP_NO_INHERIT_ENV"`
}

// Runtime holds CLI/runtime-only options that should not be loaded from the
// settings file.
type Runtime struct {
	AskModel      bool
	ShowHelp      bool
	Version       bool
	Prefix        string
	SettingsPath  string
	EditSettings  bool
	ResetSettings bool
	Dirs          bool
	OpenEditor    bool
}

// Config is the application configuration (settings + runtime-only options).
//
// Settings fields are promoted for ergonomic access, but runtime fields are
// explicitly excluded from YAML/env parsing.
type Config struct {
	Settings `yaml:",inline"`
	Runtime  `yaml:"-" env:"-"`
}

// Ensure loads settings from disk and environment and applies defaults.
//
// It also creates the default settings file if it does not exist.
func Ensure() (Config, error) {
	var c Config
	home, err := os.UserHomeDir()
	if err != nil {
		return c, errs.Error{Err: err, Reason: "Could not determine home directory."}
	}

	sp := filepath.Join(home, ".config", "scour", "scour.yml")
	c.SettingsPath = sp

	dir := filepath.Dir(sp)
	if dirErr := os.MkdirAll(dir, 0o700); dirErr != nil {
		return c, errs.Error{Err: dirErr, Reason: "Could not create config directory."}
	}

	if dirErr := WriteConfigFile(sp); dirErr != nil {
		return c, dirErr
	}
	content, err := os.ReadFile(sp)
	if err != nil {
		return c, errs.Error{Err: err, Reason: "Could not read settings file."}
	}
	if err := yaml.Unmarshal(content, &c); err != nil {
		return c, errs.Error{Err: err, Reason: "Could not parse settings file."}
	}

	if err := env.ParseWithOptions(&c, env.Options{Prefix: "SCOUR_"}); err != nil {
		return c, errs.Error{Err: err, Reason: "Could not parse environment into settings file."}
	}

	applyDefaults(&c)
	return c, nil
}

func applyDefaults(c *Config) {
	def := Default()
	if c.WordWrap == 0 {
		c.WordWrap = def.WordWrap
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = def.MaxRetries
	}
	if c.SystemPrompt == "" {
		c.SystemPrompt = def.SystemPrompt
	}
	if c.MCPTimeout == 0 {
		c.MCPTimeout = def.MCPTimeout
	}
	if c.MaxToolDepth == 0 {
		c.MaxToolDepth = def.MaxToolDepth
	}
}

// Validate checks everything a session needs before any connection is
// attempted: required environment variables for every enabled tool server
// must resolve. Failing here keeps a missing credential from surfacing deep
// inside a tool call, after a subprocess has already been spawned.
func Validate(c *Config) error {
	for name, server := range c.MCPServers {
		if IsDisabled(c, name) {
			continue
		}
		if _, err := server.ResolveEnv(); err != nil {
			var e errs.Error
			if errors.As(err, &e) {
				return errs.Wrap(e.Err, fmt.Sprintf("MCP server %q is not usable: %s", name, e.Reason))
			}
			return errs.Wrapf(err, "MCP server %q is not usable.", name)
		}
	}
	return nil
}

// IsDisabled reports whether the named MCP server is disabled by settings.
func IsDisabled(c *Config, name string) bool {
	for _, d := range c.MCPDisable {
		if d == "*" || d == name {
			return true
		}
	}
	return false
}

// WriteConfigFile creates the config file at path if it does not exist.
func WriteConfigFile(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return createConfigFile(path)
	} else if err != nil {
		return errs.Error{Err: err, Reason: "Could not stat path."}
	}
	return nil
}

func createConfigFile(path string) error {
	tmpl := template.Must(template.New("config").Parse(configTemplate))

	f, err := os.Create(path)
	if err != nil {
		return errs.Error{Err: err, Reason: "Could not create configuration file."}
	}
	defer func() { _ = f.Close() }()

	m := struct{ Config Config }{Config: Default()}
	if err := tmpl.Execute(f, m); err != nil {
		return errs.Error{Err: err, Reason: "Could not render template."}
	}
	return nil
}

// Default returns the default configuration values.
func Default() Config {
	return Config{
		Settings: Settings{
			API:          "anthropic",
			Model:        "claude-3-5-sonnet-20240620",
			SystemPrompt: defaultSystemPrompt,
			Temperature:  -1,
			TopP:         -1,
			TopK:         -1,
			WordWrap:     80,
			MaxRetries:   3,
			MCPTimeout:   15 * time.Second,
			MaxToolDepth: 10,
		},
	}
}
