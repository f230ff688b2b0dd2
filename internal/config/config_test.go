package config

import (
	"bytes"
	"testing"
	"text/template"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestDefaultTemplateParses(t *testing.T) {
	tmpl := template.Must(template.New("config").Parse(configTemplate))
	var buf bytes.Buffer
	require.NoError(t, tmpl.Execute(&buf, struct{ Config Config }{Config: Default()}))

	var cfg Config
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &cfg))

	require.Equal(t, "anthropic", cfg.API)
	require.Equal(t, "claude-3-5-sonnet-20240620", cfg.Model)
	require.Equal(t, 10, cfg.MaxToolDepth)

	server, ok := cfg.MCPServers["brightdata"]
	require.True(t, ok, "default config should configure the brightdata server")
	require.Equal(t, "npx", server.Command)
	require.Contains(t, server.Env, "API_TOKEN")
	require.Contains(t, server.Env, "WEB_UNLOCKER_ZONE")

	var anthropic *API
	for i := range cfg.APIs {
		if cfg.APIs[i].Name == "anthropic" {
			anthropic = &cfg.APIs[i]
		}
	}
	require.NotNil(t, anthropic)
	require.Equal(t, "ANTHROPIC_API_KEY", anthropic.APIKeyEnv)
	require.Contains(t, anthropic.Models, "claude-3-5-sonnet-20240620")
}

func TestAPIsUnmarshalKeepsNames(t *testing.T) {
	var cfg Config
	require.NoError(t, yaml.Unmarshal([]byte(
		"apis:\n  anthropic:\n    api-key-env: ANTHROPIC_API_KEY\n  openai:\n    base-url: https://api.openai.com/v1\n",
	), &cfg))
	require.Len(t, cfg.APIs, 2)
	require.Equal(t, "anthropic", cfg.APIs[0].Name)
	require.Equal(t, "openai", cfg.APIs[1].Name)
	require.Equal(t, "https://api.openai.com/v1", cfg.APIs[1].BaseURL)
}

func TestResolveEnv(t *testing.T) {
	t.Run("literal entries pass through", func(t *testing.T) {
		server := MCPServerConfig{Env: []string{"FOO=bar"}}
		env, err := server.ResolveEnv()
		require.NoError(t, err)
		require.Equal(t, []string{"FOO=bar"}, env)
	})

	t.Run("bare names resolve from the parent environment", func(t *testing.T) {
		t.Setenv("SCOUR_TEST_TOKEN", "tok-123")
		server := MCPServerConfig{Env: []string{"SCOUR_TEST_TOKEN"}}
		env, err := server.ResolveEnv()
		require.NoError(t, err)
		require.Equal(t, []string{"SCOUR_TEST_TOKEN=tok-123"}, env)
	})

	t.Run("missing bare name fails", func(t *testing.T) {
		server := MCPServerConfig{Env: []string{"SCOUR_TEST_DOES_NOT_EXIST"}}
		_, err := server.ResolveEnv()
		require.Error(t, err)
		require.Contains(t, err.Error(), "SCOUR_TEST_DOES_NOT_EXIST")
	})
}

func TestValidate(t *testing.T) {
	t.Run("missing credential fails before any launch", func(t *testing.T) {
		cfg := &Config{Settings: Settings{
			MCPServers: map[string]MCPServerConfig{
				"brightdata": {Command: "npx", Env: []string{"SCOUR_TEST_MISSING_CRED"}},
			},
		}}
		err := Validate(cfg)
		require.Error(t, err)
		require.Contains(t, err.Error(), "SCOUR_TEST_MISSING_CRED")
	})

	t.Run("disabled servers are skipped", func(t *testing.T) {
		cfg := &Config{Settings: Settings{
			MCPServers: map[string]MCPServerConfig{
				"brightdata": {Command: "npx", Env: []string{"SCOUR_TEST_MISSING_CRED"}},
			},
			MCPDisable: []string{"brightdata"},
		}}
		require.NoError(t, Validate(cfg))
	})

	t.Run("wildcard disable skips everything", func(t *testing.T) {
		cfg := &Config{Settings: Settings{
			MCPServers: map[string]MCPServerConfig{
				"a": {Env: []string{"SCOUR_TEST_MISSING_CRED"}},
				"b": {Env: []string{"SCOUR_TEST_MISSING_CRED"}},
			},
			MCPDisable: []string{"*"},
		}}
		require.NoError(t, Validate(cfg))
	})
}

func TestApplyDefaults(t *testing.T) {
	var cfg Config
	applyDefaults(&cfg)
	require.Equal(t, 80, cfg.WordWrap)
	require.Equal(t, 10, cfg.MaxToolDepth)
	require.Equal(t, Default().MCPTimeout, cfg.MCPTimeout)
	require.NotEmpty(t, cfg.SystemPrompt)
}
