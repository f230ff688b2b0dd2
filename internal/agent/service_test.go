package agent

import (
	"context"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/require"

	"github.com/dotcommander/scour/internal/config"
	"github.com/dotcommander/scour/internal/errs"
	"github.com/dotcommander/scour/internal/llm"
	scourmcp "github.com/dotcommander/scour/internal/mcp"
	"github.com/dotcommander/scour/internal/proto"
	"github.com/dotcommander/scour/internal/registry"
)

type scriptedClient struct {
	replies  []llm.Reply
	requests []llm.Request
}

func (c *scriptedClient) Complete(_ context.Context, req llm.Request) (llm.Reply, error) {
	c.requests = append(c.requests, req)
	i := len(c.requests) - 1
	if i >= len(c.replies) {
		i = len(c.replies) - 1
	}
	return c.replies[i], nil
}

type scriptedInvoker struct {
	calls []string
	out   string
	err   error
}

func (f *scriptedInvoker) CallTool(_ context.Context, fullName string, _ []byte) (string, error) {
	f.calls = append(f.calls, fullName)
	if f.err != nil {
		return "", f.err
	}
	return f.out, nil
}

func testConfig() *config.Config {
	return &config.Config{Settings: config.Settings{
		SystemPrompt: "answer briefly",
		MaxToolDepth: 2,
		MCPTimeout:   time.Second,
		Temperature:  -1,
		TopP:         -1,
		TopK:         -1,
	}}
}

func testService(t *testing.T, client llm.Client, invoker registry.Invoker) *Service {
	t.Helper()
	reg, err := registry.Adapt(map[string][]mcp.Tool{
		"web": {{Name: "fetch", Description: "Fetch a page."}},
	}, invoker)
	require.NoError(t, err)
	return New(testConfig(), client, reg, config.Model{Name: "claude-3-5-sonnet-20240620", API: "anthropic"})
}

func toolCall(id, name, args string) llm.Reply {
	return llm.Reply{
		Kind: llm.ReplyToolCalls,
		ToolCalls: []proto.ToolCall{{
			ID:       id,
			Function: proto.Function{Name: name, Arguments: []byte(args)},
		}},
	}
}

func TestTurnPlainAnswer(t *testing.T) {
	client := &scriptedClient{replies: []llm.Reply{{Kind: llm.ReplyText, Text: "hello"}}}
	s := testService(t, client, &scriptedInvoker{})

	result, err := s.Turn(context.Background(), nil, "hi", nil)
	require.NoError(t, err)
	require.Equal(t, "hello", result.Reply)

	require.Len(t, result.Messages, 3)
	require.Equal(t, proto.RoleSystem, result.Messages[0].Role)
	require.Equal(t, proto.RoleUser, result.Messages[1].Role)
	require.Equal(t, proto.RoleAssistant, result.Messages[2].Role)

	require.Len(t, client.requests, 1)
	require.Len(t, client.requests[0].Tools, 1, "tools are offered on every completion")
}

func TestTurnToolRoundTrip(t *testing.T) {
	client := &scriptedClient{replies: []llm.Reply{
		toolCall("call-1", "web_fetch", `{"url":"https://example.com"}`),
		{Kind: llm.ReplyText, Text: "The page is a placeholder."},
	}}
	invoker := &scriptedInvoker{out: "# Example Domain"}
	s := testService(t, client, invoker)

	var events []Event
	result, err := s.Turn(context.Background(), nil, "what is on example.com?", func(e Event) {
		events = append(events, e)
	})
	require.NoError(t, err)
	require.Equal(t, "The page is a placeholder.", result.Reply)
	require.Equal(t, []string{"web_fetch"}, invoker.calls)

	// system, user, assistant(tool call), tool result, assistant answer
	require.Len(t, result.Messages, 5)
	require.Equal(t, proto.RoleTool, result.Messages[3].Role)
	require.Equal(t, "# Example Domain", result.Messages[3].Content)
	require.False(t, result.Messages[3].ToolCalls[0].IsError)
	require.Equal(t, "call-1", result.Messages[3].ToolCalls[0].ID)

	require.Len(t, events, 2)
	require.False(t, events[0].Done)
	require.True(t, events[1].Done)
	require.NoError(t, events[1].Err)

	// The second completion sees the tool result.
	require.Len(t, client.requests, 2)
	require.Len(t, client.requests[1].Messages, 4)
}

func TestTurnDepthLimit(t *testing.T) {
	client := &scriptedClient{replies: []llm.Reply{
		toolCall("call-1", "web_fetch", `{}`),
	}}
	s := testService(t, client, &scriptedInvoker{out: "partial"})

	result, err := s.Turn(context.Background(), nil, "loop forever", nil)

	var loopErr *LoopError
	require.ErrorAs(t, err, &loopErr)
	require.Equal(t, 2, loopErr.Depth)
	require.Empty(t, result.Reply, "a cut-off turn must not surface a partial answer")
	require.Len(t, client.requests, 3, "depth 2 allows the initial round plus two tool rounds")
}

func TestTurnContainsToolFailure(t *testing.T) {
	client := &scriptedClient{replies: []llm.Reply{
		toolCall("call-1", "web_fetch", `{"url":"https://example.com"}`),
		{Kind: llm.ReplyText, Text: "I could not fetch the page."},
	}}
	invoker := &scriptedInvoker{err: &scourmcp.ToolExecutionError{Tool: "fetch", Detail: "status 503"}}
	s := testService(t, client, invoker)

	var events []Event
	result, err := s.Turn(context.Background(), nil, "what is on example.com?", func(e Event) {
		events = append(events, e)
	})
	require.NoError(t, err, "a failed tool call is contained, not fatal")
	require.Equal(t, "I could not fetch the page.", result.Reply)

	toolMsg := result.Messages[3]
	require.Equal(t, proto.RoleTool, toolMsg.Role)
	require.True(t, toolMsg.ToolCalls[0].IsError)
	require.Contains(t, toolMsg.Content, "status 503")

	require.Error(t, events[1].Err)
}

func TestTurnContainsHallucinatedTool(t *testing.T) {
	client := &scriptedClient{replies: []llm.Reply{
		toolCall("call-1", "web_teleport", `{}`),
		{Kind: llm.ReplyText, Text: "That tool does not exist."},
	}}
	invoker := &scriptedInvoker{}
	s := testService(t, client, invoker)

	result, err := s.Turn(context.Background(), nil, "teleport me", nil)
	require.NoError(t, err)
	require.Equal(t, "That tool does not exist.", result.Reply)
	require.Empty(t, invoker.calls, "unknown names never reach the connector")
	require.True(t, result.Messages[3].ToolCalls[0].IsError)
}

func TestTurnEmptyPrompt(t *testing.T) {
	s := testService(t, &scriptedClient{replies: []llm.Reply{{}}}, &scriptedInvoker{})
	_, err := s.Turn(context.Background(), nil, "   ", nil)
	require.Error(t, err)
}

func TestTurnKeepsHistory(t *testing.T) {
	client := &scriptedClient{replies: []llm.Reply{{Kind: llm.ReplyText, Text: "again: hello"}}}
	s := testService(t, client, &scriptedInvoker{})

	history := []proto.Message{
		{Role: proto.RoleSystem, Content: "answer briefly"},
		{Role: proto.RoleUser, Content: "say hello"},
		{Role: proto.RoleAssistant, Content: "hello"},
	}
	result, err := s.Turn(context.Background(), history, "say it again", nil)
	require.NoError(t, err)
	require.Len(t, result.Messages, 5)
	require.Equal(t, "say it again", result.Messages[3].Content)
}

func TestResolveModel(t *testing.T) {
	t.Run("resolves aliases", func(t *testing.T) {
		cfg := &config.Config{Settings: config.Settings{
			API:   "anthropic",
			Model: "sonnet",
			APIs: config.APIs{{
				Name: "anthropic",
				Models: map[string]config.Model{
					"claude-3-5-sonnet-20240620": {Aliases: []string{"sonnet"}},
				},
			}},
		}}
		api, mod, err := resolveModel(cfg)
		require.NoError(t, err)
		require.Equal(t, "anthropic", api.Name)
		require.Equal(t, "claude-3-5-sonnet-20240620", mod.Name)
		require.Equal(t, "anthropic", mod.API)
	})

	t.Run("unknown model lists available ones", func(t *testing.T) {
		cfg := &config.Config{Settings: config.Settings{
			API:   "anthropic",
			Model: "nope",
			APIs: config.APIs{{
				Name:   "anthropic",
				Models: map[string]config.Model{"claude-3-5-sonnet-20240620": {}},
			}},
		}}
		_, _, err := resolveModel(cfg)
		var e errs.Error
		require.ErrorAs(t, err, &e)
		require.Contains(t, e.Reason, "does not contain the model")
	})
}
