// Package agent runs the tool-calling loop between the model and the tool
// registry.
//
// It is intentionally UI-agnostic and can be used by both the TUI and headless
// commands.
package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dotcommander/scour/internal/config"
	"github.com/dotcommander/scour/internal/errs"
	"github.com/dotcommander/scour/internal/llm"
	"github.com/dotcommander/scour/internal/mcp"
	"github.com/dotcommander/scour/internal/proto"
	"github.com/dotcommander/scour/internal/registry"
)

// Event reports one tool invocation inside a turn. Err is set when the call
// failed and its error text was fed back to the model instead.
type Event struct {
	ToolCall proto.ToolCall
	Err      error
	Done     bool
}

// Notify receives tool activity while a turn is running.
type Notify func(Event)

// Service drives completions for one resolved model against one adapted tool
// registry. Turns are strictly sequential; the service holds no state between
// them beyond its configuration.
type Service struct {
	cfg      *config.Config
	client   llm.Client
	registry *registry.Registry
	model    config.Model
}

// New creates an agent service from already-wired parts.
func New(cfg *config.Config, client llm.Client, reg *registry.Registry, model config.Model) *Service {
	return &Service{cfg: cfg, client: client, registry: reg, model: model}
}

// Bootstrap resolves the model, builds the provider client, discovers tools
// from all enabled servers, and binds them into a registry. Any failure here
// is fatal for the session.
func Bootstrap(ctx context.Context, cfg *config.Config) (*Service, error) {
	api, mod, err := resolveModel(cfg)
	if err != nil {
		return nil, err
	}
	cfg.API = mod.API
	cfg.Model = mod.Name

	providerCfg, err := prepareProviderConfig(ctx, mod, api)
	if err != nil {
		return nil, err
	}
	if err := ApplyProxyConfig(cfg.HTTPProxy, &providerCfg); err != nil {
		return nil, err
	}

	client, err := llm.New(providerCfg)
	if err != nil {
		return nil, fmt.Errorf("new fantasy client: %w", err)
	}

	connector := mcp.New(cfg)
	toolsCtx, cancel := context.WithTimeout(ctx, cfg.MCPTimeout)
	tools, err := connector.Tools(toolsCtx)
	cancel()
	if err != nil {
		return nil, err
	}
	reg, err := registry.Adapt(tools, connector)
	if err != nil {
		return nil, err
	}

	return New(cfg, client, reg, mod), nil
}

// Registry exposes the bound tool registry, mainly for listings.
func (s *Service) Registry() *registry.Registry { return s.registry }

// Model returns the resolved model.
func (s *Service) Model() config.Model { return s.model }

// TurnResult is the outcome of one completed turn.
type TurnResult struct {
	// Messages is the full history including every turn this call appended.
	Messages []proto.Message
	// Reply is the final assistant text.
	Reply string
}

// Turn appends the prompt to history and runs completions until the model
// produces a final answer, executing requested tools in order between rounds.
//
// Failed tool calls are recorded as error results and handed back to the
// model; only connection failures and provider errors abort the turn. A model
// that keeps requesting tools past the configured depth gets cut off with a
// *LoopError.
func (s *Service) Turn(ctx context.Context, history []proto.Message, prompt string, notify Notify) (TurnResult, error) {
	if notify == nil {
		notify = func(Event) {}
	}

	msgs, err := s.startTurn(history, prompt)
	if err != nil {
		return TurnResult{}, err
	}

	for depth := 0; depth <= s.cfg.MaxToolDepth; depth++ {
		reply, err := s.client.Complete(ctx, s.buildRequest(msgs))
		if err != nil {
			return TurnResult{Messages: msgs}, err
		}

		if reply.Kind == llm.ReplyText {
			msgs = append(msgs, proto.Message{Role: proto.RoleAssistant, Content: reply.Text})
			return TurnResult{Messages: msgs, Reply: reply.Text}, nil
		}

		msgs = append(msgs, proto.Message{
			Role:      proto.RoleAssistant,
			Content:   reply.Text,
			ToolCalls: reply.ToolCalls,
		})

		for _, call := range reply.ToolCalls {
			notify(Event{ToolCall: call})
			result, err := s.invoke(ctx, call)
			if err != nil {
				if !containable(err) {
					return TurnResult{Messages: msgs}, err
				}
				msgs = append(msgs, proto.Message{
					Role:      proto.RoleTool,
					Content:   err.Error(),
					ToolCalls: []proto.ToolCall{{ID: call.ID, Function: call.Function, IsError: true}},
				})
				notify(Event{ToolCall: call, Err: err, Done: true})
				continue
			}
			msgs = append(msgs, proto.Message{
				Role:      proto.RoleTool,
				Content:   result,
				ToolCalls: []proto.ToolCall{{ID: call.ID, Function: call.Function}},
			})
			notify(Event{ToolCall: call, Done: true})
		}
	}

	return TurnResult{Messages: msgs}, &LoopError{Depth: s.cfg.MaxToolDepth}
}

func (s *Service) startTurn(history []proto.Message, prompt string) ([]proto.Message, error) {
	cfg := s.cfg
	msgs := make([]proto.Message, 0, len(history)+2)
	if len(history) == 0 && cfg.SystemPrompt != "" {
		msgs = append(msgs, proto.Message{Role: proto.RoleSystem, Content: cfg.SystemPrompt})
	}
	msgs = append(msgs, history...)

	if prefix := cfg.Prefix; prefix != "" {
		prompt = strings.TrimSpace(prefix + "\n\n" + prompt)
	}
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, errs.Error{Reason: "The prompt is empty."}
	}

	maxChars := s.model.MaxChars
	if maxChars == 0 {
		maxChars = cfg.MaxInputChars
	}
	if maxChars > 0 && int64(len(prompt)) > maxChars {
		prompt = prompt[:maxChars]
	}

	return append(msgs, proto.Message{Role: proto.RoleUser, Content: prompt}), nil
}

func (s *Service) buildRequest(msgs []proto.Message) llm.Request {
	cfg := s.cfg
	request := llm.Request{
		Model:    s.model.Name,
		Messages: msgs,
		Tools:    s.registry.FantasyTools(),
	}
	// o1 models do not accept max_tokens.
	if cfg.MaxTokens > 0 && !strings.HasPrefix(s.model.Name, "o1") {
		v := cfg.MaxTokens
		request.MaxTokens = &v
	}
	if cfg.Temperature >= 0 {
		v := cfg.Temperature
		request.Temperature = &v
	}
	if cfg.TopP >= 0 {
		v := cfg.TopP
		request.TopP = &v
	}
	if cfg.TopK >= 0 {
		v := cfg.TopK
		request.TopK = &v
	}
	return request
}

func (s *Service) invoke(ctx context.Context, call proto.ToolCall) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.cfg.MCPTimeout)
	defer cancel()
	return s.registry.Invoke(callCtx, call.Function.Name, call.Function.Arguments)
}

// containable reports whether a tool failure should be fed back to the model
// rather than abort the turn. Hallucinated names, provider-reported failures
// and per-call timeouts are all things the model can recover from.
func containable(err error) bool {
	var execErr *mcp.ToolExecutionError
	if errors.As(err, &execErr) {
		return true
	}
	var regErr *registry.Error
	if errors.As(err, &regErr) {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}
