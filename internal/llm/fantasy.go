package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"charm.land/fantasy"
	"charm.land/fantasy/providers/anthropic"
	"charm.land/fantasy/providers/azure"
	"charm.land/fantasy/providers/bedrock"
	fgoogle "charm.land/fantasy/providers/google"
	fopenai "charm.land/fantasy/providers/openai"
	fopenaicompat "charm.land/fantasy/providers/openaicompat"
	"charm.land/fantasy/providers/openrouter"
	"charm.land/fantasy/providers/vercel"

	"github.com/dotcommander/scour/internal/proto"
)

var _ Client = &FantasyClient{}

const (
	apiAnthropic = "anthropic"
	apiGoogle    = "google"
	apiOpenAI    = "openai"
	apiAzure     = "azure"
	apiAzureAD   = "azure-ad"
)

// Config represents provider configuration used by the fantasy client.
type Config struct {
	API        string
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

// FantasyClient is a Client backed by charm.land/fantasy.
type FantasyClient struct {
	provider fantasy.Provider
}

// New creates a new fantasy-backed client for the configured API.
func New(cfg Config) (*FantasyClient, error) {
	provider, err := newProvider(cfg)
	if err != nil {
		return nil, err
	}
	return &FantasyClient{provider: provider}, nil
}

func newProvider(cfg Config) (fantasy.Provider, error) {
	switch cfg.API {
	case apiOpenAI:
		opts := []fopenai.Option{fopenai.WithAPIKey(cfg.APIKey)}
		if cfg.BaseURL != "" {
			opts = append(opts, fopenai.WithBaseURL(cfg.BaseURL))
		}
		if cfg.HTTPClient != nil {
			opts = append(opts, fopenai.WithHTTPClient(cfg.HTTPClient))
		}
		provider, err := fopenai.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("new fantasy openai provider: %w", err)
		}
		return provider, nil
	case apiAnthropic:
		opts := []anthropic.Option{anthropic.WithAPIKey(cfg.APIKey)}
		if cfg.BaseURL != "" {
			opts = append(opts, anthropic.WithBaseURL(strings.TrimSuffix(cfg.BaseURL, "/v1")))
		}
		if cfg.HTTPClient != nil {
			opts = append(opts, anthropic.WithHTTPClient(cfg.HTTPClient))
		}
		provider, err := anthropic.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("new fantasy anthropic provider: %w", err)
		}
		return provider, nil
	case apiGoogle:
		opts := []fgoogle.Option{fgoogle.WithGeminiAPIKey(cfg.APIKey)}
		if cfg.BaseURL != "" {
			opts = append(opts, fgoogle.WithBaseURL(cfg.BaseURL))
		}
		if cfg.HTTPClient != nil {
			opts = append(opts, fgoogle.WithHTTPClient(cfg.HTTPClient))
		}
		provider, err := fgoogle.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("new fantasy google provider: %w", err)
		}
		return provider, nil
	case apiAzure, apiAzureAD:
		opts := []azure.Option{azure.WithAPIKey(cfg.APIKey), azure.WithBaseURL(cfg.BaseURL)}
		if cfg.HTTPClient != nil {
			opts = append(opts, azure.WithHTTPClient(cfg.HTTPClient))
		}
		provider, err := azure.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("new fantasy azure provider: %w", err)
		}
		return provider, nil
	case "openrouter":
		opts := []openrouter.Option{openrouter.WithAPIKey(cfg.APIKey)}
		if cfg.HTTPClient != nil {
			opts = append(opts, openrouter.WithHTTPClient(cfg.HTTPClient))
		}
		provider, err := openrouter.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("new fantasy openrouter provider: %w", err)
		}
		return provider, nil
	case "vercel":
		opts := []vercel.Option{vercel.WithAPIKey(cfg.APIKey)}
		if cfg.BaseURL != "" {
			opts = append(opts, vercel.WithBaseURL(cfg.BaseURL))
		}
		if cfg.HTTPClient != nil {
			opts = append(opts, vercel.WithHTTPClient(cfg.HTTPClient))
		}
		provider, err := vercel.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("new fantasy vercel provider: %w", err)
		}
		return provider, nil
	case "bedrock":
		opts := []bedrock.Option{}
		if cfg.APIKey != "" {
			opts = append(opts, bedrock.WithAPIKey(cfg.APIKey))
		}
		if cfg.HTTPClient != nil {
			opts = append(opts, bedrock.WithHTTPClient(cfg.HTTPClient))
		}
		provider, err := bedrock.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("new fantasy bedrock provider: %w", err)
		}
		return provider, nil
	default:
		opts := []fopenaicompat.Option{fopenaicompat.WithName(cfg.API)}
		if cfg.APIKey != "" {
			opts = append(opts, fopenaicompat.WithAPIKey(cfg.APIKey))
		}
		if cfg.BaseURL != "" {
			opts = append(opts, fopenaicompat.WithBaseURL(cfg.BaseURL))
		}
		if cfg.HTTPClient != nil {
			opts = append(opts, fopenaicompat.WithHTTPClient(cfg.HTTPClient))
		}
		provider, err := fopenaicompat.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("new fantasy openai-compatible provider: %w", err)
		}
		return provider, nil
	}
}

// Complete implements Client. The provider stream is drained to completion
// and collapsed into a single Reply: tool calls win over text whenever the
// model emitted any, so a turn is either an answer or a batch of calls.
func (c *FantasyClient) Complete(ctx context.Context, request Request) (Reply, error) {
	model, err := c.provider.LanguageModel(ctx, request.Model)
	if err != nil {
		return Reply{}, fmt.Errorf("fantasy language model: %w", err)
	}

	call := fantasy.Call{
		Prompt:          toFantasyPrompt(request.Messages),
		MaxOutputTokens: request.MaxTokens,
		Temperature:     request.Temperature,
		TopP:            request.TopP,
		TopK:            request.TopK,
		Tools:           request.Tools,
		ProviderOptions: fantasy.ProviderOptions{},
	}
	if len(request.Tools) > 0 {
		choice := fantasy.ToolChoiceAuto
		call.ToolChoice = &choice
	}

	seq, err := model.Stream(ctx, call)
	if err != nil {
		return Reply{}, fmt.Errorf("fantasy stream: %w", err)
	}

	var text strings.Builder
	var calls []proto.ToolCall
	seen := map[string]struct{}{}

	for part := range seq {
		switch part.Type {
		case fantasy.StreamPartTypeTextDelta:
			text.WriteString(part.Delta)
		case fantasy.StreamPartTypeToolCall:
			if part.ProviderExecuted {
				continue
			}
			if _, exists := seen[part.ID]; exists {
				continue
			}
			seen[part.ID] = struct{}{}
			calls = append(calls, proto.ToolCall{
				ID: part.ID,
				Function: proto.Function{
					Name:      part.ToolCallName,
					Arguments: []byte(part.ToolCallInput),
				},
			})
		case fantasy.StreamPartTypeError:
			if part.Error != nil {
				return Reply{}, part.Error
			}
		}
	}

	if len(calls) > 0 {
		return Reply{Kind: ReplyToolCalls, ToolCalls: calls, Text: text.String()}, nil
	}
	return Reply{Kind: ReplyText, Text: text.String()}, nil
}
