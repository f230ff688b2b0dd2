// Package llm abstracts the language model behind a single completion call.
package llm

import (
	"context"

	"charm.land/fantasy"

	"github.com/dotcommander/scour/internal/proto"
)

// ReplyKind discriminates the two shapes a completion can take.
type ReplyKind int

const (
	// ReplyText is a final natural-language answer.
	ReplyText ReplyKind = iota
	// ReplyToolCalls is a request to run one or more tools before answering.
	ReplyToolCalls
)

// Reply is the model's response to one completion request. Exactly one of
// Text or ToolCalls is meaningful, selected by Kind.
type Reply struct {
	Kind      ReplyKind
	Text      string
	ToolCalls []proto.ToolCall
}

// Request is one completion request. Tools, when present, are offered to the
// model with automatic tool choice.
type Request struct {
	Model       string
	Messages    []proto.Message
	Tools       []fantasy.Tool
	MaxTokens   *int64
	Temperature *float64
	TopP        *float64
	TopK        *int64
}

// Client produces completions. Implementations must be safe for sequential
// reuse across turns.
type Client interface {
	Complete(ctx context.Context, request Request) (Reply, error)
}
