// Package proto holds the session-scoped conversation types.
//
// A session is an ordered sequence of turns kept in memory for the lifetime
// of the process; nothing here is persisted.
package proto

import "strings"

// Role is a message author role.
type Role string

// Roles.
const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Function is a tool-call target with its raw JSON arguments.
type Function struct {
	Name      string `json:"name"`
	Arguments []byte `json:"arguments"`
}

// ToolCall is a single tool invocation requested by the assistant, or, on a
// tool-result message, the correlation back to that request.
type ToolCall struct {
	ID       string   `json:"id"`
	Function Function `json:"function"`
	IsError  bool     `json:"is_error,omitempty"`
}

// Message is one turn in the conversation.
//
// Assistant messages may carry tool calls alongside (or instead of) text.
// Tool messages carry the invocation result in Content and reference the
// originating call through ToolCalls.
type Message struct {
	Role      Role       `json:"role"`
	Content   string     `json:"content"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
}

// Conversation is a printable transcript.
type Conversation []Message

func (c Conversation) String() string {
	var sb strings.Builder
	for _, msg := range c {
		switch msg.Role {
		case RoleSystem:
			continue
		case RoleUser:
			sb.WriteString("> " + msg.Content + "\n\n")
		case RoleAssistant:
			for _, call := range msg.ToolCalls {
				sb.WriteString("* called " + call.Function.Name + "\n\n")
			}
			if msg.Content != "" {
				sb.WriteString(msg.Content + "\n\n")
			}
		case RoleTool:
			continue
		}
	}
	return sb.String()
}
