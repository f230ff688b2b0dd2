package mcp

import "fmt"

// ConnectionError means the tool provider could not be started or failed its
// capability handshake. It is fatal for the operation that needed the
// connection.
type ConnectionError struct {
	Server string
	Err    error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("mcp: could not connect to %q: %v", e.Server, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// ToolExecutionError carries the provider's error detail for a single failed
// tool call. It is recoverable: the agent loop records it as a tool-result
// turn instead of aborting the session.
type ToolExecutionError struct {
	Tool   string
	Detail string
}

func (e *ToolExecutionError) Error() string {
	return fmt.Sprintf("mcp: tool %q failed: %s", e.Tool, e.Detail)
}
