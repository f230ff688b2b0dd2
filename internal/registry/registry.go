// Package registry adapts discovered MCP tool descriptors into capabilities
// the agent can invoke and the model can be offered.
package registry

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"charm.land/fantasy"
	"github.com/mark3labs/mcp-go/mcp"
)

// Error means a tool descriptor set could not be adapted, or an invocation
// named a tool that is not in the registry. Both fail closed.
type Error struct {
	Tool   string
	Reason string
}

func (e *Error) Error() string {
	if e.Tool == "" {
		return "registry: " + e.Reason
	}
	return fmt.Sprintf("registry: tool %q: %s", e.Tool, e.Reason)
}

// Invoker executes a bound tool call. *mcp.Connector satisfies this.
type Invoker interface {
	CallTool(ctx context.Context, fullName string, data []byte) (string, error)
}

// Tool is one adapted capability.
type Tool struct {
	Name        string
	Description string
	Schema      map[string]any
}

// Registry maps qualified tool names to invocable capabilities.
//
// The snapshot is immutable once adapted; a reconnect builds a new one.
type Registry struct {
	invoker Invoker
	tools   map[string]Tool
}

// Adapt validates the discovered descriptors and binds them to the invoker.
//
// Names are qualified as <server>_<tool> so tools from different servers
// cannot shadow each other. Duplicate qualified names and malformed schemas
// are rejected at bind time rather than at first use.
func Adapt(servers map[string][]mcp.Tool, invoker Invoker) (*Registry, error) {
	r := &Registry{invoker: invoker, tools: map[string]Tool{}}

	snames := slices.Collect(maps.Keys(servers))
	slices.Sort(snames)
	for _, sname := range snames {
		for _, tool := range servers[sname] {
			if tool.Name == "" {
				return nil, &Error{Reason: fmt.Sprintf("server %q advertised a tool with no name", sname)}
			}
			name := fmt.Sprintf("%s_%s", sname, tool.Name)
			if _, exists := r.tools[name]; exists {
				return nil, &Error{Tool: name, Reason: "duplicate tool name"}
			}
			schema, err := adaptSchema(tool.InputSchema)
			if err != nil {
				return nil, &Error{Tool: name, Reason: err.Error()}
			}
			r.tools[name] = Tool{
				Name:        name,
				Description: tool.Description,
				Schema:      schema,
			}
		}
	}
	return r, nil
}

func adaptSchema(schema mcp.ToolInputSchema) (map[string]any, error) {
	if schema.Type != "" && schema.Type != "object" {
		return nil, fmt.Errorf("unsupported input schema type %q", schema.Type)
	}
	adapted := map[string]any{
		"type":       "object",
		"properties": schema.Properties,
	}
	if len(schema.Required) > 0 {
		adapted["required"] = schema.Required
	}
	return adapted, nil
}

// Invoke forwards arguments unchanged to the bound invoker.
//
// A name that is not in the current snapshot fails closed without reaching
// the connector.
func (r *Registry) Invoke(ctx context.Context, name string, args []byte) (string, error) {
	if _, ok := r.tools[name]; !ok {
		return "", &Error{Tool: name, Reason: "not in the current tool registry"}
	}
	return r.invoker.CallTool(ctx, name, args)
}

// Lookup returns the adapted descriptor for a qualified name.
func (r *Registry) Lookup(name string) (Tool, bool) {
	tool, ok := r.tools[name]
	return tool, ok
}

// Names returns the qualified tool names in stable order.
func (r *Registry) Names() []string {
	names := slices.Collect(maps.Keys(r.tools))
	slices.Sort(names)
	return names
}

// Len returns the number of adapted tools.
func (r *Registry) Len() int { return len(r.tools) }

// FantasyTools converts the snapshot for the LLM request.
func (r *Registry) FantasyTools() []fantasy.Tool {
	tools := make([]fantasy.Tool, 0, len(r.tools))
	for _, name := range r.Names() {
		tool := r.tools[name]
		tools = append(tools, fantasy.FunctionTool{
			Name:        tool.Name,
			Description: tool.Description,
			InputSchema: tool.Schema,
		})
	}
	return tools
}
