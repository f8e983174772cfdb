package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/askyhq/asky/internal/providers"
)

// ToolContext carries per-run state every executor receives alongside
// its arguments: the global summarize flag, token accounting, and the
// query/model identity for tools that report where results came from.
type ToolContext struct {
	Summarize bool
	Tracker   *providers.UsageTracker
	Query     string
	Model     string
}

// Executor is the uniform signature all tools implement. Returning an
// error produces a {"error": "Tool execution failed: ..."} result; tools
// that want the model to see a softer failure put an "error" key in the
// result map themselves.
type Executor func(ctx context.Context, args map[string]interface{}, tctx ToolContext) (map[string]interface{}, error)

// Registry maps tool names to schemas and executors. Registration order
// is preserved so the schema list sent to the model is stable.
type Registry struct {
	order     []string
	schemas   map[string]providers.FunctionSchema
	executors map[string]Executor
}

func NewRegistry() *Registry {
	return &Registry{
		schemas:   make(map[string]providers.FunctionSchema),
		executors: make(map[string]Executor),
	}
}

func (r *Registry) Register(schema providers.FunctionSchema, exec Executor) {
	if _, exists := r.schemas[schema.Name]; !exists {
		r.order = append(r.order, schema.Name)
	}
	r.schemas[schema.Name] = schema
	r.executors[schema.Name] = exec
}

// Schemas returns the tool definitions for the chat payload.
func (r *Registry) Schemas() []providers.ToolDefinition {
	out := make([]providers.ToolDefinition, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, providers.ToolDefinition{Type: "function", Function: r.schemas[name]})
	}
	return out
}

// Names returns the registered tool names in registration order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}

// Dispatch routes one tool call to its executor. It never returns a Go
// error: every failure becomes a result object the model can read.
func (r *Registry) Dispatch(ctx context.Context, call providers.ToolCall, tctx ToolContext) map[string]interface{} {
	name := call.Function.Name

	args := map[string]interface{}{}
	if raw := call.Function.Arguments; raw != "" {
		if err := json.Unmarshal([]byte(raw), &args); err != nil {
			return map[string]interface{}{"error": fmt.Sprintf("Invalid JSON arguments for tool: %s", name)}
		}
	}

	exec, ok := r.executors[name]
	if !ok {
		return map[string]interface{}{"error": fmt.Sprintf("Unknown tool: %s", name)}
	}

	result, err := exec(ctx, args, tctx)
	if err != nil {
		slog.Error("tool execution failed", "tool", name, "error", err)
		return map[string]interface{}{"error": fmt.Sprintf("Tool execution failed: %v", err)}
	}
	if result == nil {
		result = map[string]interface{}{}
	}
	return result
}
