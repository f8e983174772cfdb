package agent

import (
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/askyhq/asky/internal/providers"
)

// Some models emit tool calls as plain text instead of the structured
// tool_calls field, in the form "to=functions.<name> {...json...}".
var textualCallName = regexp.MustCompile(`to=functions\.([a-zA-Z0-9_]+)`)
var textualCallArgs = regexp.MustCompile(`(?s)(\{.*\})`)

// ExtractCalls returns the tool calls in an assistant message, falling
// back to the textual format when the structured field is absent. turn
// is used to synthesize an id for textual calls.
func ExtractCalls(msg *providers.Message, turn int) []providers.ToolCall {
	if len(msg.ToolCalls) > 0 {
		return msg.ToolCalls
	}
	if call, ok := ParseTextualToolCall(msg.Content); ok {
		return []providers.ToolCall{{
			ID:       fmt.Sprintf("textual_call_%d", turn),
			Type:     "function",
			Function: call,
		}}
	}
	return nil
}

// ParseTextualToolCall recognizes the textual tool-call format. The
// argument blob must parse as JSON or the whole match is rejected.
func ParseTextualToolCall(text string) (providers.FunctionCall, bool) {
	if text == "" {
		return providers.FunctionCall{}, false
	}
	name := textualCallName.FindStringSubmatch(text)
	if name == nil {
		return providers.FunctionCall{}, false
	}
	args := textualCallArgs.FindStringSubmatch(text)
	if args == nil {
		return providers.FunctionCall{}, false
	}
	var probe interface{}
	if err := json.Unmarshal([]byte(args[1]), &probe); err != nil {
		return providers.FunctionCall{}, false
	}
	return providers.FunctionCall{Name: name[1], Arguments: args[1]}, true
}
