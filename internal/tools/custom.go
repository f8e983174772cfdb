package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/askyhq/asky/internal/config"
	"github.com/askyhq/asky/internal/providers"
)

const defaultCustomToolTimeout = 60 * time.Second

// RegisterCustomTools exposes each [tools.custom.*] entry as a
// model-callable tool running a shell command.
func RegisterCustomTools(r *Registry, custom map[string]config.CustomTool) {
	for name, tool := range custom {
		desc := tool.Description
		if desc == "" {
			desc = fmt.Sprintf("Custom tool: %s", name)
		}
		params := tool.Parameters
		if params == nil {
			params = map[string]interface{}{"type": "object", "properties": map[string]interface{}{}}
		}
		cfg := tool
		r.Register(providers.FunctionSchema{
			Name:        name,
			Description: desc,
			Parameters:  params,
		}, func(ctx context.Context, args map[string]interface{}, tctx ToolContext) (map[string]interface{}, error) {
			return RunCustomTool(ctx, cfg, args), nil
		})
	}
}

// RunCustomTool executes a configured command, substituting {param}
// placeholders in its arguments from the tool call ({args} expands to
// the full argument object as JSON). stdout, stderr, and the exit code
// come back in the result; only a failure to start is an "error".
func RunCustomTool(ctx context.Context, cfg config.CustomTool, args map[string]interface{}) map[string]interface{} {
	if cfg.Command == "" {
		return map[string]interface{}{"error": "custom tool has no command configured"}
	}

	timeout := defaultCustomToolTimeout
	if cfg.TimeoutSecs > 0 {
		timeout = time.Duration(cfg.TimeoutSecs) * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	argv := make([]string, len(cfg.Args))
	for i, a := range cfg.Args {
		argv[i] = expandArg(a, args)
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, cfg.Command, argv...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	exitCode := 0
	if err != nil {
		// A deadline kill surfaces as an ExitError, so the context has
		// to be checked first.
		if ctx.Err() == context.DeadlineExceeded {
			return map[string]interface{}{"error": fmt.Sprintf("command timed out after %s", timeout)}
		}
		if exitErr, ok := err.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else {
			return map[string]interface{}{"error": err.Error()}
		}
	}

	return map[string]interface{}{
		"stdout":    stdout.String(),
		"stderr":    stderr.String(),
		"exit_code": exitCode,
	}
}

// expandArg substitutes {name} placeholders with the string form of the
// corresponding tool-call argument. {args} injects the whole argument
// object as JSON, letting one flag carry structured input.
func expandArg(arg string, args map[string]interface{}) string {
	if strings.Contains(arg, "{args}") {
		blob, err := json.Marshal(args)
		if err == nil {
			arg = strings.ReplaceAll(arg, "{args}", string(blob))
		}
	}
	for key, value := range args {
		placeholder := "{" + key + "}"
		if !strings.Contains(arg, placeholder) {
			continue
		}
		arg = strings.ReplaceAll(arg, placeholder, argString(value))
	}
	return arg
}

func argString(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		if t == float64(int64(t)) {
			return fmt.Sprintf("%d", int64(t))
		}
		return fmt.Sprintf("%v", t)
	case bool:
		return fmt.Sprintf("%t", t)
	case nil:
		return ""
	default:
		blob, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprintf("%v", t)
		}
		return string(blob)
	}
}
