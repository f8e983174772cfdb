package push

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/askyhq/asky/internal/config"
)

// specialVariables are the placeholders the runtime fills in for every
// push, as opposed to dynamic parameters the model supplies per call.
var specialVariables = map[string]bool{
	"query":     true,
	"answer":    true,
	"timestamp": true,
	"model":     true,
}

// Special carries the runtime values behind ${query}, ${answer} and
// ${model}; ${timestamp} is generated at push time. An empty field is
// treated as not available: referencing it in a field template fails
// the push rather than sending a silent empty value.
type Special struct {
	Query  string
	Answer string
	Model  string
}

func (s Special) values() map[string]string {
	vals := map[string]string{
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	if s.Query != "" {
		vals["query"] = s.Query
	}
	if s.Answer != "" {
		vals["answer"] = s.Answer
	}
	if s.Model != "" {
		vals["model"] = s.Model
	}
	return vals
}

// Pusher sends query results to configured HTTP endpoints. Field values
// resolve in two phases: keys ending in _env read the named environment
// variable, ${name} placeholders read special variables or dynamic
// arguments, anything else passes through literally.
type Pusher struct {
	targets map[string]config.PushTarget
	http    *http.Client
}

func New(targets map[string]config.PushTarget, timeout time.Duration) *Pusher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Pusher{
		targets: targets,
		http:    &http.Client{Timeout: timeout},
	}
}

// Enabled returns the targets registered as model-callable tools.
func (p *Pusher) Enabled() map[string]config.PushTarget {
	out := make(map[string]config.PushTarget)
	for name, t := range p.targets {
		if t.Enabled {
			out[name] = t
		}
	}
	return out
}

// Push resolves and sends one configured endpoint. Failures come back
// in the result object so tool callers can relay them to the model.
func (p *Pusher) Push(ctx context.Context, name string, dynamicArgs map[string]string, special Special) map[string]interface{} {
	target, ok := p.targets[name]
	if !ok {
		return failure(name, "", fmt.Sprintf("push endpoint %q not found in configuration", name))
	}
	if target.URL == "" {
		return failure(name, "", fmt.Sprintf("push endpoint %q missing url", name))
	}

	method := strings.ToLower(target.Method)
	if method == "" {
		method = "post"
	}
	if method != "get" && method != "post" {
		return failure(name, target.URL, fmt.Sprintf("push endpoint %q has invalid method %q", name, target.Method))
	}

	specialVals := special.values()

	headers, err := resolveHeaders(target.Headers)
	if err != nil {
		slog.Error("push header resolution failed", "endpoint", name, "error", err)
		return failure(name, "", err.Error())
	}
	payload, err := buildPayload(target.Fields, dynamicArgs, specialVals)
	if err != nil {
		slog.Error("push payload resolution failed", "endpoint", name, "error", err)
		return failure(name, "", err.Error())
	}

	status, err := p.send(ctx, method, target.URL, headers, payload)
	if err != nil {
		slog.Error("push request failed", "endpoint", name, "error", err)
		return failure(name, target.URL, err.Error())
	}

	slog.Info("pushed data", "endpoint", name, "status", status)
	return map[string]interface{}{
		"success":     true,
		"endpoint":    name,
		"status_code": status,
		"url":         target.URL,
	}
}

func (p *Pusher) send(ctx context.Context, method, rawURL string, headers map[string]string, payload map[string]string) (int, error) {
	var req *http.Request
	var err error

	if method == "get" {
		u, perr := url.Parse(rawURL)
		if perr != nil {
			return 0, perr
		}
		q := u.Query()
		for k, v := range payload {
			q.Set(k, v)
		}
		u.RawQuery = q.Encode()
		req, err = http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	} else {
		body, merr := json.Marshal(payload)
		if merr != nil {
			return 0, merr
		}
		req, err = http.NewRequestWithContext(ctx, http.MethodPost, rawURL, bytes.NewReader(body))
		if req != nil {
			req.Header.Set("Content-Type", "application/json")
		}
	}
	if err != nil {
		return 0, err
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := p.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.StatusCode, fmt.Errorf("HTTP %d from %s", resp.StatusCode, rawURL)
	}
	return resp.StatusCode, nil
}

// resolveHeaders handles the _env suffix convention: the suffix is
// stripped to form the header name and the value names the environment
// variable holding the secret.
func resolveHeaders(cfg map[string]string) (map[string]string, error) {
	resolved := make(map[string]string, len(cfg))
	for key, value := range cfg {
		if strings.HasSuffix(key, "_env") {
			envValue := os.Getenv(value)
			if envValue == "" {
				return nil, fmt.Errorf("environment variable %q not found", value)
			}
			resolved[strings.TrimSuffix(key, "_env")] = envValue
			continue
		}
		resolved[key] = value
	}
	return resolved, nil
}

func buildPayload(fields map[string]string, dynamicArgs, specialVals map[string]string) (map[string]string, error) {
	payload := make(map[string]string, len(fields))
	for key, value := range fields {
		resolved, err := resolveField(key, value, dynamicArgs, specialVals)
		if err != nil {
			return nil, err
		}
		payload[key] = resolved
	}
	return payload, nil
}

func resolveField(key, value string, dynamicArgs, specialVals map[string]string) (string, error) {
	if strings.HasSuffix(key, "_env") {
		envValue := os.Getenv(value)
		if envValue == "" {
			return "", fmt.Errorf("environment variable %q not found", value)
		}
		return envValue, nil
	}

	if strings.HasPrefix(value, "${") && strings.HasSuffix(value, "}") {
		param := value[2 : len(value)-1]
		if specialVariables[param] {
			v, ok := specialVals[param]
			if !ok {
				return "", fmt.Errorf("special variable %q not available", param)
			}
			return v, nil
		}
		v, ok := dynamicArgs[param]
		if !ok {
			return "", fmt.Errorf("missing required parameter: %s", param)
		}
		return v, nil
	}

	return value, nil
}

func failure(endpoint, rawURL, msg string) map[string]interface{} {
	out := map[string]interface{}{
		"success":  false,
		"error":    msg,
		"endpoint": endpoint,
	}
	if rawURL != "" {
		out["url"] = rawURL
	}
	return out
}
