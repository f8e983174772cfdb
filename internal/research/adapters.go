package research

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/askyhq/asky/internal/config"
	"github.com/askyhq/asky/internal/htmlx"
)

// DefaultAdapterMaxLinks caps links returned from an adapter when the
// caller does not ask for a specific number.
const DefaultAdapterMaxLinks = 50

var linkHrefFields = []string{"href", "url", "target", "id", "path"}
var linkTextFields = []string{"text", "title", "name", "label"}

// SourceAdapter routes a family of URI-like targets (local://…,
// intranet://…) to custom tools that handle discovery and reading.
type SourceAdapter struct {
	Name         string
	Prefix       string
	DiscoverTool string
	ReadTool     string
}

// CustomToolFunc runs a configured custom tool and returns its result
// object ({stdout, stderr, exit_code} or {error}). Injected by the tool
// layer to keep the dependency one-way.
type CustomToolFunc func(ctx context.Context, name string, args map[string]interface{}) map[string]interface{}

// AdapterSet holds the enabled adapters, longest prefix first so the
// most specific match wins.
type AdapterSet struct {
	adapters []SourceAdapter
	runTool  CustomToolFunc
}

func NewAdapterSet(cfgs map[string]config.SourceAdapter, runTool CustomToolFunc) *AdapterSet {
	var adapters []SourceAdapter
	for name, cfg := range cfgs {
		if !cfg.Enabled {
			continue
		}
		discover := strings.TrimSpace(cfg.DiscoverTool)
		read := strings.TrimSpace(cfg.ReadTool)
		if discover == "" && read == "" {
			continue
		}
		if discover == "" {
			discover = read
		}
		if read == "" {
			read = discover
		}
		prefix := strings.TrimSpace(cfg.Prefix)
		if prefix == "" {
			prefix = name + "://"
		}
		adapters = append(adapters, SourceAdapter{
			Name:         name,
			Prefix:       prefix,
			DiscoverTool: discover,
			ReadTool:     read,
		})
	}
	sort.SliceStable(adapters, func(i, j int) bool {
		return len(adapters[i].Prefix) > len(adapters[j].Prefix)
	})
	return &AdapterSet{adapters: adapters, runTool: runTool}
}

// Lookup returns the adapter whose prefix is the longest match for
// target, or nil when none matches.
func (s *AdapterSet) Lookup(target string) *SourceAdapter {
	if target == "" {
		return nil
	}
	for i := range s.adapters {
		if strings.HasPrefix(target, s.adapters[i].Prefix) {
			return &s.adapters[i]
		}
	}
	return nil
}

// Fetch invokes the matching adapter's tool for target and normalizes
// the payload to the fetch contract. Returns nil when no adapter
// matches. operation selects between "discover" and "read".
func (s *AdapterSet) Fetch(ctx context.Context, target, query string, maxLinks int, operation string) *FetchResult {
	adapter := s.Lookup(target)
	if adapter == nil || s.runTool == nil {
		return nil
	}

	if maxLinks <= 0 {
		maxLinks = DefaultAdapterMaxLinks
	}
	toolName := adapter.DiscoverTool
	if operation == "read" {
		toolName = adapter.ReadTool
	}

	args := map[string]interface{}{
		"target":    target,
		"max_links": maxLinks,
		"operation": operation,
	}
	if query != "" {
		args["query"] = query
	}

	result := s.runTool(ctx, toolName, args)
	if errText := coerceText(result["error"]); errText != "" {
		return &FetchResult{Title: target, Err: errText}
	}

	payload, err := parseAdapterStdout(coerceText(result["stdout"]))
	if err != nil {
		return &FetchResult{Title: target, Err: err.Error()}
	}
	return normalizeAdapterPayload(payload, target, maxLinks)
}

func parseAdapterStdout(stdout string) (map[string]interface{}, error) {
	if strings.TrimSpace(stdout) == "" {
		return nil, fmt.Errorf("adapter tool returned empty stdout")
	}
	var data map[string]interface{}
	if err := json.Unmarshal([]byte(stdout), &data); err != nil {
		return nil, fmt.Errorf("adapter tool returned invalid JSON: %v", err)
	}
	if data == nil {
		return nil, fmt.Errorf("adapter tool JSON output must be an object")
	}
	return data, nil
}

func normalizeAdapterPayload(payload map[string]interface{}, target string, maxLinks int) *FetchResult {
	if errText := coerceText(payload["error"]); errText != "" {
		return &FetchResult{Title: target, Err: errText}
	}

	title := coerceText(payload["title"])
	if title == "" {
		title = coerceText(payload["name"])
	}
	if title == "" {
		title = target
	}

	rawLinks, ok := payload["links"]
	if !ok {
		rawLinks = payload["items"]
	}

	return &FetchResult{
		Content: coerceText(payload["content"]),
		Title:   title,
		Links:   normalizeLinks(rawLinks, maxLinks),
	}
}

func normalizeLinks(raw interface{}, maxLinks int) []htmlx.Link {
	items, ok := raw.([]interface{})
	if !ok {
		return nil
	}
	var links []htmlx.Link
	for _, item := range items {
		if l, ok := normalizeLink(item); ok {
			links = append(links, l)
		}
		if len(links) >= maxLinks {
			break
		}
	}
	return links
}

// normalizeLink accepts either a bare string (used as both text and
// href) or an object, scanning href then text candidate fields in
// order and falling back to href-as-text.
func normalizeLink(item interface{}) (htmlx.Link, bool) {
	if s, ok := item.(string); ok {
		s = strings.TrimSpace(s)
		if s == "" {
			return htmlx.Link{}, false
		}
		return htmlx.Link{Text: s, Href: s}, true
	}

	obj, ok := item.(map[string]interface{})
	if !ok {
		return htmlx.Link{}, false
	}

	var href string
	for _, field := range linkHrefFields {
		if v := strings.TrimSpace(coerceText(obj[field])); v != "" {
			href = v
			break
		}
	}
	if href == "" {
		return htmlx.Link{}, false
	}

	var text string
	for _, field := range linkTextFields {
		if v := strings.TrimSpace(coerceText(obj[field])); v != "" {
			text = v
			break
		}
	}
	if text == "" {
		text = href
	}
	return htmlx.Link{Text: text, Href: href}, true
}

func coerceText(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strings.TrimSuffix(fmt.Sprintf("%v", t), ".0")
	default:
		return fmt.Sprintf("%v", t)
	}
}
