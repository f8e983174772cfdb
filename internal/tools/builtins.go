package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/askyhq/asky/internal/htmlx"
	"github.com/askyhq/asky/internal/providers"
	"github.com/askyhq/asky/internal/research"
)

// SummarizeFunc condenses fetched page content when the summarize flag
// (global or per-call) is set. The tracker is the per-dispatch usage
// tracker from the tool context, so summary-model tokens are accounted
// to the run that triggered them.
type SummarizeFunc func(ctx context.Context, content string, tracker *providers.UsageTracker) (string, error)

// Builtins holds the dependencies of the built-in web tools.
type Builtins struct {
	searxURL  string
	userAgent string
	http      *http.Client
	summarize SummarizeFunc

	// maxChars bounds content returned per page so one fetch cannot
	// blow the model's context.
	maxChars int
}

func NewBuiltins(searxURL, userAgent string, fetchTimeout time.Duration, maxChars int, summarize SummarizeFunc) *Builtins {
	if fetchTimeout <= 0 {
		fetchTimeout = 20 * time.Second
	}
	return &Builtins{
		searxURL:  strings.TrimRight(searxURL, "/"),
		userAgent: userAgent,
		http:      &http.Client{Timeout: fetchTimeout},
		summarize: summarize,
		maxChars:  maxChars,
	}
}

// RegisterBuiltins adds web_search, get_url_content, get_url_details and
// get_date_time to the registry.
func RegisterBuiltins(r *Registry, b *Builtins) {
	r.Register(providers.FunctionSchema{
		Name:        "web_search",
		Description: "Search the web and return top results.",
		Parameters: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"q":     map[string]interface{}{"type": "string"},
				"count": map[string]interface{}{"type": "integer", "default": 5},
			},
			"required": []string{"q"},
		},
	}, b.webSearch)

	r.Register(providers.FunctionSchema{
		Name:        "get_url_content",
		Description: "Fetch the content of one or more URLs and return their text content (HTML stripped).",
		Parameters: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"urls": map[string]interface{}{
					"type":        "array",
					"items":       map[string]interface{}{"type": "string"},
					"description": "List of URLs to fetch content from.",
				},
				"url": map[string]interface{}{
					"type":        "string",
					"description": "Single URL (deprecated, use 'urls' instead).",
				},
				"summarize": map[string]interface{}{
					"type":        "boolean",
					"description": "If true, summarize the content of the page using an LLM.",
				},
			},
			"required": []string{},
		},
	}, b.urlContent)

	r.Register(providers.FunctionSchema{
		Name:        "get_url_details",
		Description: "Fetch content and extract links from a URL. Use this in deep dive mode.",
		Parameters: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"url": map[string]interface{}{"type": "string"},
			},
			"required": []string{"url"},
		},
	}, b.urlDetails)

	r.Register(providers.FunctionSchema{
		Name:        "get_date_time",
		Description: "Return the current date and time.",
		Parameters: map[string]interface{}{
			"type":       "object",
			"properties": map[string]interface{}{},
		},
	}, func(ctx context.Context, args map[string]interface{}, tctx ToolContext) (map[string]interface{}, error) {
		return map[string]interface{}{
			"date_time": time.Now().Format("2006-01-02 15:04:05 MST (Monday)"),
		}, nil
	})
}

// searxResult is one entry in a SearxNG JSON response.
type searxResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Content string `json:"content"`
}

func (b *Builtins) webSearch(ctx context.Context, args map[string]interface{}, tctx ToolContext) (map[string]interface{}, error) {
	query, _ := args["q"].(string)
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("missing required parameter: q")
	}
	count := intFromArgs(args, "count", 5)

	searchURL := fmt.Sprintf("%s/search?q=%s&format=json", b.searxURL, url.QueryEscape(query))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", b.userAgent)

	resp, err := b.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search returned HTTP %d", resp.StatusCode)
	}

	var parsed struct {
		Results []searxResult `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	if len(parsed.Results) > count {
		parsed.Results = parsed.Results[:count]
	}
	results := make([]map[string]interface{}, len(parsed.Results))
	for i, r := range parsed.Results {
		results[i] = map[string]interface{}{
			"title":   r.Title,
			"url":     r.URL,
			"content": r.Content,
		}
	}
	return map[string]interface{}{"results": results}, nil
}

// urlContent fetches each url and maps it to its stripped text. The
// per-call summarize argument overrides the global flag; error values
// are never summarized.
func (b *Builtins) urlContent(ctx context.Context, args map[string]interface{}, tctx ToolContext) (map[string]interface{}, error) {
	urls := urlListFromArgs(args)
	if len(urls) == 0 {
		return map[string]interface{}{"error": "No URLs provided. Please specify 'urls' or 'url' parameter."}, nil
	}

	result := make(map[string]interface{}, len(urls))
	for _, u := range urls {
		result[u] = b.fetchText(ctx, u)
	}

	effectiveSummarize := tctx.Summarize
	if v, ok := args["summarize"].(bool); ok {
		effectiveSummarize = v
	}
	if effectiveSummarize && b.summarize != nil {
		for u, v := range result {
			content, _ := v.(string)
			if strings.HasPrefix(content, "Error:") {
				continue
			}
			summary, err := b.summarize(ctx, content, tctx.Tracker)
			if err != nil {
				continue
			}
			result[u] = fmt.Sprintf("Summary of %s:\n", u) + summary
		}
	}
	return result, nil
}

func (b *Builtins) urlDetails(ctx context.Context, args map[string]interface{}, tctx ToolContext) (map[string]interface{}, error) {
	u, _ := args["url"].(string)
	if u == "" {
		return map[string]interface{}{"error": "No URL provided."}, nil
	}
	u = research.SanitizeURL(u)

	body, err := b.get(ctx, u)
	if err != nil {
		return map[string]interface{}{"error": err.Error()}, nil
	}
	text, links, err := htmlx.Strip(body)
	if err != nil {
		return map[string]interface{}{"error": fmt.Sprintf("parse error: %v", err)}, nil
	}
	if b.maxChars > 0 && len(text) > b.maxChars {
		text = text[:b.maxChars]
	}
	return map[string]interface{}{
		"url":     u,
		"content": text,
		"links":   links,
	}, nil
}

func (b *Builtins) fetchText(ctx context.Context, u string) string {
	body, err := b.get(ctx, u)
	if err != nil {
		return "Error: " + err.Error()
	}
	text, _, err := htmlx.Strip(body)
	if err != nil {
		return fmt.Sprintf("Error: parse error: %v", err)
	}
	if b.maxChars > 0 && len(text) > b.maxChars {
		text = text[:b.maxChars]
	}
	return text
}

func (b *Builtins) get(ctx context.Context, u string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", b.userAgent)

	resp, err := b.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("HTTP %d fetching %s", resp.StatusCode, u)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

func urlListFromArgs(args map[string]interface{}) []string {
	var raw []string
	switch v := args["urls"].(type) {
	case string:
		raw = append(raw, v)
	case []interface{}:
		for _, item := range v {
			if s, ok := item.(string); ok {
				raw = append(raw, s)
			}
		}
	}
	if s, ok := args["url"].(string); ok && s != "" {
		raw = append(raw, s)
	}

	seen := make(map[string]bool, len(raw))
	var out []string
	for _, u := range raw {
		u = research.SanitizeURL(u)
		if u == "" || seen[u] {
			continue
		}
		seen[u] = true
		out = append(out, u)
	}
	return out
}

func intFromArgs(args map[string]interface{}, key string, def int) int {
	switch v := args[key].(type) {
	case float64:
		if v > 0 {
			return int(v)
		}
	case int:
		if v > 0 {
			return v
		}
	}
	return def
}
