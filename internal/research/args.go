package research

import (
	"math"

	"github.com/askyhq/asky/internal/htmlx"
)

// urlsFromArgs merges the "urls" array and the single "url" parameter,
// sanitizes, and dedupes preserving first-seen order.
func urlsFromArgs(args map[string]interface{}) []string {
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
	case []string:
		raw = append(raw, v...)
	}
	if s, ok := args["url"].(string); ok && s != "" {
		raw = append(raw, s)
	}

	seen := make(map[string]bool, len(raw))
	var out []string
	for _, u := range raw {
		u = SanitizeURL(u)
		if u == "" || seen[u] {
			continue
		}
		seen[u] = true
		out = append(out, u)
	}
	return out
}

func stringArg(args map[string]interface{}, key string) string {
	s, _ := args[key].(string)
	return s
}

// intArg reads an integer argument; JSON numbers arrive as float64.
func intArg(args map[string]interface{}, key string, def int) int {
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

// stringSliceArg accepts both an array and a bare string.
func stringSliceArg(args map[string]interface{}, key string) []string {
	switch v := args[key].(type) {
	case string:
		return []string{v}
	case []string:
		return v
	case []interface{}:
		var out []string
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func errResult(msg string) map[string]interface{} {
	return map[string]interface{}{"error": msg}
}

func preview(content string, max int) string {
	if len(content) > max {
		return content[:max] + "..."
	}
	return content
}

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}

func truncateLinks(links []htmlx.Link, max int) []htmlx.Link {
	if max > 0 && len(links) > max {
		return links[:max]
	}
	return links
}

func linkCount(out interface{}) int {
	switch v := out.(type) {
	case []htmlx.Link:
		return len(v)
	case []map[string]interface{}:
		return len(v)
	}
	return 0
}
