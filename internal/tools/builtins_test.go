package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/askyhq/asky/internal/providers"
)

func TestWebSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if r.URL.Query().Get("format") != "json" {
			t.Errorf("format = %q", r.URL.Query().Get("format"))
		}
		if r.URL.Query().Get("q") != "go concurrency" {
			t.Errorf("q = %q", r.URL.Query().Get("q"))
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"results": []map[string]string{
				{"title": "One", "url": "https://a", "content": "first"},
				{"title": "Two", "url": "https://b", "content": "second"},
				{"title": "Three", "url": "https://c", "content": "third"},
			},
		})
	}))
	defer srv.Close()

	b := NewBuiltins(srv.URL, "test-agent", time.Second, 0, nil)
	result, err := b.webSearch(context.Background(), map[string]interface{}{"q": "go concurrency", "count": float64(2)}, ToolContext{})
	if err != nil {
		t.Fatal(err)
	}
	results := result["results"].([]map[string]interface{})
	if len(results) != 2 {
		t.Fatalf("got %d results", len(results))
	}
	if results[0]["title"] != "One" || results[1]["url"] != "https://b" {
		t.Errorf("results = %+v", results)
	}
}

func TestWebSearchMissingQuery(t *testing.T) {
	b := NewBuiltins("http://localhost:1", "test-agent", time.Second, 0, nil)
	if _, err := b.webSearch(context.Background(), map[string]interface{}{}, ToolContext{}); err == nil {
		t.Error("expected error for missing q")
	}
}

func TestURLContentSummarizeOverride(t *testing.T) {
	page := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html><body><p>full page text</p></body></html>")
	}))
	defer page.Close()

	summarized := 0
	b := NewBuiltins("", "test-agent", time.Second, 0, func(ctx context.Context, content string, tracker *providers.UsageTracker) (string, error) {
		summarized++
		return "short version", nil
	})

	// Global flag off, per-call override on.
	result, err := b.urlContent(context.Background(),
		map[string]interface{}{"url": page.URL, "summarize": true}, ToolContext{Summarize: false})
	if err != nil {
		t.Fatal(err)
	}
	want := fmt.Sprintf("Summary of %s:\nshort version", page.URL)
	if result[page.URL] != want {
		t.Errorf("got %q", result[page.URL])
	}
	if summarized != 1 {
		t.Errorf("summarize calls = %d", summarized)
	}

	// Global flag on, per-call override off.
	result, err = b.urlContent(context.Background(),
		map[string]interface{}{"url": page.URL, "summarize": false}, ToolContext{Summarize: true})
	if err != nil {
		t.Fatal(err)
	}
	if got, _ := result[page.URL].(string); !strings.Contains(got, "full page text") {
		t.Errorf("got %q", got)
	}
	if summarized != 1 {
		t.Errorf("summarize calls = %d", summarized)
	}
}

func TestURLContentSummarizeUsesDispatchTracker(t *testing.T) {
	page := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html><body><p>page text</p></body></html>")
	}))
	defer page.Close()

	tracker := providers.NewUsageTracker()
	b := NewBuiltins("", "test-agent", time.Second, 0, func(ctx context.Context, content string, tr *providers.UsageTracker) (string, error) {
		if tr != tracker {
			t.Error("summarizer did not receive the dispatch tracker")
		}
		tr.Add("summary-model", 7)
		return "short", nil
	})

	_, err := b.urlContent(context.Background(),
		map[string]interface{}{"url": page.URL}, ToolContext{Summarize: true, Tracker: tracker})
	if err != nil {
		t.Fatal(err)
	}
	if tracker.Total("summary-model") != 7 {
		t.Errorf("tracked = %d", tracker.Total("summary-model"))
	}
}

func TestURLContentErrorsNotSummarized(t *testing.T) {
	b := NewBuiltins("", "test-agent", 200*time.Millisecond, 0, func(ctx context.Context, content string, tracker *providers.UsageTracker) (string, error) {
		t.Error("error values must not be summarized")
		return "", nil
	})
	result, err := b.urlContent(context.Background(),
		map[string]interface{}{"url": "http://127.0.0.1:1/unreachable"}, ToolContext{Summarize: true})
	if err != nil {
		t.Fatal(err)
	}
	got, _ := result["http://127.0.0.1:1/unreachable"].(string)
	if !strings.HasPrefix(got, "Error:") {
		t.Errorf("got %q", got)
	}
}

func TestURLDetailsReturnsLinks(t *testing.T) {
	page := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><p>Some body.</p><a href="/next">Next Page</a></body></html>`)
	}))
	defer page.Close()

	b := NewBuiltins("", "test-agent", time.Second, 0, nil)
	result, err := b.urlDetails(context.Background(), map[string]interface{}{"url": page.URL}, ToolContext{})
	if err != nil {
		t.Fatal(err)
	}
	if result["url"] != page.URL {
		t.Errorf("url = %v", result["url"])
	}
	content, _ := result["content"].(string)
	if !strings.Contains(content, "Some body.") {
		t.Errorf("content = %q", content)
	}
	blob, _ := json.Marshal(result["links"])
	if !strings.Contains(string(blob), `"href":"/next"`) || !strings.Contains(string(blob), `"text":"Next Page"`) {
		t.Errorf("links = %s", blob)
	}
}

func TestURLContentMaxChars(t *testing.T) {
	page := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, "<html><body>%s</body></html>", strings.Repeat("z", 5000))
	}))
	defer page.Close()

	b := NewBuiltins("", "test-agent", time.Second, 100, nil)
	result, err := b.urlContent(context.Background(), map[string]interface{}{"url": page.URL}, ToolContext{})
	if err != nil {
		t.Fatal(err)
	}
	if got, _ := result[page.URL].(string); len(got) != 100 {
		t.Errorf("content length = %d", len(got))
	}
}

func TestURLsDeduplicatedAndSanitized(t *testing.T) {
	got := urlListFromArgs(map[string]interface{}{
		"urls": []interface{}{`https://a.com\/x`, "https://b.com"},
		"url":  "https://a.com/x",
	})
	if len(got) != 2 || got[0] != "https://a.com/x" || got[1] != "https://b.com" {
		t.Errorf("urls = %v", got)
	}
}
