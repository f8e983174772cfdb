package summarize

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/askyhq/asky/internal/config"
	"github.com/askyhq/asky/internal/providers"
)

func newTestService(t *testing.T, handler http.HandlerFunc) (*Service, *providers.UsageTracker) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	tracker := providers.NewUsageTracker()
	cfg := config.Default()
	model := config.Model{
		Alias:    "lfm",
		ID:       "test-summarizer",
		BaseURL:  srv.URL,
		MaxChars: 500,
	}
	client := providers.NewClient(5*time.Second, "test-agent").
		WithRetryConfig(providers.RetryConfig{MaxAttempts: 1, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond})
	return NewService(client, model, cfg.Prompts, cfg.General, tracker), tracker
}

func completionWith(content string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]interface{}{"role": "assistant", "content": content}},
			},
			"usage": map[string]int{"prompt_tokens": 10, "completion_tokens": 5},
		})
	}
}

func TestContentBoundsInputAndOutput(t *testing.T) {
	var gotPrompt string
	svc, tracker := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		var payload struct {
			Messages []struct {
				Content string `json:"content"`
			} `json:"messages"`
		}
		json.NewDecoder(r.Body).Decode(&payload)
		gotPrompt = payload.Messages[0].Content
		completionWith("<think>reasoning here</think>  "+strings.Repeat("s", 300))(w, r)
	})

	out, err := svc.Content(context.Background(), strings.Repeat("x", 2000),
		"Summarize in at most {max_chars} characters:\n\n{content}", 200)
	if err != nil {
		t.Fatal(err)
	}
	// Input capped at model max_chars (500), template expanded.
	if !strings.HasPrefix(gotPrompt, "Summarize in at most 200 characters:") {
		t.Errorf("prompt = %q", gotPrompt[:60])
	}
	if strings.Count(gotPrompt, "x") != 500 {
		t.Errorf("input not bounded: %d x's", strings.Count(gotPrompt, "x"))
	}
	// Think tags stripped, output capped at maxOutputChars.
	if strings.Contains(out, "reasoning") {
		t.Errorf("think tags leaked: %q", out)
	}
	if len(out) != 200 {
		t.Errorf("output length = %d, want 200", len(out))
	}
	if tracker.Total("lfm") == 0 {
		t.Error("usage not tracked")
	}
}

func TestContentEmptyInput(t *testing.T) {
	svc, _ := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no call expected for empty content")
	})
	out, err := svc.Content(context.Background(), "   ", "{content}", 100)
	if err != nil || out != "" {
		t.Errorf("got %q, %v", out, err)
	}
}

func TestTemplateWithoutContentPlaceholder(t *testing.T) {
	got := expandTemplate("Summarize briefly.", "the body", 50)
	if got != "Summarize briefly.\n\nthe body" {
		t.Errorf("got %q", got)
	}
}

func TestTurnSummaries(t *testing.T) {
	svc, _ := newTestService(t, completionWith("a concise summary"))
	qs, as := svc.TurnSummaries(context.Background(), "what is the meaning of life", "forty-two, per the book")
	if qs != "a concise summary" || as != "a concise summary" {
		t.Errorf("got %q / %q", qs, as)
	}
}

func TestTurnSummariesFallBackToTruncation(t *testing.T) {
	svc, _ := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusInternalServerError)
	})
	longQuery := strings.Repeat("q", 100)
	longAnswer := strings.Repeat("a", 300)
	qs, as := svc.TurnSummaries(context.Background(), longQuery, longAnswer)
	if qs != strings.Repeat("q", 40)+"..." {
		t.Errorf("query fallback = %q", qs)
	}
	if as != strings.Repeat("a", 200)+"..." {
		t.Errorf("answer fallback = %q", as)
	}
}
