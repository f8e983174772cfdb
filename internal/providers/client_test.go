package providers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func fastRetry() RetryConfig {
	return RetryConfig{MaxAttempts: 10, InitialBackoff: time.Millisecond, MaxBackoff: 5 * time.Millisecond}
}

func TestParseRetryAfter(t *testing.T) {
	cases := []struct {
		in   string
		want time.Duration
		ok   bool
	}{
		{"5", 5 * time.Second, true},
		{"5.0", 5 * time.Second, true},
		{"5.9", 5 * time.Second, true},
		{"0", 0, true},
		{"", 0, false},
		{"soon", 0, false},
		{"-1", 0, false},
	}
	for _, c := range cases {
		got, ok := ParseRetryAfter(c.in)
		if got != c.want || ok != c.ok {
			t.Errorf("ParseRetryAfter(%q) = (%v, %v), want (%v, %v)", c.in, got, ok, c.want, c.ok)
		}
	}
}

func TestCompleteRetriesOn429(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts <= 2 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]interface{}{"role": "assistant", "content": "ok"}},
			},
		})
	}))
	defer srv.Close()

	c := NewClient(time.Second, "").WithRetryConfig(fastRetry())
	msg, err := c.Complete(context.Background(), Endpoint{BaseURL: srv.URL, Model: "m"}, []Message{{Role: "user", Content: "hi"}}, nil, nil)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
	if msg.Content != "ok" {
		t.Errorf("content = %q, want %q", msg.Content, "ok")
	}
}

func TestCompleteNoRetryOn400(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		http.Error(w, "bad request", http.StatusBadRequest)
	}))
	defer srv.Close()

	c := NewClient(time.Second, "").WithRetryConfig(fastRetry())
	_, err := c.Complete(context.Background(), Endpoint{BaseURL: srv.URL, Model: "m"}, nil, nil, nil)
	if err == nil {
		t.Fatal("expected error")
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1", attempts)
	}
}

func TestCompleteUsageFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// No usage block in the response.
		json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]interface{}{"role": "assistant", "content": "four score and seven years ago"}},
			},
		})
	}))
	defer srv.Close()

	tracker := NewUsageTracker()
	c := NewClient(time.Second, "")
	msg, err := c.Complete(context.Background(), Endpoint{BaseURL: srv.URL, Model: "m", Alias: "main"}, []Message{{Role: "user", Content: "hi"}}, nil, tracker)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	b, _ := json.Marshal(msg)
	want := EstimateTokens([]Message{{Role: "user", Content: "hi"}}) + len(b)/4
	if got := tracker.Total("main"); got != want {
		t.Errorf("tracked usage = %d, want %d", got, want)
	}
}

func TestCompleteSendsAuthAndTools(t *testing.T) {
	var gotAuth string
	var gotBody map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		json.NewDecoder(r.Body).Decode(&gotBody)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]interface{}{"role": "assistant", "content": "ok"}},
			},
		})
	}))
	defer srv.Close()

	tools := []ToolDefinition{{Type: "function", Function: FunctionSchema{Name: "get_date_time"}}}
	c := NewClient(time.Second, "")
	_, err := c.Complete(context.Background(), Endpoint{BaseURL: srv.URL, APIKey: "sk-test", Model: "m"}, []Message{{Role: "user", Content: "hi"}}, tools, nil)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if gotAuth != "Bearer sk-test" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotBody["tool_choice"] != "auto" {
		t.Errorf("tool_choice = %v, want auto", gotBody["tool_choice"])
	}
}

func TestToolCallRoundTrip(t *testing.T) {
	raw := `{"id":"call_1","type":"function","function":{"name":"web_search","arguments":"{\"q\":\"go\"}"}}`
	var tc ToolCall
	if err := json.Unmarshal([]byte(raw), &tc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	out, err := json.Marshal(tc)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(out) != raw {
		t.Errorf("round trip changed the call:\n got %s\nwant %s", out, raw)
	}
}
