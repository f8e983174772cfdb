package push

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/askyhq/asky/internal/config"
)

func TestPushPostResolvesFields(t *testing.T) {
	var gotBody map[string]string
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &gotBody)
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	t.Setenv("PUSH_TEST_TOKEN", "secret-token")
	p := New(map[string]config.PushTarget{
		"notify": {
			Enabled: true,
			URL:     srv.URL,
			Method:  "post",
			Headers: map[string]string{"Authorization_env": "PUSH_TEST_TOKEN"},
			Fields: map[string]string{
				"q":       "${query}",
				"a":       "${answer}",
				"who":     "${recipient}",
				"source":  "asky",
				"when":    "${timestamp}",
				"key_env": "PUSH_TEST_TOKEN",
			},
		},
	}, time.Second)

	result := p.Push(context.Background(), "notify",
		map[string]string{"recipient": "ops"},
		Special{Query: "the question", Answer: "the answer", Model: "gf"})

	if result["success"] != true || result["status_code"] != http.StatusCreated {
		t.Fatalf("result = %+v", result)
	}
	if gotAuth != "secret-token" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotBody["q"] != "the question" || gotBody["a"] != "the answer" || gotBody["who"] != "ops" || gotBody["source"] != "asky" || gotBody["key_env"] != "secret-token" {
		t.Errorf("body = %+v", gotBody)
	}
	if _, err := time.Parse(time.RFC3339, gotBody["when"]); err != nil {
		t.Errorf("timestamp %q: %v", gotBody["when"], err)
	}
}

func TestPushGetUsesQueryParams(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("q")
	}))
	defer srv.Close()

	p := New(map[string]config.PushTarget{
		"search-log": {URL: srv.URL, Method: "get", Fields: map[string]string{"q": "${query}"}},
	}, time.Second)

	result := p.Push(context.Background(), "search-log", nil, Special{Query: "hello world"})
	if result["success"] != true {
		t.Fatalf("result = %+v", result)
	}
	if gotQuery != "hello world" {
		t.Errorf("q = %q", gotQuery)
	}
}

func TestPushMissingDynamicParam(t *testing.T) {
	p := New(map[string]config.PushTarget{
		"needy": {URL: "http://localhost:1", Fields: map[string]string{"who": "${recipient}"}},
	}, time.Second)

	result := p.Push(context.Background(), "needy", nil, Special{})
	if result["success"] != false {
		t.Fatalf("result = %+v", result)
	}
	if result["error"] != "missing required parameter: recipient" {
		t.Errorf("error = %q", result["error"])
	}
}

func TestPushUnavailableSpecialVariable(t *testing.T) {
	var hit bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hit = true
	}))
	defer srv.Close()

	p := New(map[string]config.PushTarget{
		"notify": {URL: srv.URL, Method: "post", Fields: map[string]string{"a": "${answer}"}},
	}, time.Second)

	// Pushed mid-run: no answer exists yet, so the template must fail
	// instead of sending an empty value.
	result := p.Push(context.Background(), "notify", nil, Special{Query: "q", Model: "gf"})
	if result["success"] != false {
		t.Fatalf("result = %+v", result)
	}
	if result["error"] != `special variable "answer" not available` {
		t.Errorf("error = %q", result["error"])
	}
	if hit {
		t.Error("endpoint was called despite unresolved field")
	}
}

func TestPushMissingEnvVar(t *testing.T) {
	p := New(map[string]config.PushTarget{
		"secretive": {URL: "http://localhost:1", Fields: map[string]string{"token_env": "ASKY_TEST_DEFINITELY_UNSET"}},
	}, time.Second)

	result := p.Push(context.Background(), "secretive", nil, Special{})
	if result["success"] != false {
		t.Fatalf("result = %+v", result)
	}
	if result["error"] != `environment variable "ASKY_TEST_DEFINITELY_UNSET" not found` {
		t.Errorf("error = %q", result["error"])
	}
}

func TestPushUnknownEndpointAndBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer srv.Close()

	p := New(map[string]config.PushTarget{
		"deny": {URL: srv.URL, Method: "post"},
	}, time.Second)

	if result := p.Push(context.Background(), "ghost", nil, Special{}); result["success"] != false {
		t.Errorf("unknown endpoint: %+v", result)
	}
	result := p.Push(context.Background(), "deny", nil, Special{})
	if result["success"] != false || result["url"] != srv.URL {
		t.Errorf("bad status: %+v", result)
	}
}

func TestEnabledFilters(t *testing.T) {
	p := New(map[string]config.PushTarget{
		"on":  {Enabled: true, URL: "http://x"},
		"off": {URL: "http://y"},
	}, time.Second)
	enabled := p.Enabled()
	if len(enabled) != 1 {
		t.Fatalf("enabled = %+v", enabled)
	}
	if _, ok := enabled["on"]; !ok {
		t.Error("missing 'on'")
	}
}
