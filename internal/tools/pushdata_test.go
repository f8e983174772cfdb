package tools

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/askyhq/asky/internal/config"
	"github.com/askyhq/asky/internal/push"
)

func TestRegisterPushTools(t *testing.T) {
	var gotBody map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &gotBody)
	}))
	defer srv.Close()

	pusher := push.New(map[string]config.PushTarget{
		"notify": {
			Enabled: true,
			URL:     srv.URL,
			Method:  "post",
			Fields: map[string]string{
				"q":   "${query}",
				"who": "${recipient}",
			},
		},
		"disabled": {URL: srv.URL},
	}, time.Second)

	r := NewRegistry()
	RegisterPushTools(r, pusher)

	names := r.Names()
	if len(names) != 1 || names[0] != "push_notify" {
		t.Fatalf("names = %v", names)
	}

	result := r.Dispatch(context.Background(), callFor("push_notify", `{"recipient":"ops"}`),
		ToolContext{Query: "the question", Model: "gf"})
	if result["success"] != true {
		t.Fatalf("result = %+v", result)
	}
	if gotBody["q"] != "the question" || gotBody["who"] != "ops" {
		t.Errorf("body = %+v", gotBody)
	}
}
