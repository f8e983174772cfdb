package sessions

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/askyhq/asky/internal/config"
	"github.com/askyhq/asky/internal/store"
)

func newTestManager(t *testing.T, general config.General, summarize SummarizeSessionFunc) (*Manager, *store.Store) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "sessions.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	model := config.Model{Alias: "gf", ContextSize: 1000}
	if general.SessionCompactionThreshold == 0 {
		general.SessionCompactionThreshold = 80
	}
	if general.SessionCompactionStrategy == "" {
		general.SessionCompactionStrategy = "summaries"
	}
	return NewManager(st, model, general, summarize), st
}

func isolateLockDir(t *testing.T) {
	t.Helper()
	orig := lockDir
	lockDir = t.TempDir()
	t.Cleanup(func() { lockDir = orig })
}

func TestGenerateSessionName(t *testing.T) {
	cases := []struct {
		query string
		want  string
	}{
		{"what is the meaning of life", "meaning_life"},
		{"tell me about Go channels", "channels"},
		{"the a an", "session"},
		{"", "session"},
		{"Kubernetes pod restarts debugging", "kubernetes_pod"},
	}
	for _, c := range cases {
		if got := GenerateSessionName(c.query, 2); got != c.want {
			t.Errorf("GenerateSessionName(%q) = %q, want %q", c.query, got, c.want)
		}
	}
}

func TestGenerateSlug(t *testing.T) {
	if got := GenerateSlug("", 5); got != "untitled" {
		t.Errorf("empty = %q", got)
	}
	if got := GenerateSlug("what is the meaning of life", 5); got != "meaning_life" {
		t.Errorf("sentence = %q", got)
	}
	if got := GenerateSlug("a b c 12345!!", 5); got != "abc12345" {
		t.Errorf("fallback = %q", got)
	}
	if got := GenerateSlug("?? !!", 5); got != "session" {
		t.Errorf("unusable = %q", got)
	}
}

func TestStartOrResumeByIDAndName(t *testing.T) {
	isolateLockDir(t)
	m, st := newTestManager(t, config.General{}, nil)

	id, err := st.CreateSession("gf", "research")
	if err != nil {
		t.Fatal(err)
	}

	// Numeric id resumes.
	s, err := m.StartOrResume("1", "")
	if err != nil || s.ID != id {
		t.Fatalf("by id: %+v, %v", s, err)
	}

	// Legacy S-prefixed id resumes.
	s, err = m.StartOrResume("S1", "")
	if err != nil || s.ID != id {
		t.Fatalf("legacy id: %+v, %v", s, err)
	}

	// Name match resumes.
	s, err = m.StartOrResume("research", "")
	if err != nil || s.ID != id {
		t.Fatalf("by name: %+v, %v", s, err)
	}

	// Unknown name creates a session with that name.
	s, err = m.StartOrResume("fresh-topic", "")
	if err != nil || s.Name != "fresh-topic" || s.ID == id {
		t.Fatalf("create by name: %+v, %v", s, err)
	}

	// Unknown numeric id also becomes a name.
	s, err = m.StartOrResume("999", "")
	if err != nil || s.Name != "999" {
		t.Fatalf("numeric name: %+v, %v", s, err)
	}
}

func TestStartOrResumeDuplicateName(t *testing.T) {
	isolateLockDir(t)
	m, st := newTestManager(t, config.General{}, nil)

	id1, _ := st.CreateSession("gf", "twin")
	id2, _ := st.CreateSession("gf", "twin")
	st.SaveSessionMessage(id1, "user", "first question about databases", "", 5)
	st.SaveSessionMessage(id2, "user", "second question about networks", "", 5)

	_, err := m.StartOrResume("twin", "")
	var dup *DuplicateSessionError
	if !errors.As(err, &dup) {
		t.Fatalf("err = %v", err)
	}
	if len(dup.Sessions) != 2 || dup.Name != "twin" {
		t.Fatalf("dup = %+v", dup)
	}
	if !strings.Contains(dup.Sessions[0].Preview, "first question") {
		t.Errorf("preview = %q", dup.Sessions[0].Preview)
	}
}

func TestStartOrResumeShellLock(t *testing.T) {
	isolateLockDir(t)
	m, st := newTestManager(t, config.General{}, nil)

	id, _ := st.CreateSession("gf", "locked")
	if err := SetShellSession(id); err != nil {
		t.Fatal(err)
	}

	s, err := m.StartOrResume("", "unrelated query")
	if err != nil || s.ID != id {
		t.Fatalf("lock resume: %+v, %v", s, err)
	}

	// A lock pointing at a deleted session is cleared and a fresh
	// session is created from the query.
	st.DeleteSessions([]int64{id})
	s, err = m.StartOrResume("", "what is the meaning of life")
	if err != nil {
		t.Fatal(err)
	}
	if s.Name != "meaning_life" {
		t.Errorf("auto name = %q", s.Name)
	}
	if _, ok := ShellSessionID(); ok {
		t.Error("stale lock not cleared")
	}
}

func TestBuildContextMessagesWithCompaction(t *testing.T) {
	isolateLockDir(t)
	m, st := newTestManager(t, config.General{}, nil)

	s, err := m.StartOrResume("ctx-test", "")
	if err != nil {
		t.Fatal(err)
	}
	if err := m.SaveTurn("the question", "the answer", "q-sum", "a-sum"); err != nil {
		t.Fatal(err)
	}
	if err := st.CompactSession(s.ID, "earlier we discussed X"); err != nil {
		t.Fatal(err)
	}
	// Reload to pick up the summary.
	if _, err := m.StartOrResume("ctx-test", ""); err != nil {
		t.Fatal(err)
	}

	messages, err := m.BuildContextMessages()
	if err != nil {
		t.Fatal(err)
	}
	if len(messages) != 4 {
		t.Fatalf("got %d messages", len(messages))
	}
	if messages[0].Role != "user" || messages[0].Content != "Previous conversation summary:\nearlier we discussed X" {
		t.Errorf("summary msg = %+v", messages[0])
	}
	if messages[1].Role != "assistant" || messages[1].Content != "I understand the context. How can I help further?" {
		t.Errorf("ack msg = %+v", messages[1])
	}
	if messages[2].Content != "the question" || messages[3].Content != "the answer" {
		t.Errorf("history = %+v", messages[2:])
	}
}

func TestCheckAndCompactSummariesStrategy(t *testing.T) {
	isolateLockDir(t)
	// contextSize 1000, threshold 1% -> 10 tokens = 40 chars.
	m, _ := newTestManager(t, config.General{SessionCompactionThreshold: 1}, nil)

	if _, err := m.StartOrResume("compact-me", ""); err != nil {
		t.Fatal(err)
	}
	m.SaveTurn(strings.Repeat("long question ", 20), strings.Repeat("long answer ", 20), "short q", "short a")

	compacted, err := m.CheckAndCompact(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !compacted {
		t.Fatal("expected compaction")
	}
	summary := m.Current().CompactedSummary
	if summary != "User: short q\nAssistant: short a" {
		t.Errorf("summary = %q", summary)
	}
}

func TestCheckAndCompactBelowThreshold(t *testing.T) {
	isolateLockDir(t)
	m, _ := newTestManager(t, config.General{SessionCompactionThreshold: 80}, nil)
	if _, err := m.StartOrResume("tiny", ""); err != nil {
		t.Fatal(err)
	}
	m.SaveTurn("hi", "hello", "", "")

	compacted, err := m.CheckAndCompact(context.Background())
	if err != nil || compacted {
		t.Errorf("compacted = %v, err = %v", compacted, err)
	}
}

func TestCheckAndCompactLLMStrategy(t *testing.T) {
	isolateLockDir(t)
	var gotTranscript string
	m, _ := newTestManager(t, config.General{
		SessionCompactionThreshold: 1,
		SessionCompactionStrategy:  "llm_summary",
	}, func(ctx context.Context, transcript string) (string, error) {
		gotTranscript = transcript
		return "llm condensed everything", nil
	})

	if _, err := m.StartOrResume("llm-compact", ""); err != nil {
		t.Fatal(err)
	}
	m.SaveTurn(strings.Repeat("q ", 40), strings.Repeat("a ", 40), "", "")

	compacted, err := m.CheckAndCompact(context.Background())
	if err != nil || !compacted {
		t.Fatalf("compacted = %v, err = %v", compacted, err)
	}
	if m.Current().CompactedSummary != "llm condensed everything" {
		t.Errorf("summary = %q", m.Current().CompactedSummary)
	}
	if !strings.HasPrefix(gotTranscript, "User: ") || !strings.Contains(gotTranscript, "\n\nAssistant: ") {
		t.Errorf("transcript = %q", gotTranscript)
	}
}

func TestShellLockRoundTrip(t *testing.T) {
	isolateLockDir(t)
	if _, ok := ShellSessionID(); ok {
		t.Fatal("unexpected lock")
	}
	if err := SetShellSession(42); err != nil {
		t.Fatal(err)
	}
	id, ok := ShellSessionID()
	if !ok || id != 42 {
		t.Fatalf("id = %d, ok = %v", id, ok)
	}
	ClearShellSession()
	if _, ok := ShellSessionID(); ok {
		t.Error("lock not cleared")
	}
}
