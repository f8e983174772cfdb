package research

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/askyhq/asky/internal/config"
	"github.com/askyhq/asky/internal/store"
)

func TestVectorSerializationRoundTrip(t *testing.T) {
	vecs := [][]float32{
		{},
		{0},
		{1.5, -2.25, 3.14159, float32(math.Inf(1)), -0},
		{1e-38, 1e38, 0.1, 0.2, 0.3},
	}
	for _, v := range vecs {
		got := DeserializeVector(SerializeVector(v))
		if len(got) != len(v) {
			t.Fatalf("length changed: %d -> %d", len(v), len(got))
		}
		for i := range v {
			if math.Float32bits(got[i]) != math.Float32bits(v[i]) {
				t.Errorf("component %d not bit-exact: %v vs %v", i, got[i], v[i])
			}
		}
	}
}

func TestCosineSimilarity(t *testing.T) {
	a := []float32{1, 0, 0}
	if got := CosineSimilarity(a, a); math.Abs(got-1) > 1e-9 {
		t.Errorf("self similarity = %v", got)
	}
	if got := CosineSimilarity(a, []float32{0, 1, 0}); math.Abs(got) > 1e-9 {
		t.Errorf("orthogonal similarity = %v", got)
	}
	if got := CosineSimilarity(a, []float32{1, 0}); got != 0 {
		t.Errorf("mismatched lengths = %v", got)
	}
	if got := CosineSimilarity(a, []float32{0, 0, 0}); got != 0 {
		t.Errorf("zero vector = %v", got)
	}
}

func TestChunkText(t *testing.T) {
	if got := ChunkText("", 100, 20); got != nil {
		t.Errorf("empty input: %v", got)
	}
	if got := ChunkText("short", 100, 20); len(got) != 1 || got[0] != "short" {
		t.Errorf("short input: %v", got)
	}

	// Paragraphs pack together until the size bound.
	text := strings.Repeat("alpha beta gamma. ", 10) + "\n\n" + strings.Repeat("delta epsilon. ", 10)
	chunks := ChunkText(text, 250, 50)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for _, c := range chunks {
		if len(c) > 250 {
			t.Errorf("chunk exceeds size bound: %d chars", len(c))
		}
	}

	// A single huge paragraph is cut with overlap.
	huge := strings.Repeat("x", 1000)
	chunks = ChunkText(huge, 400, 100)
	if len(chunks) < 3 {
		t.Fatalf("expected overlapped cuts, got %d chunks", len(chunks))
	}
	var total int
	for _, c := range chunks {
		total += len(c)
	}
	if total < len(huge) {
		t.Errorf("chunks cover %d of %d chars", total, len(huge))
	}
}

// embeddingStub serves deterministic vectors derived from input length.
func embeddingStub(t *testing.T, format string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Input []string `json:"input"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		vecs := make([][]float32, len(req.Input))
		for i, text := range req.Input {
			vecs[i] = []float32{float32(len(text) % 7), 1, 0.5}
		}
		if format == "data" {
			items := make([]map[string]interface{}, len(vecs))
			for i, v := range vecs {
				items[i] = map[string]interface{}{"embedding": v}
			}
			json.NewEncoder(w).Encode(map[string]interface{}{"data": items})
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{"embeddings": vecs})
	}))
}

func TestEmbedBothResponseFormats(t *testing.T) {
	for _, format := range []string{"data", "embeddings"} {
		srv := embeddingStub(t, format)
		c := NewEmbeddingClient(srv.URL, "test-model", time.Second, 2)
		vecs, err := c.Embed(context.Background(), []string{"one", "two", "three", "", "  "})
		srv.Close()
		if err != nil {
			t.Fatalf("format %s: %v", format, err)
		}
		// Empty inputs are filtered; batching still returns one vector each.
		if len(vecs) != 3 {
			t.Fatalf("format %s: got %d vectors", format, len(vecs))
		}
	}
}

func newTestService(t *testing.T, embURL string, adapters map[string]config.SourceAdapter, runTool CustomToolFunc) (*Service, *store.Store) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "research.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	emb := NewEmbeddingClient(embURL, "test-model", time.Second, 8)
	cfg := config.Default().Research
	svc := NewService(cfg,
		NewCache(st, nil, 1, 600),
		NewVectorIndex(st, emb),
		NewFetcher(time.Second, "test-agent"),
		NewAdapterSet(adapters, runTool),
	)
	return svc, st
}

func TestExtractLinksCachesAndReturnsLinks(t *testing.T) {
	page := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><h1>Title Line</h1><p>Body text here.</p>
<a href="/a">Alpha</a><a href="/b">Beta</a></body></html>`)
	}))
	defer page.Close()
	emb := embeddingStub(t, "data")
	defer emb.Close()

	svc, st := newTestService(t, emb.URL, nil, nil)

	result := svc.ExtractLinks(context.Background(), map[string]interface{}{
		"urls": []interface{}{page.URL},
	})
	entry, ok := result[page.URL].(map[string]interface{})
	if !ok {
		t.Fatalf("result = %+v", result)
	}
	if entry["cached"] != false {
		t.Errorf("first call should not be from cache: %+v", entry)
	}
	if entry["link_count"].(int) != 2 {
		t.Errorf("link_count = %v", entry["link_count"])
	}

	cached, err := st.GetCachedURL(page.URL)
	if err != nil || cached == nil {
		t.Fatalf("page not cached: %v", err)
	}
	if !strings.Contains(cached.Content, "Body text here.") {
		t.Errorf("cached content = %q", cached.Content)
	}

	// Second call hits the cache.
	result = svc.ExtractLinks(context.Background(), map[string]interface{}{"url": page.URL})
	entry = result[page.URL].(map[string]interface{})
	if entry["cached"] != true {
		t.Errorf("second call should be cached: %+v", entry)
	}
}

func TestGetRelevantContentFallback(t *testing.T) {
	// Embedding endpoint that always fails.
	emb := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no model loaded", http.StatusInternalServerError)
	}))
	defer emb.Close()

	svc, st := newTestService(t, emb.URL, nil, nil)
	if _, _, err := st.CacheURL("https://example.com/doc", "Doc", strings.Repeat("useful content. ", 300), nil); err != nil {
		t.Fatal(err)
	}

	result := svc.GetRelevantContent(context.Background(), map[string]interface{}{
		"urls":  []interface{}{"https://example.com/doc"},
		"query": "what is useful",
	})
	entry, ok := result["https://example.com/doc"].(map[string]interface{})
	if !ok {
		t.Fatalf("result = %+v", result)
	}
	if entry["fallback"] != true {
		t.Errorf("expected fallback marker: %+v", entry)
	}
	previewText, _ := entry["content_preview"].(string)
	if previewText == "" || len(previewText) > 3003 {
		t.Errorf("content_preview length = %d", len(previewText))
	}
}

func TestGetRelevantContentChunks(t *testing.T) {
	emb := embeddingStub(t, "data")
	defer emb.Close()

	svc, st := newTestService(t, emb.URL, nil, nil)
	content := "First paragraph about goroutines.\n\nSecond paragraph about channels."
	if _, _, err := st.CacheURL("https://example.com/go", "Go", content, nil); err != nil {
		t.Fatal(err)
	}

	result := svc.GetRelevantContent(context.Background(), map[string]interface{}{
		"urls":  "https://example.com/go",
		"query": "goroutines",
	})
	entry := result["https://example.com/go"].(map[string]interface{})
	if _, hasErr := entry["error"]; hasErr {
		t.Fatalf("unexpected error: %+v", entry)
	}
	if entry["fallback"] == true {
		t.Fatalf("should not fall back: %+v", entry)
	}
	if entry["chunk_count"].(int) < 1 {
		t.Errorf("chunk_count = %v", entry["chunk_count"])
	}
}

func TestGetFullContentViaSourceAdapter(t *testing.T) {
	emb := embeddingStub(t, "data")
	defer emb.Close()

	var gotName string
	var gotArgs map[string]interface{}
	runTool := func(ctx context.Context, name string, args map[string]interface{}) map[string]interface{} {
		gotName = name
		gotArgs = args
		payload := map[string]interface{}{
			"title":   "Local Doc 1",
			"content": "adapter-provided content",
			"links":   []interface{}{map[string]interface{}{"url": "local://doc-2", "title": "Doc 2"}},
		}
		out, _ := json.Marshal(payload)
		return map[string]interface{}{"stdout": string(out), "stderr": "", "exit_code": 0}
	}
	adapters := map[string]config.SourceAdapter{
		"local": {Prefix: "local://", ReadTool: "local_read", Enabled: true},
	}
	svc, st := newTestService(t, emb.URL, adapters, runTool)

	result := svc.GetFullContent(context.Background(), map[string]interface{}{
		"urls": []interface{}{"local://doc-1"},
	})
	entry, ok := result["local://doc-1"].(map[string]interface{})
	if !ok {
		t.Fatalf("result = %+v", result)
	}
	if entry["content"] != "adapter-provided content" || entry["title"] != "Local Doc 1" {
		t.Errorf("entry = %+v", entry)
	}

	if gotName != "local_read" {
		t.Errorf("tool = %q, want local_read", gotName)
	}
	if gotArgs["target"] != "local://doc-1" || gotArgs["operation"] != "read" || gotArgs["max_links"] != DefaultAdapterMaxLinks {
		t.Errorf("args = %+v", gotArgs)
	}

	// The adapter payload landed in the cache, links normalized.
	cached, err := st.GetCachedURL("local://doc-1")
	if err != nil || cached == nil {
		t.Fatalf("adapter result not cached: %v", err)
	}
	if len(cached.Links) != 1 || cached.Links[0].Href != "local://doc-2" || cached.Links[0].Text != "Doc 2" {
		t.Errorf("cached links = %+v", cached.Links)
	}
}

func TestAdapterLookupLongestPrefix(t *testing.T) {
	set := NewAdapterSet(map[string]config.SourceAdapter{
		"local":      {Prefix: "local://", ReadTool: "read_a", Enabled: true},
		"local-docs": {Prefix: "local://docs/", ReadTool: "read_b", Enabled: true},
		"disabled":   {Prefix: "local://docs/x/", ReadTool: "read_c", Enabled: false},
	}, nil)

	if a := set.Lookup("local://docs/x/readme"); a == nil || a.ReadTool != "read_b" {
		t.Errorf("lookup = %+v, want read_b", a)
	}
	if a := set.Lookup("local://other"); a == nil || a.ReadTool != "read_a" {
		t.Errorf("lookup = %+v, want read_a", a)
	}
	if a := set.Lookup("https://example.com"); a != nil {
		t.Errorf("unexpected match: %+v", a)
	}
}

func TestSaveFindingAndQueryMemory(t *testing.T) {
	emb := embeddingStub(t, "data")
	defer emb.Close()
	svc, _ := newTestService(t, emb.URL, nil, nil)

	saved := svc.SaveFinding(context.Background(), map[string]interface{}{
		"finding":    "SQLite serializes writers",
		"source_url": "https://sqlite.org",
		"tags":       []interface{}{"sqlite"},
	})
	if saved["status"] != "saved" || saved["embedded"] != true {
		t.Fatalf("saved = %+v", saved)
	}

	result := svc.QueryResearchMemory(context.Background(), map[string]interface{}{"query": "writers"})
	if result["search_type"] != "semantic" {
		t.Fatalf("result = %+v", result)
	}
	findings := result["findings"].([]map[string]interface{})
	if len(findings) != 1 || findings[0]["finding"] != "SQLite serializes writers" {
		t.Errorf("findings = %+v", findings)
	}
}

func TestQueryMemoryFallsBackToRecent(t *testing.T) {
	// Embeddings down: save still works, query degrades to recent.
	emb := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusInternalServerError)
	}))
	defer emb.Close()
	svc, _ := newTestService(t, emb.URL, nil, nil)

	saved := svc.SaveFinding(context.Background(), map[string]interface{}{"finding": "fact one"})
	if saved["status"] != "saved" || saved["embedded"] != false {
		t.Fatalf("saved = %+v", saved)
	}

	result := svc.QueryResearchMemory(context.Background(), map[string]interface{}{"query": "anything"})
	if result["search_type"] != "fallback" {
		t.Fatalf("result = %+v", result)
	}
	findings := result["findings"].([]map[string]interface{})
	if len(findings) != 1 || findings[0]["finding"] != "fact one" {
		t.Errorf("findings = %+v", findings)
	}
}
