// Package research is the research-memory subsystem: a content-
// addressed cache of fetched pages, vector indexes over page chunks,
// link labels, and saved findings, and the tool executors that expose
// them to the model.
package research

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"
)

// EmbeddingClient talks to an OpenAI-compatible embeddings endpoint.
// One instance is shared by the whole research subsystem.
type EmbeddingClient struct {
	url       string
	model     string
	batchSize int
	http      *http.Client
}

func NewEmbeddingClient(url, model string, timeout time.Duration, batchSize int) *EmbeddingClient {
	if batchSize <= 0 {
		batchSize = 32
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &EmbeddingClient{
		url:       url,
		model:     model,
		batchSize: batchSize,
		http:      &http.Client{Timeout: timeout},
	}
}

// Embed returns one vector per non-empty input text, batching requests
// at the configured batch size. Failures propagate so callers can take
// their non-embedding fallback paths.
func (c *EmbeddingClient) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	var in []string
	for _, t := range texts {
		if strings.TrimSpace(t) != "" {
			in = append(in, t)
		}
	}
	if len(in) == 0 {
		return nil, nil
	}

	var out [][]float32
	for start := 0; start < len(in); start += c.batchSize {
		end := start + c.batchSize
		if end > len(in) {
			end = len(in)
		}
		vecs, err := c.embedBatch(ctx, in[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, vecs...)
	}
	return out, nil
}

// EmbedSingle embeds one text.
func (c *EmbeddingClient) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("cannot embed empty text")
	}
	vecs, err := c.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vecs) == 0 {
		return nil, fmt.Errorf("embedding endpoint returned no vectors")
	}
	return vecs[0], nil
}

// embeddingResponse accepts both the OpenAI shape ({data:[{embedding}]})
// and the bare {embeddings:[…]} shape some local servers produce.
type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
	Embeddings [][]float32 `json:"embeddings"`
}

func (c *EmbeddingClient) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	body, err := json.Marshal(map[string]interface{}{
		"input": texts,
		"model": c.model,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal embedding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create embedding request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedding request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read embedding response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("embedding endpoint returned %d: %s", resp.StatusCode, data)
	}

	var parsed embeddingResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("decode embedding response: %w", err)
	}

	switch {
	case len(parsed.Data) > 0:
		out := make([][]float32, len(parsed.Data))
		for i, d := range parsed.Data {
			out[i] = d.Embedding
		}
		return out, nil
	case len(parsed.Embeddings) > 0:
		return parsed.Embeddings, nil
	default:
		return nil, fmt.Errorf("unexpected embedding response format")
	}
}

// SerializeVector packs a vector as float32 little-endian, 4 bytes per
// component, for BLOB storage.
func SerializeVector(v []float32) []byte {
	out := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(f))
	}
	return out
}

// DeserializeVector restores a vector packed by SerializeVector. The
// round trip is bit-exact.
func DeserializeVector(data []byte) []float32 {
	out := make([]float32, len(data)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return out
}

// CosineSimilarity is the ranking function for all vector searches.
// Returns 0 for mismatched or zero-length vectors.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
