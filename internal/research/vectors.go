package research

import (
	"context"
	"fmt"
	"sort"

	"github.com/askyhq/asky/internal/htmlx"
	"github.com/askyhq/asky/internal/store"
)

// VectorIndex ranks stored embeddings by cosine similarity. It owns no
// vectors itself; everything lives in the store's embedding tables,
// keyed by the cache row (or finding) they describe.
type VectorIndex struct {
	store *store.Store
	emb   *EmbeddingClient
}

func NewVectorIndex(st *store.Store, emb *EmbeddingClient) *VectorIndex {
	return &VectorIndex{store: st, emb: emb}
}

// ScoredChunk is one content chunk with its similarity to a query.
type ScoredChunk struct {
	Text  string
	Score float64
}

// ScoredLink is one page link with its similarity to a query.
type ScoredLink struct {
	Link  htmlx.Link
	Score float64
}

// ScoredFinding is one saved finding with its similarity to a query.
type ScoredFinding struct {
	Finding store.Finding
	Score   float64
}

// StoreChunkEmbeddings chunks nothing itself; it embeds the given
// chunks and stores one vector per chunk against the cache row.
func (v *VectorIndex) StoreChunkEmbeddings(ctx context.Context, cacheID int64, chunks []string) (int, error) {
	if len(chunks) == 0 {
		return 0, nil
	}
	vecs, err := v.emb.Embed(ctx, chunks)
	if err != nil {
		return 0, fmt.Errorf("embed chunks: %w", err)
	}
	if len(vecs) != len(chunks) {
		return 0, fmt.Errorf("embedding count mismatch: %d chunks, %d vectors", len(chunks), len(vecs))
	}

	rows := make([]store.ChunkEmbedding, len(chunks))
	for i := range chunks {
		rows[i] = store.ChunkEmbedding{
			CacheID: cacheID,
			Index:   i,
			Text:    chunks[i],
			Vector:  SerializeVector(vecs[i]),
		}
	}
	if err := v.store.StoreChunkEmbeddings(cacheID, rows); err != nil {
		return 0, err
	}
	return len(rows), nil
}

// HasChunkEmbeddings reports whether the cache row is already indexed.
func (v *VectorIndex) HasChunkEmbeddings(cacheID int64) bool {
	has, err := v.store.HasChunkEmbeddings(cacheID)
	return err == nil && has
}

// SearchChunks returns the topK most query-similar chunks of one page.
func (v *VectorIndex) SearchChunks(ctx context.Context, cacheID int64, query string, topK int) ([]ScoredChunk, error) {
	qvec, err := v.emb.EmbedSingle(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	rows, err := v.store.GetChunkEmbeddings(cacheID)
	if err != nil {
		return nil, err
	}

	scored := make([]ScoredChunk, 0, len(rows))
	for _, r := range rows {
		scored = append(scored, ScoredChunk{
			Text:  r.Text,
			Score: CosineSimilarity(qvec, DeserializeVector(r.Vector)),
		})
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	if topK > 0 && len(scored) > topK {
		scored = scored[:topK]
	}
	return scored, nil
}

// StoreLinkEmbeddings embeds one vector per link label.
func (v *VectorIndex) StoreLinkEmbeddings(ctx context.Context, cacheID int64, links []htmlx.Link) error {
	if len(links) == 0 {
		return nil
	}
	labels := make([]string, len(links))
	for i, l := range links {
		label := l.Text
		if label == "" {
			label = l.Href
		}
		labels[i] = label
	}
	vecs, err := v.emb.Embed(ctx, labels)
	if err != nil {
		return fmt.Errorf("embed links: %w", err)
	}
	if len(vecs) != len(links) {
		return fmt.Errorf("embedding count mismatch: %d links, %d vectors", len(links), len(vecs))
	}

	rows := make([]store.LinkEmbedding, len(links))
	for i, l := range links {
		rows[i] = store.LinkEmbedding{
			CacheID: cacheID,
			Index:   i,
			Text:    l.Text,
			Href:    l.Href,
			Vector:  SerializeVector(vecs[i]),
		}
	}
	return v.store.StoreLinkEmbeddings(cacheID, rows)
}

// HasLinkEmbeddings reports whether the cache row's links are indexed.
func (v *VectorIndex) HasLinkEmbeddings(cacheID int64) bool {
	has, err := v.store.HasLinkEmbeddings(cacheID)
	return err == nil && has
}

// RankLinksByRelevance returns the topK most query-similar links of one
// page.
func (v *VectorIndex) RankLinksByRelevance(ctx context.Context, cacheID int64, query string, topK int) ([]ScoredLink, error) {
	qvec, err := v.emb.EmbedSingle(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	rows, err := v.store.GetLinkEmbeddings(cacheID)
	if err != nil {
		return nil, err
	}

	scored := make([]ScoredLink, 0, len(rows))
	for _, r := range rows {
		scored = append(scored, ScoredLink{
			Link:  htmlx.Link{Text: r.Text, Href: r.Href},
			Score: CosineSimilarity(qvec, DeserializeVector(r.Vector)),
		})
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	if topK > 0 && len(scored) > topK {
		scored = scored[:topK]
	}
	return scored, nil
}

// StoreFindingEmbedding embeds a finding's text, best-effort from the
// caller's perspective.
func (v *VectorIndex) StoreFindingEmbedding(ctx context.Context, findingID int64, text string) error {
	vec, err := v.emb.EmbedSingle(ctx, text)
	if err != nil {
		return fmt.Errorf("embed finding: %w", err)
	}
	return v.store.StoreFindingEmbedding(findingID, SerializeVector(vec))
}

// SearchFindings returns the topK most query-similar findings across
// all sessions.
func (v *VectorIndex) SearchFindings(ctx context.Context, query string, topK int) ([]ScoredFinding, error) {
	qvec, err := v.emb.EmbedSingle(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	rows, err := v.store.GetFindingEmbeddings()
	if err != nil {
		return nil, err
	}

	var scored []ScoredFinding
	for _, r := range rows {
		f, err := v.store.GetFinding(r.FindingID)
		if err != nil || f == nil {
			continue
		}
		scored = append(scored, ScoredFinding{
			Finding: *f,
			Score:   CosineSimilarity(qvec, DeserializeVector(r.Vector)),
		})
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	if topK > 0 && len(scored) > topK {
		scored = scored[:topK]
	}
	return scored, nil
}
