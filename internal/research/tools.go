package research

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/askyhq/asky/internal/config"
	"github.com/askyhq/asky/internal/htmlx"
	"github.com/askyhq/asky/internal/store"
)

// Service exposes the research-memory subsystem to the tool layer. All
// executors return result objects; failures are reported per-url inside
// the result so the model can react, never as Go errors.
type Service struct {
	cache    *Cache
	vectors  *VectorIndex
	fetcher  *Fetcher
	adapters *AdapterSet

	maxLinksPerURL   int
	maxRelevantLinks int
	memoryMaxResults int
	chunkSize        int
	chunkOverlap     int
}

func NewService(cfg config.Research, cache *Cache, vectors *VectorIndex, fetcher *Fetcher, adapters *AdapterSet) *Service {
	return &Service{
		cache:            cache,
		vectors:          vectors,
		fetcher:          fetcher,
		adapters:         adapters,
		maxLinksPerURL:   cfg.MaxLinksPerURL,
		maxRelevantLinks: cfg.MaxRelevantLinks,
		memoryMaxResults: cfg.MemoryMaxResults,
		chunkSize:        cfg.ChunkSize,
		chunkOverlap:     cfg.ChunkOverlap,
	}
}

// ExtractLinks fetches (or reuses cached) pages and returns only their
// links; content stays in the cache for later retrieval. A query ranks
// links by semantic relevance, degrading to the unranked prefix when
// embeddings are unavailable.
func (s *Service) ExtractLinks(ctx context.Context, args map[string]interface{}) map[string]interface{} {
	urls := urlsFromArgs(args)
	if len(urls) == 0 {
		return errResult("No URLs provided. Please specify 'urls' or 'url' parameter.")
	}

	query := stringArg(args, "query")
	maxLinks := intArg(args, "max_links", s.maxLinksPerURL)

	results := make(map[string]interface{}, len(urls))
	for _, url := range urls {
		var (
			links     []htmlx.Link
			cacheID   int64
			fromCache bool
		)

		cached, err := s.cache.GetCached(url)
		if err != nil {
			results[url] = errResult(err.Error())
			continue
		}
		if cached != nil {
			links = cached.Links
			cacheID = cached.ID
			fromCache = true
		} else {
			parsed := s.fetcher.FetchAndParse(url)
			if parsed.Err != "" {
				results[url] = errResult(parsed.Err)
				continue
			}
			cacheID, err = s.cache.CacheURL(ctx, url, parsed.Title, parsed.Content, parsed.Links, true)
			if err != nil {
				results[url] = errResult(err.Error())
				continue
			}
			links = parsed.Links
		}

		s.tryEmbedLinks(ctx, cacheID, links)

		var out interface{}
		if query != "" && len(links) > 0 {
			out = s.rankedOrUnranked(ctx, cacheID, query, links, maxLinks)
		} else {
			out = truncateLinks(links, maxLinks)
		}

		results[url] = map[string]interface{}{
			"links":      out,
			"cached":     fromCache,
			"link_count": linkCount(out),
			"note":       "Content cached. Use get_link_summaries or get_relevant_content to read.",
		}
	}
	return results
}

func (s *Service) tryEmbedLinks(ctx context.Context, cacheID int64, links []htmlx.Link) {
	if len(links) == 0 || s.vectors.HasLinkEmbeddings(cacheID) {
		return
	}
	if err := s.vectors.StoreLinkEmbeddings(ctx, cacheID, links); err != nil {
		slog.Warn("link embedding failed, links stay unranked", "error", err)
	}
}

func (s *Service) rankedOrUnranked(ctx context.Context, cacheID int64, query string, links []htmlx.Link, maxLinks int) interface{} {
	topK := maxLinks
	if s.maxRelevantLinks > 0 && topK > s.maxRelevantLinks {
		topK = s.maxRelevantLinks
	}
	ranked, err := s.vectors.RankLinksByRelevance(ctx, cacheID, query, topK)
	if err != nil || len(ranked) == 0 {
		if err != nil {
			slog.Warn("relevance ranking failed, using unranked links", "error", err)
		}
		return truncateLinks(links, maxLinks)
	}
	out := make([]map[string]interface{}, len(ranked))
	for i, r := range ranked {
		out[i] = map[string]interface{}{
			"text":      r.Link.Text,
			"href":      r.Link.Href,
			"relevance": round3(r.Score),
		}
	}
	return out
}

// GetLinkSummaries reports per-url summary status for cached pages.
func (s *Service) GetLinkSummaries(ctx context.Context, args map[string]interface{}) map[string]interface{} {
	urls := urlsFromArgs(args)
	if len(urls) == 0 {
		return errResult("No URLs provided.")
	}

	results := make(map[string]interface{}, len(urls))
	for _, url := range urls {
		page, err := s.cache.GetSummary(url)
		if err != nil {
			results[url] = errResult(err.Error())
			continue
		}
		if page == nil {
			results[url] = errResult("Not cached. Use extract_links first to cache this URL.")
			continue
		}

		switch {
		case page.SummaryStatus == store.SummaryCompleted && page.Summary != "":
			results[url] = map[string]interface{}{
				"title":   page.Title,
				"summary": page.Summary,
			}
		case page.SummaryStatus == store.SummaryProcessing:
			results[url] = map[string]interface{}{
				"title":   page.Title,
				"summary": "(Summary is being generated... try again in a moment)",
				"status":  store.SummaryProcessing,
			}
		case page.SummaryStatus == store.SummaryFailed:
			results[url] = map[string]interface{}{
				"title":   page.Title,
				"summary": "(Summary generation failed)",
				"status":  store.SummaryFailed,
			}
		default:
			results[url] = map[string]interface{}{
				"title":   page.Title,
				"summary": "(Summary pending)",
				"status":  page.SummaryStatus,
			}
		}
	}
	return results
}

// GetRelevantContent returns the most query-similar chunks of cached
// pages, lazily building the chunk index. Any embedding failure
// degrades to a marked content preview.
func (s *Service) GetRelevantContent(ctx context.Context, args map[string]interface{}) map[string]interface{} {
	urls := urlsFromArgs(args)
	query := stringArg(args, "query")
	maxChunks := intArg(args, "max_chunks", 5)

	if len(urls) == 0 {
		return errResult("No URLs provided.")
	}
	if query == "" {
		return errResult("Query is required for relevant content retrieval.")
	}

	results := make(map[string]interface{}, len(urls))
	for _, url := range urls {
		cached, err := s.cache.GetCached(url)
		if err != nil {
			results[url] = errResult(err.Error())
			continue
		}
		if cached == nil {
			results[url] = errResult("Not cached. Use extract_links first to cache this URL.")
			continue
		}
		if cached.Content == "" {
			results[url] = errResult("Cached content is empty.")
			continue
		}
		results[url] = s.relevantForPage(ctx, cached, query, maxChunks)
	}
	return results
}

func (s *Service) relevantForPage(ctx context.Context, page *store.CachedPage, query string, maxChunks int) map[string]interface{} {
	fallback := func(err error) map[string]interface{} {
		msg := err.Error()
		if len(msg) > 50 {
			msg = msg[:50]
		}
		return map[string]interface{}{
			"title":           page.Title,
			"fallback":        true,
			"note":            fmt.Sprintf("Semantic search unavailable (%s). Returning content preview.", msg),
			"content_preview": preview(page.Content, 3000),
		}
	}

	if !s.vectors.HasChunkEmbeddings(page.ID) {
		chunks := ChunkText(page.Content, s.chunkSize, s.chunkOverlap)
		stored, err := s.vectors.StoreChunkEmbeddings(ctx, page.ID, chunks)
		if err != nil {
			return fallback(err)
		}
		if stored == 0 {
			return fallback(fmt.Errorf("failed to store chunk embeddings"))
		}
	}

	relevant, err := s.vectors.SearchChunks(ctx, page.ID, query, maxChunks)
	if err != nil {
		return fallback(err)
	}
	if len(relevant) == 0 {
		return map[string]interface{}{
			"title":           page.Title,
			"note":            "No highly relevant sections found. Returning content preview.",
			"content_preview": preview(page.Content, 2000),
		}
	}

	chunks := make([]map[string]interface{}, len(relevant))
	for i, r := range relevant {
		chunks[i] = map[string]interface{}{
			"text":      r.Text,
			"relevance": round3(r.Score),
		}
	}
	return map[string]interface{}{
		"title":       page.Title,
		"chunks":      chunks,
		"chunk_count": len(chunks),
	}
}

// GetFullContent returns entire cached pages. On a cache miss, a target
// matching a configured source adapter prefix is read through the
// adapter, cached, and returned.
func (s *Service) GetFullContent(ctx context.Context, args map[string]interface{}) map[string]interface{} {
	urls := urlsFromArgs(args)
	if len(urls) == 0 {
		return errResult("No URLs provided.")
	}

	results := make(map[string]interface{}, len(urls))
	for _, url := range urls {
		cached, err := s.cache.GetCached(url)
		if err != nil {
			results[url] = errResult(err.Error())
			continue
		}
		if cached == nil {
			fetched := s.adapters.Fetch(ctx, url, "", DefaultAdapterMaxLinks, "read")
			if fetched == nil {
				results[url] = errResult("Not cached. Use extract_links first to cache this URL.")
				continue
			}
			if fetched.Err != "" {
				results[url] = errResult(fetched.Err)
				continue
			}
			if _, err := s.cache.CacheURL(ctx, url, fetched.Title, fetched.Content, fetched.Links, true); err != nil {
				results[url] = errResult(err.Error())
				continue
			}
			results[url] = map[string]interface{}{
				"title":          fetched.Title,
				"content":        fetched.Content,
				"content_length": len(fetched.Content),
			}
			continue
		}
		if cached.Content == "" {
			results[url] = errResult("Cached content is empty.")
			continue
		}
		results[url] = map[string]interface{}{
			"title":          cached.Title,
			"content":        cached.Content,
			"content_length": len(cached.Content),
		}
	}
	return results
}

// SaveFinding persists a fact to research memory, embedding it for
// semantic recall on a best-effort basis.
func (s *Service) SaveFinding(ctx context.Context, args map[string]interface{}) map[string]interface{} {
	finding := stringArg(args, "finding")
	if finding == "" {
		return errResult("Finding text is required.")
	}

	tags := stringSliceArg(args, "tags")
	id, err := s.cache.SaveFinding(finding, stringArg(args, "source_url"), stringArg(args, "source_title"), tags)
	if err != nil {
		return errResult(err.Error())
	}

	embedded := false
	if err := s.vectors.StoreFindingEmbedding(ctx, id, finding); err != nil {
		slog.Warn("finding embedding failed, finding saved without it", "error", err)
	} else {
		embedded = true
	}

	note := "Finding saved to research memory (without embedding - API unavailable)"
	if embedded {
		note = "Finding saved to research memory with embedding"
	}
	return map[string]interface{}{
		"status":     "saved",
		"finding_id": id,
		"embedded":   embedded,
		"note":       note,
	}
}

// QueryResearchMemory searches saved findings semantically; when that
// yields nothing or embeddings are down, it returns recent findings
// with a marker.
func (s *Service) QueryResearchMemory(ctx context.Context, args map[string]interface{}) map[string]interface{} {
	query := stringArg(args, "query")
	if query == "" {
		return errResult("Query is required.")
	}
	limit := intArg(args, "limit", s.memoryMaxResults)

	scored, err := s.vectors.SearchFindings(ctx, query, limit)
	if err != nil {
		slog.Warn("semantic finding search unavailable", "error", err)
		msg := err.Error()
		if len(msg) > 30 {
			msg = msg[:30]
		}
		return s.recentFindingsResult(limit, fmt.Sprintf("Semantic search unavailable (%s). Showing recent findings.", msg), "fallback")
	}

	if len(scored) > 0 {
		findings := make([]map[string]interface{}, len(scored))
		for i, r := range scored {
			findings[i] = findingFields(r.Finding)
			findings[i]["relevance"] = round3(r.Score)
		}
		return map[string]interface{}{
			"findings":    findings,
			"count":       len(findings),
			"search_type": "semantic",
		}
	}
	return s.recentFindingsResult(limit, "No semantically relevant findings. Showing recent findings.", "recent")
}

func (s *Service) recentFindingsResult(limit int, note, searchType string) map[string]interface{} {
	recent, err := s.cache.RecentFindings(limit)
	if err != nil || len(recent) == 0 {
		return map[string]interface{}{
			"findings": []interface{}{},
			"note":     "No findings in research memory yet. Use save_finding to store discoveries.",
		}
	}
	findings := make([]map[string]interface{}, len(recent))
	for i, f := range recent {
		findings[i] = findingFields(f)
	}
	return map[string]interface{}{
		"findings":    findings,
		"count":       len(findings),
		"note":        note,
		"search_type": searchType,
	}
}

func findingFields(f store.Finding) map[string]interface{} {
	return map[string]interface{}{
		"finding":      f.Text,
		"source_url":   f.SourceURL,
		"source_title": f.SourceTitle,
		"tags":         f.Tags,
		"saved_at":     f.CreatedAt.Format(time.RFC3339),
	}
}

// Drain flushes background summarization work before shutdown.
func (s *Service) Drain(timeout time.Duration) {
	s.cache.Drain(timeout)
}
