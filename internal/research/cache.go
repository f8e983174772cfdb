package research

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/askyhq/asky/internal/htmlx"
	"github.com/askyhq/asky/internal/store"
)

// SummarizeFunc produces a short summary of page content. Supplied by
// the summarization service; the cache only orchestrates when it runs.
type SummarizeFunc func(ctx context.Context, content string) (string, error)

// Cache is the content-addressed page cache. Writes are idempotent on
// url; a fresh insert can kick off a background summarization task.
// Producers never wait for summaries — consumers poll GetSummary.
type Cache struct {
	store     *store.Store
	summarize SummarizeFunc

	// Worker pool: sem bounds concurrent summarization tasks, limiter
	// spaces out calls to the summarization model.
	sem     *semaphore.Weighted
	limiter *rate.Limiter
	wg      sync.WaitGroup
}

func NewCache(st *store.Store, summarize SummarizeFunc, workers int, callsPerMin float64) *Cache {
	if workers <= 0 {
		workers = 2
	}
	if callsPerMin <= 0 {
		callsPerMin = 30
	}
	return &Cache{
		store:     st,
		summarize: summarize,
		sem:       semaphore.NewWeighted(int64(workers)),
		limiter:   rate.NewLimiter(rate.Limit(callsPerMin/60), 1),
	}
}

// CacheURL stores a fetched page (no-op when the url is already cached)
// and returns the cache row id. With triggerSummarization set, a fresh
// insert schedules a background summary.
func (c *Cache) CacheURL(ctx context.Context, url, title, content string, links []htmlx.Link, triggerSummarization bool) (int64, error) {
	id, created, err := c.store.CacheURL(url, title, content, links)
	if err != nil {
		return 0, err
	}
	if created && triggerSummarization && c.summarize != nil && content != "" {
		c.scheduleSummary(id, url)
	}
	return id, nil
}

// GetCached returns the cached page for url, nil on a miss.
func (c *Cache) GetCached(url string) (*store.CachedPage, error) {
	return c.store.GetCachedURL(url)
}

// GetSummary returns the cached page carrying summary and status, nil
// on a miss.
func (c *Cache) GetSummary(url string) (*store.CachedPage, error) {
	return c.store.GetCachedURL(url)
}

func (c *Cache) scheduleSummary(cacheID int64, url string) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()

		// Detached from the request context: the turn that triggered
		// the fetch must not cancel the summary.
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()

		if err := c.sem.Acquire(ctx, 1); err != nil {
			return
		}
		defer c.sem.Release(1)

		claimed, err := c.store.ClaimSummary(cacheID)
		if err != nil || !claimed {
			return
		}

		if err := c.limiter.Wait(ctx); err != nil {
			c.store.FailSummary(cacheID)
			return
		}

		page, err := c.store.GetCachedPageByID(cacheID)
		if err != nil || page == nil {
			c.store.FailSummary(cacheID)
			return
		}

		summary, err := c.summarize(ctx, page.Content)
		if err != nil {
			slog.Warn("background summarization failed", "url", url, "error", err)
			c.store.FailSummary(cacheID)
			return
		}
		if err := c.store.CompleteSummary(cacheID, summary); err != nil {
			slog.Warn("could not store summary", "url", url, "error", err)
		}
	}()
}

// Drain waits for in-flight summarization tasks, up to timeout, then
// resets any still-processing rows to pending so a later run can pick
// them up.
func (c *Cache) Drain(timeout time.Duration) {
	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
		slog.Debug("summarization drain timed out")
	}
	if err := c.store.AbandonPendingSummaries(); err != nil {
		slog.Warn("could not reset abandoned summaries", "error", err)
	}
}

// SaveFinding persists a finding through the cache's store handle.
func (c *Cache) SaveFinding(text, sourceURL, sourceTitle string, tags []string) (int64, error) {
	return c.store.SaveFinding(text, sourceURL, sourceTitle, tags)
}

// RecentFindings lists the newest findings for non-semantic fallbacks.
func (c *Cache) RecentFindings(limit int) ([]store.Finding, error) {
	return c.store.RecentFindings(limit)
}
