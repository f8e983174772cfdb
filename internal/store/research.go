package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/askyhq/asky/internal/htmlx"
)

// CacheURL inserts a fetched page, or leaves the existing row alone
// when the url is already cached. Returns the row id and whether the
// insert happened (false means the cache already had the url).
func (s *Store) CacheURL(url, title, content string, links []htmlx.Link) (int64, bool, error) {
	if existing, err := s.GetCachedURL(url); err != nil {
		return 0, false, err
	} else if existing != nil {
		return existing.ID, false, nil
	}

	linksJSON, err := json.Marshal(links)
	if err != nil {
		return 0, false, fmt.Errorf("marshal links: %w", err)
	}
	res, err := s.db.Exec(
		`INSERT INTO url_cache (url, title, content, links, summary_status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(url) DO NOTHING`,
		url, title, content, string(linksJSON), SummaryPending, time.Now().UTC(),
	)
	if err != nil {
		return 0, false, fmt.Errorf("cache url: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// Raced with another writer; read the winner.
		existing, err := s.GetCachedURL(url)
		if err != nil || existing == nil {
			return 0, false, fmt.Errorf("cache url %s: row vanished after conflict", url)
		}
		return existing.ID, false, nil
	}
	id, err := res.LastInsertId()
	return id, true, err
}

// GetCachedURL returns the cached page for url, or nil on a miss.
func (s *Store) GetCachedURL(url string) (*CachedPage, error) {
	row := s.db.QueryRow(
		`SELECT id, url, title, content, links, COALESCE(summary, ''), summary_status, created_at
		 FROM url_cache WHERE url = ?`, url)
	return scanCachedPage(row)
}

// GetCachedPageByID returns the cached page with the given row id.
func (s *Store) GetCachedPageByID(id int64) (*CachedPage, error) {
	row := s.db.QueryRow(
		`SELECT id, url, title, content, links, COALESCE(summary, ''), summary_status, created_at
		 FROM url_cache WHERE id = ?`, id)
	return scanCachedPage(row)
}

func scanCachedPage(row *sql.Row) (*CachedPage, error) {
	var p CachedPage
	var linksJSON string
	err := row.Scan(&p.ID, &p.URL, &p.Title, &p.Content, &linksJSON, &p.Summary, &p.SummaryStatus, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan cached page: %w", err)
	}
	if err := json.Unmarshal([]byte(linksJSON), &p.Links); err != nil {
		return nil, fmt.Errorf("decode cached links: %w", err)
	}
	return &p, nil
}

// ClaimSummary moves a row from pending to processing. Returns false
// when another worker already claimed it (or it is past pending), so
// each row is summarized at most once.
func (s *Store) ClaimSummary(cacheID int64) (bool, error) {
	res, err := s.db.Exec(
		`UPDATE url_cache SET summary_status = ? WHERE id = ? AND summary_status = ?`,
		SummaryProcessing, cacheID, SummaryPending,
	)
	if err != nil {
		return false, fmt.Errorf("claim summary: %w", err)
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

// CompleteSummary stores the summary; a no-op unless the row is still
// processing, preserving the status transition order.
func (s *Store) CompleteSummary(cacheID int64, summary string) error {
	_, err := s.db.Exec(
		`UPDATE url_cache SET summary = ?, summary_status = ? WHERE id = ? AND summary_status = ?`,
		summary, SummaryCompleted, cacheID, SummaryProcessing,
	)
	if err != nil {
		return fmt.Errorf("complete summary: %w", err)
	}
	return nil
}

// FailSummary marks a processing row failed.
func (s *Store) FailSummary(cacheID int64) error {
	_, err := s.db.Exec(
		`UPDATE url_cache SET summary_status = ? WHERE id = ? AND summary_status = ?`,
		SummaryFailed, cacheID, SummaryProcessing,
	)
	if err != nil {
		return fmt.Errorf("fail summary: %w", err)
	}
	return nil
}

// AbandonPendingSummaries resets processing rows back to pending, for
// shutdown paths where workers were cut off mid-flight.
func (s *Store) AbandonPendingSummaries() error {
	_, err := s.db.Exec(
		`UPDATE url_cache SET summary_status = ? WHERE summary_status = ?`,
		SummaryPending, SummaryProcessing,
	)
	if err != nil {
		return fmt.Errorf("abandon pending summaries: %w", err)
	}
	return nil
}

// SaveFinding persists a curated fact and returns its id.
func (s *Store) SaveFinding(text, sourceURL, sourceTitle string, tags []string) (int64, error) {
	if tags == nil {
		tags = []string{}
	}
	tagsJSON, err := json.Marshal(tags)
	if err != nil {
		return 0, fmt.Errorf("marshal tags: %w", err)
	}
	res, err := s.db.Exec(
		`INSERT INTO findings (finding_text, source_url, source_title, tags, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		text, sourceURL, sourceTitle, string(tagsJSON), time.Now().UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("save finding: %w", err)
	}
	return res.LastInsertId()
}

// GetFinding returns one finding by id, or nil.
func (s *Store) GetFinding(id int64) (*Finding, error) {
	rows, err := s.db.Query(
		`SELECT id, finding_text, source_url, source_title, tags, created_at
		 FROM findings WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("query finding: %w", err)
	}
	defer rows.Close()
	findings, err := scanFindings(rows)
	if err != nil || len(findings) == 0 {
		return nil, err
	}
	return &findings[0], nil
}

// RecentFindings returns the newest findings, most recent first.
func (s *Store) RecentFindings(limit int) ([]Finding, error) {
	rows, err := s.db.Query(
		`SELECT id, finding_text, source_url, source_title, tags, created_at
		 FROM findings ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent findings: %w", err)
	}
	defer rows.Close()
	return scanFindings(rows)
}

func scanFindings(rows *sql.Rows) ([]Finding, error) {
	var out []Finding
	for rows.Next() {
		var f Finding
		var tagsJSON string
		if err := rows.Scan(&f.ID, &f.Text, &f.SourceURL, &f.SourceTitle, &tagsJSON, &f.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(tagsJSON), &f.Tags); err != nil {
			return nil, fmt.Errorf("decode finding tags: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// StoreChunkEmbeddings replaces the chunk vectors for a cache row.
func (s *Store) StoreChunkEmbeddings(cacheID int64, chunks []ChunkEmbedding) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin chunk embeddings: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM chunk_embeddings WHERE cache_id = ?`, cacheID); err != nil {
		return fmt.Errorf("clear chunk embeddings: %w", err)
	}
	for _, c := range chunks {
		if _, err := tx.Exec(
			`INSERT INTO chunk_embeddings (cache_id, chunk_index, chunk_text, embedding) VALUES (?, ?, ?, ?)`,
			cacheID, c.Index, c.Text, c.Vector,
		); err != nil {
			return fmt.Errorf("insert chunk embedding: %w", err)
		}
	}
	return tx.Commit()
}

// GetChunkEmbeddings returns a cache row's chunk vectors in chunk order.
func (s *Store) GetChunkEmbeddings(cacheID int64) ([]ChunkEmbedding, error) {
	rows, err := s.db.Query(
		`SELECT cache_id, chunk_index, chunk_text, embedding
		 FROM chunk_embeddings WHERE cache_id = ? ORDER BY chunk_index`, cacheID)
	if err != nil {
		return nil, fmt.Errorf("query chunk embeddings: %w", err)
	}
	defer rows.Close()

	var out []ChunkEmbedding
	for rows.Next() {
		var c ChunkEmbedding
		if err := rows.Scan(&c.CacheID, &c.Index, &c.Text, &c.Vector); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// HasChunkEmbeddings reports whether a cache row already has chunk
// vectors, so callers can skip recomputation.
func (s *Store) HasChunkEmbeddings(cacheID int64) (bool, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM chunk_embeddings WHERE cache_id = ?`, cacheID).Scan(&n)
	return n > 0, err
}

// StoreLinkEmbeddings replaces the link vectors for a cache row.
func (s *Store) StoreLinkEmbeddings(cacheID int64, links []LinkEmbedding) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin link embeddings: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM link_embeddings WHERE cache_id = ?`, cacheID); err != nil {
		return fmt.Errorf("clear link embeddings: %w", err)
	}
	for _, l := range links {
		if _, err := tx.Exec(
			`INSERT INTO link_embeddings (cache_id, link_index, link_text, link_href, embedding) VALUES (?, ?, ?, ?, ?)`,
			cacheID, l.Index, l.Text, l.Href, l.Vector,
		); err != nil {
			return fmt.Errorf("insert link embedding: %w", err)
		}
	}
	return tx.Commit()
}

// GetLinkEmbeddings returns a cache row's link vectors in link order.
func (s *Store) GetLinkEmbeddings(cacheID int64) ([]LinkEmbedding, error) {
	rows, err := s.db.Query(
		`SELECT cache_id, link_index, link_text, link_href, embedding
		 FROM link_embeddings WHERE cache_id = ? ORDER BY link_index`, cacheID)
	if err != nil {
		return nil, fmt.Errorf("query link embeddings: %w", err)
	}
	defer rows.Close()

	var out []LinkEmbedding
	for rows.Next() {
		var l LinkEmbedding
		if err := rows.Scan(&l.CacheID, &l.Index, &l.Text, &l.Href, &l.Vector); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// HasLinkEmbeddings reports whether a cache row already has link
// vectors.
func (s *Store) HasLinkEmbeddings(cacheID int64) (bool, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM link_embeddings WHERE cache_id = ?`, cacheID).Scan(&n)
	return n > 0, err
}

// StoreFindingEmbedding stores (or replaces) the vector for a finding.
func (s *Store) StoreFindingEmbedding(findingID int64, vector []byte) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin finding embedding: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM finding_embeddings WHERE finding_id = ?`, findingID); err != nil {
		return fmt.Errorf("clear finding embedding: %w", err)
	}
	if _, err := tx.Exec(
		`INSERT INTO finding_embeddings (finding_id, embedding) VALUES (?, ?)`,
		findingID, vector,
	); err != nil {
		return fmt.Errorf("insert finding embedding: %w", err)
	}
	return tx.Commit()
}

// GetFindingEmbeddings returns every stored finding vector.
func (s *Store) GetFindingEmbeddings() ([]FindingEmbedding, error) {
	rows, err := s.db.Query(`SELECT finding_id, embedding FROM finding_embeddings ORDER BY finding_id`)
	if err != nil {
		return nil, fmt.Errorf("query finding embeddings: %w", err)
	}
	defer rows.Close()

	var out []FindingEmbedding
	for rows.Next() {
		var f FindingEmbedding
		if err := rows.Scan(&f.FindingID, &f.Vector); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}
