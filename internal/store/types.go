package store

import (
	"time"

	"github.com/askyhq/asky/internal/htmlx"
)

// Session is a persistent conversation thread. Names are advisory and
// non-unique; the id is the stable handle.
type Session struct {
	ID               int64
	Name             string
	ModelAlias       string
	CompactedSummary string
	CompactionAt     time.Time // zero when never compacted
	CreatedAt        time.Time
}

// SessionMessage is one stored message, insertion-ordered within its
// session.
type SessionMessage struct {
	ID        int64
	SessionID int64
	Role      string
	Content   string
	Summary   string
	Tokens    int
	CreatedAt time.Time
}

// SessionInfo is a listing row: the session plus derived display data.
type SessionInfo struct {
	Session
	MessageCount int
	Preview      string
}

// Interaction is one entry in the query/answer history log, distinct
// from session messages.
type Interaction struct {
	ID            int64
	Timestamp     time.Time
	Query         string
	QuerySummary  string
	AnswerSummary string
	Answer        string
	Model         string
}

// Summary status values for url_cache rows. Transitions only ever move
// pending -> processing -> completed|failed.
const (
	SummaryPending    = "pending"
	SummaryProcessing = "processing"
	SummaryCompleted  = "completed"
	SummaryFailed     = "failed"
)

// CachedPage is one url_cache row. URL is the canonical identity; the
// cache wins until evicted.
type CachedPage struct {
	ID            int64
	URL           string
	Title         string
	Content       string
	Links         []htmlx.Link
	Summary       string
	SummaryStatus string
	CreatedAt     time.Time
}

// Finding is a durable curated fact with optional source attribution.
type Finding struct {
	ID          int64
	Text        string
	SourceURL   string
	SourceTitle string
	Tags        []string
	CreatedAt   time.Time
}

// ChunkEmbedding is one vector over a slice of cached page content.
// Vector is packed float32 little-endian.
type ChunkEmbedding struct {
	CacheID int64
	Index   int
	Text    string
	Vector  []byte
}

// LinkEmbedding is one vector over a link label from a cached page.
type LinkEmbedding struct {
	CacheID int64
	Index   int
	Text    string
	Href    string
	Vector  []byte
}

// FindingEmbedding is the vector over a finding's text.
type FindingEmbedding struct {
	FindingID int64
	Vector    []byte
}
