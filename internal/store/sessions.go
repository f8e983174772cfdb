package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// CreateSession inserts a new session and returns its id.
func (s *Store) CreateSession(modelAlias, name string) (int64, error) {
	res, err := s.db.Exec(
		`INSERT INTO sessions (name, model_alias, created_at) VALUES (?, ?, ?)`,
		name, modelAlias, time.Now().UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("create session: %w", err)
	}
	return res.LastInsertId()
}

// GetSessionByID returns the session, or nil when it does not exist.
func (s *Store) GetSessionByID(id int64) (*Session, error) {
	row := s.db.QueryRow(
		`SELECT id, COALESCE(name, ''), model_alias, COALESCE(compacted_summary, ''), compaction_at, created_at
		 FROM sessions WHERE id = ?`, id)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return sess, err
}

// GetSessionsByName returns every session with the given name, oldest
// first. Names are non-unique so callers must handle multiple matches.
func (s *Store) GetSessionsByName(name string) ([]*Session, error) {
	rows, err := s.db.Query(
		`SELECT id, COALESCE(name, ''), model_alias, COALESCE(compacted_summary, ''), compaction_at, created_at
		 FROM sessions WHERE name = ? ORDER BY id`, name)
	if err != nil {
		return nil, fmt.Errorf("query sessions by name: %w", err)
	}
	defer rows.Close()

	var out []*Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

type scannable interface {
	Scan(dest ...interface{}) error
}

func scanSession(row scannable) (*Session, error) {
	var sess Session
	var compactionAt sql.NullTime
	if err := row.Scan(&sess.ID, &sess.Name, &sess.ModelAlias, &sess.CompactedSummary, &compactionAt, &sess.CreatedAt); err != nil {
		return nil, err
	}
	if compactionAt.Valid {
		sess.CompactionAt = compactionAt.Time
	}
	return &sess, nil
}

// SaveSessionMessage appends one message to a session.
func (s *Store) SaveSessionMessage(sessionID int64, role, content, summary string, tokens int) error {
	_, err := s.db.Exec(
		`INSERT INTO session_messages (session_id, role, content, summary, tokens, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		sessionID, role, content, summary, tokens, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("save session message: %w", err)
	}
	return nil
}

// GetSessionMessages returns a session's messages in insertion order.
func (s *Store) GetSessionMessages(sessionID int64) ([]SessionMessage, error) {
	rows, err := s.db.Query(
		`SELECT id, session_id, role, content, summary, tokens, created_at
		 FROM session_messages WHERE session_id = ? ORDER BY id`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query session messages: %w", err)
	}
	defer rows.Close()

	var out []SessionMessage
	for rows.Next() {
		var m SessionMessage
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Role, &m.Content, &m.Summary, &m.Tokens, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// FirstMessagePreview returns the opening of a session's first message,
// used to disambiguate same-named sessions.
func (s *Store) FirstMessagePreview(sessionID int64, maxChars int) (string, error) {
	var content string
	err := s.db.QueryRow(
		`SELECT content FROM session_messages WHERE session_id = ? ORDER BY id LIMIT 1`,
		sessionID).Scan(&content)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("query first message: %w", err)
	}
	if maxChars > 0 && len(content) > maxChars {
		content = content[:maxChars]
	}
	return content, nil
}

// CompactSession replaces the session's compacted summary. Once set the
// summary is only ever replaced, never cleared.
func (s *Store) CompactSession(sessionID int64, summary string) error {
	_, err := s.db.Exec(
		`UPDATE sessions SET compacted_summary = ?, compaction_at = ? WHERE id = ?`,
		summary, time.Now().UTC(), sessionID,
	)
	if err != nil {
		return fmt.Errorf("compact session: %w", err)
	}
	return nil
}

// ListSessions returns all sessions, newest first, with message counts
// and first-message previews for display.
func (s *Store) ListSessions() ([]SessionInfo, error) {
	rows, err := s.db.Query(
		`SELECT s.id, COALESCE(s.name, ''), s.model_alias, COALESCE(s.compacted_summary, ''), s.compaction_at, s.created_at,
		        COUNT(m.id),
		        COALESCE((SELECT content FROM session_messages WHERE session_id = s.id ORDER BY id LIMIT 1), '')
		 FROM sessions s
		 LEFT JOIN session_messages m ON m.session_id = s.id
		 GROUP BY s.id
		 ORDER BY s.id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []SessionInfo
	for rows.Next() {
		var info SessionInfo
		var compactionAt sql.NullTime
		if err := rows.Scan(&info.ID, &info.Name, &info.ModelAlias, &info.CompactedSummary, &compactionAt, &info.CreatedAt, &info.MessageCount, &info.Preview); err != nil {
			return nil, err
		}
		if compactionAt.Valid {
			info.CompactionAt = compactionAt.Time
		}
		out = append(out, info)
	}
	return out, rows.Err()
}

// DeleteSessions removes the given sessions and, via cascade, their
// messages.
func (s *Store) DeleteSessions(ids []int64) error {
	for _, id := range ids {
		if _, err := s.db.Exec(`DELETE FROM sessions WHERE id = ?`, id); err != nil {
			return fmt.Errorf("delete session %d: %w", id, err)
		}
	}
	return nil
}

// DeleteAllSessions removes every session.
func (s *Store) DeleteAllSessions() error {
	if _, err := s.db.Exec(`DELETE FROM sessions`); err != nil {
		return fmt.Errorf("delete all sessions: %w", err)
	}
	return nil
}
