package store

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// SaveInteraction appends one completed query/answer pair to the
// history log.
func (s *Store) SaveInteraction(query, answer, model, querySummary, answerSummary string) error {
	_, err := s.db.Exec(
		`INSERT INTO history (timestamp, query, query_summary, answer_summary, answer, model)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		time.Now().UTC(), query, querySummary, answerSummary, answer, model,
	)
	if err != nil {
		return fmt.Errorf("save interaction: %w", err)
	}
	return nil
}

// GetHistory returns the most recent interactions, newest first.
func (s *Store) GetHistory(limit int) ([]Interaction, error) {
	rows, err := s.db.Query(
		`SELECT id, timestamp, query, query_summary, answer_summary, answer, model
		 FROM history ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var out []Interaction
	for rows.Next() {
		var it Interaction
		if err := rows.Scan(&it.ID, &it.Timestamp, &it.Query, &it.QuerySummary, &it.AnswerSummary, &it.Answer, &it.Model); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

// DeleteAllInteractions clears the history log.
func (s *Store) DeleteAllInteractions() error {
	if _, err := s.db.Exec(`DELETE FROM history`); err != nil {
		return fmt.Errorf("delete history: %w", err)
	}
	return nil
}

// DeleteInteractions removes entries named by spec: a single id ("7"),
// a comma list ("1,3,9"), or a range ("3-7", either direction).
func (s *Store) DeleteInteractions(spec string) error {
	ids, err := ParseIDSpec(spec)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if _, err := s.db.Exec(`DELETE FROM history WHERE id = ?`, id); err != nil {
			return fmt.Errorf("delete interaction %d: %w", id, err)
		}
	}
	return nil
}

// ParseIDSpec expands an id spec into the ids it names.
func ParseIDSpec(spec string) ([]int64, error) {
	spec = strings.TrimSpace(spec)
	switch {
	case strings.Contains(spec, "-"):
		parts := strings.SplitN(spec, "-", 2)
		lo, err1 := strconv.ParseInt(strings.TrimSpace(parts[0]), 10, 64)
		hi, err2 := strconv.ParseInt(strings.TrimSpace(parts[1]), 10, 64)
		if err1 != nil || err2 != nil {
			return nil, fmt.Errorf("invalid range format: %q", spec)
		}
		if lo > hi {
			lo, hi = hi, lo
		}
		var ids []int64
		for id := lo; id <= hi; id++ {
			ids = append(ids, id)
		}
		return ids, nil
	case strings.Contains(spec, ","):
		var ids []int64
		for _, p := range strings.Split(spec, ",") {
			id, err := strconv.ParseInt(strings.TrimSpace(p), 10, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid list format: %q", spec)
			}
			ids = append(ids, id)
		}
		return ids, nil
	default:
		id, err := strconv.ParseInt(spec, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid ID format: %q", spec)
		}
		return []int64{id}, nil
	}
}
