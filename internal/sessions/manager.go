package sessions

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/askyhq/asky/internal/config"
	"github.com/askyhq/asky/internal/providers"
	"github.com/askyhq/asky/internal/store"
)

const duplicatePreviewChars = 50

// defaultContextSize is assumed when a model omits context_size.
const defaultContextSize = 32000

// SummarizeSessionFunc condenses a whole transcript for the llm_summary
// compaction strategy.
type SummarizeSessionFunc func(ctx context.Context, transcript string) (string, error)

// SessionChoice is one candidate when a name is ambiguous.
type SessionChoice struct {
	ID      int64
	Name    string
	Preview string
}

// DuplicateSessionError reports that a session name matches several
// sessions and the user must pick one.
type DuplicateSessionError struct {
	Name     string
	Sessions []SessionChoice
}

func (e *DuplicateSessionError) Error() string {
	return fmt.Sprintf("multiple sessions named %q", e.Name)
}

// Manager orchestrates persistent conversation sessions: resolving
// names and ids to sessions, shell stickiness, turn persistence, and
// threshold-triggered compaction. Sessions never end; a shell merely
// attaches and detaches.
type Manager struct {
	store            *store.Store
	modelAlias       string
	contextSize      int
	threshold        int
	strategy         string
	nameMaxWords     int
	summarizeSession SummarizeSessionFunc

	current *store.Session
}

func NewManager(st *store.Store, model config.Model, general config.General, summarizeSession SummarizeSessionFunc) *Manager {
	contextSize := model.ContextSize
	if contextSize <= 0 {
		contextSize = defaultContextSize
	}
	nameMax := general.SessionNameMaxTokens
	if nameMax <= 0 {
		nameMax = 2
	}
	return &Manager{
		store:            st,
		modelAlias:       model.Alias,
		contextSize:      contextSize,
		threshold:        general.SessionCompactionThreshold,
		strategy:         general.SessionCompactionStrategy,
		nameMaxWords:     nameMax,
		summarizeSession: summarizeSession,
	}
}

// Current returns the active session, nil before StartOrResume.
func (m *Manager) Current() *store.Session {
	return m.current
}

// StartOrResume resolves sessionName (or the shell lock, or a fresh
// auto-named session) to the active session.
//
// Resolution order: numeric id; legacy "S<id>"; exact name match
// (ambiguity raises DuplicateSessionError, no match creates the name);
// shell lock file; new session named from the query's key words.
func (m *Manager) StartOrResume(sessionName, query string) (*store.Session, error) {
	if sessionName != "" {
		if id, err := strconv.ParseInt(sessionName, 10, 64); err == nil && id >= 0 {
			session, err := m.store.GetSessionByID(id)
			if err != nil {
				return nil, err
			}
			if session != nil {
				m.current = session
				return session, nil
			}
			// Unknown id falls through and becomes a name.
		}

		if rest, ok := strings.CutPrefix(strings.ToLower(sessionName), "s"); ok && rest != "" {
			if id, err := strconv.ParseInt(rest, 10, 64); err == nil {
				session, err := m.store.GetSessionByID(id)
				if err != nil {
					return nil, err
				}
				if session != nil {
					m.current = session
					return session, nil
				}
			}
		}

		matches, err := m.store.GetSessionsByName(sessionName)
		if err != nil {
			return nil, err
		}
		switch len(matches) {
		case 1:
			m.current = matches[0]
			return m.current, nil
		case 0:
			return m.create(sessionName)
		default:
			dup := &DuplicateSessionError{Name: sessionName}
			for _, s := range matches {
				preview, _ := m.store.FirstMessagePreview(s.ID, duplicatePreviewChars)
				dup.Sessions = append(dup.Sessions, SessionChoice{ID: s.ID, Name: s.Name, Preview: preview})
			}
			return nil, dup
		}
	}

	if id, ok := ShellSessionID(); ok {
		session, err := m.store.GetSessionByID(id)
		if err != nil {
			return nil, err
		}
		if session != nil {
			m.current = session
			return session, nil
		}
		// Lock file points at a deleted session.
		ClearShellSession()
	}

	autoName := ""
	if query != "" {
		autoName = GenerateSessionName(query, m.nameMaxWords)
	}
	return m.create(autoName)
}

func (m *Manager) create(name string) (*store.Session, error) {
	id, err := m.store.CreateSession(m.modelAlias, name)
	if err != nil {
		return nil, err
	}
	session, err := m.store.GetSessionByID(id)
	if err != nil {
		return nil, err
	}
	m.current = session
	return session, nil
}

// BuildContextMessages renders the session's history for the chat
// payload: the compacted summary (as a user/assistant exchange) first,
// then every stored message.
func (m *Manager) BuildContextMessages() ([]providers.Message, error) {
	if m.current == nil {
		return nil, nil
	}

	var messages []providers.Message
	if m.current.CompactedSummary != "" {
		messages = append(messages,
			providers.Message{
				Role:    "user",
				Content: "Previous conversation summary:\n" + m.current.CompactedSummary,
			},
			providers.Message{
				Role:    "assistant",
				Content: "I understand the context. How can I help further?",
			},
		)
	}

	stored, err := m.store.GetSessionMessages(m.current.ID)
	if err != nil {
		return nil, err
	}
	for _, msg := range stored {
		messages = append(messages, providers.Message{Role: msg.Role, Content: msg.Content})
	}
	return messages, nil
}

// SaveTurn persists one query/answer exchange with its summaries.
func (m *Manager) SaveTurn(query, answer, querySummary, answerSummary string) error {
	if m.current == nil {
		return nil
	}
	if err := m.store.SaveSessionMessage(m.current.ID, "user", query, querySummary, providers.EstimateText(query)); err != nil {
		return err
	}
	return m.store.SaveSessionMessage(m.current.ID, "assistant", answer, answerSummary, providers.EstimateText(answer))
}

// CheckAndCompact compacts the session when its rendered context
// reaches the configured share of the model's context window. Returns
// whether compaction ran.
func (m *Manager) CheckAndCompact(ctx context.Context) (bool, error) {
	if m.current == nil {
		return false, nil
	}

	messages, err := m.BuildContextMessages()
	if err != nil {
		return false, err
	}
	current := providers.EstimateTokens(messages)
	threshold := m.contextSize * m.threshold / 100

	if current < threshold {
		return false, nil
	}
	slog.Info("session reached compaction threshold",
		"session", m.current.ID, "tokens", current, "threshold", threshold)

	if m.strategy == "llm_summary" {
		err = m.compactWithLLM(ctx)
	} else {
		err = m.compactWithSummaries()
	}
	if err != nil {
		return false, err
	}

	// Refresh so the new summary is visible to the caller.
	session, err := m.store.GetSessionByID(m.current.ID)
	if err == nil && session != nil {
		m.current = session
	}
	return true, nil
}

// compactWithSummaries concatenates the per-message summaries saved at
// turn time, falling back to truncated content.
func (m *Manager) compactWithSummaries() error {
	msgs, err := m.store.GetSessionMessages(m.current.ID)
	if err != nil {
		return err
	}
	slog.Info("compacting from message summaries", "session", m.current.ID, "messages", len(msgs))

	parts := make([]string, 0, len(msgs))
	for _, msg := range msgs {
		if msg.Summary != "" {
			parts = append(parts, capitalize(msg.Role)+": "+msg.Summary)
		} else {
			parts = append(parts, capitalize(msg.Role)+": "+head(msg.Content, 100)+"...")
		}
	}
	return m.store.CompactSession(m.current.ID, strings.Join(parts, "\n"))
}

// compactWithLLM asks the summarization model to condense the whole
// transcript.
func (m *Manager) compactWithLLM(ctx context.Context) error {
	if m.summarizeSession == nil {
		return m.compactWithSummaries()
	}
	msgs, err := m.store.GetSessionMessages(m.current.ID)
	if err != nil {
		return err
	}

	parts := make([]string, 0, len(msgs))
	for _, msg := range msgs {
		parts = append(parts, capitalize(msg.Role)+": "+msg.Content)
	}

	summary, err := m.summarizeSession(ctx, strings.Join(parts, "\n\n"))
	if err != nil {
		return fmt.Errorf("session summarization: %w", err)
	}
	return m.store.CompactSession(m.current.ID, summary)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func head(s string, max int) string {
	if len(s) > max {
		return s[:max]
	}
	return s
}
