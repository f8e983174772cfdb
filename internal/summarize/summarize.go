package summarize

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/askyhq/asky/internal/config"
	"github.com/askyhq/asky/internal/htmlx"
	"github.com/askyhq/asky/internal/providers"
)

// pageSummaryMaxChars bounds background page summaries; they are read by
// the model through get_link_summaries, not shown to the user.
const pageSummaryMaxChars = 1000

// sessionSummaryMaxChars bounds whole-session compaction summaries.
const sessionSummaryMaxChars = 4000

// Service runs the cheap summarization model for page summaries,
// per-turn history summaries, and session compaction.
type Service struct {
	client  *providers.Client
	model   config.Model
	prompts config.Prompts
	tracker *providers.UsageTracker

	queryMaxChars  int
	answerMaxChars int
}

func NewService(client *providers.Client, model config.Model, prompts config.Prompts, general config.General, tracker *providers.UsageTracker) *Service {
	return &Service{
		client:         client,
		model:          model,
		prompts:        prompts,
		tracker:        tracker,
		queryMaxChars:  general.QuerySummaryMaxChars,
		answerMaxChars: general.AnswerSummaryMaxChars,
	}
}

// Content summarizes content with the given prompt template. The input
// is bounded by the summarization model's max_chars; the output by
// maxOutputChars.
func (s *Service) Content(ctx context.Context, content, template string, maxOutputChars int) (string, error) {
	return s.complete(ctx, content, template, maxOutputChars, s.tracker)
}

func (s *Service) complete(ctx context.Context, content, template string, maxOutputChars int, tracker *providers.UsageTracker) (string, error) {
	if strings.TrimSpace(content) == "" {
		return "", nil
	}
	if s.model.MaxChars > 0 && len(content) > s.model.MaxChars {
		content = content[:s.model.MaxChars]
	}
	if tracker == nil {
		tracker = s.tracker
	}

	prompt := expandTemplate(template, content, maxOutputChars)
	ep, err := s.endpoint()
	if err != nil {
		return "", err
	}

	msg, err := s.client.Complete(ctx, ep, []providers.Message{
		{Role: "user", Content: prompt},
	}, nil, tracker)
	if err != nil {
		return "", fmt.Errorf("summarization call: %w", err)
	}

	out := strings.TrimSpace(htmlx.StripThinkTags(msg.Content))
	if maxOutputChars > 0 && len(out) > maxOutputChars {
		out = out[:maxOutputChars]
	}
	return out, nil
}

// PageSummary produces the background summary stored alongside cached
// pages. It satisfies the research layer's SummarizeFunc.
func (s *Service) PageSummary(ctx context.Context, content string) (string, error) {
	return s.Content(ctx, content, s.prompts.SummarizeAnswer, pageSummaryMaxChars)
}

// PageSummaryInto is PageSummary for tool dispatch: usage is recorded
// into the per-dispatch tracker from the tool context (nil falls back
// to the service's own).
func (s *Service) PageSummaryInto(ctx context.Context, content string, tracker *providers.UsageTracker) (string, error) {
	return s.complete(ctx, content, s.prompts.SummarizeAnswer, pageSummaryMaxChars, tracker)
}

// Session compacts a whole conversation transcript into one summary.
func (s *Service) Session(ctx context.Context, transcript string) (string, error) {
	return s.Content(ctx, transcript, s.prompts.SummarizeSession, sessionSummaryMaxChars)
}

// TurnSummaries produces the short query and answer summaries stored
// with each history row. Summaries are cosmetic, so failures degrade to
// plain truncation instead of failing the turn.
func (s *Service) TurnSummaries(ctx context.Context, query, answer string) (string, string) {
	qs, err := s.Content(ctx, query, s.prompts.SummarizeQuery, s.queryMaxChars)
	if err != nil || qs == "" {
		if err != nil {
			slog.Warn("query summarization failed, truncating", "error", err)
		}
		qs = truncate(query, s.queryMaxChars)
	}
	as, err := s.Content(ctx, answer, s.prompts.SummarizeAnswer, s.answerMaxChars)
	if err != nil || as == "" {
		if err != nil {
			slog.Warn("answer summarization failed, truncating", "error", err)
		}
		as = truncate(answer, s.answerMaxChars)
	}
	return qs, as
}

func (s *Service) endpoint() (providers.Endpoint, error) {
	key, err := s.model.ResolveAPIKey()
	if err != nil {
		return providers.Endpoint{}, err
	}
	return providers.Endpoint{
		BaseURL: s.model.BaseURL,
		APIKey:  key,
		Model:   s.model.ID,
		Alias:   s.model.Alias,
	}, nil
}

// expandTemplate substitutes {max_chars} and {content}. Templates
// without a {content} placeholder get the content appended.
func expandTemplate(template, content string, maxOutputChars int) string {
	out := strings.ReplaceAll(template, "{max_chars}", strconv.Itoa(maxOutputChars))
	if strings.Contains(out, "{content}") {
		return strings.ReplaceAll(out, "{content}", content)
	}
	return out + "\n\n" + content
}

func truncate(s string, max int) string {
	if max > 0 && len(s) > max {
		return s[:max] + "..."
	}
	return s
}
