package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/askyhq/asky/internal/agent"
	"github.com/askyhq/asky/internal/config"
	"github.com/askyhq/asky/internal/providers"
	"github.com/askyhq/asky/internal/push"
	"github.com/askyhq/asky/internal/research"
	"github.com/askyhq/asky/internal/sessions"
	"github.com/askyhq/asky/internal/store"
	"github.com/askyhq/asky/internal/summarize"
	"github.com/askyhq/asky/internal/tools"
	"github.com/askyhq/asky/internal/tracing"
)

const drainTimeout = 30 * time.Second

func runQuery(ctx context.Context, query string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	query = expandUserPrompt(cfg.Prompts.User, query)

	shutdown, err := tracing.Setup(ctx, cfg.Tracing)
	if err != nil {
		slog.Warn("tracing setup failed", "error", err)
	} else {
		defer shutdown(context.Background())
	}

	st, err := store.Open(cfg.ResolveDBPath())
	if err != nil {
		return err
	}
	defer st.Close()
	if err := st.AbandonPendingSummaries(); err != nil {
		slog.Warn("could not reset stale summary jobs", "error", err)
	}

	alias := flagModel
	if alias == "" {
		alias = cfg.General.DefaultModel
	}
	model, err := cfg.Model(alias)
	if err != nil {
		return err
	}
	apiKey, err := model.ResolveAPIKey()
	if err != nil {
		return err
	}

	requestTimeout := time.Duration(cfg.API.RequestTimeoutSecs) * time.Second
	fetchTimeout := time.Duration(cfg.API.FetchTimeoutSecs) * time.Second

	client := providers.NewClient(requestTimeout, cfg.API.UserAgent)
	tracker := providers.NewUsageTracker()

	sumModel, err := cfg.SummarizationModelConfig()
	if err != nil {
		return err
	}
	summarizer := summarize.NewService(client, sumModel, cfg.Prompts, cfg.General, tracker)

	emb := research.NewEmbeddingClient(
		cfg.Research.EmbeddingURL, cfg.Research.EmbeddingModel,
		time.Duration(cfg.Research.EmbeddingTimeoutSecs)*time.Second,
		cfg.Research.EmbeddingBatchSize,
	)
	vectors := research.NewVectorIndex(st, emb)
	cache := research.NewCache(st, summarizer.PageSummary, cfg.Research.SummaryWorkers, cfg.Research.SummaryCallsPerMin)
	fetcher := research.NewFetcher(fetchTimeout, cfg.API.UserAgent)
	adapters := research.NewAdapterSet(cfg.Research.SourceAdapters, customToolRunner(cfg.Tools.Custom))
	researchSvc := research.NewService(cfg.Research, cache, vectors, fetcher, adapters)
	defer researchSvc.Drain(drainTimeout)

	registry := tools.NewRegistry()
	tools.RegisterBuiltins(registry, tools.NewBuiltins(
		cfg.API.SearxURL, cfg.API.UserAgent, fetchTimeout, model.MaxChars, summarizer.PageSummaryInto,
	))
	tools.RegisterResearchTools(registry, researchSvc)
	tools.RegisterCustomTools(registry, cfg.Tools.Custom)
	tools.RegisterPushTools(registry, push.New(cfg.PushData, requestTimeout))
	slog.Debug("tools registered", "tools", strings.Join(registry.Names(), ", "))

	mgr := sessions.NewManager(st, model, cfg.General, summarizer.Session)
	sess, err := mgr.StartOrResume(flagSession, query)
	if err != nil {
		var dup *sessions.DuplicateSessionError
		if !errors.As(err, &dup) {
			return err
		}
		picked, ok := pickSession(dup)
		if !ok {
			return err
		}
		if sess, err = mgr.StartOrResume(strconv.FormatInt(picked, 10), query); err != nil {
			return err
		}
	}
	if err := sessions.SetShellSession(sess.ID); err != nil {
		slog.Debug("could not write session lock", "error", err)
	}
	slog.Info("session active", "id", sess.ID, "name", sess.Name)

	history, err := mgr.BuildContextMessages()
	if err != nil {
		return err
	}
	messages := make([]providers.Message, 0, len(history)+2)
	messages = append(messages, providers.Message{
		Role:    "system",
		Content: agent.ConstructSystemPrompt(cfg.Prompts, cfg.General.MaxTurns, flagDeepResearch, flagDeepDive, flagForceSearch),
	})
	messages = append(messages, history...)
	messages = append(messages, providers.Message{Role: "user", Content: query})

	engine := agent.New(agent.Config{
		Client:      client,
		Endpoint:    providers.Endpoint{BaseURL: model.BaseURL, APIKey: apiKey, Model: model.ID, Alias: model.Alias},
		Registry:    registry,
		ContextSize: model.ContextSize,
		MaxTurns:    cfg.General.MaxTurns,
		ToolContext: tools.ToolContext{Summarize: flagSummarize, Tracker: tracker, Query: query, Model: model.ID},
		Tracker:     tracker,
	})

	answer, err := engine.Run(ctx, messages)
	if err != nil {
		return err
	}
	if answer == "" {
		fmt.Fprintln(os.Stderr, "No final answer produced (turn budget exhausted).")
		return nil
	}
	fmt.Println(strings.TrimRight(renderAnswer(answer, isTerminal(os.Stdout)), "\n"))

	if flagOpenBrowser {
		if path, rerr := agent.SaveHTMLReport(answer, sess.Name, os.TempDir()); rerr != nil {
			slog.Warn("could not write report", "error", rerr)
		} else {
			fmt.Fprintf(os.Stderr, "Report: %s\n", path)
		}
	}

	querySummary, answerSummary := summarizer.TurnSummaries(ctx, query, answer)
	if err := mgr.SaveTurn(query, answer, querySummary, answerSummary); err != nil {
		slog.Warn("could not save session turn", "error", err)
	}
	if err := st.SaveInteraction(query, answer, model.Alias, querySummary, answerSummary); err != nil {
		slog.Warn("could not save history entry", "error", err)
	}
	if compacted, cerr := mgr.CheckAndCompact(ctx); cerr != nil {
		slog.Warn("session compaction failed", "error", cerr)
	} else if compacted {
		slog.Info("session compacted", "session", sess.ID)
	}

	for usedAlias, tokens := range tracker.Snapshot() {
		slog.Info("token usage", "model", usedAlias, "tokens", tokens)
	}
	return nil
}

// customToolRunner lets source adapters invoke configured shell tools
// without a dependency from research on the tools package.
func customToolRunner(custom map[string]config.CustomTool) research.CustomToolFunc {
	return func(ctx context.Context, name string, args map[string]interface{}) map[string]interface{} {
		tool, ok := custom[name]
		if !ok {
			return map[string]interface{}{"error": fmt.Sprintf("Unknown tool: %s", name)}
		}
		return tools.RunCustomTool(ctx, tool, args)
	}
}

// expandUserPrompt rewrites "/alias rest of query" using the [prompts.user]
// shortcut table. A "{query}" placeholder in the template takes the rest;
// otherwise the rest is appended.
func expandUserPrompt(shortcuts map[string]string, query string) string {
	if !strings.HasPrefix(query, "/") {
		return query
	}
	name, rest, _ := strings.Cut(query[1:], " ")
	template, ok := shortcuts[name]
	if !ok {
		return query
	}
	if strings.Contains(template, "{query}") {
		return strings.ReplaceAll(template, "{query}", rest)
	}
	if rest == "" {
		return template
	}
	return template + " " + rest
}
