package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/askyhq/asky/internal/htmlx"
	"github.com/askyhq/asky/internal/providers"
	"github.com/askyhq/asky/internal/tools"
)

// defaultContextSize is assumed when a model omits context_size.
const defaultContextSize = 32000

// Engine runs the bounded multi-turn conversation loop: model call,
// tool dispatch, repeat until the model answers without tool calls or
// the turn budget runs out.
type Engine struct {
	client      *providers.Client
	endpoint    providers.Endpoint
	registry    *tools.Registry
	contextSize int
	maxTurns    int
	toolCtx     tools.ToolContext
	tracker     *providers.UsageTracker
}

// Config assembles an Engine.
type Config struct {
	Client      *providers.Client
	Endpoint    providers.Endpoint
	Registry    *tools.Registry
	ContextSize int
	MaxTurns    int
	ToolContext tools.ToolContext
	Tracker     *providers.UsageTracker
}

func New(cfg Config) *Engine {
	contextSize := cfg.ContextSize
	if contextSize <= 0 {
		contextSize = defaultContextSize
	}
	maxTurns := cfg.MaxTurns
	if maxTurns <= 0 {
		maxTurns = 20
	}
	return &Engine{
		client:      cfg.Client,
		endpoint:    cfg.Endpoint,
		registry:    cfg.Registry,
		contextSize: contextSize,
		maxTurns:    maxTurns,
		toolCtx:     cfg.ToolContext,
		tracker:     cfg.Tracker,
	}
}

// Run drives the loop over messages until a final answer. The returned
// answer has think tags stripped; on a model error the answer
// accumulated so far (usually empty) comes back with the error.
//
// The first message's content, when it is the system prompt, is
// recomputed every turn from its original text plus a status update so
// the model can pace its context and turn usage.
func (e *Engine) Run(ctx context.Context, messages []providers.Message) (string, error) {
	runID := uuid.NewString()
	tracer := otel.Tracer("asky/agent")
	ctx, runSpan := tracer.Start(ctx, "conversation.run", trace.WithAttributes(
		attribute.String("run.id", runID),
		attribute.String("llm.model", e.endpoint.Model),
		attribute.Int("run.max_turns", e.maxTurns),
	))
	defer runSpan.End()

	start := time.Now()
	defer func() {
		slog.Info("query completed", "run", runID, "duration", time.Since(start).Round(10*time.Millisecond))
	}()

	originalSystem := ""
	if len(messages) > 0 && messages[0].Role == "system" {
		originalSystem = messages[0].Content
	}

	finalAnswer := ""
	for turn := 1; turn <= e.maxTurns; turn++ {
		slog.Info("starting turn", "run", runID, "turn", turn, "max_turns", e.maxTurns)

		totalTokens := providers.EstimateTokens(messages)
		turnsLeft := e.maxTurns - turn + 1
		status := fmt.Sprintf(
			"\n\n[SYSTEM UPDATE]:\n- Context Used: %.2f%%- Turns Remaining: %d (out of %d)\nPlease manage your context usage efficiently.",
			float64(totalTokens)/float64(e.contextSize)*100, turnsLeft, e.maxTurns,
		)
		if originalSystem != "" {
			messages[0].Content = originalSystem + status
		}

		turnCtx, turnSpan := tracer.Start(ctx, "conversation.turn", trace.WithAttributes(
			attribute.Int("turn", turn),
			attribute.Int("context.tokens", totalTokens),
		))

		msg, err := e.client.Complete(turnCtx, e.endpoint, messages, e.registry.Schemas(), e.tracker)
		if err != nil {
			turnSpan.RecordError(err)
			turnSpan.SetStatus(codes.Error, err.Error())
			turnSpan.End()
			return finalAnswer, fmt.Errorf("turn %d: %w", turn, err)
		}

		calls := ExtractCalls(msg, turn)
		if len(calls) == 0 {
			finalAnswer = htmlx.StripThinkTags(msg.Content)
			turnSpan.End()
			return finalAnswer, nil
		}

		messages = append(messages, *msg)
		for _, call := range calls {
			toolCtx, toolSpan := tracer.Start(turnCtx, "tool."+call.Function.Name, trace.WithAttributes(
				attribute.String("tool.name", call.Function.Name),
				attribute.String("tool.call_id", call.ID),
			))
			result := e.registry.Dispatch(toolCtx, call, e.toolCtx)
			blob, merr := json.Marshal(result)
			if merr != nil {
				blob = []byte(fmt.Sprintf(`{"error": "unserializable tool result: %v"}`, merr))
			}
			if errText, ok := result["error"].(string); ok {
				toolSpan.SetStatus(codes.Error, errText)
			}
			toolSpan.End()

			slog.Debug("tool result", "tool", call.Function.Name, "chars", len(blob))
			messages = append(messages, providers.Message{
				Role:       "tool",
				ToolCallID: call.ID,
				Content:    string(blob),
			})
		}
		turnSpan.End()
	}

	slog.Error("max turns reached", "run", runID, "max_turns", e.maxTurns)
	runSpan.SetStatus(codes.Error, "max turns reached")
	return finalAnswer, nil
}
