// Package agent orchestrates a chat turn end to end: memory persistence,
// the field-completeness gate, context fusion, and the SQL tool pipeline.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/mlukasik/venq/internal/fusion"
	"github.com/mlukasik/venq/internal/gate"
	"github.com/mlukasik/venq/internal/intent"
	"github.com/mlukasik/venq/internal/llm"
	"github.com/mlukasik/venq/internal/memory"
	"github.com/mlukasik/venq/internal/sqlcheck"
	"github.com/mlukasik/venq/internal/tools"
)

// Response is the envelope returned for every turn.
type Response struct {
	Source        string        `json:"source,omitempty"`
	Answer        string        `json:"answer,omitempty"`
	SQLQuery      string        `json:"sql_query,omitempty"`
	ToolUsed      string        `json:"tool_used,omitempty"`
	MessageID     string        `json:"message_id,omitempty"`
	MissingFields []string      `json:"missing_fields,omitempty"`
	ChatHistory   []memory.Turn `json:"chat_history,omitempty"`
	Err           string        `json:"error,omitempty"`
}

// Chatter is the plain completion surface used for the conversational fallback.
type Chatter interface {
	Chat(ctx context.Context, messages []llm.Message) (string, error)
}

// TurnObserver is notified after each completed turn, e.g. to schedule a
// background summary refresh.
type TurnObserver interface {
	Mark(userID string)
}

var historyTriggers = []string{"chat history", "show me my history", "show me my chat"}

// Deps wires an Agent. Memory tiers and the cache/audit pair may be nil;
// every use is best effort.
type Deps struct {
	LLM       Chatter
	Gate      *gate.Gate
	Fusion    *fusion.Builder
	Registry  *tools.Registry
	Generator tools.Tool
	Executor  tools.Tool
	Fallback  tools.Tool
	Limiter   *tools.RateLimiter
	Cache     *tools.QueryCache
	Audit     *tools.AuditLogger
	ShortTerm memory.ShortTerm
	Slots     memory.Slots
	Recall    memory.SemanticRecall
	Feedback  memory.FeedbackLog
	Observer  TurnObserver

	RestoreFieldsOnDelete bool
}

type Agent struct {
	deps Deps
}

func New(deps Deps) *Agent {
	return &Agent{deps: deps}
}

// Run executes one turn. The error return is reserved for malformed input;
// every downstream failure is folded into the response envelope.
func (a *Agent) Run(ctx context.Context, userID string, messages []memory.Turn) (Response, error) {
	if len(messages) == 0 {
		return Response{}, fmt.Errorf("no messages provided")
	}
	for _, m := range messages {
		if m.Role == "" || m.Content == "" {
			return Response{}, fmt.Errorf("each message must contain role and content")
		}
	}

	a.persistInbound(ctx, userID, messages)

	userInput := strings.TrimSpace(messages[len(messages)-1].Content)

	check := a.deps.Gate.CheckMissingFields(ctx, userInput, userID)
	if check.Status == gate.StatusMissing {
		return Response{
			Source:        "agent",
			Answer:        check.Message,
			MissingFields: check.MissingFields,
		}, nil
	}

	if isHistoryRequest(userInput) {
		return a.historyResponse(ctx, userID), nil
	}

	if a.deps.Limiter != nil && !a.deps.Limiter.Allow(userID) {
		return Response{Source: "agent", Err: "Rate limit exceeded."}, nil
	}

	var bundle fusion.Bundle
	if a.deps.Fusion != nil {
		bundle = a.deps.Fusion.BuildContext(ctx, userID, userInput)
	}
	if fb := a.relevantFeedback(ctx, userID, userInput); fb != "" {
		if bundle.MemoryText != "" {
			bundle.MemoryText += "\n\n"
		}
		bundle.MemoryText += "Prior feedback:\n" + fb
	}

	resp := a.dispatch(ctx, userID, userInput, bundle, check.Fields)

	if a.deps.Observer != nil {
		a.deps.Observer.Mark(userID)
	}
	return resp, nil
}

// persistInbound writes the turn into every memory tier in parallel, best
// effort only.
func (a *Agent) persistInbound(ctx context.Context, userID string, messages []memory.Turn) {
	g, gctx := errgroup.WithContext(ctx)
	for _, m := range messages {
		m := m
		if a.deps.ShortTerm != nil {
			g.Go(func() error {
				if err := a.deps.ShortTerm.AddMessage(gctx, userID, m.Role, m.Content); err != nil {
					slog.Warn("persisting turn to short-term memory failed", "user_id", userID, "error", err)
				}
				return nil
			})
		}
		if m.Role != "user" {
			continue
		}
		if a.deps.Recall != nil {
			g.Go(func() error {
				if err := a.deps.Recall.StoreMessage(gctx, userID, m.Content); err != nil {
					slog.Warn("storing message embedding failed", "user_id", userID, "error", err)
				}
				return nil
			})
		}
		if a.deps.Feedback != nil {
			g.Go(func() error {
				_, err := a.deps.Feedback.StoreMessage(gctx, userID, "user", m.Content, map[string]string{"source": "client"})
				if err != nil {
					slog.Warn("storing message for feedback tracking failed", "user_id", userID, "error", err)
				}
				return nil
			})
		}
	}
	g.Wait()
}

// relevantFeedback surfaces prior feedback on answers that share words with
// the current input, so the generator can avoid repeating corrected mistakes.
func (a *Agent) relevantFeedback(ctx context.Context, userID, userInput string) string {
	if a.deps.Feedback == nil {
		return ""
	}
	msgs, err := a.deps.Feedback.Messages(ctx, userID, 20, true)
	if err != nil {
		slog.Warn("loading feedback history failed", "user_id", userID, "error", err)
		return ""
	}
	words := make(map[string]struct{})
	for _, w := range strings.Fields(strings.ToLower(userInput)) {
		words[w] = struct{}{}
	}
	var lines []string
	for _, m := range msgs {
		if m.Feedback == "" || !overlapsAny(words, m.Content) {
			continue
		}
		lines = append(lines, fmt.Sprintf("- %s (on: %s)", m.Feedback, m.Content))
		if len(lines) == 5 {
			break
		}
	}
	return strings.Join(lines, "\n")
}

func overlapsAny(words map[string]struct{}, text string) bool {
	for _, w := range strings.Fields(strings.ToLower(text)) {
		if _, ok := words[w]; ok {
			return true
		}
	}
	return false
}

func isHistoryRequest(text string) bool {
	lower := strings.ToLower(text)
	for _, trigger := range historyTriggers {
		if strings.Contains(lower, trigger) {
			return true
		}
	}
	return false
}

func (a *Agent) historyResponse(ctx context.Context, userID string) Response {
	if a.deps.ShortTerm == nil {
		return Response{Err: "Memory tool not available."}
	}
	history, err := a.deps.ShortTerm.History(ctx, userID)
	if err != nil {
		slog.Warn("reading history failed", "user_id", userID, "error", err)
		return Response{Err: "Memory tool not available."}
	}
	return Response{
		Source:      "agent",
		Answer:      "Here is your chat history:",
		ChatHistory: history,
	}
}

// dispatch runs the staged tool pipeline. A panic anywhere inside is caught
// at this boundary and routed to the fallback responder.
func (a *Agent) dispatch(ctx context.Context, userID, userInput string, bundle fusion.Bundle, fields intent.FieldSet) (resp Response) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("tool pipeline panicked", "user_id", userID, "panic", r)
			resp = a.fallbackResponse(ctx, userID, userInput)
		}
	}()

	genArgs := map[string]any{"instruction": userInput}
	if bundle.MemoryText != "" {
		genArgs["context"] = bundle.MemoryText
	}
	genOut, err := a.deps.Generator.Run(ctx, genArgs)
	if err != nil {
		slog.Warn("sql generation failed", "user_id", userID, "error", err)
		return a.conversationalFallback(ctx, userID, userInput, bundle)
	}
	genEnv, _ := genOut.(map[string]any)
	if msg, ok := genEnv["error"].(string); ok {
		slog.Warn("sql generation returned error", "user_id", userID, "error", msg)
		return a.conversationalFallback(ctx, userID, userInput, bundle)
	}

	raw, _ := genEnv["query"].(string)
	stmt, isSQL := sqlcheck.Normalize(raw)
	if !isSQL {
		answer := strings.TrimSpace(raw)
		a.persistOutbound(ctx, userID, answer, "")
		return Response{Source: "openai", Answer: answer}
	}

	if err := sqlcheck.Validate(stmt); err != nil {
		a.persistOutbound(ctx, userID, err.Error(), "")
		return Response{Source: "openai", Answer: err.Error(), SQLQuery: stmt}
	}

	execOut, err := a.deps.Executor.Run(ctx, map[string]any{"query": stmt})
	if err != nil {
		answer := "SQL Execution Error: " + err.Error()
		a.persistOutbound(ctx, userID, answer, "")
		return Response{Source: "openai", Answer: answer, SQLQuery: stmt}
	}
	execEnv, _ := execOut.(map[string]any)
	if msg, ok := execEnv["error"].(string); ok {
		answer := "SQL Execution Error: " + msg
		a.persistOutbound(ctx, userID, answer, "")
		return Response{Source: "openai", Answer: answer, SQLQuery: stmt}
	}

	// A delete clears the row but the resolved fields stay addressable for
	// follow-up turns unless configured otherwise.
	if a.deps.RestoreFieldsOnDelete && sqlcheck.Verb(stmt) == "delete" && len(fields) > 0 && a.deps.Slots != nil {
		if err := a.deps.Slots.SetLastFields(ctx, userID, fields); err != nil {
			slog.Warn("restoring fields after delete failed", "user_id", userID, "error", err)
		}
	}

	answer := tools.FormatResult(execEnv)

	a.recordOutcome(ctx, userID, stmt, execEnv)
	messageID := a.persistOutbound(ctx, userID, answer, stmt)

	return Response{
		Source:    "openai",
		Answer:    answer,
		SQLQuery:  stmt,
		ToolUsed:  "sql_tool",
		MessageID: messageID,
	}
}

// recordOutcome caches the result and appends the audit record, each best
// effort.
func (a *Agent) recordOutcome(ctx context.Context, userID, stmt string, env map[string]any) {
	serialized, err := json.Marshal(env)
	if err != nil {
		slog.Warn("serializing result for cache failed", "user_id", userID, "error", err)
		return
	}
	if a.deps.Cache != nil {
		if err := a.deps.Cache.Save(stmt, string(serialized)); err != nil {
			slog.Warn("caching query result failed", "user_id", userID, "error", err)
		}
	}
	if a.deps.Audit != nil {
		if err := a.deps.Audit.Record(userID, "sql_tool", stmt, string(serialized)); err != nil {
			slog.Warn("appending audit record failed", "user_id", userID, "error", err)
		}
	}
}

// persistOutbound writes the assistant turn to memory tiers and returns the
// feedback-store message id, if any.
func (a *Agent) persistOutbound(ctx context.Context, userID, answer, stmt string) string {
	if a.deps.ShortTerm != nil {
		if err := a.deps.ShortTerm.AddMessage(ctx, userID, "assistant", answer); err != nil {
			slog.Warn("persisting assistant turn failed", "user_id", userID, "error", err)
		}
	}
	if a.deps.Feedback == nil {
		return ""
	}
	metadata := map[string]string{"tool_used": "sql_tool"}
	if stmt != "" {
		metadata["type"] = "sql"
	}
	messageID, err := a.deps.Feedback.StoreMessage(ctx, userID, "assistant", answer, metadata)
	if err != nil {
		slog.Warn("storing assistant message for feedback tracking failed", "user_id", userID, "error", err)
		return ""
	}
	return messageID
}

// conversationalFallback answers with a plain completion seeded with the
// short-term history.
func (a *Agent) conversationalFallback(ctx context.Context, userID, userInput string, bundle fusion.Bundle) Response {
	msgs := []llm.Message{{Role: "system", Content: "You are a helpful assistant for vendor data management."}}
	if bundle.MemoryText != "" {
		msgs = append(msgs, llm.Message{Role: "system", Content: bundle.MemoryText})
	}
	if len(bundle.History) > 0 {
		msgs = append(msgs, bundle.History...)
	} else if a.deps.ShortTerm != nil {
		history, err := a.deps.ShortTerm.History(ctx, userID)
		if err != nil {
			slog.Warn("reading history for fallback failed", "user_id", userID, "error", err)
		}
		for _, turn := range history {
			msgs = append(msgs, llm.Message{Role: turn.Role, Content: turn.Content})
		}
	}
	msgs = append(msgs, llm.Message{Role: "user", Content: userInput})

	answer, err := a.deps.LLM.Chat(ctx, msgs)
	if err != nil {
		slog.Warn("conversational fallback failed", "user_id", userID, "error", err)
		return a.fallbackResponse(ctx, userID, userInput)
	}
	messageID := a.persistOutbound(ctx, userID, answer, "")
	return Response{Source: "openai", Answer: answer, MessageID: messageID}
}

// fallbackResponse is the terminal error path.
func (a *Agent) fallbackResponse(ctx context.Context, userID, userInput string) Response {
	if a.deps.Fallback != nil {
		out, err := a.deps.Fallback.Run(ctx, map[string]any{"input": userInput})
		if err == nil {
			return Response{Source: "fallback", Answer: tools.FormatResult(out)}
		}
	}
	return Response{Source: "error", Err: "Sorry, the system couldn't process your request."}
}

// ClearUserData wipes the user's short-term history and tracked messages.
// The semantic-recall tier keeps its summaries; they decay on the next
// refresh once the source messages are gone.
func (a *Agent) ClearUserData(ctx context.Context, userID string) (map[string]any, error) {
	if a.deps.ShortTerm != nil {
		if err := a.deps.ShortTerm.ClearHistory(ctx, userID); err != nil {
			return nil, fmt.Errorf("clearing history: %w", err)
		}
	}
	deleted := 0
	if a.deps.Feedback != nil {
		n, err := a.deps.Feedback.DeleteUserMessages(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("deleting tracked messages: %w", err)
		}
		deleted = n
	}
	return map[string]any{"status": "success", "deleted": deleted}, nil
}

// HandleFeedback attaches user feedback to a stored assistant message. The
// "last_sql_query" alias resolves to the user's most recent SQL response.
func (a *Agent) HandleFeedback(ctx context.Context, userID, messageID, feedback string, score *int) (map[string]any, error) {
	if a.deps.Feedback == nil {
		return map[string]any{"status": "error", "error": "Feedback store not available"}, nil
	}
	if messageID == "last_sql_query" {
		resolved, err := a.deps.Feedback.LastMessageID(ctx, userID, "assistant", "sql")
		if err != nil || resolved == "" {
			return map[string]any{"status": "error", "error": "No previous SQL message found for user"}, nil
		}
		messageID = resolved
	}
	if err := a.deps.Feedback.AddFeedback(ctx, messageID, feedback, score); err != nil {
		slog.Warn("storing feedback failed", "user_id", userID, "message_id", messageID, "error", err)
		return map[string]any{"status": "error", "error": err.Error()}, nil
	}
	return map[string]any{"status": "success", "message_id": messageID}, nil
}
