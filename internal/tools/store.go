package tools

import (
	"context"
	"errors"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/mlukasik/venq/internal/storage"
)

// QueryCache looks up previously executed queries in the local store.
type QueryCache struct {
	store *storage.Store
}

func NewQueryCache(store *storage.Store) *QueryCache {
	return &QueryCache{store: store}
}

func (c *QueryCache) Definition() mcp.Tool {
	return mcp.NewTool("query_cache_tool",
		mcp.WithDescription("Caches common query results to speed up response."),
		mcp.WithString("query", mcp.Description("SQL statement to look up"), mcp.Required()),
	)
}

func (c *QueryCache) Run(ctx context.Context, args map[string]any) (any, error) {
	query, _ := args["query"].(string)
	if query == "" {
		return map[string]any{"error": "Query not provided"}, nil
	}
	entry, err := c.store.GetCache(query)
	if errors.Is(err, storage.ErrNotFound) {
		return map[string]any{"cached": false}, nil
	}
	if err != nil {
		return map[string]any{"error": err.Error()}, nil
	}
	return map[string]any{"cached": true, "result": entry.Result}, nil
}

// Save stores a serialized result for later lookups.
func (c *QueryCache) Save(query, result string) error {
	return c.store.SaveCache(query, result)
}

// AuditLogger appends tool invocations to the local audit log.
type AuditLogger struct {
	store *storage.Store
}

func NewAuditLogger(store *storage.Store) *AuditLogger {
	return &AuditLogger{store: store}
}

func (a *AuditLogger) Definition() mcp.Tool {
	return mcp.NewTool("feedback_tool",
		mcp.WithDescription("Logs tool activity and user feedback for monitoring."),
		mcp.WithString("user_id", mcp.Description("User the record belongs to"), mcp.Required()),
		mcp.WithString("feedback", mcp.Description("Feedback or outcome text"), mcp.Required()),
	)
}

func (a *AuditLogger) Run(ctx context.Context, args map[string]any) (any, error) {
	userID, _ := args["user_id"].(string)
	feedback, _ := args["feedback"].(string)
	if feedback == "" {
		return map[string]any{"error": "Feedback not provided"}, nil
	}
	err := a.store.AppendAudit(storage.AuditRecord{
		UserID:  userID,
		Tool:    "feedback_tool",
		Outcome: feedback,
	})
	if err != nil {
		return map[string]any{"error": err.Error()}, nil
	}
	return map[string]any{"status": "Feedback saved"}, nil
}

// Record appends one tool invocation outcome.
func (a *AuditLogger) Record(userID, tool, query, outcome string) error {
	return a.store.AppendAudit(storage.AuditRecord{
		UserID:  userID,
		Tool:    tool,
		Query:   query,
		Outcome: outcome,
	})
}
