package tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/mlukasik/venq/internal/sqlcheck"
)

// Validator rejects unsafe SQL before it reaches the executor.
type Validator struct{}

func NewValidator() *Validator { return &Validator{} }

func (v *Validator) Definition() mcp.Tool {
	return mcp.NewTool("validation_tool",
		mcp.WithDescription("Checks for dangerous or malformed SQL queries."),
		mcp.WithString("query", mcp.Description("SQL statement to check"), mcp.Required()),
	)
}

func (v *Validator) Run(ctx context.Context, args map[string]any) (any, error) {
	query, _ := args["query"].(string)
	if query == "" {
		return map[string]any{"error": "Query not provided"}, nil
	}
	if err := sqlcheck.Validate(query); err != nil {
		return map[string]any{"error": err.Error()}, nil
	}
	return map[string]any{"status": "Query safe"}, nil
}
