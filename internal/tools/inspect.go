package tools

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/mlukasik/venq/internal/memory"
)

var identifierRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// SchemaInspector reports the column layout of every public table.
type SchemaInspector struct {
	db DB
}

func NewSchemaInspector(db DB) *SchemaInspector {
	return &SchemaInspector{db: db}
}

func (s *SchemaInspector) Definition() mcp.Tool {
	return mcp.NewTool("schema_tool",
		mcp.WithDescription("Provides schema of all tables in the PostgreSQL database."),
	)
}

func (s *SchemaInspector) Run(ctx context.Context, args map[string]any) (any, error) {
	ctx, cancel := context.WithTimeout(ctx, sqlExecTimeout)
	defer cancel()

	rows, err := s.db.Query(ctx, `
		SELECT table_name, column_name, data_type
		FROM information_schema.columns
		WHERE table_schema = 'public'
		ORDER BY table_name, ordinal_position`)
	if err != nil {
		return map[string]any{"error": err.Error()}, nil
	}
	defer rows.Close()

	schema := make(map[string][]map[string]string)
	for rows.Next() {
		var table, column, dtype string
		if err := rows.Scan(&table, &column, &dtype); err != nil {
			return map[string]any{"error": err.Error()}, nil
		}
		schema[table] = append(schema[table], map[string]string{"column": column, "type": dtype})
	}
	if err := rows.Err(); err != nil {
		return map[string]any{"error": err.Error()}, nil
	}
	return schema, nil
}

// TableSampler returns the first few rows of a named table.
type TableSampler struct {
	db DB
}

func NewTableSampler(db DB) *TableSampler {
	return &TableSampler{db: db}
}

func (s *TableSampler) Definition() mcp.Tool {
	return mcp.NewTool("table_summary_tool",
		mcp.WithDescription("Summarizes the data in a specified table."),
		mcp.WithString("table", mcp.Description("Table to sample"), mcp.Required()),
	)
}

func (s *TableSampler) Run(ctx context.Context, args map[string]any) (any, error) {
	table, _ := args["table"].(string)
	if table == "" {
		return map[string]any{"error": "Table name not provided"}, nil
	}
	if !identifierRe.MatchString(table) {
		return map[string]any{"error": fmt.Sprintf("Invalid table name: %s", table)}, nil
	}

	ctx, cancel := context.WithTimeout(ctx, sqlExecTimeout)
	defer cancel()

	rows, err := s.db.Query(ctx, fmt.Sprintf("SELECT * FROM %s LIMIT 5", table))
	if err != nil {
		return map[string]any{"error": err.Error()}, nil
	}
	sample, err := collectRows(rows)
	if err != nil {
		return map[string]any{"error": err.Error()}, nil
	}
	return sample, nil
}

// MemoryQuery exposes a user's short-term history as a tool.
type MemoryQuery struct {
	shortTerm memory.ShortTerm
	timeout   time.Duration
}

func NewMemoryQuery(shortTerm memory.ShortTerm) *MemoryQuery {
	return &MemoryQuery{shortTerm: shortTerm, timeout: 5 * time.Second}
}

func (m *MemoryQuery) Definition() mcp.Tool {
	return mcp.NewTool("memory_tool",
		mcp.WithDescription("Fetches conversation history for a user."),
		mcp.WithString("user_id", mcp.Description("User whose history to fetch"), mcp.Required()),
	)
}

func (m *MemoryQuery) Run(ctx context.Context, args map[string]any) (any, error) {
	userID, _ := args["user_id"].(string)
	if userID == "" {
		return map[string]any{"error": "user_id is required"}, nil
	}

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	history, err := m.shortTerm.History(ctx, userID)
	if err != nil {
		return map[string]any{"error": err.Error()}, nil
	}
	if len(history) == 0 {
		return map[string]any{"info": "No memory found"}, nil
	}
	return history, nil
}
