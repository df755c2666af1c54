package tools

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/mlukasik/venq/internal/sqlcheck"
)

const sqlExecTimeout = 10 * time.Second

// DB is the query surface the SQL tools need. *pgxpool.Pool satisfies it.
type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Executor runs validated SQL statements against Postgres and shapes the
// results into response envelopes.
type Executor struct {
	db DB
}

func NewExecutor(db DB) *Executor {
	return &Executor{db: db}
}

func (e *Executor) Definition() mcp.Tool {
	return mcp.NewTool("sql_tool",
		mcp.WithDescription("Executes raw SQL queries on PostgreSQL."),
		mcp.WithString("query", mcp.Description("SQL statement to execute"), mcp.Required()),
	)
}

func (e *Executor) Run(ctx context.Context, args map[string]any) (any, error) {
	query, _ := args["query"].(string)
	if query == "" {
		return map[string]any{"error": "Query not provided"}, nil
	}

	ctx, cancel := context.WithTimeout(ctx, sqlExecTimeout)
	defer cancel()

	verb := sqlcheck.Verb(query)

	// Inserts return the generated key so the caller can reference the row.
	if verb == "insert" && !strings.Contains(strings.ToLower(query), "returning") {
		query = strings.TrimRight(strings.TrimSpace(query), ";") + " RETURNING user_id"
	}

	switch verb {
	case "select", "insert":
		rows, err := e.db.Query(ctx, query)
		if err != nil {
			return map[string]any{"error": err.Error()}, nil
		}
		collected, err := collectRows(rows)
		if err != nil {
			return map[string]any{"error": err.Error()}, nil
		}
		if verb == "insert" {
			if len(collected) == 0 {
				return map[string]any{"error": "Insert executed but no rows returned. Check query."}, nil
			}
			return map[string]any{
				"success": fmt.Sprintf("%d row(s) inserted successfully.", len(collected)),
				"ids":     collected,
			}, nil
		}
		unique := dedupRows(collected)
		if len(unique) == 0 {
			return map[string]any{"info": "No data found."}, nil
		}
		return map[string]any{"result": unique}, nil

	case "update", "delete":
		tag, err := e.db.Exec(ctx, query)
		if err != nil {
			return map[string]any{"error": err.Error()}, nil
		}
		affected := tag.RowsAffected()
		if affected <= 0 {
			return map[string]any{"error": fmt.Sprintf("No matching record found to %s.", verb)}, nil
		}
		return map[string]any{"success": fmt.Sprintf("%d row(s) %sd successfully.", affected, verb)}, nil

	default:
		if _, err := e.db.Exec(ctx, query); err != nil {
			return map[string]any{"error": err.Error()}, nil
		}
		return map[string]any{"success": "Query executed successfully."}, nil
	}
}

// collectRows drains a result set into column-keyed maps with serialized values.
func collectRows(rows pgx.Rows) ([]map[string]any, error) {
	defer rows.Close()

	fields := rows.FieldDescriptions()
	var out []map[string]any
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, err
		}
		row := make(map[string]any, len(fields))
		for i, fd := range fields {
			row[fd.Name] = serializeValue(values[i])
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// serializeValue makes a driver value JSON-friendly.
func serializeValue(v any) any {
	if t, ok := v.(time.Time); ok {
		return t.Format(time.RFC3339)
	}
	return v
}

// dedupRows removes duplicate rows while preserving first-seen order.
func dedupRows(rows []map[string]any) []map[string]any {
	seen := make(map[string]struct{}, len(rows))
	var unique []map[string]any
	for _, row := range rows {
		key := rowKey(row)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		unique = append(unique, row)
	}
	return unique
}

func rowKey(row map[string]any) string {
	var sb strings.Builder
	for _, k := range sortedKeys(row) {
		fmt.Fprintf(&sb, "%s=%v;", k, row[k])
	}
	return sb.String()
}
