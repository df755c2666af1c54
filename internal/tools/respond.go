package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

// Responder converts raw query results into user-facing text.
type Responder struct{}

func NewResponder() *Responder { return &Responder{} }

func (r *Responder) Definition() mcp.Tool {
	return mcp.NewTool("nl_response_tool",
		mcp.WithDescription("Converts SQL results into a natural language summary."),
	)
}

func (r *Responder) Run(ctx context.Context, args map[string]any) (any, error) {
	return FormatResult(args["result"]), nil
}

// FormatResult renders an execution envelope as user-facing text. Row sets
// become key:value bullets; scalar envelopes pass through their message.
func FormatResult(result any) string {
	if env, ok := result.(map[string]any); ok {
		if inner, ok := env["result"]; ok {
			result = inner
		} else if msg, ok := env["error"].(string); ok {
			return msg
		} else if msg, ok := env["success"].(string); ok {
			return msg
		} else if msg, ok := env["info"].(string); ok {
			return msg
		}
	}

	switch v := result.(type) {
	case nil:
		return "No result provided."
	case string:
		if v == "" {
			return "No result provided."
		}
		return v
	case []map[string]any:
		return formatRows(v)
	case []any:
		rows := make([]map[string]any, 0, len(v))
		for _, item := range v {
			if row, ok := item.(map[string]any); ok {
				rows = append(rows, row)
			}
		}
		if len(rows) == len(v) {
			return formatRows(rows)
		}
	}

	raw, err := json.Marshal(result)
	if err != nil {
		return fmt.Sprintf("%v", result)
	}
	return string(raw)
}

func formatRows(rows []map[string]any) string {
	if len(rows) == 0 {
		return "No result provided."
	}
	var sb strings.Builder
	sb.WriteString("Here are the details:\n")
	for _, row := range rows {
		var details []string
		for _, col := range sortedKeys(row) {
			val := row[col]
			if val == nil {
				continue
			}
			details = append(details, fmt.Sprintf("- %s: %v", titleColumn(col), val))
		}
		if len(details) == 0 {
			raw, _ := json.Marshal(row)
			details = append(details, string(raw))
		}
		sb.WriteString(strings.Join(details, "\n"))
		sb.WriteString("\n\n")
	}
	return strings.TrimSpace(sb.String())
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// titleColumn turns a snake_case column name into Title Case words.
func titleColumn(col string) string {
	words := strings.Split(strings.ReplaceAll(col, "_", " "), " ")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// Fallback answers when every other path has failed.
type Fallback struct{}

func NewFallback() *Fallback { return &Fallback{} }

func (f *Fallback) Definition() mcp.Tool {
	return mcp.NewTool("fallback_tool",
		mcp.WithDescription("Handles errors and fallback cases gracefully."),
	)
}

func (f *Fallback) Run(ctx context.Context, args map[string]any) (any, error) {
	return map[string]any{"error": "Sorry, the system couldn't process your request."}, nil
}
