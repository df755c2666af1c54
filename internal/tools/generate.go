package tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/mlukasik/venq/internal/llm"
)

// Chatter is the completion surface the LLM-backed tools need.
type Chatter interface {
	Chat(ctx context.Context, messages []llm.Message) (string, error)
}

const generatorPrompt = `You are an expert SQL generator for PostgreSQL.
Use only this table:

Table: user_vendor_info
Columns:
- user_id (int)
- user_name (text)
- email (text)
- vendor_id (text)
- vendor_name (text)
- vendor_status (text)
- last_updated (date)

Important rules:
1. Only use the columns explicitly mentioned in the user's request.
2. If a column value is not provided by the user, set it to NULL (or leave unchanged for UPDATE).
3. Never invent or predict values such as email, vendor_id or user_id.
4. For INSERT: only include columns the user actually specified.
5. For UPDATE: only update columns the user explicitly mentioned.
6. Always include a WHERE clause when updating or deleting, using ILIKE for case-insensitive matching.
7. Always use case-insensitive matching for text comparisons using ILIKE.
8. Always generate syntactically correct PostgreSQL using this schema only.
9. You can generate SELECT, INSERT, UPDATE, or DELETE statements as needed.
10. If the request is conversational and needs no database access, answer it in plain language instead of SQL.
Return only the SQL statement (or the plain-language answer), with no explanation.`

// Generator turns a natural-language instruction into a SQL statement.
type Generator struct {
	chatter Chatter
}

func NewGenerator(chatter Chatter) *Generator {
	return &Generator{chatter: chatter}
}

func (g *Generator) Definition() mcp.Tool {
	return mcp.NewTool("openai_tool",
		mcp.WithDescription("Converts natural language to SQL."),
		mcp.WithString("instruction", mcp.Description("Natural-language request"), mcp.Required()),
		mcp.WithString("context", mcp.Description("Fused memory context to ground the generation")),
	)
}

func (g *Generator) Run(ctx context.Context, args map[string]any) (any, error) {
	instruction, _ := args["instruction"].(string)
	if instruction == "" {
		return map[string]any{"error": "No instruction provided."}, nil
	}

	messages := []llm.Message{{Role: "system", Content: generatorPrompt}}
	if memCtx, _ := args["context"].(string); memCtx != "" {
		messages = append(messages, llm.Message{Role: "system", Content: "Context from memory:\n" + memCtx})
	}
	messages = append(messages, llm.Message{Role: "user", Content: instruction})

	reply, err := g.chatter.Chat(ctx, messages)
	if err != nil {
		return map[string]any{"error": err.Error()}, nil
	}
	return map[string]any{"query": reply}, nil
}

// Explainer describes a SQL statement in plain language.
type Explainer struct {
	chatter Chatter
}

func NewExplainer(chatter Chatter) *Explainer {
	return &Explainer{chatter: chatter}
}

func (e *Explainer) Definition() mcp.Tool {
	return mcp.NewTool("explain_tool",
		mcp.WithDescription("Explain a SQL query in plain English."),
		mcp.WithString("query", mcp.Description("SQL statement to explain"), mcp.Required()),
	)
}

func (e *Explainer) Run(ctx context.Context, args map[string]any) (any, error) {
	query, _ := args["query"].(string)
	if query == "" {
		return map[string]any{"error": "Query missing"}, nil
	}
	reply, err := e.chatter.Chat(ctx, []llm.Message{
		{Role: "system", Content: "Explain what this SQL query does in simple English."},
		{Role: "user", Content: query},
	})
	if err != nil {
		return map[string]any{"error": err.Error()}, nil
	}
	return map[string]any{"explanation": reply}, nil
}
