package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/mlukasik/venq/internal/memory"
)

// SupportedProtocolVersion is the protocol revision this server speaks. A
// client asking for a different one gets a warning, not a failure.
const SupportedProtocolVersion = "2025-06-18"

const serverVersion = "1.0"

// Request is one JSON-RPC envelope.
type Request struct {
	JSONRPC string         `json:"jsonrpc"`
	ID      any            `json:"id,omitempty"`
	Method  string         `json:"method"`
	Params  map[string]any `json:"params,omitempty"`
}

// HandleRequest interprets one protocol request and returns the inner result
// for the transport to wrap. Unknown methods return an error.
func (a *Agent) HandleRequest(ctx context.Context, req Request) (any, error) {
	switch req.Method {
	case "initialize":
		clientVersion, _ := req.Params["protocolVersion"].(string)
		if clientVersion != "" && clientVersion != SupportedProtocolVersion {
			slog.Warn("client requested unsupported protocol version",
				"requested", clientVersion, "supported", SupportedProtocolVersion)
		}
		return mcp.InitializeResult{
			ProtocolVersion: SupportedProtocolVersion,
			Capabilities:    mcp.ServerCapabilities{},
			ServerInfo:      mcp.Implementation{Name: "venq", Version: serverVersion},
		}, nil

	case "tools/list", "listTools":
		return map[string]any{"tools": a.deps.Registry.List()}, nil

	case "prompts/list":
		return map[string]any{"prompts": []any{}}, nil

	case "resources/list":
		return map[string]any{"resources": []any{}}, nil

	case "callTool":
		mapped := Request{
			Method: "tools/call",
			Params: map[string]any{
				"name":      req.Params["tool"],
				"arguments": req.Params["args"],
			},
		}
		return a.HandleRequest(ctx, mapped)

	case "tools/call":
		name, _ := req.Params["name"].(string)
		args, _ := req.Params["arguments"].(map[string]any)
		return a.callTool(ctx, name, args), nil

	case "user/feedback":
		userID, _ := req.Params["user_id"].(string)
		messageID, _ := req.Params["message_id"].(string)
		feedback, _ := req.Params["feedback"].(string)
		if userID == "" || messageID == "" || feedback == "" {
			return map[string]any{"status": "error", "message": "Missing required parameters."}, nil
		}
		var score *int
		if raw, ok := req.Params["score"].(float64); ok {
			n := int(raw)
			score = &n
		}
		return a.HandleFeedback(ctx, userID, messageID, feedback, score)

	case "ask_agent":
		return a.askAgent(ctx, req.Params)

	default:
		return nil, fmt.Errorf("unknown method: %s", req.Method)
	}
}

func (a *Agent) callTool(ctx context.Context, name string, args map[string]any) *mcp.CallToolResult {
	tool := a.deps.Registry.Get(name)
	if tool == nil {
		return toolText(fmt.Sprintf("Unknown tool: %s", name))
	}
	out, err := tool.Run(ctx, args)
	if err != nil {
		slog.Warn("tool run failed", "tool", name, "error", err)
		return toolText(fmt.Sprintf("Error in %s: %s", name, err))
	}
	return toolText(stringifyResult(out))
}

func (a *Agent) askAgent(ctx context.Context, params map[string]any) (any, error) {
	userID, _ := params["user_id"].(string)
	if userID == "" {
		return nil, fmt.Errorf("user_id is required")
	}
	rawMessages, _ := params["messages"].([]any)
	var turns []memory.Turn
	for _, raw := range rawMessages {
		m, ok := raw.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("unsupported message shape: %T", raw)
		}
		role, _ := m["role"].(string)
		content, _ := m["content"].(string)
		turns = append(turns, memory.Turn{Role: role, Content: content})
	}
	return a.Run(ctx, userID, turns)
}

func toolText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func stringifyResult(out any) string {
	if s, ok := out.(string); ok {
		return s
	}
	raw, err := json.Marshal(out)
	if err != nil {
		return fmt.Sprintf("%v", out)
	}
	return string(raw)
}
