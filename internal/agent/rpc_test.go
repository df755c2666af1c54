package agent

import (
	"context"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
)

func TestHandleRequestInitialize(t *testing.T) {
	h := newHarness(&fakeExtractor{})

	out, err := h.agent.HandleRequest(context.Background(), Request{
		Method: "initialize",
		Params: map[string]any{"protocolVersion": "2024-01-01"},
	})
	if err != nil {
		t.Fatalf("HandleRequest: %v", err)
	}

	result, ok := out.(mcp.InitializeResult)
	if !ok {
		t.Fatalf("unexpected result type %T", out)
	}
	if result.ProtocolVersion != SupportedProtocolVersion {
		t.Errorf("ProtocolVersion = %q, want %q", result.ProtocolVersion, SupportedProtocolVersion)
	}
	if result.ServerInfo.Name != "venq" {
		t.Errorf("ServerInfo.Name = %q", result.ServerInfo.Name)
	}
}

func TestHandleRequestToolsList(t *testing.T) {
	h := newHarness(&fakeExtractor{})

	out, err := h.agent.HandleRequest(context.Background(), Request{Method: "tools/list"})
	if err != nil {
		t.Fatalf("HandleRequest: %v", err)
	}
	result := out.(map[string]any)
	defs := result["tools"].([]mcp.Tool)
	if len(defs) != 4 {
		t.Errorf("expected 4 tools, got %d", len(defs))
	}
}

func TestHandleRequestEmptyLists(t *testing.T) {
	h := newHarness(&fakeExtractor{})

	for _, method := range []string{"prompts/list", "resources/list"} {
		out, err := h.agent.HandleRequest(context.Background(), Request{Method: method})
		if err != nil {
			t.Fatalf("%s: %v", method, err)
		}
		result := out.(map[string]any)
		if len(result) != 1 {
			t.Errorf("%s: unexpected result %v", method, result)
		}
	}
}

func TestHandleRequestCallToolAlias(t *testing.T) {
	h := newHarness(&fakeExtractor{})
	h.generator.out = map[string]any{"query": "SELECT 1"}

	out, err := h.agent.HandleRequest(context.Background(), Request{
		Method: "callTool",
		Params: map[string]any{
			"tool": "openai_tool",
			"args": map[string]any{"instruction": "show one"},
		},
	})
	if err != nil {
		t.Fatalf("HandleRequest: %v", err)
	}

	result := out.(*mcp.CallToolResult)
	text := result.Content[0].(mcp.TextContent).Text
	if !strings.Contains(text, "SELECT 1") {
		t.Errorf("unexpected tool output %q", text)
	}
	if len(h.generator.args) != 1 || h.generator.args[0]["instruction"] != "show one" {
		t.Errorf("alias did not map arguments: %v", h.generator.args)
	}
}

func TestHandleRequestUnknownTool(t *testing.T) {
	h := newHarness(&fakeExtractor{})

	out, err := h.agent.HandleRequest(context.Background(), Request{
		Method: "tools/call",
		Params: map[string]any{"name": "nope"},
	})
	if err != nil {
		t.Fatalf("HandleRequest: %v", err)
	}
	result := out.(*mcp.CallToolResult)
	text := result.Content[0].(mcp.TextContent).Text
	if text != "Unknown tool: nope" {
		t.Errorf("text = %q", text)
	}
}

func TestHandleRequestUnknownMethod(t *testing.T) {
	h := newHarness(&fakeExtractor{})

	if _, err := h.agent.HandleRequest(context.Background(), Request{Method: "bogus"}); err == nil {
		t.Error("expected error for unknown method")
	}
}

func TestHandleRequestUserFeedback(t *testing.T) {
	h := newHarness(&fakeExtractor{})
	h.feedback.lastID = "msg-assistant"

	out, err := h.agent.HandleRequest(context.Background(), Request{
		Method: "user/feedback",
		Params: map[string]any{
			"user_id":    "u1",
			"message_id": "last_sql_query",
			"feedback":   "helpful",
			"score":      float64(5),
		},
	})
	if err != nil {
		t.Fatalf("HandleRequest: %v", err)
	}
	result := out.(map[string]any)
	if result["status"] != "success" {
		t.Errorf("unexpected result %v", result)
	}
}

func TestHandleRequestUserFeedbackMissingParams(t *testing.T) {
	h := newHarness(&fakeExtractor{})

	out, err := h.agent.HandleRequest(context.Background(), Request{
		Method: "user/feedback",
		Params: map[string]any{"user_id": "u1"},
	})
	if err != nil {
		t.Fatalf("HandleRequest: %v", err)
	}
	result := out.(map[string]any)
	if result["status"] != "error" {
		t.Errorf("expected error status, got %v", result)
	}
}

func TestHandleRequestAskAgent(t *testing.T) {
	h := newHarness(&fakeExtractor{})
	h.generator.out = map[string]any{"query": "plain answer"}

	out, err := h.agent.HandleRequest(context.Background(), Request{
		Method: "ask_agent",
		Params: map[string]any{
			"user_id": "u1",
			"messages": []any{
				map[string]any{"role": "user", "content": "say something"},
			},
		},
	})
	if err != nil {
		t.Fatalf("HandleRequest: %v", err)
	}
	resp := out.(Response)
	if resp.Answer != "plain answer" {
		t.Errorf("Answer = %q", resp.Answer)
	}
}
