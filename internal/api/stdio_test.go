package api

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/mlukasik/venq/internal/agent"
	"github.com/mlukasik/venq/internal/fusion"
	"github.com/mlukasik/venq/internal/gate"
	"github.com/mlukasik/venq/internal/intent"
	"github.com/mlukasik/venq/internal/llm"
	"github.com/mlukasik/venq/internal/tools"
)

type stubExtractor struct{}

func (stubExtractor) Extract(ctx context.Context, text string) (intent.FieldSet, error) {
	return intent.FieldSet{}, nil
}

type stubSlots struct{}

func (stubSlots) LastFields(ctx context.Context, userID string) (intent.FieldSet, error) {
	return nil, nil
}

func (stubSlots) SetLastFields(ctx context.Context, userID string, fields intent.FieldSet) error {
	return nil
}

type stubChatter struct{}

func (stubChatter) Chat(ctx context.Context, messages []llm.Message) (string, error) {
	return "ok", nil
}

func testAgent(t *testing.T) *agent.Agent {
	t.Helper()
	slots := stubSlots{}
	g := gate.New(stubExtractor{}, gate.NewMerger(slots), slots)
	registry := tools.NewRegistry(tools.NewValidator(), tools.NewFallback())
	return agent.New(agent.Deps{
		LLM:      stubChatter{},
		Gate:     g,
		Fusion:   fusion.NewBuilder(nil, nil),
		Registry: registry,
		Fallback: tools.NewFallback(),
		Limiter:  tools.NewRateLimiter(5, time.Minute),
	})
}

func TestStdioParseError(t *testing.T) {
	srv := NewStdioServer(testAgent(t))

	in := strings.NewReader("this is not json\n")
	var out strings.Builder

	if err := srv.Serve(context.Background(), in, &out); err != nil {
		t.Fatalf("Serve: %v", err)
	}

	var resp map[string]any
	if err := json.Unmarshal([]byte(out.String()), &resp); err != nil {
		t.Fatalf("invalid response JSON: %v", err)
	}
	errObj := resp["error"].(map[string]any)
	if errObj["code"].(float64) != -32700 || errObj["message"] != "Parse error" {
		t.Errorf("unexpected error object %v", errObj)
	}
	if resp["id"] != nil {
		t.Errorf("parse error id should be null, got %v", resp["id"])
	}
}

func TestStdioInitialize(t *testing.T) {
	srv := NewStdioServer(testAgent(t))

	in := strings.NewReader(`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2025-06-18"}}` + "\n")
	var out strings.Builder

	if err := srv.Serve(context.Background(), in, &out); err != nil {
		t.Fatalf("Serve: %v", err)
	}

	var resp map[string]any
	if err := json.Unmarshal([]byte(out.String()), &resp); err != nil {
		t.Fatalf("invalid response JSON: %v", err)
	}
	result := resp["result"].(map[string]any)
	if result["protocolVersion"] != "2025-06-18" {
		t.Errorf("protocolVersion = %v", result["protocolVersion"])
	}
}

func TestStdioUnknownMethod(t *testing.T) {
	srv := NewStdioServer(testAgent(t))

	in := strings.NewReader(`{"jsonrpc":"2.0","id":7,"method":"bogus"}` + "\n")
	var out strings.Builder

	if err := srv.Serve(context.Background(), in, &out); err != nil {
		t.Fatalf("Serve: %v", err)
	}

	var resp map[string]any
	if err := json.Unmarshal([]byte(out.String()), &resp); err != nil {
		t.Fatalf("invalid response JSON: %v", err)
	}
	errObj := resp["error"].(map[string]any)
	if errObj["code"].(float64) != -32000 {
		t.Errorf("unexpected error code %v", errObj["code"])
	}
	if resp["id"].(float64) != 7 {
		t.Errorf("id = %v, want 7", resp["id"])
	}
}

func TestStdioNotificationProducesNoResponse(t *testing.T) {
	srv := NewStdioServer(testAgent(t))

	in := strings.NewReader(`{"jsonrpc":"2.0","method":"tools/list"}` + "\n")
	var out strings.Builder

	if err := srv.Serve(context.Background(), in, &out); err != nil {
		t.Fatalf("Serve: %v", err)
	}
	if out.Len() != 0 {
		t.Errorf("expected no output for notification, got %q", out.String())
	}
}

func TestStdioMultipleLines(t *testing.T) {
	srv := NewStdioServer(testAgent(t))

	in := strings.NewReader(
		`{"jsonrpc":"2.0","id":1,"method":"tools/list"}` + "\n" +
			"\n" +
			`{"jsonrpc":"2.0","id":2,"method":"prompts/list"}` + "\n")
	var out strings.Builder

	if err := srv.Serve(context.Background(), in, &out); err != nil {
		t.Fatalf("Serve: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 responses, got %d: %q", len(lines), out.String())
	}
}
