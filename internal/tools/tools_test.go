package tools

import (
	"context"
	"testing"
	"time"

	"github.com/mlukasik/venq/internal/llm"
)

type fakeChatter struct {
	reply string
	err   error
	calls [][]llm.Message
}

func (f *fakeChatter) Chat(ctx context.Context, messages []llm.Message) (string, error) {
	f.calls = append(f.calls, messages)
	return f.reply, f.err
}

func TestRegistryListSorted(t *testing.T) {
	r := NewRegistry(
		NewValidator(),
		NewResponder(),
		NewFallback(),
		NewRateLimiter(5, time.Minute),
	)

	defs := r.List()
	if len(defs) != 4 {
		t.Fatalf("expected 4 tools, got %d", len(defs))
	}
	for i := 1; i < len(defs); i++ {
		if defs[i].Name < defs[i-1].Name {
			t.Errorf("tool list not sorted: %q before %q", defs[i-1].Name, defs[i].Name)
		}
	}
}

func TestRegistryGetUnknown(t *testing.T) {
	r := NewRegistry(NewValidator())
	if r.Get("nope") != nil {
		t.Error("expected nil for unknown tool")
	}
	if r.Get("validation_tool") == nil {
		t.Error("expected validation_tool to resolve")
	}
}

func TestGeneratorIncludesContext(t *testing.T) {
	f := &fakeChatter{reply: "SELECT * FROM user_vendor_info"}
	g := NewGenerator(f)

	got, err := g.Run(context.Background(), map[string]any{
		"instruction": "show all vendors",
		"context":     "Conversation summary: user manages Acme",
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	env := got.(map[string]any)
	if env["query"] != "SELECT * FROM user_vendor_info" {
		t.Errorf("unexpected envelope %v", env)
	}

	msgs := f.calls[0]
	if len(msgs) != 3 {
		t.Fatalf("expected system+context+user, got %d messages", len(msgs))
	}
	if msgs[1].Role != "system" || msgs[2].Content != "show all vendors" {
		t.Errorf("unexpected message layout: %+v", msgs)
	}
}

func TestGeneratorMissingInstruction(t *testing.T) {
	g := NewGenerator(&fakeChatter{})
	got, _ := g.Run(context.Background(), map[string]any{})
	env := got.(map[string]any)
	if env["error"] != "No instruction provided." {
		t.Errorf("unexpected envelope %v", env)
	}
}

func TestValidatorEnvelopes(t *testing.T) {
	v := NewValidator()

	got, _ := v.Run(context.Background(), map[string]any{"query": "DROP TABLE users"})
	if _, hasErr := got.(map[string]any)["error"]; !hasErr {
		t.Error("expected error envelope for unsafe query")
	}

	got, _ = v.Run(context.Background(), map[string]any{"query": "SELECT * FROM user_vendor_info"})
	if got.(map[string]any)["status"] != "Query safe" {
		t.Errorf("expected safe status, got %v", got)
	}
}

func TestTableSamplerRejectsBadIdentifier(t *testing.T) {
	s := NewTableSampler(nil)
	got, _ := s.Run(context.Background(), map[string]any{"table": "users; DROP TABLE x"})
	if _, hasErr := got.(map[string]any)["error"]; !hasErr {
		t.Error("expected error envelope for invalid identifier")
	}
}
