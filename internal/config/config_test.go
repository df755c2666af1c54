package config

import (
	"testing"
)

// TestDefaults verifies default values survive when no env overrides are set.
func TestDefaults(t *testing.T) {
	for _, s := range specs {
		t.Setenv(s.env, "")
	}
	t.Setenv("VENQ_LLM_API_KEY", "test-key")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 8000 {
		t.Errorf("Server.Port = %d, want 8000", cfg.Server.Port)
	}
	if cfg.LLM.ChatModel != "gpt-4o-mini" {
		t.Errorf("LLM.ChatModel = %q, want %q", cfg.LLM.ChatModel, "gpt-4o-mini")
	}
	if cfg.LLM.EmbedModel != "text-embedding-3-small" {
		t.Errorf("LLM.EmbedModel = %q", cfg.LLM.EmbedModel)
	}
	if cfg.Redis.Addr != "localhost:6379" {
		t.Errorf("Redis.Addr = %q", cfg.Redis.Addr)
	}
	if cfg.Agent.RateLimit != 5 {
		t.Errorf("Agent.RateLimit = %d, want 5", cfg.Agent.RateLimit)
	}
	if cfg.Agent.RateWindowSeconds != 60 {
		t.Errorf("Agent.RateWindowSeconds = %d, want 60", cfg.Agent.RateWindowSeconds)
	}
	if !cfg.Agent.RestoreFieldsOnDelete {
		t.Error("Agent.RestoreFieldsOnDelete should default to true")
	}
}

// TestEnvOverride verifies that environment variables override defaults.
func TestEnvOverride(t *testing.T) {
	t.Setenv("VENQ_LLM_API_KEY", "env-key")
	t.Setenv("VENQ_SERVER_PORT", "9100")
	t.Setenv("VENQ_AGENT_RATE_LIMIT", "10")
	t.Setenv("VENQ_AGENT_RESTORE_FIELDS_ON_DELETE", "false")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.LLM.APIKey != "env-key" {
		t.Errorf("LLM.APIKey = %q, want env-key", cfg.LLM.APIKey)
	}
	if cfg.Server.Port != 9100 {
		t.Errorf("Server.Port = %d, want 9100", cfg.Server.Port)
	}
	if cfg.Agent.RateLimit != 10 {
		t.Errorf("Agent.RateLimit = %d, want 10", cfg.Agent.RateLimit)
	}
	if cfg.Agent.RestoreFieldsOnDelete {
		t.Error("Agent.RestoreFieldsOnDelete should be overridden to false")
	}
}

// TestInvalidIntKeepsDefault verifies malformed numeric overrides are ignored.
func TestInvalidIntKeepsDefault(t *testing.T) {
	t.Setenv("VENQ_LLM_API_KEY", "test-key")
	t.Setenv("VENQ_SERVER_PORT", "not-a-number")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != 8000 {
		t.Errorf("Server.Port = %d, want default 8000", cfg.Server.Port)
	}
}

// TestMissingAPIKey verifies Load fails without any API key source.
func TestMissingAPIKey(t *testing.T) {
	t.Setenv("VENQ_LLM_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for missing API key")
	}
}

// TestOpenAIKeyFallback verifies OPENAI_API_KEY is honored.
func TestOpenAIKeyFallback(t *testing.T) {
	t.Setenv("VENQ_LLM_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "fallback-key")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.LLM.APIKey != "fallback-key" {
		t.Errorf("LLM.APIKey = %q, want fallback-key", cfg.LLM.APIKey)
	}
}
