package tools

import (
	"context"
	"testing"
	"time"
)

func TestRateLimiterAllowsUpToLimit(t *testing.T) {
	l := NewRateLimiter(5, time.Minute)

	for i := 0; i < 5; i++ {
		if !l.Allow("u1") {
			t.Fatalf("call %d unexpectedly blocked", i+1)
		}
	}
	if l.Allow("u1") {
		t.Error("6th call within window should be blocked")
	}
}

func TestRateLimiterWindowReset(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	l := NewRateLimiter(5, time.Minute)
	l.now = func() time.Time { return now }

	for i := 0; i < 5; i++ {
		l.Allow("u1")
	}
	if l.Allow("u1") {
		t.Fatal("expected block at limit")
	}

	now = now.Add(61 * time.Second)
	if !l.Allow("u1") {
		t.Error("expected allow after window expiry")
	}
}

func TestRateLimiterPerUser(t *testing.T) {
	l := NewRateLimiter(1, time.Minute)

	if !l.Allow("u1") {
		t.Fatal("first u1 call blocked")
	}
	if !l.Allow("u2") {
		t.Error("u2 should have an independent budget")
	}
	if l.Allow("u1") {
		t.Error("second u1 call should be blocked")
	}
}

func TestRateLimiterRunEnvelope(t *testing.T) {
	l := NewRateLimiter(1, time.Minute)

	got, err := l.Run(context.Background(), map[string]any{"user_id": "u1"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	env := got.(map[string]any)
	if env["allowed"] != true {
		t.Errorf("expected allowed=true, got %v", env)
	}

	got, _ = l.Run(context.Background(), map[string]any{"user_id": "u1"})
	env = got.(map[string]any)
	if env["allowed"] != false || env["error"] != "Rate limit exceeded" {
		t.Errorf("expected rate limit envelope, got %v", env)
	}
}
