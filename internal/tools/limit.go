package tools

import (
	"context"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
)

// RateLimiter enforces a fixed per-user request budget over a rolling window.
type RateLimiter struct {
	limit  int
	window time.Duration
	now    func() time.Time

	mu    sync.Mutex
	calls map[string][]time.Time
}

func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	if limit <= 0 {
		limit = 5
	}
	if window <= 0 {
		window = time.Minute
	}
	return &RateLimiter{
		limit:  limit,
		window: window,
		now:    time.Now,
		calls:  make(map[string][]time.Time),
	}
}

func (l *RateLimiter) Definition() mcp.Tool {
	return mcp.NewTool("rate_limiter",
		mcp.WithDescription("Limits number of queries per user per minute."),
		mcp.WithString("user_id", mcp.Description("User making the request"), mcp.Required()),
	)
}

func (l *RateLimiter) Run(ctx context.Context, args map[string]any) (any, error) {
	userID, _ := args["user_id"].(string)
	if l.Allow(userID) {
		return map[string]any{"allowed": true}, nil
	}
	return map[string]any{"allowed": false, "error": "Rate limit exceeded"}, nil
}

// Allow records a request and reports whether it fits the window budget.
func (l *RateLimiter) Allow(userID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	recent := append(l.calls[userID], now)

	cutoff := now.Add(-l.window)
	keep := recent[:0]
	for _, t := range recent {
		if t.After(cutoff) {
			keep = append(keep, t)
		}
	}
	l.calls[userID] = keep

	return len(keep) <= l.limit
}
