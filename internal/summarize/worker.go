// Package summarize maintains the rolling conversation summaries in the
// background so chat turns never pay the summarization latency.
package summarize

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// HistorySummarizer condenses a user's stored history into one summary.
type HistorySummarizer interface {
	SummarizeHistory(ctx context.Context, userID string) (string, error)
}

// Worker collects users whose conversations changed and refreshes their
// summaries on an interval.
type Worker struct {
	summarizer HistorySummarizer
	interval   time.Duration
	logger     *slog.Logger

	mu      sync.Mutex
	pending map[string]struct{}
}

// NewWorker creates a Worker. If interval is <= 0, it defaults to 2 minutes.
func NewWorker(summarizer HistorySummarizer, interval time.Duration) *Worker {
	if interval <= 0 {
		interval = 2 * time.Minute
	}
	return &Worker{
		summarizer: summarizer,
		interval:   interval,
		logger:     slog.Default(),
		pending:    make(map[string]struct{}),
	}
}

// Mark queues a user for the next summarization pass. Safe for concurrent use.
func (w *Worker) Mark(userID string) {
	if userID == "" {
		return
	}
	w.mu.Lock()
	w.pending[userID] = struct{}{}
	w.mu.Unlock()
}

// Run processes the pending set on each tick until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.RunOnce(ctx)
		}
	}
}

// RunOnce drains the pending set and summarizes each user. A failed user is
// re-queued for the next pass. Returns the number of users processed.
func (w *Worker) RunOnce(ctx context.Context) int {
	w.mu.Lock()
	batch := w.pending
	w.pending = make(map[string]struct{})
	w.mu.Unlock()

	processed := 0
	for userID := range batch {
		if ctx.Err() != nil {
			return processed
		}
		if _, err := w.summarizer.SummarizeHistory(ctx, userID); err != nil {
			w.logger.Warn("summarizing history failed", "user_id", userID, "error", err)
			w.Mark(userID)
			continue
		}
		processed++
	}
	return processed
}
