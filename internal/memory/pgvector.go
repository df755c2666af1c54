package memory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	pgxvector "github.com/pgvector/pgvector-go/pgx"
	"golang.org/x/sync/errgroup"

	"github.com/mlukasik/venq/internal/llm"
)

const (
	pgOpTimeout      = 10 * time.Second
	summarizeTimeout = 30 * time.Second

	// summarySampleLimit caps how many recent messages feed the rolling
	// summary.
	summarySampleLimit = 50
)

// Embedder produces an embedding vector for a text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Summarizer produces a chat completion, used for the rolling history
// summary.
type Summarizer interface {
	Chat(ctx context.Context, messages []llm.Message) (string, error)
}

// OpenPostgres opens a pgx pool with pgvector type support registered on
// every connection.
func OpenPostgres(ctx context.Context, url string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parsing postgres url: %w", err)
	}
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvector.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}
	return pool, nil
}

// PGVectorRecall implements SemanticRecall on Postgres with the pgvector
// extension: per-user message embeddings plus a rolling conversation summary.
type PGVectorRecall struct {
	pool       *pgxpool.Pool
	embedder   Embedder
	summarizer Summarizer
}

// NewPGVectorRecall creates a PGVectorRecall. The summarizer may be nil, in
// which case SummarizeHistory returns an error and Context simply reports no
// summary until one is stored by other means.
func NewPGVectorRecall(pool *pgxpool.Pool, embedder Embedder, summarizer Summarizer) *PGVectorRecall {
	return &PGVectorRecall{pool: pool, embedder: embedder, summarizer: summarizer}
}

// EnsureSchema creates the recall tables and the vector extension. Safe to
// call repeatedly.
func (r *PGVectorRecall) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		`CREATE TABLE IF NOT EXISTS chat_history (
			id BIGSERIAL PRIMARY KEY,
			user_id TEXT NOT NULL,
			message TEXT NOT NULL,
			embedding vector(1536),
			created_at TIMESTAMPTZ DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS chat_history_user_idx ON chat_history (user_id, created_at DESC)`,
		`CREATE TABLE IF NOT EXISTS conversation_summaries (
			user_id TEXT PRIMARY KEY,
			summary TEXT,
			updated_at TIMESTAMPTZ DEFAULT NOW()
		)`,
	}
	for _, stmt := range stmts {
		if _, err := r.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensuring recall schema: %w", err)
		}
	}
	return nil
}

// StoreMessage embeds the text and persists it for later recall.
func (r *PGVectorRecall) StoreMessage(ctx context.Context, userID, text string) error {
	vec, err := r.embedder.Embed(ctx, text)
	if err != nil {
		return fmt.Errorf("embedding message: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, pgOpTimeout)
	defer cancel()

	_, err = r.pool.Exec(ctx,
		`INSERT INTO chat_history (user_id, message, embedding) VALUES ($1, $2, $3)`,
		userID, text, pgvector.NewVector(vec))
	if err != nil {
		return fmt.Errorf("storing message embedding: %w", err)
	}
	return nil
}

// Context aggregates recall context for a query. The three lookups run
// concurrently; any single failure degrades its field to empty and the
// bundle is always returned.
func (r *PGVectorRecall) Context(ctx context.Context, userID, query string, topK, recentWindow int) (RecallContext, error) {
	if topK <= 0 {
		topK = 3
	}
	if recentWindow <= 0 {
		recentWindow = 3
	}

	var bundle RecallContext
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		similar, err := r.searchSimilar(gCtx, userID, query, topK)
		if err != nil {
			slog.Warn("semantic recall: similarity search failed", "error", err)
			return nil
		}
		bundle.Similar = similar
		return nil
	})
	g.Go(func() error {
		recent, err := r.fetchRecent(gCtx, userID, recentWindow)
		if err != nil {
			slog.Warn("semantic recall: recent fetch failed", "error", err)
			return nil
		}
		bundle.Recent = recent
		return nil
	})
	g.Go(func() error {
		summary, err := r.getSummary(gCtx, userID)
		if err != nil {
			slog.Warn("semantic recall: summary fetch failed", "error", err)
			return nil
		}
		bundle.Summary = summary
		return nil
	})

	g.Wait()
	return bundle, nil
}

// searchSimilar returns the topK messages nearest to the query, sorted by
// increasing distance.
func (r *PGVectorRecall) searchSimilar(ctx context.Context, userID, query string, topK int) ([]SimilarMessage, error) {
	vec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, pgOpTimeout)
	defer cancel()

	rows, err := r.pool.Query(ctx,
		`SELECT message, embedding <=> $1 AS distance
		 FROM chat_history
		 WHERE user_id = $2
		 ORDER BY embedding <=> $1
		 LIMIT $3`,
		pgvector.NewVector(vec), userID, topK)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SimilarMessage
	for rows.Next() {
		var m SimilarMessage
		if err := rows.Scan(&m.Message, &m.Distance); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// fetchRecent returns the last N messages in chronological order.
func (r *PGVectorRecall) fetchRecent(ctx context.Context, userID string, window int) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, pgOpTimeout)
	defer cancel()

	rows, err := r.pool.Query(ctx,
		`SELECT message FROM chat_history WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`,
		userID, window)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var newestFirst []string
	for rows.Next() {
		var m string
		if err := rows.Scan(&m); err != nil {
			return nil, err
		}
		newestFirst = append(newestFirst, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]string, 0, len(newestFirst))
	for i := len(newestFirst) - 1; i >= 0; i-- {
		out = append(out, newestFirst[i])
	}
	return out, nil
}

func (r *PGVectorRecall) getSummary(ctx context.Context, userID string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, pgOpTimeout)
	defer cancel()

	var summary string
	err := r.pool.QueryRow(ctx,
		`SELECT summary FROM conversation_summaries WHERE user_id = $1`, userID).Scan(&summary)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return summary, nil
}

// SummarizeHistory compacts the user's recent messages into a short rolling
// summary and upserts it for quick retrieval.
func (r *PGVectorRecall) SummarizeHistory(ctx context.Context, userID string) (string, error) {
	if r.summarizer == nil {
		return "", fmt.Errorf("no summarizer configured")
	}

	recent, err := r.fetchRecent(ctx, userID, summarySampleLimit)
	if err != nil {
		return "", fmt.Errorf("fetching history to summarize: %w", err)
	}
	if len(recent) == 0 {
		return "", nil
	}

	chatCtx, cancel := context.WithTimeout(ctx, summarizeTimeout)
	defer cancel()

	summary, err := r.summarizer.Chat(chatCtx, []llm.Message{
		{
			Role:    "system",
			Content: "You are a summarizer that extracts a short (2-3 sentences) memory summary from chat messages. Keep it concise, factual, and useful for future retrieval.",
		},
		{
			Role:    "user",
			Content: "Summarize the following messages into a short memory:\n\n" + strings.Join(recent, "\n\n"),
		},
	})
	if err != nil {
		return "", fmt.Errorf("summarizing history: %w", err)
	}

	upsertCtx, cancel := context.WithTimeout(ctx, pgOpTimeout)
	defer cancel()

	_, err = r.pool.Exec(upsertCtx,
		`INSERT INTO conversation_summaries (user_id, summary, updated_at)
		 VALUES ($1, $2, NOW())
		 ON CONFLICT (user_id) DO UPDATE SET summary = EXCLUDED.summary, updated_at = NOW()`,
		userID, summary)
	if err != nil {
		return "", fmt.Errorf("storing summary: %w", err)
	}
	return summary, nil
}
