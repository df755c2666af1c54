// Package memory defines the collaborator interfaces for the conversation
// memory tiers and provides the Redis and Postgres/pgvector adapters. The
// core pipeline never owns storage; it only reads and writes through these
// interfaces, and every call site is expected to degrade gracefully when a
// tier is unavailable.
package memory

import (
	"context"
	"errors"
	"time"

	"github.com/mlukasik/venq/internal/intent"
)

// ErrMessageNotFound is returned when feedback targets an unknown message.
var ErrMessageNotFound = errors.New("message not found")

// Turn is a single chat message in a user's conversation history.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// FeedbackMessage is a turn tracked in the feedback log, with any attached
// feedback and score. Turn content is immutable; the feedback fields are
// last-write-wins.
type FeedbackMessage struct {
	MessageID string
	UserID    string
	Role      string
	Content   string
	Timestamp time.Time
	Feedback  string
	Score     *int
	Metadata  map[string]string
}

// SimilarMessage is a semantically similar past message with its distance
// score. Lower distance means more similar.
type SimilarMessage struct {
	Message  string
	Distance float64
}

// RecallContext aggregates the semantic memory for one query.
type RecallContext struct {
	Similar []SimilarMessage
	Recent  []string
	Summary string
}

// ShortTerm is the bounded last-N conversation history per user.
type ShortTerm interface {
	AddMessage(ctx context.Context, userID, role, content string) error
	History(ctx context.Context, userID string) ([]Turn, error)
	ClearHistory(ctx context.Context, userID string) error
}

// Slots stores the last fully-resolved field set per user, used for anaphora
// resolution and gap-filling.
type Slots interface {
	LastFields(ctx context.Context, userID string) (intent.FieldSet, error)
	SetLastFields(ctx context.Context, userID string, fields intent.FieldSet) error
}

// FeedbackLog tracks turns with attached user feedback for learning.
type FeedbackLog interface {
	StoreMessage(ctx context.Context, userID, role, content string, metadata map[string]string) (string, error)
	AddFeedback(ctx context.Context, messageID, feedback string, score *int) error
	Messages(ctx context.Context, userID string, limit int, newestFirst bool) ([]FeedbackMessage, error)
	LastMessageID(ctx context.Context, userID, role, metaType string) (string, error)
	DeleteUserMessages(ctx context.Context, userID string) (int, error)
}

// SemanticRecall stores message embeddings and aggregates recall context.
type SemanticRecall interface {
	StoreMessage(ctx context.Context, userID, text string) error
	Context(ctx context.Context, userID, query string, topK, recentWindow int) (RecallContext, error)
}
