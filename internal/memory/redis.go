package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mlukasik/venq/internal/intent"
)

const (
	// maxHistory bounds the short-term history window per user.
	maxHistory = 5

	redisOpTimeout = 5 * time.Second
)

// RedisMemory implements ShortTerm and Slots on top of Redis: a capped list
// per user for history and a single JSON value for the last known field set.
type RedisMemory struct {
	rdb *redis.Client
}

// NewRedisMemory creates a RedisMemory using the given client.
func NewRedisMemory(rdb *redis.Client) *RedisMemory {
	return &RedisMemory{rdb: rdb}
}

func historyKey(userID string) string {
	return fmt.Sprintf("user:%s:history", userID)
}

func lastFieldsKey(userID string) string {
	return fmt.Sprintf("user:%s:last_fields", userID)
}

// AddMessage appends a message to the user's history and trims the list to
// the last maxHistory entries.
func (m *RedisMemory) AddMessage(ctx context.Context, userID, role, content string) error {
	ctx, cancel := context.WithTimeout(ctx, redisOpTimeout)
	defer cancel()

	b, err := json.Marshal(Turn{Role: role, Content: content})
	if err != nil {
		return err
	}

	key := historyKey(userID)
	pipe := m.rdb.Pipeline()
	pipe.RPush(ctx, key, b)
	pipe.LTrim(ctx, key, -maxHistory, -1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("appending history for %s: %w", userID, err)
	}
	return nil
}

// History returns the user's last messages, oldest first.
func (m *RedisMemory) History(ctx context.Context, userID string) ([]Turn, error) {
	ctx, cancel := context.WithTimeout(ctx, redisOpTimeout)
	defer cancel()

	raw, err := m.rdb.LRange(ctx, historyKey(userID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("reading history for %s: %w", userID, err)
	}

	turns := make([]Turn, 0, len(raw))
	for _, r := range raw {
		var t Turn
		if err := json.Unmarshal([]byte(r), &t); err != nil {
			continue
		}
		turns = append(turns, t)
	}
	return turns, nil
}

// ClearHistory removes the user's conversation history.
func (m *RedisMemory) ClearHistory(ctx context.Context, userID string) error {
	ctx, cancel := context.WithTimeout(ctx, redisOpTimeout)
	defer cancel()
	return m.rdb.Del(ctx, historyKey(userID)).Err()
}

// LastFields returns the last known field set for the user, or nil when none
// has been stored yet.
func (m *RedisMemory) LastFields(ctx context.Context, userID string) (intent.FieldSet, error) {
	ctx, cancel := context.WithTimeout(ctx, redisOpTimeout)
	defer cancel()

	data, err := m.rdb.Get(ctx, lastFieldsKey(userID)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading last fields for %s: %w", userID, err)
	}

	var fields intent.FieldSet
	if err := json.Unmarshal([]byte(data), &fields); err != nil {
		return nil, fmt.Errorf("decoding last fields for %s: %w", userID, err)
	}
	return fields, nil
}

// SetLastFields replaces the last known field set wholesale. Concurrent
// writers for the same user are last-write-wins.
func (m *RedisMemory) SetLastFields(ctx context.Context, userID string, fields intent.FieldSet) error {
	ctx, cancel := context.WithTimeout(ctx, redisOpTimeout)
	defer cancel()

	b, err := json.Marshal(fields)
	if err != nil {
		return err
	}
	if err := m.rdb.Set(ctx, lastFieldsKey(userID), b, 0).Err(); err != nil {
		return fmt.Errorf("storing last fields for %s: %w", userID, err)
	}
	return nil
}
