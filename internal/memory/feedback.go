package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const feedbackKeyPrefix = "venq:"

// RedisFeedback implements FeedbackLog. Each message lives in its own hash;
// a per-user sorted set indexes message IDs by timestamp.
type RedisFeedback struct {
	rdb *redis.Client
}

// NewRedisFeedback creates a RedisFeedback using the given client.
func NewRedisFeedback(rdb *redis.Client) *RedisFeedback {
	return &RedisFeedback{rdb: rdb}
}

func userMessagesKey(userID string) string {
	return fmt.Sprintf("%suser:%s:messages", feedbackKeyPrefix, userID)
}

func messageKey(messageID string) string {
	return fmt.Sprintf("%smessage:%s", feedbackKeyPrefix, messageID)
}

// StoreMessage records a turn for feedback tracking and returns its ID.
func (f *RedisFeedback) StoreMessage(ctx context.Context, userID, role, content string, metadata map[string]string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, redisOpTimeout)
	defer cancel()

	messageID := uuid.New().String()
	now := time.Now()

	metaJSON, err := json.Marshal(metadata)
	if err != nil {
		return "", err
	}

	record := map[string]any{
		"user_id":   userID,
		"role":      role,
		"content":   content,
		"timestamp": strconv.FormatInt(now.UnixMilli(), 10),
		"feedback":  "",
		"score":     "",
		"metadata":  string(metaJSON),
	}

	pipe := f.rdb.Pipeline()
	pipe.HSet(ctx, messageKey(messageID), record)
	pipe.ZAdd(ctx, userMessagesKey(userID), redis.Z{
		Score:  float64(now.UnixMilli()),
		Member: messageID,
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return "", fmt.Errorf("storing feedback message: %w", err)
	}
	return messageID, nil
}

// AddFeedback attaches feedback text and an optional score to an existing
// message. Repeated calls overwrite only the feedback fields; message content
// is never touched. Returns ErrMessageNotFound for unknown IDs.
func (f *RedisFeedback) AddFeedback(ctx context.Context, messageID, feedback string, score *int) error {
	ctx, cancel := context.WithTimeout(ctx, redisOpTimeout)
	defer cancel()

	key := messageKey(messageID)
	exists, err := f.rdb.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("checking message %s: %w", messageID, err)
	}
	if exists == 0 {
		return fmt.Errorf("%w: %s", ErrMessageNotFound, messageID)
	}

	fields := map[string]any{"feedback": feedback}
	if score != nil {
		fields["score"] = strconv.Itoa(*score)
	}
	if err := f.rdb.HSet(ctx, key, fields).Err(); err != nil {
		return fmt.Errorf("adding feedback to %s: %w", messageID, err)
	}
	return nil
}

// Messages returns up to limit tracked turns for the user. newestFirst
// controls the ordering of the result.
func (f *RedisFeedback) Messages(ctx context.Context, userID string, limit int, newestFirst bool) ([]FeedbackMessage, error) {
	ctx, cancel := context.WithTimeout(ctx, redisOpTimeout)
	defer cancel()

	zkey := userMessagesKey(userID)
	var ids []string
	var err error
	if newestFirst {
		ids, err = f.rdb.ZRevRange(ctx, zkey, 0, int64(limit)-1).Result()
	} else {
		ids, err = f.rdb.ZRange(ctx, zkey, 0, int64(limit)-1).Result()
	}
	if err != nil {
		return nil, fmt.Errorf("listing messages for %s: %w", userID, err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	pipe := f.rdb.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.HGetAll(ctx, messageKey(id))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("fetching messages for %s: %w", userID, err)
	}

	out := make([]FeedbackMessage, 0, len(ids))
	for i, id := range ids {
		raw, err := cmds[i].Result()
		if err != nil || len(raw) == 0 {
			continue
		}
		out = append(out, parseFeedbackMessage(id, raw))
	}
	return out, nil
}

// LastMessageID returns the newest message ID for the user matching the
// optional role and metadata-type filters. Empty filters match everything.
func (f *RedisFeedback) LastMessageID(ctx context.Context, userID, role, metaType string) (string, error) {
	messages, err := f.Messages(ctx, userID, 50, true)
	if err != nil {
		return "", err
	}
	for _, m := range messages {
		if role != "" && m.Role != role {
			continue
		}
		if metaType != "" && m.Metadata["type"] != metaType {
			continue
		}
		return m.MessageID, nil
	}
	return "", fmt.Errorf("%w: no message for user %s", ErrMessageNotFound, userID)
}

// DeleteUserMessages removes every tracked message for the user and returns
// how many were deleted.
func (f *RedisFeedback) DeleteUserMessages(ctx context.Context, userID string) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, redisOpTimeout)
	defer cancel()

	zkey := userMessagesKey(userID)
	ids, err := f.rdb.ZRange(ctx, zkey, 0, -1).Result()
	if err != nil {
		return 0, fmt.Errorf("listing messages for %s: %w", userID, err)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	pipe := f.rdb.Pipeline()
	for _, id := range ids {
		pipe.Del(ctx, messageKey(id))
	}
	pipe.Del(ctx, zkey)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("deleting messages for %s: %w", userID, err)
	}
	return len(ids), nil
}

// parseFeedbackMessage converts a raw Redis hash into a FeedbackMessage.
func parseFeedbackMessage(id string, raw map[string]string) FeedbackMessage {
	msg := FeedbackMessage{
		MessageID: id,
		UserID:    raw["user_id"],
		Role:      raw["role"],
		Content:   raw["content"],
		Feedback:  raw["feedback"],
	}
	if ts, err := strconv.ParseInt(raw["timestamp"], 10, 64); err == nil {
		msg.Timestamp = time.UnixMilli(ts)
	}
	if s := raw["score"]; s != "" {
		if score, err := strconv.Atoi(s); err == nil {
			msg.Score = &score
		}
	}
	if m := raw["metadata"]; m != "" {
		var meta map[string]string
		if err := json.Unmarshal([]byte(m), &meta); err == nil {
			msg.Metadata = meta
		}
	}
	return msg
}
