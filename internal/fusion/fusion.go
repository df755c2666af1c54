// Package fusion assembles the prompt context for a chat turn: semantic
// recall, recent turns, the running summary, and feedback-filtered history.
package fusion

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/mlukasik/venq/internal/llm"
	"github.com/mlukasik/venq/internal/memory"
)

const (
	topK         = 3
	recentWindow = 3
	historyLimit = 20
	charBudget   = 4000
	minScore     = 3
)

// Bundle is the fused context handed to the language model.
type Bundle struct {
	MemoryText string
	History    []llm.Message
}

// Builder fuses long-term recall with the feedback-filtered message history.
type Builder struct {
	recall   memory.SemanticRecall
	feedback memory.FeedbackLog
}

// NewBuilder returns a Builder over the given memory backends. Either may
// be nil, in which case that source contributes nothing.
func NewBuilder(recall memory.SemanticRecall, feedback memory.FeedbackLog) *Builder {
	return &Builder{recall: recall, feedback: feedback}
}

// BuildContext gathers recall and history concurrently. Failures in either
// source degrade to an empty contribution; the bundle is always returned.
func (b *Builder) BuildContext(ctx context.Context, userID, query string) Bundle {
	var (
		rc   memory.RecallContext
		msgs []memory.FeedbackMessage
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if b.recall == nil {
			return nil
		}
		var err error
		rc, err = b.recall.Context(gctx, userID, query, topK, recentWindow)
		if err != nil {
			slog.Warn("semantic recall failed", "user_id", userID, "error", err)
			rc = memory.RecallContext{}
		}
		return nil
	})
	g.Go(func() error {
		if b.feedback == nil {
			return nil
		}
		var err error
		msgs, err = b.feedback.Messages(gctx, userID, historyLimit, true)
		if err != nil {
			slog.Warn("fetching feedback history failed", "user_id", userID, "error", err)
			msgs = nil
		}
		return nil
	})
	g.Wait()

	return Bundle{
		MemoryText: assembleMemoryText(rc),
		History:    filterHistory(msgs),
	}
}

// filterHistory drops messages whose feedback score fell below the threshold
// and reverses the newest-first fetch order back to chronological.
func filterHistory(msgs []memory.FeedbackMessage) []llm.Message {
	var kept []llm.Message
	for _, m := range msgs {
		if m.Score != nil && *m.Score < minScore {
			continue
		}
		if m.Role != "user" && m.Role != "assistant" {
			continue
		}
		kept = append(kept, llm.Message{Role: m.Role, Content: m.Content})
	}
	// Reverse to chronological order.
	for i, j := 0, len(kept)-1; i < j; i, j = i+1, j-1 {
		kept[i], kept[j] = kept[j], kept[i]
	}
	return kept
}

// assembleMemoryText concatenates recall sections in priority order, cutting
// off once the character budget is spent.
func assembleMemoryText(rc memory.RecallContext) string {
	var sections []string

	if rc.Summary != "" {
		sections = append(sections, "Conversation summary: "+rc.Summary)
	}
	for _, sm := range rc.Similar {
		sections = append(sections, fmt.Sprintf("Similar past message (dist=%.4f): %s", sm.Distance, sm.Message))
	}
	if len(rc.Recent) > 0 {
		sections = append(sections, "Recent messages:\n"+strings.Join(rc.Recent, "\n"))
	}

	var sb strings.Builder
	for _, section := range sections {
		if sb.Len() == 0 {
			if len(section) > charBudget {
				sb.WriteString(section[:charBudget])
				break
			}
			sb.WriteString(section)
			continue
		}
		if sb.Len()+2+len(section) > charBudget {
			break
		}
		sb.WriteString("\n\n")
		sb.WriteString(section)
	}
	return sb.String()
}
