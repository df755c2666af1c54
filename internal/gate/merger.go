// Package gate enforces the field-completeness invariant: no mutating
// statement may be generated while any required business field is unknown.
package gate

import (
	"context"
	"log/slog"
	"regexp"

	"github.com/mlukasik/venq/internal/intent"
	"github.com/mlukasik/venq/internal/memory"
)

// anaphoraRe matches vague whole-word references to the previous request.
var anaphoraRe = regexp.MustCompile(`(?i)\b(it|again)\b`)

// Merger fills extraction gaps from the user's last known field set.
type Merger struct {
	slots memory.Slots
}

// NewMerger creates a Merger reading prior fields from the given slot store.
func NewMerger(slots memory.Slots) *Merger {
	return &Merger{slots: slots}
}

// Merge resolves the extracted fields against slot memory. When the raw text
// is an anaphoric reference ("it", "again") the prior field set is returned
// verbatim; otherwise empty fields are backfilled per key. A slot read
// failure degrades to returning the extraction unchanged.
func (m *Merger) Merge(ctx context.Context, userID string, extracted intent.FieldSet, rawText string) intent.FieldSet {
	prior, err := m.slots.LastFields(ctx, userID)
	if err != nil {
		slog.Warn("merge: reading last fields failed", "user_id", userID, "error", err)
		return extracted
	}
	if prior == nil {
		return extracted
	}

	if anaphoraRe.MatchString(rawText) {
		return prior.Clone()
	}

	merged := extracted.Clone()
	for _, key := range intent.RequiredFields {
		if merged[key] == "" {
			merged[key] = prior[key]
		}
	}
	return merged
}
