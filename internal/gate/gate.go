package gate

import (
	"context"
	"log/slog"
	"strings"

	"github.com/mlukasik/venq/internal/intent"
	"github.com/mlukasik/venq/internal/memory"
)

// Status is the outcome of a field-completeness check.
type Status string

const (
	StatusOK      Status = "ok"
	StatusMissing Status = "missing"
)

// Result carries the gate decision. When Status is StatusMissing the caller
// must stop before any generation or execution; Message is suitable for
// returning to the user as-is.
type Result struct {
	Status        Status
	Fields        intent.FieldSet
	MissingFields []string
	Message       string
}

// Extractor is the field-extraction dependency of the gate.
type Extractor interface {
	Extract(ctx context.Context, text string) (intent.FieldSet, error)
}

// Gate is the single choke point for the field-completeness invariant.
type Gate struct {
	extractor Extractor
	merger    *Merger
	slots     memory.Slots
}

// New creates a Gate.
func New(extractor Extractor, merger *Merger, slots memory.Slots) *Gate {
	return &Gate{extractor: extractor, merger: merger, slots: slots}
}

// CheckMissingFields validates field completeness for a turn. Text without
// write intent short-circuits to ok without invoking extraction. Extraction
// failure conservatively reports every required field as missing. When all
// fields resolve, the result set is persisted as the user's last known
// fields (best effort) before returning ok.
func (g *Gate) CheckMissingFields(ctx context.Context, text, userID string) Result {
	if !intent.IsWriteIntent(text) {
		return Result{Status: StatusOK}
	}

	extracted, err := g.extractor.Extract(ctx, text)
	if err != nil {
		slog.Warn("gate: extraction failed, reporting all fields missing", "user_id", userID, "error", err)
		return Result{
			Status:        StatusMissing,
			MissingFields: append([]string(nil), intent.RequiredFields...),
			Message:       "Could not parse vendor details. Please provide: " + strings.Join(intent.RequiredFields, ", ") + ".",
		}
	}

	merged := g.merger.Merge(ctx, userID, extracted, text)

	if missing := merged.Missing(); len(missing) > 0 {
		return Result{
			Status:        StatusMissing,
			Fields:        merged,
			MissingFields: missing,
			Message:       "Please provide the following details: " + strings.Join(missing, ", ") + ".",
		}
	}

	if err := g.slots.SetLastFields(ctx, userID, merged); err != nil {
		// Not fatal: the turn proceeds, the slot write is best effort.
		slog.Warn("gate: storing resolved fields failed", "user_id", userID, "error", err)
	}

	return Result{Status: StatusOK, Fields: merged}
}
