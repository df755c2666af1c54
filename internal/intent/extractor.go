package intent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/mlukasik/venq/internal/llm"
)

// ErrExtraction is returned when the model output cannot be parsed into a
// FieldSet. Callers treat it as "all required fields missing", never a crash.
var ErrExtraction = errors.New("field extraction failed")

// Chatter is the interface for deterministic chat completion used by the
// Extractor.
type Chatter interface {
	ChatJSON(ctx context.Context, messages []llm.Message) (string, error)
}

// Extractor pulls the required vendor fields out of free text using a
// language model under a strict explicit-only contract: values are copied
// from the user's words, never inferred.
type Extractor struct {
	client Chatter
}

// NewExtractor creates an Extractor using the given completion client.
func NewExtractor(client Chatter) *Extractor {
	return &Extractor{client: client}
}

const extractionPrompt = `You are a strict extraction engine. Your sole job is to pull field values exactly as provided by the user.
Instructions:
1. Only extract fields explicitly mentioned by the user. Do NOT assume or fill in missing fields.
2. Your output must be a JSON object with keys exactly: user_id, user_name, email, vendor_name, vendor_status, last_updated.
3. Missing values must be empty strings or null.
4. Avoid any commentary, explanations, or extra output. Only respond with the JSON object.

Example input: 'Update vendor Acme with new email test@acme.com'
Expected JSON output:
{"vendor_name": "Acme", "email": "test@acme.com", "user_id": "", "user_name": "", "vendor_status": "", "last_updated": ""}`

// Extract asks the model for the required fields stated in text. The result
// always contains exactly the required keys: unknown keys are dropped and
// absent ones default to empty. Any decode failure yields ErrExtraction.
func (e *Extractor) Extract(ctx context.Context, text string) (FieldSet, error) {
	raw, err := e.client.ChatJSON(ctx, []llm.Message{
		{Role: "system", Content: "You output strictly valid JSON and nothing else."},
		{Role: "user", Content: extractionPrompt + "\n\nUser input:\n" + text},
	})
	if err != nil {
		slog.Warn("field extraction chat failed", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrExtraction, err)
	}

	var data map[string]any
	if err := json.Unmarshal([]byte(StripCodeFences(raw)), &data); err != nil {
		slog.Warn("failed to unmarshal extracted fields", "error", err, "response", raw)
		return nil, fmt.Errorf("%w: %v", ErrExtraction, err)
	}

	// Force the result to exactly the required key set.
	fields := make(FieldSet, len(RequiredFields))
	for _, key := range RequiredFields {
		fields[key] = stringify(data[key])
	}
	return fields, nil
}

var (
	fenceOpenRe  = regexp.MustCompile("(?i)^```json\\s*|^```\\s*")
	fenceCloseRe = regexp.MustCompile("\\s*```$")
)

// StripCodeFences removes a surrounding Markdown code fence, with or without
// a json language tag, if present.
func StripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	s = fenceOpenRe.ReplaceAllString(s, "")
	s = fenceCloseRe.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

// stringify renders a decoded JSON value as a field string. Null and empty
// values collapse to "".
func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case float64:
		// JSON numbers for ids and dates keep their literal form.
		if t == float64(int64(t)) {
			return fmt.Sprintf("%d", int64(t))
		}
		return fmt.Sprintf("%v", t)
	default:
		return fmt.Sprintf("%v", t)
	}
}
