// Package sqlcheck normalizes and safety-checks generated SQL before it may
// be executed.
package sqlcheck

import (
	"fmt"
	"regexp"
	"strings"
)

const (
	// CanonicalTable is the vendor table every statement must target.
	CanonicalTable = "user_vendor_info"
	// deprecatedTable is the retired name models still occasionally emit.
	deprecatedTable = "user_vendor_data"
)

var (
	deprecatedTableRe = regexp.MustCompile(`(?i)` + deprecatedTable)
	fenceRe           = regexp.MustCompile("(?i)```sql|```")

	statementPrefixes = []string{"select", "insert", "update", "delete"}
	unsafeKeywords    = []string{"drop", "truncate", "alter"}
)

// UnsafeQueryError reports a statement rejected before execution.
type UnsafeQueryError struct {
	Reason string
}

func (e *UnsafeQueryError) Error() string {
	return e.Reason
}

// Normalize cleans up raw model output: code fences are stripped, any
// deprecated table reference is rewritten to the canonical name, and the
// result is classified. isSQL is false when the text does not lexically
// start with a known statement verb, in which case it is a direct
// natural-language answer and must skip the remaining pipeline stages.
func Normalize(raw string) (stmt string, isSQL bool) {
	stmt = strings.TrimSpace(fenceRe.ReplaceAllString(raw, ""))
	stmt = deprecatedTableRe.ReplaceAllString(stmt, CanonicalTable)

	lower := strings.ToLower(stmt)
	for _, prefix := range statementPrefixes {
		if strings.HasPrefix(lower, prefix) {
			return stmt, true
		}
	}
	return stmt, false
}

// Validate rejects statements containing a disallowed keyword and mutating
// statements without a WHERE clause.
func Validate(stmt string) error {
	lower := strings.ToLower(stmt)

	for _, kw := range unsafeKeywords {
		if strings.Contains(lower, kw) {
			return &UnsafeQueryError{Reason: fmt.Sprintf("unsafe SQL detected: %s", kw)}
		}
	}

	hasWhere := strings.Contains(lower, "where")
	if strings.HasPrefix(lower, "update") && !hasWhere {
		return &UnsafeQueryError{Reason: "unsafe UPDATE: missing WHERE clause"}
	}
	if strings.HasPrefix(lower, "delete") && !hasWhere {
		return &UnsafeQueryError{Reason: "unsafe DELETE: missing WHERE clause"}
	}
	return nil
}

// Verb returns the lower-cased leading statement verb ("select", "insert",
// "update", "delete") or "" when none matches.
func Verb(stmt string) string {
	lower := strings.ToLower(strings.TrimSpace(stmt))
	for _, prefix := range statementPrefixes {
		if strings.HasPrefix(lower, prefix) {
			return prefix
		}
	}
	return ""
}
