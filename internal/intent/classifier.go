package intent

import "strings"

// writeIntentKeywords are the phrases that signal the user wants a mutating
// database operation. False negatives are acceptable; a false positive only
// costs one extra validation round.
var writeIntentKeywords = []string{
	"add",
	"insert",
	"update",
	"modify",
	"change",
	"create",
	"new vendor",
	"upsert",
}

// IsWriteIntent reports whether the text looks like a request for a mutating
// database operation. Pure substring matching on the lower-cased input.
func IsWriteIntent(text string) bool {
	t := strings.ToLower(text)
	for _, kw := range writeIntentKeywords {
		if strings.Contains(t, kw) {
			return true
		}
	}
	return false
}
