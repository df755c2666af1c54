package intent

// RequiredFields is the closed, ordered set of business fields that must all
// be known before any mutating statement is generated. Order is significant
// in user-facing messages.
var RequiredFields = []string{
	"user_id",
	"user_name",
	"email",
	"vendor_name",
	"vendor_status",
	"last_updated",
}

// FieldSet maps required field keys to their values. A missing or unknown
// value is the empty string. One "last known" FieldSet is kept per user and
// replaced wholesale on each successful resolution.
type FieldSet map[string]string

// Missing returns the required keys whose values are empty, in required-key
// order.
func (f FieldSet) Missing() []string {
	var missing []string
	for _, key := range RequiredFields {
		if f[key] == "" {
			missing = append(missing, key)
		}
	}
	return missing
}

// Complete reports whether every required field has a value.
func (f FieldSet) Complete() bool {
	return len(f.Missing()) == 0
}

// Clone returns a copy of the FieldSet.
func (f FieldSet) Clone() FieldSet {
	out := make(FieldSet, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}
