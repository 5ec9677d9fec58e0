// Package replication forwards the normalized tables to an analytical store
// incrementally, watermarked on each row's creation timestamp, with
// personally identifying fields masked before anything leaves the database.
package replication

// MaskName partially masks a person's name: the first rune of each word is
// kept so analysts can still eyeball joins, the rest is starred out.
func MaskName(name string) string {
	masked := make([]rune, 0, len(name))
	wordStart := true
	for _, r := range name {
		switch {
		case r == ' ' || r == '\t':
			masked = append(masked, r)
			wordStart = true
		case wordStart:
			masked = append(masked, r)
			wordStart = false
		default:
			masked = append(masked, '*')
		}
	}
	return string(masked)
}

// MaskIdentifier fully masks national IDs, phone numbers and similar
// identifiers, preserving only the length.
func MaskIdentifier(id string) string {
	masked := make([]rune, 0, len(id))
	for range id {
		masked = append(masked, '*')
	}
	return string(masked)
}

// maskPolicy names the columns to mask per table. Institutional names
// (organizations, facilities, schools) are not personal data and pass
// through unmasked.
var maskPolicy = map[string]struct {
	partial []string
	full    []string
}{
	"caregivers": {
		partial: []string{"name"},
		full:    []string{"national_id", "phone"},
	},
	"beneficiaries": {
		partial: []string{"name"},
		full:    []string{"birth_cert_no", "ncpwd_no"},
	},
	"community_health_workers": {
		partial: []string{"name"},
	},
	"case_events": {
		full: []string{"ccc_number", "household"},
	},
}

// maskRow applies the table's policy in place. Non-string and null values
// pass through untouched.
func maskRow(table string, row map[string]any) {
	policy, ok := maskPolicy[table]
	if !ok {
		return
	}
	for _, col := range policy.partial {
		if v, ok := row[col].(string); ok {
			row[col] = MaskName(v)
		}
	}
	for _, col := range policy.full {
		if v, ok := row[col].(string); ok {
			row[col] = MaskIdentifier(v)
		}
	}
}
