// Package policy turns raw policy document text into PolicyFields and scores
// how much of a declarations page was recovered.
package policy

import (
	"github.com/joseph-ayodele/policy-extractor/internal/entity"
)

// Parse extracts PolicyFields from text using the ordered rule table.
// It is pure and deterministic; fields that no rule matches stay nil.
func Parse(text string) entity.PolicyFields {
	var out entity.PolicyFields
	if text == "" {
		return out
	}
	for _, fr := range fieldTable {
		if v, ok := fr.match(text); ok {
			out.Set(fr.field, v)
		}
	}
	eff, exp := extractDates(text)
	out.Set(entity.FieldEffectiveDate, eff)
	out.Set(entity.FieldExpirationDate, exp)
	return out
}
