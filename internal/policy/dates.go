package policy

import (
	"regexp"
)

var (
	reDate = regexp.MustCompile(
		`\b\d{1,2}[/\-]\d{1,2}[/\-](?:\d{4}|\d{2})\b` +
			`|(?i:\b(?:jan(?:uary)?|feb(?:ruary)?|mar(?:ch)?|apr(?:il)?|may|june?|july?|aug(?:ust)?|sep(?:t(?:ember)?)?|oct(?:ober)?|nov(?:ember)?|dec(?:ember)?)\.?[ \t]+\d{1,2},?[ \t]+\d{4})\b`,
	)
	reEffectiveIndicator  = regexp.MustCompile(`(?i)\b(?:effective(?:[ \t]+date)?|policy[ \t]+(?:period|from|begins)|inception(?:[ \t]+date)?)\b`)
	reExpirationIndicator = regexp.MustCompile(`(?i)\b(?:expiration(?:[ \t]+date)?|expires?|expiry|until)\b`)
)

type dateToken struct {
	value string
	start int
}

func findDates(text string) []dateToken {
	locs := reDate.FindAllStringIndex(text, -1)
	out := make([]dateToken, 0, len(locs))
	for _, l := range locs {
		out = append(out, dateToken{value: text[l[0]:l[1]], start: l[0]})
	}
	return out
}

func distinctValues(tokens []dateToken) []string {
	seen := make(map[string]struct{}, len(tokens))
	var out []string
	for _, t := range tokens {
		if _, ok := seen[t.value]; ok {
			continue
		}
		seen[t.value] = struct{}{}
		out = append(out, t.value)
	}
	return out
}

// nearest returns the token closest to anchor, skipping values equal to exclude.
// Ties go to the earlier token.
func nearest(tokens []dateToken, anchor int, exclude string) (dateToken, bool) {
	best, found, bestDist := dateToken{}, false, 0
	for _, t := range tokens {
		if exclude != "" && t.value == exclude {
			continue
		}
		d := t.start - anchor
		if d < 0 {
			d = -d
		}
		if !found || d < bestDist {
			best, found, bestDist = t, true, d
		}
	}
	return best, found
}

// extractDates resolves the effective and expiration dates.
//
// With both an effective and an expiration indicator present, each takes the
// date nearest to where its indicator ends; the expiration date must differ
// from the effective one. Otherwise the first two distinct dates are used in
// order of appearance.
func extractDates(text string) (effective, expiration string) {
	tokens := findDates(text)
	distinct := distinctValues(tokens)
	if len(distinct) == 0 {
		return "", ""
	}

	effLoc := reEffectiveIndicator.FindStringIndex(text)
	expLoc := reExpirationIndicator.FindStringIndex(text)
	if effLoc != nil && expLoc != nil && len(distinct) >= 2 {
		eff, _ := nearest(tokens, effLoc[1], "")
		if exp, ok := nearest(tokens, expLoc[1], eff.value); ok {
			return eff.value, exp.value
		}
	}

	effective = distinct[0]
	if len(distinct) > 1 {
		expiration = distinct[1]
	}
	return effective, expiration
}
