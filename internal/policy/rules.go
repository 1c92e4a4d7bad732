package policy

import (
	"regexp"
	"strings"

	"github.com/joseph-ayodele/policy-extractor/internal/entity"
)

// Label words are matched case-insensitively through scoped (?i:...) groups;
// captured values stay case-sensitive so "Insured: Jane Doe" yields a
// capitalized name and never a lowercase sentence fragment.
const (
	sep          = `[ \t]*[:#\-]?[ \t]*`
	nameCapture  = `([A-Z][A-Za-z .,&'\-]{2,50})`
	orgCapture   = `([A-Z][A-Za-z0-9 .,&'\-]{2,100})`
	addrCapture  = `([0-9][A-Za-z0-9 .,#'\-]{5,100})`
	codeCapture  = `([A-Z0-9][A-Z0-9\-]{5,19})`
	moneyCapture = `\$?[ \t]*(\d[\d,]*(?:\.\d{2})?)`

	// bare policy-number shapes are only trusted near the top of the document
	headerWindow = 2000
)

type rule struct {
	re     *regexp.Regexp
	window int // search only the first window bytes; 0 = whole text
}

type fieldRules struct {
	field  entity.FieldName
	rules  []rule
	clean  func(string) string
	accept func(string) bool
}

func r(pattern string) rule { return rule{re: regexp.MustCompile(pattern)} }

// fieldTable is evaluated in order; within a field the first accepted match wins.
// Dates are resolved separately (see dates.go) because they depend on indicator words.
var fieldTable = []fieldRules{
	{
		field: entity.FieldPolicyNumber,
		rules: []rule{
			r(`(?i:\bpolicy[ \t]*(?:number|num|no\.?|#|id))` + sep + codeCapture),
			r(`(?i:\bpolicy)[ \t]*:[ \t]*` + codeCapture),
			r(`(?i:\b(?:certificate|contract)[ \t]*(?:number|no\.?|#)?)` + sep + codeCapture),
			{re: regexp.MustCompile(`(?m)(?:^|[ \t])([A-Z]{2,5}[- ]?[0-9]{5,10})\b`), window: headerWindow},
		},
		clean:  cleanCode,
		accept: policyNumberShape,
	},
	{
		field: entity.FieldInsuredName,
		rules: []rule{
			r(`(?i:\bnamed[ \t]+insured(?:\(s\)|s)?)` + sep + nameCapture),
			r(`(?i:\binsured(?:[ \t]+name)?)[ \t]*:[ \t]*` + nameCapture),
			r(`(?i:\bpolicy[ \t]*holder(?:[ \t]+name)?)` + sep + nameCapture),
		},
		clean: cleanText,
	},
	{
		field: entity.FieldInsurerName,
		rules: []rule{
			r(`(?i:\b(?:insurance[ \t]+company|insurer|carrier|underwriter))` + sep + orgCapture),
			r(`(?i:\b(?:underwritten|issued)[ \t]+by)` + sep + orgCapture),
		},
		clean: cleanText,
	},
	{
		field: entity.FieldPropertyAddress,
		rules: []rule{
			r(`(?i:\b(?:property|insured|risk|residence)[ \t]+(?:address|location))` + sep + addrCapture),
			r(`(?i:\b(?:location|premises)[ \t]+(?:address|described|of[ \t]+property))` + sep + addrCapture),
			r(`(?i:\b(?:property|location))[ \t]*:[ \t]*` + addrCapture),
		},
		clean: cleanText,
	},
	{
		field: entity.FieldDwellingLimit,
		rules: []rule{
			r(`(?i:\b(?:coverage[ \t]+a|dwelling)(?:[ \t]+limit)?)` + sep + moneyCapture),
			r(`(?i:\bdwelling[ \t]+(?:coverage|protection|limit))` + sep + moneyCapture),
		},
		clean: cleanMoney,
	},
	{
		field: entity.FieldPersonalPropertyLimit,
		rules: []rule{
			r(`(?i:\b(?:coverage[ \t]+c|personal[ \t]+property)(?:[ \t]+limit)?)` + sep + moneyCapture),
			r(`(?i:\bpersonal[ \t]+property[ \t]+(?:coverage|protection|limit))` + sep + moneyCapture),
		},
		clean: cleanMoney,
	},
	{
		field: entity.FieldLiabilityLimit,
		rules: []rule{
			r(`(?i:\b(?:coverage[ \t]+e|personal[ \t]+liability|liability)(?:[ \t]+limit)?)` + sep + moneyCapture),
			r(`(?i:\bliability[ \t]+(?:coverage|protection|limit))` + sep + moneyCapture),
		},
		clean: cleanMoney,
	},
	{
		field: entity.FieldDeductibleAmount,
		rules: []rule{
			r(`(?i:\bdeductible)` + sep + moneyCapture),
			r(`(?i:\b(?:all[ \t]+(?:other[ \t]+)?perils?|aop)[ \t]+deductible)` + sep + moneyCapture),
		},
		clean: cleanMoney,
	},
	{
		field: entity.FieldMortgageeInfo,
		rules: []rule{
			r(`(?i:\b(?:mortgagee|lienholder|mortgage[ \t]+company|lender)(?:[ \t]+name)?)` + sep + orgCapture),
		},
		clean: cleanText,
	},
	{
		field: entity.FieldAgentInfo,
		rules: []rule{
			r(`(?i:\b(?:agent|producer|broker)\b(?:[ \t]+name)?)` + sep + orgCapture),
		},
		clean: cleanText,
	},
}

// match applies the rules of one field and returns the first accepted value.
func (fr fieldRules) match(text string) (string, bool) {
	for _, rl := range fr.rules {
		t := text
		if rl.window > 0 && len(t) > rl.window {
			t = t[:rl.window]
		}
		for _, m := range rl.re.FindAllStringSubmatch(t, -1) {
			if len(m) < 2 {
				continue
			}
			v := m[1]
			if fr.clean != nil {
				v = fr.clean(v)
			}
			if v == "" {
				continue
			}
			if fr.accept != nil && !fr.accept(v) {
				continue
			}
			return v, true
		}
	}
	return "", false
}

var reColumnGap = regexp.MustCompile(`[ \t]{2,}|\t`)

// cleanText cuts a capture at the first column gap (layout-preserving text
// puts neighbouring cells on the same line) and trims dangling punctuation.
func cleanText(s string) string {
	if loc := reColumnGap.FindStringIndex(s); loc != nil {
		s = s[:loc[0]]
	}
	s = strings.TrimRight(strings.TrimSpace(s), " ,&'-")
	if len(s) < 2 {
		return ""
	}
	return s
}

func cleanCode(s string) string {
	return strings.Trim(strings.TrimSpace(s), "-")
}

func cleanMoney(s string) string {
	s = strings.TrimRight(strings.TrimSpace(s), ",.")
	if s == "" {
		return ""
	}
	return "$" + s
}

func hasDigit(s string) bool {
	return strings.ContainsAny(s, "0123456789")
}

// reStateZIP is an address tail ("IL 62701") that the bare number shape also matches.
var reStateZIP = regexp.MustCompile(`^[A-Z]{2} [0-9]{5}$`)

func policyNumberShape(s string) bool {
	return hasDigit(s) && !reStateZIP.MatchString(s)
}
