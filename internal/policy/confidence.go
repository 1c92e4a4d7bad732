package policy

import (
	"math"
	"strings"
	"unicode/utf8"

	"github.com/joseph-ayodele/policy-extractor/internal/entity"
)

const (
	baseConfidence    = 0.30
	longTextBonus     = 0.10 // > longTextChars
	veryLongTextBonus = 0.10 // > veryLongTextChars, on top of longTextBonus
	longTextChars     = 1000
	veryLongTextChars = 5000
	keywordWeight     = 0.01
	keywordBonusCap   = 0.10
)

var fieldWeights = []struct {
	field  entity.FieldName
	weight float64
}{
	{entity.FieldPolicyNumber, 0.10},
	{entity.FieldInsuredName, 0.10},
	{entity.FieldInsurerName, 0.05},
	{entity.FieldPropertyAddress, 0.05},
	{entity.FieldEffectiveDate, 0.05},
	{entity.FieldExpirationDate, 0.05},
	{entity.FieldDwellingLimit, 0.05},
	{entity.FieldDeductibleAmount, 0.05},
}

// Keywords is the insurance vocabulary counted by the keyword bonus.
var Keywords = []string{
	"policy", "coverage", "insured", "premium", "deductible", "liability",
	"property", "dwelling", "peril", "endorsement", "underwriting", "claim",
}

// Score estimates how trustworthy an extraction is from the text volume,
// the fields recovered and the insurance vocabulary present. Result is in [0,1].
func Score(text string, fields *entity.PolicyFields) float64 {
	c := baseConfidence

	n := utf8.RuneCountInString(text)
	if n > longTextChars {
		c += longTextBonus
	}
	if n > veryLongTextChars {
		c += veryLongTextBonus
	}

	for _, fw := range fieldWeights {
		if fields.Has(fw.field) {
			c += fw.weight
		}
	}

	c += math.Min(keywordBonusCap, keywordWeight*float64(KeywordCount(text)))
	return clamp(c)
}

// KeywordCount returns how many distinct vocabulary terms occur in text.
func KeywordCount(text string) int {
	lower := strings.ToLower(text)
	n := 0
	for _, k := range Keywords {
		if strings.Contains(lower, k) {
			n++
		}
	}
	return n
}

func clamp(c float64) float64 {
	c = math.Round(c*10000) / 10000
	return math.Max(0, math.Min(1, c))
}
