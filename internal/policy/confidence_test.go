package policy

import (
	"math"
	"strings"
	"testing"

	"github.com/joseph-ayodele/policy-extractor/internal/entity"
)

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestScoreBase(t *testing.T) {
	if got := Score("", nil); !approx(got, 0.30) {
		t.Fatalf("expected 0.30, got %v", got)
	}
}

func TestScoreLengthBonuses(t *testing.T) {
	long := strings.Repeat("x", 1001)
	if got := Score(long, nil); !approx(got, 0.40) {
		t.Fatalf("expected 0.40 for >1000 chars, got %v", got)
	}
	veryLong := strings.Repeat("x", 5001)
	if got := Score(veryLong, nil); !approx(got, 0.50) {
		t.Fatalf("expected 0.50 for >5000 chars, got %v", got)
	}
}

func TestScoreCountsDistinctKeywords(t *testing.T) {
	if got := Score("policy policy policy", nil); !approx(got, 0.31) {
		t.Fatalf("expected one distinct keyword, got %v", got)
	}
	all := strings.Join(Keywords, " ")
	if got := Score(all, nil); !approx(got, 0.40) {
		t.Fatalf("keyword bonus should cap at 0.10, got %v", got)
	}
}

func TestKeywordCountVocabulary(t *testing.T) {
	if got := KeywordCount("peril endorsement underwriting claim"); got != 4 {
		t.Fatalf("expected 4 keywords, got %d", got)
	}
	if got := KeywordCount("insurance effective expiration mortgagee"); got != 0 {
		t.Fatalf("expected no keywords, got %d", got)
	}
	if got := KeywordCount("CLAIM Claim claim"); got != 1 {
		t.Fatalf("keywords are distinct and case-insensitive, got %d", got)
	}
	if got := Score("peril endorsement underwriting claim", nil); !approx(got, 0.34) {
		t.Fatalf("expected 0.34, got %v", got)
	}
}

func TestScoreClampsToOne(t *testing.T) {
	var f entity.PolicyFields
	for _, n := range entity.FieldNames {
		f.Set(n, "x1")
	}
	text := strings.Repeat(strings.Join(Keywords, " ")+" ", 100)
	if got := Score(text, &f); got != 1.0 {
		t.Fatalf("expected clamp to 1.0, got %v", got)
	}
}

func TestScoreIsMonotonicInFields(t *testing.T) {
	text := "policy coverage"
	for _, n := range entity.FieldNames {
		var without entity.PolicyFields
		with := entity.PolicyFields{}
		with.Set(n, "value 1")
		if Score(text, &with) < Score(text, &without) {
			t.Fatalf("adding %s decreased the score", n)
		}
	}
}

func TestScoreEndToEndExample(t *testing.T) {
	text := "Policy Number: P-123456\nInsured: Jane Doe\nThis document describes coverage.\n" +
		strings.Repeat("Lorem ipsum dolor sit amet consectetur adipiscing elit. ", 20)
	if n := len(text); n <= 1000 || n > 5000 {
		t.Fatalf("fixture length %d out of range", n)
	}
	f := Parse(text)
	assertField(t, f, entity.FieldPolicyNumber, "P-123456")
	assertField(t, f, entity.FieldInsuredName, "Jane Doe")
	if f.Count() != 2 {
		t.Fatalf("expected exactly two fields, got %v", f.Populated())
	}
	if got := Score(text, &f); !approx(got, 0.63) {
		t.Fatalf("expected 0.63, got %v", got)
	}
}
