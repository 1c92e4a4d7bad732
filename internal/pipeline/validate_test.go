package pipeline

import (
	"math"
	"reflect"
	"strings"
	"testing"

	"github.com/joseph-ayodele/policy-extractor/constants"
	"github.com/joseph-ayodele/policy-extractor/internal/entity"
)

func fieldsWith(names ...entity.FieldName) *entity.PolicyFields {
	f := &entity.PolicyFields{}
	for _, n := range names {
		f.Set(n, "value 1")
	}
	return f
}

var longEnough = strings.Repeat("policy declarations text ", 4)

func TestValidate(t *testing.T) {
	cases := []struct {
		name        string
		res         entity.ExtractionResult
		valid       bool
		conf        float64
		issues      []string
		suggestions int
	}{
		{
			name: "complete",
			res: entity.ExtractionResult{Success: true, Confidence: 0.9, ExtractedText: longEnough,
				Fields: fieldsWith(entity.FieldPolicyNumber, entity.FieldInsuredName, entity.FieldEffectiveDate)},
			valid:  true,
			conf:   0.9,
			issues: []string{},
		},
		{
			name: "one missing field",
			res: entity.ExtractionResult{Success: true, Confidence: 0.9, ExtractedText: longEnough,
				Fields: fieldsWith(entity.FieldPolicyNumber, entity.FieldInsuredName)},
			conf:        0.8,
			issues:      []string{"Missing effective date"},
			suggestions: 1,
		},
		{
			name:        "short text",
			res:         entity.ExtractionResult{Success: true, Confidence: 0.9, ExtractedText: "too short", Fields: fieldsWith(entity.FieldPolicyNumber, entity.FieldInsuredName, entity.FieldEffectiveDate)},
			conf:        0.6,
			issues:      []string{"Insufficient text extracted"},
			suggestions: 1,
		},
		{
			name:   "failed extraction",
			res:    entity.FailedResult(entity.ExtractionRequest{FileName: "x.pdf"}, nil, []constants.Method{constants.MethodPDFText}),
			conf:   0,
			issues: []string{"Extraction failed", "Insufficient text extracted"},
			// no fields, so no field checks
			suggestions: 1,
		},
		{
			name: "all critical fields missing floors at zero",
			res: entity.ExtractionResult{Success: true, Confidence: 0.35, ExtractedText: "short",
				Fields: &entity.PolicyFields{}},
			conf: 0,
			issues: []string{
				"Insufficient text extracted",
				"Missing policy number",
				"Missing insured name",
				"Missing effective date",
			},
			suggestions: 2,
		},
		{
			name:   "no issues but low confidence",
			res:    entity.ExtractionResult{Success: true, Confidence: 0.5, ExtractedText: longEnough, Fields: fieldsWith(entity.FieldPolicyNumber, entity.FieldInsuredName, entity.FieldEffectiveDate)},
			conf:   0.5,
			issues: []string{},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Validate(tc.res)
			if got.IsValid != tc.valid {
				t.Fatalf("valid: expected %v, got %v (%+v)", tc.valid, got.IsValid, got)
			}
			if math.Abs(got.Confidence-tc.conf) > 1e-9 {
				t.Fatalf("confidence: expected %v, got %v", tc.conf, got.Confidence)
			}
			if !reflect.DeepEqual(got.Issues, tc.issues) {
				t.Fatalf("issues: expected %v, got %v", tc.issues, got.Issues)
			}
			if len(got.Suggestions) != tc.suggestions {
				t.Fatalf("suggestions: expected %d, got %v", tc.suggestions, got.Suggestions)
			}
		})
	}
}

func TestValidateDoesNotMutate(t *testing.T) {
	res := entity.ExtractionResult{Success: true, Confidence: 0.9, ExtractedText: "short", Fields: &entity.PolicyFields{}}
	Validate(res)
	if res.Confidence != 0.9 || res.Fields.Count() != 0 {
		t.Fatalf("input changed: %+v", res)
	}
}
