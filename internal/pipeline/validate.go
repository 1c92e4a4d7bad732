package pipeline

import (
	"math"
	"unicode/utf8"

	"github.com/joseph-ayodele/policy-extractor/internal/entity"
)

const minValidTextLength = 50

var criticalFields = []entity.FieldName{
	entity.FieldPolicyNumber,
	entity.FieldInsuredName,
	entity.FieldEffectiveDate,
}

// Validate judges whether a finished result is usable as is. It only reads
// the result.
func Validate(res entity.ExtractionResult) entity.ValidationReport {
	report := entity.ValidationReport{Issues: []string{}, Suggestions: []string{}}
	conf := res.Confidence

	if !res.Success {
		report.Issues = append(report.Issues, "Extraction failed")
		conf = 0
	}

	if utf8.RuneCountInString(res.ExtractedText) < minValidTextLength {
		report.Issues = append(report.Issues, "Insufficient text extracted")
		report.Suggestions = append(report.Suggestions, "Try a higher resolution scan or a different file format")
		conf = math.Max(0, conf-0.30)
	}

	if res.Fields != nil {
		missing := 0
		for _, n := range criticalFields {
			if !res.Fields.Has(n) {
				report.Issues = append(report.Issues, "Missing "+n.Label())
				missing++
			}
		}
		if missing > 0 {
			report.Suggestions = append(report.Suggestions, "Verify the document contains all required information")
			conf = math.Max(0, conf-0.10*float64(missing))
		}
	}

	report.Confidence = math.Round(math.Max(0, math.Min(1, conf))*1e4) / 1e4
	report.IsValid = len(report.Issues) == 0 && report.Confidence > 0.5
	return report
}
