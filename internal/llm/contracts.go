package llm

import (
	"context"
	"fmt"

	"github.com/joseph-ayodele/policy-extractor/internal/entity"
)

// AnalyzeRequest is a raw document handed to a cloud document-AI backend.
type AnalyzeRequest struct {
	Data     []byte
	MIMEType string
	FileName string
}

// Analysis is the normalized answer we want from the model: the transcribed
// text plus, when the backend structures the document itself, the fields.
type Analysis struct {
	Text       string
	Fields     *entity.PolicyFields
	PageCount  int
	Confidence float64 // 0 when the model did not report one
}

// DocumentAnalyzer is the interface the cloud tier depends on.
type DocumentAnalyzer interface {
	Name() string
	Analyze(ctx context.Context, req AnalyzeRequest) (Analysis, []byte /*rawJSON*/, error)
}

// StatusError carries the HTTP status of a failed backend call so callers
// can decide whether it is worth retrying.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("non-2xx status: %d", e.Code)
}

// Retryable reports whether the status is transient (throttling or a server fault).
func (e *StatusError) Retryable() bool {
	return e.Code == 429 || e.Code >= 500
}

// wireAnalysis mirrors BuildPolicyJSONSchema.
type wireAnalysis struct {
	ExtractedText string              `json:"extracted_text"`
	PageCount     int                 `json:"page_count,omitempty"`
	Confidence    float64             `json:"confidence,omitempty"`
	Fields        entity.PolicyFields `json:"fields"`
}

func (w wireAnalysis) toAnalysis() Analysis {
	out := Analysis{
		Text:       w.ExtractedText,
		PageCount:  w.PageCount,
		Confidence: w.Confidence,
	}
	f := w.Fields
	// re-set through the accessor so blank strings become nil
	clean := entity.PolicyFields{}
	for _, n := range entity.FieldNames {
		clean.Set(n, f.Value(n))
	}
	if clean.Count() > 0 {
		out.Fields = &clean
	}
	return out
}
