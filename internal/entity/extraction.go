package entity

import (
	"time"

	"github.com/joseph-ayodele/policy-extractor/constants"
)

// ExtractionRequest is one document submitted for extraction.
type ExtractionRequest struct {
	Content      []byte `json:"-"`
	MIMEType     string `json:"mime_type"`
	FileName     string `json:"file_name"`
	TenantID     string `json:"tenant_id,omitempty"`
	ForcePremium bool   `json:"force_premium,omitempty"`
}

// NewExtractionRequest copies content so later caller mutations cannot
// leak into an in-flight extraction.
func NewExtractionRequest(content []byte, mimeType, fileName, tenantID string, forcePremium bool) ExtractionRequest {
	buf := make([]byte, len(content))
	copy(buf, content)
	return ExtractionRequest{
		Content:      buf,
		MIMEType:     mimeType,
		FileName:     fileName,
		TenantID:     tenantID,
		ForcePremium: forcePremium,
	}
}

// Size returns the payload length in bytes.
func (r ExtractionRequest) Size() int64 { return int64(len(r.Content)) }

// Attempt records one provider invocation.
type Attempt struct {
	Method      constants.Method `json:"method"`
	Success     bool             `json:"success"`
	Confidence  float64          `json:"confidence"`
	TextLength  int              `json:"text_length"`
	PageCount   int              `json:"page_count,omitempty"`
	FieldsFound int              `json:"fields_found"`
	Duration    time.Duration    `json:"duration"`
	Error       string           `json:"error,omitempty"`
}

// ExtractionMetadata describes how a result was produced.
type ExtractionMetadata struct {
	FileName         string             `json:"file_name"`
	FileSize         int64              `json:"file_size"`
	MIMEType         string             `json:"mime_type"`
	PageCount        int                `json:"page_count,omitempty"`
	MethodsAttempted []constants.Method `json:"methods_attempted"`
	Attempts         []Attempt          `json:"attempts,omitempty"`
	Error            string             `json:"error,omitempty"`
}

// ExtractionResult is the terminal outcome of one extraction.
// A failed extraction is still a result, never a Go error.
type ExtractionResult struct {
	Success        bool               `json:"success"`
	Fields         *PolicyFields      `json:"fields,omitempty"`
	ExtractedText  string             `json:"extracted_text"`
	Confidence     float64            `json:"confidence"`
	Method         constants.Method   `json:"method"`
	Cost           float64            `json:"cost"`
	ProcessingTime time.Duration      `json:"processing_time"`
	Metadata       ExtractionMetadata `json:"metadata"`
}

// FailedResult builds a failure result for req carrying err's message.
func FailedResult(req ExtractionRequest, err error, attempted []constants.Method) ExtractionResult {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	if attempted == nil {
		attempted = []constants.Method{}
	}
	return ExtractionResult{
		Success:    false,
		Confidence: 0,
		Method:     constants.MethodNone,
		Metadata: ExtractionMetadata{
			FileName:         req.FileName,
			FileSize:         req.Size(),
			MIMEType:         req.MIMEType,
			MethodsAttempted: attempted,
			Error:            msg,
		},
	}
}
