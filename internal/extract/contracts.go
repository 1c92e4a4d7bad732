// Package extract holds the capability providers the orchestrator escalates
// through: the embedded PDF text layer, local OCR and a cloud document model.
package extract

import (
	"context"
	"time"

	"github.com/joseph-ayodele/policy-extractor/constants"
	"github.com/joseph-ayodele/policy-extractor/internal/entity"
)

// Document is the read-only payload handed to every provider.
type Document struct {
	Content  []byte
	MIMEType string
	FileName string
}

// Provider turns a document into text. Implementations must be safe for
// concurrent use.
type Provider interface {
	Method() constants.Method
	Extract(ctx context.Context, doc Document) (ProviderResult, error)
}

// ProviderResult is one provider's answer. Fields and Confidence are only set
// by providers that structure the document themselves.
type ProviderResult struct {
	Text       string
	Method     constants.Method
	PageCount  int
	Success    bool
	Error      string
	Fields     *entity.PolicyFields
	Confidence float64
	Duration   time.Duration
	Warnings   []string
}

func failed(method constants.Method, err error) ProviderResult {
	return ProviderResult{Method: method, Error: err.Error()}
}
