package gemini

import (
	"context"
	"errors"
	"testing"

	"github.com/joseph-ayodele/policy-extractor/internal/entity"
	"github.com/joseph-ayodele/policy-extractor/internal/llm"
	"google.golang.org/genai"
)

type fakeModels struct {
	text     string
	err      error
	model    string
	contents []*genai.Content
	config   *genai.GenerateContentConfig
}

func (f *fakeModels) GenerateContent(_ context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.model, f.contents, f.config = model, contents, config
	if f.err != nil {
		return nil, f.err
	}
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{{Text: f.text}}},
		}},
	}, nil
}

func TestAnalyze(t *testing.T) {
	fm := &fakeModels{text: `{"extracted_text":"Named Insured: Jane Doe","page_count":3,"confidence":0.8,"fields":{"insured_name":"Jane Doe"}}`}
	c := newClient(Config{}, fm, nil)

	a, _, err := c.Analyze(context.Background(), llm.AnalyzeRequest{Data: []byte("heic"), MIMEType: "image/heic", FileName: "scan.heic"})
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if fm.model != "gemini-2.0-flash" {
		t.Fatalf("expected default model, got %q", fm.model)
	}
	if fm.config.ResponseMIMEType != "application/json" {
		t.Fatalf("expected json response type")
	}
	parts := fm.contents[0].Parts
	if len(parts) != 2 || parts[1].InlineData == nil || parts[1].InlineData.MIMEType != "image/heic" {
		t.Fatalf("expected inline document part")
	}
	if a.PageCount != 3 || a.Confidence != 0.8 || a.Fields.Value(entity.FieldInsuredName) != "Jane Doe" {
		t.Fatalf("unexpected analysis %+v", a)
	}
}

func TestAnalyzeMapsAPIError(t *testing.T) {
	fm := &fakeModels{err: genai.APIError{Code: 503, Message: "overloaded"}}
	c := newClient(Config{}, fm, nil)

	_, _, err := c.Analyze(context.Background(), llm.AnalyzeRequest{Data: []byte("x"), MIMEType: "application/pdf"})
	var se *llm.StatusError
	if !errors.As(err, &se) || se.Code != 503 {
		t.Fatalf("expected status error, got %v", err)
	}
}

func TestAnalyzeEmptyResponse(t *testing.T) {
	c := newClient(Config{}, &fakeModels{}, nil)
	if _, _, err := c.Analyze(context.Background(), llm.AnalyzeRequest{Data: []byte("x"), MIMEType: "application/pdf"}); err == nil {
		t.Fatalf("expected error")
	}
}
