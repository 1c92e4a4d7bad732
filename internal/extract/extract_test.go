package extract

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/joseph-ayodele/policy-extractor/constants"
	"github.com/joseph-ayodele/policy-extractor/internal/entity"
	"github.com/joseph-ayodele/policy-extractor/internal/llm"
	"github.com/joseph-ayodele/policy-extractor/internal/ocr"
	"github.com/joseph-ayodele/policy-extractor/internal/resilience"
)

type fakeEngine struct {
	text    ocr.Result
	textErr error
	ocr     ocr.Result
	ocrErr  error
	mime    string
}

func (f *fakeEngine) TextLayer(context.Context, []byte) (ocr.Result, error) {
	return f.text, f.textErr
}

func (f *fakeEngine) OCR(_ context.Context, _ []byte, mime string) (ocr.Result, error) {
	f.mime = mime
	return f.ocr, f.ocrErr
}

type fakeAnalyzer struct {
	calls int
	errs  []error
	out   llm.Analysis
}

func (f *fakeAnalyzer) Name() string { return "fake" }

func (f *fakeAnalyzer) Analyze(context.Context, llm.AnalyzeRequest) (llm.Analysis, []byte, error) {
	f.calls++
	if len(f.errs) >= f.calls && f.errs[f.calls-1] != nil {
		return llm.Analysis{}, nil, f.errs[f.calls-1]
	}
	return f.out, []byte(`{}`), nil
}

func fastExecutor() *resilience.Executor {
	return resilience.NewExecutor(resilience.Fast(3), nil)
}

func TestTextLayerProvider(t *testing.T) {
	fe := &fakeEngine{text: ocr.Result{Text: "Policy Number: HO-1234567", Pages: 3}}
	p := NewTextLayerProvider(fe, nil)

	res, err := p.Extract(context.Background(), Document{Content: []byte("%PDF"), MIMEType: "application/pdf"})
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if !res.Success || res.PageCount != 3 || res.Method != constants.MethodPDFText {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestTextLayerProviderEmptyText(t *testing.T) {
	p := NewTextLayerProvider(&fakeEngine{text: ocr.Result{Text: "  \n"}}, nil)
	res, err := p.Extract(context.Background(), Document{MIMEType: "application/pdf"})
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if res.Success || res.Error == "" {
		t.Fatalf("expected unsuccessful result, got %+v", res)
	}
}

func TestTextLayerProviderRejectsImages(t *testing.T) {
	p := NewTextLayerProvider(&fakeEngine{}, nil)
	res, err := p.Extract(context.Background(), Document{MIMEType: "image/png"})
	if err != nil || res.Success {
		t.Fatalf("expected soft failure, got %+v, %v", res, err)
	}
}

func TestOCRProviderUnreadableScanIsSoftFailure(t *testing.T) {
	fe := &fakeEngine{ocrErr: errors.New("tesseract: exit status 1")}
	p := NewOCRProvider(fe, nil)

	res, err := p.Extract(context.Background(), Document{MIMEType: "image/jpeg"})
	if err != nil {
		t.Fatalf("expected no error for a bad scan, got %v", err)
	}
	if res.Success || res.Error == "" || res.Method != constants.MethodOCR {
		t.Fatalf("unexpected %+v", res)
	}
	if fe.mime != "image/jpeg" {
		t.Fatalf("mime not forwarded")
	}
}

func TestOCRProviderPropagatesHostFault(t *testing.T) {
	missing := fmt.Errorf("%w: tesseract not found", ocr.ErrUnavailable)
	p := NewOCRProvider(&fakeEngine{ocrErr: missing}, nil)

	res, err := p.Extract(context.Background(), Document{MIMEType: "image/jpeg"})
	if !errors.Is(err, ocr.ErrUnavailable) || res.Success {
		t.Fatalf("unexpected %+v, %v", res, err)
	}
}

func TestTextLayerProviderBrokenPDFIsSoftFailure(t *testing.T) {
	p := NewTextLayerProvider(&fakeEngine{textErr: errors.New("pdftotext: exit status 1")}, nil)

	res, err := p.Extract(context.Background(), Document{MIMEType: "application/pdf"})
	if err != nil || res.Success || res.Error == "" {
		t.Fatalf("expected soft failure, got %+v, %v", res, err)
	}
}

func TestTextLayerProviderKeepsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := NewTextLayerProvider(&fakeEngine{textErr: context.Canceled}, nil)

	if _, err := p.Extract(ctx, Document{MIMEType: "application/pdf"}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
}

func TestCloudProviderRetriesThrottling(t *testing.T) {
	fields := &entity.PolicyFields{}
	fields.Set(entity.FieldPolicyNumber, "HO-1234567")
	fa := &fakeAnalyzer{
		errs: []error{&llm.StatusError{Code: 429}, nil},
		out:  llm.Analysis{Text: "text", PageCount: 2, Fields: fields, Confidence: 0.9},
	}
	p := NewCloudProvider(fa, nil, WithExecutor(fastExecutor()), WithRateLimit(1000, 1))

	res, err := p.Extract(context.Background(), Document{Content: []byte("x"), MIMEType: "application/pdf"})
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if fa.calls != 2 {
		t.Fatalf("expected one retry, got %d calls", fa.calls)
	}
	if !res.Success || res.PageCount != 2 || res.Confidence != 0.9 || res.Fields.Value(entity.FieldPolicyNumber) != "HO-1234567" {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestCloudProviderDoesNotRetryBadRequest(t *testing.T) {
	fa := &fakeAnalyzer{errs: []error{&llm.StatusError{Code: 400}}}
	p := NewCloudProvider(fa, nil, WithExecutor(fastExecutor()))

	res, err := p.Extract(context.Background(), Document{MIMEType: "application/pdf"})
	if err == nil || res.Success || fa.calls != 1 {
		t.Fatalf("expected single failed call, got calls=%d res=%+v err=%v", fa.calls, res, err)
	}
}

func TestClassifyCloudError(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want resilience.ErrorClassification
	}{
		{"canceled", context.Canceled, resilience.ErrorClassification{}},
		{"throttled", &llm.StatusError{Code: 429}, resilience.ErrorClassification{Retryable: true, RecordFailure: true}},
		{"server", &llm.StatusError{Code: 502}, resilience.ErrorClassification{Retryable: true, RecordFailure: true}},
		{"client", &llm.StatusError{Code: 401}, resilience.ErrorClassification{}},
		{"other", errors.New("schema validation failed"), resilience.ErrorClassification{RecordFailure: true}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ClassifyCloudError(tc.err); got != tc.want {
				t.Fatalf("ClassifyCloudError() = %+v, want %+v", got, tc.want)
			}
		})
	}
}
