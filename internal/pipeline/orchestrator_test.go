package pipeline

import (
	"context"
	"errors"
	"math"
	"reflect"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/joseph-ayodele/policy-extractor/constants"
	"github.com/joseph-ayodele/policy-extractor/internal/common"
	"github.com/joseph-ayodele/policy-extractor/internal/entity"
	"github.com/joseph-ayodele/policy-extractor/internal/extract"
)

const declarations = `HOMEOWNERS POLICY DECLARATIONS
Policy Number: HO-4455667
Named Insured: John A. Smith
Insurance Company: Acme Mutual Insurance Co.
Property Address: 123 Main Street, Springfield, IL 62701
Effective Date: 01/15/2025
Expiration Date: 01/15/2026
Coverage A - Dwelling: $350,000
Deductible: $1,000
`

const weakText = "scanned page with nothing useful on it"

type fakeProvider struct {
	method constants.Method
	res    extract.ProviderResult
	err    error
	panics bool
	delay  time.Duration
	calls  atomic.Int32
}

func (f *fakeProvider) Method() constants.Method { return f.method }

func (f *fakeProvider) Extract(ctx context.Context, _ extract.Document) (extract.ProviderResult, error) {
	f.calls.Add(1)
	if f.panics {
		panic("boom")
	}
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return extract.ProviderResult{}, ctx.Err()
		}
	}
	return f.res, f.err
}

func ok(method constants.Method, text string) *fakeProvider {
	return &fakeProvider{method: method, res: extract.ProviderResult{Method: method, Text: text, Success: true, PageCount: 1}}
}

func failing(method constants.Method, msg string) *fakeProvider {
	return &fakeProvider{method: method, err: errors.New(msg)}
}

type usageSink struct {
	mu   sync.Mutex
	recs []entity.UsageRecord
	err  error
}

func (s *usageSink) LogUsage(_ context.Context, rec entity.UsageRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recs = append(s.recs, rec)
	return s.err
}

func (s *usageSink) records() []entity.UsageRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]entity.UsageRecord(nil), s.recs...)
}

func pdfRequest(force bool) entity.ExtractionRequest {
	return entity.NewExtractionRequest([]byte("%PDF-1.7 fake"), "application/pdf", "policy.pdf", "org-1", force)
}

func drain(t *testing.T, o *Orchestrator) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := o.Drain(ctx); err != nil {
		t.Fatalf("drain: %v", err)
	}
}

func assertMethods(t *testing.T, res entity.ExtractionResult, want ...constants.Method) {
	t.Helper()
	if want == nil {
		want = []constants.Method{}
	}
	if !reflect.DeepEqual(res.Metadata.MethodsAttempted, want) {
		t.Fatalf("methods attempted: expected %v, got %v", want, res.Metadata.MethodsAttempted)
	}
}

func TestExtractAcceptsTextLayer(t *testing.T) {
	text := ok(constants.MethodPDFText, declarations)
	ocr := ok(constants.MethodOCR, declarations)
	sink := &usageSink{}
	o := NewOrchestrator(DefaultConfig(), Providers{Text: text, OCR: ocr}, nil, WithUsageLogger(sink))

	res := o.Extract(context.Background(), pdfRequest(false))
	drain(t, o)

	if !res.Success || res.Method != constants.MethodPDFText {
		t.Fatalf("expected pdf-text success, got %+v", res)
	}
	if res.Confidence <= 0.70 {
		t.Fatalf("expected confidence above the text threshold, got %v", res.Confidence)
	}
	if res.Cost != 0 {
		t.Fatalf("local tiers are free, got cost %v", res.Cost)
	}
	if got := res.Fields.Value(entity.FieldPolicyNumber); got != "HO-4455667" {
		t.Fatalf("policy number: %q", got)
	}
	assertMethods(t, res, constants.MethodPDFText)
	if ocr.calls.Load() != 0 {
		t.Fatal("ocr should not run after an accepted text layer")
	}

	recs := sink.records()
	if len(recs) != 1 {
		t.Fatalf("expected one usage record, got %d", len(recs))
	}
	r := recs[0]
	if r.TenantID != "org-1" || r.Method != constants.MethodPDFText || r.Outcome != constants.UsageOutcomeSuccess {
		t.Fatalf("unexpected usage record %+v", r)
	}
	if r.FileSize != int64(len("%PDF-1.7 fake")) {
		t.Fatalf("file size %d", r.FileSize)
	}
}

func TestExtractEscalatesToOCR(t *testing.T) {
	text := ok(constants.MethodPDFText, weakText)
	ocr := ok(constants.MethodOCR, declarations)
	cloud := ok(constants.MethodCloud, declarations)
	o := NewOrchestrator(DefaultConfig(), Providers{Text: text, OCR: ocr, Cloud: cloud}, nil)

	res := o.Extract(context.Background(), pdfRequest(false))

	if !res.Success || res.Method != constants.MethodOCR {
		t.Fatalf("expected ocr success, got %+v", res)
	}
	assertMethods(t, res, constants.MethodPDFText, constants.MethodOCR)
	if cloud.calls.Load() != 0 {
		t.Fatal("cloud should not run")
	}
	if len(res.Metadata.Attempts) != 2 || res.Metadata.Attempts[0].Success != true {
		t.Fatalf("unexpected attempt history %+v", res.Metadata.Attempts)
	}
}

func TestExtractTextBelowThresholdFallsThrough(t *testing.T) {
	// policy number and insured only: 0.63
	text := "Policy Number: P-123456\nInsured: Jane Doe\nThis document describes coverage.\n" +
		strings.Repeat("Lorem ipsum dolor sit amet consectetur adipiscing elit. ", 20)
	o := NewOrchestrator(DefaultConfig(), Providers{
		Text: ok(constants.MethodPDFText, text),
		OCR:  ok(constants.MethodOCR, text),
	}, nil)

	res := o.Extract(context.Background(), pdfRequest(false))

	if res.Method != constants.MethodOCR {
		t.Fatalf("0.63 should not be accepted from the text layer, got %s", res.Method)
	}
	if math.Abs(res.Confidence-0.63) > 1e-9 {
		t.Fatalf("expected 0.63, got %v", res.Confidence)
	}
}

func TestExtractAcceptsBestWithoutCloud(t *testing.T) {
	text := ok(constants.MethodPDFText, weakText)
	ocr := ok(constants.MethodOCR, "another weak page of text")
	cloud := ok(constants.MethodCloud, declarations)
	o := NewOrchestrator(DefaultConfig(), Providers{Text: text, OCR: ocr, Cloud: cloud}, nil)

	res := o.Extract(context.Background(), pdfRequest(false))

	if !res.Success {
		t.Fatalf("expected best-effort success, got %+v", res)
	}
	// equal scores: the later tier wins
	if res.Method != constants.MethodOCR {
		t.Fatalf("expected ocr to win the tie, got %s", res.Method)
	}
	if cloud.calls.Load() != 0 {
		t.Fatal("cloud must not run when a local tier succeeded")
	}
}

func TestExtractEscalatesToCloudWhenLocalTiersFail(t *testing.T) {
	cloud := &fakeProvider{method: constants.MethodCloud, res: extract.ProviderResult{
		Text:      declarations,
		Success:   true,
		PageCount: 3,
		Fields:    &entity.PolicyFields{},
	}}
	cloud.res.Fields.Set(entity.FieldPolicyNumber, "HO-4455667")
	o := NewOrchestrator(DefaultConfig(), Providers{
		Text:  failing(constants.MethodPDFText, "no text layer"),
		OCR:   failing(constants.MethodOCR, "tesseract missing"),
		Cloud: cloud,
	}, nil)

	res := o.Extract(context.Background(), pdfRequest(false))

	if !res.Success || res.Method != constants.MethodCloud {
		t.Fatalf("expected cloud success, got %+v", res)
	}
	if res.Confidence != 0.95 {
		t.Fatalf("expected default cloud confidence, got %v", res.Confidence)
	}
	if math.Abs(res.Cost-0.045) > 1e-9 {
		t.Fatalf("expected 3 pages x 0.015, got %v", res.Cost)
	}
	if res.Fields.Count() != 1 {
		t.Fatalf("cloud fields should be kept as returned, got %v", res.Fields.Populated())
	}
	assertMethods(t, res, constants.MethodPDFText, constants.MethodOCR, constants.MethodCloud)
}

func TestExtractAllProvidersFail(t *testing.T) {
	sink := &usageSink{}
	o := NewOrchestrator(DefaultConfig(), Providers{
		Text:  failing(constants.MethodPDFText, "no text layer"),
		OCR:   &fakeProvider{method: constants.MethodOCR, res: extract.ProviderResult{Error: "no text found"}},
		Cloud: failing(constants.MethodCloud, "quota exceeded"),
	}, nil, WithUsageLogger(sink))

	res := o.Extract(context.Background(), pdfRequest(false))
	drain(t, o)

	if res.Success || res.Method != constants.MethodNone || res.Confidence != 0 {
		t.Fatalf("expected failure, got %+v", res)
	}
	if res.Metadata.Error != "quota exceeded" {
		t.Fatalf("expected the last provider error, got %q", res.Metadata.Error)
	}
	assertMethods(t, res, constants.MethodPDFText, constants.MethodOCR, constants.MethodCloud)
	if recs := sink.records(); len(recs) != 1 || recs[0].Outcome != constants.UsageOutcomeFailed {
		t.Fatalf("expected one FAILED usage record, got %+v", recs)
	}
}

func TestExtractShortTextIsAFailedAttempt(t *testing.T) {
	o := NewOrchestrator(DefaultConfig(), Providers{Text: ok(constants.MethodPDFText, "  tiny  ")}, nil)

	res := o.Extract(context.Background(), pdfRequest(false))

	if res.Success {
		t.Fatalf("expected failure, got %+v", res)
	}
	if !strings.Contains(res.Metadata.Error, "insufficient text") {
		t.Fatalf("expected insufficient text error, got %q", res.Metadata.Error)
	}
	// unconfigured tiers are not listed
	assertMethods(t, res, constants.MethodPDFText)
}

func TestExtractRejectsBadInput(t *testing.T) {
	cases := []struct {
		name string
		req  entity.ExtractionRequest
		want string
	}{
		{"unsupported", entity.NewExtractionRequest([]byte("hello"), "text/plain", "a.txt", "", false), "unsupported document type"},
		{"empty", entity.NewExtractionRequest(nil, "application/pdf", "a.pdf", "", false), "empty document"},
		{"unsupported wins over empty", entity.NewExtractionRequest(nil, "application/zip", "a.zip", "", false), "unsupported document type"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			text := ok(constants.MethodPDFText, declarations)
			sink := &usageSink{}
			o := NewOrchestrator(DefaultConfig(), Providers{Text: text}, nil, WithUsageLogger(sink))

			res := o.Extract(context.Background(), tc.req)
			drain(t, o)

			if res.Success || !strings.Contains(res.Metadata.Error, tc.want) {
				t.Fatalf("expected %q failure, got %+v", tc.want, res)
			}
			assertMethods(t, res)
			if text.calls.Load() != 0 {
				t.Fatal("no provider should run for rejected input")
			}
			if recs := sink.records(); len(recs) != 1 || recs[0].Outcome != constants.UsageOutcomeRejected {
				t.Fatalf("expected one REJECTED usage record, got %+v", recs)
			}
		})
	}
}

func TestExtractImageSkipsTextLayer(t *testing.T) {
	text := ok(constants.MethodPDFText, declarations)
	ocr := ok(constants.MethodOCR, declarations)
	o := NewOrchestrator(DefaultConfig(), Providers{Text: text, OCR: ocr}, nil)

	req := entity.NewExtractionRequest([]byte{0x89, 'P', 'N', 'G'}, "image/png", "scan.png", "", false)
	res := o.Extract(context.Background(), req)

	if res.Method != constants.MethodOCR {
		t.Fatalf("expected ocr, got %s", res.Method)
	}
	if text.calls.Load() != 0 {
		t.Fatal("text layer must not run for images")
	}
	assertMethods(t, res, constants.MethodOCR)
}

func TestExtractForcePremiumAlwaysReachesCloud(t *testing.T) {
	cloud := &fakeProvider{method: constants.MethodCloud, res: extract.ProviderResult{
		Text: declarations, Success: true, Confidence: 0.97, Fields: &entity.PolicyFields{},
	}}
	cloud.res.Fields.Set(entity.FieldInsuredName, "John A. Smith")

	for _, viaConfig := range []bool{false, true} {
		cfg := DefaultConfig()
		cfg.ForcePremium = viaConfig
		o := NewOrchestrator(cfg, Providers{
			Text:  ok(constants.MethodPDFText, declarations),
			OCR:   ok(constants.MethodOCR, declarations),
			Cloud: cloud,
		}, nil)

		res := o.Extract(context.Background(), pdfRequest(!viaConfig))

		if res.Method != constants.MethodCloud || res.Confidence != 0.97 {
			t.Fatalf("expected cloud at 0.97, got %s at %v", res.Method, res.Confidence)
		}
		if math.Abs(res.Cost-0.015) > 1e-9 {
			t.Fatalf("zero pages bill as one, got %v", res.Cost)
		}
		assertMethods(t, res, constants.MethodPDFText, constants.MethodOCR, constants.MethodCloud)
	}
}

func TestExtractForcePremiumFallsBackToBestLocal(t *testing.T) {
	o := NewOrchestrator(DefaultConfig(), Providers{
		Text:  ok(constants.MethodPDFText, declarations),
		OCR:   ok(constants.MethodOCR, weakText),
		Cloud: failing(constants.MethodCloud, "unavailable"),
	}, nil)

	res := o.Extract(context.Background(), pdfRequest(true))

	if !res.Success || res.Method != constants.MethodPDFText {
		t.Fatalf("expected the stronger text layer result, got %+v", res)
	}
}

func TestExtractTierTimeout(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TextTierTimeout = 20 * time.Millisecond
	slow := ok(constants.MethodPDFText, declarations)
	slow.delay = time.Second
	o := NewOrchestrator(cfg, Providers{Text: slow, OCR: ok(constants.MethodOCR, declarations)}, nil)

	res := o.Extract(context.Background(), pdfRequest(false))

	if res.Method != constants.MethodOCR {
		t.Fatalf("expected escalation after timeout, got %+v", res)
	}
	if !strings.Contains(res.Metadata.Attempts[0].Error, "timed out") {
		t.Fatalf("expected timeout in history, got %q", res.Metadata.Attempts[0].Error)
	}
}

func TestExtractRecoversProviderPanic(t *testing.T) {
	boom := ok(constants.MethodPDFText, declarations)
	boom.panics = true
	o := NewOrchestrator(DefaultConfig(), Providers{Text: boom, OCR: ok(constants.MethodOCR, declarations)}, nil)

	res := o.Extract(context.Background(), pdfRequest(false))

	if !res.Success || res.Method != constants.MethodOCR {
		t.Fatalf("expected ocr after panic, got %+v", res)
	}
	if !strings.Contains(res.Metadata.Attempts[0].Error, common.ErrProviderPanic.Error()) {
		t.Fatalf("expected panic in history, got %q", res.Metadata.Attempts[0].Error)
	}
}

func TestExtractIgnoresUsageLoggerErrors(t *testing.T) {
	sink := &usageSink{err: errors.New("db down")}
	o := NewOrchestrator(DefaultConfig(), Providers{Text: ok(constants.MethodPDFText, declarations)}, nil, WithUsageLogger(sink))

	res := o.Extract(context.Background(), pdfRequest(false))
	drain(t, o)

	if !res.Success {
		t.Fatalf("usage errors must not affect the result, got %+v", res)
	}
	if len(sink.records()) != 1 {
		t.Fatal("usage logger was not called")
	}
}

func TestExtractDoesNotWaitForUsageLogger(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	slow := UsageLoggerFunc(func(ctx context.Context, _ entity.UsageRecord) error {
		close(started)
		select {
		case <-release:
		case <-ctx.Done():
		}
		return nil
	})
	o := NewOrchestrator(DefaultConfig(), Providers{Text: ok(constants.MethodPDFText, declarations)}, nil, WithUsageLogger(slow))

	done := make(chan entity.ExtractionResult, 1)
	go func() { done <- o.Extract(context.Background(), pdfRequest(false)) }()

	select {
	case res := <-done:
		if !res.Success {
			t.Fatalf("expected success, got %+v", res)
		}
	case <-time.After(time.Second):
		close(release)
		t.Fatal("extract blocked on the usage logger")
	}

	<-started
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := o.Drain(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("drain should wait for the pending record, got %v", err)
	}
	close(release)
	drain(t, o)
}

func TestExtractSurvivesPanickingUsageLogger(t *testing.T) {
	var calls atomic.Int32
	bad := UsageLoggerFunc(func(context.Context, entity.UsageRecord) error {
		calls.Add(1)
		panic("usage sink exploded")
	})
	o := NewOrchestrator(DefaultConfig(), Providers{Text: ok(constants.MethodPDFText, declarations)}, nil, WithUsageLogger(bad))

	res := o.Extract(context.Background(), pdfRequest(false))
	drain(t, o)

	if !res.Success || res.Method != constants.MethodPDFText {
		t.Fatalf("usage panic must not affect the result, got %+v", res)
	}
	if calls.Load() != 1 {
		t.Fatalf("expected one usage call, got %d", calls.Load())
	}

	// the orchestrator keeps serving after the panic
	if res := o.Extract(context.Background(), pdfRequest(false)); !res.Success {
		t.Fatalf("second extraction failed: %+v", res)
	}
	drain(t, o)
}

func TestExtractUsageTenantFromContext(t *testing.T) {
	sink := &usageSink{}
	o := NewOrchestrator(DefaultConfig(), Providers{Text: ok(constants.MethodPDFText, declarations)}, nil, WithUsageLogger(sink))

	ctx, cancel := context.WithCancel(common.WithTenantID(context.Background(), "org-ctx"))
	req := entity.NewExtractionRequest([]byte("%PDF"), "application/pdf", "p.pdf", "", false)
	o.Extract(ctx, req)
	// the record must survive the caller going away
	cancel()
	drain(t, o)

	recs := sink.records()
	if len(recs) != 1 || recs[0].TenantID != "org-ctx" {
		t.Fatalf("expected tenant from context, got %+v", recs)
	}
}

type countingRecorder struct {
	mu       sync.Mutex
	attempts int
	results  int
}

func (c *countingRecorder) ObserveAttempt(constants.Method, bool, time.Duration) {
	c.mu.Lock()
	c.attempts++
	c.mu.Unlock()
}

func (c *countingRecorder) ObserveResult(entity.ExtractionResult) {
	c.mu.Lock()
	c.results++
	c.mu.Unlock()
}

func TestExtractReportsToRecorder(t *testing.T) {
	rec := &countingRecorder{}
	o := NewOrchestrator(DefaultConfig(), Providers{
		Text: ok(constants.MethodPDFText, weakText),
		OCR:  ok(constants.MethodOCR, declarations),
	}, nil, WithRecorder(rec))

	o.Extract(context.Background(), pdfRequest(false))

	if rec.attempts != 2 || rec.results != 1 {
		t.Fatalf("expected 2 attempts and 1 result, got %d/%d", rec.attempts, rec.results)
	}
}

func TestFromAppConfigFillsDefaults(t *testing.T) {
	cfg := FromAppConfig(common.PipelineConfig{MinConfidenceTextTier: 0.8})
	if cfg.MinConfidenceTextTier != 0.8 {
		t.Fatalf("threshold not carried over: %v", cfg.MinConfidenceTextTier)
	}
	def := DefaultConfig()
	if cfg.MinTextLength != def.MinTextLength || cfg.OCRTierTimeout != def.OCRTierTimeout || cfg.CloudDefaultConfidence != def.CloudDefaultConfidence {
		t.Fatalf("zero values should be defaulted, got %+v", cfg)
	}
}
