package pipeline

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/joseph-ayodele/policy-extractor/constants"
	"github.com/joseph-ayodele/policy-extractor/internal/entity"
)

type extractorFunc func(ctx context.Context, req entity.ExtractionRequest) entity.ExtractionResult

func (f extractorFunc) Extract(ctx context.Context, req entity.ExtractionRequest) entity.ExtractionResult {
	return f(ctx, req)
}

func echoExtractor() extractorFunc {
	return func(_ context.Context, req entity.ExtractionRequest) entity.ExtractionResult {
		if strings.HasPrefix(req.FileName, "boom") {
			panic("corrupt file")
		}
		return entity.ExtractionResult{
			Success:       true,
			ExtractedText: string(req.Content),
			Method:        constants.MethodPDFText,
			Metadata:      entity.ExtractionMetadata{FileName: req.FileName},
		}
	}
}

func batchRequests(names ...string) []entity.ExtractionRequest {
	out := make([]entity.ExtractionRequest, len(names))
	for i, n := range names {
		out[i] = entity.NewExtractionRequest([]byte("content of "+n), "application/pdf", n, "", false)
	}
	return out
}

func TestBatchKeepsInputOrder(t *testing.T) {
	names := make([]string, 40)
	for i := range names {
		names[i] = fmt.Sprintf("doc-%02d.pdf", i)
	}
	b := NewBatch(echoExtractor(), nil, WithConcurrency(4))

	out := b.ExtractBatch(context.Background(), batchRequests(names...))

	if len(out) != len(names) {
		t.Fatalf("expected %d results, got %d", len(names), len(out))
	}
	for i, r := range out {
		if r.Metadata.FileName != names[i] || r.ExtractedText != "content of "+names[i] {
			t.Fatalf("result %d out of place: %+v", i, r)
		}
	}
}

func TestBatchIsolatesPanics(t *testing.T) {
	b := NewBatch(echoExtractor(), nil)

	out := b.ExtractBatch(context.Background(), batchRequests("a.pdf", "boom.pdf", "c.pdf"))

	if !out[0].Success || !out[2].Success {
		t.Fatalf("neighbours of a panicking item must succeed: %+v", out)
	}
	bad := out[1]
	if bad.Success || bad.Method != constants.MethodNone {
		t.Fatalf("expected failure for the panicking item, got %+v", bad)
	}
	if !strings.Contains(bad.Metadata.Error, "corrupt file") || bad.Metadata.FileName != "boom.pdf" {
		t.Fatalf("unexpected failure metadata %+v", bad.Metadata)
	}
}

func TestBatchEmptyInput(t *testing.T) {
	out := NewBatch(echoExtractor(), nil).ExtractBatch(context.Background(), nil)
	if out == nil || len(out) != 0 {
		t.Fatalf("expected an empty non-nil slice, got %#v", out)
	}
}

func TestBatchBoundsConcurrency(t *testing.T) {
	var cur, peak atomic.Int32
	ex := extractorFunc(func(_ context.Context, req entity.ExtractionRequest) entity.ExtractionResult {
		n := cur.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		cur.Add(-1)
		return entity.ExtractionResult{Success: true}
	})
	b := NewBatch(ex, nil, WithConcurrency(3))

	b.ExtractBatch(context.Background(), batchRequests("1", "2", "3", "4", "5", "6", "7", "8", "9", "10"))

	if peak.Load() > 3 {
		t.Fatalf("expected at most 3 concurrent extractions, saw %d", peak.Load())
	}
}

func TestBatchCancelledContext(t *testing.T) {
	var calls atomic.Int32
	ex := extractorFunc(func(ctx context.Context, req entity.ExtractionRequest) entity.ExtractionResult {
		calls.Add(1)
		return entity.ExtractionResult{Success: true}
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out := NewBatch(ex, nil).ExtractBatch(ctx, batchRequests("a.pdf", "b.pdf"))

	for i, r := range out {
		if r.Success || !strings.Contains(r.Metadata.Error, "context canceled") {
			t.Fatalf("result %d: expected cancellation failure, got %+v", i, r)
		}
	}
	if calls.Load() != 0 {
		t.Fatalf("extractor should not run after cancellation, ran %d times", calls.Load())
	}
}

func TestBatchWithOrchestrator(t *testing.T) {
	o := NewOrchestrator(DefaultConfig(), Providers{
		Text: ok(constants.MethodPDFText, declarations),
	}, nil)
	reqs := []entity.ExtractionRequest{
		entity.NewExtractionRequest([]byte("%PDF"), "application/pdf", "good.pdf", "", false),
		entity.NewExtractionRequest([]byte("x"), "text/csv", "bad.csv", "", false),
	}

	out := NewBatch(o, nil).ExtractBatch(context.Background(), reqs)

	if !out[0].Success || out[1].Success {
		t.Fatalf("expected success then rejection, got %v / %v", out[0].Success, out[1].Success)
	}
}
