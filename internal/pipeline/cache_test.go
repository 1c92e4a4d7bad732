package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/joseph-ayodele/policy-extractor/constants"
	"github.com/joseph-ayodele/policy-extractor/internal/entity"
)

type memCache struct {
	mu     sync.Mutex
	items  map[string]entity.ExtractionResult
	getErr error
}

func newMemCache() *memCache {
	return &memCache{items: map[string]entity.ExtractionResult{}}
}

func (m *memCache) Get(_ context.Context, key string) (entity.ExtractionResult, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return entity.ExtractionResult{}, false, m.getErr
	}
	r, ok := m.items[key]
	return r, ok, nil
}

func (m *memCache) Set(_ context.Context, key string, res entity.ExtractionResult, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[key] = res
	return nil
}

func countingExtractor(success bool, calls *int) extractorFunc {
	return func(_ context.Context, req entity.ExtractionRequest) entity.ExtractionResult {
		*calls++
		return entity.ExtractionResult{
			Success:  success,
			Method:   constants.MethodOCR,
			Metadata: entity.ExtractionMetadata{FileName: req.FileName},
		}
	}
}

func TestCachedExtractorServesRepeats(t *testing.T) {
	calls := 0
	c := NewCachedExtractor(countingExtractor(true, &calls), newMemCache(), time.Hour, nil)

	first := entity.NewExtractionRequest([]byte("same bytes"), "image/png", "a.png", "", false)
	second := entity.NewExtractionRequest([]byte("same bytes"), "IMAGE/PNG", "b.png", "", false)
	c.Extract(context.Background(), first)
	res := c.Extract(context.Background(), second)

	if calls != 1 {
		t.Fatalf("expected one underlying extraction, got %d", calls)
	}
	if res.Metadata.FileName != "b.png" {
		t.Fatalf("cached result should carry the new file name, got %q", res.Metadata.FileName)
	}
}

func TestCachedExtractorSkipsFailures(t *testing.T) {
	calls := 0
	c := NewCachedExtractor(countingExtractor(false, &calls), newMemCache(), time.Hour, nil)
	req := entity.NewExtractionRequest([]byte("bytes"), "application/pdf", "a.pdf", "", false)

	c.Extract(context.Background(), req)
	c.Extract(context.Background(), req)

	if calls != 2 {
		t.Fatalf("failures must not be cached, got %d calls", calls)
	}
}

func TestCachedExtractorToleratesCacheErrors(t *testing.T) {
	calls := 0
	mc := newMemCache()
	mc.getErr = errors.New("redis down")
	c := NewCachedExtractor(countingExtractor(true, &calls), mc, time.Hour, nil)

	res := c.Extract(context.Background(), entity.NewExtractionRequest([]byte("bytes"), "application/pdf", "a.pdf", "", false))

	if !res.Success || calls != 1 {
		t.Fatalf("expected a fresh extraction, got %+v after %d calls", res, calls)
	}
}

func TestCacheKeyDependsOnPremiumFlag(t *testing.T) {
	a := entity.NewExtractionRequest([]byte("x"), "application/pdf", "a.pdf", "", false)
	b := entity.NewExtractionRequest([]byte("x"), "application/pdf", "a.pdf", "", true)
	if CacheKey(a) == CacheKey(b) {
		t.Fatal("premium and standard requests must not share a key")
	}
}
