package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"strconv"
	"time"

	"github.com/joseph-ayodele/policy-extractor/constants"
	"github.com/joseph-ayodele/policy-extractor/internal/entity"
)

// ResultCache stores successful results keyed by content.
type ResultCache interface {
	Get(ctx context.Context, key string) (entity.ExtractionResult, bool, error)
	Set(ctx context.Context, key string, res entity.ExtractionResult, ttl time.Duration) error
}

// CachedExtractor answers repeated uploads of the same document from cache.
// Only successful results are stored, and cache errors never fail a request.
type CachedExtractor struct {
	next   Extractor
	cache  ResultCache
	ttl    time.Duration
	logger *slog.Logger
}

func NewCachedExtractor(next Extractor, cache ResultCache, ttl time.Duration, logger *slog.Logger) *CachedExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedExtractor{next: next, cache: cache, ttl: ttl, logger: logger}
}

// CacheKey identifies a request by payload hash, MIME type and premium flag.
func CacheKey(req entity.ExtractionRequest) string {
	sum := sha256.Sum256(req.Content)
	return hex.EncodeToString(sum[:]) + ":" + constants.NormalizeMIME(req.MIMEType) + ":" + strconv.FormatBool(req.ForcePremium)
}

func (c *CachedExtractor) Extract(ctx context.Context, req entity.ExtractionRequest) entity.ExtractionResult {
	if len(req.Content) == 0 {
		return c.next.Extract(ctx, req)
	}
	key := CacheKey(req)

	res, ok, err := c.cache.Get(ctx, key)
	switch {
	case err != nil:
		c.logger.Warn("pipeline.cache.get_failed", "file", req.FileName, "error", err)
	case ok:
		c.logger.Info("pipeline.cache.hit", "file", req.FileName, "method", res.Method)
		// same bytes, possibly a different upload name
		res.Metadata.FileName = req.FileName
		return res
	}

	res = c.next.Extract(ctx, req)
	if !res.Success {
		return res
	}
	if err := c.cache.Set(ctx, key, res, c.ttl); err != nil {
		c.logger.Warn("pipeline.cache.set_failed", "file", req.FileName, "error", err)
	}
	return res
}
