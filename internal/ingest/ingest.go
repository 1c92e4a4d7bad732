// Package ingest turns files on disk into extraction requests for batch runs.
package ingest

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joseph-ayodele/policy-extractor/constants"
	"github.com/joseph-ayodele/policy-extractor/internal/entity"
)

// FileResult is the per-file scan outcome. Request is only set when Err is empty
// and the file is not a duplicate.
type FileResult struct {
	Path         string
	HashHex      string
	Deduplicated bool
	Request      entity.ExtractionRequest
	Err          string
}

// DirStats summarizes a directory scan.
type DirStats struct {
	Scanned      uint32
	Matched      uint32
	Succeeded    uint32
	Deduplicated uint32
	Failed       uint32
}

// LoadFile reads path into a request. The MIME type comes from the extension.
func LoadFile(path, tenantID string, forcePremium bool, maxBytes int64) (entity.ExtractionRequest, string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return entity.ExtractionRequest{}, "", fmt.Errorf("abs path: %w", err)
	}
	ext := constants.NormalizeExt(filepath.Ext(abs))
	if ext == "" || !AllowedExt(ext) {
		return entity.ExtractionRequest{}, "", fmt.Errorf("unsupported or missing extension: %q", ext)
	}

	fi, err := os.Stat(abs)
	if err != nil {
		return entity.ExtractionRequest{}, "", fmt.Errorf("stat: %w", err)
	}
	if maxBytes > 0 && fi.Size() > maxBytes {
		return entity.ExtractionRequest{}, "", fmt.Errorf("file too large: %d bytes (max %d)", fi.Size(), maxBytes)
	}

	data, err := os.ReadFile(abs)
	if err != nil {
		return entity.ExtractionRequest{}, "", fmt.Errorf("read: %w", err)
	}
	sum := sha256.Sum256(data)
	req := entity.ExtractionRequest{
		Content:      data,
		MIMEType:     constants.MIMEFromExt(ext),
		FileName:     filepath.Base(abs),
		TenantID:     tenantID,
		ForcePremium: forcePremium,
	}
	return req, hex.EncodeToString(sum[:]), nil
}
