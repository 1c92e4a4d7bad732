package ingest

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/joseph-ayodele/policy-extractor/constants"
)

// Scanner walks a directory and loads every policy document it finds.
type Scanner struct {
	TenantID     string
	ForcePremium bool
	SkipHidden   bool
	MaxBytes     int64
	Logger       *slog.Logger
}

// ScanDirectory walks root and loads each allowed file. Files whose content
// was already seen in this walk are reported as deduplicated and get no request.
func (s *Scanner) ScanDirectory(ctx context.Context, root string) ([]FileResult, DirStats, error) {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if strings.TrimSpace(root) == "" {
		return nil, DirStats{}, errors.New("root path is required")
	}

	var results []FileResult
	var stats DirStats
	seen := map[string]string{}

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		stats.Scanned++
		if walkErr != nil {
			results = append(results, FileResult{Path: path, Err: walkErr.Error()})
			stats.Failed++
			return nil
		}
		if s.SkipHidden && path != root && IsHidden(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if !AllowedExt(filepath.Ext(path)) {
			return nil
		}
		stats.Matched++

		req, hash, err := LoadFile(path, s.TenantID, s.ForcePremium, s.MaxBytes)
		if err != nil {
			logger.Warn("ingest.file.failed", "path", path, "error", err)
			results = append(results, FileResult{Path: path, Err: err.Error()})
			stats.Failed++
			return nil
		}
		if first, dup := seen[hash]; dup {
			logger.Info("ingest.file.duplicate", "path", path, "first", first)
			results = append(results, FileResult{Path: path, HashHex: hash, Deduplicated: true})
			stats.Deduplicated++
			return nil
		}
		seen[hash] = path

		results = append(results, FileResult{Path: path, HashHex: hash, Request: req})
		stats.Succeeded++
		return nil
	})
	if err != nil {
		return results, stats, fmt.Errorf("walk: %w", err)
	}

	logger.Info("ingest.scan.done",
		"root", root,
		"scanned", stats.Scanned,
		"matched", stats.Matched,
		"succeeded", stats.Succeeded,
		"deduplicated", stats.Deduplicated,
		"failed", stats.Failed,
	)
	return results, stats, nil
}

// AllowedExt checks if a file extension is in the accepted document set.
func AllowedExt(ext string) bool {
	_, ok := constants.AllowedExtensions[constants.NormalizeExt(ext)]
	return ok
}

// IsHidden checks if a file or directory is hidden (starts with '.').
func IsHidden(path string) bool {
	base := filepath.Base(path)
	return strings.HasPrefix(base, ".") && base != "." && base != ".."
}
