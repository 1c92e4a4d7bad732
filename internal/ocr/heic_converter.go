package ocr

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
)

// convertHEICtoPNG converts a HEIC/HEIF file to PNG.
// converter: "heif-convert" | "magick" | "sips"
//
// If cacheDir and hashHex are non-empty, the PNG is persisted (and reused) at
//
//	{cacheDir}/{hashHex}.png
//
// Returns (outPath, warnings, cleanup, err). cleanup is nil when the cached
// artifact is returned; otherwise call it to remove the temp dir.
func convertHEICtoPNG(
	ctx context.Context,
	r Runner,
	logger *slog.Logger,
	converter string,
	in string,
	cacheDir string,
	hashHex string,
) (string, []string, func(), error) {
	caching := cacheDir != "" && hashHex != ""
	cached := ""
	if caching {
		cached = filepath.Join(cacheDir, hashHex+".png")
		if st, err := os.Stat(cached); err == nil && !st.IsDir() {
			logger.Debug("using cached heic->png", "cache", cached)
			return cached, nil, nil, nil
		}
		if err := os.MkdirAll(cacheDir, 0o755); err != nil {
			return "", nil, nil, err
		}
	}

	tmpDir, err := os.MkdirTemp("", "pe-heic-*")
	if err != nil {
		return "", nil, nil, err
	}
	cleanup := func() { _ = os.RemoveAll(tmpDir) }
	out := filepath.Join(tmpDir, "page.png")

	switch converter {
	case "heif-convert":
		if _, errb, err2 := r.Run(ctx, "heif-convert", in, out); err2 != nil {
			return "", []string{string(errb)}, cleanup, fmt.Errorf("heif-convert failed: %w", err2)
		}
	case "magick":
		if _, errb, err2 := r.Run(ctx, "magick", in, out); err2 != nil {
			return "", []string{string(errb)}, cleanup, fmt.Errorf("magick convert failed: %w", err2)
		}
	case "sips":
		if _, errb, err2 := r.Run(ctx, "sips", "-s", "format", "png", in, "--out", out); err2 != nil {
			return "", []string{string(errb)}, cleanup, fmt.Errorf("sips convert failed: %w", err2)
		}
	default:
		return "", nil, cleanup, fmt.Errorf("HEIC not supported: set ocr.Config.HeicConverter to one of: heif-convert | magick | sips")
	}

	if _, statErr := os.Stat(out); statErr != nil {
		return "", nil, cleanup, fmt.Errorf("HEIC conversion produced no output: %v", statErr)
	}
	if !caching {
		return out, nil, cleanup, nil
	}

	if err := persist(out, cached); err != nil {
		// still usable from the temp dir
		logger.Warn("failed to cache heic->png", "cache", cached, "error", err)
		return out, []string{err.Error()}, cleanup, nil
	}
	cleanup()
	logger.Debug("cached heic->png", "cache", cached)
	return cached, nil, nil, nil
}

// persist moves src to dst, copying when a rename crosses devices.
func persist(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	if st, err := os.Stat(dst); err == nil && !st.IsDir() {
		// another worker already wrote it
		return nil
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		_ = os.Remove(dst)
		return err
	}
	return out.Close()
}
