package ocr

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/joseph-ayodele/policy-extractor/constants"
)

type Config struct {
	Pdftotext string // binary name or absolute path; if empty -> "pdftotext"
	Pdftoppm  string // binary name or absolute path; if empty -> "pdftoppm"
	Tesseract string // binary name or absolute path; if empty -> "tesseract"

	TesseractLang string // default "eng"
	DPI           int    // rasterization DPI for scanned PDFs, default 300
	MaxPages      int    // 0 = no limit

	TessdataDir   string
	HeicConverter string

	PSM int // e.g., 6 is good for uniform block of text
	OEM int // 1 = LSTM; leave 0 to use default

	ArtifactCacheDir string
}

type Result struct {
	Text       string
	Pages      int
	SourceType string // constants.PDF | constants.IMAGE
	Method     constants.Method
	Language   string
	Duration   time.Duration
	Warnings   []string
}

// Engine runs the local extraction tiers: the embedded PDF text layer and
// tesseract OCR. It works on in-memory payloads and spills them to a private
// temp dir only when an external binary needs a path.
type Engine struct {
	cfg    Config
	runner Runner
	logger *slog.Logger
}

func NewEngine(cfg Config, logger *slog.Logger) *Engine {
	return NewEngineWithRunner(cfg, NewExecRunner(logger), logger)
}

// NewEngineWithRunner lets tests stub the external binaries.
func NewEngineWithRunner(cfg Config, runner Runner, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Pdftotext == "" {
		cfg.Pdftotext = "pdftotext"
	}
	if cfg.Pdftoppm == "" {
		cfg.Pdftoppm = "pdftoppm"
	}
	if cfg.Tesseract == "" {
		cfg.Tesseract = "tesseract"
	}
	if cfg.TesseractLang == "" {
		cfg.TesseractLang = "eng"
	}
	if cfg.DPI <= 0 {
		cfg.DPI = 300
	}
	return &Engine{cfg: cfg, runner: runner, logger: logger}
}

// TextLayer reads the embedded text of a PDF. The in-process reader is tried
// first; pdftotext is the fallback for files it cannot decode.
func (e *Engine) TextLayer(ctx context.Context, data []byte) (Result, error) {
	start := time.Now()
	res := Result{SourceType: constants.PDF, Method: constants.MethodPDFText}

	text, pages, err := readPDFText(data)
	if err == nil && hasText(text) {
		res.Text, res.Pages = Normalize(text), pages
		res.Duration = time.Since(start)
		e.logger.Debug("ocr.text_layer.ok", "reader", "native", "pages", pages, "text_len", len(res.Text))
		return res, nil
	}
	if err != nil {
		res.Warnings = append(res.Warnings, "native reader: "+err.Error())
	}

	path, cleanup, err := e.spill(data, "document.pdf")
	if err != nil {
		return res, err
	}
	defer cleanup()

	text, pages, warns, err := e.pdfToText(ctx, path)
	res.Warnings = append(res.Warnings, warns...)
	res.Duration = time.Since(start)
	if err != nil {
		e.logger.Warn("ocr.text_layer.failed", "error", err)
		return res, fmt.Errorf("pdftotext: %w", err)
	}
	res.Text, res.Pages = Normalize(text), pages
	e.logger.Debug("ocr.text_layer.ok", "reader", "pdftotext", "pages", pages, "text_len", len(res.Text))
	return res, nil
}

// OCR rasterizes PDFs page by page, or reads images directly, through tesseract.
func (e *Engine) OCR(ctx context.Context, data []byte, mimeType string) (Result, error) {
	start := time.Now()
	format := constants.MapMIMEToFormat(mimeType)
	e.logger.Debug("ocr.start", "mime", mimeType, "format", format, "bytes", len(data))

	switch format {
	case constants.PDF:
		path, cleanup, err := e.spill(data, "document.pdf")
		if err != nil {
			return Result{SourceType: constants.PDF, Method: constants.MethodOCR}, err
		}
		defer cleanup()
		text, pages, warns, err := e.pdfToOCR(ctx, path)
		res := Result{
			Text:       Normalize(text),
			Pages:      pages,
			SourceType: constants.PDF,
			Method:     constants.MethodOCR,
			Language:   e.cfg.TesseractLang,
			Warnings:   warns,
			Duration:   time.Since(start),
		}
		return res, err
	case constants.IMAGE:
		res, err := e.imageOCR(ctx, data, mimeType)
		res.Duration = time.Since(start)
		return res, err
	default:
		e.logger.Error("unsupported ocr mime type", "mime", mimeType)
		return Result{}, fmt.Errorf("unsupported mime type: %q", mimeType)
	}
}

func (e *Engine) imageOCR(ctx context.Context, data []byte, mimeType string) (Result, error) {
	res := Result{SourceType: constants.IMAGE, Method: constants.MethodOCR, Language: e.cfg.TesseractLang, Pages: 1}

	path, cleanup, err := e.spill(data, "image"+extForMIME(mimeType))
	if err != nil {
		return res, err
	}
	defer cleanup()

	if constants.IsHEICMIME(mimeType) {
		sum := sha256.Sum256(data)
		out, w, convCleanup, err := convertHEICtoPNG(ctx, e.runner, e.logger, e.cfg.HeicConverter, path, e.cfg.ArtifactCacheDir, hex.EncodeToString(sum[:]))
		res.Warnings = append(res.Warnings, w...)
		if convCleanup != nil {
			defer convCleanup()
		}
		if err != nil {
			e.logger.Error("heic conversion failed", "error", err)
			return res, err
		}
		path = out
	}

	txt, warn, err := e.tesseractOCR(ctx, path)
	res.Warnings = append(res.Warnings, warn...)
	if err != nil {
		return res, err
	}
	res.Text = Normalize(txt)
	return res, nil
}

// spill writes data to a fresh temp dir and returns the file path plus a cleanup func.
func (e *Engine) spill(data []byte, name string) (string, func(), error) {
	dir, err := os.MkdirTemp("", "pe-doc-*")
	if err != nil {
		return "", func() {}, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	cleanup := func() {
		if err := os.RemoveAll(dir); err != nil {
			e.logger.Warn("failed to remove temp dir", "dir", dir, "error", err)
		}
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		cleanup()
		return "", func() {}, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return path, cleanup, nil
}

func extForMIME(mimeType string) string {
	switch constants.NormalizeMIME(mimeType) {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/tiff":
		return ".tif"
	case "image/heic", "image/heic-sequence":
		return ".heic"
	case "image/heif", "image/heif-sequence":
		return ".heif"
	case "image/bmp":
		return ".bmp"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	default:
		return ".img"
	}
}
