package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/joseph-ayodele/policy-extractor/constants"
	"github.com/joseph-ayodele/policy-extractor/internal/ocr"
)

// LocalEngine is what the local providers need from *ocr.Engine.
type LocalEngine interface {
	TextLayer(ctx context.Context, data []byte) (ocr.Result, error)
	OCR(ctx context.Context, data []byte, mimeType string) (ocr.Result, error)
}

// TextLayerProvider reads the embedded text of a PDF.
type TextLayerProvider struct {
	engine LocalEngine
	logger *slog.Logger
}

func NewTextLayerProvider(e LocalEngine, logger *slog.Logger) *TextLayerProvider {
	if logger == nil {
		logger = slog.Default()
	}
	return &TextLayerProvider{engine: e, logger: logger}
}

func (p *TextLayerProvider) Method() constants.Method { return constants.MethodPDFText }

func (p *TextLayerProvider) Extract(ctx context.Context, doc Document) (ProviderResult, error) {
	if constants.MapMIMEToFormat(doc.MIMEType) != constants.PDF {
		return failed(p.Method(), fmt.Errorf("text layer needs a pdf, got %q", doc.MIMEType)), nil
	}
	r, err := p.engine.TextLayer(ctx, doc.Content)
	if err != nil {
		p.logger.Debug("extract.text_layer.failed", "file", doc.FileName, "error", err)
		return failed(p.Method(), err), hostFault(ctx, err)
	}
	return fromOCR(p.Method(), r), nil
}

// OCRProvider runs tesseract over rasterized PDF pages or images.
type OCRProvider struct {
	engine LocalEngine
	logger *slog.Logger
}

func NewOCRProvider(e LocalEngine, logger *slog.Logger) *OCRProvider {
	if logger == nil {
		logger = slog.Default()
	}
	return &OCRProvider{engine: e, logger: logger}
}

func (p *OCRProvider) Method() constants.Method { return constants.MethodOCR }

func (p *OCRProvider) Extract(ctx context.Context, doc Document) (ProviderResult, error) {
	r, err := p.engine.OCR(ctx, doc.Content, doc.MIMEType)
	if err != nil {
		p.logger.Debug("extract.ocr.failed", "file", doc.FileName, "error", err)
		return failed(p.Method(), err), hostFault(ctx, err)
	}
	return fromOCR(p.Method(), r), nil
}

// hostFault keeps err only when the environment failed. An unreadable
// document is an ordinary unsuccessful result.
func hostFault(ctx context.Context, err error) error {
	if errors.Is(err, ocr.ErrUnavailable) || ctx.Err() != nil {
		return err
	}
	return nil
}

// fromOCR marks a result successful when it carries any text; the
// orchestrator applies the minimum length rule.
func fromOCR(method constants.Method, r ocr.Result) ProviderResult {
	out := ProviderResult{
		Text:      r.Text,
		Method:    method,
		PageCount: r.Pages,
		Duration:  r.Duration,
		Warnings:  r.Warnings,
		Success:   strings.TrimSpace(r.Text) != "",
	}
	if !out.Success {
		out.Error = "no text found"
	}
	return out
}
