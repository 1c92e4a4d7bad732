package ocr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"
)

// readPDFText decodes the text layer in-process. The reader panics on some
// malformed inputs, so panics are turned into errors.
func readPDFText(data []byte) (text string, pages int, err error) {
	defer func() {
		if r := recover(); r != nil {
			text, pages, err = "", 0, fmt.Errorf("pdf reader panic: %v", r)
		}
	}()

	rd, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", 0, err
	}
	pages = rd.NumPage()
	var b strings.Builder
	for i := 1; i <= pages; i++ {
		p := rd.Page(i)
		if p.V.IsNull() {
			continue
		}
		s, err := p.GetPlainText(nil)
		if err != nil {
			return "", pages, fmt.Errorf("page %d: %w", i, err)
		}
		if b.Len() > 0 {
			b.WriteString("\n\f\n")
		}
		b.WriteString(s)
	}
	return b.String(), pages, nil
}

func hasText(s string) bool {
	return strings.TrimSpace(strings.ReplaceAll(s, "\f", "")) != ""
}

func (e *Engine) pdfToText(ctx context.Context, path string) (text string, pages int, warnings []string, err error) {
	// pdftotext -layout -enc UTF-8 -eol unix <path> -
	out, errb, err := e.runner.Run(ctx, e.cfg.Pdftotext, "-layout", "-enc", "UTF-8", "-eol", "unix", path, "-")
	if err != nil {
		return "", 0, []string{string(errb)}, err
	}
	text = strings.TrimRight(string(out), "\f")
	// A form-feed \f is used as page separator by default
	pages = 1 + strings.Count(text, "\f")
	return text, pages, nil, nil
}

func (e *Engine) pdfToOCR(ctx context.Context, path string) (text string, pages int, warnings []string, err error) {
	tmpDir, err := os.MkdirTemp("", "pe-pp-*")
	if err != nil {
		return "", 0, nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer func(path string) {
		if err := os.RemoveAll(path); err != nil {
			e.logger.Warn("failed to remove temp dir", "dir", path, "error", err)
		}
	}(tmpDir)

	prefix := filepath.Join(tmpDir, "page")
	args := []string{"-r", fmt.Sprintf("%d", e.cfg.DPI), "-png"}
	if e.cfg.MaxPages > 0 {
		args = append(args, "-l", fmt.Sprintf("%d", e.cfg.MaxPages))
	}
	// pdftoppm -r 300 -png [-l N] <in.pdf> <tmp/page>
	args = append(args, path, prefix)
	_, errb, err := e.runner.Run(ctx, e.cfg.Pdftoppm, args...)
	if err != nil {
		return "", 0, []string{string(errb)}, err
	}

	// collect generated pngs (prefix-1.png, prefix-2.png, ...)
	matches, _ := filepath.Glob(prefix + "-*.png")
	sort.Strings(matches)
	if e.cfg.MaxPages > 0 && len(matches) > e.cfg.MaxPages {
		matches = matches[:e.cfg.MaxPages]
	}
	if len(matches) == 0 {
		return "", 0, []string{"pdftoppm produced no images"}, fmt.Errorf("no pages rendered")
	}

	var b strings.Builder
	var warns []string
	for _, img := range matches {
		if ctx.Err() != nil {
			return b.String(), len(matches), warns, ctx.Err()
		}
		txt, w, err := e.tesseractOCR(ctx, img)
		if errors.Is(err, ErrUnavailable) {
			return b.String(), len(matches), warns, err
		}
		if err != nil {
			warns = append(warns, err.Error())
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\f\n") // keep a clear page break marker
		}
		b.WriteString(txt)
		warns = append(warns, w...)
	}
	return b.String(), len(matches), warns, nil
}
