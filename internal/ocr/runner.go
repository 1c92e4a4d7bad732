package ocr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"
)

// ErrUnavailable marks faults of the host rather than the document: a
// missing binary or an unwritable temp dir.
var ErrUnavailable = errors.New("ocr environment unavailable")

const maxLoggedStderr = 8 << 10

// Runner lets us stub external commands in tests.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)
}

// ExecRunner runs the OCR toolchain (pdftotext, pdftoppm, tesseract, heif-convert)
// as child processes.
type ExecRunner struct {
	logger *slog.Logger
}

func NewExecRunner(logger *slog.Logger) *ExecRunner {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExecRunner{logger: logger}
}

func (r *ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	start := time.Now()

	cmd := exec.CommandContext(ctx, name, args...)
	var out, errb bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errb

	err := cmd.Run()
	elapsed := time.Since(start).Milliseconds()
	if errors.Is(err, exec.ErrNotFound) {
		err = fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	if err != nil {
		r.logger.Warn("ocr.exec.failed",
			"cmd", name,
			"args", strings.Join(args, " "),
			"elapsed_ms", elapsed,
			"error", err,
			"stderr", clip(errb.String(), maxLoggedStderr),
		)
		return out.Bytes(), errb.Bytes(), err
	}
	r.logger.Debug("ocr.exec.ok",
		"cmd", name,
		"elapsed_ms", elapsed,
		"stdout_bytes", out.Len(),
	)
	return out.Bytes(), errb.Bytes(), nil
}

func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "...(truncated)"
}
