package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/joseph-ayodele/policy-extractor/constants"
	"github.com/joseph-ayodele/policy-extractor/internal/llm"
	"github.com/joseph-ayodele/policy-extractor/internal/resilience"
	"golang.org/x/time/rate"
)

// CloudProvider sends the raw document to a document-AI backend. Calls are
// rate limited and run through the resilience executor.
type CloudProvider struct {
	analyzer llm.DocumentAnalyzer
	limiter  *rate.Limiter
	exec     *resilience.Executor
	logger   *slog.Logger
}

type CloudOption func(*CloudProvider)

// WithRateLimit caps backend calls per second. rps <= 0 disables limiting.
func WithRateLimit(rps float64, burst int) CloudOption {
	return func(p *CloudProvider) {
		if rps <= 0 {
			p.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		p.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

func WithExecutor(e *resilience.Executor) CloudOption {
	return func(p *CloudProvider) { p.exec = e }
}

func NewCloudProvider(a llm.DocumentAnalyzer, logger *slog.Logger, opts ...CloudOption) *CloudProvider {
	if logger == nil {
		logger = slog.Default()
	}
	p := &CloudProvider{analyzer: a, logger: logger}
	for _, o := range opts {
		o(p)
	}
	if p.exec == nil {
		p.exec = resilience.NewExecutor(resilience.DefaultConfig(), logger)
	}
	return p
}

func (p *CloudProvider) Method() constants.Method { return constants.MethodCloud }

func (p *CloudProvider) Extract(ctx context.Context, doc Document) (ProviderResult, error) {
	start := time.Now()
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return failed(p.Method(), err), fmt.Errorf("rate limit: %w", err)
		}
	}

	var a llm.Analysis
	op := "cloud." + p.analyzer.Name()
	err := p.exec.Execute(ctx, op, func(ctx context.Context) error {
		var callErr error
		a, _, callErr = p.analyzer.Analyze(ctx, llm.AnalyzeRequest{
			Data:     doc.Content,
			MIMEType: doc.MIMEType,
			FileName: doc.FileName,
		})
		return callErr
	}, ClassifyCloudError)
	if err != nil {
		p.logger.Warn("extract.cloud.failed",
			"backend", p.analyzer.Name(),
			"file", doc.FileName,
			"circuit_open", resilience.IsCircuitOpen(err),
			"error", err,
		)
		return failed(p.Method(), err), err
	}

	res := ProviderResult{
		Text:       a.Text,
		Method:     p.Method(),
		PageCount:  a.PageCount,
		Fields:     a.Fields,
		Confidence: a.Confidence,
		Duration:   time.Since(start),
		Success:    true,
	}
	return res, nil
}

// ClassifyCloudError decides which backend failures are worth another try and
// which count against the breaker. Caller cancellations count as neither.
func ClassifyCloudError(err error) resilience.ErrorClassification {
	if err == nil {
		return resilience.ErrorClassification{}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return resilience.ErrorClassification{Retryable: false, RecordFailure: false}
	}

	var statusErr *llm.StatusError
	if errors.As(err, &statusErr) {
		if statusErr.Retryable() {
			return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
		}
		return resilience.ErrorClassification{Retryable: false, RecordFailure: false}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	}

	return resilience.ErrorClassification{Retryable: false, RecordFailure: true}
}
