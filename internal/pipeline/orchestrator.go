// Package pipeline escalates a document through the extraction providers in
// cost order, scores what each tier produced and decides when to stop.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/joseph-ayodele/policy-extractor/constants"
	"github.com/joseph-ayodele/policy-extractor/internal/common"
	"github.com/joseph-ayodele/policy-extractor/internal/entity"
	"github.com/joseph-ayodele/policy-extractor/internal/extract"
	"github.com/joseph-ayodele/policy-extractor/internal/policy"
)

// Providers are the tiers in escalation order. Any of them may be nil; a nil
// tier is skipped as if it had failed, and is not listed as attempted.
type Providers struct {
	Text  extract.Provider
	OCR   extract.Provider
	Cloud extract.Provider
}

// Extractor is the single-document API shared by the orchestrator and its decorators.
type Extractor interface {
	Extract(ctx context.Context, req entity.ExtractionRequest) entity.ExtractionResult
}

// Recorder observes attempts and results; used for metrics.
type Recorder interface {
	ObserveAttempt(method constants.Method, success bool, d time.Duration)
	ObserveResult(res entity.ExtractionResult)
}

type nopRecorder struct{}

func (nopRecorder) ObserveAttempt(constants.Method, bool, time.Duration) {}
func (nopRecorder) ObserveResult(entity.ExtractionResult)                {}

type Orchestrator struct {
	cfg       Config
	providers Providers
	usage     UsageLogger
	rec       Recorder
	logger    *slog.Logger

	inflight sync.WaitGroup
}

type Option func(*Orchestrator)

func WithUsageLogger(l UsageLogger) Option {
	return func(o *Orchestrator) { o.usage = l }
}

func WithRecorder(r Recorder) Option {
	return func(o *Orchestrator) {
		if r != nil {
			o.rec = r
		}
	}
}

func NewOrchestrator(cfg Config, providers Providers, logger *slog.Logger, opts ...Option) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	o := &Orchestrator{
		cfg:       cfg.normalize(),
		providers: providers,
		rec:       nopRecorder{},
		logger:    logger,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

type state int

const (
	stateValidate state = iota
	stateTryText
	stateTryOCR
	stateTryCloud
	stateAccept
	stateAcceptBest
	stateFailure
	stateDone
)

func (s state) String() string {
	switch s {
	case stateValidate:
		return "validate"
	case stateTryText:
		return "try_text"
	case stateTryOCR:
		return "try_ocr"
	case stateTryCloud:
		return "try_cloud"
	case stateAccept:
		return "accept"
	case stateAcceptBest:
		return "accept_best"
	case stateFailure:
		return "failure"
	case stateDone:
		return "done"
	}
	return "unknown"
}

// attempt is one provider invocation after scoring.
type attempt struct {
	method   constants.Method
	text     string
	pages    int
	fields   entity.PolicyFields
	conf     float64
	success  bool
	err      error
	duration time.Duration
}

// run is the mutable state of one extraction.
type run struct {
	req      entity.ExtractionRequest
	doc      extract.Document
	force    bool
	attempts []*attempt
	methods  []constants.Method
	accepted *attempt
	lastErr  error
	outcome  constants.UsageOutcome
	result   entity.ExtractionResult
}

func (r *run) allFailed() bool {
	for _, a := range r.attempts {
		if a.success {
			return false
		}
	}
	return true
}

// Extract runs the escalation state machine for one document. It never
// returns an error: failures are reported in the result.
func (o *Orchestrator) Extract(ctx context.Context, req entity.ExtractionRequest) entity.ExtractionResult {
	start := time.Now()
	r := &run{
		req:   req,
		doc:   extract.Document{Content: req.Content, MIMEType: req.MIMEType, FileName: req.FileName},
		force: req.ForcePremium || o.cfg.ForcePremium,
	}

	o.logger.Info("pipeline.extract.start",
		"file", req.FileName,
		"mime", req.MIMEType,
		"bytes", req.Size(),
		"force_premium", r.force,
		"request_id", common.RequestIDFromContext(ctx),
	)

	for st := stateValidate; st != stateDone; {
		next := o.step(ctx, r, st)
		o.logger.Debug("pipeline.extract.transition", "file", req.FileName, "from", st.String(), "to", next.String())
		st = next
	}

	r.result.ProcessingTime = time.Since(start)
	o.rec.ObserveResult(r.result)
	o.dispatchUsage(ctx, usageRecord(ctx, req, r.result, r.outcome))

	o.logger.Info("pipeline.extract.done",
		"file", req.FileName,
		"success", r.result.Success,
		"method", r.result.Method,
		"confidence", r.result.Confidence,
		"cost", r.result.Cost,
		"attempted", r.result.Metadata.MethodsAttempted,
		"elapsed_ms", r.result.ProcessingTime.Milliseconds(),
	)
	return r.result
}

func (o *Orchestrator) step(ctx context.Context, r *run, st state) state {
	switch st {
	case stateValidate:
		return o.validate(r)

	case stateTryText:
		a := o.try(ctx, r, o.providers.Text, constants.MethodPDFText, o.cfg.TextTierTimeout)
		if a.success && a.conf > o.cfg.MinConfidenceTextTier && !r.force {
			r.accepted = a
			return stateAccept
		}
		return stateTryOCR

	case stateTryOCR:
		a := o.try(ctx, r, o.providers.OCR, constants.MethodOCR, o.cfg.OCRTierTimeout)
		if a.success && a.conf > o.cfg.MinConfidenceOCRTier && !r.force {
			r.accepted = a
			return stateAccept
		}
		if r.force || r.allFailed() {
			return stateTryCloud
		}
		return stateAcceptBest

	case stateTryCloud:
		a := o.try(ctx, r, o.providers.Cloud, constants.MethodCloud, o.cfg.CloudTierTimeout)
		if a.success {
			r.accepted = a
			return stateAccept
		}
		return stateAcceptBest

	case stateAcceptBest:
		var best *attempt
		for _, a := range r.attempts {
			// later tiers win ties
			if a.success && (best == nil || a.conf >= best.conf) {
				best = a
			}
		}
		if best == nil {
			return stateFailure
		}
		r.accepted = best
		return stateAccept

	case stateAccept:
		o.accept(r)
		return stateDone

	case stateFailure:
		o.fail(r)
		return stateDone
	}
	return stateDone
}

func (o *Orchestrator) validate(r *run) state {
	switch {
	case constants.MapMIMEToFormat(r.req.MIMEType) == "":
		r.lastErr = fmt.Errorf("%w: %q", common.ErrUnsupportedType, r.req.MIMEType)
	case len(r.req.Content) == 0:
		r.lastErr = common.ErrEmptyDocument
	}
	if r.lastErr != nil {
		r.outcome = constants.UsageOutcomeRejected
		o.logger.Warn("pipeline.extract.rejected", "file", r.req.FileName, "mime", r.req.MIMEType, "error", r.lastErr)
		return stateFailure
	}
	if constants.MapMIMEToFormat(r.req.MIMEType) == constants.PDF {
		return stateTryText
	}
	return stateTryOCR
}

// try invokes one tier, applies the minimum text rule and scores the text.
func (o *Orchestrator) try(ctx context.Context, r *run, p extract.Provider, method constants.Method, timeout time.Duration) *attempt {
	a := &attempt{method: method}
	if p == nil {
		a.err = fmt.Errorf("%s: %w", method, common.ErrProviderNotConfigured)
		if r.lastErr == nil {
			r.lastErr = a.err
		}
		o.logger.Debug("pipeline.attempt.skipped", "file", r.req.FileName, "method", method)
		return a
	}

	start := time.Now()
	res, err := o.invoke(ctx, p, r.doc, timeout)
	a.duration = time.Since(start)
	r.methods = append(r.methods, method)

	switch {
	case err != nil:
		a.err = err
	case !res.Success:
		msg := strings.TrimSpace(res.Error)
		if msg == "" {
			msg = "provider reported failure"
		}
		a.err = errors.New(msg)
	default:
		text := strings.TrimSpace(res.Text)
		if n := utf8.RuneCountInString(text); n < o.cfg.MinTextLength {
			a.err = fmt.Errorf("%w: %d characters", common.ErrInsufficientText, n)
			break
		}
		a.success = true
		a.text = res.Text
		a.pages = res.PageCount
		if res.Fields != nil {
			// pre-structured by the provider; keep its confidence
			a.fields = *res.Fields
			a.conf = res.Confidence
			if a.conf <= 0 {
				a.conf = o.cfg.CloudDefaultConfidence
			}
			a.conf = math.Min(1, a.conf)
		} else {
			a.fields = policy.Parse(text)
			a.conf = policy.Score(text, &a.fields)
		}
	}

	r.attempts = append(r.attempts, a)
	if a.err != nil {
		r.lastErr = a.err
	}
	o.rec.ObserveAttempt(method, a.success, a.duration)

	o.logger.Info("pipeline.attempt",
		"file", r.req.FileName,
		"method", method,
		"success", a.success,
		"confidence", a.conf,
		"fields", a.fields.Count(),
		"elapsed_ms", a.duration.Milliseconds(),
		"error", errString(a.err),
	)
	return a
}

// invoke calls the provider under a tier timeout, converting panics into errors.
func (o *Orchestrator) invoke(ctx context.Context, p extract.Provider, doc extract.Document, timeout time.Duration) (extract.ProviderResult, error) {
	tctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type reply struct {
		res extract.ProviderResult
		err error
	}
	ch := make(chan reply, 1)
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				o.logger.Error("pipeline.provider.panic", "method", p.Method(), "panic", rec)
				ch <- reply{err: fmt.Errorf("%w: %v", common.ErrProviderPanic, rec)}
			}
		}()
		res, err := p.Extract(tctx, doc)
		ch <- reply{res: res, err: err}
	}()

	var rp reply
	select {
	case rp = <-ch:
	case <-tctx.Done():
		rp = reply{err: tctx.Err()}
	}
	// the tier budget ran out, not the caller's
	if errors.Is(rp.err, context.DeadlineExceeded) && ctx.Err() == nil {
		rp.err = fmt.Errorf("%w after %s", common.ErrProviderTimeout, timeout)
	}
	return rp.res, rp.err
}

func (o *Orchestrator) accept(r *run) {
	a := r.accepted
	fields := a.fields
	cost := 0.0
	if a.method == constants.MethodCloud {
		cost = roundCost(float64(max(a.pages, 1)) * o.cfg.CloudUnitCostPerPage)
	}
	r.outcome = constants.UsageOutcomeSuccess
	r.result = entity.ExtractionResult{
		Success:       true,
		Fields:        &fields,
		ExtractedText: a.text,
		Confidence:    a.conf,
		Method:        a.method,
		Cost:          cost,
		Metadata: entity.ExtractionMetadata{
			FileName:         r.req.FileName,
			FileSize:         r.req.Size(),
			MIMEType:         r.req.MIMEType,
			PageCount:        a.pages,
			MethodsAttempted: r.methodsAttempted(),
			Attempts:         r.history(),
		},
	}
}

func (o *Orchestrator) fail(r *run) {
	err := r.lastErr
	if err == nil {
		err = common.ErrAllProvidersFailed
	}
	if r.outcome == "" {
		r.outcome = constants.UsageOutcomeFailed
	}
	r.result = entity.FailedResult(r.req, err, r.methodsAttempted())
	r.result.Metadata.Attempts = r.history()
}

func (r *run) methodsAttempted() []constants.Method {
	out := make([]constants.Method, len(r.methods))
	copy(out, r.methods)
	return out
}

func (r *run) history() []entity.Attempt {
	if len(r.attempts) == 0 {
		return nil
	}
	out := make([]entity.Attempt, 0, len(r.attempts))
	for _, a := range r.attempts {
		out = append(out, entity.Attempt{
			Method:      a.method,
			Success:     a.success,
			Confidence:  a.conf,
			TextLength:  utf8.RuneCountInString(a.text),
			PageCount:   a.pages,
			FieldsFound: a.fields.Count(),
			Duration:    a.duration,
			Error:       errString(a.err),
		})
	}
	return out
}

func roundCost(c float64) float64 {
	return math.Round(c*1e6) / 1e6
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
