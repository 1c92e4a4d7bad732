package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/joseph-ayodele/policy-extractor/constants"
	"github.com/joseph-ayodele/policy-extractor/internal/common"
	"github.com/joseph-ayodele/policy-extractor/internal/entity"
)

// UsageLogger records processing usage for billing and analytics. The
// orchestrator calls it off the request path and ignores its errors.
type UsageLogger interface {
	LogUsage(ctx context.Context, rec entity.UsageRecord) error
}

// UsageLoggerFunc adapts a function to UsageLogger.
type UsageLoggerFunc func(ctx context.Context, rec entity.UsageRecord) error

func (f UsageLoggerFunc) LogUsage(ctx context.Context, rec entity.UsageRecord) error {
	return f(ctx, rec)
}

// MultiLogger fans a record out to every sink; one failing sink does not
// stop the others.
type MultiLogger []UsageLogger

func (m MultiLogger) LogUsage(ctx context.Context, rec entity.UsageRecord) error {
	var errs []error
	for _, l := range m {
		if l == nil {
			continue
		}
		if err := l.LogUsage(ctx, rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func usageRecord(ctx context.Context, req entity.ExtractionRequest, res entity.ExtractionResult, outcome constants.UsageOutcome) entity.UsageRecord {
	tenant := req.TenantID
	if tenant == "" {
		tenant = common.TenantIDFromContext(ctx)
	}
	return entity.UsageRecord{
		TenantID:   tenant,
		FileName:   req.FileName,
		FileSize:   req.Size(),
		Method:     res.Method,
		Outcome:    outcome,
		Cost:       res.Cost,
		Confidence: res.Confidence,
		RecordedAt: time.Now().UTC(),
	}
}

// dispatchUsage hands rec to the usage logger on its own goroutine.
func (o *Orchestrator) dispatchUsage(ctx context.Context, rec entity.UsageRecord) {
	if o.usage == nil {
		return
	}
	// outlive the request, but not forever
	base := context.WithoutCancel(ctx)
	o.inflight.Add(1)
	go func() {
		defer o.inflight.Done()
		defer func() {
			if r := recover(); r != nil {
				o.logger.Error("pipeline.usage.panic", "file", rec.FileName, "panic", r)
			}
		}()
		lctx, cancel := context.WithTimeout(base, o.cfg.UsageLogTimeout)
		defer cancel()
		if err := o.usage.LogUsage(lctx, rec); err != nil {
			o.logger.Warn("pipeline.usage.failed", "file", rec.FileName, "method", rec.Method, "error", err)
			return
		}
		o.logger.Debug("pipeline.usage.logged", "file", rec.FileName, "method", rec.Method, "cost", rec.Cost)
	}()
}

// Drain waits for in-flight usage dispatches, or for ctx to end.
func (o *Orchestrator) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() { defer close(done); o.inflight.Wait() }()

	select {
	case <-ctx.Done():
		o.logger.Warn("pipeline.drain.interrupted")
		return ctx.Err()
	case <-done:
		return nil
	}
}
