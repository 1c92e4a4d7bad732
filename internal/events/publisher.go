// Package events publishes usage records to NATS so billing and analytics
// consumers can follow processing without polling the database.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/joseph-ayodele/policy-extractor/internal/entity"
	"github.com/joseph-ayodele/policy-extractor/internal/resilience"
)

// publisher is the subset of *nats.Conn used here.
type publisher interface {
	Publish(subject string, data []byte) error
}

type Options struct {
	ConnectTimeout time.Duration
	ReconnectWait  time.Duration
	MaxReconnects  int
	Executor       *resilience.Executor
}

// UsagePublisher implements pipeline.UsageLogger over a NATS subject.
type UsagePublisher struct {
	conn     *nats.Conn
	pub      publisher
	subject  string
	executor *resilience.Executor
	logger   *slog.Logger
}

func Connect(url, subject string, opts Options, logger *slog.Logger) (*UsagePublisher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = 2 * time.Second
	}
	if opts.ReconnectWait <= 0 {
		opts.ReconnectWait = 2 * time.Second
	}
	if opts.MaxReconnects <= 0 {
		opts.MaxReconnects = 60
	}

	conn, err := nats.Connect(
		url,
		nats.Name("policy-extractor"),
		nats.Timeout(opts.ConnectTimeout),
		nats.ReconnectWait(opts.ReconnectWait),
		nats.MaxReconnects(opts.MaxReconnects),
		nats.RetryOnFailedConnect(true),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("events.nats.disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("events.nats.reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	p := newUsagePublisher(conn, subject, opts.Executor, logger)
	p.conn = conn
	return p, nil
}

func newUsagePublisher(pub publisher, subject string, exec *resilience.Executor, logger *slog.Logger) *UsagePublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &UsagePublisher{pub: pub, subject: subject, executor: exec, logger: logger}
}

// usageEvent is the wire shape of a published record.
type usageEvent struct {
	Type string             `json:"type"`
	Data entity.UsageRecord `json:"data"`
}

const usageEventType = "policy.usage.recorded"

func (p *UsagePublisher) LogUsage(ctx context.Context, rec entity.UsageRecord) error {
	payload, err := json.Marshal(usageEvent{Type: usageEventType, Data: rec})
	if err != nil {
		return fmt.Errorf("marshal usage event: %w", err)
	}

	call := func(context.Context) error {
		if err := p.pub.Publish(p.subject, payload); err != nil {
			return fmt.Errorf("nats publish: %w", err)
		}
		return nil
	}
	if p.executor != nil {
		err = p.executor.Execute(ctx, "nats.publish", call, classifyNATSError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return err
	}
	p.logger.Debug("events.usage.published", "subject", p.subject, "file", rec.FileName)
	return nil
}

// Close flushes pending messages and closes the connection.
func (p *UsagePublisher) Close() {
	if p.conn == nil {
		return
	}
	if err := p.conn.FlushTimeout(5 * time.Second); err != nil {
		p.logger.Warn("events.nats.flush_failed", "error", err)
	}
	p.conn.Close()
}

func classifyNATSError(err error) resilience.ErrorClassification {
	if err == nil {
		return resilience.ErrorClassification{}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return resilience.ErrorClassification{}
	}
	if errors.Is(err, nats.ErrNoServers) ||
		errors.Is(err, nats.ErrTimeout) ||
		errors.Is(err, nats.ErrConnectionClosed) ||
		errors.Is(err, nats.ErrDisconnected) ||
		errors.Is(err, nats.ErrConnectionReconnecting) {
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	}
	return resilience.ErrorClassification{Retryable: false, RecordFailure: true}
}
