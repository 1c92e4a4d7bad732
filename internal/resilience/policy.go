package resilience

import (
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"
)

// RetryPolicy bounds how often and how fast a failed call is repeated.
// Attempts counts the first call, so 1 disables retries.
type RetryPolicy struct {
	Attempts       int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64
}

// BreakerPolicy trips an operation's breaker once at least MinRequests calls
// were seen and FailureRatio of them failed.
type BreakerPolicy struct {
	Disabled         bool
	MinRequests      uint32
	FailureRatio     float64
	OpenFor          time.Duration
	HalfOpenMaxCalls uint32
}

type Config struct {
	Retry   RetryPolicy
	Breaker BreakerPolicy
}

// DefaultConfig suits a paid cloud backend: few retries with a noticeable
// backoff, and a breaker that opens after a burst of failed documents.
func DefaultConfig() Config {
	return Config{
		Retry: RetryPolicy{
			Attempts:       3,
			InitialBackoff: 500 * time.Millisecond,
			MaxBackoff:     4 * time.Second,
			Multiplier:     2,
		},
		Breaker: BreakerPolicy{
			MinRequests:      5,
			FailureRatio:     0.6,
			OpenFor:          time.Minute,
			HalfOpenMaxCalls: 1,
		},
	}
}

// Fast retries quickly and never trips. Meant for local brokers and tests.
func Fast(attempts int) Config {
	return Config{
		Retry:   RetryPolicy{Attempts: attempts, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond, Multiplier: 1},
		Breaker: BreakerPolicy{Disabled: true},
	}
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	def := DefaultConfig().Retry
	if p.Attempts <= 0 {
		p.Attempts = def.Attempts
	}
	if p.InitialBackoff <= 0 {
		p.InitialBackoff = def.InitialBackoff
	}
	if p.Multiplier < 1 {
		p.Multiplier = def.Multiplier
	}
	if p.MaxBackoff <= 0 {
		p.MaxBackoff = def.MaxBackoff
	}
	p.MaxBackoff = max(p.MaxBackoff, p.InitialBackoff)
	return p
}

// delay is the wait before retry number n (1-based), capped at MaxBackoff.
func (p RetryPolicy) delay(n int) time.Duration {
	d := float64(p.InitialBackoff)
	for i := 1; i < n; i++ {
		d *= p.Multiplier
		if d >= float64(p.MaxBackoff) {
			return p.MaxBackoff
		}
	}
	return min(time.Duration(d), p.MaxBackoff)
}

func (p BreakerPolicy) withDefaults() BreakerPolicy {
	def := DefaultConfig().Breaker
	if p.MinRequests == 0 {
		p.MinRequests = def.MinRequests
	}
	if p.FailureRatio <= 0 || p.FailureRatio > 1 {
		p.FailureRatio = def.FailureRatio
	}
	if p.OpenFor <= 0 {
		p.OpenFor = def.OpenFor
	}
	if p.HalfOpenMaxCalls == 0 {
		p.HalfOpenMaxCalls = def.HalfOpenMaxCalls
	}
	return p
}

func (p BreakerPolicy) settings(operation string, classifier ErrorClassifier, logger *slog.Logger) gobreaker.Settings {
	return gobreaker.Settings{
		Name:        operation,
		MaxRequests: p.HalfOpenMaxCalls,
		Timeout:     p.OpenFor,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.Requests >= p.MinRequests &&
				float64(c.TotalFailures)/float64(c.Requests) >= p.FailureRatio
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !classifier(err).RecordFailure
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("resilience.breaker.state_change", "operation", name, "from", from.String(), "to", to.String())
		},
	}
}
