package resilience

import (
	"time"

	"mercator-hq/scanport/pkg/config"
)

// Policy bounds the retries and circuit breaking applied to one sink.
type Policy struct {
	// Attempts is the total number of tries, including the first.
	Attempts int

	// Backoff is the wait before the first retry. Each later wait is
	// Multiplier times the previous one, capped at MaxBackoff.
	Backoff    time.Duration
	MaxBackoff time.Duration
	Multiplier float64

	// Breaker enables one circuit breaker per target. It opens after
	// TripAfter consecutive counted failures, stays open for OpenFor and
	// then lets HalfOpenCalls trial calls through.
	Breaker       bool
	TripAfter     uint32
	OpenFor       time.Duration
	HalfOpenCalls uint32
}

// PolicyFrom builds the policy for a sink resilience section. Breakers are
// always on for configured sinks.
func PolicyFrom(cfg config.ResilienceConfig) Policy {
	return Policy{
		Attempts:      cfg.MaxRetries + 1,
		Backoff:       cfg.InitialBackoff,
		MaxBackoff:    cfg.MaxBackoff,
		Multiplier:    2,
		Breaker:       true,
		TripAfter:     cfg.BreakerFailures,
		OpenFor:       cfg.BreakerTimeout,
		HalfOpenCalls: 1,
	}
}

// withDefaults fills unusable values. Zero backoff is kept and means retry
// immediately.
func (p Policy) withDefaults() Policy {
	if p.Attempts < 1 {
		p.Attempts = 1
	}
	if p.Backoff < 0 {
		p.Backoff = 0
	}
	if p.MaxBackoff < p.Backoff {
		p.MaxBackoff = p.Backoff
	}
	if p.Multiplier < 1 {
		p.Multiplier = 2
	}
	if p.TripAfter == 0 {
		p.TripAfter = config.DefaultBreakerFailures
	}
	if p.OpenFor <= 0 {
		p.OpenFor = config.DefaultBreakerTimeout
	}
	if p.HalfOpenCalls == 0 {
		p.HalfOpenCalls = 1
	}
	return p
}

// wait returns the delay before retry n (1-based).
func (p Policy) wait(n int) time.Duration {
	d := float64(p.Backoff)
	for i := 1; i < n; i++ {
		d *= p.Multiplier
		if d >= float64(p.MaxBackoff) {
			return p.MaxBackoff
		}
	}
	return min(time.Duration(d), p.MaxBackoff)
}
