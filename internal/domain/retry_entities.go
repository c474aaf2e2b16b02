// Package domain defines retry and circuit-breaker configuration shared by
// the config loader, the loader framework's per-record retry, and the
// worker's circuit breaker.
package domain

import "time"

// RetryConfig defines retry behavior for a wrapped operation.
type RetryConfig struct {
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	Jitter       bool
}

// DefaultRetryConfig returns the baseline retry policy; components layer
// their own overrides (circuit-breaker tuning, DLQ cooldown) on top.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:   3,
		InitialDelay: 2 * time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
		Jitter:       true,
	}
}

// CircuitBreakerConfig tunes a single named circuit breaker.
type CircuitBreakerConfig struct {
	FailureThreshold int
	Timeout          time.Duration
}

// DefaultCircuitBreakerConfig returns the baseline breaker tuning: open after
// 5 consecutive failures, try again after a 60s timeout.
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		FailureThreshold: 5,
		Timeout:          60 * time.Second,
	}
}

// RetryInfo tracks attempts for one retryable operation instance (one batch,
// one DLQ row). It is a bookkeeping value, not a store-backed entity.
type RetryInfo struct {
	AttemptCount  int
	LastAttemptAt time.Time
	LastError     string
}

// NextDelay computes the exponential backoff delay for the next attempt,
// capped at MaxDelay. When Jitter is set a fixed 10% is added; the result is
// not randomized.
func (ri *RetryInfo) NextDelay(cfg RetryConfig) time.Duration {
	delay := cfg.InitialDelay
	for i := 0; i < ri.AttemptCount; i++ {
		delay = time.Duration(float64(delay) * cfg.Multiplier)
		if delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
			break
		}
	}
	if cfg.Jitter {
		delay += time.Duration(float64(delay) * 0.1)
	}
	return delay
}

// RecordAttempt advances the attempt counter and remembers the failure.
func (ri *RetryInfo) RecordAttempt(err error) {
	ri.AttemptCount++
	ri.LastAttemptAt = time.Now()
	if err != nil {
		ri.LastError = err.Error()
	}
}
