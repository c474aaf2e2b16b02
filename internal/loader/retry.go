package loader

import (
	"errors"

	"github.com/cenkalti/backoff/v4"

	"github.com/lexara-six/ingestion/internal/domain"
)

// Retry re-invokes fn up to cfg.MaxRetries times with exponential backoff,
// rethrowing the last failure once retries are exhausted. shouldRetry
// decides whether a given error is worth retrying at all; an error it
// rejects propagates on the first attempt without consuming a retry. A nil
// shouldRetry retries every error.
//
// This is the generic counterpart to AcquireWithRetry (which is scoped to
// acquiring one pool connection): any transient per-record store error goes
// through here instead.
func Retry(ctx domain.Context, cfg domain.RetryConfig, shouldRetry func(error) bool, fn func() error) error {
	info := domain.RetryInfo{}

	op := func() error {
		err := fn()
		if err == nil {
			return nil
		}
		if shouldRetry != nil && !shouldRetry(err) {
			return backoff.Permanent(err)
		}
		info.RecordAttempt(err)
		return err
	}

	bo := &backoff.ExponentialBackOff{
		InitialInterval:     cfg.InitialDelay,
		MaxInterval:         cfg.MaxDelay,
		Multiplier:          cfg.Multiplier,
		RandomizationFactor: 0,
		MaxElapsedTime:      0,
		Stop:                backoff.Stop,
		Clock:               backoff.SystemClock,
	}
	if cfg.Jitter {
		bo.RandomizationFactor = backoff.DefaultRandomizationFactor
	}
	bo.Reset()

	maxRetries := cfg.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}

	err := backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(bo, uint64(maxRetries)), ctx))
	if err == nil {
		return nil
	}
	var permanent *backoff.PermanentError
	if errors.As(err, &permanent) {
		return permanent.Err
	}
	return err
}

// isTransientProcessError reports whether a ProcessRecord failure is worth
// retrying. Argument/duplicate/no-loader errors are permanent — retrying
// them just re-wastes the same failure; an open circuit is itself the
// signal to stop hammering the downstream store, so it propagates
// immediately rather than spending retries against it.
func isTransientProcessError(err error) bool {
	switch {
	case errors.Is(err, domain.ErrInvalidArgument),
		errors.Is(err, domain.ErrAlreadyExists),
		errors.Is(err, domain.ErrNoLoader),
		errors.Is(err, domain.ErrCircuitOpen):
		return false
	default:
		return true
	}
}
