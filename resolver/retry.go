package resolver

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"
)

// jitterPercent is the percentage of jitter to add to retry delays (+/- 25%).
const jitterPercent = 0.25

// RetryConfig defines retry and exponential backoff behavior for failed
// resolutions. Zero max_retries disables retrying.
type RetryConfig struct {
	MaxRetries   int           `yaml:"max_retries,omitempty"`
	InitialDelay time.Duration `yaml:"initial_delay,omitempty"`
	MaxDelay     time.Duration `yaml:"max_delay,omitempty"`
	Multiplier   float64       `yaml:"multiplier,omitempty"`
}

// IsEnabled returns true if retries are configured.
func (r *RetryConfig) IsEnabled() bool {
	return r.MaxRetries > 0
}

// GetMaxRetries returns the max retries with a default of 0 (no retries).
func (r *RetryConfig) GetMaxRetries() int {
	if r.MaxRetries < 0 {
		return 0
	}
	return r.MaxRetries
}

// GetInitialDelay returns the initial delay with a default of 1 second.
func (r *RetryConfig) GetInitialDelay() time.Duration {
	if r.InitialDelay > 0 {
		return r.InitialDelay
	}
	return time.Second
}

// GetMaxDelay returns the max delay with a default of 30 seconds.
func (r *RetryConfig) GetMaxDelay() time.Duration {
	if r.MaxDelay > 0 {
		return r.MaxDelay
	}
	return 30 * time.Second
}

// GetMultiplier returns the backoff multiplier with a default of 2.0.
func (r *RetryConfig) GetMultiplier() float64 {
	if r.Multiplier > 0 {
		return r.Multiplier
	}
	return 2.0
}

// Retrier wraps a Resolver with retry logic and exponential backoff. Only
// transport failures are retried; a cancelled context stops immediately.
type Retrier struct {
	inner  Resolver
	config RetryConfig
}

// NewRetrier creates a Retrier around the given resolver.
func NewRetrier(inner Resolver, cfg RetryConfig) *Retrier {
	return &Retrier{
		inner:  inner,
		config: cfg,
	}
}

// Resolve attempts to resolve the URL, retrying transport failures with
// exponential backoff and jitter.
func (r *Retrier) Resolve(ctx context.Context, rawURL string) (string, error) {
	maxRetries := r.config.GetMaxRetries()

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		resolved, err := r.inner.Resolve(ctx, rawURL)
		if err == nil {
			return resolved, nil
		}
		lastErr = err

		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			break
		}

		if attempt < maxRetries {
			if sleepErr := r.sleep(ctx, r.calculateBackoff(attempt)); sleepErr != nil {
				return "", &NetworkError{URL: rawURL, Err: sleepErr}
			}
		}
	}

	return "", lastErr
}

// calculateBackoff computes the backoff duration for a given attempt using
// exponential backoff.
func (r *Retrier) calculateBackoff(attempt int) time.Duration {
	initialDelay := r.config.GetInitialDelay()
	maxDelay := r.config.GetMaxDelay()
	multiplier := r.config.GetMultiplier()

	delay := float64(initialDelay) * math.Pow(multiplier, float64(attempt))

	if delay > float64(maxDelay) {
		delay = float64(maxDelay)
	}

	return addJitter(time.Duration(delay))
}

// addJitter adds random jitter to prevent thundering herd.
// Jitter is +/- 25% of the duration.
func addJitter(duration time.Duration) time.Duration {
	if duration == 0 {
		return 0
	}

	jitterRange := float64(duration) * jitterPercent
	jitter := (rand.Float64()*2.0 - 1.0) * jitterRange

	result := float64(duration) + jitter
	if result < 0 {
		return 0
	}

	return time.Duration(result)
}

// sleep waits for the specified duration or until context is cancelled.
func (r *Retrier) sleep(ctx context.Context, duration time.Duration) error {
	select {
	case <-time.After(duration):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
