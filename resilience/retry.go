package resilience

import (
	"context"
	stderrors "errors"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/kbukum/crmkit/errors"
)

// RetryConfig configures retry behavior.
type RetryConfig struct {
	// MaxRetries is the number of retries after the first attempt.
	// A permanently failing call is attempted MaxRetries+1 times.
	MaxRetries int
	// BaseDelay is the delay before the first retry.
	BaseDelay time.Duration
	// BackoffFactor is the multiplier applied per retry.
	BackoffFactor float64
	// MaxDelay caps a single delay. 0 leaves delays uncapped.
	MaxDelay time.Duration
	// Jitter adds randomness to each delay (0.0 to 1.0). 0 keeps delays exact.
	Jitter float64
	// RetryIf determines if an error should be retried.
	RetryIf func(error) bool
	// OnRetry is called before each wait with the upcoming retry count.
	OnRetry func(retryCount int, err error, delay time.Duration)
}

// DefaultRetryConfig returns the transport defaults: 3 retries, 1s base, factor 1.5.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:    3,
		BaseDelay:     time.Second,
		BackoffFactor: 1.5,
		RetryIf:       DefaultRetryIf,
	}
}

// DefaultRetryIf retries errors classified as retryable, never cancellation.
func DefaultRetryIf(err error) bool {
	if stderrors.Is(err, context.Canceled) {
		return false
	}
	return errors.IsRetryable(err)
}

// Validate rejects a policy whose delays would not strictly increase:
// a factor of 1 or less, or a MaxDelay the last retry would reach.
func (c RetryConfig) Validate() error {
	if c.MaxRetries < 0 {
		return stderrors.New("max_retries must not be negative")
	}
	if c.BackoffFactor != 0 && c.BackoffFactor <= 1 {
		return stderrors.New("backoff_factor must be greater than 1")
	}
	if c.MaxDelay > 0 && c.MaxRetries > 1 {
		unjittered := c
		unjittered.Jitter = 0
		unjittered.MaxDelay = 0
		if longest := Backoff(unjittered, c.MaxRetries-1); c.MaxDelay < longest {
			return fmt.Errorf("max_delay %s is below the last retry delay %s", c.MaxDelay, longest)
		}
	}
	return nil
}

func (c RetryConfig) withDefaults() RetryConfig {
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = time.Second
	}
	if c.BackoffFactor <= 0 {
		c.BackoffFactor = 1.5
	}
	if c.RetryIf == nil {
		c.RetryIf = DefaultRetryIf
	}
	return c
}

// Retry runs fn until it succeeds, returns a non-retryable error, or runs out
// of retries. fn receives the zero-based retry count of the attempt.
//
// On exhaustion the last error is wrapped in a RETRIES_EXHAUSTED AppError.
// Cancellation of ctx before an attempt or during a wait returns ctx.Err().
func Retry[T any](ctx context.Context, cfg RetryConfig, fn func(retryCount int) (T, error)) (T, error) {
	var zero T
	cfg = cfg.withDefaults()

	for retryCount := 0; ; retryCount++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		result, err := fn(retryCount)
		if err == nil {
			return result, nil
		}
		if !cfg.RetryIf(err) {
			return zero, err
		}
		if retryCount >= cfg.MaxRetries {
			return zero, errors.RetriesExhausted(retryCount+1, err)
		}

		delay := Backoff(cfg, retryCount)
		if cfg.OnRetry != nil {
			cfg.OnRetry(retryCount+1, err, delay)
		}
		if err := sleep(ctx, delay); err != nil {
			return zero, err
		}
	}
}

// Backoff returns the wait after the attempt with the given retry count:
// BaseDelay * BackoffFactor^retryCount, jittered and capped when configured.
func Backoff(cfg RetryConfig, retryCount int) time.Duration {
	cfg = cfg.withDefaults()
	d := float64(cfg.BaseDelay) * math.Pow(cfg.BackoffFactor, float64(retryCount))

	if cfg.Jitter > 0 {
		d += (rand.Float64()*2 - 1) * d * cfg.Jitter
	}
	if cfg.MaxDelay > 0 && d > float64(cfg.MaxDelay) {
		d = float64(cfg.MaxDelay)
	}
	if d < 0 {
		d = float64(cfg.BaseDelay)
	}
	return time.Duration(d)
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
