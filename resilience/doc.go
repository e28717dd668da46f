// Package resilience provides the retry loop and outbound throttling used by
// the crmkit transport.
//
//   - Retry: bounded retries with exponential backoff (iterative, context aware)
//   - RateLimiter: token bucket limiting outbound request rate
//   - Bulkhead: caps the number of requests in flight
//
// Retry delays follow BaseDelay * BackoffFactor^retryCount, so with the
// defaults (1s, 1.5) a call that fails four times waits 1s, 1.5s and 2.25s
// between attempts before surfacing RETRIES_EXHAUSTED.
//
//	resp, err := resilience.Retry(ctx, resilience.DefaultRetryConfig(), func(n int) (*Response, error) {
//	    return send(ctx, n)
//	})
package resilience
