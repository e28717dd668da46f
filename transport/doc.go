// Package transport sends requests to the CRM backend with per-attempt
// timeouts, bounded exponential-backoff retries, and connection state
// reporting.
//
// One logical call (Send) runs up to MaxRetries+1 attempts. Each attempt:
//
//   - reports Begin to the state reporter,
//   - runs under its own timeout (30s by default),
//   - carries X-LOCATION, Authorization and X-Request-ID headers.
//
// Timeouts, network errors and non-2xx answers are retried after
// BaseDelay*1.5^n. A 401 is never retried: the credential source is cleared
// and SESSION_EXPIRED is returned at once. When the call ends the reporter
// gets Succeed (the backend answered), Fail (retries exhausted) or
// Disconnect (the caller gave up).
package transport
