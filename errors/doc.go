// Package errors defines the error taxonomy of the CRM access layer.
//
// Every failure surfaced by the transport is an *AppError carrying a
// machine-readable code, the HTTP status when the backend answered, and
// whether the failure is worth retrying:
//
//	TIMEOUT            attempt exceeded its deadline (retryable)
//	NETWORK_ERROR      DNS, refused, reset (retryable)
//	HTTP_ERROR         non-2xx other than 401 (retryable unless opted out)
//	SESSION_EXPIRED    401; credentials are cleared, never retried
//	RETRIES_EXHAUSTED  wraps the last failure after the final attempt
//
// Use the Is* helpers rather than comparing codes directly; they look
// through RETRIES_EXHAUSTED wrappers.
package errors
