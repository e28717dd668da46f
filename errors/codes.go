package errors

// ErrorCode represents a machine-readable error code.
type ErrorCode string

// Transport errors (retryable)
const (
	// ErrCodeTimeout indicates an attempt exceeded its deadline.
	ErrCodeTimeout ErrorCode = "TIMEOUT"
	// ErrCodeNetwork indicates a transport-level failure (DNS, connection refused, reset).
	ErrCodeNetwork ErrorCode = "NETWORK_ERROR"
	// ErrCodeHTTP indicates a non-2xx response other than 401.
	ErrCodeHTTP ErrorCode = "HTTP_ERROR"
)

// Terminal errors
const (
	// ErrCodeSessionExpired indicates the backend rejected the bearer credential (401).
	ErrCodeSessionExpired ErrorCode = "SESSION_EXPIRED"
	// ErrCodeRetriesExhausted indicates every allowed attempt failed.
	ErrCodeRetriesExhausted ErrorCode = "RETRIES_EXHAUSTED"
)

// Client-side errors
const (
	// ErrCodeInvalidRequest indicates the request could not be built.
	ErrCodeInvalidRequest ErrorCode = "INVALID_REQUEST"
	// ErrCodeDecode indicates a response body could not be decoded.
	ErrCodeDecode ErrorCode = "DECODE_FAILED"
)

var retryableCodes = map[ErrorCode]bool{
	ErrCodeTimeout: true,
	ErrCodeNetwork: true,
	ErrCodeHTTP:    true,
}

// IsRetryableCode returns true if the error code indicates a retryable error.
func IsRetryableCode(code ErrorCode) bool {
	return retryableCodes[code]
}
