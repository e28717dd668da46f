package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// AppError is the unified error type returned by the access layer.
type AppError struct {
	// Code is a machine-readable error code.
	Code ErrorCode `json:"code"`
	// Message is a short description of the failure.
	Message string `json:"message"`
	// Retryable indicates if the operation can be retried.
	Retryable bool `json:"retryable"`
	// StatusCode is the HTTP status the backend answered with (0 when it never answered).
	StatusCode int `json:"status,omitempty"`
	// Attempts is the number of attempts made (set on RETRIES_EXHAUSTED).
	Attempts int `json:"attempts,omitempty"`
	// Details contains additional context for the error.
	Details map[string]any `json:"details,omitempty"`
	// Cause is the underlying error that caused this error.
	Cause error `json:"-"`
}

// Error returns the string representation of the error.
func (e *AppError) Error() string {
	msg := string(e.Code)
	if e.StatusCode > 0 {
		msg = fmt.Sprintf("%s (HTTP %d)", msg, e.StatusCode)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s (cause: %v)", msg, e.Cause)
	}
	return msg
}

// Unwrap returns the underlying cause of the error.
func (e *AppError) Unwrap() error { return e.Cause }

// WithDetail sets a single detail key-value pair and returns the receiver.
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// New creates a new AppError with automatic retryable detection.
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:      code,
		Message:   message,
		Retryable: IsRetryableCode(code),
	}
}

// Timeout creates an error for an attempt that exceeded its deadline.
func Timeout(cause error) *AppError {
	return &AppError{
		Code: ErrCodeTimeout, Message: "request timed out",
		Retryable: true, Cause: cause,
	}
}

// Network creates an error for a transport-level failure.
func Network(cause error) *AppError {
	msg := "network failure"
	if cause != nil {
		msg = cause.Error()
	}
	return &AppError{
		Code: ErrCodeNetwork, Message: msg,
		Retryable: true, Cause: cause,
	}
}

// HTTP creates an error for a non-2xx response. The message is taken from an
// ErrorResponse body when the backend sent one.
func HTTP(status int, body []byte) *AppError {
	msg := http.StatusText(status)
	if parsed, ok := ParseErrorResponse(body); ok && parsed.Error.Message != "" {
		msg = parsed.Error.Message
	}
	return &AppError{
		Code: ErrCodeHTTP, Message: msg, StatusCode: status,
		Retryable: true,
	}
}

// SessionExpired creates the error surfaced for a 401 response.
func SessionExpired() *AppError {
	return &AppError{
		Code: ErrCodeSessionExpired, Message: "session expired, sign in again",
		StatusCode: http.StatusUnauthorized, Retryable: false,
	}
}

// RetriesExhausted wraps the last failure after the final attempt.
func RetriesExhausted(attempts int, last error) *AppError {
	e := &AppError{
		Code: ErrCodeRetriesExhausted, Message: fmt.Sprintf("gave up after %d attempts", attempts),
		Attempts: attempts, Retryable: false, Cause: last,
	}
	if app, ok := AsAppError(last); ok {
		e.StatusCode = app.StatusCode
	}
	return e
}

// InvalidRequest creates an error for a request that could not be built.
func InvalidRequest(reason string) *AppError {
	return &AppError{Code: ErrCodeInvalidRequest, Message: reason}
}

// Decode creates an error for a response body that could not be decoded.
func Decode(cause error) *AppError {
	return &AppError{Code: ErrCodeDecode, Message: "malformed response body", Cause: cause}
}

// --- Predicates ---

// Is reports whether any AppError in err's chain carries code.
func Is(err error, code ErrorCode) bool {
	for err != nil {
		var app *AppError
		if !stderrors.As(err, &app) {
			return false
		}
		if app.Code == code {
			return true
		}
		err = app.Cause
	}
	return false
}

// IsTimeout reports whether err is, or wraps, a TIMEOUT error.
func IsTimeout(err error) bool { return Is(err, ErrCodeTimeout) }

// IsNetwork reports whether err is, or wraps, a NETWORK_ERROR.
func IsNetwork(err error) bool { return Is(err, ErrCodeNetwork) }

// IsHTTP reports whether err is, or wraps, an HTTP_ERROR.
func IsHTTP(err error) bool { return Is(err, ErrCodeHTTP) }

// IsSessionExpired reports whether err is, or wraps, a SESSION_EXPIRED error.
func IsSessionExpired(err error) bool { return Is(err, ErrCodeSessionExpired) }

// IsRetriesExhausted reports whether err is a RETRIES_EXHAUSTED error.
func IsRetriesExhausted(err error) bool { return Is(err, ErrCodeRetriesExhausted) }

// IsRetryable reports whether the outermost AppError in err's chain is retryable.
func IsRetryable(err error) bool {
	app, ok := AsAppError(err)
	return ok && app.Retryable
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	if app, ok := AsAppError(err); ok {
		return app.StatusCode
	}
	return 0
}
