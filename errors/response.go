package errors

import (
	"encoding/json"
	stderrors "errors"
)

// ErrorResponse is the JSON error envelope the CRM backend answers with.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// ErrorBody contains the error details sent by the backend.
type ErrorBody struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Retryable bool                   `json:"retryable"`
	Details   map[string]interface{} `json:"details,omitempty"`
}

// ToResponse converts an AppError to an ErrorResponse for JSON serialization.
func (e *AppError) ToResponse() ErrorResponse {
	return ErrorResponse{
		Error: ErrorBody{
			Code:      e.Code,
			Message:   e.Message,
			Retryable: e.Retryable,
			Details:   e.Details,
		},
	}
}

// ParseErrorResponse decodes an error envelope. It reports false for empty or
// foreign bodies.
func ParseErrorResponse(body []byte) (ErrorResponse, bool) {
	var resp ErrorResponse
	if len(body) == 0 || json.Unmarshal(body, &resp) != nil {
		return ErrorResponse{}, false
	}
	return resp, resp.Error.Message != "" || resp.Error.Code != ""
}

// AsAppError converts an error to an AppError if possible.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}
