package transport

import (
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	"github.com/kbukum/crmkit/errors"
	"github.com/kbukum/crmkit/resilience"
)

// Request describes one logical call.
type Request struct {
	// Method defaults to GET.
	Method string
	// Endpoint is appended to the base URL, e.g. "/jobs".
	Endpoint string
	Query    url.Values
	Headers  map[string]string
	// Body is JSON-encoded unless it is already []byte.
	Body any
	// Retry overrides the transport's retry policy for this call.
	Retry *RetryPolicy
	// NoHTTPRetry fails at once on a non-2xx answer instead of retrying.
	NoHTTPRetry bool
	// Operation names the call in logs and metrics. Defaults to Endpoint.
	Operation string
}

// RetryPolicy is the per-call retry override.
type RetryPolicy struct {
	MaxRetries int
	BaseDelay  time.Duration
}

func (r Request) operation() string {
	if r.Operation != "" {
		return r.Operation
	}
	return r.Endpoint
}

func (r Request) policy(base resilience.RetryConfig) resilience.RetryConfig {
	if r.Retry == nil {
		return base
	}
	base.MaxRetries = r.Retry.MaxRetries
	if r.Retry.BaseDelay > 0 {
		base.BaseDelay = r.Retry.BaseDelay
	}
	return base
}

// Response is a successful answer.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	// Attempts is how many attempts the call took.
	Attempts  int
	RequestID string
}

// Decode unmarshals the JSON body into v.
func (r *Response) Decode(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return errors.Decode(err)
	}
	return nil
}

// Attempt describes one try of a logical call. It is passed to attempt hooks.
type Attempt struct {
	Endpoint   string
	RetryCount int
	Deadline   time.Time
	RequestID  string
}
