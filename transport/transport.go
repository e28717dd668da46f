package transport

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"golang.org/x/net/http2"

	"github.com/kbukum/crmkit/credentials"
	"github.com/kbukum/crmkit/errors"
	"github.com/kbukum/crmkit/logger"
	"github.com/kbukum/crmkit/observability"
	"github.com/kbukum/crmkit/resilience"
	"github.com/kbukum/crmkit/version"
)

// Header names set on every attempt.
const (
	HeaderAuthorization = "Authorization"
	HeaderRequestID     = "X-Request-ID"
)

// StateReporter receives the outcome of attempts and calls.
// *connection.Machine implements it.
type StateReporter interface {
	Begin()
	Succeed()
	Fail(err error)
	Disconnect()
}

// LocationSource supplies the location header at attempt time.
// *location.Router implements it.
type LocationSource interface {
	Header() (name, value string)
}

// Transport is safe for concurrent use.
type Transport struct {
	cfg        Config
	httpClient *http.Client
	state      StateReporter
	creds      credentials.Source
	location   LocationSource
	limiter    *resilience.RateLimiter
	bulkhead   *resilience.Bulkhead
	onAttempt  func(Attempt)
	log        *logger.Logger
	metrics    *observability.Metrics
}

// Option configures a Transport.
type Option func(*Transport)

// WithStateReporter sets where attempt outcomes are reported.
func WithStateReporter(r StateReporter) Option {
	return func(t *Transport) { t.state = r }
}

// WithCredentials sets the bearer token source.
func WithCredentials(s credentials.Source) Option {
	return func(t *Transport) { t.creds = s }
}

// WithLocation sets the location header source.
func WithLocation(l LocationSource) Option {
	return func(t *Transport) { t.location = l }
}

// WithHTTPClient replaces the underlying client. Its Timeout is ignored in
// favor of the per-attempt timeout.
func WithHTTPClient(c *http.Client) Option {
	return func(t *Transport) { t.httpClient = c }
}

// WithAttemptHook registers fn to run before every attempt.
func WithAttemptHook(fn func(Attempt)) Option {
	return func(t *Transport) { t.onAttempt = fn }
}

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option {
	return func(t *Transport) { t.log = l }
}

// WithMetrics records attempts, retries and requests.
func WithMetrics(m *observability.Metrics) Option {
	return func(t *Transport) { t.metrics = m }
}

// New creates a transport.
func New(cfg Config, opts ...Option) (*Transport, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	t := &Transport{
		cfg:   cfg,
		state: nopReporter{},
		creds: credentials.None{},
	}
	for _, opt := range opts {
		opt(t)
	}
	t.log = logger.OrNop(t.log).WithComponent("transport")

	if t.httpClient == nil {
		client, err := newHTTPClient(cfg)
		if err != nil {
			return nil, err
		}
		t.httpClient = client
	}
	if cfg.RateLimit.Enabled() {
		t.limiter = resilience.NewRateLimiter(cfg.RateLimit)
	}
	t.bulkhead = resilience.NewBulkhead(cfg.MaxInFlight)
	return t, nil
}

func newHTTPClient(cfg Config) (*http.Client, error) {
	rt := http.DefaultTransport.(*http.Transport).Clone()
	tlsCfg, err := cfg.TLS.Build()
	if err != nil {
		return nil, err
	}
	if tlsCfg != nil {
		rt.TLSClientConfig = tlsCfg
	}
	if cfg.HTTP2 {
		if err := http2.ConfigureTransport(rt); err != nil {
			return nil, fmt.Errorf("transport: enable http2: %w", err)
		}
	}
	return &http.Client{Transport: rt}, nil
}

// Send runs one logical call.
//
// The error is an *errors.AppError: SESSION_EXPIRED on 401, HTTP_ERROR when
// NoHTTPRetry stops on a non-2xx answer, RETRIES_EXHAUSTED wrapping the last
// attempt's error otherwise. If ctx ends first, ctx.Err() is returned.
func (t *Transport) Send(ctx context.Context, req Request) (*Response, error) {
	body, err := t.prepare(&req)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	requestID := uuid.NewString()
	op := req.operation()
	ctx, span := observability.StartSpan(ctx, observability.SpanRequest)
	span.SetAttributes(
		attribute.String(observability.AttrOperation, op),
		attribute.String(observability.AttrEndpoint, req.Endpoint),
		attribute.String(observability.AttrRequestID, requestID),
	)
	log := t.log.WithFields(logger.Fields(
		logger.FieldOperation, op,
		logger.FieldRequestID, requestID,
	))

	attempts := 0
	policy := req.policy(t.cfg.Retry)
	policy.RetryIf = func(err error) bool {
		if errors.IsHTTP(err) && req.NoHTTPRetry {
			return false
		}
		return resilience.DefaultRetryIf(err)
	}
	policy.OnRetry = func(retryCount int, err error, delay time.Duration) {
		log.Warn("attempt failed, retrying", logger.Fields(
			logger.FieldAttempt, retryCount,
			logger.FieldBackoff, delay.Milliseconds(),
			logger.FieldError, err.Error(),
		))
		t.metrics.RecordRetry(ctx, req.Endpoint)
	}

	resp, err := resilience.Retry(ctx, policy, func(retryCount int) (*Response, error) {
		attempts = retryCount + 1
		return t.attempt(ctx, req, body, requestID, retryCount)
	})

	status := t.settle(ctx, err)
	span.SetAttributes(attribute.Int(observability.AttrAttempts, attempts))
	observability.EndSpan(span, err)
	t.metrics.RecordRequest(ctx, op, status, time.Since(start))

	if err != nil {
		log.Debug("request failed", logger.Fields(
			logger.FieldStatus, status,
			logger.FieldAttempt, attempts,
			logger.FieldError, err.Error(),
		))
		return nil, err
	}
	resp.Attempts = attempts
	return resp, nil
}

// settle reports the call outcome and returns a status label for metrics.
func (t *Transport) settle(ctx context.Context, err error) string {
	switch {
	case err == nil:
		t.state.Succeed()
		return "ok"
	case ctx.Err() != nil:
		t.state.Disconnect()
		return "cancelled"
	case errors.IsSessionExpired(err):
		t.creds.Clear()
		t.state.Succeed()
		return "session_expired"
	case errors.IsRetriesExhausted(err):
		t.state.Fail(err)
		return "exhausted"
	case errors.IsHTTP(err):
		t.state.Succeed()
		return "http_error"
	default:
		t.state.Fail(err)
		return "error"
	}
}

func (t *Transport) prepare(req *Request) ([]byte, error) {
	if req.Method == "" {
		req.Method = http.MethodGet
	}
	if req.Endpoint == "" {
		return nil, errors.InvalidRequest("endpoint is required")
	}
	if strings.Contains(req.Endpoint, "://") {
		return nil, errors.InvalidRequest("endpoint must be a path, got " + req.Endpoint)
	}
	if req.Retry != nil {
		if err := req.policy(t.cfg.Retry).Validate(); err != nil {
			return nil, errors.InvalidRequest("retry: " + err.Error())
		}
	}
	// method and url are checked here so a malformed call never reaches the state machine
	if _, err := http.NewRequest(req.Method, t.url(req.Endpoint), nil); err != nil {
		return nil, errors.InvalidRequest("create request: " + err.Error())
	}
	switch b := req.Body.(type) {
	case nil:
		return nil, nil
	case []byte:
		return b, nil
	default:
		data, err := json.Marshal(b)
		if err != nil {
			return nil, errors.InvalidRequest("encode body: " + err.Error())
		}
		return data, nil
	}
}

func (t *Transport) attempt(ctx context.Context, req Request, body []byte, requestID string, retryCount int) (*Response, error) {
	if t.limiter != nil {
		if err := t.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	release, err := t.bulkhead.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	t.state.Begin()

	attemptCtx, cancel := context.WithTimeout(ctx, t.cfg.Timeout)
	defer cancel()

	if t.onAttempt != nil {
		deadline, _ := attemptCtx.Deadline()
		t.onAttempt(Attempt{
			Endpoint:   req.Endpoint,
			RetryCount: retryCount,
			Deadline:   deadline,
			RequestID:  requestID,
		})
	}

	httpReq, err := t.build(attemptCtx, req, body, requestID)
	if err != nil {
		return nil, err
	}

	resp, err := t.do(ctx, attemptCtx, httpReq)
	t.metrics.RecordAttempt(ctx, req.Endpoint, outcome(resp, err))
	return resp, err
}

func (t *Transport) do(ctx, attemptCtx context.Context, httpReq *http.Request) (*Response, error) {
	httpResp, err := t.httpClient.Do(httpReq)
	if err != nil {
		return nil, classify(ctx, attemptCtx, err)
	}
	defer func() { _ = httpResp.Body.Close() }()

	data, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, classify(ctx, attemptCtx, fmt.Errorf("read response body: %w", err))
	}

	switch {
	case httpResp.StatusCode == http.StatusUnauthorized:
		return nil, errors.SessionExpired()
	case httpResp.StatusCode < 200 || httpResp.StatusCode > 299:
		return nil, errors.HTTP(httpResp.StatusCode, data)
	}
	return &Response{
		StatusCode: httpResp.StatusCode,
		Header:     httpResp.Header,
		Body:       data,
		RequestID:  httpReq.Header.Get(HeaderRequestID),
	}, nil
}

// classify maps a client error to the caller's cancellation, TIMEOUT or NETWORK_ERROR.
func classify(ctx, attemptCtx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if stderrors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
		return errors.Timeout(err)
	}
	return errors.Network(err)
}

func (t *Transport) url(endpoint string) string {
	return strings.TrimRight(t.cfg.BaseURL, "/") + "/" + strings.TrimLeft(endpoint, "/")
}

func (t *Transport) build(ctx context.Context, req Request, body []byte, requestID string) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, t.url(req.Endpoint), reader)
	if err != nil {
		return nil, errors.InvalidRequest("create request: " + err.Error())
	}
	if len(req.Query) > 0 {
		httpReq.URL.RawQuery = req.Query.Encode()
	}

	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", version.UserAgent())
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	for k, v := range t.cfg.Headers {
		httpReq.Header.Set(k, v)
	}
	if t.location != nil {
		name, value := t.location.Header()
		httpReq.Header.Set(name, value)
	}
	// request headers may pin the location for a call keyed to it
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}
	if token, ok := t.creds.Token(); ok {
		httpReq.Header.Set(HeaderAuthorization, "Bearer "+token)
	}
	httpReq.Header.Set(HeaderRequestID, requestID)
	observability.InjectHeaders(ctx, propagation.HeaderCarrier(httpReq.Header))
	return httpReq, nil
}

func outcome(resp *Response, err error) string {
	switch {
	case err == nil && resp != nil:
		return "ok"
	case errors.IsTimeout(err):
		return "timeout"
	case errors.IsNetwork(err):
		return "network"
	case errors.IsSessionExpired(err):
		return "unauthorized"
	case errors.IsHTTP(err):
		return fmt.Sprintf("http_%d", errors.StatusCode(err))
	default:
		return "cancelled"
	}
}

type nopReporter struct{}

func (nopReporter) Begin()      {}
func (nopReporter) Succeed()    {}
func (nopReporter) Fail(error)  {}
func (nopReporter) Disconnect() {}
