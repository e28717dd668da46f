package client

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/kbukum/crmkit/cache"
	"github.com/kbukum/crmkit/connection"
	"github.com/kbukum/crmkit/credentials"
	"github.com/kbukum/crmkit/health"
	"github.com/kbukum/crmkit/location"
	"github.com/kbukum/crmkit/logger"
	"github.com/kbukum/crmkit/observability"
	"github.com/kbukum/crmkit/redis"
	"github.com/kbukum/crmkit/snapshot"
	"github.com/kbukum/crmkit/transport"
	"github.com/kbukum/crmkit/validation"
)

// Client is the access layer a dashboard talks to. Each Client owns its
// own connection state, location, cache and health monitor.
type Client struct {
	cfg Config
	log *logger.Logger

	machine   *connection.Machine
	router    *location.Router
	directory *location.Directory
	creds     credentials.Source
	cache     *cache.Cache
	transport *transport.Transport
	monitor   *health.Monitor
	snapshots snapshot.Store
	redis     *redis.Client

	mu     sync.Mutex
	handle *health.Handle
	closed bool
}

type options struct {
	log        *logger.Logger
	metrics    *observability.Metrics
	creds      credentials.Source
	snapshots  snapshot.Store
	httpClient *http.Client
	now        func() time.Time
}

// Option configures a Client.
type Option func(*options)

// WithLogger sets the logger shared by every component.
func WithLogger(l *logger.Logger) Option {
	return func(o *options) { o.log = l }
}

// WithMetrics records metrics from every component.
func WithMetrics(m *observability.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithCredentials replaces the token source built from Config.Token.
func WithCredentials(s credentials.Source) Option {
	return func(o *options) { o.creds = s }
}

// WithSnapshotStore replaces the store built from Config.Snapshot.
func WithSnapshotStore(s snapshot.Store) Option {
	return func(o *options) { o.snapshots = s }
}

// WithHTTPClient sets the HTTP client used by the transport.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

// WithClock replaces time.Now for cache freshness.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// New builds a client. Nothing is sent until the first call or
// StartHealthMonitor.
func New(cfg Config, opts ...Option) (*Client, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	log := logger.OrNop(o.log)

	c := &Client{
		cfg:       cfg,
		log:       log.WithComponent("client"),
		directory: location.NewDirectory(cfg.Locations...),
	}

	start, _ := c.directory.Resolve(cfg.Location)
	c.router = location.NewRouter(start)
	c.router.OnChange(func(loc location.Context) {
		c.log.Info("location changed", logger.Fields(logger.FieldLocation, loc.ID))
	})

	c.machine = connection.NewMachine(
		connection.WithLogger(log),
		connection.WithMetrics(o.metrics),
	)

	c.creds = o.creds
	if c.creds == nil {
		if cfg.Token != "" {
			c.creds = credentials.NewMemoryStore(cfg.Token)
		} else {
			c.creds = credentials.None{}
		}
	}

	c.cache = cache.New(
		cache.WithClock(o.now),
		cache.WithLogger(log),
		cache.WithObserver(func(ctx context.Context, _ string, hit bool) {
			o.metrics.RecordCacheLookup(ctx, hit)
		}),
	)

	trOpts := []transport.Option{
		transport.WithStateReporter(c.machine),
		transport.WithCredentials(c.creds),
		transport.WithLocation(c.router),
		transport.WithLogger(log),
		transport.WithMetrics(o.metrics),
	}
	if o.httpClient != nil {
		trOpts = append(trOpts, transport.WithHTTPClient(o.httpClient))
	}
	tr, err := transport.New(cfg.transport(), trOpts...)
	if err != nil {
		return nil, err
	}
	c.transport = tr

	c.monitor, err = health.NewMonitor(cfg.Health, tr, c.machine,
		health.WithLogger(log),
		health.WithMetrics(o.metrics),
	)
	if err != nil {
		return nil, err
	}

	c.snapshots = o.snapshots
	if c.snapshots == nil && cfg.Snapshot.Redis.Enabled {
		if err := c.openSnapshots(log); err != nil {
			return nil, err
		}
	}

	c.log.Debug("client created", logger.Fields(
		logger.FieldEndpoint, cfg.BaseURL,
		logger.FieldLocation, start.ID,
	))
	return c, nil
}

func (c *Client) openSnapshots(log *logger.Logger) error {
	rc, err := redis.New(c.cfg.Snapshot.Redis, log)
	if err != nil {
		return fmt.Errorf("snapshot store: %w", err)
	}
	var store snapshot.Store = snapshot.NewRedisStore(rc, c.cfg.Snapshot.TTL)
	if c.cfg.Snapshot.Secret != "" {
		sealer, err := snapshot.NewSealer(c.cfg.Snapshot.Secret)
		if err != nil {
			_ = rc.Close()
			return err
		}
		store = snapshot.Seal(store, sealer)
	}
	c.redis = rc
	c.snapshots = store

	// snapshots are a fallback, so an unreachable server only warns
	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.Snapshot.Redis.DialTimeout)
	defer cancel()
	if err := rc.Ping(ctx); err != nil {
		c.log.WithError(err).Warn("snapshot store unreachable", logger.Fields("addr", c.cfg.Snapshot.Redis.Addr))
	}
	return nil
}

// RequestOptions describes a direct call. See transport.Request.
type RequestOptions struct {
	Method      string
	Query       map[string][]string
	Headers     map[string]string
	Body        any
	Retry       *transport.RetryPolicy
	NoHTTPRetry bool
}

// Request sends one uncached call through the retrying transport.
func (c *Client) Request(ctx context.Context, endpoint string, opts RequestOptions) (*transport.Response, error) {
	return c.transport.Send(ctx, transport.Request{
		Method:      opts.Method,
		Endpoint:    endpoint,
		Query:       opts.Query,
		Headers:     opts.Headers,
		Body:        opts.Body,
		Retry:       opts.Retry,
		NoHTTPRetry: opts.NoHTTPRetry,
	})
}

// OnConnectionStateChange registers cb for connection state transitions.
func (c *Client) OnConnectionStateChange(cb func(connection.Change)) (unsubscribe func()) {
	return c.machine.OnStateChange(cb)
}

// WatchConnection streams connection transitions until ctx is done.
func (c *Client) WatchConnection(ctx context.Context) <-chan connection.Change {
	return c.machine.Watch(ctx)
}

// ConnectionState returns the current connection snapshot.
func (c *Client) ConnectionState() connection.Snapshot {
	return c.machine.Snapshot()
}

// ForceReconnect probes the backend now, ignoring the error ceiling.
func (c *Client) ForceReconnect(ctx context.Context) error {
	return c.monitor.Reconnect(ctx)
}

// SetLocation switches the active location. Known ids resolve to their
// configured display name. It reports whether the location changed.
func (c *Client) SetLocation(id string) (bool, error) {
	if err := validation.New().Required("id", id).NoneOf("id", id, locationIDForbidden...).Err(); err != nil {
		return false, err
	}
	loc, _ := c.directory.Resolve(id)
	return c.router.Switch(loc), nil
}

// Location returns the active location.
func (c *Client) Location() location.Context {
	return c.router.Current()
}

// Locations returns the configured locations.
func (c *Client) Locations() []location.Context {
	return c.directory.List()
}

// OnLocationChange registers cb for location switches.
func (c *Client) OnLocationChange(cb func(location.Context)) (unsubscribe func()) {
	return c.router.OnChange(cb)
}

// StartHealthMonitor starts the health loop if it is not running.
func (c *Client) StartHealthMonitor(ctx context.Context) *health.Handle {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handle = c.monitor.Start(ctx)
	return c.handle
}

// StopHealthMonitor stops the health loop and waits for it to exit.
func (c *Client) StopHealthMonitor() {
	c.mu.Lock()
	h := c.handle
	c.handle = nil
	c.mu.Unlock()
	if h != nil {
		h.Stop()
	}
}

// Health reports the backend connection and, when configured, the
// snapshot store.
func (c *Client) Health(ctx context.Context) *observability.ServiceHealth {
	sh := observability.NewServiceHealth("crmkit")
	sh.AddComponent(c.monitor.CheckHealth())
	if c.redis != nil {
		sh.AddComponent(c.redis.CheckHealth(ctx))
	}
	return sh
}

// Close stops the health monitor and releases the snapshot store.
// The connection state moves to disconnected.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	c.StopHealthMonitor()
	c.monitor.Close()
	c.machine.Disconnect()
	return c.redis.Close()
}
