package health

import (
	"context"
	stderrors "errors"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/kbukum/crmkit/connection"
	"github.com/kbukum/crmkit/logger"
	"github.com/kbukum/crmkit/observability"
	"github.com/kbukum/crmkit/transport"
)

// Action is what a tick decided to do.
type Action string

const (
	ActionProbe     Action = "probe"
	ActionReconnect Action = "reconnect"
	ActionConnect   Action = "connect"
	ActionSkip      Action = "skip"
	// ActionSuspended means the error ceiling was reached; only an explicit
	// Reconnect will try again.
	ActionSuspended Action = "suspended"
)

// ErrClosed is returned by probes requested after Close.
var ErrClosed = stderrors.New("health: monitor closed")

// Sender sends a request through the retrying transport.
type Sender interface {
	Send(ctx context.Context, req transport.Request) (*transport.Response, error)
}

// StateSource exposes the connection state. *connection.Machine implements it.
type StateSource interface {
	Snapshot() connection.Snapshot
}

// Monitor runs periodic health checks.
type Monitor struct {
	cfg     Config
	sender  Sender
	state   StateSource
	log     *logger.Logger
	metrics *observability.Metrics

	flights singleflight.Group

	// life bounds every probe; Close cancels it.
	life     context.Context
	shutdown context.CancelFunc
	probes   sync.WaitGroup

	mu      sync.Mutex
	running *Handle
	closed  bool
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option {
	return func(m *Monitor) { m.log = l }
}

// WithMetrics records probe outcomes.
func WithMetrics(metrics *observability.Metrics) Option {
	return func(m *Monitor) { m.metrics = metrics }
}

// NewMonitor creates a monitor. It does nothing until Start or Tick.
func NewMonitor(cfg Config, sender Sender, state StateSource, opts ...Option) (*Monitor, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	m := &Monitor{cfg: cfg, sender: sender, state: state}
	m.life, m.shutdown = context.WithCancel(context.Background())
	for _, opt := range opts {
		opt(m)
	}
	m.log = logger.OrNop(m.log).WithComponent("health")
	return m, nil
}

// Config returns the effective configuration.
func (m *Monitor) Config() Config {
	return m.cfg
}

// Tick runs one monitoring step and reports what it did.
func (m *Monitor) Tick(ctx context.Context) (Action, error) {
	snap := m.state.Snapshot()
	switch snap.State {
	case connection.Connected:
		return ActionProbe, m.shared(ctx, ActionProbe)
	case connection.Error:
		if snap.ErrorCount >= m.cfg.ErrorCeiling {
			m.log.Debug("error ceiling reached, waiting for manual reconnect", logger.Fields(
				logger.FieldErrorCount, snap.ErrorCount,
			))
			return ActionSuspended, nil
		}
		return ActionReconnect, m.Reconnect(ctx)
	case connection.Disconnected:
		return ActionConnect, m.Reconnect(ctx)
	default:
		return ActionSkip, nil
	}
}

// Reconnect probes the backend once, ignoring the error ceiling.
// Concurrent calls share a single probe.
func (m *Monitor) Reconnect(ctx context.Context) error {
	return m.shared(ctx, ActionReconnect)
}

// shared runs one probe of the given kind at a time. The probe is detached
// from ctx and bound to the monitor's lifetime instead: a cancelled waiter
// returns early while the probe runs on, and Close cancels it.
func (m *Monitor) shared(ctx context.Context, kind Action) error {
	ch := m.flights.DoChan(string(kind), func() (any, error) {
		m.mu.Lock()
		if m.closed {
			m.mu.Unlock()
			return nil, ErrClosed
		}
		m.probes.Add(1)
		m.mu.Unlock()
		defer m.probes.Done()

		pctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		defer cancel()
		stop := context.AfterFunc(m.life, cancel)
		defer stop()
		return nil, m.probe(pctx, kind)
	})
	select {
	case <-ctx.Done():
		return ctx.Err()
	case res := <-ch:
		return res.Err
	}
}

func (m *Monitor) probe(ctx context.Context, kind Action) error {
	ctx, span := observability.StartSpan(ctx, observability.SpanProbe)
	start := time.Now()
	_, err := m.sender.Send(ctx, transport.Request{
		Endpoint:  m.cfg.Path,
		Operation: "health." + string(kind),
	})
	observability.EndSpan(span, err)

	status := "ok"
	if err != nil {
		status = "failed"
		m.log.Warn("health probe failed", logger.ErrorFields(string(kind), err))
	} else {
		m.log.Debug("health probe ok", logger.DurationFields(string(kind), time.Since(start)))
	}
	m.metrics.RecordHealthProbe(ctx, string(kind), status)
	return err
}

// Start begins ticking until ctx is done or the handle is stopped.
// Calling Start while running returns the running handle.
func (m *Monitor) Start(ctx context.Context) *Handle {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running != nil {
		return m.running
	}
	if m.closed {
		h := &Handle{monitor: m, cancel: func() {}, done: make(chan struct{})}
		close(h.done)
		return h
	}

	ctx, cancel := context.WithCancel(ctx)
	h := &Handle{monitor: m, cancel: cancel, done: make(chan struct{})}
	m.running = h
	go m.loop(ctx, h)

	m.log.Info("health monitor started", logger.Fields(
		"interval", m.cfg.Interval.String(),
		"error_ceiling", m.cfg.ErrorCeiling,
	))
	return h
}

// Running reports whether a loop is active.
func (m *Monitor) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running != nil
}

func (m *Monitor) loop(ctx context.Context, h *Handle) {
	defer close(h.done)
	defer m.release(h)

	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := m.Tick(ctx); err != nil && ctx.Err() != nil {
				return
			}
		}
	}
}

// Close stops the loop, cancels any in-flight probe and waits for it to
// settle. Later probes fail with ErrClosed and Start returns a stopped handle.
func (m *Monitor) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	h := m.running
	m.mu.Unlock()

	if h != nil {
		h.Stop()
	}
	m.shutdown()
	m.probes.Wait()
	m.log.Debug("health monitor closed")
}

func (m *Monitor) release(h *Handle) {
	m.mu.Lock()
	if m.running == h {
		m.running = nil
	}
	m.mu.Unlock()
}

// CheckHealth summarizes the connection for a service health report.
func (m *Monitor) CheckHealth() observability.Health {
	snap := m.state.Snapshot()
	h := observability.Health{
		Name: "crm-backend",
		Details: map[string]string{
			"state":       snap.State.String(),
			"error_count": strconv.Itoa(snap.ErrorCount),
		},
	}
	if !snap.LastConnectedAt.IsZero() {
		h.Details["last_connected_at"] = snap.LastConnectedAt.Format(time.RFC3339)
	}

	switch {
	case snap.State == connection.Connected:
		h.Status = observability.HealthStatusUp
	case snap.State == connection.Error && snap.ErrorCount >= m.cfg.ErrorCeiling:
		h.Status = observability.HealthStatusDown
		h.Message = "error ceiling reached"
	case snap.State == connection.Disconnected:
		h.Status = observability.HealthStatusDown
		h.Message = "not connected"
	default:
		h.Status = observability.HealthStatusDegraded
	}
	if snap.LastError != nil && h.Message == "" {
		h.Message = snap.LastError.Error()
	}
	return h
}

// Handle controls a running monitor loop.
type Handle struct {
	monitor *Monitor
	cancel  context.CancelFunc
	done    chan struct{}
	once    sync.Once
}

// Stop cancels the loop and waits for it to exit. Safe to call repeatedly.
func (h *Handle) Stop() {
	h.once.Do(h.cancel)
	<-h.done
}

// Done is closed once the loop has exited.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}
