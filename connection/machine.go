// Package connection tracks the health of the backend connection as a small
// state machine and broadcasts every transition.
//
//	disconnected -> connecting -> connected
//	                           \-> error -> connecting -> ...
//
// Subscribers run synchronously in registration order, once per real
// transition; repeated moves into the current state notify nobody.
// Subscribers must not drive the machine from inside their callback.
package connection

import (
	"context"
	"sync"
	"time"

	"github.com/kbukum/crmkit/event"
	"github.com/kbukum/crmkit/logger"
	"github.com/kbukum/crmkit/observability"
)

// Machine is safe for concurrent use.
type Machine struct {
	// emitMu serializes whole transitions including delivery, so every
	// subscriber sees the same order.
	emitMu sync.Mutex
	mu     sync.RWMutex
	snap   Snapshot

	changes event.Emitter[Change]
	now     func() time.Time
	log     *logger.Logger
	metrics *observability.Metrics
}

// Option configures a Machine.
type Option func(*Machine)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Machine) { m.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option {
	return func(m *Machine) { m.log = l }
}

// WithMetrics records transitions.
func WithMetrics(metrics *observability.Metrics) Option {
	return func(m *Machine) { m.metrics = metrics }
}

// NewMachine creates a machine in Disconnected.
func NewMachine(opts ...Option) *Machine {
	m := &Machine{now: time.Now}
	for _, opt := range opts {
		opt(m)
	}
	m.log = logger.OrNop(m.log).WithComponent("connection")
	m.snap = Snapshot{State: Disconnected, Since: m.now()}
	return m
}

// Begin records the start of an attempt.
func (m *Machine) Begin() {
	m.transition(func(s *Snapshot) { s.State = Connecting })
}

// Succeed records a call that reached the backend and clears the error streak.
func (m *Machine) Succeed() {
	m.transition(func(s *Snapshot) {
		s.State = Connected
		s.ErrorCount = 0
		s.LastError = nil
		s.LastConnectedAt = m.now()
	})
}

// Fail records a call that exhausted its retries.
func (m *Machine) Fail(err error) {
	m.transition(func(s *Snapshot) {
		s.State = Error
		s.ErrorCount++
		s.LastError = err
	})
}

// Disconnect records teardown or an abandoned call. The error streak is kept.
func (m *Machine) Disconnect() {
	m.transition(func(s *Snapshot) { s.State = Disconnected })
}

// Snapshot returns a consistent copy of state and counters.
func (m *Machine) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snap
}

// State returns the current state.
func (m *Machine) State() State {
	return m.Snapshot().State
}

// OnStateChange registers cb for every transition.
func (m *Machine) OnStateChange(cb func(Change)) (unsubscribe func()) {
	return m.changes.Subscribe(cb)
}

// Watch streams transitions until ctx is done.
func (m *Machine) Watch(ctx context.Context) <-chan Change {
	return m.changes.Watch(ctx, 16)
}

func (m *Machine) transition(apply func(*Snapshot)) {
	m.emitMu.Lock()
	defer m.emitMu.Unlock()

	m.mu.Lock()
	from := m.snap.State
	next := m.snap
	apply(&next)
	if lastConnected := m.snap.LastConnectedAt; next.State == from && next.State == Connected {
		// not a transition into Connected
		next.LastConnectedAt = lastConnected
	}
	changed := next.State != from
	if changed {
		next.Since = m.now()
	}
	m.snap = next
	m.mu.Unlock()

	if !changed {
		return
	}

	m.log.Debug("state changed", logger.Fields(
		logger.FieldFromState, from.String(),
		logger.FieldState, next.State.String(),
		logger.FieldErrorCount, next.ErrorCount,
	))
	m.metrics.RecordTransition(context.Background(), from.String(), next.State.String())
	m.changes.Emit(Change{From: from, To: next.State, Snapshot: next})
}
