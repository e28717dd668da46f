// Package health watches the connection state and drives recovery.
//
// A Monitor ticks on a fixed interval. What a tick does depends on the
// current connection state:
//
//	connected     probe the liveness endpoint
//	error         reconnect, unless ErrorCount has reached the ceiling
//	disconnected  initial connect probe
//	connecting    nothing; an attempt is already in flight
//
// Probes go through the retrying transport, so their outcome updates the
// connection state like any other call. Reconnects from the ticker and from
// callers are collapsed into one in-flight probe.
//
//	h := monitor.Start(ctx)
//	defer h.Stop()
package health
