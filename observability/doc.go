// Package observability wires OpenTelemetry tracing and metrics into the
// access layer.
//
// Every logical request gets a crm.request span and is counted in
// crm.request.total; attempts, retries, cache lookups and connection
// transitions have their own counters. Components accept a nil *Metrics.
//
//	mp, err := observability.InitMeter(ctx, observability.DefaultMeterConfig("crmctl"))
//	defer mp.Shutdown(ctx)
//	metrics, err := observability.NewMetrics(observability.Meter("crmkit"))
package observability
