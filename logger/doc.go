// Package logger provides structured logging for crmkit using zerolog.
//
// Every core component (cache, transport, connection machine, health
// monitor) takes a *Logger and tags it with its component name. Pass
// NewNop() to silence a component in tests.
//
// # Configuration
//
//	logging:
//	  level: "info"
//	  format: "json"
//
// # Usage
//
//	log := logger.NewDefault("crmctl").WithComponent("transport")
//	log.Info("attempt failed", logger.Fields(logger.FieldAttempt, 2))
package logger
