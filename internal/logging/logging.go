// Package logging constructs the zap logger threaded through the storage
// and execution layers, replacing the ad-hoc fmt.Printf tracing the
// original storage engine used at the same call sites.
package logging

import "go.uber.org/zap"

// New returns a development-mode logger: human-readable console output,
// debug level enabled. Suitable for the REPL driver and tests.
func New() *zap.Logger {
	logger, err := zap.NewDevelopment()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

// NewProduction returns a JSON-encoded, info-level logger for embedding
// this engine in a host process that collects structured logs.
func NewProduction() *zap.Logger {
	logger, err := zap.NewProduction()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

// Nop returns a logger that discards everything, used as the default
// when a caller constructs a component without supplying one.
func Nop() *zap.Logger {
	return zap.NewNop()
}
