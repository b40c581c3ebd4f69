// Package logging constructs the structured logger threaded through the
// engine and its background workers.
package logging

import "go.uber.org/zap"

// New builds a SugaredLogger scoped to component, e.g. "flush-worker" or
// "manifest". Construction failures fall back to a no-op logger so that a
// misconfigured logging backend never prevents the engine from starting.
func New(component string) *zap.SugaredLogger {
	core, err := zap.NewProduction()
	if err != nil {
		core = zap.NewNop()
	}
	return core.Sugar().With("component", component)
}

// Noop returns a logger that discards everything, used by default when the
// caller does not supply one via config.Option.
func Noop() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}
