package models

import "context"

// OutputWriter is the uniform capability set every sink adapter implements:
// start, validate, write, close. The core treats every writer, regardless of
// backend, through this single interface.
//
// Implementations must be safe for concurrent Write calls: the core does not
// promise per-writer serialization.
type OutputWriter interface {
	// Start acquires whatever resources the writer needs (file handles,
	// network connections, registry entries). Called once before first use;
	// never called again for the same instance, even across a reload —
	// reload always constructs fresh writer instances.
	Start(ctx context.Context) error

	// ValidateSetup checks that this writer can accept Results for the given
	// (server, query) pair. Called once per (server, query, writer) triple
	// during startup/reload, before any Write. A non-nil error is fatal for
	// that reload.
	ValidateSetup(server Server, query Query) error

	// Write delivers one batch of Results for one (server, query) tick.
	// Errors are logged by the caller and never propagated past the result
	// task — a failing writer does not starve its siblings.
	Write(ctx context.Context, server Server, query Query, results []Result) error

	// Close releases resources. Called exactly once, never reused across
	// reloads.
	Close() error
}
