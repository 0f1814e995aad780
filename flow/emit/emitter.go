// Package emit provides event emission and observability for workflow
// execution.
package emit

import "context"

// Emitter receives and processes observability events from workflow
// execution.
//
// Emitters enable pluggable observability backends: logging, distributed
// tracing, metrics pipelines, dashboards.
//
// Implementations should be:
//   - Non-blocking: avoid slowing down workflow execution.
//   - Thread-safe: the runner and primitives share one emitter.
//   - Resilient: a failing backend must not crash the workflow.
type Emitter interface {
	// Emit sends an observability event to the configured backend.
	// Emit must not panic; errors are handled internally.
	Emit(event Event)

	// EmitBatch sends multiple events in one operation, preserving order.
	// Individual event failures are logged, not returned; the error is
	// reserved for catastrophic backend failures.
	EmitBatch(ctx context.Context, events []Event) error

	// Flush ensures all buffered events are delivered. Call before
	// shutdown and at run completion. Safe to call multiple times.
	Flush(ctx context.Context) error
}
