package emit

// Event represents an observability event emitted during workflow execution.
//
// Events provide insight into run behavior:
//   - Run start/complete
//   - Phase and node progress
//   - Primitive start/complete with results
//   - Errors, retries and breakpoints
//
// Events are emitted to an Emitter which can log them, convert them to
// OpenTelemetry spans, buffer them for dashboards, or drop them.
type Event struct {
	// RunID identifies the workflow execution that emitted this event.
	RunID string

	// Step is the sequential top-level step number (1-indexed): the number
	// of the step most recently started. Zero for events emitted before the
	// first step, such as run start.
	Step int

	// Node identifies the node or reference this event concerns.
	// Empty for run start and run completion; a run error carries the
	// failing top-level reference.
	Node string

	// Msg is a human-readable description of the event, e.g.
	// "primitive_start", "phase_start", "run_error", "break".
	Msg string

	// Meta contains additional structured data. Common keys:
	//   - "duration_ms": execution duration in milliseconds
	//   - "error": error details
	//   - "type": primitive type
	//   - "attempt": cognition attempt number
	Meta map[string]interface{}
}
