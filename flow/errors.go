// Package flow provides the core primitive execution engine for AgentFlow-Go.
package flow

import "errors"

// ErrNotInitialized indicates that a browser primitive was invoked before a
// browser handle was configured on the dispatcher.
var ErrNotInitialized = errors.New("browser not initialized")

// ErrUnknownPrimitive indicates that a node's type is not in the closed
// primitive set understood by the dispatcher.
var ErrUnknownPrimitive = errors.New("unknown primitive type")

// ErrUnknownAction indicates a browser_action method that is not recognized.
var ErrUnknownAction = errors.New("unknown browser action")

// ErrReferenceNotFound indicates a phase: or node: reference that does not
// resolve against the workflow document.
var ErrReferenceNotFound = errors.New("workflow reference not found")

// ErrReferenceMalformed indicates a reference string that does not start with
// "phase:" or "node:".
var ErrReferenceMalformed = errors.New("workflow reference malformed")

// ErrSchemaMismatch indicates a cognition or extract result that fails
// structural schema validation.
var ErrSchemaMismatch = errors.New("result does not match schema")

// ErrCognitionFormat indicates LLM output that cannot be parsed as JSON after
// cleanup and, when a schema is given, the single permitted retry.
var ErrCognitionFormat = errors.New("cognition output is not valid JSON")

// ErrCognitionTimeout indicates an LLM call that exceeded its deadline.
var ErrCognitionTimeout = errors.New("cognition call timed out")

// ErrNavigationTimeout indicates that a page navigation exceeded the
// DOM-loaded timeout. Network-idle timeouts are absorbed and never carry
// this kind.
var ErrNavigationTimeout = errors.New("navigation timed out")

// ErrTabUnknown indicates a switchTab to a tab name that was never opened.
var ErrTabUnknown = errors.New("unknown tab")

// ErrTransformEval indicates that a workflow-supplied transform function
// failed to compile or threw during evaluation.
var ErrTransformEval = errors.New("transform evaluation failed")

// ErrIteration indicates an iterate body failure with continueOnError
// disabled.
var ErrIteration = errors.New("iteration body failed")

// ErrNoRouteMatched indicates a route with no matching branch and no default.
var ErrNoRouteMatched = errors.New("no route matched")

// ErrCancelled indicates external cancellation of the run. The currently
// suspended primitive surfaces this kind when the run's context is cancelled.
var ErrCancelled = errors.New("execution cancelled")

// ErrInvalidWorkflow indicates a workflow document that failed to decode into
// the closed set of typed nodes.
var ErrInvalidWorkflow = errors.New("invalid workflow document")

// PrimitiveError is a structured error produced during primitive execution.
// It carries the taxonomy kind (one of the package sentinels), the node that
// failed, and the underlying cause when one exists.
//
// Use errors.Is with the sentinel to test the kind:
//
//	if errors.Is(err, flow.ErrTabUnknown) { ... }
type PrimitiveError struct {
	// Kind is the taxonomy sentinel this error belongs to.
	Kind error

	// Node identifies the failing node when known (node name or type).
	Node string

	// Message is the human-readable error description.
	Message string

	// Cause is the underlying error, if any.
	Cause error
}

// Error implements the error interface.
func (e *PrimitiveError) Error() string {
	msg := e.Message
	if msg == "" && e.Kind != nil {
		msg = e.Kind.Error()
	}
	if e.Node != "" {
		return e.Node + ": " + msg
	}
	return msg
}

// Unwrap returns the underlying cause for error wrapping support.
func (e *PrimitiveError) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error's kind, enabling
// errors.Is(err, flow.ErrNoRouteMatched) style checks.
func (e *PrimitiveError) Is(target error) bool {
	return target == e.Kind
}

// newError builds a PrimitiveError for the given kind.
func newError(kind error, node, message string, cause error) *PrimitiveError {
	return &PrimitiveError{Kind: kind, Node: node, Message: message, Cause: cause}
}
