package flow

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/oswaldoh/agentflow-go/flow/emit"
	"github.com/oswaldoh/agentflow-go/flow/store"
)

// HistoryEntry records one executed step for post-mortem inspection.
type HistoryEntry struct {
	// Kind is "phase", "node" or "inline".
	Kind string

	// Name is the phase or node name; for inline steps, the primitive type.
	Name string

	// Timestamp is when the step finished.
	Timestamp time.Time

	// StateBefore is a snapshot of the state tree taken before the step.
	StateBefore map[string]any

	// Result is the primitive's return value, nil on failure.
	Result any

	// Err is the step's error text, empty on success.
	Err string
}

// RunOptions selects what to execute. Zero value runs the whole flow.
type RunOptions struct {
	// State is merged into the store before execution.
	State map[string]any

	// Only executes exactly these phase/node references, in order.
	Only []string

	// StartAt and StopAt flatten the top-level flow into an ordered
	// reference list and execute the inclusive sub-range. Missing
	// endpoints are errors.
	StartAt string
	StopAt  string

	// Debug emits a break event with the current state between top-level
	// steps; a hook set via SetDebugHook can pause.
	Debug bool

	// DryRun validates the workflow and returns without executing.
	DryRun bool
}

// RunResult is the aggregate outcome of a run: the ordered primitive return
// values for the executed range, or the validation report for dry runs.
type RunResult struct {
	RunID      string
	Results    []any
	Validation *ValidationReport
}

// Executor walks a workflow's top-level flow and implements the granular
// only / startAt / stopAt / dryRun / debug selection modes.
//
// The executor catches nothing implicitly: an uncaught primitive error
// aborts the run, but History and State remain valid for post-mortem
// inspection.
type Executor struct {
	wf          *Workflow
	dispatcher  *Dispatcher
	emitter     emit.Emitter
	metrics     *PrometheusMetrics
	recordStore store.Store

	runID       string
	step        int
	history     []HistoryEntry
	logLines    []string
	breakpoints map[string]bool
	debugHook   func(ref string, state map[string]any)
}

// NewExecutor creates an executor for wf with the given engine options.
func NewExecutor(wf *Workflow, opts ...Option) *Executor {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Executor{
		wf:          wf,
		dispatcher:  newDispatcher(cfg),
		emitter:     cfg.emitter,
		metrics:     cfg.metrics,
		recordStore: cfg.store,
		breakpoints: make(map[string]bool),
	}
}

// State returns the run's state store.
func (e *Executor) State() *State {
	return e.dispatcher.State()
}

// Dispatcher exposes the underlying dispatcher for single-node execution.
func (e *Executor) Dispatcher() *Dispatcher {
	return e.dispatcher
}

// History returns the executed steps so far, oldest first.
func (e *Executor) History() []HistoryEntry {
	out := make([]HistoryEntry, len(e.history))
	copy(out, e.history)
	return out
}

// ExecutionLog returns the human-readable progress lines.
func (e *Executor) ExecutionLog() []string {
	out := make([]string, len(e.logLines))
	copy(out, e.logLines)
	return out
}

// SetBreakpoint marks a phase/node reference; every run, in debug mode or
// not, emits a break event before executing it.
func (e *Executor) SetBreakpoint(ref string) {
	e.breakpoints[ref] = true
}

// ClearBreakpoints removes all breakpoints.
func (e *Executor) ClearBreakpoints() {
	e.breakpoints = make(map[string]bool)
}

// SetDebugHook installs a callback invoked at every break event with the
// triggering reference and a state snapshot. The hook may block to pause.
func (e *Executor) SetDebugHook(hook func(ref string, state map[string]any)) {
	e.debugHook = hook
}

// Run executes the workflow according to opts. A nil opts runs the whole
// flow. A workflow without a flow fails with a nil result; once execution
// has started, an error is returned alongside the partial results collected
// so far.
func (e *Executor) Run(ctx context.Context, opts *RunOptions) (*RunResult, error) {
	if opts == nil {
		opts = &RunOptions{}
	}
	if opts.DryRun {
		return &RunResult{Validation: ValidateWorkflow(e.wf)}, nil
	}
	if e.wf == nil || e.wf.Flow == nil {
		return nil, newError(ErrInvalidWorkflow, "", "workflow has no flow", nil)
	}

	e.runID = uuid.NewString()
	e.step = 0
	result := &RunResult{RunID: e.runID}

	if len(opts.State) > 0 {
		e.dispatcher.State().Merge("", opts.State)
	}
	if e.metrics != nil {
		e.metrics.runStarted()
		defer e.metrics.runFinished()
	}
	e.emitter.Emit(emit.Event{RunID: e.runID, Msg: "run_start", Meta: map[string]any{"workflow": e.wf.ID}})
	defer func() { _ = e.emitter.Flush(context.WithoutCancel(ctx)) }()

	items, err := e.selectItems(opts)
	if err != nil {
		return result, err
	}

	for _, item := range items {
		ref := item.Ref
		if ref == "" && item.Node != nil {
			ref = string(item.Node.Type)
		}
		if opts.Debug || e.breakpoints[ref] {
			e.emitBreak(ref)
		}
		stepResults, err := e.runItem(ctx, item)
		result.Results = append(result.Results, stepResults...)
		if err != nil {
			e.emitter.Emit(emit.Event{RunID: e.runID, Step: e.step, Node: ref, Msg: "run_error",
				Meta: map[string]any{"error": err.Error()}})
			return result, err
		}
	}

	e.emitter.Emit(emit.Event{RunID: e.runID, Step: e.step, Msg: "run_complete",
		Meta: map[string]any{"steps": e.step}})
	return result, nil
}

// selectItems maps RunOptions onto the ordered list of top-level items.
func (e *Executor) selectItems(opts *RunOptions) ([]FlowItem, error) {
	if len(opts.Only) > 0 {
		items := make([]FlowItem, len(opts.Only))
		for i, ref := range opts.Only {
			if _, _, err := splitRef(ref); err != nil {
				return nil, err
			}
			items[i] = FlowItem{Ref: ref}
		}
		return items, nil
	}

	items := e.wf.Flow.Items()
	if opts.StartAt == "" && opts.StopAt == "" {
		return items, nil
	}

	start, stop := 0, len(items)-1
	if opts.StartAt != "" {
		idx := indexOfRef(items, opts.StartAt)
		if idx < 0 {
			return nil, newError(ErrReferenceNotFound, "", fmt.Sprintf("startAt %q is not in the flow", opts.StartAt), nil)
		}
		start = idx
	}
	if opts.StopAt != "" {
		idx := indexOfRef(items, opts.StopAt)
		if idx < 0 {
			return nil, newError(ErrReferenceNotFound, "", fmt.Sprintf("stopAt %q is not in the flow", opts.StopAt), nil)
		}
		stop = idx
	}
	if start > stop {
		return nil, newError(ErrReferenceNotFound, "", fmt.Sprintf("startAt %q comes after stopAt %q", opts.StartAt, opts.StopAt), nil)
	}
	return items[start : stop+1], nil
}

func indexOfRef(items []FlowItem, ref string) int {
	for i, item := range items {
		if item.Ref == ref {
			return i
		}
	}
	return -1
}

// runItem executes one top-level flow item and returns its primitive
// results in order.
func (e *Executor) runItem(ctx context.Context, item FlowItem) ([]any, error) {
	if item.Node != nil {
		result, err := e.runStep(ctx, "inline", string(item.Node.Type), item.Node)
		if err != nil {
			return nil, err
		}
		return []any{result}, nil
	}
	kind, name, err := splitRef(item.Ref)
	if err != nil {
		return nil, err
	}
	switch kind {
	case "phase":
		return e.runPhase(ctx, name)
	default:
		result, err := e.runNode(ctx, name)
		if err != nil {
			return nil, err
		}
		return []any{result}, nil
	}
}

// runPhase executes a named phase's node references in order.
func (e *Executor) runPhase(ctx context.Context, name string) ([]any, error) {
	phase, ok := e.wf.Phases[name]
	if !ok {
		return nil, newError(ErrReferenceNotFound, name, fmt.Sprintf("phase %q", name), nil)
	}
	e.logf("=== Phase: %s ===", name)
	e.emitter.Emit(emit.Event{RunID: e.runID, Step: e.step, Node: name, Msg: "phase_start"})

	var results []any
	for _, ref := range phase.Nodes {
		result, err := e.runNode(ctx, strings.TrimPrefix(ref, "node:"))
		if err != nil {
			return results, err
		}
		results = append(results, result)
	}
	e.emitter.Emit(emit.Event{RunID: e.runID, Step: e.step, Node: name, Msg: "phase_complete",
		Meta: map[string]any{"nodes": len(phase.Nodes)}})
	return results, nil
}

// runNode executes a named node.
func (e *Executor) runNode(ctx context.Context, name string) (any, error) {
	node, ok := e.wf.Nodes[name]
	if !ok {
		return nil, newError(ErrReferenceNotFound, name, fmt.Sprintf("node %q", name), nil)
	}
	return e.runStep(ctx, "node", name, node)
}

// runStep executes one node, appends the history entry, and persists the
// record when a store is configured.
func (e *Executor) runStep(ctx context.Context, kind, name string, node *Node) (any, error) {
	e.step++
	e.logf("→ Running %s: %s", kind, name)
	e.emitter.Emit(emit.Event{RunID: e.runID, Step: e.step, Node: name, Msg: "primitive_start",
		Meta: map[string]any{"type": string(node.Type)}})

	stateBefore := e.dispatcher.State().GetAll()
	start := time.Now()
	result, err := e.dispatcher.Execute(ctx, node)

	entry := HistoryEntry{
		Kind:        kind,
		Name:        name,
		Timestamp:   time.Now(),
		StateBefore: stateBefore,
		Result:      result,
	}
	if err != nil {
		entry.Err = err.Error()
		e.logf("✗ %s %s failed: %v", kind, name, err)
	} else {
		e.logf("✓ %s %s done (%s)", kind, name, time.Since(start).Round(time.Millisecond))
	}
	e.history = append(e.history, entry)
	e.persist(ctx, entry)

	msg := "primitive_complete"
	meta := map[string]any{
		"type":        string(node.Type),
		"duration_ms": time.Since(start).Milliseconds(),
	}
	if err != nil {
		msg = "primitive_error"
		meta["error"] = err.Error()
	}
	e.emitter.Emit(emit.Event{RunID: e.runID, Step: e.step, Node: name, Msg: msg, Meta: meta})
	return result, err
}

// persist appends the entry to the configured record store, best effort.
func (e *Executor) persist(ctx context.Context, entry HistoryEntry) {
	if e.recordStore == nil {
		return
	}
	stateJSON, _ := json.Marshal(entry.StateBefore)
	resultJSON, _ := json.Marshal(entry.Result)
	rec := store.Record{
		RunID:       e.runID,
		Seq:         e.step,
		Kind:        entry.Kind,
		Ref:         entry.Name,
		Timestamp:   entry.Timestamp,
		StateBefore: stateJSON,
		Result:      resultJSON,
		Error:       entry.Err,
	}
	if err := e.recordStore.SaveRecord(context.WithoutCancel(ctx), rec); err != nil {
		e.emitter.Emit(emit.Event{RunID: e.runID, Step: e.step, Msg: "record_store_error",
			Meta: map[string]any{"error": err.Error()}})
	}
}

// emitBreak emits a break event with the current state and invokes the
// debug hook when one is installed.
func (e *Executor) emitBreak(ref string) {
	snapshot := e.dispatcher.State().GetAll()
	e.emitter.Emit(emit.Event{RunID: e.runID, Step: e.step, Node: ref, Msg: "break",
		Meta: map[string]any{"state_keys": len(snapshot)}})
	if e.debugHook != nil {
		e.debugHook(ref, snapshot)
	}
}

// logf appends one progress line and emits it as a "progress" event.
func (e *Executor) logf(format string, args ...any) {
	line := fmt.Sprintf(format, args...)
	e.logLines = append(e.logLines, line)
	e.emitter.Emit(emit.Event{RunID: e.runID, Step: e.step, Msg: "progress",
		Meta: map[string]any{"line": line}})
}
