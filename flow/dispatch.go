package flow

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/oswaldoh/agentflow-go/flow/browser"
	"github.com/oswaldoh/agentflow-go/flow/emit"
)

// MainTab is the reserved name of the default tab.
const MainTab = "main"

// Dispatcher maps a node's type to the owning primitive and invokes it.
//
// The dispatcher is the single recursive entry point used by both the runner
// and the control-flow primitives: iterate, route and handle call back into
// Execute for their sub-nodes. It owns the shared engine resources (the
// state store, the browser handle, the model registry) and the tab map with
// its current-tab pointer, which only browser_action mutates.
//
// Scheduling is single-threaded cooperative: exactly one primitive runs at a
// time, and a primitive's state writes are visible to every subsequent
// primitive.
type Dispatcher struct {
	state    *State
	browser  browser.Context
	models   ModelResolver
	emitter  emit.Emitter
	metrics  *PrometheusMetrics
	handlers map[NodeType]primitive

	tabs    map[string]browser.Page
	current string

	navTimeout       time.Duration
	idleTimeout      time.Duration
	transformTimeout time.Duration
	screenshotDir    string
}

// NewDispatcher creates a dispatcher with the given options. Without a
// WithBrowser option, browser primitives fail with NotInitialized; without
// WithModels, cognition fails at resolution.
func NewDispatcher(opts ...Option) *Dispatcher {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return newDispatcher(cfg)
}

// newDispatcher builds a dispatcher from a collected configuration.
func newDispatcher(cfg engineConfig) *Dispatcher {
	d := &Dispatcher{
		state:            NewState(cfg.seed),
		browser:          cfg.browser,
		models:           cfg.models,
		emitter:          cfg.emitter,
		metrics:          cfg.metrics,
		tabs:             make(map[string]browser.Page),
		navTimeout:       cfg.navTimeout,
		idleTimeout:      cfg.idleTimeout,
		transformTimeout: cfg.transformTimeout,
		screenshotDir:    cfg.screenshotDir,
	}
	d.handlers = map[NodeType]primitive{
		NodeBrowserAction: &browserActionPrimitive{base{d}},
		NodeBrowserQuery:  &browserQueryPrimitive{base{d}},
		NodeTransform:     &transformPrimitive{base{d}},
		NodeCognition:     &cognitionPrimitive{base{d}},
		NodeContext:       &contextPrimitive{base{d}},
		NodeRoute:         &routePrimitive{base{d}},
		NodeIterate:       &iteratePrimitive{base{d}},
		NodeHandle:        &handlePrimitive{base{d}},
	}
	return d
}

// State returns the dispatcher's state store.
func (d *Dispatcher) State() *State {
	return d.state
}

// Execute routes a decoded node to its primitive and returns the primitive's
// result. Context cancellation surfaces as a Cancelled error from whichever
// primitive was suspended.
func (d *Dispatcher) Execute(ctx context.Context, node *Node) (any, error) {
	if node == nil {
		return nil, newError(ErrUnknownPrimitive, "", "nil node", nil)
	}
	if err := ctx.Err(); err != nil {
		return nil, cancelled(node.Name, err)
	}
	handler, ok := d.handlers[node.Type]
	if !ok {
		return nil, newError(ErrUnknownPrimitive, node.Name, fmt.Sprintf("no primitive for type %q", node.Type), nil)
	}

	start := time.Now()
	result, err := handler.Execute(ctx, node)
	if err != nil && isCancellation(err) {
		err = cancelled(node.Name, err)
	}
	if d.metrics != nil {
		d.metrics.observePrimitive(string(node.Type), time.Since(start), err)
	}
	return result, err
}

// ExecuteWithState merges seed into state before executing node, for caller
// convenience when running a single primitive.
func (d *Dispatcher) ExecuteWithState(ctx context.Context, node *Node, seed map[string]any) (any, error) {
	if len(seed) > 0 {
		d.state.Merge("", seed)
	}
	return d.Execute(ctx, node)
}

// page returns the current tab, opening the main tab on first use. Before a
// browser context is configured, browser primitives fail with
// NotInitialized.
func (d *Dispatcher) page(ctx context.Context) (browser.Page, error) {
	if d.current != "" {
		return d.tabs[d.current], nil
	}
	if d.browser == nil {
		return nil, newError(ErrNotInitialized, "", "no browser configured", nil)
	}
	pg, err := d.browser.NewPage(ctx)
	if err != nil {
		return nil, newError(ErrNotInitialized, "", "opening main tab", err)
	}
	d.tabs[MainTab] = pg
	d.current = MainTab
	d.state.Set("currentPage", MainTab)
	return pg, nil
}

// eventFor builds a primitive-level event.
func eventFor(node *Node, msg string, meta map[string]any) emit.Event {
	name := ""
	if node != nil {
		name = node.Name
		if name == "" {
			name = string(node.Type)
		}
	}
	return emit.Event{Node: name, Msg: msg, Meta: meta}
}

// tabNames returns tab names with main first and the rest sorted, for
// deterministic listings.
func tabNames(tabs map[string]browser.Page) []string {
	names := make([]string, 0, len(tabs))
	for name := range tabs {
		if name != MainTab {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	if _, ok := tabs[MainTab]; ok {
		names = append([]string{MainTab}, names...)
	}
	return names
}

// setCurrent moves the current-tab pointer and mirrors it into state.
func (d *Dispatcher) setCurrent(name string) {
	d.current = name
	d.state.Set("currentPage", name)
}
