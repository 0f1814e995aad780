package flow

import (
	"time"

	"github.com/oswaldoh/agentflow-go/flow/browser"
	"github.com/oswaldoh/agentflow-go/flow/emit"
	"github.com/oswaldoh/agentflow-go/flow/model"
	"github.com/oswaldoh/agentflow-go/flow/store"
)

// ModelResolver resolves a workflow-supplied model identifier to a chat
// provider. *model.Registry satisfies it; tests may supply a single-model
// resolver.
type ModelResolver interface {
	Resolve(id string) (model.ChatModel, error)
}

// Option is a functional option configuring a Dispatcher or Executor.
//
// Example:
//
//	exec := flow.NewExecutor(wf,
//	    flow.WithBrowser(bctx),
//	    flow.WithModels(registry),
//	    flow.WithEmitter(emit.NewLogEmitter(os.Stdout, false)),
//	)
type Option func(*engineConfig)

// engineConfig collects options before they are applied.
type engineConfig struct {
	seed             map[string]any
	browser          browser.Context
	models           ModelResolver
	emitter          emit.Emitter
	metrics          *PrometheusMetrics
	store            store.Store
	navTimeout       time.Duration
	idleTimeout      time.Duration
	transformTimeout time.Duration
	screenshotDir    string
}

func defaultConfig() engineConfig {
	return engineConfig{
		emitter:          emit.NewNullEmitter(),
		navTimeout:       60 * time.Second,
		idleTimeout:      10 * time.Second,
		transformTimeout: 5 * time.Second,
	}
}

// WithBrowser wires the browser automation façade. Browser primitives fail
// with NotInitialized until one is configured.
func WithBrowser(b browser.Context) Option {
	return func(cfg *engineConfig) { cfg.browser = b }
}

// WithModels wires the LLM registry used by cognition nodes.
func WithModels(m ModelResolver) Option {
	return func(cfg *engineConfig) { cfg.models = m }
}

// WithEmitter wires the observability sink for progress lines and structured
// per-primitive events. Default: discard.
func WithEmitter(e emit.Emitter) Option {
	return func(cfg *engineConfig) {
		if e != nil {
			cfg.emitter = e
		}
	}
}

// WithMetrics wires Prometheus metrics collection.
func WithMetrics(m *PrometheusMetrics) Option {
	return func(cfg *engineConfig) { cfg.metrics = m }
}

// WithStore wires a run-record store; the runner appends each history entry
// after the primitive commits. Without one the engine never writes durable
// state.
func WithStore(s store.Store) Option {
	return func(cfg *engineConfig) { cfg.store = s }
}

// WithSeedState pre-populates top-level state keys before execution.
func WithSeedState(seed map[string]any) Option {
	return func(cfg *engineConfig) { cfg.seed = seed }
}

// WithNavigationTimeouts overrides the DOM-loaded timeout (fatal on expiry)
// and the network-idle timeout (absorbed on expiry). Defaults: 60s and 10s.
func WithNavigationTimeouts(domLoaded, networkIdle time.Duration) Option {
	return func(cfg *engineConfig) {
		if domLoaded > 0 {
			cfg.navTimeout = domLoaded
		}
		if networkIdle > 0 {
			cfg.idleTimeout = networkIdle
		}
	}
}

// WithTransformTimeout bounds the wall-clock of a single transform function
// evaluation. Default: 5s.
func WithTransformTimeout(d time.Duration) Option {
	return func(cfg *engineConfig) {
		if d > 0 {
			cfg.transformTimeout = d
		}
	}
}

// WithScreenshotDir sets the directory screenshots are written to.
// Default: the process working directory.
func WithScreenshotDir(dir string) Option {
	return func(cfg *engineConfig) { cfg.screenshotDir = dir }
}
