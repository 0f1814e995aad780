package flow

import (
	"context"
	"errors"
	"strings"
)

// primitive is the unit the dispatcher routes decoded nodes to. Each
// primitive reads state and node inputs, performs its effect, and writes
// back to state; control-flow primitives additionally recurse through the
// dispatcher.
type primitive interface {
	Execute(ctx context.Context, node *Node) (any, error)
}

// base gives every primitive access to the shared engine resources through
// its owning dispatcher, plus the variable-resolution helpers.
type base struct {
	d *Dispatcher
}

// resolve expands v against the current state:
//   - a string containing {{...}} is template-expanded,
//   - a string starting with "state." reads that path,
//   - mappings and sequences are expanded recursively,
//   - everything else passes through unchanged.
func (b base) resolve(v any) any {
	switch val := v.(type) {
	case string:
		if strings.Contains(val, "{{") {
			return b.d.state.ResolveTemplate(val)
		}
		if strings.HasPrefix(val, "state.") {
			return b.d.state.Get(strings.TrimPrefix(val, "state."))
		}
		return val
	case map[string]any, []any:
		return b.d.state.ResolveTemplates(val)
	default:
		return v
	}
}

// resolveString template-expands a string field.
func (b base) resolveString(s string) string {
	return b.d.state.ResolveTemplate(s)
}

// setByPath writes value at path, stripping any "state." prefix first.
func (b base) setByPath(path string, value any) {
	b.d.state.Set(strings.TrimPrefix(path, "state."), value)
}

// cancelled rewraps context cancellation into the engine's Cancelled kind so
// it propagates through handle like any other primitive error.
func cancelled(node string, err error) error {
	return newError(ErrCancelled, node, "execution cancelled", err)
}

// isCancellation reports whether err is a raw context cancellation.
func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled)
}
