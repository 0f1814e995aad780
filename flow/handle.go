package flow

import (
	"context"
	"time"
)

// handlePrimitive implements try / catch / finally over sub-nodes.
//
// A throwing try records lastError and runs catch; a successful catch clears
// the error, a throwing catch replaces it. Finally always runs; a throwing
// finally overrides propagation only when no earlier error exists.
type handlePrimitive struct {
	base
}

// Execute implements primitive.
func (p *handlePrimitive) Execute(ctx context.Context, node *Node) (any, error) {
	data := node.Data.(*HandleData)

	result, err := p.d.Execute(ctx, data.Try)
	if err != nil {
		p.d.state.Set("lastError", map[string]any{
			"message":   err.Error(),
			"timestamp": time.Now().Format(time.RFC3339Nano),
		})
		if data.Catch != nil {
			catchResult, catchErr := p.d.Execute(ctx, data.Catch)
			if catchErr != nil {
				err = catchErr
			} else {
				result, err = catchResult, nil
			}
		}
	}

	if data.Finally != nil {
		// Cleanup runs even when the surrounding run was cancelled.
		finallyCtx := context.WithoutCancel(ctx)
		if _, finallyErr := p.d.Execute(finallyCtx, data.Finally); finallyErr != nil && err == nil {
			err = finallyErr
		}
	}

	if err != nil {
		return nil, err
	}
	return result, nil
}
