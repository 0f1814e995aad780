package flow

import (
	"context"
	"fmt"
	"strings"
)

// browserQueryPrimitive performs side-effect-free page interrogation: an
// AI-assisted extract with optional schema, or an observe.
//
// Extract writes every top-level property of the result to state under its
// own key, and the full result under lastExtract; observe stores its result
// under lastObserve.
type browserQueryPrimitive struct {
	base
}

// Execute implements primitive.
func (p *browserQueryPrimitive) Execute(ctx context.Context, node *Node) (any, error) {
	data := node.Data.(*BrowserQueryData)
	switch strings.ToLower(data.Method) {
	case "extract":
		return p.extract(ctx, node, data)
	case "observe":
		return p.observe(ctx, node, data)
	default:
		return nil, newError(ErrUnknownAction, node.Name, fmt.Sprintf("query method %q", data.Method), nil)
	}
}

func (p *browserQueryPrimitive) extract(ctx context.Context, node *Node, data *BrowserQueryData) (any, error) {
	pg, err := p.d.page(ctx)
	if err != nil {
		return nil, err
	}
	instruction := p.resolveString(data.Instruction)
	result, err := pg.Extract(ctx, instruction, data.Schema.Document())
	if err != nil {
		return nil, fmt.Errorf("extract %q: %w", instruction, err)
	}
	if data.Schema != nil {
		if err := data.Schema.Validate(result); err != nil {
			return nil, err
		}
	}
	// Top-level write-back keeps downstream templates short:
	// {{emails}} instead of {{lastExtract.emails}}.
	for key, value := range result {
		p.d.state.Set(key, value)
	}
	p.d.state.Set("lastExtract", result)
	if data.Output != "" {
		p.setByPath(data.Output, result)
	}
	return result, nil
}

func (p *browserQueryPrimitive) observe(ctx context.Context, node *Node, data *BrowserQueryData) (any, error) {
	pg, err := p.d.page(ctx)
	if err != nil {
		return nil, err
	}
	instruction := p.resolveString(data.Instruction)
	observations, err := pg.Observe(ctx, instruction)
	if err != nil {
		return nil, fmt.Errorf("observe %q: %w", instruction, err)
	}
	stored := make([]any, len(observations))
	for i, obs := range observations {
		stored[i] = obs
	}
	p.d.state.Set("lastObserve", stored)
	if data.Output != "" {
		p.setByPath(data.Output, stored)
	}
	return stored, nil
}
