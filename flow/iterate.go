package flow

import (
	"context"
	"fmt"
)

// iteratePrimitive loops a sub-node (or sequence of sub-nodes) over an
// array, binding the current item and its index into state for the body's
// duration.
//
// The bindings (variable, index, and <variable>Total) exist only while the
// loop runs and are removed afterwards, even on error. State is shared
// across iterations: mutations made in iteration i are visible in i+1.
type iteratePrimitive struct {
	base
}

// Execute implements primitive.
func (p *iteratePrimitive) Execute(ctx context.Context, node *Node) (any, error) {
	data := node.Data.(*IterateData)

	items, _ := p.resolve(data.Over).([]any)
	total := len(items)
	toProcess := total
	if data.Limit > 0 && data.Limit < toProcess {
		toProcess = data.Limit
	}

	varName := data.Variable
	idxName := data.indexName()
	totalName := data.Variable + "Total"

	p.d.state.Set(totalName, total)
	defer func() {
		p.d.state.Delete(varName)
		p.d.state.Delete(idxName)
		p.d.state.Delete(totalName)
	}()

	results := make([]any, 0, toProcess)
	iterationErrors := make([]any, 0)
	processed := 0

	for i := 0; i < toProcess; i++ {
		p.d.state.Set(varName, items[i])
		p.d.state.Set(idxName, i)

		var lastResult any
		var bodyErr error
		for _, sub := range data.Body {
			lastResult, bodyErr = p.d.Execute(ctx, sub)
			if bodyErr != nil {
				break
			}
			if len(data.Body) > 1 {
				p.d.state.Set("lastResult", lastResult)
			}
		}
		processed++
		if p.d.metrics != nil {
			p.d.metrics.observeIteration()
		}

		if bodyErr != nil {
			iterationErrors = append(iterationErrors, map[string]any{
				"index": i,
				"error": bodyErr.Error(),
			})
			if !data.continueOnError() {
				p.d.state.Set("lastIterationErrors", iterationErrors)
				return nil, newError(ErrIteration, node.Name,
					fmt.Sprintf("iteration %d failed: %v", i, bodyErr), bodyErr)
			}
			continue
		}
		results = append(results, lastResult)
	}

	if len(iterationErrors) > 0 {
		p.d.state.Set("lastIterationErrors", iterationErrors)
	}
	return map[string]any{
		"results":   results,
		"errors":    iterationErrors,
		"processed": processed,
		"total":     total,
	}, nil
}
