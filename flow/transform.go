package flow

import (
	"context"
	"fmt"
	"time"

	"github.com/dop251/goja"
)

// transformPrimitive evaluates a workflow-supplied function expression over
// resolved inputs.
//
// The expression runs in a sandboxed goja interpreter: a fresh VM per call
// with no host bindings beyond the injected arguments, and an interrupt
// fires when the evaluation outlives the configured wall-clock limit.
// Workflow authors therefore get the familiar "(xs) => xs.filter(...)"
// syntax without the engine ever evaluating code in its own process
// environment.
type transformPrimitive struct {
	base
}

// Execute implements primitive.
func (p *transformPrimitive) Execute(ctx context.Context, node *Node) (any, error) {
	data := node.Data.(*TransformData)

	args := p.resolveInputs(data.Input)
	result, err := p.eval(ctx, data.Function, args)
	if err != nil {
		return nil, newError(ErrTransformEval, node.Name,
			fmt.Sprintf("function %q with input(s) %s: %v", data.Function, truncate(stringifyValue(args), 200), err), err)
	}
	if data.Output != "" {
		p.setByPath(data.Output, result)
	}
	return result, nil
}

// resolveInputs expands the input field into positional arguments: an array
// of inputs spreads, a single input becomes one argument, nil means no
// arguments.
func (p *transformPrimitive) resolveInputs(input any) []any {
	if input == nil {
		return nil
	}
	if list, ok := input.([]any); ok {
		args := make([]any, len(list))
		for i, item := range list {
			args[i] = p.resolve(item)
		}
		return args
	}
	return []any{p.resolve(input)}
}

// eval compiles the function expression and applies it to args inside the
// sandbox.
func (p *transformPrimitive) eval(ctx context.Context, expr string, args []any) (out any, err error) {
	vm := goja.New()

	timeout := p.d.transformTimeout
	if deadline, ok := ctx.Deadline(); ok {
		if until := time.Until(deadline); until < timeout {
			timeout = until
		}
	}
	timer := time.AfterFunc(timeout, func() {
		vm.Interrupt("transform timeout")
	})
	defer timer.Stop()

	defer func() {
		if r := recover(); r != nil {
			out, err = nil, fmt.Errorf("%v", r)
		}
	}()

	fnValue, err := vm.RunString("(" + expr + ")")
	if err != nil {
		return nil, fmt.Errorf("compiling: %w", err)
	}
	fn, ok := goja.AssertFunction(fnValue)
	if !ok {
		return nil, fmt.Errorf("expression is not a function")
	}

	callArgs := make([]goja.Value, len(args))
	for i, arg := range args {
		callArgs[i] = vm.ToValue(arg)
	}
	resultValue, err := fn(goja.Undefined(), callArgs...)
	if err != nil {
		return nil, fmt.Errorf("evaluating: %w", err)
	}
	if resultValue == nil || goja.IsUndefined(resultValue) || goja.IsNull(resultValue) {
		return nil, nil
	}
	return resultValue.Export(), nil
}
