package flow

import (
	"context"
	"errors"
	"testing"
)

// failOnEven is a transform body that throws when the bound item is even.
const failOnEven = `{"type":"transform","input":"state.item",
	"function":"(x) => { if (x % 2 === 1) { return x } throw new Error('even item ' + x) }"}`

func TestIterateProcessesAllItems(t *testing.T) {
	d, _ := newTestDispatcher(t, WithSeedState(map[string]any{
		"xs": []any{float64(1), float64(2), float64(3)},
	}))
	node := mustNode(t, `{"type":"iterate","over":"state.xs","variable":"x",
		"body":{"type":"transform","input":"state.x","function":"(x) => x * 10","output":"last"}}`)
	result, err := d.Execute(context.Background(), node)
	if err != nil {
		t.Fatal(err)
	}
	summary := result.(map[string]any)
	if summary["processed"] != 3 || summary["total"] != 3 {
		t.Errorf("summary = %+v", summary)
	}
	if got := len(summary["results"].([]any)); got != 3 {
		t.Errorf("results = %v", summary["results"])
	}
	// Mutations from iteration i are visible in i+1; the last write stays.
	if got := d.State().Get("last"); got != int64(30) {
		t.Errorf("last = %v", got)
	}
}

func TestIterateBindingsDuringBody(t *testing.T) {
	d, _ := newTestDispatcher(t, WithSeedState(map[string]any{"xs": []any{"a", "b"}}))
	node := mustNode(t, `{"type":"iterate","over":"state.xs","variable":"item","index":"pos",
		"body":{"type":"transform","input":["state.item","state.pos","state.itemTotal"],
			"function":"(item, pos, total) => item + ':' + pos + '/' + total","output":"seen"}}`)
	result, err := d.Execute(context.Background(), node)
	if err != nil {
		t.Fatal(err)
	}
	results := result.(map[string]any)["results"].([]any)
	if results[0] != "a:0/2" || results[1] != "b:1/2" {
		t.Errorf("results = %v", results)
	}
}

func TestIterateDefaultIndexName(t *testing.T) {
	d, _ := newTestDispatcher(t, WithSeedState(map[string]any{"xs": []any{"only"}}))
	node := mustNode(t, `{"type":"iterate","over":"state.xs","variable":"row",
		"body":{"type":"transform","input":"state.rowIndex","function":"(i) => i","output":"sawIndex"}}`)
	if _, err := d.Execute(context.Background(), node); err != nil {
		t.Fatal(err)
	}
	if got := d.State().Get("sawIndex"); got != int64(0) {
		t.Errorf("sawIndex = %v", got)
	}
}

func TestIterateCleansUpBindings(t *testing.T) {
	d, _ := newTestDispatcher(t, WithSeedState(map[string]any{"xs": []any{float64(1), float64(2)}}))
	node := mustNode(t, `{"type":"iterate","over":"state.xs","variable":"item",
		"body":{"type":"transform","input":"state.item","function":"(x) => x"}}`)
	if _, err := d.Execute(context.Background(), node); err != nil {
		t.Fatal(err)
	}
	for _, binding := range []string{"item", "itemIndex", "itemTotal"} {
		if d.State().Has(binding) {
			t.Errorf("binding %q should be removed after the loop", binding)
		}
	}
}

func TestIterateContinueOnErrorCollectsFailures(t *testing.T) {
	d, _ := newTestDispatcher(t, WithSeedState(map[string]any{
		"xs": []any{float64(1), float64(2), float64(3), float64(4)},
	}))
	node := mustNode(t, `{"type":"iterate","over":"state.xs","variable":"item","body":`+failOnEven+`}`)
	result, err := d.Execute(context.Background(), node)
	if err != nil {
		t.Fatal(err)
	}
	summary := result.(map[string]any)
	if summary["processed"] != 4 {
		t.Errorf("processed = %v, want 4", summary["processed"])
	}
	iterErrors := summary["errors"].([]any)
	if len(iterErrors) != 2 {
		t.Fatalf("errors = %v", iterErrors)
	}
	if iterErrors[0].(map[string]any)["index"] != 1 || iterErrors[1].(map[string]any)["index"] != 3 {
		t.Errorf("error indices = %v", iterErrors)
	}
	// Bindings gone, error summary retained.
	if d.State().Has("item") || d.State().Has("itemIndex") {
		t.Error("bindings leaked after loop with errors")
	}
	if got := len(d.State().Get("lastIterationErrors").([]any)); got != 2 {
		t.Errorf("lastIterationErrors = %v", d.State().Get("lastIterationErrors"))
	}
}

func TestIterateStopOnErrorRethrows(t *testing.T) {
	d, _ := newTestDispatcher(t, WithSeedState(map[string]any{
		"xs": []any{float64(1), float64(2), float64(3)},
	}))
	node := mustNode(t, `{"type":"iterate","over":"state.xs","variable":"item",
		"continueOnError":false,"body":`+failOnEven+`}`)
	_, err := d.Execute(context.Background(), node)
	if !errors.Is(err, ErrIteration) {
		t.Fatalf("error = %v, want ErrIteration", err)
	}
	// Bindings removed even on the error path.
	for _, binding := range []string{"item", "itemIndex", "itemTotal"} {
		if d.State().Has(binding) {
			t.Errorf("binding %q leaked after error", binding)
		}
	}
	// Only the failing iteration is recorded; later items never ran.
	iterErrors := d.State().Get("lastIterationErrors").([]any)
	if len(iterErrors) != 1 || iterErrors[0].(map[string]any)["index"] != 1 {
		t.Errorf("lastIterationErrors = %v", iterErrors)
	}
}

func TestIterateLimit(t *testing.T) {
	d, _ := newTestDispatcher(t, WithSeedState(map[string]any{
		"xs": []any{"a", "b", "c", "d", "e"},
	}))
	node := mustNode(t, `{"type":"iterate","over":"state.xs","variable":"x","limit":2,
		"body":{"type":"transform","input":"state.x","function":"(x) => x"}}`)
	result, err := d.Execute(context.Background(), node)
	if err != nil {
		t.Fatal(err)
	}
	summary := result.(map[string]any)
	if summary["processed"] != 2 || summary["total"] != 5 {
		t.Errorf("summary = %+v", summary)
	}
}

func TestIterateNonArrayIsEmpty(t *testing.T) {
	d, _ := newTestDispatcher(t, WithSeedState(map[string]any{"xs": "not a list"}))
	node := mustNode(t, `{"type":"iterate","over":"state.xs","variable":"x",
		"body":{"type":"transform","function":"() => 1"}}`)
	result, err := d.Execute(context.Background(), node)
	if err != nil {
		t.Fatal(err)
	}
	summary := result.(map[string]any)
	if summary["processed"] != 0 || summary["total"] != 0 {
		t.Errorf("summary = %+v", summary)
	}
}

func TestIterateSequenceBodyWritesLastResult(t *testing.T) {
	d, _ := newTestDispatcher(t, WithSeedState(map[string]any{"xs": []any{float64(2)}}))
	node := mustNode(t, `{"type":"iterate","over":"state.xs","variable":"x","body":[
		{"type":"transform","input":"state.x","function":"(x) => x + 1"},
		{"type":"transform","input":"state.x","function":"(x) => x * 100"}
	]}`)
	result, err := d.Execute(context.Background(), node)
	if err != nil {
		t.Fatal(err)
	}
	results := result.(map[string]any)["results"].([]any)
	if results[0] != int64(200) {
		t.Errorf("iteration result should be the last body result, got %v", results[0])
	}
	if got := d.State().Get("lastResult"); got != int64(200) {
		t.Errorf("lastResult = %v", got)
	}
}

func TestIterateLiteralArray(t *testing.T) {
	d, _ := newTestDispatcher(t)
	node := mustNode(t, `{"type":"iterate","over":[1,2,3],"variable":"n",
		"body":{"type":"transform","input":"state.n","function":"(n) => n"}}`)
	result, err := d.Execute(context.Background(), node)
	if err != nil {
		t.Fatal(err)
	}
	if result.(map[string]any)["total"] != 3 {
		t.Errorf("total = %v", result.(map[string]any)["total"])
	}
}
