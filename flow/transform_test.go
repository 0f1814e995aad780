package flow

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestTransformFiltersArray(t *testing.T) {
	d, _ := newTestDispatcher(t, WithSeedState(map[string]any{
		"emails": []any{
			map[string]any{"unread": true, "from": "a"},
			map[string]any{"unread": false, "from": "b"},
			map[string]any{"unread": true, "from": "c"},
		},
	}))
	node := mustNode(t, `{"type":"transform",
		"input":"state.emails",
		"function":"(xs) => xs.filter(x => x.unread)",
		"output":"unread"}`)
	result, err := d.Execute(context.Background(), node)
	if err != nil {
		t.Fatal(err)
	}
	if got := len(result.([]any)); got != 2 {
		t.Errorf("result length = %d, want 2", got)
	}
	if got := len(d.State().Get("unread").([]any)); got != 2 {
		t.Errorf("state unread length = %d, want 2", got)
	}
}

func TestTransformMultipleInputsSpread(t *testing.T) {
	d, _ := newTestDispatcher(t, WithSeedState(map[string]any{"a": float64(2), "b": float64(3)}))
	node := mustNode(t, `{"type":"transform",
		"input":["state.a","state.b"],
		"function":"(a, b) => a * b",
		"output":"product"}`)
	if _, err := d.Execute(context.Background(), node); err != nil {
		t.Fatal(err)
	}
	if got := d.State().Get("product"); got != int64(6) {
		t.Errorf("product = %v (%T)", got, got)
	}
}

func TestTransformLiteralInput(t *testing.T) {
	d, _ := newTestDispatcher(t)
	node := mustNode(t, `{"type":"transform",
		"input":"hello {{missing}}",
		"function":"(s) => s.toUpperCase()",
		"output":"shout"}`)
	if _, err := d.Execute(context.Background(), node); err != nil {
		t.Fatal(err)
	}
	if got := d.State().Get("shout"); got != "HELLO {{MISSING}}" {
		t.Errorf("shout = %v", got)
	}
}

func TestTransformEvalErrorsAreWrapped(t *testing.T) {
	d, _ := newTestDispatcher(t)
	tests := []struct {
		name string
		doc  string
	}{
		{"compile error", `{"type":"transform","function":"(x => broken"}`},
		{"runtime throw", `{"type":"transform","input":1,"function":"(x) => { throw new Error('boom') }"}`},
		{"not a function", `{"type":"transform","function":"42"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := d.Execute(context.Background(), mustNode(t, tt.doc))
			if !errors.Is(err, ErrTransformEval) {
				t.Fatalf("error = %v, want ErrTransformEval", err)
			}
			// The diagnostic carries the function text for debugging.
			if !strings.Contains(err.Error(), "function") {
				t.Errorf("diagnostic = %q", err.Error())
			}
		})
	}
}

func TestTransformTimeoutInterruptsRunawayLoop(t *testing.T) {
	d, _ := newTestDispatcher(t, WithTransformTimeout(50*time.Millisecond))
	node := mustNode(t, `{"type":"transform","function":"() => { while (true) {} }"}`)
	start := time.Now()
	_, err := d.Execute(context.Background(), node)
	if !errors.Is(err, ErrTransformEval) {
		t.Fatalf("error = %v, want ErrTransformEval", err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("interrupt took too long: %v", elapsed)
	}
}

func TestTransformNoHostAccess(t *testing.T) {
	d, _ := newTestDispatcher(t)
	// The sandbox exposes no require, no process, no fetch.
	for _, fn := range []string{
		`() => require("fs")`,
		`() => process.exit(1)`,
		`() => fetch("https://example.com")`,
	} {
		node := mustNode(t, `{"type":"transform","function":`+jsonString(fn)+`}`)
		if _, err := d.Execute(context.Background(), node); !errors.Is(err, ErrTransformEval) {
			t.Errorf("%s: error = %v, want ErrTransformEval", fn, err)
		}
	}
}

func jsonString(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
}
