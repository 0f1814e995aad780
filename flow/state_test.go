package flow

import (
	"fmt"
	"reflect"
	"testing"
)

func TestStateSetGetRoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		path  string
		value any
	}{
		{"top level string", "user", "alice"},
		{"nested object", "user.profile.email", "a@example.com"},
		{"numeric creates list", "items.0", "first"},
		{"deep numeric", "rows.2.cells.1", float64(42)},
		{"bracket syntax", "items[0].name", "bracketed"},
		{"boolean", "flags.active", true},
		{"mapping value", "config", map[string]any{"retries": float64(3)}},
		{"list value", "tags", []any{"a", "b"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewState(nil)
			if ok := s.Set(tt.path, tt.value); !ok {
				t.Fatalf("Set(%q) failed", tt.path)
			}
			got := s.Get(tt.path)
			if !reflect.DeepEqual(got, tt.value) {
				t.Errorf("Get(%q) = %#v, want %#v", tt.path, got, tt.value)
			}
			if !s.Has(tt.path) {
				t.Errorf("Has(%q) = false after Set", tt.path)
			}
		})
	}
}

func TestStateBracketAndDotEquivalence(t *testing.T) {
	s := NewState(nil)
	s.Set("items[1].name", "x")
	if got := s.Get("items.1.name"); got != "x" {
		t.Errorf("dot read after bracket write = %v, want x", got)
	}
	s.Set("items.0.name", "y")
	if got := s.Get("items[0].name"); got != "y" {
		t.Errorf("bracket read after dot write = %v, want y", got)
	}
}

func TestStateAutovivification(t *testing.T) {
	s := NewState(nil)
	s.Set("users.0.email", "a@b.c")

	root := s.GetAll()
	users, ok := root["users"].([]any)
	if !ok {
		t.Fatalf("users should be a list, got %T", root["users"])
	}
	if _, ok := users[0].(map[string]any); !ok {
		t.Fatalf("users[0] should be a mapping, got %T", users[0])
	}
	if !s.Has("users") || !s.Has("users.0") {
		t.Error("intermediate segments should exist")
	}
}

func TestStateDeepIsolationOnRead(t *testing.T) {
	s := NewState(nil)
	original := map[string]any{"inner": []any{"a", "b"}}
	s.Set("data", original)

	read := s.Get("data").(map[string]any)
	read["inner"].([]any)[0] = "mutated"
	read["extra"] = true

	again := s.Get("data").(map[string]any)
	if again["inner"].([]any)[0] != "a" {
		t.Error("mutating a read value leaked into the store")
	}
	if _, ok := again["extra"]; ok {
		t.Error("adding to a read value leaked into the store")
	}
}

func TestStateDeepIsolationOnWrite(t *testing.T) {
	s := NewState(nil)
	input := map[string]any{"n": float64(1)}
	s.Set("data", input)
	input["n"] = float64(99)

	if got := s.Get("data.n"); got != float64(1) {
		t.Errorf("mutating a written value leaked into the store: got %v", got)
	}
}

func TestStateHasDistinguishesNil(t *testing.T) {
	s := NewState(nil)
	s.Set("present", nil)
	if !s.Has("present") {
		t.Error("Has should be true for a stored nil")
	}
	if s.Has("absent") {
		t.Error("Has should be false for a missing key")
	}
	if got := s.Get("absent"); got != nil {
		t.Errorf("Get on missing key = %v, want nil", got)
	}
}

func TestStateDeleteObjectKey(t *testing.T) {
	s := NewState(nil)
	s.Set("a.b", 1)
	s.Set("a.c", 2)
	if !s.Delete("a.b") {
		t.Fatal("Delete failed")
	}
	if s.Has("a.b") {
		t.Error("deleted key still present")
	}
	if !s.Has("a.c") {
		t.Error("sibling key removed")
	}
}

func TestStateDeleteSplicesArrays(t *testing.T) {
	s := NewState(nil)
	s.Set("xs", []any{"a", "b", "c"})
	if !s.Delete("xs.1") {
		t.Fatal("Delete failed")
	}
	got := s.Get("xs").([]any)
	want := []any{"a", "c"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("after splice: %v, want %v", got, want)
	}
}

func TestStateMerge(t *testing.T) {
	s := NewState(nil)
	s.Set("cfg", map[string]any{"a": 1})
	if !s.Merge("cfg", map[string]any{"b": 2}) {
		t.Fatal("Merge failed")
	}
	if s.Get("cfg.a") == nil || s.Get("cfg.b") == nil {
		t.Error("merge should keep existing keys and add new ones")
	}
	s.Set("scalar", 5)
	if s.Merge("scalar", map[string]any{"x": 1}) {
		t.Error("merging into a non-mapping should fail")
	}
}

func TestStateMergeRoot(t *testing.T) {
	s := NewState(map[string]any{"keep": true})
	if !s.Merge("", map[string]any{"added": 1}) {
		t.Fatal("root merge failed")
	}
	if !s.Has("keep") || !s.Has("added") {
		t.Error("root merge should keep and add top-level keys")
	}
}

func TestStateSnapshotRestore(t *testing.T) {
	s := NewState(nil)
	s.Set("x", 1)
	snap := s.CreateSnapshot()

	s.Set("x", 2)
	s.Set("y", 3)
	s.RestoreSnapshot(snap)

	if got := s.Get("x"); got != 1 {
		t.Errorf("x = %v after restore, want 1", got)
	}
	if s.Has("y") {
		t.Error("y should be gone after restore")
	}
	history := s.GetMutationHistory(1)
	if len(history) != 1 || history[0].Op != OpRestore {
		t.Errorf("last mutation should be restore, got %+v", history)
	}
}

func TestStateMutationLogBound(t *testing.T) {
	s := NewState(nil)
	for i := 0; i < DefaultMutationHistory+50; i++ {
		s.Set("k", i)
	}
	history := s.GetMutationHistory(0)
	if len(history) != DefaultMutationHistory {
		t.Fatalf("retained %d mutations, want %d", len(history), DefaultMutationHistory)
	}
	// Oldest entries are dropped first; the newest write survives.
	last := history[len(history)-1]
	if last.NewValue != DefaultMutationHistory+49 {
		t.Errorf("newest mutation value = %v", last.NewValue)
	}
	if s.MutationCount() != DefaultMutationHistory+50 {
		t.Errorf("MutationCount = %d", s.MutationCount())
	}
}

func TestStateClear(t *testing.T) {
	s := NewState(map[string]any{"a": 1})
	s.Clear()
	if len(s.GetAll()) != 0 {
		t.Error("state should be empty after Clear")
	}
	history := s.GetMutationHistory(1)
	if history[0].Op != OpClear {
		t.Errorf("expected clear mutation, got %v", history[0].Op)
	}
}

func TestResolveTemplate(t *testing.T) {
	s := NewState(map[string]any{
		"user":  map[string]any{"name": "alice"},
		"count": float64(3),
		"flag":  true,
		"items": []any{"a"},
	})
	tests := []struct {
		in, want string
	}{
		{"hello {{user.name}}", "hello alice"},
		{"n={{count}}", "n=3"},
		{"f={{flag}}", "f=true"},
		{"prefix {{state.user.name}}", "prefix alice"},
		{"{{items}}", `["a"]`},
		{"{{missing}} stays", "{{missing}} stays"},
		{"no templates", "no templates"},
		{"{{user.name}}-{{count}}", "alice-3"},
	}
	for _, tt := range tests {
		if got := s.ResolveTemplate(tt.in); got != tt.want {
			t.Errorf("ResolveTemplate(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestResolveTemplatePurity(t *testing.T) {
	s := NewState(map[string]any{"v": "x"})
	in := "a {{v}} b {{missing}}"
	first := s.ResolveTemplate(in)
	for i := 0; i < 5; i++ {
		if got := s.ResolveTemplate(in); got != first {
			t.Fatalf("expansion changed between calls: %q vs %q", got, first)
		}
	}
}

func TestResolveTemplatesNested(t *testing.T) {
	s := NewState(map[string]any{"name": "bob"})
	in := map[string]any{
		"greeting": "hi {{name}}",
		"list":     []any{"{{name}}", float64(1)},
		"keep":     float64(2),
	}
	out := s.ResolveTemplates(in).(map[string]any)
	if out["greeting"] != "hi bob" {
		t.Errorf("greeting = %v", out["greeting"])
	}
	if out["list"].([]any)[0] != "bob" {
		t.Errorf("list[0] = %v", out["list"].([]any)[0])
	}
	if out["keep"] != float64(2) {
		t.Errorf("keep = %v", out["keep"])
	}
}

func TestStateSeedIsolation(t *testing.T) {
	seed := map[string]any{"a": map[string]any{"b": 1}}
	s := NewState(seed)
	seed["a"].(map[string]any)["b"] = 99
	if got := s.Get("a.b"); got != 1 {
		t.Errorf("seed mutation leaked: got %v", got)
	}
}

func TestStateSetGrowsLists(t *testing.T) {
	s := NewState(nil)
	s.Set("xs.0", "a")
	s.Set("xs.3", "d")
	xs := s.Get("xs").([]any)
	if len(xs) != 4 {
		t.Fatalf("len = %d, want 4", len(xs))
	}
	if xs[1] != nil || xs[2] != nil {
		t.Error("gap elements should be nil")
	}
}

func ExampleState_ResolveTemplate() {
	s := NewState(map[string]any{"city": "Oslo"})
	fmt.Println(s.ResolveTemplate("weather in {{city}}"))
	// Output: weather in Oslo
}
