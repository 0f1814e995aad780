package model

import (
	"context"
	"testing"
)

func TestRegistryPrefixResolution(t *testing.T) {
	claude := NewMockModel(`{"provider":"anthropic"}`)
	haiku := NewMockModel(`{"provider":"anthropic-haiku"}`)
	gpt := NewMockModel(`{"provider":"openai"}`)
	fallback := NewMockModel(`{"provider":"default"}`)

	reg := NewRegistry(fallback)
	reg.Register("claude", claude)
	reg.Register("claude-3-haiku", haiku)
	reg.Register("gpt", gpt)

	tests := []struct {
		id   string
		want ChatModel
	}{
		{"claude-sonnet-4-5", claude},
		{"claude-3-haiku-20240307", haiku}, // longest prefix wins
		{"gpt-4o", gpt},
		{"", fallback},
		{"unknown-model", fallback},
	}
	for _, tt := range tests {
		got, err := reg.Resolve(tt.id)
		if err != nil {
			t.Fatalf("Resolve(%q): %v", tt.id, err)
		}
		if got != tt.want {
			t.Errorf("Resolve(%q) picked the wrong provider", tt.id)
		}
	}
}

func TestRegistryNoDefaultFails(t *testing.T) {
	reg := NewRegistry(nil)
	if _, err := reg.Resolve(""); err == nil {
		t.Error("empty id without a default should fail")
	}
	if _, err := reg.Resolve("mystery"); err == nil {
		t.Error("unknown id without a default should fail")
	}
}

func TestMockModelReplaysResponses(t *testing.T) {
	mock := NewMockModel("first", "second")
	ctx := context.Background()
	msgs := []Message{{Role: RoleUser, Content: "hi"}}

	for i, want := range []string{"first", "second", "second"} {
		out, err := mock.Chat(ctx, msgs, nil)
		if err != nil {
			t.Fatal(err)
		}
		if out.Text != want {
			t.Errorf("call %d = %q, want %q", i, out.Text, want)
		}
	}
	if mock.CallCount() != 3 {
		t.Errorf("CallCount = %d", mock.CallCount())
	}
}
