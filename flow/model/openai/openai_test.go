package openai

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/oswaldoh/agentflow-go/flow/model"
)

// mockClient implements openaiClient for testing without the API.
type mockClient struct {
	calls     int
	responses []model.ChatOut
	errs      []error
}

func (m *mockClient) createChatCompletion(_ context.Context, _ []model.Message, _ *model.ChatOptions) (model.ChatOut, error) {
	i := m.calls
	m.calls++
	var out model.ChatOut
	var err error
	if i < len(m.responses) {
		out = m.responses[i]
	}
	if i < len(m.errs) {
		err = m.errs[i]
	}
	return out, err
}

func newTestModel(client openaiClient) *ChatModel {
	return &ChatModel{
		apiKey:     "key",
		modelName:  "gpt-4o",
		client:     client,
		maxRetries: 3,
		retryDelay: time.Millisecond,
	}
}

func TestChatRetriesTransientErrors(t *testing.T) {
	mock := &mockClient{
		responses: []model.ChatOut{{}, {Text: "ok"}},
		errs:      []error{errors.New("429 rate limit"), nil},
	}
	m := newTestModel(mock)
	out, err := m.Chat(context.Background(), nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if out.Text != "ok" || mock.calls != 2 {
		t.Errorf("text = %q after %d calls", out.Text, mock.calls)
	}
}

func TestChatDoesNotRetryPermanentErrors(t *testing.T) {
	mock := &mockClient{errs: []error{errors.New("invalid api key")}}
	m := newTestModel(mock)
	if _, err := m.Chat(context.Background(), nil, nil); err == nil {
		t.Fatal("expected error")
	}
	if mock.calls != 1 {
		t.Errorf("calls = %d, want 1", mock.calls)
	}
}

func TestChatGivesUpAfterMaxRetries(t *testing.T) {
	transient := errors.New("503 service unavailable")
	mock := &mockClient{errs: []error{transient, transient, transient, transient, transient}}
	m := newTestModel(mock)
	if _, err := m.Chat(context.Background(), nil, nil); err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if mock.calls != 4 {
		t.Errorf("calls = %d, want initial attempt plus 3 retries", mock.calls)
	}
}

func TestIsTransientError(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{errors.New("rate limit exceeded"), true},
		{errors.New("HTTP 500"), true},
		{errors.New("connection refused"), true},
		{errors.New("invalid request"), false},
		{nil, false},
	}
	for _, tt := range tests {
		if got := isTransientError(tt.err); got != tt.want {
			t.Errorf("isTransientError(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}
