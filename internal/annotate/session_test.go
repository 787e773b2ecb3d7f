package annotate

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"bookgloss/internal/llm"
)

// fakeClient records every Send call and delegates replies to a
// configurable function.
type fakeClient struct {
	mu    sync.Mutex
	calls []fakeCall
	reply func(call int, turns []llm.Turn, prompt string) (string, error)
}

type fakeCall struct {
	turns  []llm.Turn
	prompt string
}

func (f *fakeClient) Send(ctx context.Context, turns []llm.Turn, prompt string) (string, error) {
	f.mu.Lock()
	n := len(f.calls)
	copied := make([]llm.Turn, len(turns))
	copy(copied, turns)
	f.calls = append(f.calls, fakeCall{turns: copied, prompt: prompt})
	f.mu.Unlock()

	if f.reply != nil {
		return f.reply(n, turns, prompt)
	}
	return "EXPLAIN:" + prompt, nil
}

func (f *fakeClient) Model() string { return "fake" }

func (f *fakeClient) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func fastSessionConfig() SessionConfig {
	return SessionConfig{MaxAttempts: 3, RetryDelay: time.Millisecond, TokenBudget: 24000}
}

func TestSession_SeedNamesReaderAndChapter(t *testing.T) {
	client := &fakeClient{}
	sess := NewSession(client, "Sam", "The Storm", fastSessionConfig())

	if _, err := sess.Annotate(context.Background(), "It rained."); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	call := client.calls[0]
	if len(call.turns) != 2 {
		t.Fatalf("expected 2 seed turns on first call, got %d", len(call.turns))
	}
	seed := call.turns[0].Text
	if !strings.Contains(seed, "Sam") {
		t.Errorf("expected seed to name the reader, got %q", seed)
	}
	if !strings.Contains(seed, "The Storm") {
		t.Errorf("expected seed to name the chapter, got %q", seed)
	}
	if !strings.Contains(call.prompt, "It rained.") {
		t.Errorf("expected prompt to carry the paragraph, got %q", call.prompt)
	}
}

func TestSession_AccumulatesConversation(t *testing.T) {
	client := &fakeClient{}
	sess := NewSession(client, "Sam", "Ch", fastSessionConfig())

	ctx := context.Background()
	if _, err := sess.Annotate(ctx, "first"); err != nil {
		t.Fatal(err)
	}
	if _, err := sess.Annotate(ctx, "second"); err != nil {
		t.Fatal(err)
	}

	second := client.calls[1]
	// 2 seed turns + the first exchange.
	if len(second.turns) != 4 {
		t.Fatalf("expected 4 turns on second call, got %d", len(second.turns))
	}
	if !strings.Contains(second.turns[2].Text, "first") {
		t.Errorf("expected prior prompt in context, got %q", second.turns[2].Text)
	}
	if second.turns[3].Role != llm.RoleModel {
		t.Errorf("expected prior reply as model turn, got role %q", second.turns[3].Role)
	}
}

func TestSession_RetriesRetryableErrors(t *testing.T) {
	client := &fakeClient{
		reply: func(call int, turns []llm.Turn, prompt string) (string, error) {
			if call == 0 {
				return "", &llm.RequestError{Status: 429, Reason: "rate limit", Retryable: true}
			}
			return "ok", nil
		},
	}
	sess := NewSession(client, "Sam", "Ch", fastSessionConfig())

	exp, err := sess.Annotate(context.Background(), "para")
	if err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
	if exp.Text != "ok" {
		t.Errorf("expected %q, got %q", "ok", exp.Text)
	}
	if client.callCount() != 2 {
		t.Errorf("expected 2 attempts, got %d", client.callCount())
	}
}

func TestSession_NonRetryableFailsImmediately(t *testing.T) {
	client := &fakeClient{
		reply: func(int, []llm.Turn, string) (string, error) {
			return "", &llm.RequestError{Status: 403, Reason: "bad key", Retryable: false}
		},
	}
	sess := NewSession(client, "Sam", "Ch", fastSessionConfig())

	_, err := sess.Annotate(context.Background(), "para")
	if err == nil {
		t.Fatal("expected error")
	}
	var reqErr *llm.RequestError
	if !errors.As(err, &reqErr) {
		t.Fatalf("expected RequestError, got %v", err)
	}
	if client.callCount() != 1 {
		t.Errorf("expected a single attempt for a non-retryable error, got %d", client.callCount())
	}
}

func TestSession_ExhaustsBoundedRetries(t *testing.T) {
	client := &fakeClient{
		reply: func(int, []llm.Turn, string) (string, error) {
			return "", &llm.RequestError{Status: 503, Reason: "down", Retryable: true}
		},
	}
	cfg := fastSessionConfig()
	cfg.MaxAttempts = 2
	sess := NewSession(client, "Sam", "Ch", cfg)

	if _, err := sess.Annotate(context.Background(), "para"); err == nil {
		t.Fatal("expected error after exhausted retries")
	}
	if client.callCount() != 2 {
		t.Errorf("expected exactly 2 attempts, got %d", client.callCount())
	}
}

func TestSession_TrimsContextToBudgetKeepingSeed(t *testing.T) {
	client := &fakeClient{}
	cfg := fastSessionConfig()
	cfg.TokenBudget = 60
	sess := NewSession(client, "Sam", "Ch", cfg)

	ctx := context.Background()
	long := strings.Repeat("word ", 30)
	for i := 0; i < 5; i++ {
		if _, err := sess.Annotate(ctx, long); err != nil {
			t.Fatal(err)
		}
	}

	last := client.calls[len(client.calls)-1]
	if got := len(last.turns); got > 6 {
		t.Errorf("expected trimmed context, got %d turns", got)
	}
	if !strings.Contains(last.turns[0].Text, "reading companion") {
		t.Errorf("expected seed instruction to survive trimming, got %q", last.turns[0].Text)
	}
}
