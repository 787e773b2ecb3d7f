package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestClient(url string) *GeminiClient {
	c := NewGeminiClient("test-key", "gemini-test", 100000)
	c.baseURL = url
	return c
}

func TestGeminiClient_SendIncludesTurns(t *testing.T) {
	var captured geminiRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"the reply"}]}}]}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	turns := []Turn{
		{Role: RoleUser, Text: "seed instruction"},
		{Role: RoleModel, Text: "ok"},
	}
	got, err := c.Send(context.Background(), turns, "explain this")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "the reply" {
		t.Errorf("expected %q, got %q", "the reply", got)
	}

	if len(captured.Contents) != 3 {
		t.Fatalf("expected 3 contents (2 turns + prompt), got %d", len(captured.Contents))
	}
	if captured.Contents[0].Parts[0].Text != "seed instruction" {
		t.Errorf("expected first turn first, got %q", captured.Contents[0].Parts[0].Text)
	}
	if captured.Contents[2].Role != RoleUser || captured.Contents[2].Parts[0].Text != "explain this" {
		t.Errorf("expected prompt last, got %+v", captured.Contents[2])
	}
}

func TestGeminiClient_RateLimitIsRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"code":429,"message":"rate limit","status":"RESOURCE_EXHAUSTED"}}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	_, err := c.Send(context.Background(), nil, "p")
	if err == nil {
		t.Fatal("expected error")
	}
	if !IsRetryable(err) {
		t.Errorf("expected 429 to be retryable, got %v", err)
	}
}

func TestGeminiClient_QuotaExhaustionIsNotRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"code":429,"message":"You exceeded your current quota","status":"RESOURCE_EXHAUSTED"}}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	_, err := c.Send(context.Background(), nil, "p")
	if err == nil {
		t.Fatal("expected error")
	}
	if IsRetryable(err) {
		t.Errorf("expected quota exhaustion to be non-retryable, got %v", err)
	}
}

func TestGeminiClient_ServerErrorIsRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	_, err := c.Send(context.Background(), nil, "p")
	if !IsRetryable(err) {
		t.Errorf("expected 503 to be retryable, got %v", err)
	}
}

func TestGeminiClient_AuthFailureIsNotRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"error":{"code":403,"message":"invalid api key","status":"PERMISSION_DENIED"}}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	_, err := c.Send(context.Background(), nil, "p")
	if err == nil {
		t.Fatal("expected error")
	}
	if IsRetryable(err) {
		t.Errorf("expected 403 to be non-retryable, got %v", err)
	}
}

func TestGeminiClient_EmptyCandidates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"candidates":[]}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	_, err := c.Send(context.Background(), nil, "p")
	if err == nil {
		t.Fatal("expected error for empty candidates")
	}
	if IsRetryable(err) {
		t.Errorf("expected malformed response to be non-retryable, got %v", err)
	}
}

func TestIsRetryable_PlainError(t *testing.T) {
	if IsRetryable(context.Canceled) {
		t.Error("plain errors must not be treated as retryable")
	}
}
