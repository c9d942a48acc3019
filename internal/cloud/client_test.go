// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cloud

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

const testKey = "sk-or-test-abcdefghijklmnopqrstuvwxyz0123456789"

func newTestClient(url string) *Client {
	return NewClient(testKey).WithBaseURL(url)
}

// =============================================================================
// STREAMING TESTS
// =============================================================================

func TestOpenStream_EndToEnd(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer "+testKey {
			t.Errorf("Authorization = %q", got)
		}
		if got := r.Header.Get("Accept"); got != "text/event-stream" {
			t.Errorf("Accept = %q", got)
		}

		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		for _, content := range []string{"The ", "vault ", "answers."} {
			fmt.Fprintf(w, "data: {\"choices\":[{\"delta\":{\"content\":%q},\"finish_reason\":\"\"}]}\n\n", content)
			flusher.Flush()
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer server.Close()

	stream, err := newTestClient(server.URL).OpenStream(context.Background(), []ChatMessage{NewUserMessage("hi")})
	if err != nil {
		t.Fatalf("OpenStream failed: %v", err)
	}
	defer stream.Close()

	var sb strings.Builder
	for {
		delta, err := stream.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Next failed: %v", err)
		}
		sb.WriteString(delta)
	}

	if sb.String() != "The vault answers." {
		t.Errorf("accumulated = %q", sb.String())
	}
}

func TestOpenStream_NotConfigured(t *testing.T) {
	c := NewClient("")
	if _, err := c.OpenStream(context.Background(), nil); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("expected ErrNotConfigured, got %v", err)
	}
}

func TestOpenStream_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, "data: [DONE]\n")
	}))
	defer server.Close()

	stream, err := newTestClient(server.URL).OpenStream(context.Background(), []ChatMessage{NewUserMessage("hi")})
	if err != nil {
		t.Fatalf("OpenStream failed after retry: %v", err)
	}
	stream.Close()

	if calls.Load() != 2 {
		t.Errorf("server called %d times, want 2", calls.Load())
	}
}

func TestOpenStream_NoRetryOnAuthFailure(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":{"code":"invalid_key","message":"bad key"}}`)
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).OpenStream(context.Background(), []ChatMessage{NewUserMessage("hi")})
	if !errors.Is(err, ErrAuthFailed) {
		t.Errorf("expected ErrAuthFailed, got %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("auth failure retried: %d calls", calls.Load())
	}
}

// =============================================================================
// NON-STREAMING TESTS
// =============================================================================

func TestChat_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{
			"id": "gen-1",
			"model": "openrouter/auto",
			"choices": [{"message": {"role": "assistant", "content": "two words"}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 3, "completion_tokens": 2, "total_tokens": 5}
		}`)
	}))
	defer server.Close()

	resp, err := newTestClient(server.URL).Chat(context.Background(), []ChatMessage{NewUserMessage("count")})
	if err != nil {
		t.Fatalf("Chat failed: %v", err)
	}
	if resp.GetContent() != "two words" {
		t.Errorf("content = %q", resp.GetContent())
	}
	if resp.Usage.TotalTokens != 5 {
		t.Errorf("total tokens = %d", resp.Usage.TotalTokens)
	}
}

// =============================================================================
// ERROR MAPPING TESTS
// =============================================================================

func TestHandleErrorResponse(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{"unauthorized", http.StatusUnauthorized, `{"error":{"message":"bad key"}}`, ErrAuthFailed},
		{"payment required", http.StatusPaymentRequired, `{"error":{"message":"no credits"}}`, ErrInsufficientCredits},
		{"model missing", http.StatusNotFound, `{"error":{"message":"no such model"}}`, ErrModelNotFound},
		{"rate limited", http.StatusTooManyRequests, "", ErrRateLimited},
		{"unauthorized unparseable", http.StatusUnauthorized, "<html>", ErrAuthFailed},
	}

	c := NewClient(testKey)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := &http.Response{StatusCode: tt.status, Header: http.Header{}}
			err := c.handleErrorResponse(resp, []byte(tt.body))
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("got %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestHandleErrorResponse_ServerError(t *testing.T) {
	c := NewClient(testKey)
	resp := &http.Response{StatusCode: http.StatusServiceUnavailable, Header: http.Header{}}
	err := c.handleErrorResponse(resp, []byte(`{"error":{"code":"overloaded","message":"try later"}}`))

	var gwErr *GatewayError
	if !errors.As(err, &gwErr) {
		t.Fatalf("got %T, want *GatewayError", err)
	}
	if gwErr.Status != http.StatusServiceUnavailable || gwErr.Code != "overloaded" {
		t.Errorf("gwErr = %+v", gwErr)
	}
	if !c.isRetryable(err) {
		t.Error("5xx should be retryable")
	}
}

func TestRateLimitError_RetryAfter(t *testing.T) {
	c := NewClient(testKey)

	resp := &http.Response{
		StatusCode: http.StatusTooManyRequests,
		Header:     http.Header{"Retry-After": []string{"7"}},
	}
	err := c.handleErrorResponse(resp, nil)

	var rlErr *RateLimitError
	if !errors.As(err, &rlErr) {
		t.Fatalf("got %T, want *RateLimitError", err)
	}
	if rlErr.RetryAfter != 7*time.Second {
		t.Errorf("RetryAfter = %v", rlErr.RetryAfter)
	}
	if !errors.Is(err, ErrRateLimited) {
		t.Error("RateLimitError must match ErrRateLimited")
	}
	if !c.isRetryable(err) {
		t.Error("rate limiting should be retryable")
	}
}

func TestCalculateBackoff(t *testing.T) {
	c := NewClient(testKey)

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 500 * time.Millisecond},
		{1, time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{10, retryMaxDelay}, // Capped
	}
	for _, tt := range tests {
		if got := c.calculateBackoff(tt.attempt); got != tt.want {
			t.Errorf("calculateBackoff(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

// =============================================================================
// CLIENT CONFIGURATION TESTS
// =============================================================================

func TestAPIKeyMasked_NeverLeaksKey(t *testing.T) {
	c := NewClient(testKey)

	masked := c.APIKeyMasked()
	if strings.Contains(masked, "abcdefghijklmnop") {
		t.Errorf("key material leaked: %q", masked)
	}
	if !strings.Contains(masked, "REDACTED") {
		t.Errorf("masked = %q", masked)
	}

	if got := NewClient("").APIKeyMasked(); got != "[not set]" {
		t.Errorf("empty key masked = %q", got)
	}
}

func TestWithRequestsPerMinute_PacesRequests(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"choices":[{"message":{"role":"assistant","content":"ok"},"finish_reason":"stop"}]}`)
	}))
	defer server.Close()

	// 60 rpm with burst 2: first two immediate, third waits ~1s.
	c := newTestClient(server.URL).WithRequestsPerMinute(60)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 3; i++ {
		if _, err := c.Chat(ctx, []ChatMessage{NewUserMessage("hi")}); err != nil {
			t.Fatalf("Chat %d failed: %v", i, err)
		}
	}
	if elapsed := time.Since(start); elapsed < 900*time.Millisecond {
		t.Errorf("three requests finished in %v, pacing not applied", elapsed)
	}
}

func TestListModels(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/models" {
			t.Errorf("path = %q", r.URL.Path)
		}
		fmt.Fprint(w, `{"data":[{"id":"openrouter/auto","name":"Auto","context_length":128000}]}`)
	}))
	defer server.Close()

	models, err := newTestClient(server.URL).ListModels(context.Background())
	if err != nil {
		t.Fatalf("ListModels failed: %v", err)
	}
	if len(models) != 1 || models[0].ID != "openrouter/auto" || models[0].ContextSize != 128000 {
		t.Errorf("models = %+v", models)
	}
}
