package completion

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func testRequest() Request {
	return Request{
		APIKey:       "test-key",
		Model:        "test-model",
		SystemPrompt: "system",
		UserPrompt:   "user",
	}
}

// ── status classification ────────────────────────────────────────────

func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		status int
		want   Kind
	}{
		{400, KindBadRequest},
		{401, KindUnauthorized},
		{403, KindForbidden},
		{404, KindNotFound},
		{422, KindUnprocessable},
		{429, KindRateLimited},
		{500, KindUnavailable},
		{502, KindUnavailable},
		{503, KindUnavailable},
		{418, KindUnexpected},
	}
	for _, tt := range tests {
		if got := classifyStatus(tt.status); got != tt.want {
			t.Errorf("classifyStatus(%d) = %q, want %q", tt.status, got, tt.want)
		}
	}
}

func TestStatusError_PreservesCause(t *testing.T) {
	err := statusError("openai", 401, []byte(`{"error":"bad key"}`))
	if err.Kind != KindUnauthorized {
		t.Errorf("kind = %q, want unauthorized", err.Kind)
	}
	if !strings.Contains(err.Message, "API key") {
		t.Errorf("message %q should guide the user toward their API key", err.Message)
	}
	if err.Unwrap() == nil || !strings.Contains(err.Unwrap().Error(), "bad key") {
		t.Errorf("cause %v should preserve the raw body", err.Unwrap())
	}
}

// ── provider adapters ────────────────────────────────────────────────

// rateLimitedServer always answers 429.
func rateLimitedServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"message":"slow down"}}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestRateLimitMapping_AllProviders(t *testing.T) {
	client := &http.Client{Timeout: time.Second}

	tests := []struct {
		name     string
		provider func(endpoint string) Provider
	}{
		{"anthropic", func(endpoint string) Provider {
			return &AnthropicClient{endpoint: endpoint, client: client}
		}},
		{"openai", func(endpoint string) Provider {
			return NewChatClient("openai", endpoint, client)
		}},
		{"groq", func(endpoint string) Provider {
			return NewChatClient("groq", endpoint, client)
		}},
		{"google", func(endpoint string) Provider {
			return &GoogleClient{baseURL: endpoint + "/", client: client}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := rateLimitedServer(t)
			p := tt.provider(srv.URL)
			_, err := p.Complete(context.Background(), testRequest())
			var cerr *Error
			if !errors.As(err, &cerr) {
				t.Fatalf("got error %v, want *Error", err)
			}
			if cerr.Kind != KindRateLimited {
				t.Errorf("kind = %q, want rate_limited", cerr.Kind)
			}
			if !strings.Contains(strings.ToLower(cerr.Message), "rate limited") {
				t.Errorf("message %q does not mention rate limiting", cerr.Message)
			}
			if cerr.Status != http.StatusTooManyRequests {
				t.Errorf("status = %d, want 429", cerr.Status)
			}
		})
	}
}

func TestChatClient_Success(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"message":{"content":"improved text"}}]}`))
	}))
	defer srv.Close()

	c := NewChatClient("openai", srv.URL, srv.Client())
	got, err := c.Complete(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "improved text" {
		t.Errorf("got %q, want %q", got, "improved text")
	}
	if gotAuth != "Bearer test-key" {
		t.Errorf("authorization header = %q", gotAuth)
	}
}

func TestChatClient_EmptyResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[{"message":{"content":"  "}}]}`))
	}))
	defer srv.Close()

	c := NewChatClient("openai", srv.URL, srv.Client())
	_, err := c.Complete(context.Background(), testRequest())
	var cerr *Error
	if !errors.As(err, &cerr) {
		t.Fatalf("got error %v, want *Error", err)
	}
	if cerr.Kind != KindEmptyResponse {
		t.Errorf("kind = %q, want empty_response", cerr.Kind)
	}
}

func TestChatClient_SkipsEmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[{"message":{"content":""}},{"message":{"content":"second"}}]}`))
	}))
	defer srv.Close()

	c := NewChatClient("openai", srv.URL, srv.Client())
	got, err := c.Complete(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "second" {
		t.Errorf("got %q, want the first non-empty choice", got)
	}
}

func TestChatClient_ConnectionError(t *testing.T) {
	// Closed server: the request never gets a status code.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	c := NewChatClient("openai", srv.URL, &http.Client{Timeout: time.Second})
	_, err := c.Complete(context.Background(), testRequest())
	var cerr *Error
	if !errors.As(err, &cerr) {
		t.Fatalf("got error %v, want *Error", err)
	}
	if cerr.Kind != KindConnection {
		t.Errorf("kind = %q, want connection", cerr.Kind)
	}
	if cerr.Status != 0 {
		t.Errorf("status = %d, want 0 for connection failures", cerr.Status)
	}
}

func TestAnthropicClient_Success(t *testing.T) {
	var gotKey, gotVersion string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("x-api-key")
		gotVersion = r.Header.Get("anthropic-version")
		w.Write([]byte(`{"content":[{"type":"text","text":"claude says hi"}]}`))
	}))
	defer srv.Close()

	c := &AnthropicClient{endpoint: srv.URL, client: srv.Client()}
	got, err := c.Complete(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "claude says hi" {
		t.Errorf("got %q", got)
	}
	if gotKey != "test-key" {
		t.Errorf("x-api-key = %q", gotKey)
	}
	if gotVersion != anthropicVersion {
		t.Errorf("anthropic-version = %q", gotVersion)
	}
}

func TestGoogleClient_Success(t *testing.T) {
	var gotPath, gotHeaderKey, gotRawQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotHeaderKey = r.Header.Get("x-goog-api-key")
		gotRawQuery = r.URL.RawQuery
		w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"gemini says hi"}]}}]}`))
	}))
	defer srv.Close()

	c := &GoogleClient{baseURL: srv.URL + "/", client: srv.Client()}
	got, err := c.Complete(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "gemini says hi" {
		t.Errorf("got %q", got)
	}
	if gotPath != "/test-model:generateContent" {
		t.Errorf("path = %q", gotPath)
	}
	if gotHeaderKey != "test-key" {
		t.Errorf("x-goog-api-key = %q", gotHeaderKey)
	}
	if strings.Contains(gotRawQuery, "test-key") {
		t.Errorf("query %q must not carry the API key", gotRawQuery)
	}
}

func TestProviders_BadEndpointIsNotConnectionError(t *testing.T) {
	// A control character makes http.NewRequestWithContext fail before any
	// network I/O; the error must not blame the user's connection.
	const badURL = "http://\x7f"
	client := &http.Client{Timeout: time.Second}

	tests := []struct {
		name     string
		provider Provider
	}{
		{"anthropic", &AnthropicClient{endpoint: badURL, client: client}},
		{"openai", NewChatClient("openai", badURL, client)},
		{"google", &GoogleClient{baseURL: badURL + "/", client: client}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.provider.Complete(context.Background(), testRequest())
			var cerr *Error
			if !errors.As(err, &cerr) {
				t.Fatalf("got error %v, want *Error", err)
			}
			if cerr.Kind != KindUnexpected {
				t.Errorf("kind = %q, want unexpected", cerr.Kind)
			}
			if cerr.Status != 0 {
				t.Errorf("status = %d, want 0", cerr.Status)
			}
			if strings.Contains(strings.ToLower(cerr.Message), "network") {
				t.Errorf("message %q should not suggest a network problem", cerr.Message)
			}
		})
	}
}

// ── registry ─────────────────────────────────────────────────────────

func TestRegistry(t *testing.T) {
	r := DefaultRegistry(time.Second)
	for _, name := range []string{"anthropic", "openai", "groq", "google"} {
		p, ok := r.Get(name)
		if !ok {
			t.Errorf("provider %q not registered", name)
			continue
		}
		if p.Name() != name {
			t.Errorf("provider registered under %q reports name %q", name, p.Name())
		}
	}
	if _, ok := r.Get("acme"); ok {
		t.Error("unknown provider should not resolve")
	}
}
