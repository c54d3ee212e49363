// Package completion provides a uniform gateway to LLM chat-completion
// providers. Each provider adapter performs exactly one HTTP request per
// call and normalizes provider-specific failures into *Error values.
package completion

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"time"
)

// Request is a single completion request. The API key is supplied by the
// caller per request; adapters hold no credentials of their own.
type Request struct {
	APIKey       string
	Model        string
	SystemPrompt string
	UserPrompt   string
}

// Provider is a single LLM backend. Complete returns the first non-empty
// generated text; an empty response is an error, not an empty string.
type Provider interface {
	Name() string
	Complete(ctx context.Context, req Request) (string, error)
}

// Registry is a lookup table of completion providers keyed by provider id.
// Adding a provider means registering it here; nothing upstream dispatches
// on provider names.
type Registry struct {
	providers map[string]Provider
}

// NewRegistry creates an empty provider registry.
func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]Provider)}
}

// Register adds a provider under its own name, replacing any previous
// registration with the same name.
func (r *Registry) Register(p Provider) {
	r.providers[p.Name()] = p
}

// Get returns the provider registered under name.
func (r *Registry) Get(name string) (Provider, bool) {
	p, ok := r.providers[name]
	return p, ok
}

// Names returns the registered provider names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.providers))
	for n := range r.providers {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// DefaultRegistry returns a registry with all built-in providers,
// sharing a single HTTP client.
func DefaultRegistry(timeout time.Duration) *Registry {
	client := &http.Client{Timeout: timeout}
	r := NewRegistry()
	r.Register(NewAnthropicClient(client))
	r.Register(NewOpenAIClient(client))
	r.Register(NewGroqClient(client))
	r.Register(NewGoogleClient(client))
	return r
}

// requestError wraps a transport-level failure (no HTTP status available).
func requestError(provider string, err error) *Error {
	return &Error{
		Provider: provider,
		Kind:     KindConnection,
		Message:  fmt.Sprintf("unable to reach %s; check your network connection", provider),
		Cause:    err,
	}
}

// buildError wraps a failure to construct the HTTP request. No network was
// involved, so this is not a connection problem.
func buildError(provider string, err error) *Error {
	return &Error{
		Provider: provider,
		Kind:     KindUnexpected,
		Message:  fmt.Sprintf("unable to build %s request", provider),
		Cause:    err,
	}
}
