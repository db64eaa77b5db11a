// Package llm defines the backend generation port and routes candidate
// identifiers to the provider that serves them.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/MikeSquared-Agency/contextbridge/internal/credential"
)

var (
	// ErrQuotaExceeded indicates the provider rejected the call for quota or rate limits (HTTP 429).
	ErrQuotaExceeded = errors.New("llm quota exceeded")
	// ErrUnauthorized indicates the provider rejected the credential (HTTP 401/403).
	ErrUnauthorized = errors.New("llm credential rejected")
	// ErrUnknownProvider is returned by Router for a candidate naming an unregistered provider.
	ErrUnknownProvider = errors.New("unknown llm provider")
)

// Generator issues a single synchronous text generation call.
type Generator interface {
	Generate(ctx context.Context, model, prompt string, cred credential.Credential) (string, error)
}

// Router dispatches "provider:model" candidates to registered generators.
// Bare model names go to the default provider.
type Router struct {
	defaultProvider string
	providers       map[string]Generator
}

func NewRouter(defaultProvider string) *Router {
	return &Router{defaultProvider: defaultProvider, providers: make(map[string]Generator)}
}

func (r *Router) Register(provider string, g Generator) {
	r.providers[provider] = g
}

// Split separates a candidate identifier into provider and model.
func (r *Router) Split(candidate string) (provider, model string) {
	if p, m, ok := strings.Cut(candidate, ":"); ok && p != "" {
		return p, m
	}
	return r.defaultProvider, candidate
}

func (r *Router) Generate(ctx context.Context, candidate, prompt string, cred credential.Credential) (string, error) {
	provider, model := r.Split(candidate)
	g, ok := r.providers[provider]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownProvider, provider)
	}
	return g.Generate(ctx, model, prompt, cred)
}

// StatusError maps an HTTP status from a provider to a wrapped sentinel where one applies.
func StatusError(status int, detail string) error {
	switch status {
	case 401, 403:
		return fmt.Errorf("%w: status %d: %s", ErrUnauthorized, status, detail)
	case 429:
		return fmt.Errorf("%w: status %d: %s", ErrQuotaExceeded, status, detail)
	default:
		return fmt.Errorf("api error %d: %s", status, detail)
	}
}
