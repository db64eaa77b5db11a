// Package credential resolves the API key used for backend calls, either from
// a managed secret source or from a value supplied interactively.
package credential

import (
	"context"
	"errors"
	"log/slog"
	"strings"
)

// ErrEmptyInput is returned by Supply for empty or whitespace-only input.
var ErrEmptyInput = errors.New("credential is empty")

// Credential is an opaque API key. String masks it so it is safe to log.
type Credential string

func (c Credential) String() string {
	if c == "" {
		return ""
	}
	return "****"
}

// Value returns the raw secret for use in outbound requests.
func (c Credential) Value() string { return string(c) }

func (c Credential) Empty() bool { return strings.TrimSpace(string(c)) == "" }

// SecretSource is a read-only mapping from key name to secret value.
type SecretSource interface {
	Lookup(ctx context.Context, key string) (string, bool, error)
}

// Resolver holds at most one manually supplied credential and consults the
// managed source first on every resolution.
type Resolver struct {
	source SecretSource
	key    string
	manual Credential
	logger *slog.Logger
}

// NewResolver returns a Resolver. source may be nil when no managed store is configured.
func NewResolver(source SecretSource, key string, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{source: source, key: key, logger: logger}
}

func (r *Resolver) managed(ctx context.Context) (Credential, bool) {
	if r.source == nil || r.key == "" {
		return "", false
	}
	v, ok, err := r.source.Lookup(ctx, r.key)
	if err != nil {
		r.logger.Warn("secret lookup failed", "key", r.key, "error", err)
		return "", false
	}
	c := Credential(strings.TrimSpace(v))
	if !ok || c.Empty() {
		return "", false
	}
	return c, true
}

// Resolve returns the managed credential if present, else the manual one.
func (r *Resolver) Resolve(ctx context.Context) (Credential, bool) {
	if c, ok := r.managed(ctx); ok {
		return c, true
	}
	if r.manual.Empty() {
		return "", false
	}
	return r.manual, true
}

// Supply records a manually entered credential.
func (r *Resolver) Supply(raw string) (Credential, error) {
	c := Credential(strings.TrimSpace(raw))
	if c.Empty() {
		return "", ErrEmptyInput
	}
	r.manual = c
	return c, nil
}

// Clear forgets the manual credential. It has no effect on a managed one.
func (r *Resolver) Clear() {
	r.manual = ""
}

func (r *Resolver) Authenticated(ctx context.Context) bool {
	_, ok := r.Resolve(ctx)
	return ok
}

// Managed reports whether the managed source currently supplies the credential,
// in which case logout is not offered.
func (r *Resolver) Managed(ctx context.Context) bool {
	_, ok := r.managed(ctx)
	return ok
}
