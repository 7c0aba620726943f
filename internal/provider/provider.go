// Package provider normalizes external login credentials into verified
// identities. One adapter exists per login method; adapters whose secrets
// are absent from configuration declare themselves disabled instead of
// failing at startup.
package provider

import (
	"context"
	"errors"

	"github.com/freenoai/authd/internal/domain"
)

var (
	// ErrInvalidCredential means the third party rejected the presented
	// code or token, or a first-party check (password, SMS code) failed.
	ErrInvalidCredential = errors.New("provider: invalid credential")

	// ErrNotConfigured means the adapter's required secrets are absent.
	// No network I/O is attempted in this state.
	ErrNotConfigured = errors.New("provider: not configured")

	// ErrUpstreamUnavailable covers network failures reaching the provider.
	ErrUpstreamUnavailable = errors.New("provider: upstream unavailable")

	// ErrDecryptionFailed reports padding or format errors while
	// decrypting a WeChat Mini Program payload.
	ErrDecryptionFailed = errors.New("provider: decryption failed")

	// ErrUnknownProvider reports a provider name outside the registered set.
	ErrUnknownProvider = errors.New("provider: unknown provider")
)

// Credential is the raw material a client submits for one login method.
// Which fields matter depends on the adapter.
type Credential struct {
	// Code is an OAuth authorization code, a Mini Program js_code, or a
	// one-time SMS/email code.
	Code string

	// IDToken carries Apple's identity token.
	IDToken string

	// Identifier is the email or phone for first-party adapters.
	Identifier string

	// Secret is the password for the email/password adapter.
	Secret string

	// Purpose scopes one-time codes (LOGIN, BIND, ...).
	Purpose domain.Purpose
}

// ExternalIdentity is the normalized result of a successful exchange.
type ExternalIdentity struct {
	ExternalID  string
	Email       string
	DisplayName string
}

// Provider is the capability every login method implements.
type Provider interface {
	// Name identifies the adapter in the registry and in identity links.
	Name() domain.Provider

	// Configured reports whether the adapter's secrets are present.
	Configured() bool

	// Exchange turns a raw credential into a verified external identity.
	// Fails with ErrInvalidCredential, ErrNotConfigured, or
	// ErrUpstreamUnavailable.
	Exchange(ctx context.Context, cred Credential) (ExternalIdentity, error)
}

// Registry holds the adapters registered at startup.
type Registry struct {
	providers map[domain.Provider]Provider
}

func NewRegistry(providers ...Provider) *Registry {
	m := make(map[domain.Provider]Provider, len(providers))
	for _, p := range providers {
		m[p.Name()] = p
	}
	return &Registry{providers: m}
}

// Get returns the adapter for name. Unknown names fail with
// ErrUnknownProvider; a known but unconfigured adapter is returned as-is
// and will fail with ErrNotConfigured on use.
func (r *Registry) Get(name domain.Provider) (Provider, error) {
	p, ok := r.providers[name]
	if !ok {
		return nil, ErrUnknownProvider
	}
	return p, nil
}

// Enabled lists the names of all configured adapters, for diagnostics.
func (r *Registry) Enabled() []domain.Provider {
	var names []domain.Provider
	for name, p := range r.providers {
		if p.Configured() {
			names = append(names, name)
		}
	}
	return names
}
