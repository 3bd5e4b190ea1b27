package identity

import (
	"context"
	"errors"
)

var (
	// ErrNoCode is returned when the authorization code is empty.
	ErrNoCode = errors.New("identity: authorization code required")
	// ErrExchange is returned when the provider rejects the code or the
	// profile lookup fails.
	ErrExchange = errors.New("identity: code exchange failed")
	// ErrNoEmail is returned when the provider profile carries no email.
	ErrNoEmail = errors.New("identity: provider returned no email")
	// ErrAccountLocked is returned when the resolved account is locked out.
	ErrAccountLocked = errors.New("identity: account locked")
	// ErrEmailUnverified is returned when verified emails are required and
	// the provider did not vouch for the address.
	ErrEmailUnverified = errors.New("identity: email not verified")
)

// Identity is the provider-asserted profile.
type Identity struct {
	Email         string
	Name          string
	Picture       string
	EmailVerified bool
}

// Provider exchanges an authorization code for an Identity.
type Provider interface {
	Exchange(ctx context.Context, code string) (Identity, error)
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(ctx context.Context, code string) (Identity, error)

func (f ProviderFunc) Exchange(ctx context.Context, code string) (Identity, error) {
	return f(ctx, code)
}
