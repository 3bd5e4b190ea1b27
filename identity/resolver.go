package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MrEthical07/goSession/userstore"
)

// ResolverConfig configures NewResolver.
type ResolverConfig struct {
	// RequireVerifiedEmail rejects identities the provider did not verify
	// and counts the attempt against an existing account.
	RequireVerifiedEmail bool
	Now                  func() time.Time
}

// Resolver maps provider identities to local accounts.
type Resolver struct {
	provider Provider
	users    userstore.Store
	cfg      ResolverConfig
}

// NewResolver wires a provider to a user store.
func NewResolver(p Provider, users userstore.Store, cfg ResolverConfig) *Resolver {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Resolver{provider: p, users: users, cfg: cfg}
}

// Users returns the backing store.
func (r *Resolver) Users() userstore.Store { return r.users }

// Resolve exchanges code and returns the matching account, creating it on
// first login. Existing accounts have lastLogin stamped.
func (r *Resolver) Resolve(ctx context.Context, code string) (*userstore.User, error) {
	if strings.TrimSpace(code) == "" {
		return nil, ErrNoCode
	}

	id, err := r.provider.Exchange(ctx, code)
	if err != nil {
		return nil, err
	}
	id.Email = userstore.NormalizeEmail(id.Email)
	if id.Email == "" {
		return nil, ErrNoEmail
	}

	user, err := r.users.FindByEmail(ctx, id.Email)
	switch {
	case errors.Is(err, userstore.ErrUserNotFound):
		if r.cfg.RequireVerifiedEmail && !id.EmailVerified {
			return nil, ErrEmailUnverified
		}
		return r.create(ctx, id)
	case err != nil:
		return nil, fmt.Errorf("identity: find user: %w", err)
	}

	if user.Locked(r.cfg.Now()) {
		return nil, ErrAccountLocked
	}
	if r.cfg.RequireVerifiedEmail && !id.EmailVerified {
		if _, ferr := r.users.RecordLoginFailure(ctx, user.ID); ferr != nil {
			return nil, errors.Join(ErrEmailUnverified, ferr)
		}
		return nil, ErrEmailUnverified
	}

	touched, err := r.users.TouchLogin(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("identity: touch login: %w", err)
	}
	return touched, nil
}

func (r *Resolver) create(ctx context.Context, id Identity) (*userstore.User, error) {
	name := id.Name
	if name == "" {
		name, _, _ = strings.Cut(id.Email, "@")
	}
	user, err := r.users.Create(ctx, userstore.User{
		Name:            name,
		Email:           id.Email,
		ProfilePicture:  id.Picture,
		AuthProvider:    userstore.ProviderGoogle,
		IsEmailVerified: id.EmailVerified,
		LastLogin:       r.cfg.Now(),
	})
	if errors.Is(err, userstore.ErrDuplicateEmail) {
		// Lost a race with a concurrent first login.
		existing, ferr := r.users.FindByEmail(ctx, id.Email)
		if ferr != nil {
			return nil, fmt.Errorf("identity: find user: %w", ferr)
		}
		return r.users.TouchLogin(ctx, existing.ID)
	}
	if err != nil {
		return nil, fmt.Errorf("identity: create user: %w", err)
	}
	return user, nil
}
