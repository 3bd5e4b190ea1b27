package flows

import (
	"context"
	"errors"
)

// LogoutDeps captures logout flow dependencies.
type LogoutDeps struct {
	Sessions SessionStore
	Tokens   TokenCodec
}

// LogoutInput names the state to revoke. Any field may be empty; the matching
// step is skipped.
type LogoutInput struct {
	UserID      string
	TokenID     string
	SessionID   string
	AccessToken string
}

// RunRevokeAccess blacklists token for its remaining lifetime. Expired or
// invalid tokens need no entry.
func RunRevokeAccess(ctx context.Context, token string, deps LogoutDeps) error {
	if token == "" {
		return nil
	}
	remaining, err := deps.Tokens.AccessRemaining(token)
	if err != nil {
		return err
	}
	return deps.Sessions.Blacklist(ctx, token, remaining)
}

// RunLogout blacklists the access token, drops the refresh marker and deletes
// the session record. Missing entries are not errors; every step runs and the
// failures are joined.
func RunLogout(ctx context.Context, in LogoutInput, deps LogoutDeps) error {
	var errs []error
	if err := RunRevokeAccess(ctx, in.AccessToken, deps); err != nil {
		errs = append(errs, err)
	}
	if in.UserID != "" && in.TokenID != "" {
		if err := deps.Sessions.DeleteRefreshMarker(ctx, in.UserID, in.TokenID); err != nil {
			errs = append(errs, err)
		}
	}
	if in.UserID != "" && in.SessionID != "" {
		if err := deps.Sessions.DeleteSession(ctx, in.UserID, in.SessionID); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// RunLogoutAll revokes every session and refresh marker of userID and
// blacklists the caller's access token when one is given.
func RunLogoutAll(ctx context.Context, userID, accessToken string, deps LogoutDeps) (int64, error) {
	var errs []error
	if err := RunRevokeAccess(ctx, accessToken, deps); err != nil {
		errs = append(errs, err)
	}
	n, err := deps.Sessions.DeleteAllForUser(ctx, userID)
	if err != nil {
		errs = append(errs, err)
	}
	return n, errors.Join(errs...)
}
