package middleware

import (
	"context"
	"net/url"

	goSession "github.com/MrEthical07/goSession"
)

type accessClaimsKey struct{}
type refreshClaimsKey struct{}
type rawInputKey struct{}

// RawInput is the request payload as received, before Sanitize escaped it.
type RawInput struct {
	// Body is the decoded JSON body, or nil for empty and non-JSON bodies.
	Body  any
	Query url.Values
}

func AccessClaimsFromContext(ctx context.Context) (*goSession.AccessClaims, bool) {
	c, ok := ctx.Value(accessClaimsKey{}).(*goSession.AccessClaims)
	return c, ok && c != nil
}

func RefreshClaimsFromContext(ctx context.Context) (*goSession.RefreshClaims, bool) {
	c, ok := ctx.Value(refreshClaimsKey{}).(*goSession.RefreshClaims)
	return c, ok && c != nil
}

func RawInputFromContext(ctx context.Context) (*RawInput, bool) {
	in, ok := ctx.Value(rawInputKey{}).(*RawInput)
	return in, ok && in != nil
}

// UserIDFromContext returns the authenticated user from access or refresh
// claims, in that order.
func UserIDFromContext(ctx context.Context) string {
	if c, ok := AccessClaimsFromContext(ctx); ok {
		return c.UserID
	}
	if c, ok := RefreshClaimsFromContext(ctx); ok {
		return c.UserID
	}
	return ""
}

func withAccessClaims(ctx context.Context, c *goSession.AccessClaims) context.Context {
	return context.WithValue(ctx, accessClaimsKey{}, c)
}

func withRefreshClaims(ctx context.Context, c *goSession.RefreshClaims) context.Context {
	return context.WithValue(ctx, refreshClaimsKey{}, c)
}

func withRawInput(ctx context.Context, in *RawInput) context.Context {
	return context.WithValue(ctx, rawInputKey{}, in)
}
