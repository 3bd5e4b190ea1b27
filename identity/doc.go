// Package identity turns a one-time authorization code from an external
// identity provider into a local user account.
//
// A Provider performs the code exchange and returns the verified Identity.
// GoogleProvider implements it with golang.org/x/oauth2. A Resolver then
// finds or creates the matching userstore.User and enforces account lockout.
package identity
