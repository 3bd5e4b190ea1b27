// Package jwt issues and verifies the two signed token kinds goSession uses:
// short-lived access tokens and long-lived refresh tokens. Both are HMAC signed,
// carry a "type" discriminator and embed only the hash of the client
// fingerprint. Refresh tokens are signed with a separate key.
package jwt
