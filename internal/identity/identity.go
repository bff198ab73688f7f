// Package identity implements operator authentication for the cracklab API.
//
// It provides:
//   - AdminTokenIssuer: issues and verifies HS256 admin session JWTs
//   - SecretMatches: constant-time check of the static admin secret
//   - RequireAdmin: Gin middleware enforcing a valid admin Bearer token
package identity
