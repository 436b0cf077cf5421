package storage

import "errors"

// Sentinel errors returned by store implementations. Callers match these
// with errors.Is to map store failures onto protocol error codes.
var (
	// ErrSessionNotFound indicates the session id does not resolve to a
	// pending authorization session.
	ErrSessionNotFound = errors.New("authorization session not found")

	// ErrSessionExpired indicates the session exists but its TTL has passed.
	ErrSessionExpired = errors.New("authorization session expired")

	// ErrCodeNotFound indicates the authorization code is unknown.
	ErrCodeNotFound = errors.New("authorization code not found")

	// ErrCodeConsumed indicates the authorization code was already redeemed.
	// A second redemption attempt is a replay and must never yield a token.
	ErrCodeConsumed = errors.New("authorization code already consumed")

	// ErrCodeExpired indicates the authorization code's 10-minute window has passed.
	ErrCodeExpired = errors.New("authorization code expired")

	// ErrCodeClientMismatch indicates the code was issued to a different client.
	ErrCodeClientMismatch = errors.New("authorization code client mismatch")

	// ErrCodeRedirectMismatch indicates the redirect_uri presented at redemption
	// does not equal the one the code was bound to.
	ErrCodeRedirectMismatch = errors.New("authorization code redirect_uri mismatch")

	// ErrTokenNotFound indicates the access token is unknown.
	ErrTokenNotFound = errors.New("access token not found")

	// ErrTokenExpired indicates the access token's lifetime has passed.
	ErrTokenExpired = errors.New("access token expired")
)
