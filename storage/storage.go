package storage

import (
	"context"
	"time"
)

// Session is the pre-login context created by a valid authorization request.
// It carries everything needed to issue a code once the resource owner
// authenticates. A session is single-use: turning it into a code consumes it.
type Session struct {
	ID           string
	ClientID     string
	RedirectURI  string
	State        string // opaque client-supplied CSRF token, may be empty
	ResponseType string
	CreatedAt    time.Time
	ExpiresAt    time.Time
}

// Code is a one-time authorization code bound to the client and redirect URI
// it was issued for. Consumed is flipped exactly once, atomically, at
// redemption; a consumed or expired code must never yield a token.
type Code struct {
	Value       string
	ClientID    string
	RedirectURI string
	IssuedAt    time.Time
	ExpiresAt   time.Time
	Consumed    bool
}

// Token is an issued bearer access token. Immutable after creation;
// expiry is derived from IssuedAt + ExpiresIn at read time.
type Token struct {
	Value     string
	TokenType string
	ClientID  string
	IssuedAt  time.Time
	ExpiresIn int64 // seconds
}

// ExpiresAt returns the instant the token stops being active.
func (t *Token) ExpiresAt() time.Time {
	return t.IssuedAt.Add(time.Duration(t.ExpiresIn) * time.Second)
}

// SessionStore persists pending authorization sessions.
// All methods accept context.Context for tracing and cancellation.
type SessionStore interface {
	// SaveSession stores a pending authorization session.
	SaveSession(ctx context.Context, session *Session) error

	// GetSession retrieves a session without consuming it.
	GetSession(ctx context.Context, id string) (*Session, error)

	// ConsumeSession atomically retrieves and deletes a session.
	// Only one concurrent caller can succeed for a given id; all others
	// receive ErrSessionNotFound. This guarantees a session yields at
	// most one authorization code.
	ConsumeSession(ctx context.Context, id string) (*Session, error)
}

// CodeStore persists issued authorization codes.
type CodeStore interface {
	// SaveCode stores a freshly issued authorization code.
	SaveCode(ctx context.Context, code *Code) error

	// GetCode retrieves a code without consuming it. Expired codes
	// behave as absent (ErrCodeExpired).
	GetCode(ctx context.Context, value string) (*Code, error)

	// RedeemCode atomically validates and consumes an authorization code.
	// The checks run in protocol order under a single lock: existence and
	// client binding, expiry, redirect binding. The code is marked
	// consumed only when every check passes, so two concurrent token
	// requests can never both succeed on the same code.
	//
	// On a replay (code already consumed) the stored code is returned
	// alongside ErrCodeConsumed so callers can log the replay with its
	// original binding; for all other failures the code is nil.
	RedeemCode(ctx context.Context, value, clientID, redirectURI string) (*Code, error)
}

// TokenStore persists issued access tokens.
type TokenStore interface {
	// SaveToken stores an issued access token.
	SaveToken(ctx context.Context, token *Token) error

	// GetToken retrieves an access token. Expired tokens behave as absent
	// (ErrTokenExpired); there is no active eviction.
	GetToken(ctx context.Context, value string) (*Token, error)
}
