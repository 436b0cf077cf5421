package server

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/cobaltlab/authd/instrumentation"
	"github.com/cobaltlab/authd/internal/util"
	"github.com/cobaltlab/authd/storage"
)

// StartAuthorization validates an authorization request and opens a pending
// session awaiting resource-owner login. No session is created when any
// check fails.
func (s *Server) StartAuthorization(ctx context.Context, query url.Values, clientIP string) (*storage.Session, error) {
	ctx, span := s.startFlowSpan(ctx, "start_authorization")
	defer span.End()

	req, err := s.ValidateAuthorizationRequest(query)
	if err != nil {
		instrumentation.RecordError(span, err)
		s.Logger.Info("Rejected authorization request",
			"error", err,
			"client_ip", clientIP)
		return nil, err
	}

	now := time.Now()
	session := &storage.Session{
		ID:           uuid.NewString(),
		ClientID:     req.ClientID,
		RedirectURI:  req.RedirectURI,
		State:        req.State,
		ResponseType: req.ResponseType,
		CreatedAt:    now,
		ExpiresAt:    now.Add(time.Duration(s.Config.SessionTTL) * time.Second),
	}

	if err := s.sessions.SaveSession(ctx, session); err != nil {
		instrumentation.RecordError(span, err)
		return nil, err
	}

	instrumentation.AddFlowAttributes(span, req.ClientID, req.ResponseType)
	instrumentation.SetSpanSuccess(span)
	if m := s.metrics(); m != nil {
		m.RecordAuthorizationStarted(ctx, req.ClientID)
	}
	s.Auditor.LogFlowStarted(req.ClientID, clientIP)
	s.Logger.Info("Authorization flow started",
		"client_id", req.ClientID,
		"session_prefix", util.SafeTruncate(session.ID, idLogLength))

	return session, nil
}

// AuthenticateOwner handles the login step: it authenticates the resource
// owner against the directory, consumes the pending session, and issues a
// single-use authorization code bound to the session's client and redirect
// URI. It returns the redirect target carrying the code (and state, when
// the original request had one).
//
// The session is consumed only after the credentials check passes, so a
// mistyped password leaves the login form usable. Consumption itself is
// atomic; if two logins race on one session, exactly one obtains a code.
func (s *Server) AuthenticateOwner(ctx context.Context, sessionID, username, password, clientIP string) (string, error) {
	ctx, span := s.startFlowSpan(ctx, "authenticate_owner")
	defer span.End()

	if s.LoginRateLimiter != nil && !s.LoginRateLimiter.Allow(clientIP) {
		s.Auditor.LogRateLimitExceeded(clientIP, "")
		if m := s.metrics(); m != nil {
			m.RecordRateLimitExceeded(ctx, "login")
		}
		instrumentation.RecordError(span, ErrRateLimited)
		return "", ErrRateLimited
	}

	session, err := s.sessions.GetSession(ctx, sessionID)
	if err != nil {
		instrumentation.RecordError(span, err)
		s.Logger.Info("Login with unknown or expired session",
			"session_prefix", util.SafeTruncate(sessionID, idLogLength),
			"client_ip", clientIP)
		return "", ErrInvalidSession
	}

	if !s.directory.Authenticate(username, password) {
		s.Auditor.LogAuthFailure(username, clientIP, "bad credentials")
		if m := s.metrics(); m != nil {
			m.RecordAuthFailure(ctx, "owner")
		}
		instrumentation.RecordError(span, ErrInvalidCredentials)
		return "", ErrInvalidCredentials
	}

	// Consume-once: a raced second login finds the session gone
	session, err = s.sessions.ConsumeSession(ctx, sessionID)
	if err != nil {
		instrumentation.RecordError(span, err)
		return "", ErrInvalidSession
	}

	now := time.Now()
	code := &storage.Code{
		Value:       generateAuthorizationCode(),
		ClientID:    session.ClientID,
		RedirectURI: session.RedirectURI,
		IssuedAt:    now,
		ExpiresAt:   now.Add(time.Duration(s.Config.AuthorizationCodeTTL) * time.Second),
	}
	if err := s.codes.SaveCode(ctx, code); err != nil {
		instrumentation.RecordError(span, err)
		return "", err
	}

	params := url.Values{}
	params.Set("code", code.Value)
	if session.State != "" {
		params.Set("state", session.State)
	}

	instrumentation.AddFlowAttributes(span, session.ClientID, session.ResponseType)
	instrumentation.SetSpanSuccess(span)
	if m := s.metrics(); m != nil {
		m.RecordCodeIssued(ctx, session.ClientID)
	}
	s.Auditor.LogCodeIssued(username, session.ClientID, clientIP)
	s.Logger.Info("Authorization code issued",
		"client_id", session.ClientID,
		"code_prefix", util.SafeTruncate(code.Value, idLogLength))

	return session.RedirectURI + "?" + params.Encode(), nil
}

// ExchangeAuthorizationCode handles the token step: it validates the
// request, authenticates the client, atomically redeems the code, and
// issues a bearer access token. Client authentication happens before code
// redemption and fails identically whether or not the code is valid.
func (s *Server) ExchangeAuthorizationCode(ctx context.Context, authHeader string, form url.Values, clientIP string) (*storage.Token, *Error) {
	ctx, span := s.startFlowSpan(ctx, "exchange_authorization_code")
	defer span.End()

	req, verr := s.ValidateTokenRequest(authHeader, form)
	if verr != nil {
		instrumentation.RecordError(span, verr)
		return nil, verr
	}

	client, ok := s.registry.Lookup(req.ClientID)
	if !ok {
		s.Auditor.LogClientAuthFailure(req.ClientID, clientIP, "unknown client")
		if m := s.metrics(); m != nil {
			m.RecordAuthFailure(ctx, "client")
		}
		instrumentation.RecordError(span, errors.New("unknown client"))
		return nil, invalidClient("Invalid credentials", http.StatusUnauthorized)
	}

	// Confidential clients must prove their secret; public clients are
	// not required to authenticate under this flow.
	if client.IsConfidential() && !client.AuthenticateSecret(req.ClientSecret) {
		s.Auditor.LogClientAuthFailure(req.ClientID, clientIP, "bad secret")
		if m := s.metrics(); m != nil {
			m.RecordAuthFailure(ctx, "client")
		}
		instrumentation.RecordError(span, errors.New("client secret mismatch"))
		return nil, invalidClient("Invalid credentials", http.StatusUnauthorized)
	}

	code, err := s.codes.RedeemCode(ctx, req.Code, req.ClientID, req.RedirectURI)
	if err != nil {
		instrumentation.RecordError(span, err)
		return nil, s.mapRedemptionError(ctx, err, req.ClientID, clientIP)
	}

	now := time.Now()
	token := &storage.Token{
		Value:     generateAccessToken(),
		TokenType: "bearer",
		ClientID:  code.ClientID,
		IssuedAt:  now,
		ExpiresIn: s.Config.AccessTokenTTL,
	}
	if err := s.tokens.SaveToken(ctx, token); err != nil {
		instrumentation.RecordError(span, err)
		return nil, &Error{Code: "server_error", Description: "Failed to issue token", Status: http.StatusInternalServerError}
	}

	instrumentation.AddFlowAttributes(span, req.ClientID, "")
	instrumentation.SetSpanSuccess(span)
	if m := s.metrics(); m != nil {
		m.RecordCodeExchange(ctx, req.ClientID)
	}
	s.Auditor.LogTokenIssued(req.ClientID, clientIP, token.TokenType)
	s.Logger.Info("Access token issued",
		"client_id", req.ClientID,
		"token_prefix", util.SafeTruncate(token.Value, idLogLength))

	return token, nil
}

// mapRedemptionError translates store redemption failures onto protocol
// errors. Replays are additionally surfaced as a security event; the
// response stays indistinguishable from any other invalid code.
func (s *Server) mapRedemptionError(ctx context.Context, err error, clientID, clientIP string) *Error {
	switch {
	case errors.Is(err, storage.ErrCodeConsumed):
		s.Auditor.LogCodeReplay(clientID, clientIP)
		if m := s.metrics(); m != nil {
			m.RecordCodeReplayDetected(ctx)
		}
		s.Logger.Warn("Authorization code replay detected",
			"client_id", clientID,
			"client_ip", clientIP)
		return invalidGrant("Invalid authorization code")
	case errors.Is(err, storage.ErrCodeNotFound), errors.Is(err, storage.ErrCodeClientMismatch):
		return invalidGrant("Invalid authorization code")
	case errors.Is(err, storage.ErrCodeExpired):
		return invalidGrant("Authorization code has expired")
	case errors.Is(err, storage.ErrCodeRedirectMismatch):
		return invalidGrant("Mismatched redirect_uri")
	default:
		s.Logger.Error("Code redemption failed", "error", err)
		return &Error{Code: "server_error", Description: "Code redemption failed", Status: http.StatusInternalServerError}
	}
}

// Introspection is the result of a token introspection call. Inactive
// results carry no metadata at all.
type Introspection struct {
	Active    bool
	ClientID  string
	IssuedAt  int64 // epoch seconds
	ExpiresAt int64 // epoch seconds
}

// IntrospectToken reports whether a token is active. Only system clients
// may call it; everyone else gets invalid_client without learning whether
// the token exists.
func (s *Server) IntrospectToken(ctx context.Context, authHeader string, form url.Values, clientIP string) (*Introspection, *Error) {
	ctx, span := s.startFlowSpan(ctx, "introspect_token")
	defer span.End()

	clientID, clientSecret, ok := decodeClientCredentials(authHeader)
	if !ok {
		err := invalidClient("Missing or invalid authorization header", http.StatusUnauthorized)
		err.WWWAuthenticate = "Basic"
		instrumentation.RecordError(span, err)
		return nil, err
	}

	client, found := s.registry.Lookup(clientID)
	if !found || !client.AuthenticateSecret(clientSecret) {
		s.Auditor.LogClientAuthFailure(clientID, clientIP, "bad introspection credentials")
		if m := s.metrics(); m != nil {
			m.RecordAuthFailure(ctx, "client")
		}
		instrumentation.RecordError(span, errors.New("introspection authentication failed"))
		return nil, invalidClient("Invalid credentials", http.StatusUnauthorized)
	}

	if !client.System {
		s.Auditor.LogIntrospectionDenied(clientID, clientIP)
		instrumentation.RecordError(span, errors.New("introspection by non-system client"))
		return nil, invalidClient("Invalid credentials", http.StatusUnauthorized)
	}

	if !form.Has("token") {
		verr := invalidRequest("Missing parameter: token")
		instrumentation.RecordError(span, verr)
		return nil, verr
	}

	token, err := s.tokens.GetToken(ctx, form.Get("token"))
	if err != nil {
		if errors.Is(err, storage.ErrTokenNotFound) || errors.Is(err, storage.ErrTokenExpired) {
			instrumentation.SetSpanSuccess(span)
			if m := s.metrics(); m != nil {
				m.RecordTokenIntrospected(ctx, false)
			}
			return &Introspection{Active: false}, nil
		}
		instrumentation.RecordError(span, err)
		return nil, &Error{Code: "server_error", Description: "Introspection failed", Status: http.StatusInternalServerError}
	}

	instrumentation.SetSpanSuccess(span)
	if m := s.metrics(); m != nil {
		m.RecordTokenIntrospected(ctx, true)
	}
	s.Auditor.LogTokenIntrospected(clientID, clientIP)

	return &Introspection{
		Active:    true,
		ClientID:  token.ClientID,
		IssuedAt:  token.IssuedAt.Unix(),
		ExpiresAt: token.ExpiresAt().Unix(),
	}, nil
}
