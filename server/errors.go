package server

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
)

// RFC 6749 error codes used across the token and authorization endpoints.
const (
	ErrorInvalidRequest          = "invalid_request"
	ErrorInvalidClient           = "invalid_client"
	ErrorInvalidGrant            = "invalid_grant"
	ErrorUnauthorizedClient      = "unauthorized_client"
	ErrorUnsupportedGrantType    = "unsupported_grant_type"
	ErrorUnsupportedResponseType = "unsupported_response_type"
)

// Login flow errors. The HTTP adapter maps these onto plain responses:
// an invalid session cannot redirect because there is no client context,
// and credential failures belong to the resource owner, not the client.
var (
	ErrInvalidSession     = errors.New("invalid session")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrRateLimited        = errors.New("too many requests")
)

// Error is a protocol error delivered as a JSON body
// {"error": ..., "error_description": ...} with the given HTTP status.
type Error struct {
	Code        string
	Description string
	Status      int

	// WWWAuthenticate, when non-empty, is emitted as the WWW-Authenticate
	// response header (RFC 6749 §5.2 requires it when the client attempted
	// header-based authentication).
	WWWAuthenticate string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

func invalidRequest(description string) *Error {
	return &Error{Code: ErrorInvalidRequest, Description: description, Status: http.StatusBadRequest}
}

func invalidClient(description string, status int) *Error {
	return &Error{Code: ErrorInvalidClient, Description: description, Status: status}
}

func invalidGrant(description string) *Error {
	return &Error{Code: ErrorInvalidGrant, Description: description, Status: http.StatusBadRequest}
}

func unsupportedGrantType(description string) *Error {
	return &Error{Code: ErrorUnsupportedGrantType, Description: description, Status: http.StatusBadRequest}
}

// RequestError is an authorization request failure detected before the
// redirect URI was verified. It must be answered fail-closed with a plain
// 400 body; redirecting would send the resource owner to an unvetted URI.
type RequestError struct {
	Message string
}

func (e *RequestError) Error() string {
	return e.Message
}

// RedirectError is an authorization request failure detected after the
// client and redirect URI were verified. It is delivered by redirecting
// the resource owner back to the client with error parameters in the query
// string, echoing state when the request carried one.
type RedirectError struct {
	Code        string
	Description string
	RedirectURI string
	State       string
}

func (e *RedirectError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// Location builds the redirect target carrying the error parameters.
func (e *RedirectError) Location() string {
	params := url.Values{}
	params.Set("error", e.Code)
	params.Set("error_description", e.Description)
	if e.State != "" {
		params.Set("state", e.State)
	}
	return e.RedirectURI + "?" + params.Encode()
}
