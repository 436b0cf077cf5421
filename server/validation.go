package server

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/cobaltlab/authd/registry"
)

// GrantTypeAuthorizationCode is the only grant type the token endpoint accepts.
const GrantTypeAuthorizationCode = "authorization_code"

// Response types the authorization endpoint recognizes.
const (
	ResponseTypeCode  = "code"
	ResponseTypeToken = "token"
)

// authorizeRequiredParams lists the authorization request parameters that
// must be present; authorizeRecognizedParams additionally covers the
// optional ones for duplicate detection.
var (
	authorizeRequiredParams   = []string{"client_id", "redirect_uri"}
	authorizeRecognizedParams = []string{"client_id", "redirect_uri", "response_type", "scope", "state"}
	tokenRequiredParams       = []string{"grant_type", "code", "client_id", "redirect_uri"}
)

// AuthorizeRequest is a validated authorization request.
type AuthorizeRequest struct {
	Client       *registry.Client
	ClientID     string
	RedirectURI  string
	ResponseType string
	State        string
	Scope        string
}

// ValidateAuthorizationRequest runs the ordered authorization request
// checks. Each failure is terminal. The first three checks fail closed
// with a *RequestError because the redirect target is still unverified;
// once the client and redirect URI have been vetted, failures become
// *RedirectError values delivered back to the client.
func (s *Server) ValidateAuthorizationRequest(query url.Values) (*AuthorizeRequest, error) {
	// 1. client_id and redirect_uri must be present
	for _, param := range authorizeRequiredParams {
		if !query.Has(param) {
			return nil, &RequestError{Message: fmt.Sprintf("Missing parameter: '%s'", param)}
		}
	}

	// 2. client_id must resolve in the registry
	clientID := query.Get("client_id")
	client, ok := s.registry.Lookup(clientID)
	if !ok {
		return nil, &RequestError{Message: fmt.Sprintf("Unknown client: %s", clientID)}
	}

	// 3. redirect_uri must be registered for the client (exact match)
	redirectURI := query.Get("redirect_uri")
	if !client.HasRedirectURI(redirectURI) {
		return nil, &RequestError{Message: fmt.Sprintf("Invalid redirect_uri: %s", redirectURI)}
	}

	// The redirect target is now verified; remaining failures redirect.
	state := query.Get("state")
	redirectErr := func(code, description string) *RedirectError {
		return &RedirectError{
			Code:        code,
			Description: description,
			RedirectURI: redirectURI,
			State:       state,
		}
	}

	// 4. response_type must be present
	if !query.Has("response_type") {
		return nil, redirectErr(ErrorInvalidRequest, "Missing parameter: response_type")
	}

	// 5. no recognized parameter may appear twice
	for _, param := range authorizeRecognizedParams {
		if len(query[param]) > 1 {
			return nil, redirectErr(ErrorInvalidRequest, "Duplicate parameters are not allowed")
		}
	}

	// 6. response_type must be a supported value
	responseType := query.Get("response_type")
	if responseType != ResponseTypeCode && responseType != ResponseTypeToken {
		return nil, redirectErr(ErrorUnsupportedResponseType,
			fmt.Sprintf("Unsupported response_type: %s", responseType))
	}

	// 7. response_type must match the client's declared capability:
	// public clients get token, confidential clients get code
	if (client.Type == registry.ClientTypePublic && responseType != ResponseTypeToken) ||
		(client.Type == registry.ClientTypeConfidential && responseType != ResponseTypeCode) {
		return nil, redirectErr(ErrorUnauthorizedClient,
			fmt.Sprintf("Invalid response_type: %s", responseType))
	}

	return &AuthorizeRequest{
		Client:       client,
		ClientID:     clientID,
		RedirectURI:  redirectURI,
		ResponseType: responseType,
		State:        state,
		Scope:        query.Get("scope"),
	}, nil
}

// TokenRequest is a validated (but not yet authenticated or redeemed)
// token request.
type TokenRequest struct {
	ClientID     string // from the Basic auth username, matched against the body
	ClientSecret string // from the Basic auth password; empty for public clients
	GrantType    string
	Code         string
	RedirectURI  string
}

// ValidateTokenRequest runs the pure parameter and header checks of the
// token request. It never touches the code store: code redemption checks
// happen atomically inside the store so concurrent requests cannot both
// pass them.
func (s *Server) ValidateTokenRequest(authHeader string, form url.Values) (*TokenRequest, *Error) {
	// 1. client authentication must arrive via the Basic header
	clientID, clientSecret, ok := decodeClientCredentials(authHeader)
	if !ok {
		err := invalidClient("Missing or invalid authorization header", http.StatusUnauthorized)
		err.WWWAuthenticate = "Basic"
		return nil, err
	}

	// 2. all required body parameters must be present
	for _, param := range tokenRequiredParams {
		if !form.Has(param) {
			return nil, invalidRequest(fmt.Sprintf("Missing parameter: %s", param))
		}
	}

	// 3. no recognized parameter may appear twice
	for _, param := range tokenRequiredParams {
		if len(form[param]) > 1 {
			return nil, invalidRequest("Duplicate parameters are not allowed")
		}
	}

	// 4. the authenticated client and the body client_id must agree
	if clientID != form.Get("client_id") {
		return nil, invalidClient("Client mismatch", http.StatusUnauthorized)
	}

	// 5. credentials arrive through exactly one channel
	if form.Has("client_secret") {
		return nil, invalidClient("Multiple credentials are not allowed", http.StatusBadRequest)
	}

	// 6. only the authorization_code grant is supported
	grantType := form.Get("grant_type")
	if grantType != GrantTypeAuthorizationCode {
		return nil, unsupportedGrantType(fmt.Sprintf("Unsupported grant type: %s", grantType))
	}

	return &TokenRequest{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		GrantType:    grantType,
		Code:         form.Get("code"),
		RedirectURI:  form.Get("redirect_uri"),
	}, nil
}

// decodeClientCredentials parses an HTTP Basic authorization header into a
// client id and secret. Both halves are percent-decoded with '+' treated
// as space, the form-urlencoded convention of RFC 6749 §2.3.1.
func decodeClientCredentials(authHeader string) (clientID, clientSecret string, ok bool) {
	const prefix = "Basic "
	if !strings.HasPrefix(authHeader, prefix) {
		return "", "", false
	}

	raw, err := base64.StdEncoding.DecodeString(authHeader[len(prefix):])
	if err != nil {
		return "", "", false
	}

	id, secret, found := strings.Cut(string(raw), ":")
	if !found {
		return "", "", false
	}

	// url.QueryUnescape percent-decodes and converts '+' to space
	decodedID, err := url.QueryUnescape(id)
	if err != nil {
		return "", "", false
	}
	decodedSecret, err := url.QueryUnescape(secret)
	if err != nil {
		return "", "", false
	}

	return decodedID, decodedSecret, true
}
