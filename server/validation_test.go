package server

import (
	"encoding/base64"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"testing"

	"github.com/cobaltlab/authd/registry"
	"github.com/cobaltlab/authd/storage/memory"
)

// newTestServer builds a server backed by the default registry and a fresh
// in-memory store.
func newTestServer(t *testing.T) *Server {
	t.Helper()

	reg, dir := registry.Default()
	store := memory.New()
	t.Cleanup(store.Stop)

	srv, err := New(reg, dir, store, store, store, &Config{AuditDisabled: true}, slog.Default())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return srv
}

func basicAuth(clientID, clientSecret string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(clientID+":"+clientSecret))
}

func TestValidateAuthorizationRequest_FailClosed(t *testing.T) {
	srv := newTestServer(t)

	tests := []struct {
		name    string
		query   string
		wantMsg string
	}{
		{
			name:    "missing client_id",
			query:   "redirect_uri=http://localhost:3000&response_type=code",
			wantMsg: "Missing parameter: 'client_id'",
		},
		{
			name:    "missing redirect_uri",
			query:   "client_id=web&response_type=token",
			wantMsg: "Missing parameter: 'redirect_uri'",
		},
		{
			name:    "unknown client",
			query:   "client_id=ghost&redirect_uri=http://localhost:3000&response_type=code",
			wantMsg: "Unknown client: ghost",
		},
		{
			name:    "unregistered redirect_uri",
			query:   "client_id=web&redirect_uri=http://evil.example.com&response_type=token",
			wantMsg: "Invalid redirect_uri: http://evil.example.com",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			query, parseErr := url.ParseQuery(tt.query)
			if parseErr != nil {
				t.Fatalf("ParseQuery() error = %v", parseErr)
			}

			_, err := srv.ValidateAuthorizationRequest(query)
			var reqErr *RequestError
			if !errors.As(err, &reqErr) {
				t.Fatalf("error = %T (%v), want *RequestError", err, err)
			}
			if reqErr.Message != tt.wantMsg {
				t.Errorf("Message = %q, want %q", reqErr.Message, tt.wantMsg)
			}
		})
	}
}

func TestValidateAuthorizationRequest_RedirectErrors(t *testing.T) {
	srv := newTestServer(t)

	tests := []struct {
		name     string
		query    string
		wantCode string
	}{
		{
			name:     "missing response_type",
			query:    "client_id=secure-client&redirect_uri=http://localhost:3443/oauth-callback",
			wantCode: ErrorInvalidRequest,
		},
		{
			name:     "duplicate client_id",
			query:    "client_id=web&client_id=web2&redirect_uri=http://localhost:3000&response_type=token",
			wantCode: ErrorInvalidRequest,
		},
		{
			name:     "duplicate state",
			query:    "client_id=web&redirect_uri=http://localhost:3000&response_type=token&state=a&state=b",
			wantCode: ErrorInvalidRequest,
		},
		{
			name:     "unsupported response_type",
			query:    "client_id=secure-client&redirect_uri=http://localhost:3443/oauth-callback&response_type=id_token",
			wantCode: ErrorUnsupportedResponseType,
		},
		{
			name:     "public client asking for code",
			query:    "client_id=web&redirect_uri=http://localhost:3000&response_type=code",
			wantCode: ErrorUnauthorizedClient,
		},
		{
			name:     "confidential client asking for token",
			query:    "client_id=secure-client&redirect_uri=http://localhost:3443/oauth-callback&response_type=token",
			wantCode: ErrorUnauthorizedClient,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			query, parseErr := url.ParseQuery(tt.query)
			if parseErr != nil {
				t.Fatalf("ParseQuery() error = %v", parseErr)
			}

			_, err := srv.ValidateAuthorizationRequest(query)
			var redirErr *RedirectError
			if !errors.As(err, &redirErr) {
				t.Fatalf("error = %T (%v), want *RedirectError", err, err)
			}
			if redirErr.Code != tt.wantCode {
				t.Errorf("Code = %q, want %q", redirErr.Code, tt.wantCode)
			}
		})
	}
}

func TestValidateAuthorizationRequest_StateEchoedInErrors(t *testing.T) {
	srv := newTestServer(t)

	query, _ := url.ParseQuery("client_id=secure-client&redirect_uri=http://localhost:3443/oauth-callback&response_type=bad&state=xyz")
	_, err := srv.ValidateAuthorizationRequest(query)

	var redirErr *RedirectError
	if !errors.As(err, &redirErr) {
		t.Fatalf("error = %T, want *RedirectError", err)
	}
	if redirErr.State != "xyz" {
		t.Errorf("State = %q, want %q", redirErr.State, "xyz")
	}

	loc, parseErr := url.Parse(redirErr.Location())
	if parseErr != nil {
		t.Fatalf("Location() is not a valid URL: %v", parseErr)
	}
	if got := loc.Query().Get("state"); got != "xyz" {
		t.Errorf("location state = %q, want %q", got, "xyz")
	}
	if got := loc.Query().Get("error"); got != ErrorUnsupportedResponseType {
		t.Errorf("location error = %q, want %q", got, ErrorUnsupportedResponseType)
	}
}

func TestValidateAuthorizationRequest_Valid(t *testing.T) {
	srv := newTestServer(t)

	query, _ := url.ParseQuery("client_id=secure-client&redirect_uri=http://localhost:3443/oauth-callback&response_type=code&state=xyz&scope=profile")
	req, err := srv.ValidateAuthorizationRequest(query)
	if err != nil {
		t.Fatalf("ValidateAuthorizationRequest() error = %v", err)
	}

	if req.ClientID != "secure-client" {
		t.Errorf("ClientID = %q, want %q", req.ClientID, "secure-client")
	}
	if req.ResponseType != ResponseTypeCode {
		t.Errorf("ResponseType = %q, want %q", req.ResponseType, ResponseTypeCode)
	}
	if req.State != "xyz" {
		t.Errorf("State = %q, want %q", req.State, "xyz")
	}
	if req.Client == nil || !req.Client.IsConfidential() {
		t.Error("resolved client should be the confidential secure-client")
	}
}

func TestValidateTokenRequest(t *testing.T) {
	srv := newTestServer(t)

	validForm := "grant_type=authorization_code&code=abc&client_id=secure-client&redirect_uri=http://localhost:3443/oauth-callback"

	tests := []struct {
		name        string
		authHeader  string
		form        string
		wantCode    string
		wantStatus  int
		wantDesc    string
		wantWWWAuth string
	}{
		{
			name:        "missing authorization header",
			authHeader:  "",
			form:        validForm,
			wantCode:    ErrorInvalidClient,
			wantStatus:  http.StatusUnauthorized,
			wantDesc:    "Missing or invalid authorization header",
			wantWWWAuth: "Basic",
		},
		{
			name:        "bearer header instead of basic",
			authHeader:  "Bearer abc",
			form:        validForm,
			wantCode:    ErrorInvalidClient,
			wantStatus:  http.StatusUnauthorized,
			wantDesc:    "Missing or invalid authorization header",
			wantWWWAuth: "Basic",
		},
		{
			name:        "garbage base64",
			authHeader:  "Basic %%%",
			form:        validForm,
			wantCode:    ErrorInvalidClient,
			wantStatus:  http.StatusUnauthorized,
			wantDesc:    "Missing or invalid authorization header",
			wantWWWAuth: "Basic",
		},
		{
			name:       "missing grant_type",
			authHeader: basicAuth("secure-client", "s"),
			form:       "code=abc&client_id=secure-client&redirect_uri=http://localhost:3443/oauth-callback",
			wantCode:   ErrorInvalidRequest,
			wantStatus: http.StatusBadRequest,
			wantDesc:   "Missing parameter: grant_type",
		},
		{
			name:       "missing code",
			authHeader: basicAuth("secure-client", "s"),
			form:       "grant_type=authorization_code&client_id=secure-client&redirect_uri=http://localhost:3443/oauth-callback",
			wantCode:   ErrorInvalidRequest,
			wantStatus: http.StatusBadRequest,
			wantDesc:   "Missing parameter: code",
		},
		{
			name:       "duplicate code parameter",
			authHeader: basicAuth("secure-client", "s"),
			form:       validForm + "&code=again",
			wantCode:   ErrorInvalidRequest,
			wantStatus: http.StatusBadRequest,
			wantDesc:   "Duplicate parameters are not allowed",
		},
		{
			name:       "client mismatch",
			authHeader: basicAuth("other-client", "s"),
			form:       validForm,
			wantCode:   ErrorInvalidClient,
			wantStatus: http.StatusUnauthorized,
			wantDesc:   "Client mismatch",
		},
		{
			name:       "secret in body as well",
			authHeader: basicAuth("secure-client", "s"),
			form:       validForm + "&client_secret=s",
			wantCode:   ErrorInvalidClient,
			wantStatus: http.StatusBadRequest,
			wantDesc:   "Multiple credentials are not allowed",
		},
		{
			name:       "unsupported grant type",
			authHeader: basicAuth("secure-client", "s"),
			form:       "grant_type=password&code=abc&client_id=secure-client&redirect_uri=http://localhost:3443/oauth-callback",
			wantCode:   ErrorUnsupportedGrantType,
			wantStatus: http.StatusBadRequest,
			wantDesc:   "Unsupported grant type: password",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			form, parseErr := url.ParseQuery(tt.form)
			if parseErr != nil {
				t.Fatalf("ParseQuery() error = %v", parseErr)
			}

			_, err := srv.ValidateTokenRequest(tt.authHeader, form)
			if err == nil {
				t.Fatal("ValidateTokenRequest() should fail")
			}
			if err.Code != tt.wantCode {
				t.Errorf("Code = %q, want %q", err.Code, tt.wantCode)
			}
			if err.Status != tt.wantStatus {
				t.Errorf("Status = %d, want %d", err.Status, tt.wantStatus)
			}
			if err.Description != tt.wantDesc {
				t.Errorf("Description = %q, want %q", err.Description, tt.wantDesc)
			}
			if err.WWWAuthenticate != tt.wantWWWAuth {
				t.Errorf("WWWAuthenticate = %q, want %q", err.WWWAuthenticate, tt.wantWWWAuth)
			}
		})
	}
}

func TestValidateTokenRequest_Valid(t *testing.T) {
	srv := newTestServer(t)

	form, _ := url.ParseQuery("grant_type=authorization_code&code=deadbeef&client_id=secure-client&redirect_uri=http://localhost:3443/oauth-callback")
	req, err := srv.ValidateTokenRequest(basicAuth("secure-client", "shh"), form)
	if err != nil {
		t.Fatalf("ValidateTokenRequest() error = %v", err)
	}

	if req.ClientID != "secure-client" {
		t.Errorf("ClientID = %q, want %q", req.ClientID, "secure-client")
	}
	if req.ClientSecret != "shh" {
		t.Errorf("ClientSecret = %q, want %q", req.ClientSecret, "shh")
	}
	if req.Code != "deadbeef" {
		t.Errorf("Code = %q, want %q", req.Code, "deadbeef")
	}
}

func TestDecodeClientCredentials_PercentDecoding(t *testing.T) {
	// Credentials are form-urlencoded inside the Basic header: percent
	// escapes and '+' for space must be undone on both halves.
	header := "Basic " + base64.StdEncoding.EncodeToString([]byte("my%3Aclient:p%40ss+word"))

	id, secret, ok := decodeClientCredentials(header)
	if !ok {
		t.Fatal("decodeClientCredentials() should succeed")
	}
	if id != "my:client" {
		t.Errorf("clientID = %q, want %q", id, "my:client")
	}
	if secret != "p@ss word" {
		t.Errorf("clientSecret = %q, want %q", secret, "p@ss word")
	}
}

func TestDecodeClientCredentials_NoColon(t *testing.T) {
	header := "Basic " + base64.StdEncoding.EncodeToString([]byte("just-a-client-id"))
	if _, _, ok := decodeClientCredentials(header); ok {
		t.Error("credentials without a colon should be rejected")
	}
}
