// Package testutil provides testing utilities and helpers for the authd library.
package testutil

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cobaltlab/authd/storage"
)

// GenerateTestSession creates a pending authorization session for tests
func GenerateTestSession() *storage.Session {
	now := time.Now()
	return &storage.Session{
		ID:           GenerateRandomString(32),
		ClientID:     "test-client-id",
		RedirectURI:  "https://example.com/callback",
		State:        "test-state",
		ResponseType: "code",
		CreatedAt:    now,
		ExpiresAt:    now.Add(10 * time.Minute),
	}
}

// GenerateTestCode creates an unredeemed authorization code for tests
func GenerateTestCode() *storage.Code {
	now := time.Now()
	return &storage.Code{
		Value:       GenerateRandomHex(16),
		ClientID:    "test-client-id",
		RedirectURI: "https://example.com/callback",
		IssuedAt:    now,
		ExpiresAt:   now.Add(10 * time.Minute),
		Consumed:    false,
	}
}

// GenerateTestToken creates an active access token for tests
func GenerateTestToken() *storage.Token {
	return &storage.Token{
		Value:     GenerateRandomString(43),
		TokenType: "bearer",
		ClientID:  "test-client-id",
		IssuedAt:  time.Now(),
		ExpiresIn: 3600,
	}
}

// GenerateRandomString generates a random base64url-encoded string
func GenerateRandomString(length int) string {
	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		panic(fmt.Sprintf("failed to generate random string: %v", err))
	}
	return base64.RawURLEncoding.EncodeToString(b)[:length]
}

// GenerateRandomHex generates a random hex string from n bytes of entropy
func GenerateRandomHex(n int) string {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		panic(fmt.Sprintf("failed to generate random hex: %v", err))
	}
	return hex.EncodeToString(b)
}

// AssertNoError fails the test if err is not nil
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil
func AssertError(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error but got nil")
	}
}

// AssertEqual fails the test if got != want
func AssertEqual(t *testing.T, got, want interface{}) {
	t.Helper()
	if got != want {
		t.Errorf("got %v, want %v", got, want)
	}
}

// AssertStringContains fails the test if s does not contain substr
func AssertStringContains(t *testing.T, s, substr string) {
	t.Helper()
	if !strings.Contains(s, substr) {
		t.Errorf("string %q does not contain %q", s, substr)
	}
}

// HTTPRequest is a helper for making test HTTP requests
type HTTPRequest struct {
	Method  string
	URL     string
	Headers map[string]string
	Body    string
}

// NewHTTPRequest creates a new HTTP request helper
func NewHTTPRequest(method, url string) *HTTPRequest {
	return &HTTPRequest{
		Method:  method,
		URL:     url,
		Headers: make(map[string]string),
	}
}

// WithHeader adds a header to the request
func (r *HTTPRequest) WithHeader(key, value string) *HTTPRequest {
	r.Headers[key] = value
	return r
}

// WithForm sets a URL-encoded form body and the matching Content-Type
func (r *HTTPRequest) WithForm(form string) *HTTPRequest {
	r.Body = form
	r.Headers["Content-Type"] = "application/x-www-form-urlencoded"
	return r
}

// Do executes the HTTP request against the handler
func (r *HTTPRequest) Do(handler http.Handler) *httptest.ResponseRecorder {
	var body *strings.Reader
	if r.Body != "" {
		body = strings.NewReader(r.Body)
	} else {
		body = strings.NewReader("")
	}
	req := httptest.NewRequest(r.Method, r.URL, body)
	for k, v := range r.Headers {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}
