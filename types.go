package authd

// TokenResponse is the success body of the token endpoint (RFC 6749 §5.1).
type TokenResponse struct {
	// AccessToken is the issued bearer token
	AccessToken string `json:"access_token"`

	// TokenType is always "bearer"
	TokenType string `json:"token_type"`

	// ExpiresIn is the token lifetime in seconds
	ExpiresIn int64 `json:"expires_in"`
}

// IntrospectionResponse is the body of the introspection endpoint. When
// Active is false no other field is present.
type IntrospectionResponse struct {
	// Active reports whether the token exists and has not expired
	Active bool `json:"active"`

	// ClientID is the client the token was issued to
	ClientID string `json:"client_id,omitempty"`

	// IssuedAt is the issuance time in epoch seconds
	IssuedAt int64 `json:"iat,omitempty"`

	// ExpiresAt is the expiry time in epoch seconds
	ExpiresAt int64 `json:"exp,omitempty"`
}

// ErrorResponse is the JSON error body shared by the token and
// introspection endpoints (RFC 6749 §5.2).
type ErrorResponse struct {
	// Error is the protocol error code
	Error string `json:"error"`

	// ErrorDescription provides additional information
	ErrorDescription string `json:"error_description,omitempty"`
}
