package security

// Event type constants for security audit logging.
// These constants ensure consistency across the codebase and prevent typos
// when logging security-relevant events.
const (
	// Authorization flow events

	// EventAuthorizationFlowStarted is logged when an authorization request passes validation
	EventAuthorizationFlowStarted = "authorization_flow_started"

	// EventAuthorizationCodeIssued is logged when an authorization code is issued
	EventAuthorizationCodeIssued = "authorization_code_issued"

	// EventAuthorizationCodeReplayDetected is logged when a consumed code is presented again (attack)
	EventAuthorizationCodeReplayDetected = "authorization_code_replay_detected"

	// EventInvalidRedirect is logged when an unregistered redirect URI is presented
	EventInvalidRedirect = "invalid_redirect"

	// Token lifecycle events

	// EventTokenIssued is logged when a new access token is issued to a client
	EventTokenIssued = "token_issued"

	// EventTokenIntrospected is logged when a token is introspected by a system client
	EventTokenIntrospected = "token_introspected"

	// Security violation events

	// EventAuthFailure is logged when resource owner authentication fails
	EventAuthFailure = "auth_failure"

	// EventClientAuthFailure is logged when client credential authentication fails
	EventClientAuthFailure = "client_auth_failure"

	// EventIntrospectionDenied is logged when a non-system client calls introspection
	EventIntrospectionDenied = "introspection_denied"

	// EventRateLimitExceeded is logged when a rate limit is exceeded
	EventRateLimitExceeded = "rate_limit_exceeded"
)
