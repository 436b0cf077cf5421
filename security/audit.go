package security

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"time"
)

// Auditor handles security event logging with PII protection.
// Usernames are hashed before they reach the log stream; client ids and
// event metadata are logged verbatim.
type Auditor struct {
	logger  *slog.Logger
	enabled bool
}

// NewAuditor creates a new security auditor
func NewAuditor(logger *slog.Logger, enabled bool) *Auditor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Auditor{
		logger:  logger,
		enabled: enabled,
	}
}

// Event represents a security audit event
type Event struct {
	Type      string
	Username  string
	ClientID  string
	IPAddress string
	Details   map[string]any
	Timestamp time.Time
}

// LogEvent logs a security event with hashed PII
func (a *Auditor) LogEvent(event Event) {
	if !a.enabled {
		return
	}

	event.Timestamp = time.Now()

	a.logger.Info("security_audit",
		"event_type", event.Type,
		"username_hash", hashForLogging(event.Username),
		"client_id", event.ClientID,
		"ip_address", event.IPAddress,
		"details", event.Details,
		"timestamp", event.Timestamp,
	)
}

// LogFlowStarted logs a validated authorization request
func (a *Auditor) LogFlowStarted(clientID, ipAddress string) {
	a.LogEvent(Event{
		Type:      EventAuthorizationFlowStarted,
		ClientID:  clientID,
		IPAddress: ipAddress,
	})
}

// LogCodeIssued logs the issuance of an authorization code
func (a *Auditor) LogCodeIssued(username, clientID, ipAddress string) {
	a.LogEvent(Event{
		Type:      EventAuthorizationCodeIssued,
		Username:  username,
		ClientID:  clientID,
		IPAddress: ipAddress,
	})
}

// LogCodeReplay logs a redemption attempt against an already consumed code
func (a *Auditor) LogCodeReplay(clientID, ipAddress string) {
	a.LogEvent(Event{
		Type:      EventAuthorizationCodeReplayDetected,
		ClientID:  clientID,
		IPAddress: ipAddress,
	})
}

// LogTokenIssued logs when an access token is issued
func (a *Auditor) LogTokenIssued(clientID, ipAddress, tokenType string) {
	a.LogEvent(Event{
		Type:      EventTokenIssued,
		ClientID:  clientID,
		IPAddress: ipAddress,
		Details: map[string]any{
			"token_type": tokenType,
		},
	})
}

// LogAuthFailure logs a resource owner authentication failure
func (a *Auditor) LogAuthFailure(username, ipAddress, reason string) {
	a.LogEvent(Event{
		Type:      EventAuthFailure,
		Username:  username,
		IPAddress: ipAddress,
		Details: map[string]any{
			"reason": reason,
		},
	})
}

// LogClientAuthFailure logs a client credential failure
func (a *Auditor) LogClientAuthFailure(clientID, ipAddress, reason string) {
	a.LogEvent(Event{
		Type:      EventClientAuthFailure,
		ClientID:  clientID,
		IPAddress: ipAddress,
		Details: map[string]any{
			"reason": reason,
		},
	})
}

// LogTokenIntrospected logs a successful introspection by a system client
func (a *Auditor) LogTokenIntrospected(clientID, ipAddress string) {
	a.LogEvent(Event{
		Type:      EventTokenIntrospected,
		ClientID:  clientID,
		IPAddress: ipAddress,
	})
}

// LogIntrospectionDenied logs an introspection call by a non-system client
func (a *Auditor) LogIntrospectionDenied(clientID, ipAddress string) {
	a.LogEvent(Event{
		Type:      EventIntrospectionDenied,
		ClientID:  clientID,
		IPAddress: ipAddress,
	})
}

// LogRateLimitExceeded logs a rate limit violation
func (a *Auditor) LogRateLimitExceeded(ipAddress, clientID string) {
	a.LogEvent(Event{
		Type:      EventRateLimitExceeded,
		ClientID:  clientID,
		IPAddress: ipAddress,
	})
}

// hashForLogging creates a SHA256 hash of sensitive data for logging
func hashForLogging(sensitive string) string {
	if sensitive == "" {
		return "<empty>"
	}
	hash := sha256.Sum256([]byte(sensitive))
	return hex.EncodeToString(hash[:])[:16]
}
