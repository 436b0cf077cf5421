// Package security provides the cross-cutting security features of the
// authorization server: audit logging with PII protection, per-identifier
// rate limiting, request ID propagation, secure response headers,
// constant-time secret comparison, and expiry checks.
package security
