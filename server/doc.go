// Package server implements the authorization code grant state machine:
// authorization request validation, resource-owner login, one-time code
// issuance and redemption, client authentication, access-token issuance,
// and token introspection.
//
// The package is transport-agnostic. The HTTP adapter in the root package
// translates requests into calls on Server and renders the three error
// shapes this package produces: fail-closed plain errors (RequestError),
// redirect-delivered errors (RedirectError), and JSON protocol errors
// (Error). Which shape an authorization failure takes depends on whether
// the redirect URI had been verified when the failure occurred; errors are
// never delivered by redirecting to an unverified URI.
package server
