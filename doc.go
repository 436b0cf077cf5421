// Package authd implements an OAuth 2.0 authorization server speaking the
// Authorization Code Grant (RFC 6749 section 4.1) plus a token introspection
// endpoint restricted to system clients.
//
// The package exposes an HTTP adapter (Handler) over the grant state machine
// in the server subpackage. Four endpoints make up the surface:
//
//   - GET  /oauth/authorize   validates the client request and serves a login page
//   - POST /login/authenticate authenticates the resource owner and issues a code
//   - POST /oauth/token       exchanges a code for a bearer access token
//   - POST /oauth/introspect  reports token state to system clients
//
// Clients and resource owners come from the registry subpackage; sessions,
// codes, and tokens live in pluggable storage (storage, storage/memory).
package authd
