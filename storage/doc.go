// Package storage defines the interfaces and record types for the server's
// volatile protocol state: authorization sessions, authorization codes, and
// access tokens.
//
// The three collections are independent and keyed by opaque random values.
// Expiry is computed at read time from the record's timestamps, never stored
// as a derived flag, so a Get on an expired code or token behaves as absent
// for redemption and introspection purposes.
//
// The in-memory implementation lives in storage/memory.
package storage
