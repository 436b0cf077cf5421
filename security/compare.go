package security

import "crypto/subtle"

// SecretsEqual compares two secrets in constant time. Using it for client
// secret checks keeps the comparison duration independent of how many
// leading characters match, so timing cannot be used to recover the secret.
func SecretsEqual(presented, stored string) bool {
	return subtle.ConstantTimeCompare([]byte(presented), []byte(stored)) == 1
}
