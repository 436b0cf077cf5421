package registry

import (
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/cobaltlab/authd/security"
)

// User is a resource-owner credential pair. The password may be stored as a
// bcrypt hash (recognized by its "$2" prefix) or in plain text for local
// development setups.
type User struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// Directory is the read-only resource-owner credential list. It exists only
// to authenticate the login step of the grant flow.
type Directory struct {
	users map[string]*User
}

// NewDirectory builds a directory from a user list. Usernames must be
// unique and non-empty.
func NewDirectory(users []User) (*Directory, error) {
	d := &Directory{users: make(map[string]*User, len(users))}

	for i := range users {
		u := users[i]
		if u.Username == "" {
			return nil, fmt.Errorf("user at index %d has no username", i)
		}
		if _, dup := d.users[u.Username]; dup {
			return nil, fmt.Errorf("duplicate username: %s", u.Username)
		}
		d.users[u.Username] = &u
	}

	return d, nil
}

// Authenticate checks a username/password pair against the directory.
// Unknown usernames and wrong passwords are indistinguishable to the caller.
func (d *Directory) Authenticate(username, password string) bool {
	u, ok := d.users[username]
	if !ok {
		return false
	}
	return passwordMatches(password, u.Password)
}

// passwordMatches isolates the credential comparison so the storage format
// can change without touching protocol logic. Bcrypt hashes are detected by
// prefix; anything else is compared in constant time as plain text.
func passwordMatches(presented, stored string) bool {
	if strings.HasPrefix(stored, "$2") {
		return bcrypt.CompareHashAndPassword([]byte(stored), []byte(presented)) == nil
	}
	return security.SecretsEqual(presented, stored)
}
