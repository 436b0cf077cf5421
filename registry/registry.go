package registry

import (
	"fmt"

	"github.com/cobaltlab/authd/security"
)

// ClientType distinguishes clients by their ability to hold a secret securely.
type ClientType string

const (
	// ClientTypePublic is a client that cannot keep a secret (browser, native app)
	ClientTypePublic ClientType = "public"

	// ClientTypeConfidential is a client that authenticates with a secret
	ClientTypeConfidential ClientType = "confidential"
)

// Client is a registered OAuth client. Immutable after load.
type Client struct {
	ID           string     `yaml:"client_id"`
	Secret       string     `yaml:"client_secret,omitempty"`
	RedirectURIs []string   `yaml:"redirect_uris,omitempty"`
	Type         ClientType `yaml:"type"`

	// System marks a privileged client allowed to call token introspection.
	// System clients have no redirect URIs and never run the grant flow.
	System bool `yaml:"system,omitempty"`
}

// IsConfidential reports whether the client holds a secret.
// Absence of a secret makes a client public regardless of its declared type.
func (c *Client) IsConfidential() bool {
	return c.Secret != ""
}

// HasRedirectURI reports whether uri is a member of the client's registered
// set. The match is exact string equality, never prefix or pattern matching.
func (c *Client) HasRedirectURI(uri string) bool {
	for _, registered := range c.RedirectURIs {
		if registered == uri {
			return true
		}
	}
	return false
}

// AuthenticateSecret checks a presented secret against the client's
// registered one. The comparison runs in constant time. Public clients
// never authenticate successfully.
func (c *Client) AuthenticateSecret(presented string) bool {
	if !c.IsConfidential() {
		return false
	}
	return security.SecretsEqual(presented, c.Secret)
}

// Registry is the read-only set of registered clients.
type Registry struct {
	clients map[string]*Client
}

// NewRegistry builds a registry from a client list. Client ids must be
// unique and non-empty; confidential clients must carry a secret.
func NewRegistry(clients []Client) (*Registry, error) {
	r := &Registry{clients: make(map[string]*Client, len(clients))}

	for i := range clients {
		c := clients[i]
		if c.ID == "" {
			return nil, fmt.Errorf("client at index %d has no client_id", i)
		}
		if _, dup := r.clients[c.ID]; dup {
			return nil, fmt.Errorf("duplicate client_id: %s", c.ID)
		}
		if c.Type == "" {
			if c.IsConfidential() {
				c.Type = ClientTypeConfidential
			} else {
				c.Type = ClientTypePublic
			}
		}
		if c.Type != ClientTypePublic && c.Type != ClientTypeConfidential {
			return nil, fmt.Errorf("client %s has unknown type %q", c.ID, c.Type)
		}
		if c.Type == ClientTypeConfidential && c.Secret == "" {
			return nil, fmt.Errorf("confidential client %s has no client_secret", c.ID)
		}
		r.clients[c.ID] = &c
	}

	return r, nil
}

// Lookup resolves a client id. A miss is reported by ok=false, never an error.
func (r *Registry) Lookup(clientID string) (*Client, bool) {
	c, ok := r.clients[clientID]
	return c, ok
}

// Len returns the number of registered clients.
func (r *Registry) Len() int {
	return len(r.clients)
}
