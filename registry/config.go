package registry

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the YAML file shape holding the static client registry and
// resource-owner directory.
//
// Example:
//
//	clients:
//	  - client_id: secure-client
//	    client_secret: s3cret
//	    redirect_uris:
//	      - http://localhost:3443/oauth-callback
//	    type: confidential
//	users:
//	  - username: admin
//	    password: admin
type Config struct {
	Clients []Client `yaml:"clients"`
	Users   []User   `yaml:"users"`
}

// Load parses a YAML config document and builds the registry and directory.
func Load(data []byte) (*Registry, *Directory, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, nil, fmt.Errorf("failed to parse registry config: %w", err)
	}

	reg, err := NewRegistry(cfg.Clients)
	if err != nil {
		return nil, nil, err
	}

	dir, err := NewDirectory(cfg.Users)
	if err != nil {
		return nil, nil, err
	}

	return reg, dir, nil
}

// LoadFile reads and parses a YAML config file.
func LoadFile(path string) (*Registry, *Directory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read registry config: %w", err)
	}
	return Load(data)
}

// Default returns the built-in development registry and directory used when
// no config file is given: one public client, one confidential client, one
// system client, and two resource owners.
func Default() (*Registry, *Directory) {
	reg, err := NewRegistry([]Client{
		{
			ID:           "web",
			RedirectURIs: []string{"http://localhost:3000"},
			Type:         ClientTypePublic,
		},
		{
			ID:           "secure-client",
			Secret:       "MDQ4Y2I3MzA5OWUzOWMzZTIyNzk4MDNi",
			RedirectURIs: []string{"http://localhost:3443/oauth-callback"},
			Type:         ClientTypeConfidential,
		},
		{
			ID:     "system-client",
			Secret: "top_secret_key",
			Type:   ClientTypeConfidential,
			System: true,
		},
	})
	if err != nil {
		panic(fmt.Sprintf("built-in registry is invalid: %v", err))
	}

	dir, err := NewDirectory([]User{
		{Username: "admin", Password: "admin"},
		{Username: "demo", Password: "1234"},
	})
	if err != nil {
		panic(fmt.Sprintf("built-in directory is invalid: %v", err))
	}

	return reg, dir
}
