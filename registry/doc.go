// Package registry holds the server's static configuration data: the set of
// registered OAuth clients and the resource-owner directory. Both are loaded
// once at startup (from YAML or built defaults) and are immutable for the
// process lifetime.
package registry
