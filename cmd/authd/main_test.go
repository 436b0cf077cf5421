package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNewRootCommand_Flags(t *testing.T) {
	cmd := newRootCommand()

	if err := cmd.ParseFlags([]string{"--listen", ":9999", "--trust-proxy", "--code-ttl", "30"}); err != nil {
		t.Fatalf("ParseFlags() error = %v", err)
	}

	if got, _ := cmd.Flags().GetString("listen"); got != ":9999" {
		t.Errorf("listen = %q, want %q", got, ":9999")
	}
	if got, _ := cmd.Flags().GetBool("trust-proxy"); !got {
		t.Error("trust-proxy = false, want true")
	}
	if got, _ := cmd.Flags().GetInt64("code-ttl"); got != 30 {
		t.Errorf("code-ttl = %d, want 30", got)
	}
}

func TestLoadRegistry(t *testing.T) {
	t.Run("built-in registry", func(t *testing.T) {
		reg, dir, err := loadRegistry("")
		if err != nil {
			t.Fatalf("loadRegistry() error = %v", err)
		}
		if reg.Len() != 3 {
			t.Errorf("Len() = %d, want 3", reg.Len())
		}
		if !dir.Authenticate("admin", "admin") {
			t.Error("built-in admin user missing")
		}
	})

	t.Run("yaml file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "registry.yaml")
		data := []byte(`clients:
  - client_id: acme
    client_secret: sesame
    redirect_uris:
      - http://localhost:9000/cb
users:
  - username: alice
    password: wonder
`)
		if err := os.WriteFile(path, data, 0o600); err != nil {
			t.Fatal(err)
		}

		reg, dir, err := loadRegistry(path)
		if err != nil {
			t.Fatalf("loadRegistry() error = %v", err)
		}
		if _, ok := reg.Lookup("acme"); !ok {
			t.Error("acme client missing")
		}
		if !dir.Authenticate("alice", "wonder") {
			t.Error("alice cannot authenticate")
		}
	})

	t.Run("missing file", func(t *testing.T) {
		if _, _, err := loadRegistry("/does/not/exist.yaml"); err == nil {
			t.Error("expected error for missing file")
		}
	})
}
