package security

import "testing"

func TestSecretsEqual(t *testing.T) {
	tests := []struct {
		name      string
		presented string
		stored    string
		want      bool
	}{
		{name: "equal", presented: "top_secret_key", stored: "top_secret_key", want: true},
		{name: "different", presented: "wrong", stored: "top_secret_key", want: false},
		{name: "prefix", presented: "top_secret", stored: "top_secret_key", want: false},
		{name: "both empty", presented: "", stored: "", want: true},
		{name: "one empty", presented: "", stored: "secret", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SecretsEqual(tt.presented, tt.stored); got != tt.want {
				t.Errorf("SecretsEqual(%q, %q) = %v, want %v", tt.presented, tt.stored, got, tt.want)
			}
		})
	}
}
