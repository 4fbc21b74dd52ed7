package secrets

import (
	"context"
	"testing"

	"github.com/cloudlaunch/cloudlaunch/pkg/config"
)

func TestCredentialPath(t *testing.T) {
	req := &config.Request{Provider: "aws", Environment: "staging", Project: "acme"}
	if got := CredentialPath(req); got != "acme/staging/database" {
		t.Errorf("CredentialPath() = %q, want %q", got, "acme/staging/database")
	}
}

func TestNewUnknownBackend(t *testing.T) {
	_, err := New(context.Background(), &config.Settings{SecretStore: "consul"})
	if err == nil {
		t.Error("expected error for unknown backend")
	}
}

func TestNewVaultRequiresConnection(t *testing.T) {
	tests := []struct {
		name     string
		settings config.Settings
	}{
		{
			name:     "missing address",
			settings: config.Settings{SecretStore: "vault", VaultToken: "hvs.test"},
		},
		{
			name:     "missing token",
			settings: config.Settings{SecretStore: "vault", VaultAddr: "http://127.0.0.1:8200"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(context.Background(), &tt.settings); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestEnvStore(t *testing.T) {
	store, err := New(context.Background(), &config.Settings{SecretStore: "env"})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	if store.Name() != "env" {
		t.Errorf("Name() = %q, want %q", store.Name(), "env")
	}

	// Put drops the value with a warning but never fails.
	if err := store.Put(context.Background(), "acme/dev/database", "s3cret"); err != nil {
		t.Errorf("Put() error: %v", err)
	}

	t.Setenv("CLOUDLAUNCH_DB_PASSWORD", "")
	if _, err := store.Get(context.Background(), "acme/dev/database"); err == nil {
		t.Error("Get() without CLOUDLAUNCH_DB_PASSWORD should error")
	}

	t.Setenv("CLOUDLAUNCH_DB_PASSWORD", "from-env")
	got, err := store.Get(context.Background(), "acme/dev/database")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if got != "from-env" {
		t.Errorf("Get() = %q, want %q", got, "from-env")
	}
}

func TestVaultAPIPath(t *testing.T) {
	got := apiPath("acme/staging/database")
	want := "secret/data/acme/staging/database"
	if got != want {
		t.Errorf("apiPath() = %q, want %q", got, want)
	}
}
