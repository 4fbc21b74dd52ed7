// Package secrets stores the generated database credential in a secret
// backend so later runs and operators can retrieve it. Backends: HashiCorp
// Vault (KV v2), AWS Secrets Manager, and an environment no-op fallback for
// setups with no secret store at all.
package secrets

import (
	"context"
	"fmt"
	"os"

	"github.com/cloudlaunch/cloudlaunch/pkg/config"
	"github.com/cloudlaunch/cloudlaunch/pkg/logging"
)

// Store is the minimal secret store surface the orchestrator needs.
type Store interface {
	// Name identifies the backend in logs
	Name() string

	// Put writes a secret value under the given path
	Put(ctx context.Context, path, value string) error

	// Get reads a secret value from the given path
	Get(ctx context.Context, path string) (string, error)
}

// CredentialPath returns the store path for a project's database credential.
func CredentialPath(req *config.Request) string {
	return fmt.Sprintf("%s/%s/database", req.Project, req.Environment)
}

// New creates the store selected by settings: "vault", "aws", or "env".
func New(ctx context.Context, settings *config.Settings) (Store, error) {
	switch settings.SecretStore {
	case "vault":
		return newVaultStore(settings.VaultAddr, settings.VaultToken)
	case "aws":
		return newAWSStore(ctx)
	case "env":
		return &envStore{}, nil
	default:
		return nil, fmt.Errorf("unknown secret store backend: %s", settings.SecretStore)
	}
}

// envStore is the fallback when no secret store is configured. Writes warn
// and are dropped; reads come from CLOUDLAUNCH_DB_PASSWORD.
type envStore struct{}

func (s *envStore) Name() string { return "env" }

func (s *envStore) Put(_ context.Context, path, _ string) error {
	logging.Warn("no secret store configured, generated credential not persisted", "path", path)
	return nil
}

func (s *envStore) Get(_ context.Context, path string) (string, error) {
	if v := os.Getenv("CLOUDLAUNCH_DB_PASSWORD"); v != "" {
		return v, nil
	}
	return "", fmt.Errorf("no secret store configured and CLOUDLAUNCH_DB_PASSWORD not set, cannot read %s", path)
}
