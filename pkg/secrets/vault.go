package secrets

import (
	"context"
	"fmt"

	vault "github.com/hashicorp/vault/api"
)

// vaultStore reads and writes credentials in Vault's KV v2 secrets engine
// under the "secret" mount. KV v2 nests payloads under "data" on both read
// and write, and the API path carries a "/data/" segment after the mount.
type vaultStore struct {
	client *vault.Client
}

func newVaultStore(addr, token string) (*vaultStore, error) {
	if addr == "" {
		return nil, fmt.Errorf("vault address is required (set VAULT_ADDR)")
	}
	if token == "" {
		return nil, fmt.Errorf("vault token is required (set VAULT_TOKEN)")
	}

	vaultConfig := vault.DefaultConfig()
	vaultConfig.Address = addr

	client, err := vault.NewClient(vaultConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault client: %w", err)
	}
	client.SetToken(token)

	return &vaultStore{client: client}, nil
}

func (s *vaultStore) Name() string { return "vault" }

// apiPath maps a logical path like "myapp/staging/database" to the KV v2
// API path "secret/data/myapp/staging/database".
func apiPath(path string) string {
	return "secret/data/" + path
}

func (s *vaultStore) Put(ctx context.Context, path, value string) error {
	payload := map[string]interface{}{
		"data": map[string]interface{}{
			"password": value,
		},
	}
	if _, err := s.client.Logical().WriteWithContext(ctx, apiPath(path), payload); err != nil {
		return fmt.Errorf("failed to write secret at %s: %w", path, err)
	}
	return nil
}

func (s *vaultStore) Get(ctx context.Context, path string) (string, error) {
	secret, err := s.client.Logical().ReadWithContext(ctx, apiPath(path))
	if err != nil {
		return "", fmt.Errorf("failed to read secret at %s: %w", path, err)
	}
	if secret == nil {
		return "", fmt.Errorf("secret not found at path: %s", path)
	}

	data, ok := secret.Data["data"].(map[string]interface{})
	if !ok {
		return "", fmt.Errorf("unexpected secret format at path: %s", path)
	}
	value, ok := data["password"].(string)
	if !ok {
		return "", fmt.Errorf("key password not found in secret at path: %s", path)
	}
	return value, nil
}
