package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestRequestValidate(t *testing.T) {
	tests := []struct {
		name        string
		req         Request
		shouldError bool
	}{
		{
			name: "valid aws dev",
			req:  Request{Provider: "aws", Environment: "dev", Project: "acme"},
		},
		{
			name: "valid gcp staging",
			req:  Request{Provider: "gcp", Environment: "staging", Project: "acme"},
		},
		{
			name: "valid azure prod",
			req:  Request{Provider: "azure", Environment: "prod", Project: "acme"},
		},
		{
			name:        "unknown provider",
			req:         Request{Provider: "digitalocean", Environment: "dev", Project: "acme"},
			shouldError: true,
		},
		{
			name:        "unknown environment",
			req:         Request{Provider: "aws", Environment: "production", Project: "acme"},
			shouldError: true,
		},
		{
			name:        "empty provider",
			req:         Request{Environment: "dev", Project: "acme"},
			shouldError: true,
		},
		{
			name:        "missing project",
			req:         Request{Provider: "aws", Environment: "dev"},
			shouldError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.shouldError && err == nil {
				t.Errorf("expected error, got nil")
			}
			if !tt.shouldError && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestRequestDerivedNames(t *testing.T) {
	req := &Request{Provider: "aws", Environment: "staging", Project: "acme"}

	if got := req.Namespace(); got != "acme-app" {
		t.Errorf("Namespace() = %q, want %q", got, "acme-app")
	}
	if got := req.ClusterName(); got != "acme-staging" {
		t.Errorf("ClusterName() = %q, want %q", got, "acme-staging")
	}
	if got := req.DatabaseName(); got != "acme-staging-postgres" {
		t.Errorf("DatabaseName() = %q, want %q", got, "acme-staging-postgres")
	}
}

func TestLoadSettingsDefaults(t *testing.T) {
	s, err := LoadSettings("")
	if err != nil {
		t.Fatalf("LoadSettings() error: %v", err)
	}

	if s.TemplateDir != "k8s-templates" {
		t.Errorf("TemplateDir = %q, want %q", s.TemplateDir, "k8s-templates")
	}
	if s.OutputDir != "k8s-rendered" {
		t.Errorf("OutputDir = %q, want %q", s.OutputDir, "k8s-rendered")
	}
	if s.FallbackRegistry != "localhost:5000" {
		t.Errorf("FallbackRegistry = %q, want %q", s.FallbackRegistry, "localhost:5000")
	}
	if s.SecretStore != "env" {
		t.Errorf("SecretStore = %q, want %q", s.SecretStore, "env")
	}
	if s.JobTimeout != 120*time.Second {
		t.Errorf("JobTimeout = %v, want 120s", s.JobTimeout)
	}
	if s.RolloutTimeout != 300*time.Second {
		t.Errorf("RolloutTimeout = %v, want 300s", s.RolloutTimeout)
	}
}

func TestLoadSettingsOverridesFile(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "cloudlaunch.yaml")
	content := `template_dir: custom-templates
fallback_registry: registry.internal:5000
gcp_project: my-project
`
	if err := os.WriteFile(file, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	s, err := LoadSettings(file)
	if err != nil {
		t.Fatalf("LoadSettings() error: %v", err)
	}

	if s.TemplateDir != "custom-templates" {
		t.Errorf("TemplateDir = %q, want override applied", s.TemplateDir)
	}
	if s.FallbackRegistry != "registry.internal:5000" {
		t.Errorf("FallbackRegistry = %q, want override applied", s.FallbackRegistry)
	}
	if s.GCPProject != "my-project" {
		t.Errorf("GCPProject = %q, want %q", s.GCPProject, "my-project")
	}
	// Untouched keys keep their environment defaults.
	if s.OutputDir != "k8s-rendered" {
		t.Errorf("OutputDir = %q, want default preserved", s.OutputDir)
	}
}

func TestLoadSettingsMissingFile(t *testing.T) {
	s, err := LoadSettings(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if err != nil {
		t.Fatalf("missing overrides file should not error, got: %v", err)
	}
	if s == nil {
		t.Fatal("expected settings, got nil")
	}
}

func TestLoadSettingsInvalidFile(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "cloudlaunch.yaml")
	if err := os.WriteFile(file, []byte("template_dir: [unclosed"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := LoadSettings(file); err == nil {
		t.Error("expected error for invalid YAML, got nil")
	}
}
