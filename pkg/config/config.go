// Package config defines the deployment request parsed from the command line
// and the process-wide settings resolved once at startup. Components receive
// these values explicitly instead of re-reading ambient CLI state mid-run.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v10"
	"gopkg.in/yaml.v3"
)

// Cloud providers accepted by the orchestrator.
const (
	ProviderAWS   = "aws"
	ProviderGCP   = "gcp"
	ProviderAzure = "azure"
)

// Deployment environments accepted by the orchestrator.
const (
	EnvDev     = "dev"
	EnvStaging = "staging"
	EnvProd    = "prod"
)

// Services built and deployed for every project.
var Services = []string{"backend", "frontend"}

// Request is the immutable description of one deployment run.
// It is validated before any external call is made.
type Request struct {
	// Cloud provider: aws, gcp, or azure
	Provider string

	// Target environment: dev, staging, or prod
	Environment string

	// Project name, used to derive registry repositories, the cluster
	// namespace ({project}-app), and managed resource names
	Project string

	// Phase skip flags
	SkipInfrastructure bool
	SkipImages         bool
	SkipApps           bool

	// Strict upgrades partial per-unit failures to a non-zero exit code
	Strict bool
}

// Validate checks the request against its enum domains.
// Invalid values are a fatal input error: nothing may run after a failure here.
func (r *Request) Validate() error {
	switch r.Provider {
	case ProviderAWS, ProviderGCP, ProviderAzure:
	default:
		return fmt.Errorf("invalid cloud provider %q: must be one of aws, gcp, azure", r.Provider)
	}

	switch r.Environment {
	case EnvDev, EnvStaging, EnvProd:
	default:
		return fmt.Errorf("invalid environment %q: must be one of dev, staging, prod", r.Environment)
	}

	if r.Project == "" {
		return fmt.Errorf("project name is required")
	}

	return nil
}

// Namespace returns the cluster namespace for the project.
func (r *Request) Namespace() string {
	return r.Project + "-app"
}

// ClusterName returns the managed cluster name for the project/environment.
func (r *Request) ClusterName() string {
	return fmt.Sprintf("%s-%s", r.Project, r.Environment)
}

// DatabaseName returns the managed database instance name.
func (r *Request) DatabaseName() string {
	return fmt.Sprintf("%s-%s-postgres", r.Project, r.Environment)
}

// Settings holds process-wide configuration resolved once at startup from
// the environment (CLOUDLAUNCH_* variables), with optional overrides from a
// cloudlaunch.yaml file next to the working directory.
type Settings struct {
	// Directory containing manifest templates
	TemplateDir string `env:"CLOUDLAUNCH_TEMPLATE_DIR" envDefault:"k8s-templates" yaml:"template_dir"`

	// Directory rendered manifests are written to
	OutputDir string `env:"CLOUDLAUNCH_OUTPUT_DIR" envDefault:"k8s-rendered" yaml:"output_dir"`

	// Directory containing the service sources (backend/, frontend/)
	SourceDir string `env:"CLOUDLAUNCH_SOURCE_DIR" envDefault:"." yaml:"source_dir"`

	// Explicit kubeconfig path; when empty, discovery falls back to
	// $KUBECONFIG, then ~/.kube/config, then in-cluster config
	Kubeconfig string `env:"CLOUDLAUNCH_KUBECONFIG" yaml:"kubeconfig"`

	// Registry used when cloud registry resolution fails
	FallbackRegistry string `env:"CLOUDLAUNCH_FALLBACK_REGISTRY" envDefault:"localhost:5000" yaml:"fallback_registry"`

	// Terraform working directory and binary
	TerraformDir string `env:"CLOUDLAUNCH_TERRAFORM_DIR" envDefault:"terraform" yaml:"terraform_dir"`
	TerraformBin string `env:"CLOUDLAUNCH_TERRAFORM_BIN" envDefault:"terraform" yaml:"terraform_bin"`

	// Secret store backend: vault, aws, or env
	SecretStore string `env:"CLOUDLAUNCH_SECRET_STORE" envDefault:"env" yaml:"secret_store"`

	// Vault connection, used when SecretStore is "vault"
	VaultAddr  string `env:"VAULT_ADDR" yaml:"vault_addr"`
	VaultToken string `env:"VAULT_TOKEN" yaml:"-"`

	// GCP project and region; GCP has no ambient account lookup equivalent
	// to STS, so these must be provided for GCP deployments
	GCPProject string `env:"CLOUDLAUNCH_GCP_PROJECT" yaml:"gcp_project"`
	GCPRegion  string `env:"CLOUDLAUNCH_GCP_REGION" envDefault:"us-central1" yaml:"gcp_region"`

	// Azure subscription and location
	AzureSubscription string `env:"AZURE_SUBSCRIPTION_ID" yaml:"azure_subscription"`
	AzureLocation     string `env:"CLOUDLAUNCH_AZURE_LOCATION" envDefault:"eastus" yaml:"azure_location"`

	// Bounded wait durations
	JobTimeout     time.Duration `env:"CLOUDLAUNCH_JOB_TIMEOUT" envDefault:"120s" yaml:"job_timeout"`
	RolloutTimeout time.Duration `env:"CLOUDLAUNCH_ROLLOUT_TIMEOUT" envDefault:"300s" yaml:"rollout_timeout"`
}

// LoadSettings resolves settings from the environment and, when present,
// merges overrides from the given YAML file. A missing file is not an error;
// an unreadable or invalid file is.
func LoadSettings(overridesFile string) (*Settings, error) {
	s := &Settings{}
	if err := env.Parse(s); err != nil {
		return nil, fmt.Errorf("failed to parse settings from environment: %w", err)
	}

	if overridesFile != "" {
		data, err := os.ReadFile(overridesFile)
		if err != nil {
			if os.IsNotExist(err) {
				return s, nil
			}
			return nil, fmt.Errorf("failed to read settings file: %w", err)
		}
		if err := yaml.Unmarshal(data, s); err != nil {
			return nil, fmt.Errorf("failed to parse settings file %s: %w", overridesFile, err)
		}
	}

	return s, nil
}
