// Package gcp implements the GCP provider: Artifact Registry for images,
// Cloud SQL for the managed Postgres endpoint, and GKE for cluster
// credentials. API clients use Application Default Credentials and are
// created lazily so that a missing credential degrades the affected lookup
// instead of failing provider construction.
package gcp

import (
	"context"
	"fmt"
	"strings"

	artifactregistry "google.golang.org/api/artifactregistry/v1"
	container "google.golang.org/api/container/v1"
	sqladmin "google.golang.org/api/sqladmin/v1"

	"github.com/cloudlaunch/cloudlaunch/pkg/config"
	"github.com/cloudlaunch/cloudlaunch/pkg/logging"
	"github.com/cloudlaunch/cloudlaunch/pkg/registry"
	"github.com/cloudlaunch/cloudlaunch/pkg/types"
)

// Provider implements provider.Provider for GCP.
type Provider struct {
	req        *config.Request
	gcpProject string
	region     string
}

// New creates a GCP provider. The GCP project ID has no ambient lookup
// equivalent to STS, so it comes from settings (CLOUDLAUNCH_GCP_PROJECT).
func New(_ context.Context, req *config.Request, gcpProject, region string) (*Provider, error) {
	return &Provider{
		req:        req,
		gcpProject: gcpProject,
		region:     region,
	}, nil
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return "gcp"
}

// RequiredTools returns the CLIs the GCP provider shells out to.
func (p *Provider) RequiredTools() []string {
	return []string{"gcloud"}
}

// registryHost is the Artifact Registry docker host for the region.
func (p *Provider) registryHost() string {
	return fmt.Sprintf("%s-docker.pkg.dev", p.region)
}

// ResolveRegistry ensures an Artifact Registry docker repository named after
// the project exists and returns its target. Image paths below the repository
// carry the project/service structure, so one repository per project is
// enough.
func (p *Provider) ResolveRegistry(ctx context.Context) (*types.RegistryTarget, error) {
	if p.gcpProject == "" {
		return nil, fmt.Errorf("no GCP project configured: set CLOUDLAUNCH_GCP_PROJECT")
	}

	client, err := artifactregistry.NewService(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create Artifact Registry client: %w", err)
	}

	parent := fmt.Sprintf("projects/%s/locations/%s", p.gcpProject, p.region)
	repoName := fmt.Sprintf("%s/repositories/%s", parent, p.req.Project)

	_, err = client.Projects.Locations.Repositories.Get(repoName).Context(ctx).Do()
	if err != nil {
		logging.Info("creating Artifact Registry repository", "repository", p.req.Project)
		repo := &artifactregistry.Repository{
			Format:      "DOCKER",
			Description: fmt.Sprintf("Images for %s", p.req.Project),
		}
		_, err = client.Projects.Locations.Repositories.Create(parent, repo).
			RepositoryId(p.req.Project).
			Context(ctx).
			Do()
		if err != nil && !strings.Contains(err.Error(), "already exists") {
			return nil, fmt.Errorf("failed to create Artifact Registry repository: %w", err)
		}
	}

	// Image paths become HOST/GCP_PROJECT/REPOSITORY/SERVICE, matching the
	// Artifact Registry docker path layout.
	return &types.RegistryTarget{
		Provider: "gcp",
		Host:     fmt.Sprintf("%s/%s", p.registryHost(), p.gcpProject),
		Account:  p.gcpProject,
	}, nil
}

// AuthenticateRegistry configures docker with gcloud credentials for the
// regional Artifact Registry host.
func (p *Provider) AuthenticateRegistry(ctx context.Context, _ *types.RegistryTarget) error {
	_, err := registry.Run(ctx, "gcloud", "auth", "configure-docker", p.registryHost(), "--quiet")
	if err != nil {
		return fmt.Errorf("failed to configure docker for Artifact Registry: %w", err)
	}
	logging.Info("authenticated with Artifact Registry", "host", p.registryHost())
	return nil
}

// DatabaseEndpoint looks up the Cloud SQL instance for the project and
// returns its primary IP address.
func (p *Provider) DatabaseEndpoint(ctx context.Context) (string, error) {
	if p.gcpProject == "" {
		return "", fmt.Errorf("no GCP project configured: set CLOUDLAUNCH_GCP_PROJECT")
	}

	client, err := sqladmin.NewService(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to create Cloud SQL client: %w", err)
	}

	instance := p.req.DatabaseName()
	db, err := client.Instances.Get(p.gcpProject, instance).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to get Cloud SQL instance %s: %w", instance, err)
	}
	if len(db.IpAddresses) == 0 {
		return "", fmt.Errorf("Cloud SQL instance %s has no IP address yet", instance)
	}
	return db.IpAddresses[0].IpAddress, nil
}

// RefreshClusterCredentials verifies the GKE cluster exists, then refreshes
// the kubeconfig entry via gcloud, which owns the auth plugin wiring.
func (p *Provider) RefreshClusterCredentials(ctx context.Context) error {
	if p.gcpProject == "" {
		return fmt.Errorf("no GCP project configured: set CLOUDLAUNCH_GCP_PROJECT")
	}

	client, err := container.NewService(ctx)
	if err != nil {
		return fmt.Errorf("failed to create GKE client: %w", err)
	}

	cluster := p.req.ClusterName()
	name := fmt.Sprintf("projects/%s/locations/%s/clusters/%s", p.gcpProject, p.region, cluster)
	if _, err := client.Projects.Locations.Clusters.Get(name).Context(ctx).Do(); err != nil {
		return fmt.Errorf("GKE cluster %s not found: %w", cluster, err)
	}

	_, err = registry.Run(ctx, "gcloud", "container", "clusters", "get-credentials",
		cluster, "--region", p.region, "--project", p.gcpProject)
	if err != nil {
		return fmt.Errorf("failed to get GKE credentials for %s: %w", cluster, err)
	}
	logging.Info("refreshed GKE cluster credentials", "cluster", cluster)
	return nil
}

// Instructions returns post-deploy guidance for GCP.
func (p *Provider) Instructions() string {
	return fmt.Sprintf(`Next steps (GCP):
  kubectl get ingress -n %[1]s           # ingress IP
  kubectl get pods -n %[1]s              # workload status
  gcloud container clusters get-credentials %[2]s --region %[3]s
The application is reachable at the ingress IP once provisioning completes
(this can take a few minutes on GKE).`,
		p.req.Namespace(), p.req.ClusterName(), p.region)
}
