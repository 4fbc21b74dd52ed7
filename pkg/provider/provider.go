// Package provider defines the interface each cloud provider implements.
// The orchestrator resolves a provider once at startup and threads it through
// the customizer, builder, and deployer, so cloud-specific behavior lives in
// one place per cloud.
package provider

import (
	"context"
	"fmt"

	"github.com/cloudlaunch/cloudlaunch/pkg/config"
	"github.com/cloudlaunch/cloudlaunch/pkg/providers/aws"
	"github.com/cloudlaunch/cloudlaunch/pkg/providers/azure"
	"github.com/cloudlaunch/cloudlaunch/pkg/providers/gcp"
	"github.com/cloudlaunch/cloudlaunch/pkg/types"
)

// Provider is the per-cloud integration surface.
//
// ResolveRegistry and DatabaseEndpoint are lookups whose failures the caller
// degrades to fallbacks (local registry, in-cluster database DNS) rather than
// aborting the run. AuthenticateRegistry failure is fatal only when images
// will be built and pushed; a deploy-only run degrades it to a warning.
// RefreshClusterCredentials failure is a warning: the run continues with
// whatever kubeconfig already exists.
type Provider interface {
	// Name returns the provider name (aws, gcp, azure)
	Name() string

	// ResolveRegistry resolves the container registry for the project,
	// creating per-service repositories where the provider requires them
	ResolveRegistry(ctx context.Context) (*types.RegistryTarget, error)

	// AuthenticateRegistry logs the local docker daemon into the registry
	AuthenticateRegistry(ctx context.Context, target *types.RegistryTarget) error

	// DatabaseEndpoint looks up the managed Postgres endpoint for the
	// project/environment
	DatabaseEndpoint(ctx context.Context) (string, error)

	// RefreshClusterCredentials refreshes the kubeconfig entry for the
	// managed cluster via the provider CLI
	RefreshClusterCredentials(ctx context.Context) error

	// RequiredTools returns the CLI binaries this provider shells out to
	RequiredTools() []string

	// Instructions returns post-deploy guidance printed at the end of a run
	Instructions() string
}

// Factory creates the provider for the request. The request must already be
// validated; an unknown provider here indicates a programming error upstream.
func Factory(ctx context.Context, req *config.Request, settings *config.Settings) (Provider, error) {
	switch req.Provider {
	case config.ProviderAWS:
		return aws.New(ctx, req)
	case config.ProviderGCP:
		return gcp.New(ctx, req, settings.GCPProject, settings.GCPRegion)
	case config.ProviderAzure:
		return azure.New(req, settings.AzureSubscription, settings.AzureLocation)
	default:
		return nil, fmt.Errorf("unknown provider: %s", req.Provider)
	}
}
