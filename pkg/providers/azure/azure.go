// Package azure implements the Azure provider: ACR for images, Azure
// Database for PostgreSQL (flexible server) for the managed database
// endpoint, and AKS for cluster credentials. Authentication uses the default
// Azure credential chain (environment, managed identity, az CLI).
package azure

import (
	"context"
	"fmt"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/containerregistry/armcontainerregistry"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/postgresql/armpostgresqlflexibleservers/v4"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/resources/armresources"

	"github.com/cloudlaunch/cloudlaunch/pkg/config"
	"github.com/cloudlaunch/cloudlaunch/pkg/logging"
	"github.com/cloudlaunch/cloudlaunch/pkg/registry"
	"github.com/cloudlaunch/cloudlaunch/pkg/types"
)

// Provider implements provider.Provider for Azure.
type Provider struct {
	req          *config.Request
	subscription string
	location     string
	cred         azcore.TokenCredential

	// admin credentials cached between ResolveRegistry and AuthenticateRegistry
	adminUser     string
	adminPassword string
}

// New creates an Azure provider using the default credential chain.
func New(req *config.Request, subscription, location string) (*Provider, error) {
	cred, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create Azure credential: %w", err)
	}
	return &Provider{
		req:          req,
		subscription: subscription,
		location:     location,
		cred:         cred,
	}, nil
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return "azure"
}

// RequiredTools returns the CLIs the Azure provider shells out to.
func (p *Provider) RequiredTools() []string {
	return []string{"az"}
}

// resourceGroup is the resource group holding the project's infrastructure,
// matching the naming the provisioning templates use.
func (p *Provider) resourceGroup() string {
	return fmt.Sprintf("%s-%s-rg", p.req.Project, p.req.Environment)
}

// registryName is the ACR registry name. ACR names must be alphanumeric,
// so hyphens in the project name are stripped.
func (p *Provider) registryName() string {
	name := strings.ReplaceAll(p.req.Project, "-", "") + p.req.Environment
	return strings.ReplaceAll(name, "_", "")
}

// ResolveRegistry verifies the resource group exists, ensures the ACR
// registry, and caches its admin credentials for AuthenticateRegistry.
func (p *Provider) ResolveRegistry(ctx context.Context) (*types.RegistryTarget, error) {
	if p.subscription == "" {
		return nil, fmt.Errorf("no Azure subscription configured: set AZURE_SUBSCRIPTION_ID")
	}

	rgClient, err := armresources.NewResourceGroupsClient(p.subscription, p.cred, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource groups client: %w", err)
	}
	if _, err := rgClient.Get(ctx, p.resourceGroup(), nil); err != nil {
		return nil, fmt.Errorf("resource group %s not found (run infrastructure provisioning first): %w",
			p.resourceGroup(), err)
	}

	client, err := armcontainerregistry.NewRegistriesClient(p.subscription, p.cred, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create ACR client: %w", err)
	}

	var acr *armcontainerregistry.Registry
	getResp, err := client.Get(ctx, p.resourceGroup(), p.registryName(), nil)
	if err != nil {
		logging.Info("creating ACR registry", "registry", p.registryName())
		poller, err := client.BeginCreate(ctx, p.resourceGroup(), p.registryName(),
			armcontainerregistry.Registry{
				Location: to.Ptr(p.location),
				SKU: &armcontainerregistry.SKU{
					Name: to.Ptr(armcontainerregistry.SKUNameBasic),
				},
				Properties: &armcontainerregistry.RegistryProperties{
					AdminUserEnabled: to.Ptr(true),
				},
			}, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to begin creating ACR registry: %w", err)
		}
		resp, err := poller.PollUntilDone(ctx, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create ACR registry: %w", err)
		}
		acr = &resp.Registry
	} else {
		acr = &getResp.Registry
	}

	if acr.Properties == nil || acr.Properties.LoginServer == nil {
		return nil, fmt.Errorf("ACR registry %s has no login server", p.registryName())
	}
	loginServer := *acr.Properties.LoginServer

	creds, err := client.ListCredentials(ctx, p.resourceGroup(), p.registryName(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get ACR credentials: %w", err)
	}
	if creds.Username == nil || len(creds.Passwords) == 0 || creds.Passwords[0].Value == nil {
		return nil, fmt.Errorf("no admin credentials available for ACR registry %s", p.registryName())
	}
	p.adminUser = *creds.Username
	p.adminPassword = *creds.Passwords[0].Value

	return &types.RegistryTarget{
		Provider: "azure",
		Host:     loginServer,
		Account:  p.subscription,
	}, nil
}

// AuthenticateRegistry logs docker into ACR with the cached admin
// credentials. ResolveRegistry must have succeeded first.
func (p *Provider) AuthenticateRegistry(ctx context.Context, target *types.RegistryTarget) error {
	if p.adminUser == "" {
		return fmt.Errorf("no ACR credentials cached: registry resolution did not run")
	}
	if err := registry.DockerLogin(ctx, target.Host, p.adminUser, p.adminPassword); err != nil {
		return fmt.Errorf("failed to login to ACR: %w", err)
	}
	logging.Info("authenticated with ACR", "registry", target.Host)
	return nil
}

// DatabaseEndpoint looks up the PostgreSQL flexible server and returns its
// fully qualified domain name.
func (p *Provider) DatabaseEndpoint(ctx context.Context) (string, error) {
	if p.subscription == "" {
		return "", fmt.Errorf("no Azure subscription configured: set AZURE_SUBSCRIPTION_ID")
	}

	client, err := armpostgresqlflexibleservers.NewServersClient(p.subscription, p.cred, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create PostgreSQL client: %w", err)
	}

	server := p.req.DatabaseName()
	resp, err := client.Get(ctx, p.resourceGroup(), server, nil)
	if err != nil {
		return "", fmt.Errorf("failed to get PostgreSQL server %s: %w", server, err)
	}
	if resp.Properties == nil || resp.Properties.FullyQualifiedDomainName == nil {
		return "", fmt.Errorf("PostgreSQL server %s has no endpoint yet", server)
	}
	return *resp.Properties.FullyQualifiedDomainName, nil
}

// RefreshClusterCredentials refreshes the kubeconfig entry for the AKS
// cluster via the az CLI.
func (p *Provider) RefreshClusterCredentials(ctx context.Context) error {
	cluster := p.req.ClusterName()
	_, err := registry.Run(ctx, "az", "aks", "get-credentials",
		"--resource-group", p.resourceGroup(),
		"--name", cluster,
		"--overwrite-existing")
	if err != nil {
		return fmt.Errorf("failed to get AKS credentials for %s: %w", cluster, err)
	}
	logging.Info("refreshed AKS cluster credentials", "cluster", cluster)
	return nil
}

// Instructions returns post-deploy guidance for Azure.
func (p *Provider) Instructions() string {
	return fmt.Sprintf(`Next steps (Azure):
  kubectl get ingress -n %[1]s           # ingress IP
  kubectl get pods -n %[1]s              # workload status
  az aks get-credentials --resource-group %[2]s --name %[3]s
The application is reachable at the ingress IP once the load balancer is
provisioned.`,
		p.req.Namespace(), p.resourceGroup(), p.req.ClusterName())
}
