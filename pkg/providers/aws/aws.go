// Package aws implements the AWS provider: ECR for images, RDS for the
// managed Postgres endpoint, and EKS for cluster credentials. It uses the
// AWS SDK default credential chain, so region and credentials come from the
// same ambient configuration the aws CLI uses.
package aws

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ecr"
	"github.com/aws/aws-sdk-go-v2/service/eks"
	"github.com/aws/aws-sdk-go-v2/service/rds"
	"github.com/aws/aws-sdk-go-v2/service/sts"

	"github.com/cloudlaunch/cloudlaunch/pkg/config"
	"github.com/cloudlaunch/cloudlaunch/pkg/logging"
	"github.com/cloudlaunch/cloudlaunch/pkg/registry"
	"github.com/cloudlaunch/cloudlaunch/pkg/types"
)

// Provider implements provider.Provider for AWS.
type Provider struct {
	req       *config.Request
	region    string
	stsClient *sts.Client
	ecrClient *ecr.Client
	rdsClient *rds.Client
	eksClient *eks.Client
}

// New creates an AWS provider using the SDK default credential chain
// (environment variables, shared credentials file, or IAM role).
func New(ctx context.Context, req *config.Request) (*Provider, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	if cfg.Region == "" {
		return nil, fmt.Errorf("no AWS region configured: set AWS_REGION or configure the aws CLI")
	}

	return &Provider{
		req:       req,
		region:    cfg.Region,
		stsClient: sts.NewFromConfig(cfg),
		ecrClient: ecr.NewFromConfig(cfg),
		rdsClient: rds.NewFromConfig(cfg),
		eksClient: eks.NewFromConfig(cfg),
	}, nil
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return "aws"
}

// RequiredTools returns the CLIs the AWS provider shells out to.
func (p *Provider) RequiredTools() []string {
	return []string{"aws"}
}

// ResolveRegistry resolves the account's ECR registry and ensures a
// repository exists for each service.
func (p *Provider) ResolveRegistry(ctx context.Context) (*types.RegistryTarget, error) {
	identity, err := p.stsClient.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return nil, fmt.Errorf("failed to get AWS account ID: %w", err)
	}
	accountID := awssdk.ToString(identity.Account)

	for _, service := range config.Services {
		repo := fmt.Sprintf("%s/%s", p.req.Project, service)
		if err := p.ensureRepository(ctx, repo); err != nil {
			return nil, err
		}
	}

	return &types.RegistryTarget{
		Provider: "aws",
		Host:     fmt.Sprintf("%s.dkr.ecr.%s.amazonaws.com", accountID, p.region),
		Account:  accountID,
	}, nil
}

// ensureRepository creates an ECR repository if it does not already exist.
func (p *Provider) ensureRepository(ctx context.Context, name string) error {
	_, err := p.ecrClient.CreateRepository(ctx, &ecr.CreateRepositoryInput{
		RepositoryName: awssdk.String(name),
	})
	if err != nil {
		if strings.Contains(err.Error(), "RepositoryAlreadyExistsException") {
			logging.Debug("ECR repository already exists", "repository", name)
			return nil
		}
		return fmt.Errorf("failed to create ECR repository %s: %w", name, err)
	}
	logging.Info("created ECR repository", "repository", name)
	return nil
}

// AuthenticateRegistry logs docker into ECR using a fresh authorization token.
func (p *Provider) AuthenticateRegistry(ctx context.Context, target *types.RegistryTarget) error {
	authOutput, err := p.ecrClient.GetAuthorizationToken(ctx, &ecr.GetAuthorizationTokenInput{})
	if err != nil {
		return fmt.Errorf("failed to get ECR authorization token: %w", err)
	}
	if len(authOutput.AuthorizationData) == 0 {
		return fmt.Errorf("no authorization data returned from ECR")
	}

	decoded, err := base64.StdEncoding.DecodeString(
		awssdk.ToString(authOutput.AuthorizationData[0].AuthorizationToken))
	if err != nil {
		return fmt.Errorf("failed to decode ECR authorization token: %w", err)
	}

	// Token format is "AWS:password"
	parts := strings.SplitN(string(decoded), ":", 2)
	if len(parts) != 2 {
		return fmt.Errorf("invalid ECR authorization token format")
	}

	if err := registry.DockerLogin(ctx, target.Host, parts[0], parts[1]); err != nil {
		return fmt.Errorf("failed to login to ECR: %w", err)
	}
	logging.Info("authenticated with ECR", "registry", target.Host)
	return nil
}

// DatabaseEndpoint looks up the RDS instance for the project/environment and
// returns its endpoint address.
func (p *Provider) DatabaseEndpoint(ctx context.Context) (string, error) {
	instanceID := p.req.DatabaseName()
	out, err := p.rdsClient.DescribeDBInstances(ctx, &rds.DescribeDBInstancesInput{
		DBInstanceIdentifier: awssdk.String(instanceID),
	})
	if err != nil {
		return "", fmt.Errorf("failed to describe RDS instance %s: %w", instanceID, err)
	}
	if len(out.DBInstances) == 0 || out.DBInstances[0].Endpoint == nil {
		return "", fmt.Errorf("RDS instance %s has no endpoint yet", instanceID)
	}
	return awssdk.ToString(out.DBInstances[0].Endpoint.Address), nil
}

// RefreshClusterCredentials verifies the EKS cluster exists, then refreshes
// the kubeconfig entry via the aws CLI, which owns the exec-auth plumbing.
func (p *Provider) RefreshClusterCredentials(ctx context.Context) error {
	cluster := p.req.ClusterName()
	_, err := p.eksClient.DescribeCluster(ctx, &eks.DescribeClusterInput{
		Name: awssdk.String(cluster),
	})
	if err != nil {
		return fmt.Errorf("EKS cluster %s not found: %w", cluster, err)
	}

	_, err = registry.Run(ctx, "aws", "eks", "update-kubeconfig",
		"--name", cluster, "--region", p.region)
	if err != nil {
		return fmt.Errorf("failed to update kubeconfig for %s: %w", cluster, err)
	}
	logging.Info("refreshed EKS cluster credentials", "cluster", cluster)
	return nil
}

// Instructions returns post-deploy guidance for AWS.
func (p *Provider) Instructions() string {
	return fmt.Sprintf(`Next steps (AWS):
  kubectl get ingress -n %[1]s           # load balancer hostname
  kubectl get pods -n %[1]s              # workload status
  aws eks update-kubeconfig --name %[2]s --region %[3]s
The application is reachable at the ingress load balancer hostname once
DNS propagates (this can take a few minutes).`,
		p.req.Namespace(), p.req.ClusterName(), p.region)
}
