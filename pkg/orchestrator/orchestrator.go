// Package orchestrator drives a deployment run through its phases:
// infrastructure provisioning, manifest customization, image builds, and the
// application rollout. Each phase can be skipped independently; a skipped
// phase is logged and the run assumes its outputs already exist.
//
// Failures split two ways. Fatal errors (invalid input, missing tools,
// unreachable cluster, failed infrastructure) abort the run and are returned
// from Run. Per-unit failures inside a phase (one image, one manifest group,
// one unready service) are recorded in the outcome and the run continues.
package orchestrator

import (
	"context"
	"fmt"
	"os/exec"
	"time"

	"github.com/cloudlaunch/cloudlaunch/pkg/build"
	"github.com/cloudlaunch/cloudlaunch/pkg/config"
	"github.com/cloudlaunch/cloudlaunch/pkg/customize"
	"github.com/cloudlaunch/cloudlaunch/pkg/deploy"
	"github.com/cloudlaunch/cloudlaunch/pkg/logging"
	"github.com/cloudlaunch/cloudlaunch/pkg/provider"
	"github.com/cloudlaunch/cloudlaunch/pkg/registry"
	"github.com/cloudlaunch/cloudlaunch/pkg/secrets"
	"github.com/cloudlaunch/cloudlaunch/pkg/types"
)

// Orchestrator runs one deployment request end to end.
type Orchestrator struct {
	req      *config.Request
	settings *config.Settings
	provider provider.Provider
	store    secrets.Store
}

// New resolves the cloud provider and secret store for the request.
// The request must already be validated.
func New(ctx context.Context, req *config.Request, settings *config.Settings) (*Orchestrator, error) {
	p, err := provider.Factory(ctx, req, settings)
	if err != nil {
		return nil, err
	}

	store, err := secrets.New(ctx, settings)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize secret store: %w", err)
	}

	return &Orchestrator{
		req:      req,
		settings: settings,
		provider: p,
		store:    store,
	}, nil
}

// Instructions returns the provider's post-deploy guidance. It is printed at
// the end of every run, including degraded ones.
func (o *Orchestrator) Instructions() string {
	return o.provider.Instructions()
}

// Run executes the phases in order and returns the accumulated outcome.
// A non-nil error is fatal; the outcome is still returned so the caller can
// report whatever progress was made.
func (o *Orchestrator) Run(ctx context.Context) (*types.DeploymentOutcome, error) {
	start := time.Now()
	outcome := &types.DeploymentOutcome{}

	logging.Info("starting deployment",
		"provider", o.req.Provider,
		"environment", o.req.Environment,
		"project", o.req.Project)

	if err := o.checkTools(); err != nil {
		return outcome, err
	}

	if o.req.SkipInfrastructure {
		logging.Info("skipping infrastructure phase")
	} else if err := o.applyInfrastructure(ctx); err != nil {
		return outcome, fmt.Errorf("infrastructure provisioning failed: %w", err)
	}

	target := o.resolveRegistry(ctx, outcome)
	if err := o.authenticateRegistry(ctx, target, outcome); err != nil {
		return outcome, err
	}

	dbEndpoint := o.resolveDatabase(ctx, outcome)

	if err := o.customizeTemplates(ctx, target, dbEndpoint, outcome); err != nil {
		return outcome, err
	}

	if o.req.SkipImages {
		logging.Info("skipping image build phase")
	} else {
		outcome.Merge(build.New(o.req, target, o.settings.SourceDir).Run(ctx))
	}

	if o.req.SkipApps {
		logging.Info("skipping application deployment phase")
	} else if err := o.deployApplications(ctx, outcome); err != nil {
		return outcome, err
	}

	outcome.Elapsed = time.Since(start)
	logging.Info("deployment finished",
		"elapsed", outcome.Elapsed.Round(time.Second).String(),
		"degraded", outcome.Degraded())
	return outcome, nil
}

// authenticateRegistry logs the docker daemon into the resolved registry.
// The local fallback needs no authentication. A failure is fatal only when
// the build phase will run and needs push access; on a skip-images run the
// images are assumed already pushed and the failure degrades to a warning.
func (o *Orchestrator) authenticateRegistry(ctx context.Context, target *types.RegistryTarget,
	outcome *types.DeploymentOutcome) error {

	if target.Local() {
		return nil
	}

	err := o.provider.AuthenticateRegistry(ctx, target)
	if err == nil {
		return nil
	}
	if !o.req.SkipImages {
		return fmt.Errorf("registry authentication failed: %w", err)
	}

	outcome.Warnf("registry authentication failed, assuming images already pushed: %v", err)
	logging.Warn("registry authentication failed, continuing", "error", err.Error())
	return nil
}

// requiredTools returns the deduplicated CLI binaries this run shells out
// to: the provider CLI always (cluster credential refresh needs it), docker
// only when images are built, terraform only when infrastructure is
// provisioned.
func (o *Orchestrator) requiredTools() []string {
	providerTools := o.provider.RequiredTools()
	tools := make([]string, 0, len(providerTools)+2)
	if !o.req.SkipImages {
		tools = append(tools, "docker")
	}
	tools = append(tools, providerTools...)
	if !o.req.SkipInfrastructure {
		tools = append(tools, o.settings.TerraformBin)
	}

	seen := make(map[string]bool, len(tools))
	unique := make([]string, 0, len(tools))
	for _, tool := range tools {
		if seen[tool] {
			continue
		}
		seen[tool] = true
		unique = append(unique, tool)
	}
	return unique
}

// checkTools verifies that every CLI binary the run shells out to is on PATH
// before anything external happens. Missing tools are fatal.
func (o *Orchestrator) checkTools() error {
	var missing []string
	for _, tool := range o.requiredTools() {
		if _, err := exec.LookPath(tool); err != nil {
			missing = append(missing, tool)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("required tools not found on PATH: %v", missing)
	}
	return nil
}

// resolveRegistry asks the provider for the project registry, falling back to
// the local registry when resolution fails. The fallback keeps dev loops
// working without cloud credentials.
func (o *Orchestrator) resolveRegistry(ctx context.Context, outcome *types.DeploymentOutcome) *types.RegistryTarget {
	target, err := o.provider.ResolveRegistry(ctx)
	if err != nil {
		outcome.Warnf("registry resolution failed, using fallback %s: %v", o.settings.FallbackRegistry, err)
		logging.Warn("registry resolution failed, using fallback",
			"fallback", o.settings.FallbackRegistry, "error", err.Error())
		return registry.LocalTarget(o.settings.FallbackRegistry)
	}
	logging.Info("resolved container registry", "host", target.Host)
	return target
}

// resolveDatabase asks the provider for the managed database endpoint,
// falling back to the in-cluster Postgres service DNS name when the lookup
// fails. The rendered manifests then point at the in-cluster database that
// the database manifest group deploys.
func (o *Orchestrator) resolveDatabase(ctx context.Context, outcome *types.DeploymentOutcome) string {
	endpoint, err := o.provider.DatabaseEndpoint(ctx)
	if err != nil {
		fallback := customize.FallbackDatabaseEndpoint(o.req)
		outcome.Warnf("database endpoint lookup failed, using in-cluster fallback %s: %v", fallback, err)
		logging.Warn("database endpoint lookup failed, using fallback",
			"fallback", fallback, "error", err.Error())
		return fallback
	}
	logging.Info("resolved database endpoint", "endpoint", endpoint)
	return endpoint
}

// customizeTemplates renders the manifest templates for this run and persists
// the generated database credential. Rendering failures are fatal because
// every later phase consumes the rendered output; a secret store write
// failure is a warning because the credential is already in the rendered
// secret manifest.
func (o *Orchestrator) customizeTemplates(ctx context.Context, target *types.RegistryTarget,
	dbEndpoint string, outcome *types.DeploymentOutcome) error {

	c := customize.New(o.req, target.Host, dbEndpoint, o.settings.TemplateDir, o.settings.OutputDir)
	result, err := c.Run()
	if err != nil {
		return fmt.Errorf("template customization failed: %w", err)
	}
	for _, w := range result.Warnings {
		outcome.Warnf("%s", w)
	}

	if result.Password != "" {
		path := secrets.CredentialPath(o.req)
		if err := o.store.Put(ctx, path, result.Password); err != nil {
			outcome.Warnf("failed to store database credential in %s store: %v", o.store.Name(), err)
			logging.Warn("failed to store database credential",
				"store", o.store.Name(), "error", err.Error())
		} else {
			logging.Info("stored database credential", "store", o.store.Name(), "path", path)
		}
	}
	return nil
}

// deployApplications discovers the rendered manifest set, establishes cluster
// access, and rolls the applications out.
func (o *Orchestrator) deployApplications(ctx context.Context, outcome *types.DeploymentOutcome) error {
	set, err := customize.Discover(o.settings.OutputDir)
	if err != nil {
		return fmt.Errorf("failed to discover rendered manifests: %w", err)
	}

	client, err := deploy.Preflight(ctx, o.provider, o.settings.Kubeconfig, outcome)
	if err != nil {
		return err
	}

	d := deploy.New(client, o.req, set, o.settings.OutputDir,
		o.settings.JobTimeout, o.settings.RolloutTimeout)
	outcome.Merge(d.Run(ctx))
	return nil
}
