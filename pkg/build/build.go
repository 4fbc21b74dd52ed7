// Package build produces the pushed service images for a deployment.
// It prefers docker buildx (single build-and-push step with an explicit
// target platform) and falls back to plain docker build plus tag and push.
package build

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/cloudlaunch/cloudlaunch/pkg/config"
	"github.com/cloudlaunch/cloudlaunch/pkg/logging"
	"github.com/cloudlaunch/cloudlaunch/pkg/registry"
	"github.com/cloudlaunch/cloudlaunch/pkg/types"
)

// Builder builds and pushes the service images.
type Builder struct {
	req       *config.Request
	target    *types.RegistryTarget
	sourceDir string
}

// New creates a builder pushing to the given registry target. Service
// sources are expected at {sourceDir}/{service}/Dockerfile.
func New(req *config.Request, target *types.RegistryTarget, sourceDir string) *Builder {
	return &Builder{req: req, target: target, sourceDir: sourceDir}
}

// Platform returns the docker target platform for the environment: the
// deployment target architecture for staging and prod, the host architecture
// for dev so local clusters run natively built images.
func (b *Builder) Platform() string {
	if b.req.Environment == config.EnvDev {
		return "linux/" + NormalizeArch(runtime.GOARCH)
	}
	return "linux/amd64"
}

// NormalizeArch maps machine-reported architecture aliases to the names
// docker platforms use.
func NormalizeArch(arch string) string {
	switch arch {
	case "x86_64":
		return "amd64"
	case "aarch64":
		return "arm64"
	default:
		return arch
	}
}

// Run builds and pushes every service image. A service with no source
// directory or Dockerfile is skipped with a warning; a build failure is
// recorded and the remaining services are still attempted. After the batch
// it verifies each pushed image best-effort.
func (b *Builder) Run(ctx context.Context) *types.DeploymentOutcome {
	outcome := &types.DeploymentOutcome{}
	platform := b.Platform()
	buildx := registry.BuildxAvailable(ctx)
	logging.Info("building images", "platform", platform, "buildx", buildx, "registry", b.target.Host)

	built := make([]string, 0, len(config.Services))
	for _, service := range config.Services {
		srcDir := filepath.Join(b.sourceDir, service)
		dockerfile := filepath.Join(srcDir, "Dockerfile")
		if _, err := os.Stat(dockerfile); err != nil {
			outcome.Warnf("service %s has no Dockerfile at %s, skipping build", service, dockerfile)
			logging.Warn("skipping service build", "service", service, "dockerfile", dockerfile)
			continue
		}

		if err := b.buildService(ctx, service, srcDir, platform, buildx); err != nil {
			outcome.Warnf("failed to build %s: %v", service, err)
			logging.Error("service build failed", "service", service, "error", err.Error())
			continue
		}
		built = append(built, service)
	}

	// Best-effort existence check against the registry. The local fallback
	// registry has no reliable HEAD endpoint guarantee, so skip it there.
	if !b.target.Local() {
		for _, service := range built {
			image := b.target.Image(b.req.Project, service, b.req.Environment)
			if err := registry.Verify(ctx, image); err != nil {
				outcome.Warnf("could not verify pushed image %s: %v", image, err)
				logging.Warn("image verification failed", "image", image, "error", err.Error())
			}
		}
	}

	return outcome
}

// buildService builds one service and pushes both the :latest and
// :{environment} tags.
func (b *Builder) buildService(ctx context.Context, service, srcDir, platform string, buildx bool) error {
	latest := b.target.Image(b.req.Project, service, "latest")
	envTag := b.target.Image(b.req.Project, service, b.req.Environment)
	logging.Info("building service", "service", service, "image", envTag)

	if buildx {
		_, err := registry.Run(ctx, "docker", "buildx", "build",
			"--platform", platform,
			"--tag", latest,
			"--tag", envTag,
			"--push",
			srcDir)
		if err != nil {
			return fmt.Errorf("buildx build failed: %w", err)
		}
		return nil
	}

	// Fallback: single-platform build, then tag and push each reference.
	if _, err := registry.Run(ctx, "docker", "build", "--tag", latest, srcDir); err != nil {
		return fmt.Errorf("docker build failed: %w", err)
	}
	if err := registry.DockerTag(ctx, latest, envTag); err != nil {
		return err
	}
	if err := registry.DockerPush(ctx, latest); err != nil {
		return err
	}
	if err := registry.DockerPush(ctx, envTag); err != nil {
		return err
	}
	return nil
}
