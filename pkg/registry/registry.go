// Package registry provides the docker process helpers shared by the cloud
// providers and the image builder, plus best-effort verification that a
// pushed image actually exists in its registry.
package registry

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/google/go-containerregistry/pkg/authn"
	"github.com/google/go-containerregistry/pkg/name"
	"github.com/google/go-containerregistry/pkg/v1/remote"

	"github.com/cloudlaunch/cloudlaunch/pkg/logging"
	"github.com/cloudlaunch/cloudlaunch/pkg/types"
)

// LocalTarget returns the fallback registry target used when cloud registry
// resolution fails. Pushing to it requires no authentication, which keeps
// fully self-contained dev deployments working without cloud credentials.
func LocalTarget(host string) *types.RegistryTarget {
	return &types.RegistryTarget{Provider: "local", Host: host}
}

// Run executes a command and returns its trimmed combined output.
// The output is included in the error so operators see what the tool said.
func Run(ctx context.Context, bin string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, bin, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("%s %s failed: %w\noutput: %s",
			bin, strings.Join(args, " "), err, logging.Sanitize(string(output)))
	}
	return strings.TrimSpace(string(output)), nil
}

// DockerLogin logs the local docker daemon into a registry host.
// The password goes via stdin so it never appears in the process table.
func DockerLogin(ctx context.Context, host, username, password string) error {
	cmd := exec.CommandContext(ctx, "docker", "login", "--username", username, "--password-stdin", host)
	cmd.Stdin = strings.NewReader(password)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("docker login to %s failed: %w\noutput: %s",
			host, err, logging.Sanitize(string(output)))
	}
	return nil
}

// DockerTag tags a local image.
func DockerTag(ctx context.Context, source, target string) error {
	logging.Debug("tagging image", "source", source, "target", target)
	_, err := Run(ctx, "docker", "tag", source, target)
	return err
}

// DockerPush pushes an image to its registry.
func DockerPush(ctx context.Context, image string) error {
	logging.Info("pushing image", "image", image)
	_, err := Run(ctx, "docker", "push", image)
	return err
}

// BuildxAvailable reports whether the docker buildx plugin is installed.
// Buildx is preferred because it builds and pushes for a target platform in
// one step; without it the builder falls back to build+tag+push.
func BuildxAvailable(ctx context.Context) bool {
	_, err := Run(ctx, "docker", "buildx", "version")
	return err == nil
}

// Verify checks that an image reference exists in its registry by issuing a
// HEAD request for its manifest. It authenticates with the local docker
// keychain, which the providers have already populated via docker login.
// Verification is best-effort: callers treat an error as a warning.
func Verify(ctx context.Context, imageRef string) error {
	ref, err := name.ParseReference(imageRef)
	if err != nil {
		return fmt.Errorf("invalid image reference %s: %w", imageRef, err)
	}

	_, err = remote.Head(ref,
		remote.WithContext(ctx),
		remote.WithAuthFromKeychain(authn.DefaultKeychain),
	)
	if err != nil {
		return fmt.Errorf("image %s not found in registry: %w", imageRef, err)
	}
	return nil
}
