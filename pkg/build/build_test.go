package build

import (
	"context"
	"runtime"
	"strings"
	"testing"

	"github.com/cloudlaunch/cloudlaunch/pkg/config"
	"github.com/cloudlaunch/cloudlaunch/pkg/types"
)

func TestNormalizeArch(t *testing.T) {
	tests := []struct {
		arch string
		want string
	}{
		{"x86_64", "amd64"},
		{"aarch64", "arm64"},
		{"amd64", "amd64"},
		{"arm64", "arm64"},
		{"riscv64", "riscv64"},
	}

	for _, tt := range tests {
		t.Run(tt.arch, func(t *testing.T) {
			if got := NormalizeArch(tt.arch); got != tt.want {
				t.Errorf("NormalizeArch(%q) = %q, want %q", tt.arch, got, tt.want)
			}
		})
	}
}

func TestPlatform(t *testing.T) {
	target := &types.RegistryTarget{Provider: "local", Host: "localhost:5000"}

	for _, env := range []string{config.EnvStaging, config.EnvProd} {
		b := New(&config.Request{Provider: "aws", Environment: env, Project: "acme"}, target, ".")
		if got := b.Platform(); got != "linux/amd64" {
			t.Errorf("Platform() for %s = %q, want linux/amd64", env, got)
		}
	}

	dev := New(&config.Request{Provider: "aws", Environment: config.EnvDev, Project: "acme"}, target, ".")
	got := dev.Platform()
	if !strings.HasPrefix(got, "linux/") {
		t.Errorf("Platform() for dev = %q, want linux/ prefix", got)
	}
	if !strings.HasSuffix(got, NormalizeArch(runtime.GOARCH)) {
		t.Errorf("Platform() for dev = %q, want host architecture", got)
	}
}

func TestRunSkipsServicesWithoutDockerfile(t *testing.T) {
	target := &types.RegistryTarget{Provider: "local", Host: "localhost:5000"}
	req := &config.Request{Provider: "aws", Environment: "dev", Project: "acme"}

	// Empty source tree: every service is skipped, nothing is built, and the
	// outcome is warned but not degraded.
	b := New(req, target, t.TempDir())
	outcome := b.Run(context.Background())

	if len(outcome.Warnings) != len(config.Services) {
		t.Errorf("warnings = %v, want one per service", outcome.Warnings)
	}
	for _, w := range outcome.Warnings {
		if !strings.Contains(w, "no Dockerfile") {
			t.Errorf("warning %q should name the missing Dockerfile", w)
		}
	}
	if outcome.Degraded() {
		t.Error("skipped builds should not degrade the outcome")
	}
}

func TestImageTagPair(t *testing.T) {
	target := &types.RegistryTarget{Provider: "aws", Host: "123.dkr.ecr.us-east-1.amazonaws.com"}
	req := &config.Request{Provider: "aws", Environment: "staging", Project: "acme"}

	latest := target.Image(req.Project, "backend", "latest")
	envTag := target.Image(req.Project, "backend", req.Environment)

	if latest != "123.dkr.ecr.us-east-1.amazonaws.com/acme/backend:latest" {
		t.Errorf("latest tag = %q", latest)
	}
	if envTag != "123.dkr.ecr.us-east-1.amazonaws.com/acme/backend:staging" {
		t.Errorf("environment tag = %q", envTag)
	}
}
