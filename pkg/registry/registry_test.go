package registry

import (
	"context"
	"testing"
)

func TestLocalTarget(t *testing.T) {
	target := LocalTarget("localhost:5000")
	if !target.Local() {
		t.Error("LocalTarget() should report Local() = true")
	}
	if target.Host != "localhost:5000" {
		t.Errorf("Host = %q, want localhost:5000", target.Host)
	}
	if got := target.Image("acme", "backend", "dev"); got != "localhost:5000/acme/backend:dev" {
		t.Errorf("Image() = %q", got)
	}
}

func TestRunMissingBinary(t *testing.T) {
	if _, err := Run(context.Background(), "cloudlaunch-no-such-binary-xyz", "arg"); err == nil {
		t.Error("expected error for missing binary")
	}
}

func TestVerifyRejectsInvalidReference(t *testing.T) {
	if err := Verify(context.Background(), "not a valid image ref!!"); err == nil {
		t.Error("expected error for invalid image reference")
	}
}
