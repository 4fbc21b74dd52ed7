package types

import (
	"strings"
	"testing"
)

func TestRegistryTargetImage(t *testing.T) {
	tests := []struct {
		name   string
		target RegistryTarget
		want   string
	}{
		{
			name:   "ecr",
			target: RegistryTarget{Provider: "aws", Host: "123456789.dkr.ecr.us-east-1.amazonaws.com"},
			want:   "123456789.dkr.ecr.us-east-1.amazonaws.com/acme/backend:staging",
		},
		{
			name:   "artifact registry with project prefix",
			target: RegistryTarget{Provider: "gcp", Host: "us-central1-docker.pkg.dev/my-project"},
			want:   "us-central1-docker.pkg.dev/my-project/acme/backend:staging",
		},
		{
			name:   "local fallback",
			target: RegistryTarget{Provider: "local", Host: "localhost:5000"},
			want:   "localhost:5000/acme/backend:staging",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.target.Image("acme", "backend", "staging"); got != tt.want {
				t.Errorf("Image() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRegistryTargetLocal(t *testing.T) {
	local := RegistryTarget{Provider: "local", Host: "localhost:5000"}
	if !local.Local() {
		t.Error("local target should report Local() = true")
	}
	cloud := RegistryTarget{Provider: "aws", Host: "example.com"}
	if cloud.Local() {
		t.Error("cloud target should report Local() = false")
	}
}

func TestManifestSetRejectsUnknownGroup(t *testing.T) {
	set := NewManifestSet()
	if err := set.Add("middleware", "middleware.yaml"); err == nil {
		t.Error("expected error for unknown group, got nil")
	}
}

func TestManifestSetOrdered(t *testing.T) {
	tests := []struct {
		name   string
		groups []string
		want   []string
	}{
		{
			name:   "all groups in scrambled insert order",
			groups: []string{"ingress", "backend", "namespace", "database", "frontend"},
			want:   []string{"namespace", "database", "backend", "frontend", "ingress"},
		},
		{
			name:   "subset keeps relative order",
			groups: []string{"frontend", "namespace"},
			want:   []string{"namespace", "frontend"},
		},
		{
			name:   "empty set",
			groups: nil,
			want:   []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			set := NewManifestSet()
			for _, group := range tt.groups {
				if err := set.Add(group, group+".yaml"); err != nil {
					t.Fatalf("Add(%q) error: %v", group, err)
				}
			}

			got := set.Ordered()
			if len(got) != len(tt.want) {
				t.Fatalf("Ordered() = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("Ordered()[%d] = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestManifestSetFilesSorted(t *testing.T) {
	set := NewManifestSet()
	for _, f := range []string{"z.yaml", "a.yaml", "m.yaml"} {
		if err := set.Add("database", f); err != nil {
			t.Fatal(err)
		}
	}

	files := set.Files("database")
	want := []string{"a.yaml", "m.yaml", "z.yaml"}
	for i := range want {
		if files[i] != want[i] {
			t.Errorf("Files()[%d] = %q, want %q", i, files[i], want[i])
		}
	}
}

func TestDeploymentOutcomeDegraded(t *testing.T) {
	var o DeploymentOutcome
	if o.Degraded() {
		t.Error("empty outcome should not be degraded")
	}

	o.Warnf("something minor: %s", "detail")
	if o.Degraded() {
		t.Error("warnings alone should not make an outcome degraded")
	}

	o.RecordNotReady("backend")
	if !o.Degraded() {
		t.Error("outcome with unready service should be degraded")
	}

	var failed DeploymentOutcome
	failed.RecordFailed("database")
	if !failed.Degraded() {
		t.Error("outcome with failed group should be degraded")
	}
}

func TestDeploymentOutcomeMerge(t *testing.T) {
	a := &DeploymentOutcome{}
	a.RecordApplied("namespace")
	a.Warnf("first warning")

	b := &DeploymentOutcome{}
	b.RecordApplied("database")
	b.RecordFailed("ingress")
	b.RecordReady("backend")

	a.Merge(b)
	a.Merge(nil) // must be a no-op

	if len(a.Applied) != 2 || len(a.Failed) != 1 || len(a.ReadyServices) != 1 {
		t.Errorf("merge did not fold counts: %+v", a)
	}
	if !a.Degraded() {
		t.Error("merged outcome should carry the failure")
	}
}

func TestDeploymentOutcomeSummary(t *testing.T) {
	o := &DeploymentOutcome{}
	o.RecordApplied("namespace")
	o.RecordReady("backend")
	o.Warnf("database endpoint lookup failed")

	summary := o.Summary()
	for _, want := range []string{"namespace", "backend", "database endpoint lookup failed", "(none)"} {
		if !strings.Contains(summary, want) {
			t.Errorf("Summary() missing %q:\n%s", want, summary)
		}
	}
}
