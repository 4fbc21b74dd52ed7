package customize

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"strings"
	"testing"

	networkingv1 "k8s.io/api/networking/v1"
	sigsyaml "sigs.k8s.io/yaml"

	"github.com/cloudlaunch/cloudlaunch/pkg/config"
)

func testRequest() *config.Request {
	return &config.Request{Provider: "aws", Environment: "staging", Project: "acme"}
}

// writeTemplates lays down a minimal template directory for rendering tests.
func writeTemplates(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func TestRunRendersTokensAndRelocates(t *testing.T) {
	templateDir := writeTemplates(t, map[string]string{
		"namespace.yaml": "apiVersion: v1\nkind: Namespace\nmetadata:\n  name: PROJECT_NAME-app\n",
		"backend-deployment.yaml": "apiVersion: apps/v1\nkind: Deployment\nmetadata:\n  name: backend\nspec:\n" +
			"  template:\n    spec:\n      containers:\n        - name: backend\n" +
			"          image: CONTAINER_REGISTRY/PROJECT_NAME/backend:ENVIRONMENT\n" +
			"          env:\n            - name: DB_HOST\n              value: \"RDS_ENDPOINT\"\n",
		"postgres-secret.yaml": "apiVersion: v1\nkind: Secret\nmetadata:\n  name: postgres-secret\ndata:\n  password: GENERATED_PASSWORD_B64\n",
	})
	outputDir := filepath.Join(t.TempDir(), "rendered")

	c := New(testRequest(), "registry.example.com", "db.example.com", templateDir, outputDir)
	result, err := c.Run()
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if len(result.Warnings) != 0 {
		t.Errorf("unexpected warnings: %v", result.Warnings)
	}

	ns, err := os.ReadFile(filepath.Join(outputDir, "namespace.yaml"))
	if err != nil {
		t.Fatalf("namespace.yaml not rendered: %v", err)
	}
	if !strings.Contains(string(ns), "acme-app") {
		t.Errorf("namespace.yaml not substituted:\n%s", ns)
	}

	// backend-deployment.yaml must be relocated into backend/.
	dep, err := os.ReadFile(filepath.Join(outputDir, "backend", "backend-deployment.yaml"))
	if err != nil {
		t.Fatalf("backend-deployment.yaml not relocated: %v", err)
	}
	for _, want := range []string{
		"registry.example.com/acme/backend:staging",
		`value: "db.example.com"`,
	} {
		if !strings.Contains(string(dep), want) {
			t.Errorf("backend-deployment.yaml missing %q:\n%s", want, dep)
		}
	}
	if _, err := os.Stat(filepath.Join(outputDir, "backend-deployment.yaml")); !os.IsNotExist(err) {
		t.Error("relocated file should not remain at the top level")
	}
}

func TestRunInjectsGeneratedPassword(t *testing.T) {
	templateDir := writeTemplates(t, map[string]string{
		"postgres-secret.yaml": "apiVersion: v1\nkind: Secret\nmetadata:\n  name: postgres-secret\ndata:\n  password: GENERATED_PASSWORD_B64\n",
	})
	outputDir := filepath.Join(t.TempDir(), "rendered")

	c := New(testRequest(), "localhost:5000", "db.local", templateDir, outputDir)
	result, err := c.Run()
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	if len(result.Password) != 32 {
		t.Errorf("password length = %d, want 32", len(result.Password))
	}

	data, err := os.ReadFile(filepath.Join(outputDir, "database", "postgres-secret.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), PasswordPlaceholder) {
		t.Error("placeholder still present after injection")
	}
	encoded := base64.StdEncoding.EncodeToString([]byte(result.Password))
	if !strings.Contains(string(data), encoded) {
		t.Error("rendered secret does not contain the encoded password")
	}
}

func TestRunWarnsWhenPlaceholderMissing(t *testing.T) {
	templateDir := writeTemplates(t, map[string]string{
		"postgres-secret.yaml": "apiVersion: v1\nkind: Secret\nmetadata:\n  name: postgres-secret\ndata:\n  password: aGFyZGNvZGVk\n",
	})
	outputDir := filepath.Join(t.TempDir(), "rendered")

	c := New(testRequest(), "localhost:5000", "db.local", templateDir, outputDir)
	result, err := c.Run()
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if len(result.Warnings) != 1 {
		t.Fatalf("expected one warning, got %v", result.Warnings)
	}
	if !strings.Contains(result.Warnings[0], ErrPlaceholderMissing.Error()) {
		t.Errorf("warning %q does not mention the missing placeholder", result.Warnings[0])
	}
}

func TestRunWarnsWhenSecretTemplateMissing(t *testing.T) {
	templateDir := writeTemplates(t, map[string]string{
		"namespace.yaml": "apiVersion: v1\nkind: Namespace\nmetadata:\n  name: PROJECT_NAME-app\n",
	})
	outputDir := filepath.Join(t.TempDir(), "rendered")

	c := New(testRequest(), "localhost:5000", "db.local", templateDir, outputDir)
	result, err := c.Run()
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if len(result.Warnings) != 1 || !strings.Contains(result.Warnings[0], "credential not injected") {
		t.Errorf("expected missing-manifest warning, got %v", result.Warnings)
	}
}

func TestRunSynthesizesIngress(t *testing.T) {
	templateDir := writeTemplates(t, map[string]string{})
	outputDir := filepath.Join(t.TempDir(), "rendered")

	c := New(testRequest(), "localhost:5000", "db.local", templateDir, outputDir)
	if _, err := c.Run(); err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(outputDir, "ingress.yaml"))
	if err != nil {
		t.Fatalf("ingress.yaml not written: %v", err)
	}

	var ingress networkingv1.Ingress
	if err := sigsyaml.Unmarshal(data, &ingress); err != nil {
		t.Fatalf("ingress.yaml is not a valid Ingress: %v", err)
	}

	if ingress.Name != "acme-ingress" {
		t.Errorf("ingress name = %q, want %q", ingress.Name, "acme-ingress")
	}
	if ingress.Namespace != "acme-app" {
		t.Errorf("ingress namespace = %q, want %q", ingress.Namespace, "acme-app")
	}
	if got := ingress.Annotations["nginx.ingress.kubernetes.io/rewrite-target"]; got != "/$2" {
		t.Errorf("rewrite-target = %q, want %q", got, "/$2")
	}

	paths := ingress.Spec.Rules[0].HTTP.Paths
	if len(paths) != 2 {
		t.Fatalf("expected 2 paths, got %d", len(paths))
	}
	if paths[0].Path != "/api(/|$)(.*)" || paths[0].Backend.Service.Name != "backend-service" {
		t.Errorf("api path misrouted: %+v", paths[0])
	}
	if paths[0].Backend.Service.Port.Number != 8000 {
		t.Errorf("backend port = %d, want 8000", paths[0].Backend.Service.Port.Number)
	}
	if paths[1].Path != "/" || paths[1].Backend.Service.Name != "frontend-service" {
		t.Errorf("root path misrouted: %+v", paths[1])
	}
}

func TestRunClearsStaleOutput(t *testing.T) {
	templateDir := writeTemplates(t, map[string]string{
		"namespace.yaml": "apiVersion: v1\nkind: Namespace\nmetadata:\n  name: PROJECT_NAME-app\n",
	})
	outputDir := filepath.Join(t.TempDir(), "rendered")
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		t.Fatal(err)
	}
	stale := filepath.Join(outputDir, "stale.yaml")
	if err := os.WriteFile(stale, []byte("kind: Leftover"), 0o644); err != nil {
		t.Fatal(err)
	}

	c := New(testRequest(), "localhost:5000", "db.local", templateDir, outputDir)
	if _, err := c.Run(); err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Error("stale file survived a re-render")
	}
}

func TestFallbackDatabaseEndpoint(t *testing.T) {
	got := FallbackDatabaseEndpoint(testRequest())
	want := "acme-postgres.acme-app.svc.cluster.local"
	if got != want {
		t.Errorf("FallbackDatabaseEndpoint() = %q, want %q", got, want)
	}
}

func TestDiscover(t *testing.T) {
	outputDir := t.TempDir()
	layout := map[string]string{
		"namespace.yaml":                    "kind: Namespace",
		"ingress.yaml":                      "kind: Ingress",
		"database/postgres-secret.yaml":     "kind: Secret",
		"database/postgres-deployment.yaml": "kind: Deployment",
		"database/db-init-job.yaml":         "kind: Job",
		"backend/backend-deployment.yaml":   "kind: Deployment",
		"backend/backend-service.yaml":      "kind: Service",
	}
	for name, content := range layout {
		path := filepath.Join(outputDir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	set, err := Discover(outputDir)
	if err != nil {
		t.Fatalf("Discover() error: %v", err)
	}

	ordered := set.Ordered()
	want := []string{"namespace", "database", "backend", "ingress"}
	if len(ordered) != len(want) {
		t.Fatalf("Ordered() = %v, want %v", ordered, want)
	}
	for i := range want {
		if ordered[i] != want[i] {
			t.Errorf("Ordered()[%d] = %q, want %q", i, ordered[i], want[i])
		}
	}

	// The init job runs as its own phase and must not be in the apply set.
	for _, f := range set.Files("database") {
		if strings.Contains(f, "db-init-job") {
			t.Errorf("db-init-job.yaml leaked into the database group: %v", set.Files("database"))
		}
	}
	if len(set.Files("database")) != 2 {
		t.Errorf("database group = %v, want 2 files", set.Files("database"))
	}
	if len(set.Files("frontend")) != 0 {
		t.Errorf("frontend group should be absent, got %v", set.Files("frontend"))
	}
}
