// Package customize renders the Kubernetes manifest templates for a
// deployment: literal token substitution, relocation into the fixed
// directory layout, a synthesized ingress, and a generated database
// credential injected into the database secret manifest.
package customize

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	networkingv1 "k8s.io/api/networking/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/utils/ptr"
	sigsyaml "sigs.k8s.io/yaml"

	"github.com/cloudlaunch/cloudlaunch/pkg/config"
	"github.com/cloudlaunch/cloudlaunch/pkg/logging"
	"github.com/cloudlaunch/cloudlaunch/pkg/types"
)

// PasswordPlaceholder is the token in the database secret template that the
// generated credential replaces. Its absence means the template drifted and
// a known default credential would ship; callers must surface that.
const PasswordPlaceholder = "GENERATED_PASSWORD_B64"

// ErrPlaceholderMissing reports that the database secret template no longer
// contains PasswordPlaceholder.
var ErrPlaceholderMissing = errors.New("password placeholder not found in database secret template")

// Service ports referenced by the synthesized ingress.
const (
	backendPort  = 8000
	frontendPort = 80
)

// relocations maps rendered filenames to their target subdirectory.
// Files not listed here stay at the top level of the output directory.
var relocations = map[string]string{
	"backend-deployment.yaml":  "backend",
	"backend-service.yaml":     "backend",
	"frontend-deployment.yaml": "frontend",
	"frontend-service.yaml":    "frontend",
	"postgres-secret.yaml":     "database",
	"postgres-deployment.yaml": "database",
	"postgres-service.yaml":    "database",
	"postgres-pvc.yaml":        "database",
	"db-init-job.yaml":         "database",
}

// Customizer renders templates into apply-ready manifests.
type Customizer struct {
	req          *config.Request
	registryHost string
	dbEndpoint   string
	templateDir  string
	outputDir    string
}

// Result carries what later phases need from customization.
type Result struct {
	// Password is the generated database credential (raw, not encoded)
	Password string

	// Warnings are degraded conditions the orchestrator reports
	Warnings []string
}

// New creates a customizer for the request.
func New(req *config.Request, registryHost, dbEndpoint, templateDir, outputDir string) *Customizer {
	return &Customizer{
		req:          req,
		registryHost: registryHost,
		dbEndpoint:   dbEndpoint,
		templateDir:  templateDir,
		outputDir:    outputDir,
	}
}

// FallbackDatabaseEndpoint returns the in-cluster DNS name used when the
// managed database lookup fails, enabling self-contained dev deployments
// against the in-cluster Postgres.
func FallbackDatabaseEndpoint(req *config.Request) string {
	return fmt.Sprintf("%s-postgres.%s.svc.cluster.local", req.Project, req.Namespace())
}

// Run renders all templates and returns the generated credential plus any
// warnings. The output directory is recreated from scratch so stale files
// from a previous run cannot leak into the apply set.
func (c *Customizer) Run() (*Result, error) {
	result := &Result{}

	if err := os.RemoveAll(c.outputDir); err != nil {
		return nil, fmt.Errorf("failed to clear output directory: %w", err)
	}
	if err := os.MkdirAll(c.outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	if err := c.renderTemplates(); err != nil {
		return nil, err
	}

	if err := c.relocate(); err != nil {
		return nil, err
	}

	if err := c.synthesizeIngress(); err != nil {
		return nil, err
	}

	password, warning, err := c.injectPassword()
	if err != nil {
		return nil, err
	}
	if warning != "" {
		// Template drift: report, keep rendering. Shipping without the
		// substitution is worse silent than loud.
		result.Warnings = append(result.Warnings, warning)
	}
	result.Password = password

	logging.Info("rendered manifests", "dir", c.outputDir)
	return result, nil
}

// renderTemplates substitutes tokens in every top-level template file and
// writes the result into the output directory unmodified otherwise.
func (c *Customizer) renderTemplates() error {
	entries, err := os.ReadDir(c.templateDir)
	if err != nil {
		return fmt.Errorf("failed to read template directory %s: %w", c.templateDir, err)
	}

	replacer := strings.NewReplacer(
		"PROJECT_NAME", c.req.Project,
		"ENVIRONMENT", c.req.Environment,
		"CONTAINER_REGISTRY", c.registryHost,
		"RDS_ENDPOINT", c.dbEndpoint,
	)

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		data, err := os.ReadFile(filepath.Join(c.templateDir, entry.Name()))
		if err != nil {
			return fmt.Errorf("failed to read template %s: %w", entry.Name(), err)
		}

		rendered := replacer.Replace(string(data))
		out := filepath.Join(c.outputDir, entry.Name())
		if err := os.WriteFile(out, []byte(rendered), 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", out, err)
		}
		logging.Debug("rendered template", "file", entry.Name())
	}
	return nil
}

// relocate moves known rendered files into the fixed two-level layout.
func (c *Customizer) relocate() error {
	for name, subdir := range relocations {
		src := filepath.Join(c.outputDir, name)
		if _, err := os.Stat(src); os.IsNotExist(err) {
			continue
		}
		dir := filepath.Join(c.outputDir, subdir)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
		if err := os.Rename(src, filepath.Join(dir, name)); err != nil {
			return fmt.Errorf("failed to relocate %s: %w", name, err)
		}
	}
	return nil
}

// synthesizeIngress writes ingress.yaml routing /api/* to the backend with
// the prefix rewritten away, and everything else to the frontend.
func (c *Customizer) synthesizeIngress() error {
	pathTypePrefix := networkingv1.PathTypePrefix
	pathTypeImpl := networkingv1.PathTypeImplementationSpecific

	ingress := &networkingv1.Ingress{
		TypeMeta: metav1.TypeMeta{
			APIVersion: "networking.k8s.io/v1",
			Kind:       "Ingress",
		},
		ObjectMeta: metav1.ObjectMeta{
			Name:      c.req.Project + "-ingress",
			Namespace: c.req.Namespace(),
			Annotations: map[string]string{
				// Strip the /api prefix so the backend never sees it.
				"nginx.ingress.kubernetes.io/rewrite-target": "/$2",
				"nginx.ingress.kubernetes.io/use-regex":      "true",
			},
		},
		Spec: networkingv1.IngressSpec{
			IngressClassName: ptr.To("nginx"),
			Rules: []networkingv1.IngressRule{
				{
					IngressRuleValue: networkingv1.IngressRuleValue{
						HTTP: &networkingv1.HTTPIngressRuleValue{
							Paths: []networkingv1.HTTPIngressPath{
								{
									Path:     "/api(/|$)(.*)",
									PathType: &pathTypeImpl,
									Backend:  serviceBackend("backend-service", backendPort),
								},
								{
									Path:     "/",
									PathType: &pathTypePrefix,
									Backend:  serviceBackend("frontend-service", frontendPort),
								},
							},
						},
					},
				},
			},
		},
	}

	data, err := sigsyaml.Marshal(ingress)
	if err != nil {
		return fmt.Errorf("failed to marshal ingress: %w", err)
	}

	out := filepath.Join(c.outputDir, "ingress.yaml")
	if err := os.WriteFile(out, data, 0o644); err != nil {
		return fmt.Errorf("failed to write ingress.yaml: %w", err)
	}
	return nil
}

func serviceBackend(name string, port int32) networkingv1.IngressBackend {
	return networkingv1.IngressBackend{
		Service: &networkingv1.IngressServiceBackend{
			Name: name,
			Port: networkingv1.ServiceBackendPort{Number: port},
		},
	}
}

// injectPassword generates the database credential and substitutes its
// base64 form into the database secret manifest. A missing manifest or a
// missing placeholder is returned as a warning, not an error: the run
// continues but the operator must know the default credential survived.
func (c *Customizer) injectPassword() (password, warning string, err error) {
	password, err = generatePassword()
	if err != nil {
		return "", "", err
	}

	secretFile := filepath.Join(c.outputDir, "database", "postgres-secret.yaml")
	data, err := os.ReadFile(secretFile)
	if err != nil {
		if os.IsNotExist(err) {
			return password, fmt.Sprintf("database secret manifest missing, credential not injected: %s", secretFile), nil
		}
		return password, "", fmt.Errorf("failed to read %s: %w", secretFile, err)
	}

	if !strings.Contains(string(data), PasswordPlaceholder) {
		return password, fmt.Sprintf("%s: %s", secretFile, ErrPlaceholderMissing), nil
	}

	// Kubernetes secrets carry data base64-encoded; this is an encoding,
	// not encryption.
	encoded := base64.StdEncoding.EncodeToString([]byte(password))
	rendered := strings.ReplaceAll(string(data), PasswordPlaceholder, encoded)
	if err := os.WriteFile(secretFile, []byte(rendered), 0o600); err != nil {
		return password, "", fmt.Errorf("failed to write %s: %w", secretFile, err)
	}
	return password, "", nil
}

// generatePassword returns a 32-character urlsafe random credential.
func generatePassword() (string, error) {
	raw := make([]byte, 24)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("failed to generate password: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// Discover walks a rendered output directory and builds the manifest set
// the deployer applies, in the fixed dependency order.
func Discover(outputDir string) (*types.ManifestSet, error) {
	set := types.NewManifestSet()

	add := func(group string, paths ...string) error {
		for _, p := range paths {
			if _, err := os.Stat(p); err != nil {
				continue
			}
			if err := set.Add(group, p); err != nil {
				return err
			}
		}
		return nil
	}

	if err := add("namespace", filepath.Join(outputDir, "namespace.yaml")); err != nil {
		return nil, err
	}
	if err := add("ingress", filepath.Join(outputDir, "ingress.yaml")); err != nil {
		return nil, err
	}

	for group, dir := range map[string]string{
		"database": filepath.Join(outputDir, "database"),
		"backend":  filepath.Join(outputDir, "backend"),
		"frontend": filepath.Join(outputDir, "frontend"),
	} {
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue // group absent, deployer skips it with a warning
		}
		for _, entry := range entries {
			if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".yaml") {
				continue
			}
			// The init job is applied by its own phase, not with the group.
			if entry.Name() == "db-init-job.yaml" {
				continue
			}
			if err := add(group, filepath.Join(dir, entry.Name())); err != nil {
				return nil, err
			}
		}
	}

	return set, nil
}
