// Package types provides shared types used across cloudlaunch packages.
package types

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// RegistryTarget identifies the container registry images are pushed to.
// It is derived from a cloud credentials lookup; when that lookup fails the
// orchestrator substitutes the local fallback target instead of aborting.
type RegistryTarget struct {
	// Provider that resolved this target ("aws", "gcp", "azure", or "local")
	Provider string

	// Host is the registry host, including any path prefix the provider
	// requires (e.g. 123456789.dkr.ecr.us-east-1.amazonaws.com or
	// us-central1-docker.pkg.dev/my-project/acme)
	Host string

	// Account is the provider account context (AWS account ID, GCP project,
	// Azure subscription); empty for the local fallback
	Account string
}

// Local reports whether this target is the local fallback registry.
func (t *RegistryTarget) Local() bool {
	return t.Provider == "local"
}

// Image returns the full image reference for a service and tag.
func (t *RegistryTarget) Image(project, service, tag string) string {
	return fmt.Sprintf("%s/%s/%s:%s", t.Host, project, service, tag)
}

// ApplyOrder is the fixed total order manifests are applied in. Later
// entries may reference resources defined by earlier ones (workloads need
// the namespace, the ingress needs the services), so present subsets are
// always applied in this relative order.
var ApplyOrder = []string{"namespace", "database", "backend", "frontend", "ingress"}

// ManifestSet maps manifest group names to the rendered files belonging to
// each group. Groups absent from the set are skipped with a warning.
type ManifestSet struct {
	groups map[string][]string
}

// NewManifestSet returns an empty manifest set.
func NewManifestSet() *ManifestSet {
	return &ManifestSet{groups: make(map[string][]string)}
}

// Add registers a rendered manifest file under the named group.
// Unknown group names are rejected so a typo cannot silently drop a manifest.
func (s *ManifestSet) Add(group, path string) error {
	for _, known := range ApplyOrder {
		if group == known {
			s.groups[group] = append(s.groups[group], path)
			sort.Strings(s.groups[group])
			return nil
		}
	}
	return fmt.Errorf("unknown manifest group %q", group)
}

// Files returns the rendered files for a group, or nil if absent.
func (s *ManifestSet) Files(group string) []string {
	return s.groups[group]
}

// Ordered returns the present groups filtered from ApplyOrder.
func (s *ManifestSet) Ordered() []string {
	ordered := make([]string, 0, len(s.groups))
	for _, group := range ApplyOrder {
		if len(s.groups[group]) > 0 {
			ordered = append(ordered, group)
		}
	}
	return ordered
}

// DeploymentOutcome accumulates per-unit results through a run. Partial
// failures do not abort the run; they are recorded here and surfaced in the
// final summary, where the orchestrator decides the process exit status.
type DeploymentOutcome struct {
	Applied       []string
	Failed        []string
	ReadyServices []string
	NotReady      []string
	Warnings      []string
	Elapsed       time.Duration
}

// RecordApplied marks a manifest group as applied.
func (o *DeploymentOutcome) RecordApplied(name string) {
	o.Applied = append(o.Applied, name)
}

// RecordFailed marks a manifest group as failed.
func (o *DeploymentOutcome) RecordFailed(name string) {
	o.Failed = append(o.Failed, name)
}

// RecordReady marks a service as having reached rollout readiness.
func (o *DeploymentOutcome) RecordReady(service string) {
	o.ReadyServices = append(o.ReadyServices, service)
}

// RecordNotReady marks a service that did not reach readiness in time.
func (o *DeploymentOutcome) RecordNotReady(service string) {
	o.NotReady = append(o.NotReady, service)
}

// Warnf records a degraded-but-continuing condition.
func (o *DeploymentOutcome) Warnf(format string, args ...any) {
	o.Warnings = append(o.Warnings, fmt.Sprintf(format, args...))
}

// Merge folds another outcome into this one.
func (o *DeploymentOutcome) Merge(other *DeploymentOutcome) {
	if other == nil {
		return
	}
	o.Applied = append(o.Applied, other.Applied...)
	o.Failed = append(o.Failed, other.Failed...)
	o.ReadyServices = append(o.ReadyServices, other.ReadyServices...)
	o.NotReady = append(o.NotReady, other.NotReady...)
	o.Warnings = append(o.Warnings, other.Warnings...)
}

// Degraded reports whether any per-unit failure or readiness timeout was
// recorded. Warnings alone do not make a run degraded.
func (o *DeploymentOutcome) Degraded() bool {
	return len(o.Failed) > 0 || len(o.NotReady) > 0
}

// Summary renders the human-readable end-of-run report.
func (o *DeploymentOutcome) Summary() string {
	var b strings.Builder
	b.WriteString("Deployment summary:\n")
	b.WriteString(fmt.Sprintf("  applied:  %s\n", orNone(o.Applied)))
	b.WriteString(fmt.Sprintf("  failed:   %s\n", orNone(o.Failed)))
	b.WriteString(fmt.Sprintf("  ready:    %s\n", orNone(o.ReadyServices)))
	b.WriteString(fmt.Sprintf("  notReady: %s\n", orNone(o.NotReady)))
	for _, w := range o.Warnings {
		b.WriteString(fmt.Sprintf("  warning:  %s\n", w))
	}
	b.WriteString(fmt.Sprintf("  elapsed:  %s\n", o.Elapsed.Round(time.Second)))
	return b.String()
}

func orNone(items []string) string {
	if len(items) == 0 {
		return "(none)"
	}
	return strings.Join(items, ", ")
}
