// Package deploy rolls the rendered manifests out to the cluster: apply in
// the fixed dependency order, a bounded database-initialization job, bounded
// rollout-readiness waits per service, and the end-of-run summary with a
// synthetic health probe.
//
// Within this package almost everything is best-effort: one failed manifest
// or one service that never becomes ready is recorded in the outcome and the
// run continues. The fatal preconditions (kubeconfig, connectivity) live in
// Preflight.
package deploy

import (
	"context"
	"time"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"

	"github.com/cloudlaunch/cloudlaunch/pkg/cluster"
	"github.com/cloudlaunch/cloudlaunch/pkg/config"
	"github.com/cloudlaunch/cloudlaunch/pkg/logging"
	"github.com/cloudlaunch/cloudlaunch/pkg/types"
)

// CredentialRefresher refreshes cluster credentials before connectivity is
// checked. Cloud providers implement it; a nil refresher skips the step.
type CredentialRefresher interface {
	RefreshClusterCredentials(ctx context.Context) error
}

// Deployer applies a manifest set and drives it to readiness.
type Deployer struct {
	client         kubernetes.Interface
	req            *config.Request
	set            *types.ManifestSet
	outputDir      string
	jobTimeout     time.Duration
	rolloutTimeout time.Duration
}

// New creates a deployer for the request and manifest set. outputDir is the
// rendered manifest directory, used to locate the database init job.
func New(client kubernetes.Interface, req *config.Request, set *types.ManifestSet,
	outputDir string, jobTimeout, rolloutTimeout time.Duration) *Deployer {
	return &Deployer{
		client:         client,
		req:            req,
		set:            set,
		outputDir:      outputDir,
		jobTimeout:     jobTimeout,
		rolloutTimeout: rolloutTimeout,
	}
}

// Preflight resolves cluster access: kubeconfig discovery, a best-effort
// provider credential refresh, and the connectivity check. Kubeconfig and
// connectivity failures are fatal; a failed credential refresh degrades to
// a warning because the existing kubeconfig may still work.
func Preflight(ctx context.Context, refresher CredentialRefresher, explicitKubeconfig string,
	outcome *types.DeploymentOutcome) (kubernetes.Interface, error) {

	kubeconfig, err := cluster.ResolveKubeconfig(explicitKubeconfig)
	if err != nil {
		return nil, err
	}

	if refresher != nil {
		if err := refresher.RefreshClusterCredentials(ctx); err != nil {
			outcome.Warnf("credential refresh failed, continuing with existing kubeconfig: %v", err)
			logging.Warn("credential refresh failed", "error", err.Error())
		}
	}

	client, err := cluster.BuildClient(kubeconfig)
	if err != nil {
		return nil, err
	}
	if err := cluster.CheckConnectivity(client); err != nil {
		return nil, err
	}
	return client, nil
}

// Run applies the manifest set in order, runs the database init job, waits
// for each service rollout, and probes backend health. Partial failures are
// recorded in the returned outcome, never propagated as errors.
func (d *Deployer) Run(ctx context.Context) *types.DeploymentOutcome {
	outcome := &types.DeploymentOutcome{}

	d.applySet(ctx, outcome)
	d.runInitJob(ctx, outcome)

	for _, service := range config.Services {
		d.waitForRollout(ctx, service, outcome)
	}

	d.probeHealth(ctx, outcome)
	return outcome
}

// applySet applies every present manifest group in the fixed order. A group
// that fails is recorded and the remaining groups are still attempted; the
// order itself is never changed because later groups depend on earlier ones.
func (d *Deployer) applySet(ctx context.Context, outcome *types.DeploymentOutcome) {
	present := d.set.Ordered()
	for _, group := range types.ApplyOrder {
		if !contains(present, group) {
			outcome.Warnf("manifest group %s not rendered, skipping", group)
			logging.Warn("manifest group absent", "group", group)
			continue
		}

		if err := d.applyGroup(ctx, group); err != nil {
			outcome.RecordFailed(group)
			outcome.Warnf("failed to apply %s: %v", group, err)
			logging.Error("manifest apply failed", "group", group, "error", err.Error())
			continue
		}
		outcome.RecordApplied(group)
		logging.Info("applied manifest group", "group", group)
	}
}

// probeHealth is the synthetic end-of-run health check: at least one backend
// pod must report Ready. Absence is a warning, not a failure, because the
// rollout waits already told the operator what is not ready.
func (d *Deployer) probeHealth(ctx context.Context, outcome *types.DeploymentOutcome) {
	pods, err := d.client.CoreV1().Pods(d.req.Namespace()).List(ctx, metav1.ListOptions{
		LabelSelector: "app=backend",
	})
	if err != nil {
		outcome.Warnf("health probe failed to list backend pods: %v", err)
		return
	}

	for _, pod := range pods.Items {
		if podReady(&pod) {
			logging.Info("health probe passed", "pod", pod.Name)
			return
		}
	}
	outcome.Warnf("health probe found no ready backend pod in %s", d.req.Namespace())
}

func podReady(pod *corev1.Pod) bool {
	if pod.Status.Phase != corev1.PodRunning {
		return false
	}
	for _, cond := range pod.Status.Conditions {
		if cond.Type == corev1.PodReady && cond.Status == corev1.ConditionTrue {
			return true
		}
	}
	return false
}

func contains(items []string, want string) bool {
	for _, item := range items {
		if item == want {
			return true
		}
	}
	return false
}
