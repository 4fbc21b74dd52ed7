package deploy

import (
	"context"
	"time"

	appsv1 "k8s.io/api/apps/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/wait"

	"github.com/cloudlaunch/cloudlaunch/pkg/logging"
	"github.com/cloudlaunch/cloudlaunch/pkg/types"
)

// waitForRollout waits for a service's deployment to reach readiness,
// bounded by the rollout timeout. A deployment that does not exist at all is
// a skip (the service was never rendered or built), not a failure; a
// deployment that exists but never becomes ready is recorded as not ready
// and the remaining waits still run.
func (d *Deployer) waitForRollout(ctx context.Context, service string, outcome *types.DeploymentOutcome) {
	ns := d.req.Namespace()

	if _, err := d.client.AppsV1().Deployments(ns).Get(ctx, service, metav1.GetOptions{}); err != nil {
		if apierrors.IsNotFound(err) {
			outcome.Warnf("deployment %s not found, skipping readiness wait", service)
			logging.Warn("deployment not found, skipping", "service", service)
			return
		}
		outcome.RecordNotReady(service)
		outcome.Warnf("failed to get deployment %s: %v", service, err)
		return
	}

	logging.Info("waiting for rollout", "service", service, "timeout", d.rolloutTimeout.String())
	err := wait.PollUntilContextTimeout(ctx, 5*time.Second, d.rolloutTimeout, true,
		func(ctx context.Context) (bool, error) {
			dep, err := d.client.AppsV1().Deployments(ns).Get(ctx, service, metav1.GetOptions{})
			if err != nil {
				return false, err
			}
			return rolloutComplete(dep), nil
		},
	)
	if err != nil {
		outcome.RecordNotReady(service)
		if wait.Interrupted(err) {
			outcome.Warnf("service %s not ready after %s", service, d.rolloutTimeout)
		} else {
			outcome.Warnf("readiness wait for %s failed: %v", service, err)
		}
		logging.Warn("rollout did not complete", "service", service, "error", err.Error())
		return
	}

	outcome.RecordReady(service)
	logging.Info("rollout complete", "service", service)
}

// rolloutComplete mirrors kubectl's rollout status condition: the controller
// has observed the current generation and all desired replicas are updated
// and available.
func rolloutComplete(dep *appsv1.Deployment) bool {
	if dep.Generation > dep.Status.ObservedGeneration {
		return false
	}
	desired := int32(1)
	if dep.Spec.Replicas != nil {
		desired = *dep.Spec.Replicas
	}
	return dep.Status.UpdatedReplicas >= desired &&
		dep.Status.AvailableReplicas >= desired
}
