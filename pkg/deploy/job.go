package deploy

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/wait"
	"k8s.io/client-go/kubernetes/scheme"

	"github.com/cloudlaunch/cloudlaunch/pkg/logging"
	"github.com/cloudlaunch/cloudlaunch/pkg/types"
)

// initJobFile is the rendered database initialization job manifest,
// relative to the rendered database group directory.
const initJobFile = "db-init-job.yaml"

// runInitJob runs the bounded database initialization job: delete any stale
// job of the same name first so a re-run recreates instead of erroring, then
// create and wait up to the job timeout. Every failure here is a warning;
// the schema may already be initialized from a previous run.
func (d *Deployer) runInitJob(ctx context.Context, outcome *types.DeploymentOutcome) {
	job, err := d.loadInitJob()
	if err != nil {
		outcome.Warnf("database init job skipped: %v", err)
		logging.Warn("database init job skipped", "error", err.Error())
		return
	}

	ns := defaultNS(job.Namespace, d.req.Namespace())
	job.Namespace = ns

	if err := d.recreateJob(ctx, job); err != nil {
		outcome.Warnf("database init job failed to start: %v", err)
		logging.Warn("database init job failed to start", "error", err.Error())
		return
	}

	if err := d.waitForJob(ctx, ns, job.Name); err != nil {
		outcome.Warnf("database init job did not complete: %v", err)
		logging.Warn("database init job did not complete", "error", err.Error())
		return
	}
	logging.Info("database init job completed", "job", job.Name)
}

// loadInitJob reads and decodes the init job manifest. The customizer keeps
// the init job out of the database apply group because it runs as its own
// phase, so it is read straight from the rendered layout.
func (d *Deployer) loadInitJob() (*batchv1.Job, error) {
	path := filepath.Join(d.outputDir, "database", initJobFile)
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("manifest %s not present", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	obj, _, err := scheme.Codecs.UniversalDeserializer().Decode(data, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	job, ok := obj.(*batchv1.Job)
	if !ok {
		return nil, fmt.Errorf("%s is not a Job manifest (got %T)", path, obj)
	}
	return job, nil
}

// recreateJob deletes any existing job of the same name and creates a fresh
// one. Job specs are immutable, so delete-then-create is the only way to
// retry initialization.
func (d *Deployer) recreateJob(ctx context.Context, job *batchv1.Job) error {
	propagation := metav1.DeletePropagationForeground
	err := d.client.BatchV1().Jobs(job.Namespace).Delete(ctx, job.Name, metav1.DeleteOptions{
		PropagationPolicy: &propagation,
	})
	if err != nil && !apierrors.IsNotFound(err) {
		return fmt.Errorf("failed to delete stale job %s: %w", job.Name, err)
	}
	if err == nil {
		logging.Info("deleted stale init job", "job", job.Name)
		if err := d.waitForJobDeletion(ctx, job.Namespace, job.Name); err != nil {
			return fmt.Errorf("timeout waiting for stale job deletion: %w", err)
		}
	}

	if _, err := d.client.BatchV1().Jobs(job.Namespace).Create(ctx, job, metav1.CreateOptions{}); err != nil {
		return fmt.Errorf("failed to create job %s: %w", job.Name, err)
	}
	return nil
}

// waitForJobDeletion waits for a deleted job to disappear.
func (d *Deployer) waitForJobDeletion(ctx context.Context, ns, name string) error {
	return wait.PollUntilContextTimeout(ctx, 500*time.Millisecond, 30*time.Second, true,
		func(ctx context.Context) (bool, error) {
			_, err := d.client.BatchV1().Jobs(ns).Get(ctx, name, metav1.GetOptions{})
			if apierrors.IsNotFound(err) {
				return true, nil
			}
			if err != nil {
				return false, err
			}
			return false, nil
		},
	)
}

// waitForJob polls until the job reports complete or failed, bounded by the
// configured job timeout. On expiry the job is abandoned, not cancelled: it
// may still finish, and the next run deletes and recreates it anyway.
func (d *Deployer) waitForJob(ctx context.Context, ns, name string) error {
	err := wait.PollUntilContextTimeout(ctx, 2*time.Second, d.jobTimeout, true,
		func(ctx context.Context) (bool, error) {
			job, err := d.client.BatchV1().Jobs(ns).Get(ctx, name, metav1.GetOptions{})
			if err != nil {
				return false, err
			}
			for _, cond := range job.Status.Conditions {
				if cond.Type == batchv1.JobComplete && cond.Status == corev1.ConditionTrue {
					return true, nil
				}
				if cond.Type == batchv1.JobFailed && cond.Status == corev1.ConditionTrue {
					return false, fmt.Errorf("job failed: %s", cond.Message)
				}
			}
			return false, nil
		},
	)
	if wait.Interrupted(err) {
		return fmt.Errorf("timeout after %s waiting for job %s", d.jobTimeout, name)
	}
	return err
}
