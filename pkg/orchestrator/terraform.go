package orchestrator

import (
	"context"
	"fmt"
	"os/exec"

	"github.com/hashicorp/terraform-exec/tfexec"

	"github.com/cloudlaunch/cloudlaunch/pkg/logging"
)

// applyInfrastructure provisions the cloud resources (cluster, registry,
// database) with Terraform. Each environment lives in its own Terraform
// workspace so state never crosses environments. Any failure here is fatal:
// the later phases depend on the resources existing.
func (o *Orchestrator) applyInfrastructure(ctx context.Context) error {
	execPath, err := exec.LookPath(o.settings.TerraformBin)
	if err != nil {
		return fmt.Errorf("terraform binary %s not found: %w", o.settings.TerraformBin, err)
	}

	tf, err := tfexec.NewTerraform(o.settings.TerraformDir, execPath)
	if err != nil {
		return fmt.Errorf("failed to set up terraform in %s: %w", o.settings.TerraformDir, err)
	}

	logging.Info("initializing terraform", "dir", o.settings.TerraformDir)
	if err := tf.Init(ctx); err != nil {
		return fmt.Errorf("terraform init failed: %w", err)
	}

	// Select the environment workspace, creating it on first deploy.
	if err := tf.WorkspaceSelect(ctx, o.req.Environment); err != nil {
		logging.Info("creating terraform workspace", "workspace", o.req.Environment)
		if err := tf.WorkspaceNew(ctx, o.req.Environment); err != nil {
			return fmt.Errorf("failed to create terraform workspace %s: %w", o.req.Environment, err)
		}
	}

	logging.Info("applying terraform configuration",
		"workspace", o.req.Environment, "cloud", o.req.Provider)
	err = tf.Apply(ctx,
		tfexec.Var(fmt.Sprintf("project=%s", o.req.Project)),
		tfexec.Var(fmt.Sprintf("environment=%s", o.req.Environment)),
		tfexec.Var(fmt.Sprintf("cloud_provider=%s", o.req.Provider)),
	)
	if err != nil {
		return fmt.Errorf("terraform apply failed: %w", err)
	}

	logging.Info("infrastructure provisioned")
	return nil
}
