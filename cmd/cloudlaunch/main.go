// Command cloudlaunch deploys a two-service application (backend, frontend)
// with a Postgres database to a managed Kubernetes cluster on AWS, GCP, or
// Azure.
//
// Usage:
//
//	cloudlaunch [flags] <provider> <environment> <project>
//
// Exit codes: 0 on success (including degraded runs, unless -strict is set),
// 1 on a fatal error, 2 on a degraded run under -strict.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/cloudlaunch/cloudlaunch/pkg/config"
	"github.com/cloudlaunch/cloudlaunch/pkg/orchestrator"
	"github.com/cloudlaunch/cloudlaunch/pkg/types"
)

// Version information (set via ldflags during build)
var (
	version = "0.1.0"
	commit  = "none"
	date    = "unknown"
)

// settingsFile holds optional overrides for CLOUDLAUNCH_* settings.
const settingsFile = "cloudlaunch.yaml"

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: %s [flags] <provider> <environment> <project>\n\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "  provider     aws, gcp, or azure\n")
	fmt.Fprintf(os.Stderr, "  environment  dev, staging, or prod\n")
	fmt.Fprintf(os.Stderr, "  project      project name\n\nFlags:\n")
	flag.PrintDefaults()
}

func main() {
	var (
		skipInfrastructure = flag.Bool("skip-infrastructure", false, "Skip the infrastructure provisioning phase")
		skipImages         = flag.Bool("skip-images", false, "Skip the image build phase")
		skipApps           = flag.Bool("skip-apps", false, "Skip the application deployment phase")
		strict             = flag.Bool("strict", false, "Exit non-zero when the run is degraded by partial failures")
		showVersion        = flag.Bool("version", false, "Show version information")
	)
	flag.Usage = usage
	flag.Parse()

	if *showVersion {
		fmt.Printf("cloudlaunch version %s\n", version)
		fmt.Printf("  commit: %s\n", commit)
		fmt.Printf("  built: %s\n", date)
		os.Exit(0)
	}

	if flag.NArg() != 3 {
		usage()
		os.Exit(1)
	}

	// Load a local .env if present; real environment variables win.
	_ = godotenv.Load()

	req := &config.Request{
		Provider:           flag.Arg(0),
		Environment:        flag.Arg(1),
		Project:            flag.Arg(2),
		SkipInfrastructure: *skipInfrastructure,
		SkipImages:         *skipImages,
		SkipApps:           *skipApps,
		Strict:             *strict,
	}
	if err := req.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	settings, err := config.LoadSettings(settingsFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading settings: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	o, err := orchestrator.New(ctx, req, settings)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	outcome, err := o.Run(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Deployment failed: %v\n", err)
		os.Exit(exitCode(outcome, err, req.Strict))
	}

	fmt.Println(outcome.Summary())
	fmt.Println(o.Instructions())

	if outcome.Degraded() {
		fmt.Fprintf(os.Stderr, "Deployment completed with warnings\n")
	} else {
		fmt.Printf("✓ Deployment successful!\n")
	}
	os.Exit(exitCode(outcome, nil, req.Strict))
}

// exitCode maps a run's result to the process exit status: 1 for a fatal
// error, 2 for a degraded run under -strict, 0 otherwise. A degraded run
// without -strict still counts as success so wrapping scripts keep working.
func exitCode(outcome *types.DeploymentOutcome, runErr error, strict bool) int {
	if runErr != nil {
		return 1
	}
	if strict && outcome.Degraded() {
		return 2
	}
	return 0
}
