// Package cluster resolves cluster access: kubeconfig discovery over an
// ordered candidate list, client construction, and the connectivity check
// the deployer gates on.
package cluster

import (
	"fmt"
	"os"
	"path/filepath"

	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
	"k8s.io/client-go/util/homedir"

	"github.com/cloudlaunch/cloudlaunch/pkg/logging"
)

// ResolveKubeconfig returns the first existing kubeconfig among the ordered
// candidates: the explicit path, $KUBECONFIG, then ~/.kube/config. An empty
// return with nil error means no file exists and in-cluster config should be
// tried; an explicit path that does not exist is an error, because the
// operator asked for that file specifically.
func ResolveKubeconfig(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("kubeconfig %s not found: %w", explicit, err)
		}
		return explicit, nil
	}

	if env := os.Getenv("KUBECONFIG"); env != "" {
		if _, err := os.Stat(env); err == nil {
			return env, nil
		}
		logging.Warn("KUBECONFIG is set but the file does not exist", "path", env)
	}

	home := filepath.Join(homedir.HomeDir(), ".kube", "config")
	if _, err := os.Stat(home); err == nil {
		return home, nil
	}

	return "", nil
}

// BuildClient creates a Kubernetes client from the given kubeconfig path,
// falling back to in-cluster configuration when the path is empty.
func BuildClient(kubeconfig string) (kubernetes.Interface, error) {
	var cfg *rest.Config
	var err error

	if kubeconfig == "" {
		cfg, err = rest.InClusterConfig()
		if err != nil {
			return nil, fmt.Errorf("no kubeconfig found and in-cluster config unavailable: %w", err)
		}
	} else {
		cfg, err = clientcmd.BuildConfigFromFlags("", kubeconfig)
		if err != nil {
			return nil, fmt.Errorf("failed to build kube config from %s: %w", kubeconfig, err)
		}
	}

	client, err := kubernetes.NewForConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create kubernetes client: %w", err)
	}
	return client, nil
}

// CheckConnectivity verifies the cluster responds. A cluster that cannot be
// reached makes every later phase meaningless, so callers treat an error
// here as fatal.
func CheckConnectivity(client kubernetes.Interface) error {
	version, err := client.Discovery().ServerVersion()
	if err != nil {
		return fmt.Errorf("cluster is unreachable (check credentials and network): %w", err)
	}
	logging.Info("cluster reachable", "serverVersion", version.GitVersion)
	return nil
}
