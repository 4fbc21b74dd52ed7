package deploy

import (
	"context"
	"fmt"
	"os"
	"strings"

	appsv1 "k8s.io/api/apps/v1"
	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
	networkingv1 "k8s.io/api/networking/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/client-go/kubernetes/scheme"

	"github.com/cloudlaunch/cloudlaunch/pkg/logging"
)

// applyGroup applies every file in a manifest group.
func (d *Deployer) applyGroup(ctx context.Context, group string) error {
	for _, path := range d.set.Files(group) {
		if err := d.applyFile(ctx, path); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
	}
	return nil
}

// applyFile decodes each YAML document in a rendered manifest file and
// applies it. Decoding uses the client-go scheme, so only kinds the deployer
// knows how to create are accepted; an unknown kind is an error rather than
// a silent skip.
func (d *Deployer) applyFile(ctx context.Context, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read manifest: %w", err)
	}

	for _, doc := range strings.Split(string(data), "\n---") {
		doc = strings.TrimSpace(doc)
		if doc == "" {
			continue
		}

		obj, _, err := scheme.Codecs.UniversalDeserializer().Decode([]byte(doc), nil, nil)
		if err != nil {
			return fmt.Errorf("failed to decode manifest document: %w", err)
		}
		if err := d.applyObject(ctx, obj); err != nil {
			return err
		}
	}
	return nil
}

// applyObject creates the object, updating it when it already exists.
// Immutable resources (PVCs) are left untouched when present.
func (d *Deployer) applyObject(ctx context.Context, obj runtime.Object) error {
	ns := d.req.Namespace()

	switch o := obj.(type) {
	case *corev1.Namespace:
		_, err := d.client.CoreV1().Namespaces().Create(ctx, o, metav1.CreateOptions{})
		if apierrors.IsAlreadyExists(err) {
			logging.Debug("namespace already exists", "namespace", o.Name)
			return nil
		}
		return wrapApply("namespace", o.Name, err)

	case *corev1.Secret:
		ns := defaultNS(o.Namespace, ns)
		_, err := d.client.CoreV1().Secrets(ns).Create(ctx, o, metav1.CreateOptions{})
		if apierrors.IsAlreadyExists(err) {
			_, err = d.client.CoreV1().Secrets(ns).Update(ctx, o, metav1.UpdateOptions{})
		}
		return wrapApply("secret", o.Name, err)

	case *corev1.ConfigMap:
		ns := defaultNS(o.Namespace, ns)
		_, err := d.client.CoreV1().ConfigMaps(ns).Create(ctx, o, metav1.CreateOptions{})
		if apierrors.IsAlreadyExists(err) {
			_, err = d.client.CoreV1().ConfigMaps(ns).Update(ctx, o, metav1.UpdateOptions{})
		}
		return wrapApply("configmap", o.Name, err)

	case *corev1.Service:
		ns := defaultNS(o.Namespace, ns)
		_, err := d.client.CoreV1().Services(ns).Create(ctx, o, metav1.CreateOptions{})
		if apierrors.IsAlreadyExists(err) {
			// ClusterIP and resourceVersion are immutable on update;
			// carry them over from the live object.
			existing, getErr := d.client.CoreV1().Services(ns).Get(ctx, o.Name, metav1.GetOptions{})
			if getErr != nil {
				return wrapApply("service", o.Name, getErr)
			}
			o.ResourceVersion = existing.ResourceVersion
			o.Spec.ClusterIP = existing.Spec.ClusterIP
			_, err = d.client.CoreV1().Services(ns).Update(ctx, o, metav1.UpdateOptions{})
		}
		return wrapApply("service", o.Name, err)

	case *corev1.PersistentVolumeClaim:
		ns := defaultNS(o.Namespace, ns)
		_, err := d.client.CoreV1().PersistentVolumeClaims(ns).Create(ctx, o, metav1.CreateOptions{})
		if apierrors.IsAlreadyExists(err) {
			// PVC specs are immutable; keep the existing claim.
			logging.Debug("persistentvolumeclaim already exists", "name", o.Name)
			return nil
		}
		return wrapApply("persistentvolumeclaim", o.Name, err)

	case *appsv1.Deployment:
		ns := defaultNS(o.Namespace, ns)
		_, err := d.client.AppsV1().Deployments(ns).Create(ctx, o, metav1.CreateOptions{})
		if apierrors.IsAlreadyExists(err) {
			_, err = d.client.AppsV1().Deployments(ns).Update(ctx, o, metav1.UpdateOptions{})
		}
		return wrapApply("deployment", o.Name, err)

	case *appsv1.StatefulSet:
		ns := defaultNS(o.Namespace, ns)
		_, err := d.client.AppsV1().StatefulSets(ns).Create(ctx, o, metav1.CreateOptions{})
		if apierrors.IsAlreadyExists(err) {
			_, err = d.client.AppsV1().StatefulSets(ns).Update(ctx, o, metav1.UpdateOptions{})
		}
		return wrapApply("statefulset", o.Name, err)

	case *networkingv1.Ingress:
		ns := defaultNS(o.Namespace, ns)
		_, err := d.client.NetworkingV1().Ingresses(ns).Create(ctx, o, metav1.CreateOptions{})
		if apierrors.IsAlreadyExists(err) {
			_, err = d.client.NetworkingV1().Ingresses(ns).Update(ctx, o, metav1.UpdateOptions{})
		}
		return wrapApply("ingress", o.Name, err)

	case *batchv1.Job:
		// Jobs outside the init-job phase are applied once; a pre-existing
		// job of the same name is left alone (job specs are immutable).
		ns := defaultNS(o.Namespace, ns)
		_, err := d.client.BatchV1().Jobs(ns).Create(ctx, o, metav1.CreateOptions{})
		if apierrors.IsAlreadyExists(err) {
			logging.Debug("job already exists", "name", o.Name)
			return nil
		}
		return wrapApply("job", o.Name, err)

	default:
		return fmt.Errorf("unsupported manifest kind %T", obj)
	}
}

func defaultNS(objNS, fallback string) string {
	if objNS != "" {
		return objNS
	}
	return fallback
}

func wrapApply(kind, name string, err error) error {
	if err != nil {
		return fmt.Errorf("failed to apply %s %s: %w", kind, name, err)
	}
	return nil
}
