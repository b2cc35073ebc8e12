// Package kube adapts the Kubernetes API to the ClusterClient capability
// interface: server-side apply of arbitrary manifests, CRD presence checks,
// deployment readiness, and annotation access.
package kube

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/api/meta"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/apimachinery/pkg/util/wait"
	"k8s.io/client-go/discovery"
	"k8s.io/client-go/dynamic"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/restmapper"
	"k8s.io/client-go/tools/clientcmd"
)

var crdGVR = schema.GroupVersionResource{
	Group:    "apiextensions.k8s.io",
	Version:  "v1",
	Resource: "customresourcedefinitions",
}

// Client implements platform.ClusterClient using client-go.
type Client struct {
	clientset kubernetes.Interface
	dynamic   dynamic.Interface
	mapper    meta.RESTMapper
}

// NewFromKubeconfig creates a Client from kubeconfig bytes without writing
// them to disk.
func NewFromKubeconfig(kubeconfig []byte) (*Client, error) {
	restConfig, err := clientcmd.RESTConfigFromKubeConfig(kubeconfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create REST config from kubeconfig: %w", err)
	}

	clientset, err := kubernetes.NewForConfig(restConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create kubernetes clientset: %w", err)
	}

	dynamicClient, err := dynamic.NewForConfig(restConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create dynamic client: %w", err)
	}

	discoveryClient, err := discovery.NewDiscoveryClientForConfig(restConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create discovery client: %w", err)
	}
	groupResources, err := restmapper.GetAPIGroupResources(discoveryClient)
	if err != nil {
		return nil, fmt.Errorf("failed to get API group resources: %w", err)
	}

	return &Client{
		clientset: clientset,
		dynamic:   dynamicClient,
		mapper:    restmapper.NewDiscoveryRESTMapper(groupResources),
	}, nil
}

// NewFromClients creates a Client from pre-configured clients. Used by tests
// with fakes.
func NewFromClients(clientset kubernetes.Interface, dynamicClient dynamic.Interface, mapper meta.RESTMapper) *Client {
	return &Client{clientset: clientset, dynamic: dynamicClient, mapper: mapper}
}

// resourceFor maps apiVersion/kind to a dynamic resource interface, scoped
// to the namespace when the resource is namespaced.
func (c *Client) resourceFor(apiVersion, kind, namespace string) (dynamic.ResourceInterface, error) {
	gv, err := schema.ParseGroupVersion(apiVersion)
	if err != nil {
		return nil, fmt.Errorf("invalid apiVersion %q: %w", apiVersion, err)
	}
	mapping, err := c.mapper.RESTMapping(schema.GroupKind{Group: gv.Group, Kind: kind}, gv.Version)
	if err != nil {
		return nil, fmt.Errorf("failed to get REST mapping for %s/%s: %w", apiVersion, kind, err)
	}
	ri := c.dynamic.Resource(mapping.Resource)
	if mapping.Scope.Name() == meta.RESTScopeNameNamespace {
		if namespace == "" {
			namespace = "default"
		}
		return ri.Namespace(namespace), nil
	}
	return ri, nil
}

// ObjectExists implements platform.ClusterClient.
func (c *Client) ObjectExists(ctx context.Context, apiVersion, kind, namespace, name string) (bool, error) {
	ri, err := c.resourceFor(apiVersion, kind, namespace)
	if err != nil {
		return false, err
	}
	_, err = ri.Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		if apierrors.IsNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("get %s %s: %w", kind, name, err)
	}
	return true, nil
}

// HasCRD implements platform.ClusterClient. The name is the full CRD name,
// e.g. "nodepools.karpenter.sh".
func (c *Client) HasCRD(ctx context.Context, name string) (bool, error) {
	_, err := c.dynamic.Resource(crdGVR).Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		if apierrors.IsNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("get CRD %s: %w", name, err)
	}
	return true, nil
}

// WaitForDeployment implements platform.ClusterClient. It polls until the
// deployment's ready replica count reaches its desired count.
func (c *Client) WaitForDeployment(ctx context.Context, namespace, name string, timeout time.Duration) error {
	err := wait.PollUntilContextTimeout(ctx, 5*time.Second, timeout, true, func(ctx context.Context) (bool, error) {
		dep, err := c.clientset.AppsV1().Deployments(namespace).Get(ctx, name, metav1.GetOptions{})
		if err != nil {
			if apierrors.IsNotFound(err) {
				return false, nil
			}
			return false, err
		}
		desired := int32(1)
		if dep.Spec.Replicas != nil {
			desired = *dep.Spec.Replicas
		}
		return dep.Status.ReadyReplicas >= desired, nil
	})
	if err != nil {
		return fmt.Errorf("waiting for deployment %s/%s: %w", namespace, name, err)
	}
	return nil
}

// GetAnnotation implements platform.ClusterClient.
func (c *Client) GetAnnotation(ctx context.Context, apiVersion, kind, namespace, name, key string) (string, error) {
	ri, err := c.resourceFor(apiVersion, kind, namespace)
	if err != nil {
		return "", err
	}
	obj, err := ri.Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		if apierrors.IsNotFound(err) {
			return "", nil
		}
		return "", fmt.Errorf("get %s %s: %w", kind, name, err)
	}
	return obj.GetAnnotations()[key], nil
}

// SetAnnotation implements platform.ClusterClient.
func (c *Client) SetAnnotation(ctx context.Context, apiVersion, kind, namespace, name, key, value string) error {
	ri, err := c.resourceFor(apiVersion, kind, namespace)
	if err != nil {
		return err
	}
	patch, err := json.Marshal(map[string]interface{}{
		"metadata": map[string]interface{}{
			"annotations": map[string]string{key: value},
		},
	})
	if err != nil {
		return err
	}
	if _, err := ri.Patch(ctx, name, types.MergePatchType, patch, metav1.PatchOptions{}); err != nil {
		return fmt.Errorf("annotate %s %s: %w", kind, name, err)
	}
	return nil
}
