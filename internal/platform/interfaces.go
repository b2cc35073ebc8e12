package platform

import (
	"context"
	"time"
)

// Role is the observed state of a cloud identity role.
type Role struct {
	Name string
	ARN  string
	// TrustPolicy is the live assume-role policy document (JSON, possibly
	// URL-decoded by the adapter).
	TrustPolicy string
	Description string
	Tags        map[string]string
}

// InstanceProfile is the observed state of an instance profile.
type InstanceProfile struct {
	Name      string
	ARN       string
	RoleNames []string
}

// ReleaseMeta is the metadata of a deployed package release.
type ReleaseMeta struct {
	Name      string
	Namespace string
	Chart     string
	Version   string
	// Values are the user-supplied value overrides recorded with the
	// deployed release.
	Values map[string]interface{}
	// Status is the deployment status reported by the package engine.
	Status string
}

// ReleaseSpec parameterizes a package deployment.
type ReleaseSpec struct {
	Name       string
	Namespace  string
	Repository string
	Chart      string
	Version    string
	Values     map[string]interface{}
	Timeout    time.Duration
}

// CloudProvider exposes the cloud identity and network operations the
// orchestrator needs. Lookup methods return (nil, nil) or a nil map when the
// resource does not exist; errors are reserved for API failures.
type CloudProvider interface {
	GetRole(ctx context.Context, name string) (*Role, error)
	CreateRole(ctx context.Context, name, trustPolicy, description string, tags map[string]string) error
	UpdateRoleTrustPolicy(ctx context.Context, name, trustPolicy string) error
	DeleteRole(ctx context.Context, name string) error

	ListAttachedPolicies(ctx context.Context, roleName string) ([]string, error)
	AttachRolePolicy(ctx context.Context, roleName, policyARN string) error
	DetachRolePolicy(ctx context.Context, roleName, policyARN string) error

	GetInstanceProfile(ctx context.Context, name string) (*InstanceProfile, error)
	CreateInstanceProfile(ctx context.Context, name, roleName string) error
	DeleteInstanceProfile(ctx context.Context, name string) error

	GetServiceLinkedRole(ctx context.Context, serviceName string) (*Role, error)
	CreateServiceLinkedRole(ctx context.Context, serviceName string) error

	// GetResourceTags returns the tags on one cloud resource. A missing
	// resource is an error; a resource with no tags returns an empty map.
	GetResourceTags(ctx context.Context, resourceID string) (map[string]string, error)
	TagResources(ctx context.Context, resourceIDs []string, key, value string) error
	UntagResources(ctx context.Context, resourceIDs []string, key string) error

	// DiscoverSubnets and DiscoverSecurityGroups list the network resources
	// associated with the named cluster.
	DiscoverSubnets(ctx context.Context, clusterName string) ([]string, error)
	DiscoverSecurityGroups(ctx context.Context, clusterName string) ([]string, error)
}

// ClusterClient exposes the cluster API operations the orchestrator needs.
type ClusterClient interface {
	// ApplyManifests applies multi-document YAML using server-side apply.
	ApplyManifests(ctx context.Context, manifests string, fieldManager string) error
	// DeleteManifests deletes every object in the multi-document YAML,
	// treating "not found" as success.
	DeleteManifests(ctx context.Context, manifests string) error

	// ObjectExists checks whether a typed object exists. Namespace is empty
	// for cluster-scoped objects.
	ObjectExists(ctx context.Context, apiVersion, kind, namespace, name string) (bool, error)
	// HasCRD checks whether a CustomResourceDefinition is registered.
	HasCRD(ctx context.Context, name string) (bool, error)

	// WaitForDeployment blocks until the deployment reports ready replicas.
	WaitForDeployment(ctx context.Context, namespace, name string, timeout time.Duration) error

	// GetAnnotation reads one annotation from a namespaced object; empty
	// string when absent.
	GetAnnotation(ctx context.Context, apiVersion, kind, namespace, name, key string) (string, error)
	// SetAnnotation writes one annotation on a namespaced object.
	SetAnnotation(ctx context.Context, apiVersion, kind, namespace, name, key, value string) error
}

// PackageDeployer renders and deploys parameterized package templates.
type PackageDeployer interface {
	// GetRelease returns the deployed release metadata, or (nil, nil) when
	// the release does not exist.
	GetRelease(ctx context.Context, namespace, name string) (*ReleaseMeta, error)
	// InstallOrUpgrade installs the release or upgrades it in place.
	InstallOrUpgrade(ctx context.Context, spec ReleaseSpec) error
	// Uninstall removes the release, treating "not found" as success.
	Uninstall(ctx context.Context, namespace, name string) error
}

// Capabilities bundles the adapter set handed to the prober and reconciler.
// Individual fields may be nil when a run's descriptor set never touches the
// corresponding system.
type Capabilities struct {
	Cloud    CloudProvider
	Cluster  ClusterClient
	Deployer PackageDeployer
}
