package resource

// Kind identifies the type of externally managed object a descriptor
// describes. Each kind has its own spec struct on Descriptor.
type Kind string

const (
	// KindIAMRole is a cloud identity role with a trust policy.
	KindIAMRole Kind = "IAMRole"
	// KindIAMPolicyAttachment attaches a managed policy to a role.
	KindIAMPolicyAttachment Kind = "IAMPolicyAttachment"
	// KindInstanceProfile is an instance profile wrapping a role.
	KindInstanceProfile Kind = "InstanceProfile"
	// KindServiceLinkedRole is a provider-managed service-linked role.
	KindServiceLinkedRole Kind = "ServiceLinkedRole"
	// KindCRDSet is a set of CustomResourceDefinitions applied from manifests.
	KindCRDSet Kind = "CRDSet"
	// KindHelmRelease is a deployed Helm chart release.
	KindHelmRelease Kind = "HelmRelease"
	// KindNativeAPIObject is an arbitrary typed cluster object.
	KindNativeAPIObject Kind = "NativeAPIObject"
	// KindResourceTag is a key/value tag on a set of cloud resources.
	KindResourceTag Kind = "ResourceTag"
)

// IdempotencyPolicy controls how the reconciler treats an already-existing
// resource.
type IdempotencyPolicy string

const (
	// CreateOrSkipIfExists leaves an existing resource untouched even when
	// it does not match the desired state.
	CreateOrSkipIfExists IdempotencyPolicy = "createOrSkipIfExists"
	// CreateOrUpdate converges an existing resource to the desired state.
	CreateOrUpdate IdempotencyPolicy = "createOrUpdate"
	// CreateOrFail fails the resource if it already exists.
	CreateOrFail IdempotencyPolicy = "createOrFail"
)

// Descriptor identifies one externally managed object and its desired state.
// Exactly one kind-specific spec field must be set, matching Kind.
type Descriptor struct {
	// ID is the stable unique key of the resource within a descriptor set,
	// e.g. "node-role" or "helm-release:karpenter".
	ID string `yaml:"id"`

	// Kind selects the resource type and which spec field applies.
	Kind Kind `yaml:"kind"`

	// DependsOn lists descriptor IDs that must be reconciled first.
	DependsOn []string `yaml:"dependsOn,omitempty"`

	// Policy controls idempotent behavior. Empty defaults to CreateOrUpdate.
	Policy IdempotencyPolicy `yaml:"policy,omitempty"`

	IAMRole           *IAMRoleSpec           `yaml:"iamRole,omitempty"`
	PolicyAttachment  *PolicyAttachmentSpec  `yaml:"policyAttachment,omitempty"`
	InstanceProfile   *InstanceProfileSpec   `yaml:"instanceProfile,omitempty"`
	ServiceLinkedRole *ServiceLinkedRoleSpec `yaml:"serviceLinkedRole,omitempty"`
	CRDSet            *CRDSetSpec            `yaml:"crdSet,omitempty"`
	HelmRelease       *HelmReleaseSpec       `yaml:"helmRelease,omitempty"`
	Object            *ObjectSpec            `yaml:"object,omitempty"`
	Tag               *TagSpec               `yaml:"tag,omitempty"`
}

// EffectivePolicy returns the idempotency policy, defaulting to
// CreateOrUpdate when unset.
func (d *Descriptor) EffectivePolicy() IdempotencyPolicy {
	if d.Policy == "" {
		return CreateOrUpdate
	}
	return d.Policy
}

// IAMRoleSpec describes a cloud identity role.
type IAMRoleSpec struct {
	// Name is the role name in the cloud account.
	Name string `yaml:"name"`
	// TrustPolicy is the assume-role trust policy document (JSON). It is
	// compared structurally against the live document, since the cloud API
	// may reorder or reformat it.
	TrustPolicy string `yaml:"trustPolicy"`
	// Description is optional role metadata.
	Description string `yaml:"description,omitempty"`
	// Tags are optional role tags.
	Tags map[string]string `yaml:"tags,omitempty"`
}

// PolicyAttachmentSpec attaches a managed policy to a role.
type PolicyAttachmentSpec struct {
	RoleName  string `yaml:"roleName"`
	PolicyARN string `yaml:"policyArn"`
}

// InstanceProfileSpec describes an instance profile wrapping a role.
type InstanceProfileSpec struct {
	Name     string `yaml:"name"`
	RoleName string `yaml:"roleName"`
}

// ServiceLinkedRoleSpec describes a provider-managed service-linked role.
type ServiceLinkedRoleSpec struct {
	// ServiceName is the service principal, e.g. "spot.amazonaws.com".
	ServiceName string `yaml:"serviceName"`
}

// CRDSetSpec describes a set of CustomResourceDefinitions applied from a
// multi-document manifest.
type CRDSetSpec struct {
	// Manifests is the multi-document YAML containing the CRDs.
	Manifests string `yaml:"manifests"`
	// Names are the CRD names expected to exist after apply, used by the
	// prober.
	Names []string `yaml:"names"`
}

// HelmReleaseSpec describes a deployed Helm chart release.
type HelmReleaseSpec struct {
	ReleaseName string `yaml:"releaseName"`
	Namespace   string `yaml:"namespace"`
	// Repository is the chart repository URL (or oci:// reference).
	Repository string `yaml:"repository"`
	Chart      string `yaml:"chart"`
	Version    string `yaml:"version"`
	// Values are the declared value overrides, compared against the
	// deployed release configuration.
	Values map[string]interface{} `yaml:"values,omitempty"`
	// ReadyDeployment, when set, names the controller Deployment whose
	// readiness confirms the rollout after an install or upgrade.
	ReadyDeployment string `yaml:"readyDeployment,omitempty"`
}

// ObjectSpec describes an arbitrary typed cluster object.
type ObjectSpec struct {
	// Manifest is the YAML for the object.
	Manifest string `yaml:"manifest"`
	// APIVersion, ObjectKind, Namespace, and Name identify the object for
	// probing. Namespace is empty for cluster-scoped objects.
	APIVersion string `yaml:"apiVersion"`
	ObjectKind string `yaml:"objectKind"`
	Namespace  string `yaml:"namespace,omitempty"`
	Name       string `yaml:"name"`
}

// TagSpec describes a key/value tag on a set of cloud resources. The
// resource set is either listed explicitly or discovered from the cluster's
// network resources.
type TagSpec struct {
	Key   string `yaml:"key"`
	Value string `yaml:"value"`
	// ResourceIDs lists the cloud resource IDs to tag. Empty means discover
	// via Selector.
	ResourceIDs []string `yaml:"resourceIds,omitempty"`
	// Selector discovers resources by cluster association: "subnets" or
	// "security-groups".
	Selector string `yaml:"selector,omitempty"`
}

// Tag selector values.
const (
	SelectorSubnets        = "subnets"
	SelectorSecurityGroups = "security-groups"
)
