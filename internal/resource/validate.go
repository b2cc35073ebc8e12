package resource

import (
	"encoding/json"
	"fmt"
)

// ValidationError reports a missing or malformed descriptor field.
type ValidationError struct {
	ID     string
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("descriptor %q: field %q: %s", e.ID, e.Field, e.Reason)
}

func invalid(id, field, reason string) error {
	return &ValidationError{ID: id, Field: field, Reason: reason}
}

// Validate checks the descriptor for required fields per kind. Critical
// fields like trust policies and chart versions are never defaulted: wrong
// values there are safety-relevant, so absence is an error.
func (d *Descriptor) Validate() error {
	if d.ID == "" {
		return invalid(d.ID, "id", "must not be empty")
	}
	switch p := d.EffectivePolicy(); p {
	case CreateOrSkipIfExists, CreateOrUpdate, CreateOrFail:
	default:
		return invalid(d.ID, "policy", fmt.Sprintf("unknown idempotency policy %q", p))
	}

	switch d.Kind {
	case KindIAMRole:
		if d.IAMRole == nil {
			return invalid(d.ID, "iamRole", "spec required for kind IAMRole")
		}
		if d.IAMRole.Name == "" {
			return invalid(d.ID, "iamRole.name", "must not be empty")
		}
		if d.IAMRole.TrustPolicy == "" {
			return invalid(d.ID, "iamRole.trustPolicy", "trust policy is required and never defaulted")
		}
		if !json.Valid([]byte(d.IAMRole.TrustPolicy)) {
			return invalid(d.ID, "iamRole.trustPolicy", "must be a valid JSON document")
		}
	case KindIAMPolicyAttachment:
		if d.PolicyAttachment == nil {
			return invalid(d.ID, "policyAttachment", "spec required for kind IAMPolicyAttachment")
		}
		if d.PolicyAttachment.RoleName == "" {
			return invalid(d.ID, "policyAttachment.roleName", "must not be empty")
		}
		if d.PolicyAttachment.PolicyARN == "" {
			return invalid(d.ID, "policyAttachment.policyArn", "must not be empty")
		}
	case KindInstanceProfile:
		if d.InstanceProfile == nil {
			return invalid(d.ID, "instanceProfile", "spec required for kind InstanceProfile")
		}
		if d.InstanceProfile.Name == "" {
			return invalid(d.ID, "instanceProfile.name", "must not be empty")
		}
		if d.InstanceProfile.RoleName == "" {
			return invalid(d.ID, "instanceProfile.roleName", "must not be empty")
		}
	case KindServiceLinkedRole:
		if d.ServiceLinkedRole == nil {
			return invalid(d.ID, "serviceLinkedRole", "spec required for kind ServiceLinkedRole")
		}
		if d.ServiceLinkedRole.ServiceName == "" {
			return invalid(d.ID, "serviceLinkedRole.serviceName", "must not be empty")
		}
	case KindCRDSet:
		if d.CRDSet == nil {
			return invalid(d.ID, "crdSet", "spec required for kind CRDSet")
		}
		if d.CRDSet.Manifests == "" {
			return invalid(d.ID, "crdSet.manifests", "must not be empty")
		}
		if len(d.CRDSet.Names) == 0 {
			return invalid(d.ID, "crdSet.names", "at least one CRD name is required for probing")
		}
	case KindHelmRelease:
		if d.HelmRelease == nil {
			return invalid(d.ID, "helmRelease", "spec required for kind HelmRelease")
		}
		if d.HelmRelease.ReleaseName == "" {
			return invalid(d.ID, "helmRelease.releaseName", "must not be empty")
		}
		if d.HelmRelease.Namespace == "" {
			return invalid(d.ID, "helmRelease.namespace", "must not be empty")
		}
		if d.HelmRelease.Chart == "" {
			return invalid(d.ID, "helmRelease.chart", "must not be empty")
		}
		if d.HelmRelease.Version == "" {
			return invalid(d.ID, "helmRelease.version", "chart version is required and never defaulted")
		}
	case KindNativeAPIObject:
		if d.Object == nil {
			return invalid(d.ID, "object", "spec required for kind NativeAPIObject")
		}
		if d.Object.Manifest == "" {
			return invalid(d.ID, "object.manifest", "must not be empty")
		}
		if d.Object.APIVersion == "" || d.Object.ObjectKind == "" || d.Object.Name == "" {
			return invalid(d.ID, "object", "apiVersion, objectKind and name are required for probing")
		}
	case KindResourceTag:
		if d.Tag == nil {
			return invalid(d.ID, "tag", "spec required for kind ResourceTag")
		}
		if d.Tag.Key == "" {
			return invalid(d.ID, "tag.key", "must not be empty")
		}
		if len(d.Tag.ResourceIDs) == 0 && d.Tag.Selector == "" {
			return invalid(d.ID, "tag", "either resourceIds or selector is required")
		}
		if d.Tag.Selector != "" && d.Tag.Selector != SelectorSubnets && d.Tag.Selector != SelectorSecurityGroups {
			return invalid(d.ID, "tag.selector", fmt.Sprintf("unknown selector %q", d.Tag.Selector))
		}
	case "":
		return invalid(d.ID, "kind", "must not be empty")
	default:
		return invalid(d.ID, "kind", fmt.Sprintf("unknown kind %q", d.Kind))
	}

	return nil
}

// ValidateAll validates every descriptor in the set, returning the first
// error encountered.
func ValidateAll(descriptors []Descriptor) error {
	for i := range descriptors {
		if err := descriptors[i].Validate(); err != nil {
			return err
		}
	}
	return nil
}
