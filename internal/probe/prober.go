// Package probe answers "does this resource exist, and does it match the
// desired state?" by querying the live environment. Probing never mutates:
// "not found" is a normal observation, and transient API failures surface as
// Err so callers never mistake an unreachable API for an absent resource.
package probe

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/addonctl/addonctl/internal/platform"
	"github.com/addonctl/addonctl/internal/resource"
)

// RevisionAnnotation carries the fingerprint of the manifest last applied to
// a native object, so a changed manifest shows up as drift rather than
// hiding behind bare existence.
const RevisionAnnotation = "addonctl.io/revision"

// ManifestRevision fingerprints a manifest for drift detection.
func ManifestRevision(manifest string) string {
	sum := sha256.Sum256([]byte(manifest))
	return hex.EncodeToString(sum[:])
}

// Observation is the result of probing one resource. Constructed fresh per
// reconciliation pass; never cached across runs.
type Observation struct {
	Exists  bool
	Matches bool
	// Details is an opaque diagnostic payload for logs and reports.
	Details string
	// Err is set on transient API failure. It means "unknown", not absent.
	Err error
}

func errored(err error) Observation {
	return Observation{Err: err}
}

// Prober queries the live environment through the capability interfaces.
type Prober struct {
	caps        platform.Capabilities
	clusterName string
}

// New creates a prober for the given capability set and cluster identity.
func New(caps platform.Capabilities, clusterName string) *Prober {
	return &Prober{caps: caps, clusterName: clusterName}
}

// Probe observes the current state of one resource.
func (p *Prober) Probe(ctx context.Context, d *resource.Descriptor) Observation {
	switch d.Kind {
	case resource.KindIAMRole:
		return p.probeRole(ctx, d.IAMRole)
	case resource.KindIAMPolicyAttachment:
		return p.probeAttachment(ctx, d.PolicyAttachment)
	case resource.KindInstanceProfile:
		return p.probeInstanceProfile(ctx, d.InstanceProfile)
	case resource.KindServiceLinkedRole:
		return p.probeServiceLinkedRole(ctx, d.ServiceLinkedRole)
	case resource.KindCRDSet:
		return p.probeCRDSet(ctx, d.CRDSet)
	case resource.KindHelmRelease:
		return p.probeRelease(ctx, d.HelmRelease)
	case resource.KindNativeAPIObject:
		return p.probeObject(ctx, d.Object)
	case resource.KindResourceTag:
		return p.probeTag(ctx, d.Tag)
	default:
		return errored(fmt.Errorf("no prober for kind %q", d.Kind))
	}
}

func (p *Prober) probeRole(ctx context.Context, spec *resource.IAMRoleSpec) Observation {
	role, err := p.caps.Cloud.GetRole(ctx, spec.Name)
	if err != nil {
		return errored(fmt.Errorf("getting role %s: %w", spec.Name, err))
	}
	if role == nil {
		return Observation{Details: fmt.Sprintf("role %s absent", spec.Name)}
	}
	equal, err := TrustPolicyEqual(spec.TrustPolicy, role.TrustPolicy)
	if err != nil {
		return errored(fmt.Errorf("comparing trust policy of %s: %w", spec.Name, err))
	}
	if !equal {
		return Observation{Exists: true, Details: fmt.Sprintf("role %s exists with divergent trust policy", spec.Name)}
	}
	return Observation{Exists: true, Matches: true, Details: fmt.Sprintf("role %s in sync", spec.Name)}
}

func (p *Prober) probeAttachment(ctx context.Context, spec *resource.PolicyAttachmentSpec) Observation {
	attached, err := p.caps.Cloud.ListAttachedPolicies(ctx, spec.RoleName)
	if err != nil {
		return errored(fmt.Errorf("listing policies of role %s: %w", spec.RoleName, err))
	}
	for _, arn := range attached {
		if arn == spec.PolicyARN {
			return Observation{Exists: true, Matches: true, Details: fmt.Sprintf("%s attached to %s", spec.PolicyARN, spec.RoleName)}
		}
	}
	return Observation{Details: fmt.Sprintf("%s not attached to %s", spec.PolicyARN, spec.RoleName)}
}

func (p *Prober) probeInstanceProfile(ctx context.Context, spec *resource.InstanceProfileSpec) Observation {
	profile, err := p.caps.Cloud.GetInstanceProfile(ctx, spec.Name)
	if err != nil {
		return errored(fmt.Errorf("getting instance profile %s: %w", spec.Name, err))
	}
	if profile == nil {
		return Observation{Details: fmt.Sprintf("instance profile %s absent", spec.Name)}
	}
	for _, role := range profile.RoleNames {
		if role == spec.RoleName {
			return Observation{Exists: true, Matches: true, Details: fmt.Sprintf("instance profile %s in sync", spec.Name)}
		}
	}
	return Observation{Exists: true, Details: fmt.Sprintf("instance profile %s missing role %s", spec.Name, spec.RoleName)}
}

func (p *Prober) probeServiceLinkedRole(ctx context.Context, spec *resource.ServiceLinkedRoleSpec) Observation {
	role, err := p.caps.Cloud.GetServiceLinkedRole(ctx, spec.ServiceName)
	if err != nil {
		return errored(fmt.Errorf("getting service-linked role for %s: %w", spec.ServiceName, err))
	}
	if role == nil {
		return Observation{Details: fmt.Sprintf("service-linked role for %s absent", spec.ServiceName)}
	}
	// Service-linked roles carry no user-managed state to drift.
	return Observation{Exists: true, Matches: true, Details: fmt.Sprintf("service-linked role for %s present", spec.ServiceName)}
}

func (p *Prober) probeCRDSet(ctx context.Context, spec *resource.CRDSetSpec) Observation {
	present := 0
	for _, name := range spec.Names {
		ok, err := p.caps.Cluster.HasCRD(ctx, name)
		if err != nil {
			return errored(fmt.Errorf("checking CRD %s: %w", name, err))
		}
		if ok {
			present++
		}
	}
	switch {
	case present == 0:
		return Observation{Details: "no CRDs of the set registered"}
	case present < len(spec.Names):
		return Observation{Exists: true, Details: fmt.Sprintf("%d/%d CRDs registered", present, len(spec.Names))}
	default:
		return Observation{Exists: true, Matches: true, Details: fmt.Sprintf("all %d CRDs registered", present)}
	}
}

func (p *Prober) probeRelease(ctx context.Context, spec *resource.HelmReleaseSpec) Observation {
	release, err := p.caps.Deployer.GetRelease(ctx, spec.Namespace, spec.ReleaseName)
	if err != nil {
		return errored(fmt.Errorf("getting release %s/%s: %w", spec.Namespace, spec.ReleaseName, err))
	}
	if release == nil {
		return Observation{Details: fmt.Sprintf("release %s/%s absent", spec.Namespace, spec.ReleaseName)}
	}
	if release.Chart != spec.Chart || release.Version != spec.Version {
		return Observation{
			Exists:  true,
			Details: fmt.Sprintf("release %s deployed as %s-%s, want %s-%s", spec.ReleaseName, release.Chart, release.Version, spec.Chart, spec.Version),
		}
	}
	if !ValuesEqual(spec.Values, release.Values) {
		return Observation{Exists: true, Details: fmt.Sprintf("release %s has divergent values", spec.ReleaseName)}
	}
	return Observation{Exists: true, Matches: true, Details: fmt.Sprintf("release %s in sync", spec.ReleaseName)}
}

func (p *Prober) probeObject(ctx context.Context, spec *resource.ObjectSpec) Observation {
	exists, err := p.caps.Cluster.ObjectExists(ctx, spec.APIVersion, spec.ObjectKind, spec.Namespace, spec.Name)
	if err != nil {
		return errored(fmt.Errorf("checking %s %s: %w", spec.ObjectKind, spec.Name, err))
	}
	if !exists {
		return Observation{Details: fmt.Sprintf("%s %s absent", spec.ObjectKind, spec.Name)}
	}
	rev, err := p.caps.Cluster.GetAnnotation(ctx, spec.APIVersion, spec.ObjectKind, spec.Namespace, spec.Name, RevisionAnnotation)
	if err != nil {
		return errored(fmt.Errorf("reading revision of %s %s: %w", spec.ObjectKind, spec.Name, err))
	}
	if rev != ManifestRevision(spec.Manifest) {
		return Observation{Exists: true, Details: fmt.Sprintf("%s %s exists with stale manifest revision", spec.ObjectKind, spec.Name)}
	}
	return Observation{Exists: true, Matches: true, Details: fmt.Sprintf("%s %s in sync", spec.ObjectKind, spec.Name)}
}

func (p *Prober) probeTag(ctx context.Context, spec *resource.TagSpec) Observation {
	ids, err := ResolveTagTargets(ctx, p.caps.Cloud, spec, p.clusterName)
	if err != nil {
		return errored(err)
	}
	if len(ids) == 0 {
		return errored(fmt.Errorf("tag selector %q matched no resources for cluster %s", spec.Selector, p.clusterName))
	}

	tagged := 0
	for _, id := range ids {
		tags, err := p.caps.Cloud.GetResourceTags(ctx, id)
		if err != nil {
			return errored(fmt.Errorf("reading tags of %s: %w", id, err))
		}
		if tags[spec.Key] == spec.Value {
			tagged++
		}
	}
	switch {
	case tagged == len(ids):
		return Observation{Exists: true, Matches: true, Details: fmt.Sprintf("%s=%s on all %d resources", spec.Key, spec.Value, len(ids))}
	case tagged > 0:
		return Observation{Exists: true, Details: fmt.Sprintf("%s=%s on %d/%d resources", spec.Key, spec.Value, tagged, len(ids))}
	default:
		return Observation{Details: fmt.Sprintf("%s absent on %d resources", spec.Key, len(ids))}
	}
}

// ResolveTagTargets expands a tag spec to concrete cloud resource IDs,
// either the explicit list or a discovery by cluster association.
func ResolveTagTargets(ctx context.Context, cloud platform.CloudProvider, spec *resource.TagSpec, clusterName string) ([]string, error) {
	if len(spec.ResourceIDs) > 0 {
		return spec.ResourceIDs, nil
	}
	switch spec.Selector {
	case resource.SelectorSubnets:
		ids, err := cloud.DiscoverSubnets(ctx, clusterName)
		if err != nil {
			return nil, fmt.Errorf("discovering subnets of %s: %w", clusterName, err)
		}
		return ids, nil
	case resource.SelectorSecurityGroups:
		ids, err := cloud.DiscoverSecurityGroups(ctx, clusterName)
		if err != nil {
			return nil, fmt.Errorf("discovering security groups of %s: %w", clusterName, err)
		}
		return ids, nil
	default:
		return nil, fmt.Errorf("unknown tag selector %q", spec.Selector)
	}
}
