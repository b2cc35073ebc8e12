package probe

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/addonctl/addonctl/internal/platform"
	"github.com/addonctl/addonctl/internal/resource"
)

const trustPolicy = `{"Version":"2012-10-17","Statement":[{"Effect":"Allow","Principal":{"Service":"ec2.amazonaws.com"},"Action":"sts:AssumeRole"}]}`

func newProber(cloud *platform.FakeCloud, cluster *platform.FakeCluster, deployer *platform.FakeDeployer) *Prober {
	return New(platform.Capabilities{Cloud: cloud, Cluster: cluster, Deployer: deployer}, "test-cluster")
}

func TestProbe_RoleAbsent(t *testing.T) {
	cloud := platform.NewFakeCloud()
	p := newProber(cloud, nil, nil)

	obs := p.Probe(context.Background(), &resource.Descriptor{
		ID:      "node-role",
		Kind:    resource.KindIAMRole,
		IAMRole: &resource.IAMRoleSpec{Name: "NodeRole", TrustPolicy: trustPolicy},
	})

	require.NoError(t, obs.Err)
	assert.False(t, obs.Exists)
	assert.False(t, obs.Matches)
}

func TestProbe_RoleInSyncDespiteReformattedPolicy(t *testing.T) {
	cloud := platform.NewFakeCloud()
	cloud.Roles["NodeRole"] = &platform.Role{
		Name: "NodeRole",
		TrustPolicy: `{
		  "Statement": [{"Action": "sts:AssumeRole", "Principal": {"Service": "ec2.amazonaws.com"}, "Effect": "Allow"}],
		  "Version": "2012-10-17"
		}`,
	}
	p := newProber(cloud, nil, nil)

	obs := p.Probe(context.Background(), &resource.Descriptor{
		ID:      "node-role",
		Kind:    resource.KindIAMRole,
		IAMRole: &resource.IAMRoleSpec{Name: "NodeRole", TrustPolicy: trustPolicy},
	})

	require.NoError(t, obs.Err)
	assert.True(t, obs.Exists)
	assert.True(t, obs.Matches)
}

func TestProbe_TransientErrorIsNotAbsence(t *testing.T) {
	cloud := platform.NewFakeCloud()
	cloud.FailWith("GetRole", errors.New("throttled"))
	p := newProber(cloud, nil, nil)

	obs := p.Probe(context.Background(), &resource.Descriptor{
		ID:      "node-role",
		Kind:    resource.KindIAMRole,
		IAMRole: &resource.IAMRoleSpec{Name: "NodeRole", TrustPolicy: trustPolicy},
	})

	require.Error(t, obs.Err)
	assert.False(t, obs.Exists, "probe error must not read as absence")
}

func TestProbe_PolicyAttachment(t *testing.T) {
	cloud := platform.NewFakeCloud()
	cloud.AttachedPolicies["NodeRole"] = []string{"arn:aws:iam::aws:policy/AmazonEKSWorkerNodePolicy"}
	p := newProber(cloud, nil, nil)

	d := &resource.Descriptor{
		ID:               "attach",
		Kind:             resource.KindIAMPolicyAttachment,
		PolicyAttachment: &resource.PolicyAttachmentSpec{RoleName: "NodeRole", PolicyARN: "arn:aws:iam::aws:policy/AmazonEKSWorkerNodePolicy"},
	}
	obs := p.Probe(context.Background(), d)
	require.NoError(t, obs.Err)
	assert.True(t, obs.Matches)

	d.PolicyAttachment.PolicyARN = "arn:aws:iam::aws:policy/AmazonEKS_CNI_Policy"
	obs = p.Probe(context.Background(), d)
	require.NoError(t, obs.Err)
	assert.False(t, obs.Exists)
}

func TestProbe_CRDSetPartial(t *testing.T) {
	cluster := platform.NewFakeCluster()
	cluster.CRDs["nodepools.karpenter.sh"] = true
	p := newProber(nil, cluster, nil)

	d := &resource.Descriptor{
		ID:   "crds",
		Kind: resource.KindCRDSet,
		CRDSet: &resource.CRDSetSpec{
			Manifests: "---",
			Names:     []string{"nodepools.karpenter.sh", "ec2nodeclasses.karpenter.k8s.aws"},
		},
	}
	obs := p.Probe(context.Background(), d)
	require.NoError(t, obs.Err)
	assert.True(t, obs.Exists)
	assert.False(t, obs.Matches)

	cluster.CRDs["ec2nodeclasses.karpenter.k8s.aws"] = true
	obs = p.Probe(context.Background(), d)
	require.NoError(t, obs.Err)
	assert.True(t, obs.Matches)
}

func TestProbe_HelmReleaseDrift(t *testing.T) {
	deployer := platform.NewFakeDeployer()
	deployer.Releases["karpenter/karpenter"] = &platform.ReleaseMeta{
		Name: "karpenter", Namespace: "karpenter", Chart: "karpenter", Version: "1.0.5",
	}
	p := newProber(nil, nil, deployer)

	d := &resource.Descriptor{
		ID:   "helm-release:karpenter",
		Kind: resource.KindHelmRelease,
		HelmRelease: &resource.HelmReleaseSpec{
			ReleaseName: "karpenter", Namespace: "karpenter",
			Repository: "oci://public.ecr.aws/karpenter", Chart: "karpenter", Version: "1.0.6",
		},
	}
	obs := p.Probe(context.Background(), d)
	require.NoError(t, obs.Err)
	assert.True(t, obs.Exists)
	assert.False(t, obs.Matches, "version drift must not match")

	deployer.Releases["karpenter/karpenter"].Version = "1.0.6"
	obs = p.Probe(context.Background(), d)
	require.NoError(t, obs.Err)
	assert.True(t, obs.Matches)
}

func TestProbe_ObjectRevisionDrift(t *testing.T) {
	manifest := "apiVersion: karpenter.sh/v1\nkind: NodePool\nmetadata:\n  name: default\n"
	key := platform.ObjectKey("karpenter.sh/v1", "NodePool", "", "default")

	cluster := platform.NewFakeCluster()
	p := newProber(nil, cluster, nil)

	d := &resource.Descriptor{
		ID:   "nodepool",
		Kind: resource.KindNativeAPIObject,
		Object: &resource.ObjectSpec{
			Manifest:   manifest,
			APIVersion: "karpenter.sh/v1",
			ObjectKind: "NodePool",
			Name:       "default",
		},
	}
	obs := p.Probe(context.Background(), d)
	require.NoError(t, obs.Err)
	assert.False(t, obs.Exists)

	// Present but never stamped: an update is due.
	cluster.Objects[key] = true
	obs = p.Probe(context.Background(), d)
	require.NoError(t, obs.Err)
	assert.True(t, obs.Exists)
	assert.False(t, obs.Matches, "missing revision must not match")

	cluster.Annotations[key+"/"+RevisionAnnotation] = ManifestRevision(manifest)
	obs = p.Probe(context.Background(), d)
	require.NoError(t, obs.Err)
	assert.True(t, obs.Matches)

	// A changed manifest shows up as drift against the stamped revision.
	d.Object.Manifest += "spec: {}\n"
	obs = p.Probe(context.Background(), d)
	require.NoError(t, obs.Err)
	assert.True(t, obs.Exists)
	assert.False(t, obs.Matches)
}

func TestProbe_TagDiscovery(t *testing.T) {
	cloud := platform.NewFakeCloud()
	cloud.Subnets = []string{"subnet-1", "subnet-2"}
	cloud.Tags["subnet-1"] = map[string]string{"karpenter.sh/discovery": "test-cluster"}
	p := newProber(cloud, nil, nil)

	d := &resource.Descriptor{
		ID:   "tag:subnet-discovery",
		Kind: resource.KindResourceTag,
		Tag:  &resource.TagSpec{Key: "karpenter.sh/discovery", Value: "test-cluster", Selector: resource.SelectorSubnets},
	}
	obs := p.Probe(context.Background(), d)
	require.NoError(t, obs.Err)
	assert.True(t, obs.Exists)
	assert.False(t, obs.Matches, "only one of two subnets tagged")

	cloud.Tags["subnet-2"] = map[string]string{"karpenter.sh/discovery": "test-cluster"}
	obs = p.Probe(context.Background(), d)
	require.NoError(t, obs.Err)
	assert.True(t, obs.Matches)
}

func TestProbe_TagSelectorEmptyDiscovery(t *testing.T) {
	cloud := platform.NewFakeCloud()
	p := newProber(cloud, nil, nil)

	d := &resource.Descriptor{
		ID:   "tag:sg",
		Kind: resource.KindResourceTag,
		Tag:  &resource.TagSpec{Key: "k", Value: "v", Selector: resource.SelectorSecurityGroups},
	}
	obs := p.Probe(context.Background(), d)
	assert.Error(t, obs.Err, "empty discovery is an error, not a clean absence")
}

func TestResolveTagTargets_ExplicitWinsOverSelector(t *testing.T) {
	cloud := platform.NewFakeCloud()
	cloud.Subnets = []string{"subnet-9"}

	ids, err := ResolveTagTargets(context.Background(), cloud, &resource.TagSpec{
		Key: "k", Value: "v", ResourceIDs: []string{"sg-1"}, Selector: resource.SelectorSubnets,
	}, "test-cluster")
	require.NoError(t, err)
	assert.Equal(t, []string{"sg-1"}, ids)
}
