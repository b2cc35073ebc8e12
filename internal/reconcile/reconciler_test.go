package reconcile

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/smithy-go"
	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/addonctl/addonctl/internal/platform"
	"github.com/addonctl/addonctl/internal/probe"
	"github.com/addonctl/addonctl/internal/report"
	"github.com/addonctl/addonctl/internal/resource"
)

const trustPolicy = `{"Version":"2012-10-17","Statement":[{"Effect":"Allow","Principal":{"Service":"pods.eks.amazonaws.com"},"Action":"sts:AssumeRole"}]}`

var testPolicy = RetryPolicy{
	MaxAttempts:  5,
	InitialDelay: time.Millisecond,
	MaxDelay:     5 * time.Millisecond,
	Budget:       time.Second,
}

func newTestReconciler(caps platform.Capabilities, opts ...Option) *Reconciler {
	opts = append([]Option{WithRetryPolicy(testPolicy)}, opts...)
	return New(caps, "test-cluster", logr.Discard(), opts...)
}

func roleDescriptor(policy resource.IdempotencyPolicy) *resource.Descriptor {
	return &resource.Descriptor{
		ID:     "karpenter-role",
		Kind:   resource.KindIAMRole,
		Policy: policy,
		IAMRole: &resource.IAMRoleSpec{
			Name:        "KarpenterController",
			TrustPolicy: trustPolicy,
		},
	}
}

func TestApplyCreatesAbsentRole(t *testing.T) {
	cloud := platform.NewFakeCloud()
	r := newTestReconciler(platform.Capabilities{Cloud: cloud})

	res := r.Apply(context.Background(), roleDescriptor(""))
	require.NoError(t, res.Err)
	assert.Equal(t, report.ActionCreated, res.Action)
	assert.Equal(t, 1, res.Attempts)
	require.Contains(t, cloud.Roles, "KarpenterController")
	assert.Equal(t, trustPolicy, cloud.Roles["KarpenterController"].TrustPolicy)
}

func TestApplySkipsRoleInSync(t *testing.T) {
	cloud := platform.NewFakeCloud()
	cloud.Roles["KarpenterController"] = &platform.Role{Name: "KarpenterController", TrustPolicy: trustPolicy}
	r := newTestReconciler(platform.Capabilities{Cloud: cloud})

	res := r.Apply(context.Background(), roleDescriptor(""))
	require.NoError(t, res.Err)
	assert.Equal(t, report.ActionSkipped, res.Action)
	assert.Equal(t, []string{"GetRole"}, cloud.Calls)
}

func TestApplyUpdatesDivergentTrustPolicy(t *testing.T) {
	cloud := platform.NewFakeCloud()
	cloud.Roles["KarpenterController"] = &platform.Role{
		Name:        "KarpenterController",
		TrustPolicy: `{"Version":"2012-10-17","Statement":[]}`,
	}
	r := newTestReconciler(platform.Capabilities{Cloud: cloud})

	res := r.Apply(context.Background(), roleDescriptor(resource.CreateOrUpdate))
	require.NoError(t, res.Err)
	assert.Equal(t, report.ActionUpdated, res.Action)
	assert.Equal(t, trustPolicy, cloud.Roles["KarpenterController"].TrustPolicy)
}

func TestApplySkipIfExistsLeavesDivergentRole(t *testing.T) {
	stale := `{"Version":"2012-10-17","Statement":[]}`
	cloud := platform.NewFakeCloud()
	cloud.Roles["KarpenterController"] = &platform.Role{Name: "KarpenterController", TrustPolicy: stale}
	r := newTestReconciler(platform.Capabilities{Cloud: cloud})

	res := r.Apply(context.Background(), roleDescriptor(resource.CreateOrSkipIfExists))
	require.NoError(t, res.Err)
	assert.Equal(t, report.ActionSkipped, res.Action)
	assert.Equal(t, stale, cloud.Roles["KarpenterController"].TrustPolicy)
	assert.NotContains(t, cloud.Calls, "UpdateRoleTrustPolicy")
}

func TestApplyCreateOrFailOnExisting(t *testing.T) {
	cloud := platform.NewFakeCloud()
	cloud.Roles["KarpenterController"] = &platform.Role{
		Name:        "KarpenterController",
		TrustPolicy: `{"Version":"2012-10-17","Statement":[]}`,
	}
	r := newTestReconciler(platform.Capabilities{Cloud: cloud})

	res := r.Apply(context.Background(), roleDescriptor(resource.CreateOrFail))
	assert.Equal(t, report.ActionFailed, res.Action)

	var rerr *ReconcileError
	require.ErrorAs(t, res.Err, &rerr)
	assert.True(t, rerr.Permanent)
}

func TestApplyRetriesTransientProbe(t *testing.T) {
	cloud := platform.NewFakeCloud()
	cloud.FailWith("GetRole", errors.New("throttled"), errors.New("throttled"))
	r := newTestReconciler(platform.Capabilities{Cloud: cloud})

	res := r.Apply(context.Background(), roleDescriptor(""))
	require.NoError(t, res.Err)
	assert.Equal(t, report.ActionCreated, res.Action)
	assert.Equal(t, 3, res.Attempts)
}

func TestApplyAttemptAccounting(t *testing.T) {
	cloud := platform.NewFakeCloud()
	cloud.FailWith("GetRole", errors.New("throttled"), errors.New("throttled"))
	cloud.FailWith("CreateRole", errors.New("throttled"))
	r := newTestReconciler(platform.Capabilities{Cloud: cloud})

	res := r.Apply(context.Background(), roleDescriptor(""))
	require.NoError(t, res.Err)
	assert.Equal(t, report.ActionCreated, res.Action)
	// Three probe tries, one extra create try, clean confirmation.
	assert.Equal(t, 4, res.Attempts)
}

func TestApplyPermanentErrorNotRetried(t *testing.T) {
	cloud := platform.NewFakeCloud()
	cloud.FailWith("CreateRole", &smithy.GenericAPIError{Code: "AccessDenied", Message: "nope"})
	r := newTestReconciler(platform.Capabilities{Cloud: cloud})

	res := r.Apply(context.Background(), roleDescriptor(""))
	assert.Equal(t, report.ActionFailed, res.Action)

	var rerr *ReconcileError
	require.ErrorAs(t, res.Err, &rerr)
	assert.True(t, rerr.Permanent)

	createCalls := 0
	for _, call := range cloud.Calls {
		if call == "CreateRole" {
			createCalls++
		}
	}
	assert.Equal(t, 1, createCalls)
}

func TestApplyBudgetSharedAcrossPhases(t *testing.T) {
	cloud := platform.NewFakeCloud()
	cloud.FailWith("GetRole", errors.New("throttled"))
	cloud.FailWith("CreateRole", errors.New("throttled"), errors.New("throttled"))

	// The probe retry sleep eats most of the budget; the create loop must
	// run on the remainder, not on a fresh budget of its own.
	r := newTestReconciler(platform.Capabilities{Cloud: cloud}, WithRetryPolicy(RetryPolicy{
		MaxAttempts:  5,
		InitialDelay: 150 * time.Millisecond,
		MaxDelay:     150 * time.Millisecond,
		Budget:       200 * time.Millisecond,
	}))

	res := r.Apply(context.Background(), roleDescriptor(""))
	assert.Equal(t, report.ActionFailed, res.Action)
	require.Error(t, res.Err)
	assert.Contains(t, res.Err.Error(), "retry budget exhausted")
}

func TestApplyProbeExhaustionFails(t *testing.T) {
	cloud := platform.NewFakeCloud()
	errs := make([]error, testPolicy.MaxAttempts)
	for i := range errs {
		errs[i] = errors.New("unreachable")
	}
	cloud.FailWith("GetRole", errs...)
	r := newTestReconciler(platform.Capabilities{Cloud: cloud})

	res := r.Apply(context.Background(), roleDescriptor(""))
	assert.Equal(t, report.ActionFailed, res.Action)
	assert.Equal(t, testPolicy.MaxAttempts, res.Attempts)

	var perr *ProbeError
	require.ErrorAs(t, res.Err, &perr)
	assert.NotContains(t, cloud.Calls, "CreateRole")
}

// racingCloud simulates another actor creating the role between the probe
// and the create call.
type racingCloud struct {
	*platform.FakeCloud
}

func (c *racingCloud) CreateRole(ctx context.Context, name, trustPolicy, description string, tags map[string]string) error {
	_ = c.FakeCloud.CreateRole(ctx, name, trustPolicy, description, tags)
	return &smithy.GenericAPIError{Code: "EntityAlreadyExists", Message: "race"}
}

func TestApplyCreateRaceReportsSkip(t *testing.T) {
	cloud := &racingCloud{FakeCloud: platform.NewFakeCloud()}
	r := newTestReconciler(platform.Capabilities{Cloud: cloud})

	res := r.Apply(context.Background(), roleDescriptor(""))
	require.NoError(t, res.Err)
	assert.Equal(t, report.ActionSkipped, res.Action)
}

// divergentRacingCloud simulates another actor creating the role with a
// different trust policy between the probe and the create call.
type divergentRacingCloud struct {
	*platform.FakeCloud
}

func (c *divergentRacingCloud) CreateRole(ctx context.Context, name, _, description string, tags map[string]string) error {
	_ = c.FakeCloud.CreateRole(ctx, name, `{"Version":"2012-10-17","Statement":[]}`, description, tags)
	return &smithy.GenericAPIError{Code: "EntityAlreadyExists", Message: "race"}
}

func TestApplyCreateRaceUpdatesDivergentResource(t *testing.T) {
	cloud := &divergentRacingCloud{FakeCloud: platform.NewFakeCloud()}
	r := newTestReconciler(platform.Capabilities{Cloud: cloud})

	res := r.Apply(context.Background(), roleDescriptor(""))
	require.NoError(t, res.Err)
	assert.Equal(t, report.ActionUpdated, res.Action)

	role := cloud.Roles["KarpenterController"]
	require.NotNil(t, role)
	assert.JSONEq(t, trustPolicy, role.TrustPolicy)
}

func TestApplyCreateRaceFailsUnderCreateOrFail(t *testing.T) {
	cloud := &divergentRacingCloud{FakeCloud: platform.NewFakeCloud()}
	r := newTestReconciler(platform.Capabilities{Cloud: cloud})

	res := r.Apply(context.Background(), roleDescriptor(resource.CreateOrFail))
	assert.Equal(t, report.ActionFailed, res.Action)
	require.Error(t, res.Err)
	assert.Contains(t, res.Err.Error(), "forbids adoption")
}

func TestApplyHelmReleasePassesSpec(t *testing.T) {
	deployer := platform.NewFakeDeployer()
	r := newTestReconciler(platform.Capabilities{Deployer: deployer}, WithDeployTimeout(90*time.Second))

	d := &resource.Descriptor{
		ID:   "karpenter-chart",
		Kind: resource.KindHelmRelease,
		HelmRelease: &resource.HelmReleaseSpec{
			ReleaseName: "karpenter",
			Namespace:   "kube-system",
			Repository:  "oci://public.ecr.aws/karpenter",
			Chart:       "karpenter",
			Version:     "1.0.6",
			Values:      map[string]interface{}{"replicas": 2},
		},
	}
	res := r.Apply(context.Background(), d)
	require.NoError(t, res.Err)
	assert.Equal(t, report.ActionCreated, res.Action)

	require.Len(t, deployer.Installs, 1)
	install := deployer.Installs[0]
	assert.Equal(t, "karpenter", install.Name)
	assert.Equal(t, "kube-system", install.Namespace)
	assert.Equal(t, "1.0.6", install.Version)
	assert.Equal(t, 90*time.Second, install.Timeout)
}

func TestApplyHelmReleaseWaitsForController(t *testing.T) {
	releaseDescriptor := func() *resource.Descriptor {
		return &resource.Descriptor{
			ID:   "keda-chart",
			Kind: resource.KindHelmRelease,
			HelmRelease: &resource.HelmReleaseSpec{
				ReleaseName:     "keda",
				Namespace:       "kube-system",
				Repository:      "https://kedacore.github.io/charts",
				Chart:           "keda",
				Version:         "2.15.1",
				ReadyDeployment: "keda-operator",
			},
		}
	}

	stuck := errors.New("deployment keda-operator not ready")
	cluster := platform.NewFakeCluster()
	cluster.FailWith("WaitForDeployment", stuck, stuck, stuck, stuck, stuck)
	r := newTestReconciler(platform.Capabilities{Deployer: platform.NewFakeDeployer(), Cluster: cluster})

	res := r.Apply(context.Background(), releaseDescriptor())
	assert.Equal(t, report.ActionFailed, res.Action)
	require.Error(t, res.Err)
	assert.Contains(t, res.Err.Error(), "not ready")

	// With a ready controller the rollout converges.
	r = newTestReconciler(platform.Capabilities{Deployer: platform.NewFakeDeployer(), Cluster: platform.NewFakeCluster()})
	res = r.Apply(context.Background(), releaseDescriptor())
	require.NoError(t, res.Err)
	assert.Equal(t, report.ActionCreated, res.Action)
}

func objectDescriptor(manifest string) *resource.Descriptor {
	return &resource.Descriptor{
		ID:   "karpenter-nodepool",
		Kind: resource.KindNativeAPIObject,
		Object: &resource.ObjectSpec{
			Manifest:   manifest,
			APIVersion: "karpenter.sh/v1",
			ObjectKind: "NodePool",
			Name:       "default",
		},
	}
}

func TestApplyObjectStampsRevision(t *testing.T) {
	manifest := "apiVersion: karpenter.sh/v1\nkind: NodePool\nmetadata:\n  name: default\n"
	key := platform.ObjectKey("karpenter.sh/v1", "NodePool", "", "default")

	cluster := platform.NewFakeCluster()
	cluster.OnApply = func(string) { cluster.Objects[key] = true }
	r := newTestReconciler(platform.Capabilities{Cluster: cluster})

	res := r.Apply(context.Background(), objectDescriptor(manifest))
	require.NoError(t, res.Err)
	assert.Equal(t, report.ActionCreated, res.Action)
	assert.Equal(t, probe.ManifestRevision(manifest),
		cluster.Annotations[key+"/"+probe.RevisionAnnotation])
}

func TestApplyObjectRefreshesStaleRevision(t *testing.T) {
	manifest := "apiVersion: karpenter.sh/v1\nkind: NodePool\nmetadata:\n  name: default\nspec: {}\n"
	key := platform.ObjectKey("karpenter.sh/v1", "NodePool", "", "default")

	cluster := platform.NewFakeCluster()
	cluster.Objects[key] = true
	cluster.Annotations[key+"/"+probe.RevisionAnnotation] = "stale"
	r := newTestReconciler(platform.Capabilities{Cluster: cluster})

	res := r.Apply(context.Background(), objectDescriptor(manifest))
	require.NoError(t, res.Err)
	assert.Equal(t, report.ActionUpdated, res.Action)
	assert.Equal(t, probe.ManifestRevision(manifest),
		cluster.Annotations[key+"/"+probe.RevisionAnnotation])
}

func TestApplyCRDSetConfirmsRegistration(t *testing.T) {
	cluster := platform.NewFakeCluster()
	cluster.OnApply = func(string) {
		cluster.CRDs["nodepools.karpenter.sh"] = true
		cluster.CRDs["nodeclaims.karpenter.sh"] = true
	}
	r := newTestReconciler(platform.Capabilities{Cluster: cluster})

	d := &resource.Descriptor{
		ID:   "karpenter-crds",
		Kind: resource.KindCRDSet,
		CRDSet: &resource.CRDSetSpec{
			Manifests: "apiVersion: apiextensions.k8s.io/v1\nkind: CustomResourceDefinition",
			Names:     []string{"nodepools.karpenter.sh", "nodeclaims.karpenter.sh"},
		},
	}
	res := r.Apply(context.Background(), d)
	require.NoError(t, res.Err)
	assert.Equal(t, report.ActionCreated, res.Action)
	assert.Len(t, cluster.Applied, 1)
}

func TestApplyCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cloud := platform.NewFakeCloud()
	cloud.FailWith("GetRole", errors.New("throttled"))
	r := newTestReconciler(platform.Capabilities{Cloud: cloud})

	res := r.Apply(ctx, roleDescriptor(""))
	assert.Equal(t, report.ActionFailed, res.Action)
	require.Error(t, res.Err)
	assert.ErrorIs(t, res.Err, context.Canceled)
}

func TestVerify(t *testing.T) {
	cloud := platform.NewFakeCloud()
	cloud.Roles["KarpenterController"] = &platform.Role{Name: "KarpenterController", TrustPolicy: trustPolicy}
	r := newTestReconciler(platform.Capabilities{Cloud: cloud})

	res := r.Verify(context.Background(), roleDescriptor(""))
	require.NoError(t, res.Err)
	assert.Equal(t, report.ActionSkipped, res.Action)
	assert.Equal(t, []string{"GetRole"}, cloud.Calls)

	cloud.Roles["KarpenterController"].TrustPolicy = `{"Version":"2012-10-17","Statement":[]}`
	res = r.Verify(context.Background(), roleDescriptor(""))
	assert.Equal(t, report.ActionFailed, res.Action)
	assert.NotContains(t, cloud.Calls, "UpdateRoleTrustPolicy")
}

func TestDeleteRemovesRole(t *testing.T) {
	cloud := platform.NewFakeCloud()
	cloud.Roles["KarpenterController"] = &platform.Role{Name: "KarpenterController", TrustPolicy: trustPolicy}
	r := newTestReconciler(platform.Capabilities{Cloud: cloud})

	res := r.Delete(context.Background(), roleDescriptor(""))
	require.NoError(t, res.Err)
	assert.Equal(t, report.ActionDeleted, res.Action)
	assert.NotContains(t, cloud.Roles, "KarpenterController")
}

func TestDeleteAbsentRoleSkips(t *testing.T) {
	cloud := platform.NewFakeCloud()
	r := newTestReconciler(platform.Capabilities{Cloud: cloud})

	res := r.Delete(context.Background(), roleDescriptor(""))
	require.NoError(t, res.Err)
	assert.Equal(t, report.ActionSkipped, res.Action)
	assert.NotContains(t, cloud.Calls, "DeleteRole")
}

func TestDeleteNotFoundDuringRemoveIsSuccess(t *testing.T) {
	cloud := platform.NewFakeCloud()
	cloud.Roles["KarpenterController"] = &platform.Role{Name: "KarpenterController", TrustPolicy: trustPolicy}
	cloud.FailWith("DeleteRole", &smithy.GenericAPIError{Code: "NoSuchEntity"})
	r := newTestReconciler(platform.Capabilities{Cloud: cloud})

	res := r.Delete(context.Background(), roleDescriptor(""))
	require.NoError(t, res.Err)
	assert.Equal(t, report.ActionDeleted, res.Action)
}

func TestDeleteServiceLinkedRoleRetained(t *testing.T) {
	cloud := platform.NewFakeCloud()
	cloud.ServiceRoles["spot.amazonaws.com"] = &platform.Role{Name: "AWSServiceRoleForEC2Spot"}
	r := newTestReconciler(platform.Capabilities{Cloud: cloud})

	d := &resource.Descriptor{
		ID:                "spot-slr",
		Kind:              resource.KindServiceLinkedRole,
		ServiceLinkedRole: &resource.ServiceLinkedRoleSpec{ServiceName: "spot.amazonaws.com"},
	}
	res := r.Delete(context.Background(), d)
	require.NoError(t, res.Err)
	assert.Equal(t, report.ActionSkipped, res.Action)
	assert.Empty(t, cloud.Calls)
}

func TestTransitionHookObservesLifecycle(t *testing.T) {
	cloud := platform.NewFakeCloud()
	var transitions []State
	r := newTestReconciler(platform.Capabilities{Cloud: cloud},
		WithTransitionHook(func(_ string, _, to State) {
			transitions = append(transitions, to)
		}))

	res := r.Apply(context.Background(), roleDescriptor(""))
	require.NoError(t, res.Err)
	assert.Equal(t, []State{StateProbing, StateReconciling, StateDone}, transitions)
}
